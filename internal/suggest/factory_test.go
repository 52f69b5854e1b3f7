package suggest

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/procedure-suggest-server/internal/domain"
)

func TestNewProvider_SelectsLocal(t *testing.T) {
	tests := []struct {
		name       string
		aiProvider string
	}{
		{name: "explicit local", aiProvider: "local"},
		{name: "empty defaults to local", aiProvider: ""},
		{name: "case insensitive", aiProvider: "Local"},
		{name: "unknown falls back to local", aiProvider: "skynet"},
	}

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := NewProvider(domain.SuggestionSettings{AIProvider: tt.aiProvider}, logger)

			assert.Equal(t, "local", provider.Name())
			assert.True(t, provider.IsAvailable())
		})
	}
}

func TestNewProvider_SelectsGemini(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	provider := NewProvider(domain.SuggestionSettings{
		AIProvider: "gemini",
		AIAPIKey:   "test-key",
	}, logger)

	assert.Equal(t, "gemini", provider.Name())
	assert.False(t, provider.IsAvailable(), "gemini has no backend wired up yet")
}

func TestNewProvider_FreshInstances(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	settings := domain.SuggestionSettings{AIProvider: "local"}

	first := NewProvider(settings, logger)
	second := NewProvider(settings, logger)

	assert.NotSame(t, first, second)
}

func TestGeminiProvider_ReturnsNoSuggestions(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	provider := NewGeminiProvider("test-key", logger)

	data := domain.NewPredictionData()
	data.ProcedureAddCounts["chest_tube"] = 10
	data.CoOccurrences["chest_tube"] = map[string]int{"thoracentesis": 5}

	// The stub stays empty even with usable statistics.
	result := provider.GetSuggestions(context.Background(),
		[]string{"chest_tube"}, testCatalog(), data, 0, 10)

	assert.Empty(t, result)
}
