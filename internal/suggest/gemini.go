package suggest

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/procedure-suggest-server/internal/domain"
)

// GeminiProvider is the placeholder for a remote AI suggestion backend.
// It carries the configured API key but no inference is wired up yet:
// IsAvailable reports false and GetSuggestions returns nothing. Callers
// that honor IsAvailable will fall back to an empty suggestion list rather
// than an error.
type GeminiProvider struct {
	apiKey string
	logger *logrus.Logger
}

// NewGeminiProvider creates the remote provider stub.
func NewGeminiProvider(apiKey string, logger *logrus.Logger) *GeminiProvider {
	return &GeminiProvider{
		apiKey: apiKey,
		logger: logger,
	}
}

// Name identifies the provider variant.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// IsAvailable reports false until a real backend is wired up.
func (p *GeminiProvider) IsAvailable() bool {
	return false
}

// GetSuggestions returns an empty result unconditionally.
func (p *GeminiProvider) GetSuggestions(ctx context.Context, sessionIDs []string, allProcedures []domain.ProcedureDefinition, data *domain.PredictionData, threshold float64, maxResults int) []domain.ProcedureSuggestion {
	if p.logger != nil {
		p.logger.WithField("session_size", len(sessionIDs)).Debug("Gemini provider invoked but not wired up; returning no suggestions")
	}
	return nil
}
