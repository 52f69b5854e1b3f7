package suggest

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/procedure-suggest-server/internal/domain"
)

// NewProvider selects a suggestion provider from the configured settings.
// Unrecognized provider names fall back to the local statistical engine so
// a misconfigured deployment still produces suggestions. Every call returns
// a fresh instance; the providers hold no cross-call state.
func NewProvider(settings domain.SuggestionSettings, logger *logrus.Logger) domain.SuggestionProvider {
	switch strings.ToLower(settings.AIProvider) {
	case "", "local":
		return NewLocalProvider(logger)
	case "gemini":
		return NewGeminiProvider(settings.AIAPIKey, logger)
	default:
		if logger != nil {
			logger.WithField("ai_provider", settings.AIProvider).Warn("Unknown suggestion provider, falling back to local")
		}
		return NewLocalProvider(logger)
	}
}
