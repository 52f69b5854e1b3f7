// Package service orchestrates the suggestion workflow: it resolves the
// provider, loads catalog and prediction data, consults the response cache,
// and records completed sessions.
package service

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/procedure-suggest-server/internal/cache"
	"github.com/procedure-suggest-server/internal/catalog"
	"github.com/procedure-suggest-server/internal/domain"
	"github.com/procedure-suggest-server/internal/prediction"
	"github.com/procedure-suggest-server/internal/suggest"
)

// SuggestionService exposes the suggestion operations consumed by the HTTP
// API and the MCP tool surface.
type SuggestionService struct {
	settings    domain.SuggestionSettings
	catalog     catalog.Store
	predictions prediction.Store
	responses   *cache.SuggestionCache
	logger      *logrus.Logger
}

// NewSuggestionService creates a suggestion service. responses may be nil,
// in which case every query recomputes.
func NewSuggestionService(
	settings domain.SuggestionSettings,
	catalogStore catalog.Store,
	predictionStore prediction.Store,
	responses *cache.SuggestionCache,
	logger *logrus.Logger,
) *SuggestionService {
	return &SuggestionService{
		settings:    settings,
		catalog:     catalogStore,
		predictions: predictionStore,
		responses:   responses,
		logger:      logger,
	}
}

// SuggestRequest is one suggestion query. Threshold and MaxResults override
// the configured settings when non-nil.
type SuggestRequest struct {
	SessionIDs []string `json:"session_ids"`
	Threshold  *float64 `json:"threshold,omitempty"`
	MaxResults *int     `json:"max_results,omitempty"`
}

// Suggest computes ranked suggestions for the current session.
func (s *SuggestionService) Suggest(ctx context.Context, req SuggestRequest) ([]domain.ProcedureSuggestion, error) {
	if !s.settings.Enabled {
		return []domain.ProcedureSuggestion{}, nil
	}
	if len(req.SessionIDs) == 0 {
		return []domain.ProcedureSuggestion{}, nil
	}

	threshold := s.settings.Threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	maxResults := s.settings.MaxSuggestions
	if req.MaxResults != nil {
		maxResults = *req.MaxResults
	}

	revision, err := s.predictions.Revision(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading prediction revision: %w", err)
	}

	key := cache.Key(req.SessionIDs, threshold, maxResults, revision)
	if s.responses != nil {
		if cached, ok := s.responses.Get(ctx, key); ok {
			s.logger.WithField("session_size", len(req.SessionIDs)).Debug("Suggestion cache hit")
			return cached, nil
		}
	}

	procedures, err := s.catalog.AllProcedures(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	data, err := s.predictions.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading prediction data: %w", err)
	}

	provider := suggest.NewProvider(s.settings, s.logger)
	if !provider.IsAvailable() {
		s.logger.WithField("provider", provider.Name()).Debug("Provider unavailable, falling back to local")
		provider = suggest.NewLocalProvider(s.logger)
	}

	suggestions := provider.GetSuggestions(ctx, req.SessionIDs, procedures, data, threshold, maxResults)
	if suggestions == nil {
		suggestions = []domain.ProcedureSuggestion{}
	}

	if s.responses != nil {
		s.responses.Set(ctx, key, suggestions)
	}

	return suggestions, nil
}

// RecordSession folds one completed session into the prediction counters.
func (s *SuggestionService) RecordSession(ctx context.Context, orderedControlNames []string) error {
	if len(orderedControlNames) == 0 {
		return nil
	}
	if err := s.predictions.RecordSession(ctx, orderedControlNames); err != nil {
		return fmt.Errorf("recording session: %w", err)
	}

	s.logger.WithField("procedures", len(orderedControlNames)).Info("Session recorded")
	return nil
}

// Stats summarizes the prediction data for health and tooling endpoints.
type Stats struct {
	TrackedProcedures int64 `json:"tracked_procedures"`
	Revision          int64 `json:"revision"`
	TotalAdds         int   `json:"total_adds"`
}

// PredictionStats returns a snapshot of the counter store.
func (s *SuggestionService) PredictionStats(ctx context.Context) (*Stats, error) {
	count, err := s.predictions.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting procedures: %w", err)
	}
	revision, err := s.predictions.Revision(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading revision: %w", err)
	}
	data, err := s.predictions.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading prediction data: %w", err)
	}

	return &Stats{
		TrackedProcedures: count,
		Revision:          revision,
		TotalAdds:         data.TotalAdds(),
	}, nil
}

// ReplacePredictions overwrites the counter store with a rebuilt aggregate,
// typically produced by replaying the session log.
func (s *SuggestionService) ReplacePredictions(ctx context.Context, data *domain.PredictionData) error {
	if err := s.predictions.Save(ctx, data); err != nil {
		return fmt.Errorf("replacing prediction data: %w", err)
	}

	s.logger.WithField("procedures", len(data.ProcedureAddCounts)).Info("Prediction data replaced")
	return nil
}

// ExportPredictions streams the counter aggregate as JSON.
func (s *SuggestionService) ExportPredictions(ctx context.Context, w io.Writer) error {
	return s.predictions.ExportJSON(ctx, w)
}

// ImportPredictions merges an exported aggregate into the counter store.
func (s *SuggestionService) ImportPredictions(ctx context.Context, r io.Reader) (procedures, pairs int, err error) {
	return s.predictions.ImportJSON(ctx, r)
}

// Settings returns the active suggestion settings.
func (s *SuggestionService) Settings() domain.SuggestionSettings {
	return s.settings
}

// Catalog exposes the catalog store for read endpoints.
func (s *SuggestionService) Catalog() catalog.Store {
	return s.catalog
}
