package suggest

import (
	"context"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/procedure-suggest-server/internal/domain"
)

const (
	// MinSampleSize is the minimum historical add count a session procedure
	// needs before its co-occurrence ratios are considered reliable.
	MinSampleSize = 2

	// MinCoOccurrenceCount is the minimum raw pair count for a companion to
	// contribute evidence.
	MinCoOccurrenceCount = 1

	// DefaultMaxSuggestions caps the result list when the caller passes no
	// explicit limit.
	DefaultMaxSuggestions = 10
)

// LocalProvider is the statistical suggestion engine. It is a pure function
// of its inputs: no I/O, no shared state, safe for concurrent use.
type LocalProvider struct {
	logger    *logrus.Logger
	isVariant VariantPredicate
}

// LocalOption customizes a LocalProvider.
type LocalOption func(*LocalProvider)

// WithVariantPredicate replaces the default base-name variant rule.
func WithVariantPredicate(pred VariantPredicate) LocalOption {
	return func(p *LocalProvider) {
		p.isVariant = pred
	}
}

// NewLocalProvider creates the local statistical provider.
func NewLocalProvider(logger *logrus.Logger, opts ...LocalOption) *LocalProvider {
	p := &LocalProvider{
		logger:    logger,
		isVariant: DefaultVariantPredicate,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name identifies the provider variant.
func (p *LocalProvider) Name() string {
	return "local"
}

// IsAvailable always reports true: the local engine has no dependencies.
func (p *LocalProvider) IsAvailable() bool {
	return true
}

// evidence accumulates the per-candidate signals gathered in the first pass.
type evidence struct {
	// individual confidences, one per contributing session procedure
	probs []float64
	// summed raw co-occurrence counts
	rawSum int
}

// GetSuggestions ranks companion procedures for the current session.
//
// For every session procedure with enough history, each historical companion
// contributes an individual confidence n/addCount. Per candidate the
// individual confidences are combined with noisy-OR: the complement of the
// product of complements, i.e. the probability that at least one of the
// independent signals fires. Candidates below threshold (inclusive boundary,
// compared before rounding) are dropped; survivors are ordered by
// confidence, contributor count, then raw evidence.
func (p *LocalProvider) GetSuggestions(ctx context.Context, sessionIDs []string, allProcedures []domain.ProcedureDefinition, data *domain.PredictionData, threshold float64, maxResults int) []domain.ProcedureSuggestion {
	if len(sessionIDs) == 0 {
		return nil
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxSuggestions
	}

	byID := make(map[string]domain.ProcedureDefinition, len(allProcedures))
	for _, proc := range allProcedures {
		byID[proc.ControlName] = proc
	}

	inSession := make(map[string]bool, len(sessionIDs))
	sessionProcs := make([]domain.ProcedureDefinition, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		inSession[id] = true
		if proc, ok := byID[id]; ok {
			sessionProcs = append(sessionProcs, proc)
		}
	}

	accumulated := make(map[string]*evidence)
	for _, anchor := range sessionIDs {
		addCount := data.AddCount(anchor)
		if addCount < MinSampleSize {
			// Too little history for this anchor's ratios to mean anything.
			continue
		}
		for companion, count := range data.CompanionCounts(anchor) {
			if inSession[companion] {
				continue
			}
			candidate, known := byID[companion]
			if !known {
				continue
			}
			if count < MinCoOccurrenceCount {
				continue
			}
			if p.isVariantOfSession(candidate, sessionProcs) {
				continue
			}

			ev := accumulated[companion]
			if ev == nil {
				ev = &evidence{}
				accumulated[companion] = ev
			}
			ev.probs = append(ev.probs, float64(count)/float64(addCount))
			ev.rawSum += count
		}
	}

	suggestions := make([]domain.ProcedureSuggestion, 0, len(accumulated))
	for companion, ev := range accumulated {
		noneFire := 1.0
		for _, prob := range ev.probs {
			noneFire *= 1 - prob
		}
		percent := (1 - noneFire) * 100

		// Threshold is inclusive and compared before rounding; the epsilon
		// keeps boundary candidates from dropping out on float noise.
		if percent+1e-9 < threshold {
			continue
		}

		suggestions = append(suggestions, domain.ProcedureSuggestion{
			Procedure:              byID[companion],
			Confidence:             int(math.Round(percent)),
			CoOccurrenceCount:      ev.rawSum,
			ContributingProcedures: len(ev.probs),
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.ContributingProcedures != b.ContributingProcedures {
			return a.ContributingProcedures > b.ContributingProcedures
		}
		if a.CoOccurrenceCount != b.CoOccurrenceCount {
			return a.CoOccurrenceCount > b.CoOccurrenceCount
		}
		// Deterministic order for full ties; map iteration is random.
		return a.Procedure.ControlName < b.Procedure.ControlName
	})

	if len(suggestions) > maxResults {
		suggestions = suggestions[:maxResults]
	}

	if p.logger != nil {
		p.logger.WithFields(logrus.Fields{
			"session_size": len(sessionIDs),
			"candidates":   len(accumulated),
			"returned":     len(suggestions),
		}).Debug("Computed local suggestions")
	}

	return suggestions
}

// isVariantOfSession reports whether the candidate is a clinical variant of
// any procedure already selected in the session.
func (p *LocalProvider) isVariantOfSession(candidate domain.ProcedureDefinition, sessionProcs []domain.ProcedureDefinition) bool {
	for _, proc := range sessionProcs {
		if p.isVariant(candidate, proc) {
			return true
		}
	}
	return false
}
