package domain

import (
	"context"
)

// SuggestionProvider produces ranked procedure suggestions for the current
// session. Implementations must be safe for concurrent use; all inputs are
// read-only snapshots supplied by the caller.
type SuggestionProvider interface {
	// Name identifies the provider variant, e.g. "local" or "gemini".
	Name() string

	// IsAvailable reports whether the provider can currently serve
	// suggestions. Callers should fall back to an empty result when false.
	IsAvailable() bool

	// GetSuggestions returns suggestions for the given session, ordered by
	// descending confidence. sessionIDs are the control names already
	// selected; an empty session yields an empty result. threshold is an
	// inclusive minimum confidence percentage (0-100). maxResults caps the
	// returned list; values <= 0 select the provider default.
	GetSuggestions(ctx context.Context, sessionIDs []string, allProcedures []ProcedureDefinition, data *PredictionData, threshold float64, maxResults int) []ProcedureSuggestion
}
