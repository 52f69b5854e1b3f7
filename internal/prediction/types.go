// Package prediction provides persistence for the aggregated co-occurrence
// statistics the suggestion engine consumes. Stores maintain the simple
// counters (per-procedure add counts and directional pair counts) and a
// monotonically increasing revision used for cache invalidation.
package prediction

import (
	"context"
	"io"
	"time"

	"github.com/procedure-suggest-server/internal/domain"
)

// Store defines the interface for prediction statistics storage.
type Store interface {
	// Load returns the full aggregate. A store with no history returns a
	// valid empty aggregate (cold start), never an error.
	Load(ctx context.Context) (*domain.PredictionData, error)

	// Save replaces the stored aggregate wholesale.
	Save(ctx context.Context, data *domain.PredictionData) error

	// RecordSession increments the counters for one completed session:
	// every procedure counts as an add, and each earlier procedure in the
	// ordered list becomes an anchor for the later ones.
	RecordSession(ctx context.Context, orderedControlNames []string) error

	// Revision returns a counter that increases on every mutation.
	Revision(ctx context.Context) (int64, error)

	// Count returns the number of procedures with recorded history.
	Count(ctx context.Context) (int64, error)

	// ExportJSON writes the aggregate to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON merges an exported aggregate into the store. Counts are
	// summed for matching keys; seed metadata follows last-writer-wins.
	// Returns the number of procedure and pair keys merged in.
	ImportJSON(ctx context.Context, reader io.Reader) (procedures int, pairs int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// Export is the JSON envelope written by ExportJSON.
type Export struct {
	Version    string                 `json:"version"`
	ExportedAt time.Time              `json:"exported_at"`
	Data       *domain.PredictionData `json:"data"`
}
