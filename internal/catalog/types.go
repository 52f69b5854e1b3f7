// Package catalog provides access to the procedure catalog: the set of
// procedure definitions and categories a facility has configured. The
// suggestion engine treats the catalog as the universe of suggestible
// procedures.
package catalog

import (
	"context"
	"errors"

	"github.com/procedure-suggest-server/internal/domain"
)

// ErrProcedureNotFound is returned when a control name has no catalog entry.
var ErrProcedureNotFound = errors.New("procedure not found in catalog")

// Store defines the interface for catalog storage.
type Store interface {
	// AllProcedures returns every procedure definition in the catalog.
	AllProcedures(ctx context.Context) ([]domain.ProcedureDefinition, error)

	// GetProcedure looks up a single definition by control name.
	// Returns ErrProcedureNotFound for unknown names.
	GetProcedure(ctx context.Context, controlName string) (*domain.ProcedureDefinition, error)

	// Categories returns the category tree.
	Categories(ctx context.Context) ([]domain.Category, error)

	// Close closes the store and releases resources.
	Close() error
}

// File is the JSON document a catalog file contains.
type File struct {
	Categories []domain.Category            `json:"categories"`
	Procedures []domain.ProcedureDefinition `json:"procedures"`
}
