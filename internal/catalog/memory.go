package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/procedure-suggest-server/internal/domain"
)

// MemoryStore is an in-memory catalog. The lite server seeds it from a
// JSON file at startup; tests construct it directly.
type MemoryStore struct {
	mu         sync.RWMutex
	procedures []domain.ProcedureDefinition
	byName     map[string]int
	categories []domain.Category
}

// NewMemoryStore creates a memory catalog from the given definitions.
func NewMemoryStore(procedures []domain.ProcedureDefinition, categories []domain.Category) *MemoryStore {
	byName := make(map[string]int, len(procedures))
	for i, p := range procedures {
		byName[p.ControlName] = i
	}
	return &MemoryStore{
		procedures: procedures,
		byName:     byName,
		categories: categories,
	}
}

// LoadFile reads and parses a catalog JSON file.
func LoadFile(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var file File
	if err := json.Unmarshal(raw, &file); err != nil {
		return File{}, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	return file, nil
}

// NewMemoryStoreFromFile loads a catalog JSON file into a memory store.
func NewMemoryStoreFromFile(path string) (*MemoryStore, error) {
	file, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	return NewMemoryStore(file.Procedures, file.Categories), nil
}

// AllProcedures returns every procedure definition in the catalog.
func (s *MemoryStore) AllProcedures(ctx context.Context) ([]domain.ProcedureDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ProcedureDefinition, len(s.procedures))
	copy(out, s.procedures)
	return out, nil
}

// GetProcedure looks up a single definition by control name.
func (s *MemoryStore) GetProcedure(ctx context.Context, controlName string) (*domain.ProcedureDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byName[controlName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProcedureNotFound, controlName)
	}
	p := s.procedures[i]
	return &p, nil
}

// Categories returns the category tree.
func (s *MemoryStore) Categories(ctx context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Category, len(s.categories))
	copy(out, s.categories)
	return out, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
