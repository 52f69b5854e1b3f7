package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/procedure-suggest-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite catalog store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS subcategories (
		id TEXT PRIMARY KEY,
		category_id TEXT NOT NULL REFERENCES categories(id),
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS procedures (
		control_name TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		category_id TEXT NOT NULL,
		subcategory_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_procedures_category ON procedures(category_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Seed replaces the catalog contents with the given file. Used at startup
// when a catalog JSON ships alongside the binary.
func (s *SQLiteStore) Seed(ctx context.Context, file File) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"procedures", "subcategories", "categories"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, c := range file.Categories {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO categories (id, name) VALUES (?, ?)", c.ID, c.Name,
		); err != nil {
			return fmt.Errorf("failed to insert category: %w", err)
		}
		for _, sc := range c.Subcategories {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO subcategories (id, category_id, name) VALUES (?, ?, ?)",
				sc.ID, c.ID, sc.Name,
			); err != nil {
				return fmt.Errorf("failed to insert subcategory: %w", err)
			}
		}
	}

	for _, p := range file.Procedures {
		var subcategory sql.NullString
		if p.SubcategoryID != "" {
			subcategory = sql.NullString{String: p.SubcategoryID, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO procedures (control_name, description, category_id, subcategory_id) VALUES (?, ?, ?, ?)",
			p.ControlName, p.Description, p.CategoryID, subcategory,
		); err != nil {
			return fmt.Errorf("failed to insert procedure: %w", err)
		}
	}

	return tx.Commit()
}

// AllProcedures returns every procedure definition in the catalog.
func (s *SQLiteStore) AllProcedures(ctx context.Context) ([]domain.ProcedureDefinition, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT control_name, description, category_id, subcategory_id FROM procedures ORDER BY control_name")
	if err != nil {
		return nil, fmt.Errorf("failed to query procedures: %w", err)
	}
	defer rows.Close()

	var procedures []domain.ProcedureDefinition
	for rows.Next() {
		p, err := scanProcedure(rows)
		if err != nil {
			return nil, err
		}
		procedures = append(procedures, *p)
	}
	return procedures, rows.Err()
}

// GetProcedure looks up a single definition by control name.
func (s *SQLiteStore) GetProcedure(ctx context.Context, controlName string) (*domain.ProcedureDefinition, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT control_name, description, category_id, subcategory_id FROM procedures WHERE control_name = ?",
		controlName)

	p, err := scanProcedure(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrProcedureNotFound, controlName)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Categories returns the category tree.
func (s *SQLiteStore) Categories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM categories ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range categories {
		subRows, err := s.db.QueryContext(ctx,
			"SELECT id, name FROM subcategories WHERE category_id = ? ORDER BY id", categories[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to query subcategories: %w", err)
		}
		for subRows.Next() {
			var sc domain.Subcategory
			if err := subRows.Scan(&sc.ID, &sc.Name); err != nil {
				subRows.Close()
				return nil, fmt.Errorf("failed to scan subcategory: %w", err)
			}
			categories[i].Subcategories = append(categories[i].Subcategories, sc)
		}
		if err := subRows.Err(); err != nil {
			subRows.Close()
			return nil, err
		}
		subRows.Close()
	}

	return categories, nil
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProcedure(row rowScanner) (*domain.ProcedureDefinition, error) {
	var p domain.ProcedureDefinition
	var subcategory sql.NullString
	if err := row.Scan(&p.ControlName, &p.Description, &p.CategoryID, &subcategory); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan procedure: %w", err)
	}
	p.SubcategoryID = subcategory.String
	return &p, nil
}
