package prediction

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/procedure-suggest-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite prediction store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Open database
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	// Create schema
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS procedure_add_counts (
		control_name TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS co_occurrences (
		anchor TEXT NOT NULL,
		companion TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (anchor, companion)
	);

	CREATE TABLE IF NOT EXISTS prediction_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_co_occurrences_anchor ON co_occurrences(anchor);
	`

	_, err := db.Exec(schema)
	return err
}

// Load returns the full aggregate; an empty store yields a cold-start value.
func (s *SQLiteStore) Load(ctx context.Context) (*domain.PredictionData, error) {
	data := domain.NewPredictionData()

	rows, err := s.db.QueryContext(ctx, "SELECT control_name, count FROM procedure_add_counts")
	if err != nil {
		return nil, fmt.Errorf("failed to query add counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("failed to scan add count: %w", err)
		}
		data.ProcedureAddCounts[name] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pairRows, err := s.db.QueryContext(ctx, "SELECT anchor, companion, count FROM co_occurrences")
	if err != nil {
		return nil, fmt.Errorf("failed to query co-occurrences: %w", err)
	}
	defer pairRows.Close()

	for pairRows.Next() {
		var anchor, companion string
		var count int
		if err := pairRows.Scan(&anchor, &companion, &count); err != nil {
			return nil, fmt.Errorf("failed to scan co-occurrence: %w", err)
		}
		row := data.CoOccurrences[anchor]
		if row == nil {
			row = make(map[string]int)
			data.CoOccurrences[anchor] = row
		}
		row[companion] = count
	}
	if err := pairRows.Err(); err != nil {
		return nil, err
	}

	if version, err := s.getMeta(ctx, "version"); err == nil && version != "" {
		data.Version = version
	}
	if seeded, err := s.getMeta(ctx, "seeded_from"); err == nil && seeded != "" {
		var info domain.SeedInfo
		if err := json.Unmarshal([]byte(seeded), &info); err == nil {
			data.SeededFrom = &info
		}
	}

	return data, nil
}

// Save replaces the stored aggregate wholesale.
func (s *SQLiteStore) Save(ctx context.Context, data *domain.PredictionData) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM procedure_add_counts"); err != nil {
		return fmt.Errorf("failed to clear add counts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM co_occurrences"); err != nil {
		return fmt.Errorf("failed to clear co-occurrences: %w", err)
	}

	for name, count := range data.ProcedureAddCounts {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO procedure_add_counts (control_name, count) VALUES (?, ?)",
			name, count,
		); err != nil {
			return fmt.Errorf("failed to insert add count: %w", err)
		}
	}

	for anchor, companions := range data.CoOccurrences {
		for companion, count := range companions {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO co_occurrences (anchor, companion, count) VALUES (?, ?, ?)",
				anchor, companion, count,
			); err != nil {
				return fmt.Errorf("failed to insert co-occurrence: %w", err)
			}
		}
	}

	version := data.Version
	if version == "" {
		version = domain.PredictionDataVersion
	}
	if err := setMetaTx(ctx, tx, "version", version); err != nil {
		return err
	}
	if data.SeededFrom != nil {
		encoded, err := json.Marshal(data.SeededFrom)
		if err != nil {
			return fmt.Errorf("failed to encode seed info: %w", err)
		}
		if err := setMetaTx(ctx, tx, "seeded_from", string(encoded)); err != nil {
			return err
		}
	}
	if err := bumpRevisionTx(ctx, tx); err != nil {
		return err
	}

	return tx.Commit()
}

// RecordSession increments the counters for one completed session.
func (s *SQLiteStore) RecordSession(ctx context.Context, orderedControlNames []string) error {
	if len(orderedControlNames) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, name := range orderedControlNames {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO procedure_add_counts (control_name, count) VALUES (?, 1)
			ON CONFLICT(control_name) DO UPDATE SET count = count + 1
		`, name); err != nil {
			return fmt.Errorf("failed to bump add count: %w", err)
		}

		for _, anchor := range orderedControlNames[:i] {
			if anchor == name {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO co_occurrences (anchor, companion, count) VALUES (?, ?, 1)
				ON CONFLICT(anchor, companion) DO UPDATE SET count = count + 1
			`, anchor, name); err != nil {
				return fmt.Errorf("failed to bump co-occurrence: %w", err)
			}
		}
	}

	if err := bumpRevisionTx(ctx, tx); err != nil {
		return err
	}

	return tx.Commit()
}

// Revision returns the mutation counter.
func (s *SQLiteStore) Revision(ctx context.Context) (int64, error) {
	value, err := s.getMeta(ctx, "revision")
	if err != nil {
		return 0, err
	}
	if value == "" {
		return 0, nil
	}
	var revision int64
	if _, err := fmt.Sscanf(value, "%d", &revision); err != nil {
		return 0, fmt.Errorf("failed to parse revision: %w", err)
	}
	return revision, nil
}

// Count returns the number of procedures with recorded history.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM procedure_add_counts").Scan(&count)
	return count, err
}

// ExportJSON exports the aggregate to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	data, err := s.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load prediction data: %w", err)
	}

	export := &Export{
		Version:    domain.PredictionDataVersion,
		ExportedAt: time.Now(),
		Data:       data,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON merges an exported aggregate into the store.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, pairs int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}
	if export.Data == nil {
		return 0, 0, nil
	}

	existing, err := s.Load(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load existing data: %w", err)
	}

	existing.Merge(export.Data)
	if err := s.Save(ctx, existing); err != nil {
		return 0, 0, fmt.Errorf("failed to save merged data: %w", err)
	}

	imported = len(export.Data.ProcedureAddCounts)
	for _, companions := range export.Data.CoOccurrences {
		pairs += len(companions)
	}
	return imported, pairs, nil
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// getMeta reads a metadata value; missing keys return an empty string.
func (s *SQLiteStore) getMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM prediction_meta WHERE key = ?", key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read meta %q: %w", key, err)
	}
	return value, nil
}

func setMetaTx(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO prediction_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set meta %q: %w", key, err)
	}
	return nil
}

func bumpRevisionTx(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO prediction_meta (key, value) VALUES ('revision', '1')
		ON CONFLICT(key) DO UPDATE SET value = CAST(CAST(value AS INTEGER) + 1 AS TEXT)
	`)
	if err != nil {
		return fmt.Errorf("failed to bump revision: %w", err)
	}
	return nil
}
