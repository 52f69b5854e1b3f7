// Package repository persists completed session records so the prediction
// statistics can be rebuilt from the raw log.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/procedure-suggest-server/internal/domain"
)

// SessionRecord is one completed logging session: the ordered list of
// procedures a clinician added, in the order they were added.
type SessionRecord struct {
	ID           uuid.UUID `json:"id"`
	FacilityType string    `json:"facility_type"`
	ControlNames []string  `json:"control_names"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// SessionRepository handles session log persistence
type SessionRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *pgxpool.Pool, logger *logrus.Logger) *SessionRepository {
	return &SessionRepository{
		db:  db,
		log: logger,
	}
}

// Save inserts a new session record into the log
func (r *SessionRepository) Save(ctx context.Context, record *SessionRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO session_log (id, facility_type, control_names, recorded_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(ctx, query,
		record.ID,
		record.FacilityType,
		record.ControlNames,
		record.RecordedAt,
	)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"session_id": record.ID,
			"error":      err,
		}).Error("Failed to save session record")
		return fmt.Errorf("saving session record: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"session_id": record.ID,
		"procedures": len(record.ControlNames),
	}).Info("Session record saved")

	return nil
}

// Get retrieves a session record by its ID
func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*SessionRecord, error) {
	query := `
		SELECT id, facility_type, control_names, recorded_at
		FROM session_log
		WHERE id = $1`

	var record SessionRecord
	err := r.db.QueryRow(ctx, query, id).Scan(
		&record.ID,
		&record.FacilityType,
		&record.ControlNames,
		&record.RecordedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"session_id": id,
			"error":      err,
		}).Error("Failed to get session record")
		return nil, fmt.Errorf("getting session record: %w", err)
	}

	return &record, nil
}

// ListRecent returns the most recent session records, newest first
func (r *SessionRepository) ListRecent(ctx context.Context, limit, offset int) ([]*SessionRecord, error) {
	query := `
		SELECT id, facility_type, control_names, recorded_at
		FROM session_log
		ORDER BY recorded_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing session records: %w", err)
	}
	defer rows.Close()

	var records []*SessionRecord
	for rows.Next() {
		var record SessionRecord
		if err := rows.Scan(
			&record.ID,
			&record.FacilityType,
			&record.ControlNames,
			&record.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning session record: %w", err)
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

// Rebuild replays the entire session log into a fresh aggregate, oldest
// first. Used to regenerate statistics after a counter store reset.
func (r *SessionRepository) Rebuild(ctx context.Context) (*domain.PredictionData, error) {
	query := `
		SELECT control_names
		FROM session_log
		ORDER BY recorded_at ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("reading session log: %w", err)
	}
	defer rows.Close()

	data := domain.NewPredictionData()
	sessions := 0
	for rows.Next() {
		var names []string
		if err := rows.Scan(&names); err != nil {
			return nil, fmt.Errorf("scanning session log: %w", err)
		}
		data.RecordSession(names)
		sessions++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.log.WithFields(logrus.Fields{
		"sessions":   sessions,
		"procedures": len(data.ProcedureAddCounts),
	}).Info("Prediction statistics rebuilt from session log")

	return data, nil
}
