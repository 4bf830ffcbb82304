// Package store persists runs, outputs and example documents in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/meeting-pipeline/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const runColumns = `id, meeting_id, external_id, status, transcript, metadata, deliverables, log, created_at, updated_at, finished_at`

// RunStore handles all database operations for runs
type RunStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewRunStore creates a new RunStore instance
func NewRunStore(db *sqlx.DB, logger *slog.Logger) *RunStore {
	return &RunStore{
		db:     db,
		logger: logger,
	}
}

type runRow struct {
	ID           string         `db:"id"`
	MeetingID    string         `db:"meeting_id"`
	ExternalID   sql.NullString `db:"external_id"`
	Status       string         `db:"status"`
	Transcript   string         `db:"transcript"`
	Metadata     []byte         `db:"metadata"`
	Deliverables []byte         `db:"deliverables"`
	Log          []byte         `db:"log"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	FinishedAt   sql.NullTime   `db:"finished_at"`
}

func (r *runRow) toDomain() (*domain.Run, error) {
	run := &domain.Run{
		ID:         r.ID,
		MeetingID:  r.MeetingID,
		ExternalID: r.ExternalID.String,
		Status:     r.Status,
		Transcript: r.Transcript,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}

	if r.FinishedAt.Valid {
		finished := r.FinishedAt.Time
		run.FinishedAt = &finished
	}

	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &run.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode run metadata: %w", err)
		}
	}

	if len(r.Deliverables) > 0 {
		if err := json.Unmarshal(r.Deliverables, &run.Deliverables); err != nil {
			return nil, fmt.Errorf("failed to decode run deliverables: %w", err)
		}
	}

	if len(r.Log) > 0 {
		if err := json.Unmarshal(r.Log, &run.Log); err != nil {
			return nil, fmt.Errorf("failed to decode run log: %w", err)
		}
	}

	return run, nil
}

// CreateIfAbsent creates a pending run for meetingID unless one already exists.
// The insert relies on the unique meeting_id constraint, so concurrent deliveries of the same
// event resolve to a single run. created is false when an existing run is returned.
func (s *RunStore) CreateIfAbsent(ctx context.Context, in domain.NewRun) (*domain.Run, bool, error) {
	metadata, err := marshalJSON(in.Metadata, "{}")
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal run metadata: %w", err)
	}

	query := `
		INSERT INTO runs (
			id, meeting_id, external_id, status, transcript,
			metadata, deliverables, log, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, '[]'::jsonb, '[]'::jsonb, NOW(), NOW()
		)
		ON CONFLICT (meeting_id) DO NOTHING
		RETURNING ` + runColumns

	var row runRow
	err = s.db.GetContext(ctx, &row, query,
		uuid.New().String(),
		in.MeetingID,
		nullString(in.ExternalID),
		domain.RunStatusPending,
		in.Transcript,
		metadata,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			existing, getErr := s.GetByMeetingID(ctx, in.MeetingID)
			if getErr != nil {
				return nil, false, fmt.Errorf("failed to load existing run: %w", getErr)
			}

			s.logger.Info("Run already exists for meeting",
				slog.String("meeting_id", in.MeetingID),
				slog.String("run_id", existing.ID),
			)
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create run: %w", err)
	}

	run, err := row.toDomain()
	if err != nil {
		return nil, false, err
	}

	s.logger.Info("Run created",
		slog.String("run_id", run.ID),
		slog.String("meeting_id", run.MeetingID),
	)

	return run, true, nil
}

// GetByID retrieves a run by its ID
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.Run, error) {
	return s.getOne(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, runID)
}

// GetByMeetingID retrieves a run by its external meeting ID
func (s *RunStore) GetByMeetingID(ctx context.Context, meetingID string) (*domain.Run, error) {
	return s.getOne(ctx, `SELECT `+runColumns+` FROM runs WHERE meeting_id = $1`, meetingID)
}

func (s *RunStore) getOne(ctx context.Context, query string, arg any) (*domain.Run, error) {
	var row runRow
	if err := s.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return row.toDomain()
}

// UpdateStatus moves a run to status if the state machine allows it.
// The transcript is written only while the stored one is empty, and metadata only while the stored
// bag is empty, so both stay immutable once set. Terminal statuses stamp finished_at.
func (s *RunStore) UpdateStatus(ctx context.Context, runID, status string, extra domain.StatusUpdate) error {
	from := domain.AllowedFrom(status)
	if len(from) == 0 {
		return fmt.Errorf("%w: unsupported target status %q", domain.ErrInvalidTransition, status)
	}

	var transcript sql.NullString
	if extra.Transcript != nil {
		transcript = sql.NullString{String: *extra.Transcript, Valid: true}
	}

	// a nil []byte still reaches the driver as an empty parameter, which ''::jsonb rejects
	var metadata any
	if len(extra.Metadata) > 0 {
		encoded, err := json.Marshal(extra.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal run metadata: %w", err)
		}
		metadata = encoded
	}

	query := `
		UPDATE runs
		SET status = $1::text,
			transcript = CASE WHEN transcript = '' THEN COALESCE($2, transcript) ELSE transcript END,
			metadata = CASE WHEN metadata = '{}'::jsonb THEN COALESCE($3::jsonb, metadata) ELSE metadata END,
			finished_at = CASE
				WHEN $1::text IN ($4::text, $5::text) THEN NOW()
				ELSE NULL
			END,
			updated_at = NOW()
		WHERE id = $6
		  AND status = ANY($7)
	`

	result, err := s.db.ExecContext(ctx, query,
		status,
		transcript,
		metadata,
		domain.RunStatusCompleted,
		domain.RunStatusFailed,
		runID,
		pq.Array(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		current, getErr := s.GetByID(ctx, runID)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, status)
	}

	s.logger.Info("Run status updated",
		slog.String("run_id", runID),
		slog.String("status", status),
	)

	return nil
}

// AppendLog appends one entry to the run's diagnostic log
func (s *RunStore) AppendLog(ctx context.Context, runID string, entry domain.LogEntry) error {
	encoded, err := json.Marshal([]domain.LogEntry{entry})
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	query := `
		UPDATE runs
		SET log = log || $1::jsonb,
			updated_at = NOW()
		WHERE id = $2
	`

	return s.execOne(ctx, query, "append run log", encoded, runID)
}

// SetDeliverables records the classified deliverable list on the run
func (s *RunStore) SetDeliverables(ctx context.Context, runID string, deliverables []domain.DeliverableType) error {
	if deliverables == nil {
		deliverables = []domain.DeliverableType{}
	}

	encoded, err := json.Marshal(deliverables)
	if err != nil {
		return fmt.Errorf("failed to marshal deliverables: %w", err)
	}

	query := `
		UPDATE runs
		SET deliverables = $1::jsonb,
			updated_at = NOW()
		WHERE id = $2
	`

	return s.execOne(ctx, query, "set run deliverables", encoded, runID)
}

func (s *RunStore) execOne(ctx context.Context, query, op string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrRunNotFound
	}

	return nil
}

// RunFilter narrows List results
type RunFilter struct {
	Status   string
	PageSize int
	Cursor   *RunCursor
}

// RunCursor is the keyset position for run pagination
type RunCursor struct {
	CreatedAt time.Time
	RunID     string
}

// List returns runs newest first. It fetches one row beyond PageSize so callers can tell
// whether another page exists.
func (s *RunStore) List(ctx context.Context, filter RunFilter) ([]*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.RunID)
		argIdx += 2
	}

	// Order by created_at DESC, id DESC for consistent pagination
	query += " ORDER BY created_at DESC, id DESC"

	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]*domain.Run, 0, len(rows))
	for i := range rows {
		run, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, nil
}

func marshalJSON(v any, empty string) ([]byte, error) {
	switch typed := v.(type) {
	case nil:
		return []byte(empty), nil
	case domain.Metadata:
		if typed == nil {
			return []byte(empty), nil
		}
	case map[string]any:
		if typed == nil {
			return []byte(empty), nil
		}
	}
	return json.Marshal(v)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
