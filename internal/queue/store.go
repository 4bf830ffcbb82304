package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/meeting-pipeline/internal/domain"
	"github.com/jmoiron/sqlx"
)

// Record is the persisted state of a queued job
type Record struct {
	ID            string       `db:"id"`
	RunID         string       `db:"run_id"`
	Status        string       `db:"status"`
	Attempt       int          `db:"attempt"`
	MaxAttempts   int          `db:"max_attempts"`
	BackoffMS     int64        `db:"backoff_ms"`
	Progress      int          `db:"progress"`
	LastError     string       `db:"last_error"`
	NextAttemptAt sql.NullTime `db:"next_attempt_at"`
	CreatedAt     time.Time    `db:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
	FinishedAt    sql.NullTime `db:"finished_at"`
}

// Store handles database operations for job records
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new job record store
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// Create inserts a queued job record
func (s *Store) Create(ctx context.Context, jobID, runID string, opts Options) error {
	query := `
		INSERT INTO jobs (id, run_id, status, attempt, max_attempts, backoff_ms, progress, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $5, 0, '', NOW(), NOW())
	`

	_, err := s.db.ExecContext(ctx, query,
		jobID,
		runID,
		domain.JobStatusQueued,
		opts.MaxAttempts,
		opts.Backoff.Delay.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to create job record: %w", err)
	}

	return nil
}

// Get retrieves a job record by ID
func (s *Store) Get(ctx context.Context, jobID string) (*Record, error) {
	query := `
		SELECT id, run_id, status, attempt, max_attempts, backoff_ms, progress, last_error,
			next_attempt_at, created_at, updated_at, finished_at
		FROM jobs
		WHERE id = $1
	`

	var rec Record
	if err := s.db.GetContext(ctx, &rec, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("job %s not found: %w", jobID, err)
		}
		return nil, fmt.Errorf("failed to get job record: %w", err)
	}

	return &rec, nil
}

// MarkActive claims a job record for an attempt.
// A record that already completed or failed is not touched and domain.ErrJobFinished is returned.
func (s *Store) MarkActive(ctx context.Context, jobID string, attempt int) error {
	query := `
		UPDATE jobs
		SET status = $1,
			attempt = $2,
			next_attempt_at = NULL,
			updated_at = NOW()
		WHERE id = $3
		  AND status IN ($4, $5)
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.JobStatusActive,
		attempt,
		jobID,
		domain.JobStatusQueued,
		domain.JobStatusActive,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job active: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrJobFinished
	}

	return nil
}

// MarkRetrying puts the record back to queued until its next attempt
func (s *Store) MarkRetrying(ctx context.Context, jobID, lastErr string, nextAttemptAt time.Time) error {
	query := `
		UPDATE jobs
		SET status = $1,
			last_error = $2,
			next_attempt_at = $3,
			updated_at = NOW()
		WHERE id = $4
	`

	return s.exec(ctx, "mark job retrying", query, domain.JobStatusQueued, lastErr, nextAttemptAt, jobID)
}

// MarkCompleted finishes the record successfully
func (s *Store) MarkCompleted(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET status = $1,
			progress = 100,
			finished_at = NOW(),
			updated_at = NOW()
		WHERE id = $2
	`

	return s.exec(ctx, "mark job completed", query, domain.JobStatusCompleted, jobID)
}

// MarkFailed finishes the record after its attempts are exhausted
func (s *Store) MarkFailed(ctx context.Context, jobID, lastErr string) error {
	query := `
		UPDATE jobs
		SET status = $1,
			last_error = $2,
			finished_at = NOW(),
			updated_at = NOW()
		WHERE id = $3
	`

	return s.exec(ctx, "mark job failed", query, domain.JobStatusFailed, lastErr, jobID)
}

// UpdateProgress stores the latest progress percentage
func (s *Store) UpdateProgress(ctx context.Context, jobID string, percent int) error {
	query := `
		UPDATE jobs
		SET progress = $1,
			updated_at = NOW()
		WHERE id = $2
	`

	return s.exec(ctx, "update job progress", query, percent, jobID)
}

// DeleteFinishedBefore removes records in status that finished before cutoff
func (s *Store) DeleteFinishedBefore(ctx context.Context, status string, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM jobs
		WHERE status = $1
		  AND finished_at < $2
	`

	result, err := s.db.ExecContext(ctx, query, status, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s jobs: %w", status, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

func (s *Store) exec(ctx context.Context, op, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		s.logger.Error("Job record update failed",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return nil
}
