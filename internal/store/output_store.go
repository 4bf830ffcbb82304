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
)

const outputColumns = `id, run_id, type, title, share_url, external_ref, extra, created_at`

// OutputStore handles database operations for generated outputs
type OutputStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewOutputStore creates a new OutputStore instance
func NewOutputStore(db *sqlx.DB, logger *slog.Logger) *OutputStore {
	return &OutputStore{
		db:     db,
		logger: logger,
	}
}

type outputRow struct {
	ID          string    `db:"id"`
	RunID       string    `db:"run_id"`
	Type        string    `db:"type"`
	Title       string    `db:"title"`
	ShareURL    string    `db:"share_url"`
	ExternalRef string    `db:"external_ref"`
	Extra       []byte    `db:"extra"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r *outputRow) toDomain() (*domain.Output, error) {
	out := &domain.Output{
		ID:          r.ID,
		RunID:       r.RunID,
		Type:        domain.DeliverableType(r.Type),
		Title:       r.Title,
		ShareURL:    r.ShareURL,
		ExternalRef: r.ExternalRef,
		CreatedAt:   r.CreatedAt,
	}

	if len(r.Extra) > 0 {
		if err := json.Unmarshal(r.Extra, &out.Extra); err != nil {
			return nil, fmt.Errorf("failed to decode output extra: %w", err)
		}
	}

	return out, nil
}

// Record stores a generated output. A second output of the same type for the same run replaces
// the first one, so a retried job never leaves duplicates behind.
func (s *OutputStore) Record(ctx context.Context, in domain.NewOutput) (*domain.Output, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownDeliverable, in.Type)
	}

	extra, err := marshalJSON(in.Extra, "{}")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output extra: %w", err)
	}

	query := `
		INSERT INTO outputs (id, run_id, type, title, share_url, external_ref, extra, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (run_id, type) DO UPDATE
		SET title = EXCLUDED.title,
			share_url = EXCLUDED.share_url,
			external_ref = EXCLUDED.external_ref,
			extra = EXCLUDED.extra,
			created_at = NOW()
		RETURNING ` + outputColumns

	var row outputRow
	err = s.db.GetContext(ctx, &row, query,
		uuid.New().String(),
		in.RunID,
		string(in.Type),
		in.Title,
		in.ShareURL,
		in.ExternalRef,
		extra,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record output: %w", err)
	}

	out, err := row.toDomain()
	if err != nil {
		return nil, err
	}

	s.logger.Info("Output recorded",
		slog.String("run_id", out.RunID),
		slog.String("output_id", out.ID),
		slog.String("type", string(out.Type)),
	)

	return out, nil
}

// ListByRun returns the outputs of a run in creation order
func (s *OutputStore) ListByRun(ctx context.Context, runID string) ([]*domain.Output, error) {
	query := `SELECT ` + outputColumns + ` FROM outputs WHERE run_id = $1 ORDER BY created_at ASC, id ASC`

	var rows []outputRow
	if err := s.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, fmt.Errorf("failed to list outputs: %w", err)
	}

	outputs := make([]*domain.Output, 0, len(rows))
	for i := range rows {
		out, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
	}

	return outputs, nil
}

// GetByRunAndType returns the output of the given type for a run
func (s *OutputStore) GetByRunAndType(ctx context.Context, runID string, t domain.DeliverableType) (*domain.Output, error) {
	query := `SELECT ` + outputColumns + ` FROM outputs WHERE run_id = $1 AND type = $2`

	var row outputRow
	if err := s.db.GetContext(ctx, &row, query, runID, string(t)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOutputNotFound
		}
		return nil, fmt.Errorf("failed to get output: %w", err)
	}

	return row.toDomain()
}
