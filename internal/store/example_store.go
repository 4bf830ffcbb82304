package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ExampleDocument is a reference document used as few-shot context for generation
type ExampleDocument struct {
	ID      string `db:"id"`
	Kind    string `db:"kind"`
	Title   string `db:"title"`
	Content string `db:"content"`
}

// ExampleStore reads example documents by kind
type ExampleStore struct {
	db *sqlx.DB
}

// NewExampleStore creates a new ExampleStore instance
func NewExampleStore(db *sqlx.DB) *ExampleStore {
	return &ExampleStore{db: db}
}

// ListByKind returns up to limit example documents of kind, newest first.
func (s *ExampleStore) ListByKind(ctx context.Context, kind string, limit int) ([]ExampleDocument, error) {
	if limit <= 0 {
		limit = 3
	}

	query := `
		SELECT id, kind, title, content
		FROM example_documents
		WHERE kind = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var docs []ExampleDocument
	if err := s.db.SelectContext(ctx, &docs, query, kind, limit); err != nil {
		return nil, fmt.Errorf("failed to list example documents: %w", err)
	}

	return docs, nil
}
