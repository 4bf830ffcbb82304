// Package prompts loads generation prompt templates and renders their {{var}} placeholders.
package prompts

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/jmoiron/sqlx"
)

// Template keys used by the generators
const (
	KeyProposal         = "proposal"
	KeyLegalResearch    = "legal_research"
	KeyServiceAgreement = "service_agreement"
	KeyScopeOfWork      = "scope_of_work"
	KeyFollowupEmail    = "followup_email"
)

// ErrTemplateNotFound is returned when neither the database nor the defaults define a key
var ErrTemplateNotFound = errors.New("prompt template not found")

//go:embed defaults.json
var defaultsJSON []byte

// Template is a prompt with its sampling parameters
type Template struct {
	Key          string  `db:"key" json:"key"`
	Description  string  `db:"description" json:"description"`
	System       string  `db:"system" json:"system"`
	UserTemplate string  `db:"user_template" json:"user_template"`
	Temperature  float64 `db:"temperature" json:"temperature"`
	TopP         float64 `db:"top_p" json:"top_p"`
	MaxTokens    int     `db:"max_tokens" json:"max_tokens"`
}

// Render substitutes vars into the user template
func (t *Template) Render(vars map[string]string) string {
	return Format(t.UserTemplate, vars)
}

var placeholder = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Format replaces every {{name}} in tpl with vars[name]. Placeholders without a value are left as is.
func Format(tpl string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(tpl, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

// Defaults returns the built-in templates keyed by template key
func Defaults() (map[string]Template, error) {
	var list []Template
	if err := json.Unmarshal(defaultsJSON, &list); err != nil {
		return nil, fmt.Errorf("failed to decode default prompts: %w", err)
	}

	out := make(map[string]Template, len(list))
	for _, tpl := range list {
		out[tpl.Key] = tpl
	}
	return out, nil
}

// Store reads templates from the prompts table and falls back to the built-in defaults
type Store struct {
	db       *sqlx.DB
	defaults map[string]Template
	logger   *slog.Logger
}

// NewStore creates a Store. db may be nil to serve only the defaults.
func NewStore(db *sqlx.DB, logger *slog.Logger) (*Store, error) {
	defaults, err := Defaults()
	if err != nil {
		return nil, err
	}

	return &Store{
		db:       db,
		defaults: defaults,
		logger:   logger,
	}, nil
}

// Get returns the template for key
func (s *Store) Get(ctx context.Context, key string) (*Template, error) {
	if s.db != nil {
		query := `
			SELECT key, description, system, user_template, temperature, top_p, max_tokens
			FROM prompts
			WHERE key = $1
		`

		var tpl Template
		err := s.db.GetContext(ctx, &tpl, query, key)
		if err == nil {
			return &tpl, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to load prompt %s: %w", key, err)
		}
	}

	tpl, ok := s.defaults[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, key)
	}

	s.logger.Debug("Using built-in prompt template", slog.String("key", key))
	return &tpl, nil
}
