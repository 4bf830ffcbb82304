// Package generator produces one document per deliverable type and records it as an output.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/meeting-pipeline/internal/domain"
	"github.com/cuongbtq/meeting-pipeline/internal/google"
	"github.com/cuongbtq/meeting-pipeline/internal/llm"
	"github.com/cuongbtq/meeting-pipeline/internal/prompts"
	"github.com/cuongbtq/meeting-pipeline/internal/research"
	"github.com/cuongbtq/meeting-pipeline/internal/store"
)

// Input is what every generator receives for a run
type Input struct {
	RunID      string
	Transcript string
	Metadata   domain.Metadata
}

// Generator produces and records the output of one deliverable type
type Generator interface {
	Type() domain.DeliverableType
	Generate(ctx context.Context, in Input) (*domain.Output, error)
}

// PromptSource loads prompt templates
type PromptSource interface {
	Get(ctx context.Context, key string) (*prompts.Template, error)
}

// ExampleSource loads few-shot example documents
type ExampleSource interface {
	ListByKind(ctx context.Context, kind string, limit int) ([]store.ExampleDocument, error)
}

// DocumentCreator creates shareable documents
type DocumentCreator interface {
	CreateDocument(ctx context.Context, req google.DocumentRequest) (*google.Document, error)
}

// DraftCreator creates email drafts
type DraftCreator interface {
	CreateDraft(ctx context.Context, draft google.Draft) (*google.DraftRef, error)
}

// Researcher runs web research
type Researcher interface {
	Search(ctx context.Context, query string) (*research.Result, error)
}

// OutputRecorder persists and lists outputs
type OutputRecorder interface {
	Record(ctx context.Context, in domain.NewOutput) (*domain.Output, error)
	ListByRun(ctx context.Context, runID string) ([]*domain.Output, error)
}

// Folders holds the Drive folder of each document type
type Folders struct {
	Proposals         string
	LegalResearch     string
	ServiceAgreements string
	ScopeOfWork       string
}

// Deps are the collaborators shared by all generators
type Deps struct {
	LLM             llm.Generator
	Prompts         PromptSource
	Examples        ExampleSource
	Documents       DocumentCreator
	Mail            DraftCreator
	Research        Researcher
	Outputs         OutputRecorder
	Folders         Folders
	DraftFallbackTo string
	ExampleLimit    int
	Logger          *slog.Logger
	// Now stamps document titles; defaults to time.Now
	Now func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// complete renders the template key with vars and runs it through the text generator
func (d *Deps) complete(ctx context.Context, key string, vars map[string]string) (string, error) {
	tpl, err := d.Prompts.Get(ctx, key)
	if err != nil {
		return "", err
	}

	content, err := d.LLM.Generate(ctx, llm.Request{
		System:      tpl.System,
		Prompt:      tpl.Render(vars),
		Temperature: float32(tpl.Temperature),
		TopP:        float32(tpl.TopP),
		MaxTokens:   int32(tpl.MaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate %s content: %w", key, err)
	}

	return content, nil
}

// documentTitle formats "<Label> - <meeting title> - <YYYY-MM-DD>"
func documentTitle(d domain.DeliverableType, meta domain.Metadata, now time.Time) string {
	return fmt.Sprintf("%s - %s - %s", d.Label(), stringOr(meta.String("meeting_title"), "Meeting"), now.UTC().Format("2006-01-02"))
}

func stringOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func metadataJSON(meta domain.Metadata) string {
	if meta == nil {
		return "{}"
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}
