package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuongbtq/meeting-pipeline/internal/domain"
	"github.com/cuongbtq/meeting-pipeline/internal/google"
	"github.com/cuongbtq/meeting-pipeline/internal/prompts"
)

// documentGenerator writes a Google Doc from a prompt and example documents of the same kind.
// Proposals, service agreements and scopes of work differ only in these settings.
type documentGenerator struct {
	deps        *Deps
	kind        domain.DeliverableType
	promptKey   string
	exampleKind string
	folderID    string
	public      bool
}

// NewProposal creates the proposal generator. Proposals are shared publicly.
func NewProposal(deps *Deps) Generator {
	return &documentGenerator{
		deps:        deps,
		kind:        domain.DeliverableProposal,
		promptKey:   prompts.KeyProposal,
		exampleKind: "proposal",
		folderID:    deps.Folders.Proposals,
		public:      true,
	}
}

// NewServiceAgreement creates the service agreement generator. Agreements stay private.
func NewServiceAgreement(deps *Deps) Generator {
	return &documentGenerator{
		deps:        deps,
		kind:        domain.DeliverableServiceAgreement,
		promptKey:   prompts.KeyServiceAgreement,
		exampleKind: "service_agreement",
		folderID:    deps.Folders.ServiceAgreements,
		public:      false,
	}
}

// NewScopeOfWork creates the scope of work generator
func NewScopeOfWork(deps *Deps) Generator {
	return &documentGenerator{
		deps:        deps,
		kind:        domain.DeliverableScopeOfWork,
		promptKey:   prompts.KeyScopeOfWork,
		exampleKind: "scope_of_work",
		folderID:    deps.Folders.ScopeOfWork,
		public:      true,
	}
}

func (g *documentGenerator) Type() domain.DeliverableType {
	return g.kind
}

func (g *documentGenerator) Generate(ctx context.Context, in Input) (*domain.Output, error) {
	examples, err := g.deps.Examples.ListByKind(ctx, g.exampleKind, g.deps.ExampleLimit)
	if err != nil {
		// examples only steer style, so generation goes ahead without them
		g.deps.Logger.Warn("Failed to load example documents",
			slog.String("kind", g.exampleKind),
			slog.String("error", err.Error()),
		)
		examples = nil
	}

	contents := make([]string, 0, len(examples))
	for _, ex := range examples {
		contents = append(contents, ex.Content)
	}

	content, err := g.deps.complete(ctx, g.promptKey, map[string]string{
		"transcript": in.Transcript,
		"examples":   strings.Join(contents, "\n\n"),
		"metadata":   metadataJSON(in.Metadata),
	})
	if err != nil {
		return nil, err
	}

	title := documentTitle(g.kind, in.Metadata, g.deps.now())

	doc, err := g.deps.Documents.CreateDocument(ctx, google.DocumentRequest{
		Title:    title,
		FolderID: g.folderID,
		Content:  content,
		Public:   g.public,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s document: %w", g.kind, err)
	}

	return g.deps.Outputs.Record(ctx, domain.NewOutput{
		RunID:       in.RunID,
		Type:        g.kind,
		Title:       title,
		ShareURL:    doc.ShareURL,
		ExternalRef: doc.ID,
		Extra:       map[string]any{"exampleCount": len(examples)},
	})
}
