package generator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuongbtq/meeting-pipeline/internal/domain"
	"github.com/cuongbtq/meeting-pipeline/internal/google"
	"github.com/cuongbtq/meeting-pipeline/internal/prompts"
)

// LegalDisclaimer heads every legal research document
const LegalDisclaimer = "⚠️ LEGAL DISCLAIMER: This document is for informational purposes only and does not constitute legal advice. Consult with a qualified attorney for legal guidance.\n\n---\n\n"

// researchQueryChars bounds how much transcript is sent as the search query
const researchQueryChars = 1000

type legalResearch struct {
	deps *Deps
}

// NewLegalResearch creates the legal research generator
func NewLegalResearch(deps *Deps) Generator {
	return &legalResearch{deps: deps}
}

func (g *legalResearch) Type() domain.DeliverableType {
	return domain.DeliverableLegalResearch
}

func (g *legalResearch) Generate(ctx context.Context, in Input) (*domain.Output, error) {
	query := "Legal research based on this discussion: " + truncateRunes(in.Transcript, researchQueryChars)

	found, err := g.deps.Research.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to research legal questions: %w", err)
	}

	citations, err := json.Marshal(found.Citations)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal citations: %w", err)
	}

	content, err := g.deps.complete(ctx, prompts.KeyLegalResearch, map[string]string{
		"transcript": in.Transcript,
		"research":   found.Synthesis,
		"citations":  string(citations),
	})
	if err != nil {
		return nil, err
	}

	title := documentTitle(domain.DeliverableLegalResearch, in.Metadata, g.deps.now())

	doc, err := g.deps.Documents.CreateDocument(ctx, google.DocumentRequest{
		Title:    title,
		FolderID: g.deps.Folders.LegalResearch,
		Content:  LegalDisclaimer + content,
		Public:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create legal research document: %w", err)
	}

	sources := found.Sources
	if sources == nil {
		sources = []string{}
	}

	return g.deps.Outputs.Record(ctx, domain.NewOutput{
		RunID:       in.RunID,
		Type:        domain.DeliverableLegalResearch,
		Title:       title,
		ShareURL:    doc.ShareURL,
		ExternalRef: doc.ID,
		Extra: map[string]any{
			"citationCount": len(found.Citations),
			"sources":       sources,
		},
	})
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
