package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuongbtq/meeting-pipeline/internal/domain"
	"github.com/cuongbtq/meeting-pipeline/internal/google"
	"github.com/cuongbtq/meeting-pipeline/internal/prompts"
)

// LastResortRecipient is used when neither the meeting nor the config names a recipient
const LastResortRecipient = "prospect@example.com"

type followupEmail struct {
	deps *Deps
}

// NewFollowupEmail creates the follow-up email generator. It links every output already recorded
// for the run, so it runs best as the last deliverable.
func NewFollowupEmail(deps *Deps) Generator {
	return &followupEmail{deps: deps}
}

func (g *followupEmail) Type() domain.DeliverableType {
	return domain.DeliverableFollowupEmail
}

func (g *followupEmail) Generate(ctx context.Context, in Input) (*domain.Output, error) {
	outputs, err := g.deps.Outputs.ListByRun(ctx, in.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run outputs: %w", err)
	}

	body, err := g.deps.complete(ctx, prompts.KeyFollowupEmail, map[string]string{
		"transcript": in.Transcript,
		"outputs":    outputLinks(outputs),
		"metadata":   metadataJSON(in.Metadata),
	})
	if err != nil {
		return nil, err
	}

	to := recipient(in.Metadata, g.deps.DraftFallbackTo)
	subject := "Follow-up: " + stringOr(in.Metadata.String("meeting_title"), "Our Meeting")

	ref, err := g.deps.Mail.CreateDraft(ctx, google.Draft{To: to, Subject: subject, Body: body})
	if err != nil {
		return nil, fmt.Errorf("failed to create follow-up draft: %w", err)
	}

	return g.deps.Outputs.Record(ctx, domain.NewOutput{
		RunID:       in.RunID,
		Type:        domain.DeliverableFollowupEmail,
		Title:       subject,
		ExternalRef: ref.DraftID,
		Extra: map[string]any{
			"to":              to,
			"messageId":       ref.MessageID,
			"attachedOutputs": len(outputs),
		},
	})
}

// outputLinks lists shareable outputs as "- TYPE: url" lines
func outputLinks(outputs []*domain.Output) string {
	lines := make([]string, 0, len(outputs))
	for _, o := range outputs {
		if o.ShareURL == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", o.Type, o.ShareURL))
	}
	return strings.Join(lines, "\n")
}

// recipient picks the prospect email, then the first invitee, then the configured fallback
func recipient(meta domain.Metadata, fallback string) string {
	if email := meta.String("prospect_email"); email != "" {
		return email
	}

	if email := firstInviteeEmail(meta["invitees"]); email != "" {
		return email
	}

	if fallback != "" {
		return fallback
	}
	return LastResortRecipient
}

func firstInviteeEmail(v any) string {
	switch invitees := v.(type) {
	case []any:
		if len(invitees) == 0 {
			return ""
		}
		if first, ok := invitees[0].(map[string]any); ok {
			email, _ := first["email"].(string)
			return email
		}
	case []map[string]any:
		if len(invitees) == 0 {
			return ""
		}
		email, _ := invitees[0]["email"].(string)
		return email
	}
	return ""
}
