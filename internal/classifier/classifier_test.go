package classifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/cuongbtq/meeting-pipeline/internal/domain"
	"github.com/cuongbtq/meeting-pipeline/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func staticGenerator(reply string) llm.Generator {
	return llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
		return reply, nil
	})
}

func TestClassify_ConfidenceFilter(t *testing.T) {
	c := New(staticGenerator(`{
		"deliverables": ["PROPOSAL", "FOLLOWUP_EMAIL"],
		"confidence": {"PROPOSAL": 0.9, "FOLLOWUP_EMAIL": 0.4},
		"reasoning": "pricing discussed"
	}`), nil, testLogger())

	result, err := c.Classify(context.Background(), "We talked about pricing.", DefaultMinConfidence)
	require.NoError(t, err)
	assert.Equal(t, []domain.DeliverableType{domain.DeliverableProposal}, result.Deliverables)
	assert.Equal(t, "pricing discussed", result.Reasoning)
}

func TestClassify_LegalKeywordOverride(t *testing.T) {
	c := New(staticGenerator(`{
		"deliverables": ["PROPOSAL"],
		"confidence": {"PROPOSAL": 0.8},
		"reasoning": "sales call"
	}`), nil, testLogger())

	result, err := c.Classify(context.Background(), "Client asked whether the dialer is TCPA safe.", DefaultMinConfidence)
	require.NoError(t, err)
	assert.Equal(t, []domain.DeliverableType{domain.DeliverableProposal, domain.DeliverableLegalResearch}, result.Deliverables)
	assert.Equal(t, LegalOverrideConfidence, result.Confidence[domain.DeliverableLegalResearch])
}

func TestClassify_OverrideKeepsModelScoreWhenAlreadySelected(t *testing.T) {
	c := New(staticGenerator(`{
		"deliverables": ["LEGAL_RESEARCH"],
		"confidence": {"LEGAL_RESEARCH": 0.3},
		"reasoning": ""
	}`), nil, testLogger())

	result, err := c.Classify(context.Background(), "compliance question", DefaultMinConfidence)
	require.NoError(t, err)
	assert.Empty(t, result.Deliverables)
	assert.Equal(t, 0.3, result.Confidence[domain.DeliverableLegalResearch])
}

func TestClassify_MalformedOutputTolerated(t *testing.T) {
	c := New(staticGenerator("```json\n"+`{
		"deliverables": ["proposal", "INVOICE", "PROPOSAL", 7, "SCOPE_OF_WORK", "SERVICE_AGREEMENT"],
		"confidence": {"PROPOSAL": 0.9, "SCOPE_OF_WORK": "high", "BOGUS": 1}
	}`+"\n```"), nil, testLogger())

	result, err := c.Classify(context.Background(), "plain sales chat", DefaultMinConfidence)
	require.NoError(t, err)
	assert.Equal(t, []domain.DeliverableType{domain.DeliverableProposal}, result.Deliverables)
	assert.Empty(t, result.Reasoning)
}

func TestClassify_MissingFields(t *testing.T) {
	c := New(staticGenerator(`{}`), nil, testLogger())

	result, err := c.Classify(context.Background(), "nothing notable", DefaultMinConfidence)
	require.NoError(t, err)
	assert.Empty(t, result.Deliverables)
}

func TestClassify_Errors(t *testing.T) {
	t.Run("not json", func(t *testing.T) {
		c := New(staticGenerator("I think you need a proposal"), nil, testLogger())
		_, err := c.Classify(context.Background(), "x", DefaultMinConfidence)
		require.Error(t, err)
	})

	t.Run("transport error", func(t *testing.T) {
		boom := errors.New("quota exceeded")
		c := New(llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
			return "", boom
		}), nil, testLogger())

		_, err := c.Classify(context.Background(), "x", DefaultMinConfidence)
		assert.ErrorIs(t, err, boom)
	})
}

func TestClassify_PromptListsEveryTag(t *testing.T) {
	var captured llm.Request
	c := New(llm.GeneratorFunc(func(_ context.Context, req llm.Request) (string, error) {
		captured = req
		return `{"deliverables":[],"confidence":{},"reasoning":""}`, nil
	}), nil, testLogger())

	_, err := c.Classify(context.Background(), "hello there", DefaultMinConfidence)
	require.NoError(t, err)

	assert.True(t, captured.JSON)
	assert.Contains(t, captured.Prompt, "hello there")
	for _, d := range domain.AllDeliverableTypes() {
		assert.Contains(t, captured.Prompt, string(d))
	}
}

func TestKeywordOverride_Matches(t *testing.T) {
	override := NewKeywordOverride(nil)

	tests := []struct {
		transcript string
		want       bool
	}{
		{transcript: "Is this a grey area?", want: true},
		{transcript: "We need their OPT IN first", want: true},
		{transcript: "robocall campaign", want: true},
		{transcript: "pricing and milestones only", want: false},
		{transcript: "", want: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, override.Matches(tt.transcript), tt.transcript)
	}

	custom := NewKeywordOverride([]string{"  GDPR "})
	assert.True(t, custom.Matches("what about gdpr?"))
	assert.False(t, custom.Matches("TCPA"))
}

func TestConfidenceFilter_Boundary(t *testing.T) {
	result := &Result{
		Deliverables: []domain.DeliverableType{domain.DeliverableProposal, domain.DeliverableScopeOfWork},
		Confidence:   map[domain.DeliverableType]float64{domain.DeliverableProposal: 0.55},
	}

	ConfidenceFilter{}.Apply("", result, 0.55)
	assert.Equal(t, []domain.DeliverableType{domain.DeliverableProposal}, result.Deliverables)
}
