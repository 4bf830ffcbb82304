package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{name: "pending to processing", from: RunStatusPending, to: RunStatusProcessing, want: true},
		{name: "processing to completed", from: RunStatusProcessing, to: RunStatusCompleted, want: true},
		{name: "processing to failed", from: RunStatusProcessing, to: RunStatusFailed, want: true},
		{name: "failed to processing on retry", from: RunStatusFailed, to: RunStatusProcessing, want: true},
		{name: "redelivered processing job", from: RunStatusProcessing, to: RunStatusProcessing, want: true},
		{name: "pending straight to completed", from: RunStatusPending, to: RunStatusCompleted, want: false},
		{name: "completed is final", from: RunStatusCompleted, to: RunStatusProcessing, want: false},
		{name: "completed to failed", from: RunStatusCompleted, to: RunStatusFailed, want: false},
		{name: "failed to completed", from: RunStatusFailed, to: RunStatusCompleted, want: false},
		{name: "back to pending", from: RunStatusProcessing, to: RunStatusPending, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestIsTerminalRunStatus(t *testing.T) {
	assert.True(t, IsTerminalRunStatus(RunStatusCompleted))
	assert.True(t, IsTerminalRunStatus(RunStatusFailed))
	assert.False(t, IsTerminalRunStatus(RunStatusPending))
	assert.False(t, IsTerminalRunStatus(RunStatusProcessing))
}

func TestAllowedFrom_ReturnsCopy(t *testing.T) {
	from := AllowedFrom(RunStatusCompleted)
	require.Equal(t, []string{RunStatusProcessing}, from)

	from[0] = RunStatusPending
	assert.Equal(t, []string{RunStatusProcessing}, AllowedFrom(RunStatusCompleted))
}

func TestParseDeliverableType(t *testing.T) {
	tests := []struct {
		input   string
		want    DeliverableType
		wantErr bool
	}{
		{input: "PROPOSAL", want: DeliverableProposal},
		{input: " legal_research ", want: DeliverableLegalResearch},
		{input: "Followup_Email", want: DeliverableFollowupEmail},
		{input: "INVOICE", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDeliverableType(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnknownDeliverable))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllDeliverableTypes(t *testing.T) {
	all := AllDeliverableTypes()
	require.Len(t, all, 5)
	for _, d := range all {
		assert.True(t, d.Valid())
		assert.NotEmpty(t, d.Description())
		assert.NotEqual(t, string(d), d.Label())
	}

	all[0] = "MUTATED"
	assert.Equal(t, DeliverableProposal, AllDeliverableTypes()[0])
}

func TestMetadata_String(t *testing.T) {
	var nilMeta Metadata
	assert.Equal(t, "", nilMeta.String("meeting_title"))

	meta := Metadata{"meeting_title": "Kickoff", "count": 3}
	assert.Equal(t, "Kickoff", meta.String("meeting_title"))
	assert.Equal(t, "", meta.String("count"))
	assert.Equal(t, "", meta.String("missing"))
}

func TestRetryableError(t *testing.T) {
	base := errors.New("store unreachable")
	err := fmt.Errorf("wrapped: %w", NewRetryableError(base))

	var retryable *RetryableError
	require.True(t, errors.As(err, &retryable))
	assert.True(t, errors.Is(err, base))
	assert.Equal(t, "retryable error: store unreachable", retryable.Error())
}
