package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"meeting":{"id":"m-1"}}`)
	secret := "test-secret"
	valid := Sign(payload, secret)

	flipped := []byte(valid)
	if flipped[0] == 'a' {
		flipped[0] = 'b'
	} else {
		flipped[0] = 'a'
	}

	tests := []struct {
		name      string
		payload   []byte
		signature string
		secret    string
		want      bool
		wantErr   error
	}{
		{name: "correct secret", payload: payload, signature: valid, secret: secret, want: true},
		{name: "uppercase hex", payload: payload, signature: strings.ToUpper(valid), secret: secret, want: true},
		{name: "sha256 prefix", payload: payload, signature: "sha256=" + valid, secret: secret, want: true},
		{name: "different secret", payload: payload, signature: Sign(payload, "wrong-secret"), secret: secret, wantErr: ErrSignatureMismatch},
		{name: "single byte altered", payload: payload, signature: string(flipped), secret: secret, wantErr: ErrSignatureMismatch},
		{name: "altered body", payload: []byte(`{"meeting":{"id":"m-2"}}`), signature: valid, secret: secret, wantErr: ErrSignatureMismatch},
		{name: "length mismatch", payload: payload, signature: valid[:10], secret: secret, wantErr: ErrMalformedSignature},
		{name: "not hex", payload: payload, signature: "invalid-signature-123", secret: secret, wantErr: ErrMalformedSignature},
		{name: "missing header", payload: payload, signature: "", secret: secret, wantErr: ErrMissingSignature},
		{name: "missing secret", payload: payload, signature: valid, secret: "", wantErr: ErrMissingSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifySignature(tt.payload, tt.signature, tt.secret))

			err := CheckSignature(tt.payload, tt.signature, tt.secret)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVerifySignature_AnyPayload(t *testing.T) {
	payloads := []string{"", "a", `{"x":1}`, strings.Repeat("z", 4096)}
	secrets := []string{"s", "another-secret", strings.Repeat("k", 128)}

	for _, p := range payloads {
		for _, s := range secrets {
			sig := Sign([]byte(p), s)
			assert.True(t, VerifySignature([]byte(p), sig, s))
			assert.False(t, VerifySignature([]byte(p), sig, s+"x"))
		}
	}
}

func TestNormalizeTranscript(t *testing.T) {
	tests := []struct {
		name    string
		entries []TranscriptEntry
		want    string
	}{
		{name: "nil", entries: nil, want: ""},
		{name: "empty", entries: []TranscriptEntry{}, want: ""},
		{name: "missing speaker", entries: []TranscriptEntry{{Text: "Hi"}}, want: "Unknown: Hi"},
		{
			name: "order preserved",
			entries: []TranscriptEntry{
				{Text: "Hello, how are you?", Speaker: "John"},
				{Text: "I'm doing great, thanks!", Speaker: "Jane"},
				{Text: "Let's begin."},
			},
			want: "John: Hello, how are you?\n\nJane: I'm doing great, thanks!\n\nUnknown: Let's begin.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTranscript(tt.entries))
		})
	}
}

func TestParsePayload(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		body := []byte(`{
			"meeting": {"id": "m-42", "title": "Kickoff", "call_url": "https://fathom.video/calls/42"},
			"calendar_invitees": [{"email": "", "name": "Nobody"}, {"email": "client@acme.test", "name": "Client"}],
			"transcript": [{"text": "We need a service agreement", "speaker": "Client"}],
			"summary": "short"
		}`)

		payload, err := ParsePayload(body)
		require.NoError(t, err)
		assert.Equal(t, "m-42", payload.Meeting.ID)
		assert.Equal(t, "client@acme.test", payload.ProspectEmail())

		meta := payload.RunMetadata()
		assert.Equal(t, "Kickoff", meta.String("meeting_title"))
		assert.Equal(t, "client@acme.test", meta.String("prospect_email"))
		assert.Equal(t, "short", meta.String("summary"))
		assert.NotContains(t, meta, "notes")
	})

	t.Run("missing meeting id", func(t *testing.T) {
		_, err := ParsePayload([]byte(`{"meeting": {"title": "x"}}`))
		var perr *PayloadError
		require.ErrorAs(t, err, &perr)
		assert.NotEmpty(t, perr.Problems)
	})

	t.Run("empty meeting id", func(t *testing.T) {
		_, err := ParsePayload([]byte(`{"meeting": {"id": ""}}`))
		require.Error(t, err)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := ParsePayload([]byte(`not json`))
		require.Error(t, err)
	})
}

func TestFathomClient_FetchTranscript(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/meetings/m-7", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transcript":[{"text":"hello","speaker":"A"},{"text":"bye"}]}`))
	}))
	defer srv.Close()

	client := NewFathomClient(FathomConfig{BaseURL: srv.URL + "/", APIKey: "key-1"}, logger)
	require.NotNil(t, client)

	transcript, err := client.FetchTranscript(context.Background(), "m-7")
	require.NoError(t, err)
	assert.Equal(t, "A: hello\n\nUnknown: bye", transcript)
}

func TestFathomClient_Errors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	assert.Nil(t, NewFathomClient(FathomConfig{}, logger))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewFathomClient(FathomConfig{BaseURL: srv.URL, APIKey: "key"}, logger)
	_, err := client.FetchTranscript(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
