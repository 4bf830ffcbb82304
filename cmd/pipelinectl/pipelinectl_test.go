package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuongbtq/meeting-pipeline/internal/api/dto"
	"github.com/cuongbtq/meeting-pipeline/internal/webhook"
	"github.com/cuongbtq/meeting-pipeline/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags() {
	signPayloadFile, signSecret, signVerify = "-", "", ""
	triggerAPIURL, triggerTranscriptFile, triggerTitle = "http://localhost:8080", "", ""
	triggerPayloadFile, triggerSecret, triggerTimeout = "", "", 30*time.Second
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(bytes.NewBufferString(stdin))
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSignCommand(t *testing.T) {
	payload := `{"meeting":{"id":"m-1"}}`
	path := writeFile(t, "payload.json", payload)

	out, err := execute(t, "", "sign", "--payload", path, "--secret", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, webhook.Sign([]byte(payload), "s3cret")+"\n", out)

	out, err = execute(t, payload, "sign", "--secret", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, webhook.Sign([]byte(payload), "s3cret")+"\n", out)
}

func TestSignCommand_Verify(t *testing.T) {
	payload := `{"meeting":{"id":"m-1"}}`
	sig := webhook.Sign([]byte(payload), "s3cret")

	out, err := execute(t, payload, "sign", "--secret", "s3cret", "--verify", sig)
	require.NoError(t, err)
	assert.Contains(t, out, "signature valid")

	_, err = execute(t, payload, "sign", "--secret", "other", "--verify", sig)
	assert.ErrorIs(t, err, webhook.ErrSignatureMismatch)
}

func TestSignCommand_RequiresSecret(t *testing.T) {
	t.Setenv("FATHOM_WEBHOOK_SECRET", "")

	_, err := execute(t, "{}", "sign")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--secret")
}

func TestTriggerCommand_Transcript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/test/run", r.URL.Path)

		var req dto.TestRunRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Client: we need a proposal", req.Transcript)
		assert.Equal(t, "Kickoff", req.MeetingTitle)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dto.WebhookResponse{Success: true, RunID: "run-1"})
	}))
	defer srv.Close()

	path := writeFile(t, "transcript.txt", "Client: we need a proposal")

	out, err := execute(t, "", "trigger", "--api-url", srv.URL+"/", "--transcript", path, "--title", "Kickoff")
	require.NoError(t, err)
	assert.Equal(t, "run_id: run-1\n", out)
}

func TestTriggerCommand_SignedPayload(t *testing.T) {
	payload := `{"meeting":{"id":"m-9"}}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/webhooks/fathom", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.True(t, webhook.VerifySignature(body, r.Header.Get(webhook.DefaultSignatureHeader), "s3cret"))

		_ = json.NewEncoder(w).Encode(dto.WebhookResponse{Success: true, RunID: "run-9", Message: "Meeting already processed"})
	}))
	defer srv.Close()

	out, err := execute(t, payload, "trigger", "--api-url", srv.URL, "--payload", "-", "--secret", "s3cret")
	require.NoError(t, err)
	assert.Contains(t, out, "run_id: run-9")
	assert.Contains(t, out, "message: Meeting already processed")
}

func TestTriggerCommand_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Invalid signature"}`))
	}))
	defer srv.Close()

	_, err := execute(t, "", "trigger", "--api-url", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "one of --transcript or --payload")

	_, err = execute(t, "{}", "trigger", "--api-url", srv.URL, "--payload", "-", "--secret", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestMatchesRun(t *testing.T) {
	event := worker.ProgressEvent{RunID: "run-1", JobID: "job-1", Progress: 50}

	assert.True(t, matchesRun(event, ""))
	assert.True(t, matchesRun(event, "run-1"))
	assert.False(t, matchesRun(event, "run-2"))
}
