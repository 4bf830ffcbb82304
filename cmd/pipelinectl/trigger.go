package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cuongbtq/meeting-pipeline/internal/api/dto"
	"github.com/cuongbtq/meeting-pipeline/internal/webhook"
	"github.com/spf13/cobra"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Start a run through the API",
	Long:  "Posts a transcript to the manual trigger endpoint. With --payload a webhook body is signed and posted to the webhook endpoint instead.",
	RunE:  runTrigger,
}

var (
	triggerAPIURL         string
	triggerTranscriptFile string
	triggerTitle          string
	triggerPayloadFile    string
	triggerSecret         string
	triggerTimeout        time.Duration
)

func init() {
	triggerCmd.Flags().StringVar(&triggerAPIURL, "api-url", "http://localhost:8080", "Base URL of the API service")
	triggerCmd.Flags().StringVarP(&triggerTranscriptFile, "transcript", "t", "", "Path to the transcript text, - for stdin")
	triggerCmd.Flags().StringVar(&triggerTitle, "title", "", "Meeting title")
	triggerCmd.Flags().StringVarP(&triggerPayloadFile, "payload", "p", "", "Path to a webhook payload to sign and post")
	triggerCmd.Flags().StringVarP(&triggerSecret, "secret", "s", "", "Shared secret (defaults to FATHOM_WEBHOOK_SECRET)")
	triggerCmd.Flags().DurationVar(&triggerTimeout, "timeout", 30*time.Second, "HTTP timeout")

	rootCmd.AddCommand(triggerCmd)
}

func runTrigger(cmd *cobra.Command, _ []string) error {
	var (
		path    string
		body    []byte
		headers = map[string]string{"Content-Type": "application/json"}
	)

	switch {
	case triggerPayloadFile != "" && triggerTranscriptFile != "":
		return fmt.Errorf("--payload and --transcript are mutually exclusive")
	case triggerPayloadFile != "":
		secret := triggerSecret
		if secret == "" {
			secret = os.Getenv("FATHOM_WEBHOOK_SECRET")
		}
		if secret == "" {
			return fmt.Errorf("--secret is required with --payload")
		}

		payload, err := readInput(cmd, triggerPayloadFile)
		if err != nil {
			return err
		}
		path = "/api/v1/webhooks/fathom"
		body = payload
		headers[webhook.DefaultSignatureHeader] = webhook.Sign(payload, secret)
	case triggerTranscriptFile != "":
		transcript, err := readInput(cmd, triggerTranscriptFile)
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(dto.TestRunRequest{
			Transcript:   string(transcript),
			MeetingTitle: triggerTitle,
		})
		if err != nil {
			return err
		}
		path = "/api/v1/test/run"
		body = encoded
	default:
		return fmt.Errorf("one of --transcript or --payload is required")
	}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, strings.TrimRight(triggerAPIURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := (&http.Client{Timeout: triggerTimeout}).Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var accepted dto.WebhookResponse
	if err := json.Unmarshal(respBody, &accepted); err != nil {
		return fmt.Errorf("unexpected response: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run_id: %s\n", accepted.RunID)
	if accepted.Message != "" {
		fmt.Fprintf(out, "message: %s\n", accepted.Message)
	}
	return nil
}
