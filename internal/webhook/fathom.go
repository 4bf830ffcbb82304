package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultFathomBaseURL is the public Fathom API root
const DefaultFathomBaseURL = "https://api.fathom.video/v1"

// FathomClient fetches transcripts for meetings whose webhook arrived without one
type FathomClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// FathomConfig holds Fathom API settings
type FathomConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewFathomClient creates a Fathom API client. It returns nil when no API key is configured,
// which disables the transcript fallback.
func NewFathomClient(cfg FathomConfig, logger *slog.Logger) *FathomClient {
	if cfg.APIKey == "" {
		return nil
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultFathomBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &FathomClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FetchTranscript returns the normalized transcript of meetingID.
func (c *FathomClient) FetchTranscript(ctx context.Context, meetingID string) (string, error) {
	endpoint := fmt.Sprintf("%s/meetings/%s", c.baseURL, url.PathEscape(meetingID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build fathom request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call fathom api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("fathom api returned status %d", resp.StatusCode)
	}

	var body struct {
		Transcript []TranscriptEntry `json:"transcript"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode fathom response: %w", err)
	}

	c.logger.Debug("Fetched transcript from Fathom API",
		slog.String("meeting_id", meetingID),
		slog.Int("entries", len(body.Transcript)),
	)

	return NormalizeTranscript(body.Transcript), nil
}
