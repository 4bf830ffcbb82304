// Package research runs web searches that back the legal research deliverable.
package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultTavilyURL is the Tavily search endpoint
const DefaultTavilyURL = "https://api.tavily.com/search"

// Citation is one search hit
type Citation struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Result is a synthesized answer with its sources
type Result struct {
	Synthesis string
	Citations []Citation
	Sources   []string
}

// Config holds Tavily settings
type Config struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	Timeout    time.Duration
}

// TavilyClient searches the web through the Tavily API
type TavilyClient struct {
	apiKey     string
	endpoint   string
	maxResults int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTavilyClient creates a TavilyClient
func NewTavilyClient(cfg Config, logger *slog.Logger) *TavilyClient {
	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = DefaultTavilyURL
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &TavilyClient{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
	MaxResults    int    `json:"max_results"`
}

type searchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search runs an advanced search for query.
// Without an API key it returns a placeholder synthesis instead of failing, so the legal research
// document is still produced.
func (c *TavilyClient) Search(ctx context.Context, query string) (*Result, error) {
	if c.apiKey == "" {
		c.logger.Warn("Tavily API key not configured, returning empty research")
		return &Result{Synthesis: "Web search unavailable. Please configure the research API key."}, nil
	}

	body, err := json.Marshal(searchRequest{
		APIKey:        c.apiKey,
		Query:         query,
		SearchDepth:   "advanced",
		IncludeAnswer: true,
		MaxResults:    c.maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call tavily: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tavily returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var data searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode tavily response: %w", err)
	}

	result := &Result{
		Synthesis: data.Answer,
		Citations: make([]Citation, 0, len(data.Results)),
		Sources:   make([]string, 0, len(data.Results)),
	}
	if result.Synthesis == "" {
		result.Synthesis = "No answer provided"
	}

	for _, r := range data.Results {
		result.Citations = append(result.Citations, Citation{Title: r.Title, URL: r.URL, Snippet: r.Content})
		result.Sources = append(result.Sources, r.URL)
	}

	c.logger.Info("Web research completed",
		slog.Int("citations", len(result.Citations)),
	)

	return result, nil
}
