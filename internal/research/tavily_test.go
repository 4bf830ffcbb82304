package research

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTavilyClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "key-1", req.APIKey)
		assert.Equal(t, "advanced", req.SearchDepth)
		assert.True(t, req.IncludeAnswer)
		assert.Equal(t, 10, req.MaxResults)

		_, _ = w.Write([]byte(`{
			"answer": "TCPA requires prior express consent.",
			"results": [
				{"title": "FCC TCPA", "url": "https://fcc.gov/tcpa", "content": "rules"},
				{"title": "47 U.S.C. 227", "url": "https://law.cornell.edu/227", "content": "statute"}
			]
		}`))
	}))
	defer srv.Close()

	client := NewTavilyClient(Config{APIKey: "key-1", BaseURL: srv.URL}, testLogger())
	result, err := client.Search(context.Background(), "autodialer consent")
	require.NoError(t, err)

	assert.Equal(t, "TCPA requires prior express consent.", result.Synthesis)
	require.Len(t, result.Citations, 2)
	assert.Equal(t, "statute", result.Citations[1].Snippet)
	assert.Equal(t, []string{"https://fcc.gov/tcpa", "https://law.cornell.edu/227"}, result.Sources)
}

func TestTavilyClient_NoKey(t *testing.T) {
	client := NewTavilyClient(Config{}, testLogger())

	result, err := client.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, result.Citations)
	assert.NotEmpty(t, result.Synthesis)
}

func TestTavilyClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewTavilyClient(Config{APIKey: "k", BaseURL: srv.URL}, testLogger())
	_, err := client.Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
