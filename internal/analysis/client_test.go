package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealdocs/internal/config"
)

func newTestClient(url string, perMinute int) *Client {
	return NewClient(config.AnalysisConfig{
		FunctionURL:   url,
		APIKey:        "secret-key",
		Timeout:       5 * time.Second,
		RatePerMinute: perMinute,
	})
}

func TestAnalyzeSendsRequestAndReturnsSummary(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"summary":"Short NDA between two parties"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 10)
	result, err := c.Analyze(context.Background(), Request{
		Operation:  OperationSummarize,
		Content:    "This agreement...",
		DocumentID: "doc-1",
		VersionID:  "ver-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Short NDA between two parties", result)
	assert.Equal(t, OperationSummarize, got.Operation)
	assert.Equal(t, "This agreement...", got.Content)
	assert.Equal(t, "doc-1", got.DocumentID)
	assert.Equal(t, "ver-1", got.VersionID)
}

func TestAnalyzeResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "explanation", body: `{"explanation":"Clause 4 limits liability"}`, want: "Clause 4 limits liability"},
		{name: "unknown json", body: `{"analysis":{"risk":"low"}}`, want: `{"analysis":{"risk":"low"}}`},
		{name: "plain text", body: "free form answer", want: "free form answer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			result, err := newTestClient(srv.URL, 10).Analyze(context.Background(), Request{Operation: OperationExplain})
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestAnalyzeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 10).Analyze(context.Background(), Request{Operation: OperationAnalyze})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestAnalyzeRateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"summary":"ok"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 1)
	_, err := c.Analyze(context.Background(), Request{Operation: OperationSummarize})
	require.NoError(t, err)

	_, err = c.Analyze(context.Background(), Request{Operation: OperationSummarize})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAnalyzeNotConfigured(t *testing.T) {
	_, err := newTestClient("", 10).Analyze(context.Background(), Request{Operation: OperationSummarize})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestOperationValid(t *testing.T) {
	assert.True(t, OperationSummarize.Valid())
	assert.True(t, OperationExplain.Valid())
	assert.True(t, OperationAnalyze.Valid())
	assert.False(t, Operation("translate").Valid())
}
