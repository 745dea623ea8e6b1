// Package analysis вызывает внешнюю serverless-функцию анализа договоров.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"dealdocs/internal/config"
)

type Operation string

const (
	OperationSummarize Operation = "summarize"
	OperationExplain   Operation = "explain"
	OperationAnalyze   Operation = "analyze"
)

func (o Operation) Valid() bool {
	switch o {
	case OperationSummarize, OperationExplain, OperationAnalyze:
		return true
	}
	return false
}

var (
	ErrNotConfigured = errors.New("analysis function is not configured")
	ErrRateLimited   = errors.New("analysis rate limit exceeded")
)

const maxResponseBytes = 4 << 20

type Request struct {
	Operation  Operation `json:"operation"`
	Content    string    `json:"content"`
	DocumentID string    `json:"documentId"`
	VersionID  string    `json:"versionId"`
}

// Client отправляет запросы функции анализа с ограничением частоты на процесс
type Client struct {
	httpClient *http.Client
	url        string
	apiKey     string
	limiter    *rate.Limiter
}

func NewClient(cfg config.AnalysisConfig) *Client {
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        cfg.FunctionURL,
		apiKey:     cfg.APIKey,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

// Analyze возвращает текстовый результат функции.
// Ответ непрозрачен: берется поле summary или explanation, иначе тело целиком.
func (c *Client) Analyze(ctx context.Context, req Request) (string, error) {
	if c.url == "" {
		return "", ErrNotConfigured
	}
	if !c.limiter.Allow() {
		return "", ErrRateLimited
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode analysis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build analysis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read analysis response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("analysis function returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	return extractResult(raw), nil
}

func extractResult(raw []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err == nil {
		for _, key := range []string{"summary", "explanation"} {
			if s, ok := payload[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return string(raw)
}
