// Package retrieval provides a thin HTTP adapter for the vector search service.
// It hides provider differences behind a single query call returning ranked hits.
package retrieval

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

	"github.com/calv/inquest/internal/llm"
)

// maxResponseSize limits the search response body size.
const maxResponseSize = 4 * 1024 * 1024 // 4MB

// Hit is one ranked search result.
type Hit struct {
	SourceID string  `json:"id"`
	Score    float64 `json:"score"`
	Snippet  string  `json:"snippet"`
	Title    string  `json:"title"`
	Locator  string  `json:"locator"`
}

// Client queries the vector search service over HTTP.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig llm.RetryConfig
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg llm.RetryConfig) Option {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a search client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		retryConfig: llm.DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchResponse struct {
	Hits []Hit `json:"hits"`
}

// Search returns the top-K ranked hits for a query, retrying transient
// failures with the same backoff policy the completion client uses.
func (c *Client) Search(ctx context.Context, query string, topK int) ([]Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	if topK <= 0 {
		topK = 10
	}

	var lastErr error
	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		hits, err := c.doSearch(ctx, query, topK)
		if err == nil {
			return hits, nil
		}

		lastErr = err
		if llm.IsFatal(err) {
			return nil, err
		}

		if attempt < c.retryConfig.MaxAttempts {
			backoff := time.Duration(float64(c.retryConfig.BackoffBase) * float64(int(1)<<uint(attempt-1)))
			if backoff > c.retryConfig.MaxBackoff {
				backoff = c.retryConfig.MaxBackoff
			}
			c.logger.Debug("search request failed, retrying",
				"attempt", attempt, "backoff", backoff, "error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("search failed after %d attempts: %w", c.retryConfig.MaxAttempts, lastErr)
}

func (c *Client) doSearch(ctx context.Context, query string, topK int) ([]Hit, error) {
	body, err := json.Marshal(searchRequest{Query: query, TopK: topK})
	if err != nil {
		return nil, llm.NewFatalError(fmt.Errorf("marshal search request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, llm.NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, llm.NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, llm.NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, llm.NewTransientError(fmt.Errorf("search API error (status %d)", resp.StatusCode))
	default:
		return nil, llm.NewFatalError(fmt.Errorf("search API error (status %d)", resp.StatusCode))
	}

	var parsed searchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, llm.NewFatalError(fmt.Errorf("parse search response: %w", err))
	}

	return parsed.Hits, nil
}
