// Package objectstore provides read access to the passage store that holds
// full source documents referenced by search hits.
package objectstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when the store has no passage for the given ID.
var ErrNotFound = errors.New("passage not found")

// maxPassageSize limits a single passage body.
const maxPassageSize = 2 * 1024 * 1024 // 2MB

// Passage is a stored source document.
type Passage struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Locator string `json:"locator"`
}

// Client fetches passages over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a passage store client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Fetch retrieves a passage by ID. Returns ErrNotFound for missing passages.
func (c *Client) Fetch(ctx context.Context, id string) (*Passage, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("passage ID is required")
	}

	reqURL := c.baseURL + "/passages/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create HTTP request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("passage %s: %w", id, ErrNotFound)
	default:
		return nil, fmt.Errorf("passage store error (status %d)", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPassageSize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var passage Passage
	if err := json.Unmarshal(body, &passage); err != nil {
		return nil, fmt.Errorf("parse passage: %w", err)
	}
	if passage.ID == "" {
		passage.ID = id
	}

	return &passage, nil
}
