// Package lightrag is an HTTP client for a LightRAG server. It covers the
// three endpoints the knowledge base uses: /query, /documents/text and
// /health.
package lightrag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paperbase/paperbase/internal/kb"
	"github.com/paperbase/paperbase/internal/log"
)

var (
	// ErrServerError indicates a non-2xx response from the LightRAG server.
	ErrServerError = errors.New("lightrag server error")

	// ErrUnauthorized indicates the API key was rejected.
	ErrUnauthorized = errors.New("lightrag authentication failed")
)

const defaultTimeout = 120 * time.Second

// Client talks to a LightRAG server over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Used by tests and by
// callers that need custom transport settings.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// NewClient creates a LightRAG client for the given base URL.
func NewClient(baseURL string, logger log.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid lightrag base URL %q", baseURL)
	}
	if logger == nil {
		logger = log.NewNop()
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type queryRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
}

type queryResponse struct {
	Response string `json:"response"`
}

type insertRequest struct {
	Text string `json:"text"`
}

type insertResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Query sends a natural-language question to POST /query.
func (c *Client) Query(ctx context.Context, query, mode string) (kb.QueryResponse, error) {
	body, err := c.post(ctx, "/query", queryRequest{Query: query, Mode: mode})
	if err != nil {
		return kb.QueryResponse{}, err
	}

	var qr queryResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return kb.QueryResponse{}, fmt.Errorf("decoding query response: %w", err)
	}
	return kb.QueryResponse{Response: qr.Response, Status: "success"}, nil
}

// Insert stores text via POST /documents/text.
func (c *Client) Insert(ctx context.Context, text string) (kb.InsertResponse, error) {
	body, err := c.post(ctx, "/documents/text", insertRequest{Text: text})
	if err != nil {
		return kb.InsertResponse{}, err
	}

	var ir insertResponse
	if err := json.Unmarshal(body, &ir); err != nil {
		return kb.InsertResponse{}, fmt.Errorf("decoding insert response: %w", err)
	}
	return kb.InsertResponse{Status: ir.Status, Message: ir.Message}, nil
}

// Health checks GET /health. A nil return means the server is reachable
// and reported healthy.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("lightrag health check: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", ErrServerError, resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lightrag request %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	// 1 MiB cap keeps a misbehaving server from exhausting memory.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnauthorized, path, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.logger.Warn("lightrag request failed",
			"path", path, "status", resp.StatusCode, "body", truncate(string(body), 256))
		return nil, fmt.Errorf("%w: %s returned %d", ErrServerError, path, resp.StatusCode)
	}
	return body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
