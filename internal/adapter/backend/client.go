// Package backend provides the HTTP client for the upstream POS API.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vendapos/pos-edge-cache/internal/port"
)

// Client implements port.Backend over plain HTTP
type Client struct {
	baseURL    string
	healthPath string
	httpClient *http.Client
}

// Ensure Client implements port.Backend
var _ port.Backend = (*Client)(nil)

// ClientConfig contains backend client configuration
type ClientConfig struct {
	BaseURL    string
	HealthPath string
	Timeout    time.Duration
}

// NewClient creates a new backend client
func NewClient(cfg *ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	healthPath := cfg.HealthPath
	if healthPath == "" {
		healthPath = "/health"
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		healthPath: healthPath,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Do issues a request against the backend. A non-2xx status is returned in
// the response, not as an error; only transport failures error.
func (c *Client) Do(ctx context.Context, method, endpoint string, body []byte) (*port.BackendResponse, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &port.BackendResponse{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        respBody,
	}, nil
}

// Ping probes backend reachability via the health endpoint
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.Do(ctx, http.MethodGet, c.healthPath, nil)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("health check returned status %d", resp.Status)
	}
	return nil
}

// url joins the base URL with an endpoint path
func (c *Client) url(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL + endpoint
}
