// Package client provides a typed client SDK for the sqlgate validation
// service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"git.cscs.ch/openchami/chamicore-sqlgate/pkg/types"
)

const (
	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 4 << 20
)

// Config holds sqlgate client configuration.
type Config struct {
	// SocketPath is the unix domain socket the service listens on.
	SocketPath string
	// Timeout is the per-request timeout. Defaults to 30s.
	Timeout time.Duration
}

// Client is the typed SDK for the sqlgate validation API.
type Client struct {
	httpClient *http.Client
	socketPath string
}

// New creates a new sqlgate client.
func New(cfg Config) (*Client, error) {
	socketPath := strings.TrimSpace(cfg.SocketPath)
	if socketPath == "" {
		return nil, fmt.Errorf("client: SocketPath is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	dialer := &net.Dialer{Timeout: cfg.Timeout}
	return &Client{
		socketPath: socketPath,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					return dialer.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}, nil
}

// Validate submits SQL for authorization and returns the service's decision.
// Error responses from the service are returned as errors carrying the
// service's message; a denied verdict is a normal result, not an error.
func (c *Client) Validate(ctx context.Context, req types.ValidationRequest) (*types.EvaluationResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://unix/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("validating sql: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr types.ErrorResponse
		if jsonErr := json.Unmarshal(payload, &apiErr); jsonErr == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("validating sql: %s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("validating sql: unexpected status %d", resp.StatusCode)
	}

	var result types.EvaluationResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &result, nil
}
