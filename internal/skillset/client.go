// Package skillset is a minimal client for the skillset session store's
// context API, served over a unix domain socket. The gate uses it to fetch
// the sql-permissions document scoped to one session and invocation.
package skillset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v5"
)

// ContextNameSQLPermissions is the context key the permission document is
// stored under.
const ContextNameSQLPermissions = "sql-permissions"

// Defaults match the skillset SDK: a short fixed pause between a small
// number of attempts, each with its own dial budget.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultAttempts   = 3
	DefaultRetryDelay = 100 * time.Millisecond
)

// maxContextBytes caps how much of a context value the client will read.
const maxContextBytes = 4 << 20

// ErrFetch marks any failure to retrieve a context value: the socket not
// accepting connections, a non-200 response, or a truncated read.
var ErrFetch = errors.New("context fetch failed")

// Client talks to one session store socket. A zero-value Client is not
// usable; construct with New.
type Client struct {
	socketPath string
	timeout    time.Duration
	attempts   uint
	retryDelay time.Duration
	httpClient *http.Client
}

// Option adjusts client behavior.
type Option func(*Client)

// WithTimeout bounds each attempt, connection included.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAttempts sets the total number of attempts, first try included.
func WithAttempts(n uint) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithRetryDelay sets the fixed pause between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}

// New returns a client for the session store listening on socketPath.
func New(socketPath string, opts ...Option) *Client {
	c := &Client{
		socketPath: socketPath,
		timeout:    DefaultTimeout,
		attempts:   DefaultAttempts,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient = &http.Client{
		Timeout: c.timeout,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				d := net.Dialer{Timeout: c.timeout}
				return d.DialContext(ctx, "unix", c.socketPath)
			},
		},
	}
	return c
}

// GetContext fetches the raw JSON value stored under name for the given
// session and invocation. Transient failures are retried with a fixed delay
// up to the configured attempt count; whatever error remains is wrapped in
// ErrFetch.
func (c *Client) GetContext(ctx context.Context, sessionID, invocationID, name string) ([]byte, error) {
	q := url.Values{}
	q.Set("session_id", sessionID)
	q.Set("invocation_id", invocationID)
	q.Set("name", name)
	endpoint := &url.URL{Scheme: "http", Host: "unix", Path: "/context", RawQuery: q.Encode()}

	var body []byte
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.FixedDelay),
	)
	err := r.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("dial session store: %w", err)
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxContextBytes))
		if err != nil {
			return fmt.Errorf("read context %q: %w", name, err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("session store returned %d for context %q: %s",
				resp.StatusCode, name, strings.TrimSpace(string(data)))
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return body, nil
}
