// Package client provides the HTTP transport shared by all PyPI resolvers.
//
// A Client owns one lazily-built http.Client. The first request creates it;
// Close releases its pooled connections and the next request, if any, builds
// a fresh one. Every completed request is classified into exactly one of:
// success (2xx, body returned), not found (404, *HTTPError), upstream error
// (other non-2xx, *HTTPError with truncated body), or transient failure
// (network-level, *RequestError wrapping the cause).
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultTimeout bounds every request issued through a Client.
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent identifies this module to registries that block
	// default-looking clients.
	DefaultUserAgent = "git-pkgs-pypi/1.0"

	// maxErrorBody caps how much of an error response is kept for diagnostics.
	maxErrorBody = 1024
)

// Client is a reusable HTTP client with a configured timeout and redirect
// policy. The zero value is not usable; construct with NewClient or
// DefaultClient. Safe for concurrent use.
type Client struct {
	timeout         time.Duration
	followRedirects bool
	userAgent       string

	mu     sync.Mutex
	http   *http.Client
	custom *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithFollowRedirects sets whether redirects are followed. Default true.
func WithFollowRedirects(follow bool) Option {
	return func(c *Client) {
		c.followRedirects = follow
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHTTPClient sets a custom underlying HTTP client. The timeout and
// redirect options are ignored when one is supplied.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.custom = h
	}
}

// NewClient creates a new client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		timeout:         DefaultTimeout,
		followRedirects: true,
		userAgent:       DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultClient returns a client with sensible defaults:
// 10s timeout, redirects followed, no retries.
func DefaultClient() *Client {
	return NewClient()
}

// Open eagerly builds the underlying HTTP client. Calling it is optional;
// the first request opens the client implicitly.
func (c *Client) Open() {
	c.httpClient()
}

// Close releases all pooled connections. Safe to call multiple times; a
// request after Close lazily re-opens the client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http != nil {
		c.http.CloseIdleConnections()
		c.http = nil
	}
}

func (c *Client) httpClient() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http == nil {
		if c.custom != nil {
			c.http = c.custom
		} else {
			c.http = &http.Client{Timeout: c.timeout}
			if !c.followRedirects {
				c.http.CheckRedirect = func(req *http.Request, via []*http.Request) error {
					return http.ErrUseLastResponse
				}
			}
		}
	}
	return c.http
}

// Get performs a GET request and returns the response body on 2xx.
// Extra headers override the defaults for the same key.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, &RequestError{URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &RequestError{URL: rawURL, Err: err}
		}
		return body, nil

	case resp.StatusCode == http.StatusNotFound:
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: rawURL}

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: rawURL, Body: string(body)}
	}
}

// GetJSON performs a GET request and decodes the 2xx response body into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, headers map[string]string, v any) error {
	if headers == nil {
		headers = map[string]string{"Accept": "application/json"}
	}
	body, err := c.Get(ctx, rawURL, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding response from %s: %w", rawURL, err)
	}
	return nil
}
