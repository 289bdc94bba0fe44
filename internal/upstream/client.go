// Package upstream provides the HTTP client used for all origin-site calls.
// Every request carries the fixed browser user-agent and referrer the origin
// expects, and a finite timeout.
package upstream

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// DefaultUserAgent mimics a desktop browser; the origin rejects obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"

// Client wraps http.Client with the headers the origin site requires.
type Client struct {
	http      *http.Client
	userAgent string
	referer   string
}

// New creates a client with the given identifying headers and timeout.
func New(userAgent, referer string, timeout time.Duration) *Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
		referer:   referer,
	}
}

// Get issues a GET with the client's identifying headers. The caller owns the
// response body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.Decorate(req)
	return c.http.Do(req)
}

// Decorate applies the client's identifying headers to an arbitrary request.
func (c *Client) Decorate(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}
}

// UserAgent returns the configured user-agent string.
func (c *Client) UserAgent() string { return c.userAgent }

// Referer returns the configured referrer.
func (c *Client) Referer() string { return c.referer }
