package fetch

import (
	"context"
	"net/http"
	"time"
)

// Options configures the HTTP client.
type Options struct {
	// UserAgent is sent on every request.
	UserAgent string

	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 10
	MaxIdleConnsPerHost int
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		UserAgent:           "packup",
		MaxIdleConnsPerHost: 10,
	}
}

// Client is an HTTP client for resolving and transferring mod files.
// It follows redirects; the URL reached after the redirect chain is
// exposed on the response so callers can derive the final filename.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = 10
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "packup"
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		client: &http.Client{Transport: transport},
		opts:   opts,
	}
}

// do issues a request with the client's user agent, following redirects.
func (c *Client) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	return c.client.Do(req)
}

// Head issues a HEAD request and returns the response. The response
// URL reflects any redirects that were followed.
func (c *Client) Head(ctx context.Context, url string) (*http.Response, error) {
	return c.do(ctx, http.MethodHead, url)
}

// Get issues a GET request and returns the response. The response URL
// reflects any redirects that were followed; the caller owns the body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, url)
}
