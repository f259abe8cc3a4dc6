// Package fetch retrieves pages over HTTP and drives the bounded worker pool
// that turns frontier URLs into page artifacts.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"corpuscrawler/internal/crawl"
)

// ClientConfig holds HTTP-level settings for the fetcher.
type ClientConfig struct {
	// UserAgent identifies the crawler to origin servers.
	UserAgent string
	// Timeout bounds one request end to end (default 30s).
	Timeout time.Duration
	// MaxRedirects bounds redirect chains (default 5).
	MaxRedirects int
}

const (
	defaultUserAgent    = "corpuscrawler/1.0"
	defaultFetchTimeout = 30 * time.Second
	defaultMaxRedirects = 5
)

// Client implements crawl.Fetcher over resty. Retries are the worker's job,
// so the underlying client performs none of its own.
type Client struct {
	http  *resty.Client
	clock crawl.Clock
}

// NewClient builds a fetch client with the configured limits.
func NewClient(cfg ClientConfig, clock crawl.Clock) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFetchTimeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}
	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(cfg.MaxRedirects)).
		SetRetryCount(0)
	return &Client{http: httpClient, clock: clock}
}

// Fetch performs a single GET. Non-2xx statuses are returned in the response,
// not as errors; only transport failures produce an error.
func (c *Client) Fetch(ctx context.Context, request crawl.FetchRequest) (crawl.FetchResponse, error) {
	start := c.clock.Now()
	resp, err := c.http.R().SetContext(ctx).Get(request.URL)
	elapsed := c.clock.Now().Sub(start)
	if err != nil {
		return crawl.FetchResponse{URL: request.URL, Duration: elapsed},
			fmt.Errorf("fetch %s: %w", request.URL, err)
	}
	return crawl.FetchResponse{
		URL:         request.URL,
		StatusCode:  resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
		Duration:    elapsed,
	}, nil
}
