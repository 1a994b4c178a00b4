// Package httpclient is the HTTP transport shared by collectors. Every
// request waits on a per-client limiter that enforces a minimum delay
// between requests, and every failure is classified as an upstream error.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sspi-index/sspi-engine/internal/errkind"
	"github.com/sspi-index/sspi-engine/internal/logger"
)

const (
	// DefaultMinDelay is the minimum gap between two requests.
	DefaultMinDelay = 500 * time.Millisecond

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 60 * time.Second

	// MaxBodySize caps response bodies.
	MaxBodySize = 64 << 20

	userAgent = "sspi-engine/1 (+https://sspi.world)"
)

// Config configures a Client.
type Config struct {
	// BaseURL is prefixed to relative request paths.
	BaseURL string

	// MinDelay is the minimum gap between requests. Zero means the
	// default; a negative value disables throttling.
	MinDelay time.Duration

	// Timeout bounds each request. Zero means the default.
	Timeout time.Duration

	// HTTPClient overrides the underlying client (tests).
	HTTPClient *http.Client
}

// Client performs rate-limited GET requests against one provider.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a client from cfg.
func New(cfg Config) *Client {
	delay := cfg.MinDelay
	if delay == 0 {
		delay = DefaultMinDelay
	}
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.base
}

// URL resolves path and query against the base URL. Absolute URLs are
// returned unchanged apart from the query.
func (c *Client) URL(path string, query url.Values) string {
	u := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		u = c.base + "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + query.Encode()
	}
	return u
}

// Get fetches path and returns the response body.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	target := c.URL(path, query)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errkind.Upstream.Wrap(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.5")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errkind.Upstream.Wrap(fmt.Errorf("GET %s: %w", target, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, errkind.Upstream.Wrap(fmt.Errorf("read %s: %w", target, err))
	}
	logger.Debug("GET %s -> %d (%d bytes, %s)", target, resp.StatusCode, len(body), time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errkind.Upstream.Wrap(&StatusError{
			StatusCode: resp.StatusCode,
			URL:        target,
			Body:       snippet(body),
		})
	}
	return body, nil
}

// GetJSON fetches path and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, v any) error {
	body, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errkind.Upstream.Wrap(fmt.Errorf("decode %s: %w", c.URL(path, query), err))
	}
	return nil
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
