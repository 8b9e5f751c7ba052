// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pdiddy/review-matrix/internal/observability"
)

const (
	// DefaultTimeout is the per-attempt request timeout.
	DefaultTimeout = 30 * time.Second

	// maxBodyBytes bounds decoded response bodies.
	maxBodyBytes = 10 << 20

	// maxErrorBody bounds the response text kept on a StatusError.
	maxErrorBody = 512
)

// Client issues GET requests against a JSON API and applies a RetryPolicy.
// It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	policy  RetryPolicy
	limiter *rate.Limiter
	header  http.Header
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithHeader sets a header on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if value != "" {
			c.header.Set(key, value)
		}
	}
}

// WithRateLimit throttles requests to rps per second. Zero disables it.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records request and retry counts.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a Client rooted at baseURL.
func NewClient(baseURL string, policy RetryPolicy, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		policy:  policy,
		header:  make(http.Header),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON requests baseURL/endpoint with the given query parameters and
// decodes the JSON body into out. 429 and 5xx responses are retried per the
// policy; any other failure is returned immediately.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	reqURL := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	return c.policy.Do(ctx,
		func(attempt int) error {
			return c.getOnce(ctx, endpoint, reqURL, out)
		},
		func(attempt int, delay time.Duration, err error) {
			c.metrics.ObserveRetry()
			c.logger.Warn().
				Err(err).
				Dur("delay", delay).
				Int("attempt", attempt).
				Str("endpoint", endpoint).
				Msgf("Rate limit or server error hit. Retrying in %s (attempt %d)", delay, attempt)
		},
	)
}

func (c *Client) getOnce(ctx context.Context, endpoint, reqURL string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	c.metrics.ObserveHTTP(endpointLabel(endpoint), resp.StatusCode)
	c.logger.Debug().Str("endpoint", endpoint).Int("status", resp.StatusCode).Msg("api response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			StatusCode: resp.StatusCode,
			URL:        reqURL,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return nil
}

// endpointLabel drops the identifier from paths like "paper/DOI:10.1/x" so
// metric labels stay bounded.
func endpointLabel(endpoint string) string {
	if i := strings.Index(endpoint, ":"); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}
