// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the retrying JSON client used for the
// bibliographic API.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"
)

// ErrRetriesExhausted wraps the last error once the attempt budget is spent.
var ErrRetriesExhausted = errors.New("retries exhausted")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("GET %s returned HTTP %d: %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("GET %s returned HTTP %d", e.URL, e.StatusCode)
}

// IsRetryable reports whether err is a rate-limit (429) or server (5xx)
// response. Network errors and every other status are not retried.
func IsRetryable(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
}

// RetryPolicy decides how many attempts a call gets and how long to wait
// between them.
//
// The wait after attempt n (1-based) is Multiplier * 2^(n-1) seconds,
// clamped to [MinDelay, MaxDelay]. With the defaults that is
// 5s, 5s, 8s, 16s, 32s, 64s, 120s, 120s, ...
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int

	// Multiplier scales the exponential term, in units of Unit.
	Multiplier float64

	// MinDelay is the floor applied to every wait.
	MinDelay time.Duration

	// MaxDelay caps every wait.
	MaxDelay time.Duration

	// Unit is the duration one multiplier step represents (default 1s).
	// Tests shrink it to avoid real sleeps.
	Unit time.Duration

	// Retryable classifies errors. Nil means IsRetryable.
	Retryable func(error) bool
}

// DefaultRetryPolicy returns the policy used against Semantic Scholar.
func DefaultRetryPolicy(maxAttempts int) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		Multiplier:  2,
		MinDelay:    5 * time.Second,
		MaxDelay:    120 * time.Second,
		Unit:        time.Second,
		Retryable:   IsRetryable,
	}
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	unit := p.Unit
	if unit <= 0 {
		unit = time.Second
	}
	d := time.Duration(p.Multiplier * math.Pow(2, float64(attempt-1)) * float64(unit))
	if d < p.MinDelay {
		d = p.MinDelay
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// ShouldRetry reports whether err warrants another attempt.
func (p RetryPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if p.Retryable == nil {
		return IsRetryable(err)
	}
	return p.Retryable(err)
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. onRetry is called before each wait.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error, onRetry func(attempt int, delay time.Duration, err error)) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if !p.ShouldRetry(err) {
			return err
		}
		if attempt >= maxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
		}

		delay := p.Backoff(attempt)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
