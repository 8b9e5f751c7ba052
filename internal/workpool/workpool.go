// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workpool runs a function over a slice with bounded concurrency and
// returns results in input order.
package workpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultWidth is used when the configured width is not positive.
	DefaultWidth = 5

	// MaxWidth caps the number of concurrent workers.
	MaxWidth = 20
)

// Width clamps n to [1, MaxWidth], mapping non-positive values to
// DefaultWidth.
func Width(n int) int {
	switch {
	case n <= 0:
		return DefaultWidth
	case n > MaxWidth:
		return MaxWidth
	default:
		return n
	}
}

// Map calls fn for every item using at most width workers. The result for
// items[i] is stored at index i regardless of completion order. fn must
// handle its own failures; Map only stops early when ctx is cancelled, in
// which case items not yet started keep their zero value and ctx.Err() is
// returned.
func Map[T, R any](ctx context.Context, items []T, width int, fn func(ctx context.Context, i int, item T) R) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	var g errgroup.Group
	g.SetLimit(Width(width))

	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = fn(ctx, i, item)
			return nil
		})
	}
	_ = g.Wait()

	return results, ctx.Err()
}
