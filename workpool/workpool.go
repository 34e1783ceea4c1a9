// Package workpool runs independent tasks on a bounded number of goroutines.
package workpool

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit is the pool size used when the caller passes limit <= 0.
func DefaultLimit() int {
	return runtime.NumCPU()
}

// Run calls fn for every task with at most limit calls in flight, waiting
// delay between launches (skipped for the first task). It stops launching
// new tasks once ctx is cancelled, waits for the running ones, and returns
// the first error any call returned. Cancellation alone is not an error;
// callers check ctx.Err() themselves.
func Run[T any](ctx context.Context, tasks []T, limit int, delay time.Duration, fn func(context.Context, T) error) error {
	if limit <= 0 {
		limit = DefaultLimit()
	}

	var g errgroup.Group
	g.SetLimit(limit)

launch:
	for i, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				break launch
			case <-time.After(delay):
			}
		}
		g.Go(func() error {
			return fn(ctx, task)
		})
	}

	return g.Wait()
}
