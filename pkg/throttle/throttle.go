// Package throttle runs batches of task-producing thunks with bounded
// parallelism, optional per-window rate ceilings, and fail-fast or
// keep-going semantics (spec §4.2).
package throttle

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"
)

// ErrPoisoned is returned by Enqueue once a quitOnFailure TaskThrottler has
// recorded its first failure (spec §4.2).
var ErrPoisoned = errors.New("throttle: throttler poisoned by a prior task failure")

// RunThrottled runs thunks with at most parallelism concurrent in flight.
// On the first thunk failure it cancels the remaining queued and in-flight
// thunks, awaits the in-flight ones, and returns that failure (spec §4.2's
// fail-fast flavor).
func RunThrottled(ctx context.Context, thunks []func(context.Context) error, parallelism int) error {
	if len(thunks) == 0 {
		return nil
	}
	if parallelism <= 0 {
		parallelism = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error

	for _, thunk := range thunks {
		select {
		case <-ctx.Done():
		default:
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(fn func(context.Context) error) {
			defer wg.Done()
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}
			if err := fn(ctx); err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}(thunk)
	}

	wg.Wait()
	return firstErr
}

// Backoff implements the exponential backoff with jitter used to retry
// transient failures: 2^min(attempt,9) seconds, jittered +/-10% (spec §7).
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 9 {
		attempt = 9
	}
	base := time.Duration(1<<uint(attempt)) * time.Second
	jitter := float64(base) * 0.10
	delta := (rand.Float64()*2 - 1) * jitter
	return base + time.Duration(delta)
}
