package sched

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Fixed is a constant-cap limiter with no feedback loop. Slots are handed
// out by a weighted semaphore, acquired during Submit so dispatch follows
// submission order.
type Fixed struct {
	cap int
	sem *semaphore.Weighted
}

// NewFixed creates a limiter with a constant cap of n (minimum 1).
func NewFixed(n int) *Fixed {
	if n < 1 {
		n = 1
	}
	return &Fixed{cap: n, sem: semaphore.NewWeighted(int64(n))}
}

// Submit blocks until a slot is free, then runs task in its own goroutine.
func (f *Fixed) Submit(ctx context.Context, task Task) *Pending {
	p := newPending()
	if err := f.sem.Acquire(ctx, 1); err != nil {
		p.finish(err)
		return p
	}
	go func() {
		defer f.sem.Release(1)
		p.finish(task(ctx))
	}()
	return p
}

// Cap returns the constant cap.
func (f *Fixed) Cap() int { return f.cap }

// Dispose is a no-op; the fixed limiter has no timer to stop.
func (f *Fixed) Dispose() {}
