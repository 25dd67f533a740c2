// Package sched provides bounded task scheduling for the conversion
// pipeline: a fixed-cap limiter and an adaptive AIMD variant that grows
// concurrency slowly and shrinks it sharply under backpressure, plus the
// co-tuner that keeps the codec engine's thread budget in balance with the
// current cap.
package sched

import (
	"context"

	"github.com/cockroachdb/errors"
)

// ErrDisposed is returned for work submitted after Dispose.
var ErrDisposed = errors.New("sched: limiter disposed")

// Task is a unit of work admitted by a limiter.
type Task func(ctx context.Context) error

// Limiter admits tasks up to its current concurrency cap. Submission order
// is dispatch order (FIFO); completion order is unconstrained.
type Limiter interface {
	// Submit admits task and returns immediately-waitable handle. Admission
	// itself is synchronous, so calling Submit in order guarantees FIFO
	// dispatch.
	Submit(ctx context.Context, task Task) *Pending

	// Cap returns the current concurrency cap.
	Cap() int

	// Dispose stops any feedback machinery. Safe to call more than once.
	Dispose()
}

// Pending is the handle for a submitted task.
type Pending struct {
	done chan struct{}
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) finish(err error) {
	p.err = err
	close(p.done)
}

// Wait blocks until the task settles and returns its error.
func (p *Pending) Wait() error {
	<-p.done
	return p.err
}

// Schedule submits task and waits for its result.
func Schedule(ctx context.Context, l Limiter, task Task) error {
	return l.Submit(ctx, task).Wait()
}
