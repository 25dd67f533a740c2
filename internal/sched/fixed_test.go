package sched

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedCapEnforced(t *testing.T) {
	f := NewFixed(3)
	assert.Equal(t, 3, f.Cap())

	var cur, peak int64
	var pendings []*Pending
	for i := 0; i < 24; i++ {
		pendings = append(pendings, f.Submit(context.Background(), func(ctx context.Context) error {
			n := atomic.AddInt64(&cur, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&cur, -1)
			return nil
		}))
	}
	for _, p := range pendings {
		require.NoError(t, p.Wait())
	}
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(3))
}

func TestFixedDispatchFollowsSubmissionOrder(t *testing.T) {
	f := NewFixed(1)
	var order []int
	var pendings []*Pending
	for i := 0; i < 8; i++ {
		i := i
		pendings = append(pendings, f.Submit(context.Background(), func(ctx context.Context) error {
			order = append(order, i) // cap 1: no concurrent writers
			return nil
		}))
	}
	for _, p := range pendings {
		require.NoError(t, p.Wait())
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, order)
}

func TestFixedCancelledContext(t *testing.T) {
	f := NewFixed(1)
	block := make(chan struct{})
	p1 := f.Submit(context.Background(), func(ctx context.Context) error {
		<-block
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	p2 := f.Submit(ctx, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, p2.Wait(), context.Canceled)

	close(block)
	require.NoError(t, p1.Wait())
}

func TestFixedMinimumCap(t *testing.T) {
	assert.Equal(t, 1, NewFixed(0).Cap())
	assert.Equal(t, 1, NewFixed(-5).Cap())
}
