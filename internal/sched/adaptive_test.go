package sched

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bareAdaptive builds a limiter without its ticker goroutine so tests can
// drive tick() deterministically.
func bareAdaptive(cfg AdaptiveConfig, obs Observer) *Adaptive {
	if obs == nil {
		obs = NopObserver{}
	}
	cfg = cfg.withDefaults()
	a := &Adaptive{
		cfg:      cfg,
		obs:      obs,
		cap:      minInt(2, cfg.MaxCap),
		lastTick: time.Now(),
		stop:     make(chan struct{}),
	}
	if a.cap < cfg.MinCap {
		a.cap = cfg.MinCap
	}
	return a
}

// inject fakes one window's worth of completed samples.
func (a *Adaptive) inject(sum time.Duration, samples, transientErrs int) {
	a.mu.Lock()
	a.sumLatency = sum
	a.samples = samples
	a.transientErrs = transientErrs
	a.mu.Unlock()
}

// onTimeTick fires the tick exactly one window after the previous one.
func onTimeTick(a *Adaptive) {
	a.mu.Lock()
	next := a.lastTick.Add(a.cfg.Window)
	a.mu.Unlock()
	a.tick(next)
}

func TestAdditiveIncreaseOverThreeGoodWindows(t *testing.T) {
	a := bareAdaptive(AdaptiveConfig{MinCap: 1, MaxCap: 10, Window: time.Second, TargetLatency: time.Second}, nil)
	require.Equal(t, 2, a.Cap())

	for i := 1; i <= 3; i++ {
		a.inject(500*time.Millisecond*4, 4, 0) // avg 500ms <= target
		onTimeTick(a)
		assert.Equal(t, 2+i, a.Cap(), "window %d", i)
	}
}

func TestIncreaseBoundedByMaxCap(t *testing.T) {
	a := bareAdaptive(AdaptiveConfig{MinCap: 1, MaxCap: 3, Window: time.Second, TargetLatency: time.Second}, nil)
	for i := 0; i < 5; i++ {
		a.inject(100*time.Millisecond, 1, 0)
		onTimeTick(a)
	}
	assert.Equal(t, 3, a.Cap())
}

func TestMultiplicativeDecreaseOnLag(t *testing.T) {
	a := bareAdaptive(AdaptiveConfig{MinCap: 1, MaxCap: 20, Window: time.Second, TargetLatency: time.Second, LagThreshold: 250 * time.Millisecond}, nil)
	a.mu.Lock()
	a.cap = 10
	last := a.lastTick
	a.mu.Unlock()

	// tick arrives a whole window late
	a.tick(last.Add(2 * time.Second))
	assert.Equal(t, 7, a.Cap(), "ceil(10 * 0.7)")
}

func TestDecreaseOnTransientErrors(t *testing.T) {
	a := bareAdaptive(AdaptiveConfig{MinCap: 2, MaxCap: 20, Window: time.Second, TargetLatency: time.Second}, nil)
	a.mu.Lock()
	a.cap = 3
	a.mu.Unlock()

	a.inject(100*time.Millisecond, 1, 1)
	onTimeTick(a)
	assert.Equal(t, 3, a.Cap(), "ceil(3*0.7)=3, one step above the floor")

	a.inject(100*time.Millisecond, 1, 1)
	a.mu.Lock()
	a.cap = 2
	a.mu.Unlock()
	onTimeTick(a)
	assert.Equal(t, 2, a.Cap(), "clamped at MinCap")
}

func TestDecreaseOnHighLatency(t *testing.T) {
	a := bareAdaptive(AdaptiveConfig{MinCap: 1, MaxCap: 20, Window: time.Second, TargetLatency: time.Second}, nil)
	a.mu.Lock()
	a.cap = 8
	a.mu.Unlock()

	// avg 1.3s > 1.25 x target
	a.inject(1300*time.Millisecond*2, 2, 0)
	onTimeTick(a)
	assert.Equal(t, 6, a.Cap(), "ceil(8*0.7)")
}

func TestNoChangeOnEmptyQuietWindow(t *testing.T) {
	a := bareAdaptive(AdaptiveConfig{MinCap: 1, MaxCap: 10, Window: time.Second, TargetLatency: time.Second}, nil)
	onTimeTick(a) // no samples, no lag, no errors
	assert.Equal(t, 2, a.Cap())
}

func TestCapAlwaysWithinBounds(t *testing.T) {
	cfg := AdaptiveConfig{MinCap: 2, MaxCap: 9, Window: time.Second, TargetLatency: time.Second, LagThreshold: 200 * time.Millisecond}
	a := bareAdaptive(cfg, nil)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		a.inject(time.Duration(rng.Int63n(int64(3*time.Second))), 1+rng.Intn(5), rng.Intn(2))
		a.mu.Lock()
		next := a.lastTick.Add(a.cfg.Window + time.Duration(rng.Int63n(int64(time.Second))))
		a.mu.Unlock()
		a.tick(next)

		cap := a.Cap()
		require.GreaterOrEqual(t, cap, cfg.MinCap, "iteration %d", i)
		require.LessOrEqual(t, cap, cfg.MaxCap, "iteration %d", i)
	}
}

func TestTickEmitsTelemetryAndResetsWindow(t *testing.T) {
	var events []TickEvent
	obs := observerFunc(func(ev TickEvent) { events = append(events, ev) })
	a := bareAdaptive(AdaptiveConfig{MinCap: 1, MaxCap: 10, Window: time.Second, TargetLatency: time.Second}, obs)

	a.inject(600*time.Millisecond*3, 3, 0)
	onTimeTick(a)
	require.Len(t, events, 1)
	assert.Equal(t, 3, events[0].Cap)
	assert.Equal(t, 600*time.Millisecond, events[0].AvgLatency)

	// accumulators were reset: a quiet window reports zero latency
	onTimeTick(a)
	require.Len(t, events, 2)
	assert.Equal(t, time.Duration(0), events[1].AvgLatency)
}

type observerFunc func(TickEvent)

func (f observerFunc) ControllerTick(ev TickEvent) { f(ev) }

func TestFIFODispatchAtCapOne(t *testing.T) {
	a := bareAdaptive(AdaptiveConfig{MinCap: 1, MaxCap: 1, Window: time.Minute, TargetLatency: time.Second}, nil)

	var mu sync.Mutex
	var order []int
	var pendings []*Pending
	for i := 0; i < 10; i++ {
		i := i
		pendings = append(pendings, a.Submit(context.Background(), func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}))
	}
	for _, p := range pendings {
		require.NoError(t, p.Wait())
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestInFlightNeverExceedsCap(t *testing.T) {
	a := bareAdaptive(AdaptiveConfig{MinCap: 2, MaxCap: 2, Window: time.Minute, TargetLatency: time.Second}, nil)

	var cur, peak int64
	var pendings []*Pending
	for i := 0; i < 20; i++ {
		pendings = append(pendings, a.Submit(context.Background(), func(ctx context.Context) error {
			n := atomic.AddInt64(&cur, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt64(&cur, -1)
			return nil
		}))
	}
	for _, p := range pendings {
		require.NoError(t, p.Wait())
	}
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestTaskErrorsPropagateAndCountTransients(t *testing.T) {
	a := bareAdaptive(AdaptiveConfig{MinCap: 1, MaxCap: 4, Window: time.Minute, TargetLatency: time.Second}, nil)

	content := errors.New("corrupt input")
	p1 := a.Submit(context.Background(), func(ctx context.Context) error { return content })
	p2 := a.Submit(context.Background(), func(ctx context.Context) error { return syscall.ENOSPC })
	assert.ErrorIs(t, p1.Wait(), content)
	assert.Error(t, p2.Wait())

	a.mu.Lock()
	assert.Equal(t, 1, a.transientErrs, "only the resource error counts")
	assert.Equal(t, 2, a.samples)
	a.mu.Unlock()
}

func TestSubmitAfterDispose(t *testing.T) {
	a := NewAdaptive(AdaptiveConfig{MinCap: 1, MaxCap: 2, Window: 10 * time.Millisecond}, nil)
	a.Dispose()
	a.Dispose() // idempotent

	err := a.Submit(context.Background(), func(ctx context.Context) error { return nil }).Wait()
	assert.ErrorIs(t, err, ErrDisposed)
}

func TestAdaptiveEndToEnd(t *testing.T) {
	a := NewAdaptive(AdaptiveConfig{MinCap: 1, MaxCap: 4, Window: 20 * time.Millisecond, TargetLatency: 50 * time.Millisecond}, nil)
	defer a.Dispose()

	var done int64
	var pendings []*Pending
	for i := 0; i < 30; i++ {
		pendings = append(pendings, a.Submit(context.Background(), func(ctx context.Context) error {
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&done, 1)
			return nil
		}))
	}
	for _, p := range pendings {
		require.NoError(t, p.Wait())
	}
	assert.Equal(t, int64(30), done)
	assert.GreaterOrEqual(t, a.Cap(), 1)
	assert.LessOrEqual(t, a.Cap(), 4)
}

func TestCancelledContextSkipsQueuedTask(t *testing.T) {
	a := bareAdaptive(AdaptiveConfig{MinCap: 1, MaxCap: 1, Window: time.Minute, TargetLatency: time.Second}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := a.Submit(ctx, func(ctx context.Context) error { ran = true; return nil }).Wait()
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}
