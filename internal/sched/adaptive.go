package sched

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/backmassage/picshrink/internal/transient"
)

// AdaptiveConfig tunes the AIMD feedback loop. Zero fields take defaults.
type AdaptiveConfig struct {
	MinCap        int           // floor, default 1
	MaxCap        int           // ceiling, default DefaultMaxWorkers()
	Window        time.Duration // control window, default 1s
	TargetLatency time.Duration // per-task latency target, default 1.5s
	LagThreshold  time.Duration // tick lateness treated as overload, default Window/4
}

func (c AdaptiveConfig) withDefaults() AdaptiveConfig {
	if c.MinCap < 1 {
		c.MinCap = 1
	}
	if c.MaxCap < c.MinCap {
		c.MaxCap = DefaultMaxWorkers()
		if c.MaxCap < c.MinCap {
			c.MaxCap = c.MinCap
		}
	}
	if c.Window <= 0 {
		c.Window = time.Second
	}
	if c.TargetLatency <= 0 {
		c.TargetLatency = 1500 * time.Millisecond
	}
	if c.LagThreshold <= 0 {
		c.LagThreshold = c.Window / 4
	}
	return c
}

// Adaptive is the AIMD limiter. Submissions queue FIFO; a periodic tick
// recomputes the cap from window telemetry: additive +1 while latency stays
// under target, multiplicative x0.7 (ceil) under backpressure. Backpressure
// is any of: a late tick, a transient resource error, or average latency
// 25% over target.
//
// All controller state lives behind mu and is mutated only by Submit,
// task-completion bookkeeping, and the tick.
type Adaptive struct {
	cfg AdaptiveConfig
	obs Observer

	mu            sync.Mutex
	cap           int
	inFlight      int
	queue         []*entry
	sumLatency    time.Duration
	samples       int
	transientErrs int
	lastTick      time.Time
	disposed      bool

	stopOnce sync.Once
	stop     chan struct{}
}

type entry struct {
	ctx  context.Context
	task Task
	p    *Pending
}

// NewAdaptive creates and starts an adaptive limiter. obs may be nil.
// Callers must Dispose it when the run ends.
func NewAdaptive(cfg AdaptiveConfig, obs Observer) *Adaptive {
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
	go a.loop()
	return a
}

func (a *Adaptive) loop() {
	ticker := time.NewTicker(a.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-a.stop:
			return
		case now := <-ticker.C:
			a.tick(now)
		}
	}
}

// tick runs one control window: measure, decide, emit, reset, re-pump.
func (a *Adaptive) tick(now time.Time) {
	a.mu.Lock()

	elapsed := now.Sub(a.lastTick)
	a.lastTick = now
	lag := elapsed - a.cfg.Window

	var avg time.Duration
	if a.samples > 0 {
		avg = a.sumLatency / time.Duration(a.samples)
	}

	backpressure := lag > a.cfg.LagThreshold ||
		a.transientErrs > 0 ||
		avg > a.cfg.TargetLatency+a.cfg.TargetLatency/4

	switch {
	case backpressure:
		a.cap = maxInt(a.cfg.MinCap, int(math.Ceil(float64(a.cap)*0.7)))
	case a.samples > 0 && avg <= a.cfg.TargetLatency:
		a.cap = minInt(a.cfg.MaxCap, a.cap+1)
	}

	ev := TickEvent{Cap: a.cap, AvgLatency: avg, Lag: lag}

	a.sumLatency = 0
	a.samples = 0
	a.transientErrs = 0

	a.pumpLocked()
	a.mu.Unlock()

	// Outside the lock: observers must not be able to deadlock the limiter.
	a.obs.ControllerTick(ev)
}

// Submit appends task to the FIFO queue and pumps.
func (a *Adaptive) Submit(ctx context.Context, task Task) *Pending {
	p := newPending()
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		p.finish(ErrDisposed)
		return p
	}
	a.queue = append(a.queue, &entry{ctx: ctx, task: task, p: p})
	a.pumpLocked()
	a.mu.Unlock()
	return p
}

// pumpLocked dispatches queue heads while slots are free. Caller holds mu.
func (a *Adaptive) pumpLocked() {
	for a.inFlight < a.cap && len(a.queue) > 0 {
		e := a.queue[0]
		a.queue = a.queue[1:]
		a.inFlight++
		go a.run(e)
	}
}

// run executes one task. The bookkeeping (latency sample, transient count,
// in-flight decrement, re-pump) happens in a deferred finalizer so it runs
// no matter how the task returns.
func (a *Adaptive) run(e *entry) {
	start := time.Now()
	var err error
	defer func() {
		elapsed := time.Since(start)
		a.mu.Lock()
		a.sumLatency += elapsed
		a.samples++
		if err != nil && transient.Is(err) {
			a.transientErrs++
		}
		a.inFlight--
		a.pumpLocked()
		a.mu.Unlock()
		e.p.finish(err)
	}()

	if err = e.ctx.Err(); err != nil {
		return
	}
	err = e.task(e.ctx)
}

// Cap returns the current concurrency cap.
func (a *Adaptive) Cap() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cap
}

// Dispose stops the feedback timer. Already-queued tasks still drain, but
// new submissions fail with ErrDisposed.
func (a *Adaptive) Dispose() {
	a.mu.Lock()
	a.disposed = true
	a.mu.Unlock()
	a.stopOnce.Do(func() { close(a.stop) })
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
