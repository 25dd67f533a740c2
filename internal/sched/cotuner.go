package sched

import "runtime"

// ThreadBudgeter is the slice of the codec engine the co-tuner drives.
type ThreadBudgeter interface {
	SetThreadBudget(n int)
}

// CoTuner keeps the product of outer concurrency and per-task codec threads
// near a fixed total budget: when the controller admits more tasks each one
// gets fewer internal threads, and vice versa. The budget is explicit state
// held here, not process-global, so independent controllers can coexist in
// tests.
type CoTuner struct {
	Budget     int
	MinThreads int
	MaxThreads int

	engine ThreadBudgeter
}

// NewCoTuner builds a co-tuner for engine. Non-positive arguments default to
// budget = NumCPU, minThreads = 1, maxThreads = NumCPU.
func NewCoTuner(engine ThreadBudgeter, budget, minThreads, maxThreads int) *CoTuner {
	if budget < 1 {
		budget = runtime.NumCPU()
	}
	if minThreads < 1 {
		minThreads = 1
	}
	if maxThreads < minThreads {
		maxThreads = maxInt(runtime.NumCPU(), minThreads)
	}
	return &CoTuner{
		Budget:     budget,
		MinThreads: minThreads,
		MaxThreads: maxThreads,
		engine:     engine,
	}
}

// ThreadsFor returns the per-task thread budget for a given concurrency cap:
// clamp(Budget / max(1, cap), MinThreads, MaxThreads). Pure.
func (t *CoTuner) ThreadsFor(cap int) int {
	if cap < 1 {
		cap = 1
	}
	n := t.Budget / cap
	if n < t.MinThreads {
		n = t.MinThreads
	}
	if n > t.MaxThreads {
		n = t.MaxThreads
	}
	return n
}

// Apply pushes the budget for cap into the engine. Called once at startup
// with the controller's initial cap.
func (t *CoTuner) Apply(cap int) {
	t.engine.SetThreadBudget(t.ThreadsFor(cap))
}

// ControllerTick re-applies the budget on every telemetry event, so CoTuner
// can be registered directly as the controller's observer.
func (t *CoTuner) ControllerTick(ev TickEvent) {
	t.Apply(ev.Cap)
}
