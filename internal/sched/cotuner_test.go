package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeEngine struct {
	budget int
	calls  int
}

func (f *fakeEngine) SetThreadBudget(n int) {
	f.budget = n
	f.calls++
}

func TestThreadsForClampsAndDivides(t *testing.T) {
	ct := NewCoTuner(&fakeEngine{}, 8, 1, 4)

	assert.Equal(t, 4, ct.ThreadsFor(1), "ceiling applies when cap is small")
	assert.Equal(t, 4, ct.ThreadsFor(2))
	assert.Equal(t, 2, ct.ThreadsFor(4))
	assert.Equal(t, 1, ct.ThreadsFor(8))
	assert.Equal(t, 1, ct.ThreadsFor(100), "floor applies when cap exceeds budget")
	assert.Equal(t, 4, ct.ThreadsFor(0), "cap below 1 treated as 1")
}

func TestCoTunerTracksTicks(t *testing.T) {
	eng := &fakeEngine{}
	ct := NewCoTuner(eng, 12, 1, 6)

	ct.Apply(2) // startup with initial cap
	assert.Equal(t, 6, eng.budget)

	ct.ControllerTick(TickEvent{Cap: 6})
	assert.Equal(t, 2, eng.budget)

	ct.ControllerTick(TickEvent{Cap: 1})
	assert.Equal(t, 6, eng.budget, "clamped to MaxThreads")
	assert.Equal(t, 3, eng.calls)
}

func TestCoTunerDefaults(t *testing.T) {
	ct := NewCoTuner(&fakeEngine{}, 0, 0, 0)
	assert.GreaterOrEqual(t, ct.Budget, 1)
	assert.Equal(t, 1, ct.MinThreads)
	assert.GreaterOrEqual(t, ct.MaxThreads, ct.MinThreads)
}

func TestDefaultMaxWorkersBounds(t *testing.T) {
	n := DefaultMaxWorkers()
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, absoluteWorkerCap)
}
