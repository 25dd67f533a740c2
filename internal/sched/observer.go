package sched

import (
	"time"

	"go.uber.org/zap"
)

// TickEvent is the telemetry emitted after each adaptive control window.
type TickEvent struct {
	Cap        int           // cap after this tick's adjustment
	AvgLatency time.Duration // mean task latency over the window (0 if none)
	Lag        time.Duration // how late the tick itself fired
}

// Observer receives controller telemetry. Implementations must not call
// back into the limiter.
type Observer interface {
	ControllerTick(TickEvent)
}

// NopObserver discards telemetry; the default when none is registered.
type NopObserver struct{}

func (NopObserver) ControllerTick(TickEvent) {}

// LogObserver writes telemetry at debug level.
type LogObserver struct {
	Log *zap.SugaredLogger
}

func (o LogObserver) ControllerTick(ev TickEvent) {
	o.Log.Debugw("controller tick",
		"cap", ev.Cap,
		"avg_latency", ev.AvgLatency,
		"lag", ev.Lag)
}

// MultiObserver fans one event out to several observers.
func MultiObserver(obs ...Observer) Observer {
	return multiObserver(obs)
}

type multiObserver []Observer

func (m multiObserver) ControllerTick(ev TickEvent) {
	for _, o := range m {
		o.ControllerTick(ev)
	}
}
