// Package clock provides the time source shared by every simulation timer.
//
// The engine, the swing sampler and the enemy agents never call time.Now
// directly; they read the Clock they were constructed with so tests can drive
// cooldowns, wind-ups and floor transitions deterministically.
package clock

import "time"

// Clock is a source of the current time and of periodic ticks.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// NewTicker returns a Ticker delivering ticks every d.
	//
	// Precondition: d > 0.
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real returns the wall clock.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }
