package clock

import (
	"sync"
	"time"
)

// Fake is a manually advanced Clock for tests.
//
// Tickers receive at most one buffered tick; ticks a slow reader misses are
// dropped, matching time.Ticker.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

// NewFake returns a Fake reading start until advanced.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake's current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NewTicker registers a ticker firing every d of fake time.
//
// Precondition: d > 0.
func (f *Fake) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker period")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{
		clock:  f,
		period: d,
		next:   f.now.Add(d),
		ch:     make(chan time.Time, 1),
	}
	f.tickers = append(f.tickers, t)
	return t
}

// Advance moves the fake forward by d, delivering every tick whose deadline
// falls inside the window in chronological order.
//
// Postcondition: Now() == previous Now() + d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	target := f.now.Add(d)
	for {
		tk := f.nextDueLocked(target)
		if tk == nil {
			f.now = target
			return
		}
		at := tk.next
		if at.After(f.now) {
			f.now = at
		}
		tk.next = at.Add(tk.period)
		select {
		case tk.ch <- at:
		default:
		}
	}
}

// ActiveTickers returns the number of tickers not yet stopped.
func (f *Fake) ActiveTickers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

// nextDueLocked returns the ticker with the earliest deadline at or before
// target, or nil. Must hold f.mu.
func (f *Fake) nextDueLocked(target time.Time) *fakeTicker {
	var best *fakeTicker
	for _, tk := range f.tickers {
		if tk.next.After(target) {
			continue
		}
		if best == nil || tk.next.Before(best.next) {
			best = tk
		}
	}
	return best
}

func (f *Fake) removeTickerLocked(t *fakeTicker) {
	for i, other := range f.tickers {
		if other == t {
			f.tickers = append(f.tickers[:i], f.tickers[i+1:]...)
			return
		}
	}
}

type fakeTicker struct {
	clock  *Fake
	period time.Duration
	next   time.Time
	ch     chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.clock.removeTickerLocked(t)
}
