package combat

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cory-johannsen/rogue/internal/clock"
)

// DefaultSampleInterval is the swing sampling period.
const DefaultSampleInterval = 16 * time.Millisecond

// Sample is one look at a swing in flight.
type Sample struct {
	Descriptor Descriptor
	Angle      float64
	Now        time.Time

	hits map[string]struct{}
}

// FirstHit records id as hit by this swing. It returns false when id was
// already hit, so each target is struck at most once per swing.
func (s *Sample) FirstHit(id string) bool {
	if _, ok := s.hits[id]; ok {
		return false
	}
	s.hits[id] = struct{}{}
	return true
}

// Detector resolves hits for one sample.
type Detector interface {
	Detect(s *Sample)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(s *Sample)

// Detect calls f(s).
func (f DetectorFunc) Detect(s *Sample) { f(s) }

// Sampler sweeps a swing descriptor on a clock ticker until the swing ends or
// the sampler is cancelled. Samples are delivered sequentially.
type Sampler struct {
	desc      Descriptor
	clk       clock.Clock
	det       Detector
	hits      map[string]struct{}
	cancelled atomic.Bool
	once      sync.Once
	quit      chan struct{}
	done      chan struct{}
}

// StartSampler samples desc once immediately in the caller's goroutine, then
// every interval on clk until the descriptor expires.
//
// Precondition: the caller must not hold any lock det acquires.
// Postcondition: Done is closed once sampling has stopped for good.
func StartSampler(clk clock.Clock, desc Descriptor, interval time.Duration, det Detector) *Sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	s := &Sampler{
		desc: desc,
		clk:  clk,
		det:  det,
		hits: make(map[string]struct{}),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	if !s.sample() {
		close(s.done)
		return s
	}
	ticker := clk.NewTicker(interval)
	go s.run(ticker)
	return s
}

// sample delivers one sample and reports whether the swing is still live.
func (s *Sampler) sample() bool {
	if s.cancelled.Load() {
		return false
	}
	now := s.clk.Now()
	if !s.desc.IsActive(now) {
		return false
	}
	s.det.Detect(&Sample{Descriptor: s.desc, Angle: s.desc.CurrentAngle(now), Now: now, hits: s.hits})
	return !s.cancelled.Load()
}

func (s *Sampler) run(ticker clock.Ticker) {
	defer close(s.done)
	defer ticker.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C():
			if !s.sample() {
				return
			}
		}
	}
}

// Cancel stops sampling. After Cancel returns no new sample starts; a sample
// already running completes. Safe to call multiple times and from inside
// Detect.
func (s *Sampler) Cancel() {
	s.cancelled.Store(true)
	s.once.Do(func() { close(s.quit) })
}

// Cancelled reports whether Cancel was called.
func (s *Sampler) Cancelled() bool { return s.cancelled.Load() }

// Done is closed when the sampler has stopped.
func (s *Sampler) Done() <-chan struct{} { return s.done }
