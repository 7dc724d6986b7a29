// Package results records finished runs to persistent storage.
package results

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/rogue/internal/clock"
	"github.com/cory-johannsen/rogue/internal/game/event"
	"github.com/cory-johannsen/rogue/internal/game/sim"
	"github.com/cory-johannsen/rogue/internal/storage/postgres"
)

const (
	// DefaultQueueSize is the number of runs buffered ahead of the store.
	DefaultQueueSize = 16
	// DefaultWriteTimeout bounds one store write.
	DefaultWriteTimeout = 5 * time.Second
)

var (
	// ErrStopped is returned once the recorder has been stopped.
	ErrStopped = errors.New("recorder stopped")
	// ErrQueueFull is returned when the store has fallen behind.
	ErrQueueFull = errors.New("recorder queue full")
)

// Store persists runs. *postgres.RunRepository satisfies it.
type Store interface {
	Record(ctx context.Context, run postgres.Run) error
}

// Summaries reports the current run. *sim.Engine satisfies it.
type Summaries interface {
	Summary() sim.RunSummary
}

// Metrics counts stored runs by outcome.
type Metrics interface {
	RunRecorded(outcome string)
}

// Recorder is a bus observer that stores each run once, when the player
// dies or when the run is abandoned at shutdown. Writes happen on the
// goroutine running Start so the publishing tick never waits on the store.
type Recorder struct {
	store   Store
	runs    Summaries
	clk     clock.Clock
	logger  *zap.Logger
	metrics Metrics
	timeout time.Duration

	queue    chan postgres.Run
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	recorded map[string]struct{}
	stopped  bool
}

// NewRecorder creates a Recorder. A nil metrics disables counting.
//
// Precondition: store, runs, clk and logger must be non-nil.
func NewRecorder(store Store, runs Summaries, clk clock.Clock, logger *zap.Logger, metrics Metrics) *Recorder {
	return &Recorder{
		store:    store,
		runs:     runs,
		clk:      clk,
		logger:   logger.Named("results"),
		metrics:  metrics,
		timeout:  DefaultWriteTimeout,
		queue:    make(chan postgres.Run, DefaultQueueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		recorded: make(map[string]struct{}),
	}
}

// OnEvent queues the current run for storage on PlayerDied.
func (r *Recorder) OnEvent(e event.Event) error {
	died, ok := e.(event.PlayerDied)
	if !ok {
		return nil
	}
	s := r.runs.Summary()
	s.Killer = died.Killer
	s.Floor = died.Floor
	s.Level = died.Level
	s.Kills = died.Kills
	return r.enqueue(s, postgres.OutcomeDeath)
}

// Abandon queues s as abandoned. Runs that ended in death or were already
// recorded are ignored.
func (r *Recorder) Abandon(s sim.RunSummary) error {
	if s.RunID == "" || s.Dead {
		return nil
	}
	return r.enqueue(s, postgres.OutcomeAbandoned)
}

func (r *Recorder) enqueue(s sim.RunSummary, outcome postgres.Outcome) error {
	id, err := uuid.Parse(s.RunID)
	if err != nil {
		return fmt.Errorf("recording run %q: %w", s.RunID, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrStopped
	}
	if _, dup := r.recorded[s.RunID]; dup {
		return nil
	}
	run := postgres.Run{
		ID:           id,
		PlayerName:   s.PlayerName,
		Class:        s.Class,
		FloorReached: max(s.Floor, 1),
		Level:        max(s.Level, 1),
		Kills:        s.Kills,
		Killer:       s.Killer,
		Outcome:      outcome,
		StartedAt:    s.StartedAt,
		EndedAt:      r.clk.Now(),
	}
	if outcome == postgres.OutcomeAbandoned {
		run.Killer = ""
	}
	select {
	case r.queue <- run:
		r.recorded[s.RunID] = struct{}{}
		return nil
	default:
		r.logger.Warn("run dropped", zap.String("run", s.RunID))
		return ErrQueueFull
	}
}

// Start writes queued runs until Stop. Cancelling ctx does not end the loop
// so that runs abandoned during shutdown still reach the store.
func (r *Recorder) Start(ctx context.Context) error {
	defer close(r.done)
	for {
		select {
		case run := <-r.queue:
			r.write(run)
		case <-r.stop:
			for {
				select {
				case run := <-r.queue:
					r.write(run)
				default:
					return nil
				}
			}
		}
	}
}

// Stop refuses further runs and waits for the queue to drain or ctx to end.
func (r *Recorder) Stop(ctx context.Context) {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopped = true
		r.mu.Unlock()
		close(r.stop)
	})
	select {
	case <-r.done:
	case <-ctx.Done():
		r.logger.Warn("results not drained", zap.Int("pending", len(r.queue)))
	}
}

func (r *Recorder) write(run postgres.Run) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.store.Record(ctx, run); err != nil {
		r.logger.Warn("storing run failed", zap.String("run", run.ID.String()), zap.Error(err))
		return
	}
	if r.metrics != nil {
		r.metrics.RunRecorded(string(run.Outcome))
	}
	r.logger.Info("run recorded",
		zap.String("run", run.ID.String()),
		zap.String("outcome", string(run.Outcome)),
		zap.Int("floor", run.FloorReached),
		zap.Int("kills", run.Kills),
	)
}
