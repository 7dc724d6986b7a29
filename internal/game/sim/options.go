package sim

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/rogue/internal/clock"
	"github.com/cory-johannsen/rogue/internal/game/ai"
	"github.com/cory-johannsen/rogue/internal/game/dice"
	"github.com/cory-johannsen/rogue/internal/game/event"
	"github.com/cory-johannsen/rogue/internal/game/ruleset"
	"github.com/cory-johannsen/rogue/internal/game/world"
)

// Default timings.
const (
	DefaultTickInterval    = 16 * time.Millisecond
	DefaultNotifyInterval  = 100 * time.Millisecond
	DefaultDisposeGrace    = 50 * time.Millisecond
	DefaultFloorTransition = 2000 * time.Millisecond
	DefaultStartClass      = "warrior"
	DefaultPlayerName      = "Hero"
)

var (
	// ErrDisposed is returned by operations on a disposed Engine.
	ErrDisposed = errors.New("engine disposed")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("engine already started")
)

// Config holds the engine timings and the opening run.
type Config struct {
	TickInterval    time.Duration
	NotifyInterval  time.Duration
	DisposeGrace    time.Duration
	FloorTransition time.Duration
	StartClass      string
	PlayerName      string
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		TickInterval:    DefaultTickInterval,
		NotifyInterval:  DefaultNotifyInterval,
		DisposeGrace:    DefaultDisposeGrace,
		FloorTransition: DefaultFloorTransition,
		StartClass:      DefaultStartClass,
		PlayerName:      DefaultPlayerName,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.NotifyInterval <= 0 {
		c.NotifyInterval = d.NotifyInterval
	}
	if c.DisposeGrace <= 0 {
		c.DisposeGrace = d.DisposeGrace
	}
	if c.FloorTransition <= 0 {
		c.FloorTransition = d.FloorTransition
	}
	if c.StartClass == "" {
		c.StartClass = d.StartClass
	}
	if c.PlayerName == "" {
		c.PlayerName = d.PlayerName
	}
	return c
}

// PatternSource resolves enemy pattern tags. *ai.Registry satisfies it.
type PatternSource interface {
	PatternFor(name string) (ai.Pattern, bool)
}

// Metrics receives engine measurements.
type Metrics interface {
	ObserveTick(d time.Duration)
	SetEntities(enemies, projectiles int)
	CountEvent(kind event.Kind)
}

type nopMetrics struct{}

func (nopMetrics) ObserveTick(time.Duration) {}
func (nopMetrics) SetEntities(int, int)      {}
func (nopMetrics) CountEvent(event.Kind)     {}

// Options wires an Engine's collaborators. Catalog and Floors are required;
// every other field has a default.
type Options struct {
	Config   Config
	Clock    clock.Clock
	Logger   *zap.Logger
	Roller   *dice.Roller
	Catalog  *ruleset.Catalog
	Floors   world.Source
	Patterns PatternSource
	Metrics  Metrics
	Bus      *event.Bus
}
