// Package sim runs a dungeon in real time: a tick driver advancing enemies,
// projectiles and the player, swing samplers resolving melee hits, and a
// notification driver batching item pickups. Everything observable leaves
// the engine as events on its bus.
package sim

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/rogue/internal/clock"
	"github.com/cory-johannsen/rogue/internal/game/ai"
	"github.com/cory-johannsen/rogue/internal/game/combat"
	"github.com/cory-johannsen/rogue/internal/game/dice"
	"github.com/cory-johannsen/rogue/internal/game/entity"
	"github.com/cory-johannsen/rogue/internal/game/event"
	"github.com/cory-johannsen/rogue/internal/game/ruleset"
	"github.com/cory-johannsen/rogue/internal/game/world"
)

// maxTickStep bounds the time one tick may integrate, so a stalled driver or
// a long pause does not teleport projectiles.
const maxTickStep = 100 * time.Millisecond

// Engine owns one run of the dungeon.
//
// Lock order: bus observers, then stateMu, then projMu, then enemyMu.
// enemyUpdateMu is taken before enemyMu and never while projMu is held.
// Agent and character mutexes are leaves. Events raised under any of these
// locks are buffered and published after every lock is released, in the
// order they were raised.
type Engine struct {
	cfg      Config
	clk      clock.Clock
	logger   *zap.Logger
	bus      *event.Bus
	roller   *dice.Roller
	catalog  *ruleset.Catalog
	floors   world.Source
	patterns PatternSource
	metrics  Metrics

	ctx      context.Context
	cancel   context.CancelFunc
	disposed atomic.Bool

	driversMu sync.Mutex
	started   bool
	stop      chan struct{}
	drivers   sync.WaitGroup

	stateMu        sync.RWMutex
	paused         bool
	player         *entity.Player
	floor          *world.Floor
	floorCount     int
	bonusChance    int
	bonusTriggered bool
	transitioning  bool
	transitionAt   time.Time
	dead           bool
	killer         string
	tick           uint64
	lastTick       time.Time
	pendingItems   []ruleset.Item
	runID          string
	runStarted     time.Time

	projMu      sync.Mutex
	projectiles []*combat.Projectile

	enemyUpdateMu sync.Mutex
	enemyMu       sync.RWMutex
	agents        []*ai.Agent

	samplersMu sync.Mutex
	samplers   map[*combat.Sampler]struct{}
}

// New builds an Engine and opens a run with Config.StartClass on floor 1.
// The engine is idle until Start; Tick and HandleAction may also be driven
// directly.
//
// Precondition: opts.Catalog and opts.Floors must be non-nil.
// Postcondition: returns error when the start class or first floor cannot be
// loaded.
func New(opts Options) (*Engine, error) {
	if opts.Catalog == nil || opts.Floors == nil {
		return nil, errors.New("sim.New: catalog and floors are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("sim")
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	roller := opts.Roller
	if roller == nil {
		roller = dice.NewLoggedRoller(dice.NewCryptoSource(), logger)
	}
	bus := opts.Bus
	if bus == nil {
		bus = event.NewBus(logger)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:      opts.Config.withDefaults(),
		clk:      clk,
		logger:   logger,
		bus:      bus,
		roller:   roller,
		catalog:  opts.Catalog,
		floors:   opts.Floors,
		patterns: opts.Patterns,
		metrics:  metrics,
		ctx:      ctx,
		cancel:   cancel,
		stop:     make(chan struct{}),
		samplers: make(map[*combat.Sampler]struct{}),
	}

	var out outbox
	e.stateMu.Lock()
	err := e.newGameLocked(e.cfg.StartClass, clk.Now(), &out)
	e.stateMu.Unlock()
	if err != nil {
		cancel()
		return nil, err
	}
	e.flush(&out)
	return e, nil
}

// Bus returns the event bus observers subscribe to.
func (e *Engine) Bus() *event.Bus { return e.bus }

// Subscribe registers o on the engine's bus.
func (e *Engine) Subscribe(o event.Observer) event.Subscription {
	return e.bus.Subscribe(o)
}

// Unsubscribe removes an observer registered with Subscribe.
func (e *Engine) Unsubscribe(sub event.Subscription) bool {
	return e.bus.Unsubscribe(sub)
}

// Disposed reports whether Dispose has run.
func (e *Engine) Disposed() bool { return e.disposed.Load() }

// Start launches the tick and notification drivers on the engine clock.
// They stop when ctx is done or on Dispose.
func (e *Engine) Start(ctx context.Context) error {
	if e.disposed.Load() {
		return ErrDisposed
	}
	e.driversMu.Lock()
	defer e.driversMu.Unlock()
	if e.started {
		return ErrAlreadyStarted
	}
	e.started = true
	tick := e.clk.NewTicker(e.cfg.TickInterval)
	notify := e.clk.NewTicker(e.cfg.NotifyInterval)
	e.drivers.Add(2)
	go e.drive(ctx, tick, e.Tick)
	go e.drive(ctx, notify, e.FlushNotifications)
	e.logger.Info("engine started",
		zap.Duration("tick", e.cfg.TickInterval),
		zap.Duration("notify", e.cfg.NotifyInterval),
	)
	return nil
}

func (e *Engine) drive(ctx context.Context, t clock.Ticker, fn func()) {
	defer e.drivers.Done()
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		case <-t.C():
			if e.disposed.Load() {
				return
			}
			fn()
		}
	}
}

// Tick advances the run by one step. It is a no-op while paused, disposed or
// between runs.
func (e *Engine) Tick() {
	if e.disposed.Load() {
		return
	}
	began := time.Now()
	now := e.clk.Now()
	var out outbox

	e.stateMu.Lock()
	if e.paused || e.player == nil || e.floor == nil {
		e.lastTick = now
		e.stateMu.Unlock()
		return
	}
	dt := time.Duration(0)
	if !e.lastTick.IsZero() {
		dt = min(max(now.Sub(e.lastTick), 0), maxTickStep)
	}
	e.lastTick = now
	e.tick++

	switch {
	case e.transitioning:
		if !now.Before(e.transitionAt) {
			e.advanceFloorLocked(now, &out)
		}
	case !e.dead:
		spawned := e.updateEnemiesLocked(now, &out)
		e.addProjectilesLocked(spawned)
		e.updateProjectilesLocked(now, dt, &out)
		e.checkDeathLocked(&out)
		if !e.dead {
			e.updatePlayerLocked(now)
		}
	}
	update, enemies, projectiles := e.stateUpdateLocked()
	out.emit(update)
	e.stateMu.Unlock()

	e.metrics.SetEntities(enemies, projectiles)
	e.flush(&out)
	e.metrics.ObserveTick(time.Since(began))
}

func (e *Engine) stateUpdateLocked() (event.StateUpdated, int, int) {
	e.projMu.Lock()
	projectiles := len(e.projectiles)
	e.projMu.Unlock()
	e.enemyMu.RLock()
	enemies := len(e.agents)
	e.enemyMu.RUnlock()
	u := event.StateUpdated{Tick: e.tick, Enemies: enemies, Projectiles: projectiles}
	if e.floor != nil {
		u.Floor = e.floor.Number
	}
	if e.player != nil {
		u.PlayerHP = e.player.HP()
		u.PlayerMP = e.player.MP()
	}
	return u, enemies, projectiles
}

func (e *Engine) updatePlayerLocked(now time.Time) {
	p := e.player
	p.RegenMana(now)
	for _, name := range p.ExpireEffects(now) {
		e.logger.Debug("effect expired", zap.String("effect", name))
	}
	if p.IsPushed() {
		p.AdvancePushback(now, e.floor.Grid.IsWalkable)
	}
}

func (e *Engine) checkDeathLocked(out *outbox) {
	p := e.player
	if p == nil || e.dead || p.Alive() {
		return
	}
	e.dead = true
	killer := e.killer
	if killer == "" {
		killer = "Enemy"
	}
	level := p.Level()
	floor := 0
	if e.floor != nil {
		floor = e.floor.Number
	}
	e.logger.Info("player died", zap.String("killer", killer), zap.Int("floor", floor), zap.Int("level", level))
	out.emit(event.PlayerDied{Killer: killer, Floor: floor, Level: level, Kills: p.Kills()})
}

// Pause stops simulation. Idempotent.
func (e *Engine) Pause() { e.HandleAction(Pause{}) }

// Resume restarts simulation. Idempotent.
func (e *Engine) Resume() { e.HandleAction(Resume{}) }

// Paused reports whether the engine is paused.
func (e *Engine) Paused() bool {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.paused
}

func (e *Engine) setPausedLocked(paused bool, now time.Time, out *outbox) {
	if e.paused == paused {
		return
	}
	e.paused = paused
	if paused {
		out.emit(event.GamePaused{})
		return
	}
	e.lastTick = now
	out.emit(event.GameResumed{})
}

// FlushNotifications publishes the item pickups batched since the last
// flush as one ItemsCollected.
func (e *Engine) FlushNotifications() {
	if e.disposed.Load() {
		return
	}
	e.stateMu.Lock()
	items := e.pendingItems
	e.pendingItems = nil
	e.stateMu.Unlock()
	if len(items) == 0 {
		return
	}
	var out outbox
	out.emit(event.ItemsCollected{Items: items})
	e.flush(&out)
}

// Dispose stops the engine for good: drivers and samplers are stopped, the
// world is cleared and every observer is dropped. Only the first call has an
// effect.
func (e *Engine) Dispose() {
	if !e.disposed.CompareAndSwap(false, true) {
		return
	}
	e.cancel()
	close(e.stop)

	e.samplersMu.Lock()
	live := make([]*combat.Sampler, 0, len(e.samplers))
	for s := range e.samplers {
		live = append(live, s)
	}
	clear(e.samplers)
	e.samplersMu.Unlock()
	for _, s := range live {
		s.Cancel()
	}

	grace := time.NewTimer(e.cfg.DisposeGrace)
	defer grace.Stop()
	drained := make(chan struct{})
	go func() {
		for _, s := range live {
			<-s.Done()
		}
		e.drivers.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-grace.C:
		e.logger.Warn("dispose grace elapsed with callbacks in flight", zap.Duration("grace", e.cfg.DisposeGrace))
	}

	e.stateMu.Lock()
	e.clearProjectilesLocked()
	e.clearEnemiesLocked()
	e.pendingItems = nil
	e.player = nil
	e.floor = nil
	e.stateMu.Unlock()

	e.bus.Clear()
	e.logger.Info("engine disposed")
}

func (e *Engine) trackSampler(s *combat.Sampler) {
	select {
	case <-s.Done():
		return
	default:
	}
	e.samplersMu.Lock()
	if e.disposed.Load() {
		e.samplersMu.Unlock()
		s.Cancel()
		return
	}
	e.samplers[s] = struct{}{}
	e.samplersMu.Unlock()
	go func() {
		<-s.Done()
		e.samplersMu.Lock()
		delete(e.samplers, s)
		e.samplersMu.Unlock()
	}()
}

// LiveSamplers returns the number of swings still being sampled.
func (e *Engine) LiveSamplers() int {
	e.samplersMu.Lock()
	defer e.samplersMu.Unlock()
	return len(e.samplers)
}

// outbox buffers what a locked section produced.
type outbox struct {
	events []event.Event
	swings []pendingSwing
}

type pendingSwing struct {
	desc combat.Descriptor
	det  combat.Detector
}

func (o *outbox) emit(ev event.Event) { o.events = append(o.events, ev) }

func (o *outbox) swing(desc combat.Descriptor, det combat.Detector) {
	o.swings = append(o.swings, pendingSwing{desc: desc, det: det})
}

// flush publishes buffered events, then starts buffered swings.
//
// Precondition: no engine lock is held.
func (e *Engine) flush(o *outbox) {
	if e.disposed.Load() {
		return
	}
	for _, ev := range o.events {
		e.metrics.CountEvent(ev.Kind())
	}
	e.bus.PublishAll(o.events)
	for _, sw := range o.swings {
		e.trackSampler(combat.StartSampler(e.clk, sw.desc, combat.DefaultSampleInterval, sw.det))
	}
}

// Snapshot returns a consistent copy of the run.
func (e *Engine) Snapshot() Snapshot {
	now := e.clk.Now()
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	s := Snapshot{
		Tick:          e.tick,
		Paused:        e.paused,
		InRun:         e.floor != nil,
		Dead:          e.dead,
		Transitioning: e.transitioning,
		Killer:        e.killer,
	}
	if e.floor != nil {
		s.Floor = e.floor.Number
		s.FloorKind = e.floor.Kind
		s.Layout = e.floor.Layout
	}
	if p := e.player; p != nil {
		s.Player = &PlayerState{
			ID:        p.ID(),
			Name:      p.Name(),
			Class:     p.Class().ID,
			HP:        p.HP(),
			MaxHP:     p.MaxHP(),
			MP:        p.MP(),
			MaxMP:     p.MaxMP(),
			Level:     p.Level(),
			XP:        p.Experience(),
			XPToNext:  p.XPToNext(),
			Kills:     p.Kills(),
			Tile:      p.Tile(),
			Position:  p.Position(),
			Inventory: p.Inventory(),
		}
	}
	s.Projectiles = e.projectilesLocked()
	s.Enemies = e.enemiesLocked(now)
	return s
}

// Enemies returns copies of the live enemies.
func (e *Engine) Enemies() []EnemyState {
	now := e.clk.Now()
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.enemiesLocked(now)
}

// Projectiles returns copies of the projectiles in flight.
func (e *Engine) Projectiles() []combat.ProjectileState {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.projectilesLocked()
}

func (e *Engine) projectilesLocked() []combat.ProjectileState {
	e.projMu.Lock()
	defer e.projMu.Unlock()
	out := make([]combat.ProjectileState, 0, len(e.projectiles))
	for _, p := range e.projectiles {
		out = append(out, p.State())
	}
	return out
}

func (e *Engine) enemiesLocked(now time.Time) []EnemyState {
	e.enemyMu.RLock()
	agents := slices.Clone(e.agents)
	e.enemyMu.RUnlock()
	out := make([]EnemyState, 0, len(agents))
	for _, a := range agents {
		en := a.Enemy()
		out = append(out, EnemyState{
			ID:       en.ID(),
			Name:     en.Name(),
			Class:    en.Class().ID,
			Boss:     en.IsBoss(),
			HP:       en.HP(),
			MaxHP:    en.MaxHP(),
			Tile:     en.Tile(),
			Position: en.Position(),
			State:    a.State(),
			Noticed:  a.ShowingDetection(now),
		})
	}
	return out
}

// Summary describes the current run.
func (e *Engine) Summary() RunSummary {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	s := RunSummary{RunID: e.runID, Killer: e.killer, Dead: e.dead, StartedAt: e.runStarted}
	if e.floor != nil {
		s.Floor = e.floor.Number
	}
	if p := e.player; p != nil {
		s.PlayerName = p.Name()
		s.Class = p.Class().ID
		s.Level = p.Level()
		s.Kills = p.Kills()
	}
	return s
}

func (e *Engine) newGameLocked(classID string, now time.Time, out *outbox) error {
	class, err := e.catalog.Class(classID)
	if err != nil {
		return fmt.Errorf("starting run: %w", err)
	}
	first, err := e.floors.Floor(1, world.KindRegular)
	if err != nil {
		return fmt.Errorf("starting run: %w", err)
	}
	if e.player == nil {
		e.player = entity.NewPlayer(e.cfg.PlayerName, class, first.Spawn, now)
	} else {
		e.player.Reset(class, first.Spawn, now)
	}
	e.floorCount = 1
	e.bonusChance = BaseBonusChance
	e.bonusTriggered = false
	e.transitioning = false
	e.dead = false
	e.killer = ""
	e.paused = false
	e.pendingItems = nil
	e.lastTick = now
	e.runID = uuid.NewString()
	e.runStarted = now
	e.clearProjectilesLocked()
	e.enterFloorLocked(first)

	e.logger.Info("run started", zap.String("run", e.runID), zap.String("class", class.ID))
	out.emit(event.FloorAdvanced{Floor: first.Number, FloorKind: string(first.Kind)})
	out.emit(event.InventoryChanged{Items: e.player.Inventory()})
	return nil
}

func (e *Engine) returnToMenuLocked() {
	e.clearProjectilesLocked()
	e.clearEnemiesLocked()
	e.floor = nil
	e.transitioning = false
	e.pendingItems = nil
	e.paused = false
	e.logger.Info("run left", zap.String("run", e.runID))
}

func (e *Engine) clearProjectilesLocked() {
	e.projMu.Lock()
	clear(e.projectiles)
	e.projectiles = e.projectiles[:0]
	e.projMu.Unlock()
}

func (e *Engine) clearEnemiesLocked() {
	e.enemyUpdateMu.Lock()
	e.enemyMu.Lock()
	clear(e.agents)
	e.agents = e.agents[:0]
	e.enemyMu.Unlock()
	e.enemyUpdateMu.Unlock()
}

func (e *Engine) addProjectilesLocked(ps []*combat.Projectile) {
	if len(ps) == 0 {
		return
	}
	e.projMu.Lock()
	e.projectiles = append(e.projectiles, ps...)
	e.projMu.Unlock()
}
