package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/rogue/internal/clock"
	"github.com/cory-johannsen/rogue/internal/game/ai"
	"github.com/cory-johannsen/rogue/internal/game/combat"
	"github.com/cory-johannsen/rogue/internal/game/dice"
	"github.com/cory-johannsen/rogue/internal/game/event"
	"github.com/cory-johannsen/rogue/internal/game/geom"
	"github.com/cory-johannsen/rogue/internal/game/ruleset"
	"github.com/cory-johannsen/rogue/internal/game/world"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// fixedSource answers every draw with v mod n. 0 makes every chance succeed;
// 99 makes loot, celebration and bonus rolls fail.
type fixedSource struct{ v int }

func (f fixedSource) Intn(n int) int { return f.v % n }

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) OnEvent(e event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func (r *recorder) kinds() []event.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind())
	}
	return out
}

func eventsOf[T event.Event](r *recorder) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []T
	for _, e := range r.events {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func arena(enemies ...world.EnemySpawn) *world.Layout {
	return &world.Layout{
		ID:   "arena",
		Kind: world.KindRegular,
		Rows: []string{
			"#########",
			"#.......#",
			"#.......#",
			"#......>#",
			"#########",
		},
		Spawn:   geom.Tile{X: 1, Y: 1},
		Enemies: enemies,
	}
}

func bossRoom() *world.Layout {
	l := arena(world.EnemySpawn{Tile: geom.Tile{X: 6, Y: 1}, Class: "warrior", Boss: true})
	l.ID = "throne"
	l.Kind = world.KindBoss
	return l
}

type harness struct {
	e   *Engine
	clk *clock.Fake
	rec *recorder
}

func newHarness(t *testing.T, roll int, class string, layouts ...*world.Layout) *harness {
	t.Helper()
	h, err := buildHarness(roll, class, layouts...)
	require.NoError(t, err)
	t.Cleanup(h.e.Dispose)
	return h
}

func buildHarness(roll int, class string, layouts ...*world.Layout) (*harness, error) {
	cat, err := ruleset.DefaultCatalog()
	if err != nil {
		return nil, err
	}
	if len(layouts) == 0 {
		layouts = []*world.Layout{arena()}
	}
	lib, err := world.NewLibrary(layouts...)
	if err != nil {
		return nil, err
	}
	clk := clock.NewFake(epoch)
	rec := &recorder{}
	bus := event.NewBus(zap.NewNop())
	bus.Subscribe(rec)
	e, err := New(Options{
		Config:  Config{StartClass: class},
		Clock:   clk,
		Roller:  dice.NewLoggedRoller(fixedSource{v: roll}, zap.NewNop()),
		Catalog: cat,
		Floors:  lib,
		Bus:     bus,
	})
	if err != nil {
		return nil, err
	}
	return &harness{e: e, clk: clk, rec: rec}, nil
}

func (h *harness) agent(t *testing.T, i int) *ai.Agent {
	t.Helper()
	h.e.enemyMu.RLock()
	defer h.e.enemyMu.RUnlock()
	require.Greater(t, len(h.e.agents), i)
	return h.e.agents[i]
}

// step advances the clock by d and runs one tick.
func (h *harness) step(d time.Duration) {
	h.clk.Advance(d)
	h.e.Tick()
}

// descend hands the player a key, walks onto the stairs and waits out the
// transition.
func (h *harness) descend(t *testing.T) {
	t.Helper()
	h.e.stateMu.Lock()
	h.e.player.AddItem(ruleset.FloorKey())
	h.e.player.SetTile(geom.Tile{X: 6, Y: 3})
	h.e.stateMu.Unlock()
	h.e.HandleAction(Move{DX: 1})
	require.True(t, h.e.Snapshot().Transitioning)
	h.step(h.e.cfg.FloorTransition)
}

// aimedAt returns an aim whose swing starts sweeping exactly at target, so
// the synchronous first sample lands.
func aimedAt(from, target geom.Vec, widthDeg float64) geom.Vec {
	return geom.FromAngle(target.Sub(from).Angle() + geom.Radians(widthDeg)/2)
}

func TestNew_OpensFirstFloor(t *testing.T) {
	h := newHarness(t, 99, "warrior")
	snap := h.e.Snapshot()
	assert.True(t, snap.InRun)
	assert.Equal(t, 1, snap.Floor)
	assert.Equal(t, world.KindRegular, snap.FloorKind)
	require.NotNil(t, snap.Player)
	assert.Equal(t, "warrior", snap.Player.Class)
	assert.Equal(t, geom.Tile{X: 1, Y: 1}, snap.Player.Tile)
	assert.Equal(t, []event.Kind{event.KindFloorAdvanced, event.KindInventoryChanged}, h.rec.kinds())
}

func TestNew_RequiresCatalogAndFloors(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestNew_UnknownStartClass(t *testing.T) {
	_, err := buildHarness(0, "bard")
	assert.Error(t, err)
}

func TestDispose_Idempotent(t *testing.T) {
	h := newHarness(t, 99, "warrior")
	h.e.Dispose()
	assert.NotPanics(t, h.e.Dispose)
	assert.True(t, h.e.Disposed())
	assert.ErrorIs(t, h.e.Start(context.Background()), ErrDisposed)
	assert.Zero(t, h.e.Bus().Len())

	h.e.HandleAction(Move{DX: 1})
	h.e.Tick()
	assert.False(t, h.e.Snapshot().InRun)
}

func TestStart_DriversTickAndStopOnDispose(t *testing.T) {
	h := newHarness(t, 99, "warrior")
	require.NoError(t, h.e.Start(context.Background()))
	assert.ErrorIs(t, h.e.Start(context.Background()), ErrAlreadyStarted)
	assert.Equal(t, 2, h.clk.ActiveTickers())

	assert.Eventually(t, func() bool {
		h.clk.Advance(DefaultTickInterval)
		return h.e.Snapshot().Tick > 0
	}, time.Second, 5*time.Millisecond)

	h.e.Dispose()
	assert.Eventually(t, func() bool { return h.clk.ActiveTickers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestPause_Idempotent(t *testing.T) {
	h := newHarness(t, 99, "warrior")
	h.rec.reset()

	h.e.Pause()
	h.e.Pause()
	assert.True(t, h.e.Paused())
	before := h.e.Snapshot().Tick
	h.step(time.Second)
	assert.Equal(t, before, h.e.Snapshot().Tick)

	h.e.Resume()
	h.e.Resume()
	assert.False(t, h.e.Paused())
	h.e.HandleAction(TogglePause{})
	assert.True(t, h.e.Paused())

	assert.Equal(t, []event.Kind{event.KindGamePaused, event.KindGameResumed, event.KindGamePaused}, h.rec.kinds())
}

func TestTick_PublishesStateUpdated(t *testing.T) {
	h := newHarness(t, 99, "warrior", arena(world.EnemySpawn{Tile: geom.Tile{X: 7, Y: 1}, Class: "warrior"}))
	h.rec.reset()
	h.step(DefaultTickInterval)
	updates := eventsOf[event.StateUpdated](h.rec)
	require.Len(t, updates, 1)
	assert.Equal(t, uint64(1), updates[0].Tick)
	assert.Equal(t, 1, updates[0].Floor)
	assert.Equal(t, 1, updates[0].Enemies)
	assert.Equal(t, 120, updates[0].PlayerHP)
}

func TestHandleAction_InvalidActions(t *testing.T) {
	h := newHarness(t, 99, "warrior")
	h.rec.reset()

	h.e.HandleAction(nil)
	h.e.HandleAction(bogus{})
	h.e.HandleAction(NewGame{Class: "bard"})

	got := eventsOf[event.InvalidAction](h.rec)
	assert.Equal(t, []event.InvalidAction{{Action: "bogus"}, {Action: "new_game"}}, got)
}

type bogus struct{}

func (bogus) Name() string { return "bogus" }

func TestMove_BlockedByWallsAndEnemies(t *testing.T) {
	h := newHarness(t, 99, "warrior", arena(world.EnemySpawn{Tile: geom.Tile{X: 2, Y: 2}, Class: "warrior"}))

	h.e.HandleAction(Move{DX: -1})
	h.e.HandleAction(Move{DY: -5})
	assert.Equal(t, geom.Tile{X: 1, Y: 1}, h.e.Snapshot().Player.Tile)

	h.e.HandleAction(Move{DX: 3, DY: 4})
	assert.Equal(t, geom.Tile{X: 1, Y: 1}, h.e.Snapshot().Player.Tile)

	h.e.HandleAction(Move{DX: 1})
	assert.Equal(t, geom.Tile{X: 2, Y: 1}, h.e.Snapshot().Player.Tile)
}

func TestMove_StaysOnWalkableTiles(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		h, err := buildHarness(99, "warrior", arena(world.EnemySpawn{Tile: geom.Tile{X: 4, Y: 2}, Class: "warrior"}))
		require.NoError(rt, err)
		defer h.e.Dispose()
		grid := h.e.floor.Grid
		moves := rapid.SliceOfN(rapid.IntRange(-2, 2), 2, 60).Draw(rt, "moves")
		for i := 0; i+1 < len(moves); i += 2 {
			h.e.HandleAction(Move{DX: moves[i], DY: moves[i+1]})
			tile := h.e.Snapshot().Player.Tile
			if !grid.IsWalkable(tile) {
				rt.Fatalf("player on unwalkable tile %v", tile)
			}
			if tile == (geom.Tile{X: 4, Y: 2}) {
				rt.Fatalf("player walked onto the enemy")
			}
		}
	})
}

func TestMove_StairsNeedAKey(t *testing.T) {
	h := newHarness(t, 99, "warrior")
	h.e.stateMu.Lock()
	h.e.player.SetTile(geom.Tile{X: 6, Y: 3})
	h.e.stateMu.Unlock()
	h.rec.reset()

	h.e.HandleAction(Move{DX: 1})
	assert.Contains(t, eventsOf[event.LogMessage](h.rec), event.LogMessage{Text: msgStairsShut})
	assert.False(t, h.e.Snapshot().Transitioning)
}

func TestFloorTransition(t *testing.T) {
	h := newHarness(t, 99, "warrior", arena(world.EnemySpawn{Tile: geom.Tile{X: 5, Y: 1}, Class: "warrior"}))
	h.e.stateMu.Lock()
	h.e.player.AddItem(ruleset.FloorKey())
	h.e.player.SetTile(geom.Tile{X: 6, Y: 3})
	h.e.stateMu.Unlock()
	h.rec.reset()

	h.e.HandleAction(Move{DX: 1})
	assert.Equal(t, []event.FloorTransitionStarted{{From: 1}}, eventsOf[event.FloorTransitionStarted](h.rec))
	snap := h.e.Snapshot()
	assert.True(t, snap.Transitioning)
	assert.Empty(t, snap.Enemies)
	assert.Empty(t, snap.Projectiles)
	assert.NotContains(t, snap.Player.Inventory, ruleset.FloorKey())

	h.step(time.Second)
	assert.Empty(t, eventsOf[event.FloorAdvanced](h.rec))
	h.e.HandleAction(Move{DX: -1})
	assert.Equal(t, geom.Tile{X: 7, Y: 3}, h.e.Snapshot().Player.Tile)

	h.step(time.Second)
	assert.Equal(t, []event.FloorAdvanced{{Floor: 2, FloorKind: "regular"}}, eventsOf[event.FloorAdvanced](h.rec))
	snap = h.e.Snapshot()
	assert.False(t, snap.Transitioning)
	assert.Equal(t, 2, snap.Floor)
	assert.Equal(t, geom.Tile{X: 1, Y: 1}, snap.Player.Tile)
	assert.Len(t, snap.Enemies, 1)
}

func TestFloorKinds_BossEveryThirdFloor(t *testing.T) {
	h := newHarness(t, 99, "warrior", arena(), bossRoom())
	h.descend(t)
	h.descend(t)
	h.descend(t)
	h.descend(t)

	var kinds []string
	for _, f := range eventsOf[event.FloorAdvanced](h.rec) {
		kinds = append(kinds, f.FloorKind)
	}
	assert.Equal(t, []string{"regular", "regular", "boss", "regular", "regular"}, kinds)
}

func TestFloorKinds_BonusAfterThirdFloor(t *testing.T) {
	bonus := arena()
	bonus.ID = "vault"
	bonus.Kind = world.KindBonus
	h := newHarness(t, 0, "warrior", arena(), bossRoom(), bonus)
	for range 5 {
		h.descend(t)
	}

	var kinds []string
	for _, f := range eventsOf[event.FloorAdvanced](h.rec) {
		kinds = append(kinds, f.FloorKind)
	}
	// Leaving a bonus floor resets the chance, so an always-true roll chains
	// bonus floors until the next boss.
	assert.Equal(t, []string{"regular", "regular", "boss", "bonus", "bonus", "boss"}, kinds)
}

func TestPlayerSwing_HitsAndStuns(t *testing.T) {
	h := newHarness(t, 99, "warrior", arena(world.EnemySpawn{Tile: geom.Tile{X: 3, Y: 1}, Class: "warrior"}))
	a := h.agent(t, 0)
	en := a.Enemy()

	h.e.stateMu.Lock()
	p := h.e.player
	en.SetPosition(p.Position().Add(geom.Vec{X: 0.9 * geom.TileSize}))
	aim := aimedAt(p.Center(), en.Center(), p.Class().AttackWidth)
	h.e.stateMu.Unlock()
	h.rec.reset()

	h.e.HandleAction(Attack{Aim: aim})

	assert.Len(t, eventsOf[event.PlayerAttacked](h.rec), 1)
	want := max(1, p.TotalAttack()-en.TotalDefense())
	assert.Equal(t, en.MaxHP()-want, en.HP())
	assert.Equal(t, ai.StateHitStun, a.State())
	assert.True(t, en.IsPushed())
	assert.Empty(t, eventsOf[event.EnemyDefeated](h.rec))

	h.e.HandleAction(Attack{Aim: aim})
	assert.Len(t, eventsOf[event.PlayerAttacked](h.rec), 1, "cooldown blocks a second swing")
}

func TestPlayerHit_StunnedEnemyIsImmune(t *testing.T) {
	h := newHarness(t, 99, "warrior", arena(world.EnemySpawn{Tile: geom.Tile{X: 3, Y: 1}, Class: "warrior"}))
	a := h.agent(t, 0)
	en := a.Enemy()

	h.e.stateMu.Lock()
	p := h.e.player
	en.SetPosition(p.Position().Add(geom.Vec{X: 0.9 * geom.TileSize}))
	aim := aimedAt(p.Center(), en.Center(), p.Class().AttackWidth)
	h.e.stateMu.Unlock()

	h.e.HandleAction(Attack{Aim: aim})
	require.Equal(t, ai.StateHitStun, a.State())
	hp := en.HP()
	require.Less(t, hp, en.MaxHP())

	h.step(950 * time.Millisecond)
	require.Equal(t, ai.StateHitStun, a.State())
	assert.True(t, en.IsImmune(h.clk.Now()))

	var out outbox
	h.e.stateMu.Lock()
	landed := h.e.hitEnemyLocked(a, p.Center(), p.TotalAttack(), 1, true, h.clk.Now(), &out)
	h.e.stateMu.Unlock()
	h.e.flush(&out)

	assert.False(t, landed)
	assert.Equal(t, hp, en.HP())
	assert.Equal(t, ai.StateHitStun, a.State())
}

func TestPlayerSwing_KillGrantsExperience(t *testing.T) {
	h := newHarness(t, 99, "warrior", arena(world.EnemySpawn{Tile: geom.Tile{X: 2, Y: 1}, Class: "warrior"}))
	a := h.agent(t, 0)
	en := a.Enemy()
	en.TakeDamage(en.HP() - 1)

	h.e.stateMu.Lock()
	p := h.e.player
	aim := aimedAt(p.Center(), en.Center(), p.Class().AttackWidth)
	h.e.stateMu.Unlock()
	h.rec.reset()

	h.e.HandleAction(Attack{Aim: aim})

	defeated := eventsOf[event.EnemyDefeated](h.rec)
	require.Len(t, defeated, 1)
	assert.Equal(t, 149, defeated[0].Experience)
	assert.Equal(t, "warrior", defeated[0].Class)
	assert.Contains(t, eventsOf[event.LogMessage](h.rec), event.LogMessage{Text: "Enemy warrior defeated!"})
	assert.Equal(t, []event.ExperienceGained{{Amount: 149}}, eventsOf[event.ExperienceGained](h.rec))
	assert.Equal(t, ai.StateDying, a.State())
	assert.Equal(t, 1, h.e.Snapshot().Player.Kills)
	assert.Empty(t, h.e.floor.Grid.ItemsAt(geom.Tile{X: 2, Y: 1}), "failed loot roll drops nothing")

	h.step(ai.DyingDuration + time.Millisecond)
	assert.Empty(t, h.e.Enemies())
}

func TestKill_DropsLootAndBossKey(t *testing.T) {
	h := newHarness(t, 0, "warrior", arena(), bossRoom())
	h.descend(t)
	h.descend(t)
	require.Equal(t, world.KindBoss, h.e.Snapshot().FloorKind)
	h.rec.reset()
	a := h.agent(t, 0)
	en := a.Enemy()
	require.True(t, en.IsBoss())

	var out outbox
	h.e.stateMu.Lock()
	h.e.killLocked(a, h.clk.Now(), &out)
	h.e.stateMu.Unlock()
	h.e.flush(&out)

	items := h.e.floor.Grid.ItemsAt(en.Tile())
	require.Len(t, items, 2)
	assert.Equal(t, ruleset.FloorKeyName, items[0].Name)
	assert.Equal(t, "Rusty Sword", items[1].Name)
	assert.Len(t, eventsOf[event.BossDefeated](h.rec), 1)
	assert.Equal(t, []event.ExperienceGained{{Amount: 250}}, eventsOf[event.ExperienceGained](h.rec))
}

func TestItemsCollected_Batched(t *testing.T) {
	h := newHarness(t, 99, "warrior")
	potion := ruleset.Item{Name: "Health Potion", Kind: ruleset.KindConsumable, Effect: ruleset.EffectHealth, Value: 50}
	h.e.floor.Grid.PlaceItem(geom.Tile{X: 2, Y: 1}, potion)
	h.e.floor.Grid.PlaceItem(geom.Tile{X: 3, Y: 1}, ruleset.FloorKey())
	h.rec.reset()

	h.e.HandleAction(Move{DX: 1})
	h.e.HandleAction(Move{DX: 1})
	assert.Empty(t, eventsOf[event.ItemsCollected](h.rec))
	assert.Contains(t, eventsOf[event.LogMessage](h.rec), event.LogMessage{Text: msgKeyPickedUp})

	h.e.FlushNotifications()
	h.e.FlushNotifications()
	got := eventsOf[event.ItemsCollected](h.rec)
	require.Len(t, got, 1)
	assert.Equal(t, []ruleset.Item{potion, ruleset.FloorKey()}, got[0].Items)
}

func TestAttack_ManaGate(t *testing.T) {
	h := newHarness(t, 99, "mage", arena(world.EnemySpawn{Tile: geom.Tile{X: 7, Y: 2}, Class: "warrior"}))
	h.e.stateMu.Lock()
	h.e.player.UseMP(h.e.player.MP())
	h.e.stateMu.Unlock()
	h.rec.reset()

	h.e.HandleAction(Attack{Aim: geom.Vec{X: 1}})
	assert.Len(t, eventsOf[event.PlayerAttacked](h.rec), 1)
	assert.Contains(t, eventsOf[event.LogMessage](h.rec), event.LogMessage{Text: msgNoMana})
	assert.Empty(t, h.e.Projectiles())
}

func TestAttack_ProjectileFlight(t *testing.T) {
	h := newHarness(t, 99, "ranger", arena(world.EnemySpawn{Tile: geom.Tile{X: 4, Y: 1}, Class: "warrior"}))
	a := h.agent(t, 0)
	en := a.Enemy()
	h.rec.reset()

	h.e.HandleAction(Attack{Aim: geom.Vec{X: 1}})
	assert.Len(t, eventsOf[event.PlayerBowAttack](h.rec), 1)
	shots := eventsOf[event.PlayerProjectileAttack](h.rec)
	require.Len(t, shots, 1)
	assert.Equal(t, combat.FactionPlayer, shots[0].Projectile.Faction)
	assert.Len(t, h.e.Projectiles(), 1)

	for range 10 {
		if len(h.e.Projectiles()) == 0 {
			break
		}
		h.step(50 * time.Millisecond)
	}
	assert.Empty(t, h.e.Projectiles())
	p := h.e.Snapshot().Player
	require.NotNil(t, p)
	assert.Equal(t, en.MaxHP()-max(1, 16-en.TotalDefense()), en.HP())
	assert.Equal(t, ai.StateHitStun, a.State())
}

func TestEnemy_SpotsWindsUpAndSwings(t *testing.T) {
	h := newHarness(t, 99, "warrior", arena(world.EnemySpawn{Tile: geom.Tile{X: 2, Y: 1}, Class: "warrior"}))
	h.rec.reset()

	h.step(DefaultTickInterval)
	assert.Contains(t, eventsOf[event.LogMessage](h.rec), event.LogMessage{Text: ai.SpottedMessage("warrior", 1)})
	assert.True(t, h.e.Enemies()[0].Noticed)

	h.step(ai.DetectionNotice + DefaultTickInterval)
	assert.Len(t, eventsOf[event.WindUpStarted](h.rec), 1)
	assert.Empty(t, eventsOf[event.EnemySwingAttack](h.rec))

	h.step(ai.WindUpDuration + DefaultTickInterval)
	assert.Len(t, eventsOf[event.EnemySwingAttack](h.rec), 1)
}

func TestEnemySwing_DamagesPlayer(t *testing.T) {
	h := newHarness(t, 99, "warrior", arena(world.EnemySpawn{Tile: geom.Tile{X: 2, Y: 1}, Class: "warrior"}))
	a := h.agent(t, 0)
	en := a.Enemy()
	h.e.stateMu.Lock()
	p := h.e.player
	h.e.stateMu.Unlock()
	h.rec.reset()

	desc := combat.NewSwing(en.Center(), aimedAt(en.Center(), p.Center(), en.Class().AttackWidth), en.MeleeRange(), en.Class().AttackWidth, h.clk.Now())
	s := combat.StartSampler(h.clk, desc, combat.DefaultSampleInterval, h.e.enemySwing(a))
	defer s.Cancel()

	want := max(1, en.TotalAttack()-p.TotalDefense())
	assert.Equal(t, []event.PlayerDamaged{{Amount: want, HP: 120 - want, SourceID: en.ID()}}, eventsOf[event.PlayerDamaged](h.rec))
	assert.True(t, p.IsImmune(h.clk.Now()))
	assert.Equal(t, "Enemy:WARRIOR", h.e.Summary().Killer)
	assert.Equal(t, ai.StateFallback, a.State())
}

func TestPlayerDeath_PublishedOnce(t *testing.T) {
	h := newHarness(t, 99, "warrior", arena(world.EnemySpawn{Tile: geom.Tile{X: 2, Y: 1}, Class: "warrior"}))
	a := h.agent(t, 0)
	h.rec.reset()

	var out outbox
	h.e.stateMu.Lock()
	h.e.player.TakeDamage(h.e.player.HP() - 1)
	h.e.damagePlayerLocked(a.Enemy(), a, ai.AttackMelee, h.clk.Now(), &out)
	h.e.checkDeathLocked(&out)
	h.e.checkDeathLocked(&out)
	h.e.stateMu.Unlock()
	h.e.flush(&out)

	hits := eventsOf[event.PlayerDamaged](h.rec)
	require.Len(t, hits, 1)
	assert.Equal(t, max(1, a.Enemy().TotalAttack()-h.e.player.TotalDefense()), hits[0].Amount, "reports the full hit, not the 1 HP lost")
	assert.Zero(t, hits[0].HP)

	died := eventsOf[event.PlayerDied](h.rec)
	require.Len(t, died, 1)
	assert.Equal(t, "Enemy:WARRIOR", died[0].Killer)
	assert.Equal(t, 1, died[0].Floor)
	assert.True(t, h.e.Snapshot().Dead)

	h.e.HandleAction(Move{DX: 1})
	assert.Equal(t, geom.Tile{X: 1, Y: 1}, h.e.Snapshot().Player.Tile)

	h.e.HandleAction(NewGame{Class: "rogue"})
	snap := h.e.Snapshot()
	assert.False(t, snap.Dead)
	assert.Equal(t, "rogue", snap.Player.Class)
	assert.Empty(t, snap.Killer)
}

func TestUseItem(t *testing.T) {
	h := newHarness(t, 99, "warrior")
	h.rec.reset()

	h.e.HandleAction(UseItem{Item: "Health Potion"})
	assert.Equal(t, []event.LogMessage{{Text: "Health Potion would have no effect right now."}}, eventsOf[event.LogMessage](h.rec))

	h.e.HandleAction(UseItem{Item: "Iron Sword"})
	h.e.HandleAction(UseItem{Item: "Elixir"})
	assert.Equal(t, []event.InvalidAction{{Action: "use_item"}, {Action: "use_item"}}, eventsOf[event.InvalidAction](h.rec))

	h.e.stateMu.Lock()
	h.e.player.TakeDamage(30)
	h.e.player.AddItem(ruleset.Item{Name: "Tome", Kind: ruleset.KindConsumable, Effect: ruleset.EffectExperience, Value: 1000})
	h.e.stateMu.Unlock()
	h.rec.reset()

	h.e.HandleAction(UseItem{Item: "Health Potion"})
	assert.Equal(t, 120, h.e.Snapshot().Player.HP)
	h.e.HandleAction(UseItem{Item: "Tome"})
	assert.Equal(t, []event.LevelUp{{Level: 2}}, eventsOf[event.LevelUp](h.rec))
	assert.Contains(t, eventsOf[event.LogMessage](h.rec), event.LogMessage{Text: msgLevelUp})
	assert.Len(t, eventsOf[event.InventoryChanged](h.rec), 2)
}

func TestReturnToMenu(t *testing.T) {
	h := newHarness(t, 99, "warrior", arena(world.EnemySpawn{Tile: geom.Tile{X: 5, Y: 2}, Class: "warrior"}))
	h.e.HandleAction(ReturnToMenu{})
	snap := h.e.Snapshot()
	assert.False(t, snap.InRun)
	assert.Empty(t, snap.Enemies)

	before := snap.Tick
	h.step(time.Second)
	assert.Equal(t, before, h.e.Snapshot().Tick)
}

func TestSnapshot_IsACopy(t *testing.T) {
	h := newHarness(t, 99, "warrior")
	snap := h.e.Snapshot()
	require.NotEmpty(t, snap.Player.Inventory)
	snap.Player.Inventory[0].Name = "Mutated"
	assert.NotEqual(t, "Mutated", h.e.Snapshot().Player.Inventory[0].Name)
}
