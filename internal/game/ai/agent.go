// Package ai drives enemy behaviour: a per-enemy state machine that notices
// the player, chases, winds up and commits to attacks, reels from hits,
// retreats, celebrates and dies.
package ai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/cory-johannsen/rogue/internal/game/dice"
	"github.com/cory-johannsen/rogue/internal/game/entity"
	"github.com/cory-johannsen/rogue/internal/game/geom"
	"github.com/cory-johannsen/rogue/internal/game/world"
)

// State is an agent state name.
type State string

const (
	StateIdle        State = "idle"
	StateChasing     State = "chasing"
	StateWindUp      State = "windup"
	StateHitStun     State = "hitstun"
	StateFallback    State = "fallback"
	StateCelebrating State = "celebrating"
	StateDying       State = "dying"
	StateDeleted     State = "deleted"
)

const (
	evSpot      = "spot"
	evLose      = "lose"
	evWindUp    = "wind_up"
	evStrike    = "strike"
	evStun      = "stun"
	evRecover   = "recover"
	evRetreat   = "retreat"
	evRegroup   = "regroup"
	evCelebrate = "celebrate"
	evFinish    = "finish_celebrating"
	evDie       = "die"
	evRemove    = "remove"
)

// Behaviour timings.
const (
	ChaseDuration          = 3000 * time.Millisecond
	DetectionNotice        = 500 * time.Millisecond
	WindUpDuration         = 500 * time.Millisecond
	HitStunDuration        = 2200 * time.Millisecond
	PostStunImmunity       = 800 * time.Millisecond
	FallbackDuration       = 1200 * time.Millisecond
	CelebrationDelay       = 1200 * time.Millisecond
	CelebrationDuration    = 2000 * time.Millisecond
	CelebrationImmunity    = 500 * time.Millisecond
	DyingDuration          = 2000 * time.Millisecond
	ProjectileChaseRefresh = 5000 * time.Millisecond
)

// Movement tuning.
const (
	FallbackTiles      = 1.5
	FallbackSpeedScale = 0.8
	// LowHealthFraction switches the spotted message to a warning.
	LowHealthFraction = 0.25
	// CelebrationOdds is the n in the 1-in-n chance to celebrate a hit.
	CelebrationOdds = 4
)

// PlayerView is what an agent may know about the player on one update.
type PlayerView struct {
	Tile       geom.Tile
	Center     geom.Vec
	HPFraction float64
	Visible    bool
	Alive      bool
}

// Surroundings is the terrain an agent moves through.
type Surroundings struct {
	Map world.Map
	// Occupied reports tiles held by other entities; nil means none.
	Occupied func(geom.Tile) bool
}

func (s Surroundings) free(t geom.Tile) bool {
	if s.Map == nil || !s.Map.IsWalkable(t) {
		return false
	}
	return s.Occupied == nil || !s.Occupied(t)
}

// Outcome is what the engine must carry out after an update.
type Outcome struct {
	// Spotted holds the log line raised when the enemy first notices the
	// player in an alert cycle.
	Spotted string
	WindUp  bool
	Attack  AttackKind
	Aim     geom.Vec
	Moved   bool
	Delete  bool
}

// Agent is the behaviour of one enemy.
//
// Agent methods lock the agent and then the enemy; nothing else is locked
// from inside an agent.
type Agent struct {
	enemy   *entity.Enemy
	pattern Pattern
	roller  *dice.Roller
	logger  *zap.Logger

	mu      sync.Mutex
	machine *fsm.FSM

	alerted     bool
	lastUpdate  time.Time
	lastMove    time.Time
	chaseUntil  time.Time
	detectUntil time.Time
	windUpUntil time.Time
	stunUntil   time.Time
	fallUntil   time.Time
	celebrateAt time.Time
	partyUntil  time.Time
	dyingUntil  time.Time

	fallDir       geom.Vec
	fallRemaining float64
	lastPlayer    PlayerView
}

// NewAgent creates an idle agent for enemy. pattern may be nil.
//
// Precondition: enemy, roller and logger must be non-nil.
func NewAgent(enemy *entity.Enemy, pattern Pattern, roller *dice.Roller, logger *zap.Logger) *Agent {
	a := &Agent{
		enemy:   enemy,
		pattern: pattern,
		roller:  roller,
		logger:  logger.With(zap.String("enemy", enemy.ID()), zap.String("class", enemy.Class().ID)),
		alerted: true,
	}
	live := []string{string(StateIdle), string(StateChasing), string(StateWindUp), string(StateHitStun), string(StateFallback), string(StateCelebrating)}
	a.machine = fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: evSpot, Src: []string{string(StateIdle)}, Dst: string(StateChasing)},
			{Name: evLose, Src: []string{string(StateChasing), string(StateWindUp)}, Dst: string(StateIdle)},
			{Name: evWindUp, Src: []string{string(StateChasing)}, Dst: string(StateWindUp)},
			{Name: evStrike, Src: []string{string(StateWindUp)}, Dst: string(StateChasing)},
			{Name: evStun, Src: []string{string(StateIdle), string(StateChasing), string(StateWindUp), string(StateFallback), string(StateCelebrating)}, Dst: string(StateHitStun)},
			{Name: evRecover, Src: []string{string(StateHitStun)}, Dst: string(StateChasing)},
			{Name: evRetreat, Src: []string{string(StateChasing), string(StateWindUp), string(StateIdle)}, Dst: string(StateFallback)},
			{Name: evRegroup, Src: []string{string(StateFallback)}, Dst: string(StateChasing)},
			{Name: evCelebrate, Src: []string{string(StateIdle), string(StateChasing), string(StateWindUp), string(StateFallback)}, Dst: string(StateCelebrating)},
			{Name: evFinish, Src: []string{string(StateCelebrating)}, Dst: string(StateChasing)},
			{Name: evDie, Src: live, Dst: string(StateDying)},
			{Name: evRemove, Src: []string{string(StateDying)}, Dst: string(StateDeleted)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				a.logger.Debug("enemy state", zap.String("from", e.Src), zap.String("to", e.Dst), zap.String("event", e.Event))
			},
			"enter_" + string(StateCelebrating): func(_ context.Context, e *fsm.Event) {
				now := eventTime(e)
				a.partyUntil = now.Add(CelebrationDuration)
				a.chaseUntil = now.Add(ChaseDuration)
				a.enemy.SetImmuneFor(now, CelebrationImmunity)
			},
			"enter_" + string(StateIdle): func(context.Context, *fsm.Event) {
				a.alerted = true
				a.detectUntil = time.Time{}
			},
		},
	)
	return a
}

func eventTime(e *fsm.Event) time.Time {
	if len(e.Args) > 0 {
		if t, ok := e.Args[0].(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}

// Enemy returns the controlled enemy.
func (a *Agent) Enemy() *entity.Enemy { return a.enemy }

// State returns the current state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateLocked()
}

func (a *Agent) stateLocked() State { return State(a.machine.Current()) }

// ShouldBeDeleted reports whether the death sequence has finished.
func (a *Agent) ShouldBeDeleted() bool {
	return a.State() == StateDeleted
}

// IsDying reports whether the enemy is dying or gone.
func (a *Agent) IsDying() bool {
	s := a.State()
	return s == StateDying || s == StateDeleted
}

// ShowingDetection reports whether the "spotted" notice is up at now.
func (a *Agent) ShowingDetection(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return now.Before(a.detectUntil)
}

// ChaseUntil returns the chase deadline.
func (a *Agent) ChaseUntil() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.chaseUntil
}

func (a *Agent) fire(ctx context.Context, event string, now time.Time) bool {
	if !a.machine.Can(event) {
		return false
	}
	if err := a.machine.Event(ctx, event, now); err != nil {
		a.logger.Warn("enemy transition failed", zap.String("event", event), zap.Error(err))
		return false
	}
	return true
}

// Update advances the agent to now.
func (a *Agent) Update(ctx context.Context, now time.Time, player PlayerView, env Surroundings) Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	var dt time.Duration
	if !a.lastUpdate.IsZero() {
		dt = now.Sub(a.lastUpdate)
	}
	a.lastUpdate = now
	a.lastPlayer = player

	var out Outcome
	state := a.stateLocked()
	if state == StateDeleted {
		out.Delete = true
		return out
	}
	if state == StateDying {
		if !now.Before(a.dyingUntil) && a.fire(ctx, evRemove, now) {
			out.Delete = true
		}
		return out
	}

	if !a.celebrateAt.IsZero() && !now.Before(a.celebrateAt) {
		a.celebrateAt = time.Time{}
		if a.enemy.Alive() && state != StateHitStun {
			a.fire(ctx, evCelebrate, now)
			return out
		}
	}

	switch state {
	case StateHitStun:
		if now.Before(a.stunUntil) {
			return out
		}
		a.enemy.SetImmuneFor(now, PostStunImmunity)
		a.chaseUntil = now.Add(ChaseDuration)
		a.fire(ctx, evRecover, now)
	case StateFallback:
		out.Moved = a.stepFallbackLocked(dt, env)
		if !now.Before(a.fallUntil) {
			a.fire(ctx, evRegroup, now)
		}
	case StateCelebrating:
		if !now.Before(a.partyUntil) {
			a.fire(ctx, evFinish, now)
		}
	case StateIdle:
		a.updateIdleLocked(ctx, now, player, env, &out)
	case StateChasing:
		a.updateChasingLocked(ctx, now, player, env, &out)
	case StateWindUp:
		a.updateWindUpLocked(ctx, now, player, &out)
	}
	return out
}

func (a *Agent) canSeeLocked(player PlayerView, env Surroundings) bool {
	if !player.Alive || !player.Visible || env.Map == nil {
		return false
	}
	at := a.enemy.Tile()
	if at.Manhattan(player.Tile) > a.enemy.AggroRange() {
		return false
	}
	return env.Map.HasLineOfSight(at, player.Tile)
}

func (a *Agent) updateIdleLocked(ctx context.Context, now time.Time, player PlayerView, env Surroundings, out *Outcome) {
	if !a.canSeeLocked(player, env) {
		return
	}
	if !a.fire(ctx, evSpot, now) {
		return
	}
	a.chaseUntil = now.Add(ChaseDuration)
	if a.alerted {
		a.alerted = false
		a.detectUntil = now.Add(DetectionNotice)
		out.Spotted = SpottedMessage(a.enemy.Class().ID, player.HPFraction)
	}
}

// SpottedMessage is the log line shown when an enemy of class notices a
// player at hpFraction of max HP.
func SpottedMessage(class string, hpFraction float64) string {
	if hpFraction <= LowHealthFraction {
		return fmt.Sprintf("An enemy %s has spotted you, run for your life!", class)
	}
	return fmt.Sprintf("An enemy %s has spotted you, time to fight!", class)
}

func (a *Agent) updateChasingLocked(ctx context.Context, now time.Time, player PlayerView, env Surroundings, out *Outcome) {
	if !player.Visible || !player.Alive {
		a.fire(ctx, evLose, now)
		return
	}
	at := a.enemy.Tile()
	inAggro := at.Manhattan(player.Tile) <= a.enemy.AggroRange()
	if now.After(a.chaseUntil) {
		if !inAggro {
			a.fire(ctx, evLose, now)
			return
		}
		a.chaseUntil = now.Add(ChaseDuration)
	}
	if now.Before(a.detectUntil) {
		return
	}

	center := a.enemy.Center()
	a.enemy.SetAim(player.Center.Sub(center))
	dist := center.Dist(player.Center) / geom.TileSize
	canMelee, canProjectile := a.inRange(dist)
	los := env.Map != nil && env.Map.HasLineOfSight(at, player.Tile)

	if los && (canMelee || canProjectile) && a.enemy.CooldownReady(now) {
		if a.fire(ctx, evWindUp, now) {
			a.windUpUntil = now.Add(WindUpDuration)
			a.chaseUntil = a.chaseUntil.Add(WindUpDuration)
			out.WindUp = true
		}
		return
	}
	if canMelee || (los && canProjectile) || a.enemy.IsPushed() {
		return
	}
	out.Moved = a.stepTowardLocked(now, player.Tile, env)
}

func (a *Agent) inRange(dist float64) (melee, projectile bool) {
	if r := a.enemy.MeleeRange(); r > 0 && dist <= r {
		melee = true
	}
	if r := a.enemy.ProjectileRange(); r > 0 && dist <= r {
		projectile = true
	}
	return melee, projectile
}

func (a *Agent) stepTowardLocked(now time.Time, target geom.Tile, env Surroundings) bool {
	speed := a.enemy.MoveSpeed()
	if speed <= 0 {
		return false
	}
	interval := time.Duration(float64(time.Second) / speed)
	if !a.lastMove.IsZero() && now.Sub(a.lastMove) < interval {
		return false
	}
	at := a.enemy.Tile()
	next := at.Add(geom.Sign(target.X-at.X), geom.Sign(target.Y-at.Y))
	if next == at || next == target || !env.free(next) {
		return false
	}
	a.enemy.SetTile(next)
	a.lastMove = now
	return true
}

func (a *Agent) updateWindUpLocked(ctx context.Context, now time.Time, player PlayerView, out *Outcome) {
	if !player.Visible || !player.Alive {
		a.fire(ctx, evLose, now)
		return
	}
	center := a.enemy.Center()
	a.enemy.SetAim(player.Center.Sub(center))
	if now.Before(a.windUpUntil) {
		return
	}
	dist := center.Dist(player.Center) / geom.TileSize
	kind := a.chooseLocked(ctx, dist, player)
	a.enemy.MarkAttack(now)
	a.fire(ctx, evStrike, now)
	if kind == AttackProjectile {
		a.chaseUntil = now.Add(ProjectileChaseRefresh)
	}
	out.Attack = kind
	out.Aim = a.enemy.Aim()
}

func (a *Agent) chooseLocked(ctx context.Context, dist float64, player PlayerView) AttackKind {
	canMelee, canProjectile := a.inRange(dist)
	class := a.enemy.Class()
	kind := AttackNone
	switch {
	case canMelee:
		kind = AttackMelee
	case canProjectile:
		kind = AttackProjectile
	case class.Melee:
		kind = AttackMelee
	}
	if a.pattern == nil {
		return kind
	}
	chosen, ok := a.pattern.ChooseAttack(ctx, AttackContext{
		EnemyID:          a.enemy.ID(),
		Class:            class.ID,
		Boss:             a.enemy.IsBoss(),
		Distance:         dist,
		MeleeRange:       a.enemy.MeleeRange(),
		ProjectileRange:  a.enemy.ProjectileRange(),
		HPFraction:       float64(a.enemy.HP()) / float64(a.enemy.MaxHP()),
		PlayerHPFraction: player.HPFraction,
		Default:          kind,
	})
	if !ok {
		return kind
	}
	switch chosen {
	case AttackMelee:
		if !class.Melee {
			return kind
		}
	case AttackProjectile:
		if !class.Projectile {
			return kind
		}
	}
	return chosen
}

func (a *Agent) stepFallbackLocked(dt time.Duration, env Surroundings) bool {
	if a.fallRemaining <= 0 || dt <= 0 {
		return false
	}
	step := a.enemy.MoveSpeed() * FallbackSpeedScale * geom.TileSize * dt.Seconds()
	step = min(step, a.fallRemaining)
	next := a.enemy.Position().Add(a.fallDir.Scale(step))
	nextTile := geom.TileOf(next.Add(geom.Vec{X: geom.TileSize / 2, Y: geom.TileSize / 2}))
	if nextTile != a.enemy.Tile() && !env.free(nextTile) {
		a.fallRemaining = 0
		return false
	}
	a.enemy.SetPosition(next)
	a.fallRemaining -= step
	return true
}

// OnHit puts the enemy into hit-stun and makes it immune until the stun
// ends. A pending celebration is cancelled.
func (a *Agent) OnHit(ctx context.Context, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.stateLocked() {
	case StateDying, StateDeleted:
		return
	case StateHitStun:
	default:
		if !a.fire(ctx, evStun, now) {
			return
		}
	}
	a.stunUntil = now.Add(HitStunDuration)
	a.enemy.SetImmuneFor(now, HitStunDuration)
	a.celebrateAt = time.Time{}
}

// OnLandedHit reacts to this enemy's attack hitting the player. A melee hit
// makes the enemy fall back and, one time in CelebrationOdds, celebrate once
// the retreat is over. A projectile hit may start a celebration at once.
func (a *Agent) OnLandedHit(ctx context.Context, now time.Time, kind AttackKind, playerCenter geom.Vec) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.stateLocked() {
	case StateDying, StateDeleted, StateHitStun:
		return
	}
	a.chaseUntil = now.Add(ChaseDuration)
	celebrate := a.roller.Chance("enemy celebration", CelebrationOdds)
	if kind == AttackProjectile {
		if celebrate {
			a.fire(ctx, evCelebrate, now)
		}
		return
	}
	if !a.fire(ctx, evRetreat, now) {
		return
	}
	a.fallUntil = now.Add(FallbackDuration)
	a.fallDir = a.enemy.Center().Sub(playerCenter).Normalize()
	if a.fallDir.IsZero() {
		a.fallDir = a.enemy.Aim().Scale(-1)
	}
	a.fallRemaining = FallbackTiles * geom.TileSize
	if celebrate {
		a.celebrateAt = now.Add(CelebrationDelay)
	}
}

// Kill starts the death sequence.
func (a *Agent) Kill(ctx context.Context, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fire(ctx, evDie, now) {
		a.dyingUntil = now.Add(DyingDuration)
		a.celebrateAt = time.Time{}
	}
}
