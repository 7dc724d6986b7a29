package sim

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/rogue/internal/game/combat"
	"github.com/cory-johannsen/rogue/internal/game/entity"
	"github.com/cory-johannsen/rogue/internal/game/event"
	"github.com/cory-johannsen/rogue/internal/game/geom"
	"github.com/cory-johannsen/rogue/internal/game/ruleset"
)

// Action is a player command.
type Action interface {
	// Name is the stable action name reported in InvalidAction.
	Name() string
}

// Move steps one tile; DX and DY are reduced to their signs.
type Move struct{ DX, DY int }

// Attack attacks along Aim with the class weapon.
type Attack struct{ Aim geom.Vec }

// UseItem consumes the first carried item called Item.
type UseItem struct{ Item string }

// Pause pauses the run.
type Pause struct{}

// Resume resumes the run.
type Resume struct{}

// TogglePause flips the pause state.
type TogglePause struct{}

// NewGame starts a fresh run as Class.
type NewGame struct{ Class string }

// ReturnToMenu abandons the run.
type ReturnToMenu struct{}

func (Move) Name() string         { return "move" }
func (Attack) Name() string       { return "attack" }
func (UseItem) Name() string      { return "use_item" }
func (Pause) Name() string        { return "pause" }
func (Resume) Name() string       { return "resume" }
func (TogglePause) Name() string  { return "toggle_pause" }
func (NewGame) Name() string      { return "new_game" }
func (ReturnToMenu) Name() string { return "return_to_menu" }

// HandleAction applies a player command. A nil action is ignored and the
// call returns silently once disposed; unknown actions publish
// InvalidAction.
func (e *Engine) HandleAction(a Action) {
	if a == nil || e.disposed.Load() {
		return
	}
	now := e.clk.Now()
	var out outbox

	e.stateMu.Lock()
	switch act := a.(type) {
	case Pause:
		e.setPausedLocked(true, now, &out)
	case Resume:
		e.setPausedLocked(false, now, &out)
	case TogglePause:
		e.setPausedLocked(!e.paused, now, &out)
	case NewGame:
		if err := e.newGameLocked(act.Class, now, &out); err != nil {
			e.logger.Warn("new game rejected", zap.String("class", act.Class), zap.Error(err))
			out.emit(event.InvalidAction{Action: act.Name()})
		}
	case ReturnToMenu:
		e.returnToMenuLocked()
	case Move:
		e.moveLocked(act, now, &out)
	case Attack:
		e.attackLocked(act, now, &out)
	case UseItem:
		e.useItemLocked(act, now, &out)
	default:
		e.logger.Debug("invalid action", zap.String("action", a.Name()))
		out.emit(event.InvalidAction{Action: a.Name()})
	}
	e.checkDeathLocked(&out)
	e.stateMu.Unlock()

	e.flush(&out)
}

func (e *Engine) moveLocked(m Move, now time.Time, out *outbox) {
	if !e.liveLocked() {
		return
	}
	p := e.player
	dx, dy := geom.Sign(m.DX), geom.Sign(m.DY)
	if (dx == 0 && dy == 0) || p.IsPushed() {
		return
	}
	grid := e.floor.Grid
	target := p.Tile().Add(dx, dy)
	if !grid.IsWalkable(target) || e.enemyAtLocked(target) {
		return
	}
	p.SetAim(geom.Vec{X: float64(dx), Y: float64(dy)})
	p.SetTile(target)

	if items := grid.TakeItems(target); len(items) > 0 {
		for _, it := range items {
			p.AddItem(it)
			if it.Name == ruleset.FloorKeyName {
				out.emit(event.LogMessage{Text: msgKeyPickedUp})
			}
		}
		e.pendingItems = append(e.pendingItems, items...)
		out.emit(event.InventoryChanged{Items: p.Inventory()})
	}

	if grid.IsStairs(target) {
		if !p.ConsumeFloorKey() {
			out.emit(event.LogMessage{Text: msgStairsShut})
			return
		}
		out.emit(event.InventoryChanged{Items: p.Inventory()})
		e.startTransitionLocked(now, out)
	}
}

func (e *Engine) enemyAtLocked(t geom.Tile) bool {
	e.enemyMu.RLock()
	defer e.enemyMu.RUnlock()
	for _, a := range e.agents {
		if !a.IsDying() && a.Enemy().Tile() == t {
			return true
		}
	}
	return false
}

func (e *Engine) attackLocked(at Attack, now time.Time, out *outbox) {
	if !e.liveLocked() {
		return
	}
	p := e.player
	p.SetAim(at.Aim)
	if !p.TryAttack(now) {
		return
	}
	class := p.Class()
	aim := p.Aim()
	center := p.Center()
	if class.Melee {
		desc := combat.NewSwing(center, aim, class.Range, class.AttackWidth, now)
		out.emit(event.PlayerAttacked{Attack: desc})
		out.swing(desc, e.playerSwing(class.Range))
	}
	if !class.Projectile {
		return
	}
	if !class.UnlimitedProjectiles && class.ManaCost > 0 && !p.UseMP(class.ManaCost) {
		out.emit(event.LogMessage{Text: msgNoMana})
		return
	}
	speed := combat.PlayerProjectileSpeed(class.ProjectileSpeed, p.MoveSpeed(now))
	shot := combat.NewProjectile(p, combat.FactionPlayer, center, aim, speed, class.ProjectileDistance)
	e.addProjectilesLocked([]*combat.Projectile{shot})
	if class.Bow {
		out.emit(event.PlayerBowAttack{Attack: combat.NewBow(center, aim, class.ProjectileDistance, now)})
	}
	out.emit(event.PlayerProjectileAttack{Projectile: shot.State()})
}

func (e *Engine) useItemLocked(u UseItem, now time.Time, out *outbox) {
	if !e.liveLocked() {
		return
	}
	p := e.player
	use, err := p.UseItem(u.Item, now)
	switch {
	case errors.Is(err, entity.ErrNoEffect):
		out.emit(event.LogMessage{Text: u.Item + " would have no effect right now."})
		return
	case err != nil:
		e.logger.Debug("item not used", zap.String("item", u.Item), zap.Error(err))
		out.emit(event.InvalidAction{Action: u.Name()})
		return
	}
	out.emit(event.InventoryChanged{Items: p.Inventory()})
	switch use.Item.Effect {
	case ruleset.EffectExperience:
		if use.Level.Gained > 0 {
			out.emit(event.ExperienceGained{Amount: use.Level.Gained})
		}
		e.levelEventsLocked(use.Level, out)
	case ruleset.EffectImmortality:
		out.emit(event.ImmortalityTriggered{})
	}
}
