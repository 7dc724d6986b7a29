package sim

import (
	"slices"
	"time"

	"github.com/cory-johannsen/rogue/internal/game/ai"
	"github.com/cory-johannsen/rogue/internal/game/combat"
	"github.com/cory-johannsen/rogue/internal/game/entity"
	"github.com/cory-johannsen/rogue/internal/game/event"
	"github.com/cory-johannsen/rogue/internal/game/geom"
)

// updateEnemiesLocked runs the AI pass under enemyUpdateMu and returns the
// projectiles enemies fired; the caller adds them once enemyUpdateMu is
// released.
func (e *Engine) updateEnemiesLocked(now time.Time, out *outbox) []*combat.Projectile {
	e.enemyUpdateMu.Lock()
	defer e.enemyUpdateMu.Unlock()

	e.enemyMu.RLock()
	agents := slices.Clone(e.agents)
	e.enemyMu.RUnlock()
	if len(agents) == 0 {
		return nil
	}

	p := e.player
	grid := e.floor.Grid
	view := ai.PlayerView{
		Tile:       p.Tile(),
		Center:     p.Center(),
		HPFraction: float64(p.HP()) / float64(p.MaxHP()),
		Visible:    !p.IsInvisible(now),
		Alive:      p.Alive(),
	}
	occupied := make(map[geom.Tile]int, len(agents)+1)
	occupied[view.Tile]++
	for _, a := range agents {
		if !a.IsDying() {
			occupied[a.Enemy().Tile()]++
		}
	}
	env := ai.Surroundings{Map: grid, Occupied: func(t geom.Tile) bool { return occupied[t] > 0 }}

	var spawned []*combat.Projectile
	var gone []*ai.Agent
	for _, a := range agents {
		en := a.Enemy()
		before := en.Tile()
		if en.IsPushed() {
			en.AdvancePushback(now, grid.IsWalkable)
		}
		res := a.Update(e.ctx, now, view, env)
		if res.Delete {
			gone = append(gone, a)
			continue
		}
		if after := en.Tile(); after != before && !a.IsDying() {
			occupied[before]--
			occupied[after]++
		}
		if res.Spotted != "" {
			out.emit(event.LogMessage{Text: res.Spotted})
		}
		if res.WindUp {
			out.emit(event.WindUpStarted{EnemyID: en.ID(), Tile: en.Tile()})
		}
		class := en.Class()
		switch res.Attack {
		case ai.AttackMelee:
			desc := combat.NewSwing(en.Center(), res.Aim, en.MeleeRange(), class.AttackWidth, now)
			out.emit(event.EnemySwingAttack{EnemyID: en.ID(), Attack: desc})
			out.swing(desc, e.enemySwing(a))
		case ai.AttackProjectile:
			shot := combat.NewProjectile(en, combat.FactionEnemy, en.Center(), res.Aim, class.ProjectileSpeed, en.ProjectileRange())
			spawned = append(spawned, shot)
			out.emit(event.EnemyProjectileAttack{EnemyID: en.ID(), Projectile: shot.State()})
		}
	}

	if len(gone) > 0 {
		e.enemyMu.Lock()
		e.agents = slices.DeleteFunc(e.agents, func(a *ai.Agent) bool { return slices.Contains(gone, a) })
		e.enemyMu.Unlock()
	}
	return spawned
}

// updateProjectilesLocked moves every projectile and resolves hits, dropping
// inactive ones.
func (e *Engine) updateProjectilesLocked(now time.Time, dt time.Duration, out *outbox) {
	e.projMu.Lock()
	defer e.projMu.Unlock()
	if len(e.projectiles) == 0 {
		return
	}

	e.enemyMu.RLock()
	agents := slices.Clone(e.agents)
	e.enemyMu.RUnlock()

	p := e.player
	byID := make(map[string]*ai.Agent, len(agents))
	var enemyTargets []combat.Target
	for _, a := range agents {
		en := a.Enemy()
		byID[en.ID()] = a
		if en.Alive() && !a.IsDying() && !en.IsImmune(now) {
			enemyTargets = append(enemyTargets, en)
		}
	}
	playerTargets := func() []combat.Target {
		if !p.Alive() || p.IsImmune(now) {
			return nil
		}
		return []combat.Target{p}
	}

	walkable := e.floor.Grid.IsWalkable
	secs := dt.Seconds()
	kept := e.projectiles[:0]
	for _, shot := range e.projectiles {
		switch shot.Faction() {
		case combat.FactionPlayer:
			if hit := shot.Update(secs, walkable, enemyTargets); hit != nil {
				if a := byID[hit.ID()]; a != nil {
					e.hitEnemyLocked(a, shot.Position(), shot.Owner().TotalAttack(), 0, false, now, out)
				}
			}
		case combat.FactionEnemy:
			if hit := shot.Update(secs, walkable, playerTargets()); hit != nil {
				if src, ok := shot.Owner().(*entity.Enemy); ok {
					e.damagePlayerLocked(src, byID[src.ID()], ai.AttackProjectile, now, out)
				}
			}
		}
		if shot.Active() {
			kept = append(kept, shot)
		}
	}
	clear(e.projectiles[len(kept):])
	e.projectiles = kept
}
