package sim

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/rogue/internal/game/ai"
	"github.com/cory-johannsen/rogue/internal/game/combat"
	"github.com/cory-johannsen/rogue/internal/game/dice"
	"github.com/cory-johannsen/rogue/internal/game/entity"
	"github.com/cory-johannsen/rogue/internal/game/event"
	"github.com/cory-johannsen/rogue/internal/game/geom"
	"github.com/cory-johannsen/rogue/internal/game/ruleset"
)

// Rewards.
const (
	// FloorXPScale is the experience bonus per floor below the first.
	FloorXPScale = 0.15
	// LootChance is the percentage of kills that drop equipment.
	LootChance = 50
)

var (
	enemyXP = dice.MustParse("1d201+49")
	bossXP  = dice.MustParse("1d251+249")
)

// Log lines.
const (
	msgLevelUp     = "You have leveled up! Use this experience to increase your Abilities."
	msgMaxLevel    = "You have reached the Maximum Level! You are now a legendary hero!"
	msgNoMana      = "Not enough MP to cast spell!"
	msgStairsShut  = "The stairs are locked! You need to find a Floor Key first."
	msgKeyPickedUp = "Floor Key collected! Use it to unlock the stairs."
)

// hitEnemyLocked applies one player hit to a. melee hits also push the enemy
// away from origin.
//
// Postcondition: returns true when the hit landed.
func (e *Engine) hitEnemyLocked(a *ai.Agent, origin geom.Vec, atk int, reach float64, melee bool, now time.Time, out *outbox) bool {
	en := a.Enemy()
	if !en.Alive() || a.IsDying() || en.IsImmune(now) {
		return false
	}
	dmg := combat.Damage(atk, en.TotalDefense())
	alive := en.TakeDamage(dmg)
	e.logger.Debug("enemy hit",
		zap.String("enemy", en.ID()),
		zap.Int("damage", dmg),
		zap.Int("hp", en.HP()),
		zap.Bool("melee", melee),
	)
	if !alive {
		e.killLocked(a, now, out)
		return true
	}
	if melee {
		en.StartPushback(en.Center().Sub(origin), combat.PushbackDistance(reach), combat.PushbackSpeed)
	}
	a.OnHit(e.ctx, now)
	return true
}

func (e *Engine) killLocked(a *ai.Agent, now time.Time, out *outbox) {
	a.Kill(e.ctx, now)
	en := a.Enemy()
	en.CancelPushback()
	class := en.Class()
	p := e.player
	p.AddKill()

	xp := e.experienceFor(en)
	out.emit(event.EnemyDefeated{EnemyID: en.ID(), Class: class.ID, Tile: en.Tile(), Experience: xp})
	if en.IsBoss() {
		out.emit(event.BossDefeated{EnemyID: en.ID(), Class: class.ID, Floor: e.floor.Number})
	} else {
		out.emit(event.LogMessage{Text: fmt.Sprintf("Enemy %s defeated!", strings.ToLower(class.ID))})
	}
	e.grantExperienceLocked(xp, out)
	e.dropLootLocked(en)
}

func (e *Engine) experienceFor(en *entity.Enemy) int {
	if en.IsBoss() {
		return e.roller.Roll(bossXP).Total()
	}
	base := e.roller.Roll(enemyXP).Total()
	return int(math.Round(float64(base) * (1 + float64(e.floor.Number-1)*FloorXPScale)))
}

func (e *Engine) grantExperienceLocked(n int, out *outbox) {
	res := e.player.GainExperience(n)
	if res.Gained > 0 {
		out.emit(event.ExperienceGained{Amount: res.Gained})
	}
	e.levelEventsLocked(res, out)
}

func (e *Engine) levelEventsLocked(res entity.LevelResult, out *outbox) {
	if !res.LeveledUp {
		return
	}
	out.emit(event.LevelUp{Level: res.Level})
	if res.AtMax {
		out.emit(event.LogMessage{Text: msgMaxLevel})
	} else {
		out.emit(event.LogMessage{Text: msgLevelUp})
	}
}

// dropLootLocked leaves the boss Floor Key and, on a LootChance roll, a copy
// of the enemy's weapon or armor on its tile.
func (e *Engine) dropLootLocked(en *entity.Enemy) {
	tile := en.Tile()
	grid := e.floor.Grid
	if en.IsBoss() {
		grid.PlaceItem(tile, ruleset.FloorKey())
	}
	if !e.roller.Percent("loot drop", LootChance) {
		return
	}
	weapon, hasWeapon := en.Weapon()
	armor, hasArmor := en.Armor()
	switch {
	case hasWeapon && (!hasArmor || e.roller.Chance("loot weapon", 2)):
		grid.PlaceItem(tile, ruleset.EquipmentItem(weapon))
	case hasArmor:
		grid.PlaceItem(tile, ruleset.EquipmentItem(armor))
	}
}

// damagePlayerLocked applies a hit from src. a is src's agent, nil when the
// enemy is gone.
func (e *Engine) damagePlayerLocked(src *entity.Enemy, a *ai.Agent, kind ai.AttackKind, now time.Time, out *outbox) {
	p := e.player
	if !p.Alive() || p.IsImmune(now) {
		return
	}
	dmg := combat.Damage(src.TotalAttack(), p.TotalDefense())
	res := p.ReceiveHit(dmg, now)
	if res.AmuletUsed {
		out.emit(event.ImmortalityTriggered{})
		out.emit(event.InventoryChanged{Items: p.Inventory()})
	}
	if res.Nullified {
		return
	}
	e.killer = "Enemy:" + strings.ToUpper(src.Class().ID)
	p.SetImmuneFor(now, combat.PlayerHitImmunity)
	if kind == ai.AttackMelee {
		p.Knockback(p.Center().Sub(src.Center()), combat.PushbackDistance(src.MeleeRange()), combat.PushbackSpeed, now)
	}
	e.logger.Debug("player hit", zap.String("enemy", src.ID()), zap.Int("damage", dmg), zap.Int("lost", res.Damage), zap.Int("hp", p.HP()))
	out.emit(event.PlayerDamaged{Amount: dmg, HP: p.HP(), SourceID: src.ID()})
	if a != nil && res.Alive {
		a.OnLandedHit(e.ctx, now, kind, p.Center())
	}
}

// playerSwing resolves a player swing of reach tiles against every enemy.
func (e *Engine) playerSwing(reach float64) combat.Detector {
	return combat.DetectorFunc(func(s *combat.Sample) {
		if e.disposed.Load() {
			return
		}
		var out outbox
		e.stateMu.Lock()
		if p := e.player; e.liveLocked() {
			origin := p.Center()
			atk := p.TotalAttack()
			e.enemyMu.RLock()
			agents := slices.Clone(e.agents)
			e.enemyMu.RUnlock()
			for _, a := range agents {
				en := a.Enemy()
				if !en.Alive() || a.IsDying() || en.IsImmune(s.Now) {
					continue
				}
				if !combat.SwingHits(origin, en.Center(), reach, s.Angle) || !s.FirstHit(en.ID()) {
					continue
				}
				e.hitEnemyLocked(a, origin, atk, reach, true, s.Now, &out)
			}
		}
		e.stateMu.Unlock()
		e.flush(&out)
	})
}

// enemySwing resolves a's swing against the player.
func (e *Engine) enemySwing(a *ai.Agent) combat.Detector {
	return combat.DetectorFunc(func(s *combat.Sample) {
		if e.disposed.Load() {
			return
		}
		switch a.State() {
		case ai.StateHitStun, ai.StateDying, ai.StateDeleted:
			return
		}
		var out outbox
		e.stateMu.Lock()
		if p := e.player; e.liveLocked() && p.Alive() && !p.IsImmune(s.Now) {
			en := a.Enemy()
			if combat.SwingHits(en.Center(), p.Center(), en.MeleeRange(), s.Angle) && s.FirstHit(p.ID()) {
				e.damagePlayerLocked(en, a, ai.AttackMelee, s.Now, &out)
				e.checkDeathLocked(&out)
			}
		}
		e.stateMu.Unlock()
		e.flush(&out)
	})
}

// liveLocked reports whether the run accepts combat right now.
func (e *Engine) liveLocked() bool {
	return e.player != nil && e.floor != nil && !e.paused && !e.dead && !e.transitioning
}
