package entity

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/rogue/internal/game/geom"
	"github.com/cory-johannsen/rogue/internal/game/ruleset"
)

// Enemy stat scaling relative to the class table.
const (
	EnemyHPMultiplier     = 1.2
	EnemyAttackMultiplier = 0.8
	EnemySpeedMultiplier  = 0.5
	// DefaultAggroRange is the Manhattan detection radius in tiles.
	DefaultAggroRange = 3
)

// Boss trait multipliers applied on top of the enemy scaling.
const (
	BossSize             = 2.0
	BossHPMultiplier     = 1.5
	BossAttackMultiplier = 1.5
	BossRangeModifier    = 0.8
	BossSpeedMultiplier  = 0.8
	BossVisionModifier   = 1.3
)

// BossTraits are the extra properties of a boss enemy.
type BossTraits struct {
	Size          float64
	RangeModifier float64
}

// Enemy is an AI-driven character.
type Enemy struct {
	Character

	pattern    string
	aggro      int
	moveSpeed  float64
	unlimited  bool
	boss       *BossTraits
	aim        geom.Vec
	lastAttack time.Time
}

// NewEnemy builds a regular enemy of class standing on at.
//
// Precondition: class must be non-nil and valid.
func NewEnemy(class *ruleset.Class, at geom.Tile, pattern string) *Enemy {
	e := &Enemy{pattern: pattern, aggro: DefaultAggroRange, moveSpeed: class.MoveSpeed * EnemySpeedMultiplier}
	weapon := class.EnemyWeapon
	armor := class.EnemyArmor
	hp := int(float64(class.MaxHP) * EnemyHPMultiplier)
	atk := int(float64(class.Attack) * EnemyAttackMultiplier)
	e.unlimited = class.Projectile && class.ManaCost > 0
	e.init(uuid.NewString(), class.Name, class, hp, 0, atk, &weapon, &armor, at)
	e.aim = geom.Vec{Y: 1}
	return e
}

// NewBoss builds a boss: a larger, tougher enemy that sees further.
func NewBoss(class *ruleset.Class, at geom.Tile, pattern string) *Enemy {
	e := NewEnemy(class, at, pattern)
	e.maxHP = int(float64(e.maxHP) * BossHPMultiplier)
	e.hp = e.maxHP
	e.baseAttack = int(float64(e.baseAttack) * BossAttackMultiplier)
	e.moveSpeed *= BossSpeedMultiplier
	e.aggro = int(math.Round(float64(e.aggro) * BossVisionModifier))
	e.boss = &BossTraits{Size: BossSize, RangeModifier: BossRangeModifier}
	e.name = "Boss " + class.Name
	return e
}

// Pattern returns the AI pattern tag.
func (e *Enemy) Pattern() string { return e.pattern }

// AggroRange returns the detection radius in tiles.
func (e *Enemy) AggroRange() int { return e.aggro }

// IsBoss reports whether the enemy carries boss traits.
func (e *Enemy) IsBoss() bool { return e.boss != nil }

// Boss returns the boss traits.
func (e *Enemy) Boss() (BossTraits, bool) {
	if e.boss == nil {
		return BossTraits{}, false
	}
	return *e.boss, true
}

// UnlimitedMP reports whether projectile attacks bypass mana.
func (e *Enemy) UnlimitedMP() bool { return e.unlimited }

// MoveSpeed returns tiles per second.
func (e *Enemy) MoveSpeed() float64 { return e.moveSpeed }

func (e *Enemy) rangeScale() float64 {
	if e.boss == nil {
		return 1
	}
	return e.boss.Size * e.boss.RangeModifier
}

// MeleeRange returns the effective melee reach in tiles, or 0 when the class
// cannot swing.
func (e *Enemy) MeleeRange() float64 {
	if !e.class.Melee {
		return 0
	}
	return e.class.Range * e.rangeScale()
}

// ProjectileRange returns the effective projectile reach in tiles, or 0 when
// the class cannot shoot.
func (e *Enemy) ProjectileRange() float64 {
	if !e.class.Projectile {
		return 0
	}
	return e.class.ProjectileDistance * e.rangeScale()
}

// Aim returns the last aim direction.
func (e *Enemy) Aim() geom.Vec {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.aim
}

// SetAim updates the aim direction; a zero vector keeps the previous aim.
func (e *Enemy) SetAim(v geom.Vec) {
	if v.IsZero() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.aim = v.Normalize()
}

// CooldownReady reports whether the class cooldown has elapsed since the last
// attack.
func (e *Enemy) CooldownReady(now time.Time) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastAttack.IsZero() || now.Sub(e.lastAttack) >= e.class.Cooldown()
}

// MarkAttack records an attack at now.
func (e *Enemy) MarkAttack(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastAttack = now
}
