// Package entity holds the mutable state of everything that fights: the
// shared Character core, the Player and the Enemy (optionally a boss).
//
// Every entity guards its own fields with a private mutex. Entity locks are
// leaves: no method calls out while holding one.
package entity

import (
	"sync"
	"time"

	"github.com/cory-johannsen/rogue/internal/game/geom"
	"github.com/cory-johannsen/rogue/internal/game/ruleset"
)

// Character is the state shared by player and enemies.
//
// Invariant: 0 <= hp <= maxHP and 0 <= mp <= maxMP at all times.
type Character struct {
	mu sync.RWMutex

	id    string
	name  string
	class *ruleset.Class

	hp, maxHP  int
	mp, maxMP  int
	baseAttack int

	// weapon and armor are shared content references, never mutated here.
	weapon *ruleset.Equipment
	armor  *ruleset.Equipment

	pos  geom.Vec
	tile geom.Tile

	immuneUntil time.Time

	pushing       bool
	pushDir       geom.Vec
	pushRemaining float64
	pushSpeed     float64
}

func (c *Character) init(id, name string, class *ruleset.Class, maxHP, maxMP, attack int, weapon, armor *ruleset.Equipment, at geom.Tile) {
	c.id = id
	c.name = name
	c.class = class
	c.maxHP = max(1, maxHP)
	c.hp = c.maxHP
	c.maxMP = max(0, maxMP)
	c.mp = c.maxMP
	c.baseAttack = attack
	c.weapon = weapon
	c.armor = armor
	c.pos = at.Origin()
	c.tile = at
	c.immuneUntil = time.Time{}
	c.pushing = false
	c.pushRemaining = 0
}

// ID returns the unique entity identifier.
func (c *Character) ID() string { return c.id }

// Name returns the display name.
func (c *Character) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// Class returns the class the character was built from.
func (c *Character) Class() *ruleset.Class {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.class
}

// HP returns current hit points.
func (c *Character) HP() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hp
}

// MaxHP returns maximum hit points.
func (c *Character) MaxHP() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxHP
}

// MP returns current mana.
func (c *Character) MP() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mp
}

// MaxMP returns maximum mana.
func (c *Character) MaxMP() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxMP
}

// Alive reports whether hp > 0.
func (c *Character) Alive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hp > 0
}

// TakeDamage subtracts n from hp, clamping at zero. Non-positive n is a no-op.
//
// Postcondition: Returns true while the character is still alive.
func (c *Character) TakeDamage(n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.takeDamageLocked(n)
	return c.hp > 0
}

func (c *Character) takeDamageLocked(n int) {
	if n <= 0 {
		return
	}
	c.hp = max(0, c.hp-n)
}

// Heal adds n to hp, clamping at maxHP. Returns the amount actually healed.
func (c *Character) Heal(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healLocked(n)
}

func (c *Character) healLocked(n int) int {
	if n <= 0 {
		return 0
	}
	before := c.hp
	c.hp = min(c.maxHP, c.hp+n)
	return c.hp - before
}

// UseMP spends n mana. It never spends partially.
//
// Postcondition: Returns false and leaves mp unchanged when mp < n.
func (c *Character) UseMP(n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 || c.mp < n {
		return false
	}
	c.mp -= n
	return true
}

// RestoreMP adds n mana, clamping at maxMP. Returns the amount restored.
func (c *Character) RestoreMP(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restoreMPLocked(n)
}

func (c *Character) restoreMPLocked(n int) int {
	if n <= 0 {
		return 0
	}
	before := c.mp
	c.mp = min(c.maxMP, c.mp+n)
	return c.mp - before
}

// TotalAttack is base attack plus the equipped weapon's attack value.
func (c *Character) TotalAttack() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	atk := c.baseAttack
	if c.weapon != nil {
		atk += c.weapon.Attack
	}
	if c.armor != nil {
		atk += c.armor.Attack
	}
	return atk
}

// TotalDefense is the equipped armor's defense value.
func (c *Character) TotalDefense() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.armor == nil {
		return 0
	}
	return c.armor.Defense
}

// Weapon returns a copy of the equipped weapon.
func (c *Character) Weapon() (ruleset.Equipment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.weapon == nil {
		return ruleset.Equipment{}, false
	}
	return *c.weapon, true
}

// Armor returns a copy of the equipped armor.
func (c *Character) Armor() (ruleset.Equipment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.armor == nil {
		return ruleset.Equipment{}, false
	}
	return *c.armor, true
}

// Position returns the top-left pixel position.
func (c *Character) Position() geom.Vec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pos
}

// Center returns the pixel center of the sprite.
func (c *Character) Center() geom.Vec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pos.Add(geom.Vec{X: geom.TileSize / 2, Y: geom.TileSize / 2})
}

// Tile returns the logical tile.
func (c *Character) Tile() geom.Tile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tile
}

// SetPosition moves the sprite to p and recomputes the logical tile from its
// center.
func (c *Character) SetPosition(p geom.Vec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pos = p
	c.tile = centerTile(p)
}

// SetTile snaps the character onto t.
func (c *Character) SetTile(t geom.Tile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tile = t
	c.pos = t.Origin()
}

// IsImmune reports whether now is before the immunity deadline.
func (c *Character) IsImmune(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return now.Before(c.immuneUntil)
}

// ImmuneUntil returns the immunity deadline.
func (c *Character) ImmuneUntil() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.immuneUntil
}

// SetImmuneFor makes the character immune until now+d.
//
// Invariant: the deadline never moves backwards; d <= 0 is ignored.
func (c *Character) SetImmuneFor(now time.Time, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setImmuneForLocked(now, d)
}

func (c *Character) setImmuneForLocked(now time.Time, d time.Duration) {
	if d <= 0 {
		return
	}
	if until := now.Add(d); until.After(c.immuneUntil) {
		c.immuneUntil = until
	}
}

// StartPushback begins a knockback of distance pixels along dir at speed
// pixels per tick. A zero dir pushes downwards.
func (c *Character) StartPushback(dir geom.Vec, distance, speed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startPushbackLocked(dir, distance, speed)
}

func (c *Character) startPushbackLocked(dir geom.Vec, distance, speed float64) {
	if distance <= 0 || speed <= 0 {
		return
	}
	if dir.IsZero() {
		dir = geom.Vec{Y: 1}
	}
	c.pushing = true
	c.pushDir = dir.Normalize()
	c.pushRemaining = distance
	c.pushSpeed = speed
}

// IsPushed reports whether a knockback is in progress.
func (c *Character) IsPushed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pushing
}

// AdvancePushback moves one tick along the knockback. When the next position
// is not walkable the push ends and any remaining immunity is extended by
// half.
//
// Postcondition: Returns true when the character moved.
func (c *Character) AdvancePushback(now time.Time, walkable func(geom.Tile) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pushing {
		return false
	}
	step := min(c.pushSpeed, c.pushRemaining)
	next := c.pos.Add(c.pushDir.Scale(step))
	nextTile := centerTile(next)
	if walkable == nil || !walkable(nextTile) {
		c.pushing = false
		c.pushRemaining = 0
		if remaining := c.immuneUntil.Sub(now); remaining > 0 {
			c.immuneUntil = c.immuneUntil.Add(remaining / 2)
		}
		return false
	}
	c.pos = next
	c.tile = nextTile
	c.pushRemaining -= step
	if c.pushRemaining <= 0 {
		c.pushing = false
		c.pushRemaining = 0
	}
	return true
}

// CancelPushback stops any knockback in place.
func (c *Character) CancelPushback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushing = false
	c.pushRemaining = 0
}

func centerTile(p geom.Vec) geom.Tile {
	return geom.TileOf(p.Add(geom.Vec{X: geom.TileSize / 2, Y: geom.TileSize / 2}))
}
