package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/rogue/internal/game/geom"
	"github.com/cory-johannsen/rogue/internal/game/ruleset"
)

const (
	// MaxLevel is the level cap.
	MaxLevel = 20
	// BaseXPToNext is the experience needed to leave level 1.
	BaseXPToNext = 500
	// XPToNextStep is added to the threshold on every level-up.
	XPToNextStep = 100
	// SwiftnessMultiplier scales move speed while swiftness is active.
	SwiftnessMultiplier = 1.5
	// AmuletThreshold is the HP fraction at or below which an Immortality
	// Amulet is consumed automatically.
	AmuletThreshold = 0.10
	// DefaultAmuletDuration applies when an amulet carries no duration.
	DefaultAmuletDuration = 5 * time.Second
)

var (
	// ErrItemNotFound is returned when the inventory has no item of a name.
	ErrItemNotFound = errors.New("item not in inventory")
	// ErrNotUsable is returned for items that cannot be consumed.
	ErrNotUsable = errors.New("item cannot be used")
	// ErrNoEffect is returned when using the item would change nothing.
	ErrNoEffect = errors.New("item would have no effect")
)

// LevelResult describes the outcome of GainExperience.
type LevelResult struct {
	Gained    int
	LeveledUp bool
	Level     int
	AtMax     bool
}

// HitOutcome describes how a player absorbed an incoming hit.
type HitOutcome struct {
	Damage     int
	Nullified  bool
	AmuletUsed bool
	Alive      bool
}

// ItemUse describes a consumed item.
type ItemUse struct {
	Item  ruleset.Item
	Level LevelResult
}

// Player is the character controlled by input.
//
// It is created once per session; Reset restores the starting loadout.
type Player struct {
	Character

	level       int
	xp          int
	xpToNext    int
	levelPoints int
	kills       int

	inventory []ruleset.Item

	lastAttack time.Time
	lastRegen  time.Time
	aim        geom.Vec
	effects    map[string]time.Time
}

// NewPlayer builds a player of class standing on spawn.
//
// Precondition: class must be non-nil and valid.
func NewPlayer(name string, class *ruleset.Class, spawn geom.Tile, now time.Time) *Player {
	p := &Player{}
	p.id = uuid.NewString()
	p.resetLocked(name, class, spawn, now)
	return p
}

// Reset restores the starting loadout of class, keeping the player's ID.
func (p *Player) Reset(class *ruleset.Class, spawn geom.Tile, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked(p.name, class, spawn, now)
}

func (p *Player) resetLocked(name string, class *ruleset.Class, spawn geom.Tile, now time.Time) {
	weapon := class.StartingWeapon
	armor := class.StartingArmor
	p.init(p.id, name, class, class.MaxHP, class.MaxMP, class.Attack, &weapon, &armor, spawn)
	p.level = 1
	p.xp = 0
	p.xpToNext = BaseXPToNext
	p.levelPoints = 0
	p.kills = 0
	p.inventory = append(p.inventory[:0], ruleset.EquipmentItem(weapon), ruleset.EquipmentItem(armor))
	p.inventory = append(p.inventory, class.StartingItems...)
	p.lastAttack = time.Time{}
	p.lastRegen = now
	p.aim = geom.Vec{Y: 1}
	p.effects = make(map[string]time.Time)
}

// Level returns the current level.
func (p *Player) Level() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.level
}

// Experience returns experience gathered toward the next level.
func (p *Player) Experience() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.xp
}

// XPToNext returns the current level-up threshold.
func (p *Player) XPToNext() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.xpToNext
}

// LevelPoints returns unspent level points.
func (p *Player) LevelPoints() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.levelPoints
}

// Kills returns the number of enemies slain.
func (p *Player) Kills() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.kills
}

// AddKill increments the kill counter and returns the new total.
func (p *Player) AddKill() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kills++
	return p.kills
}

// GainExperience adds n experience. At the threshold the player levels up
// once: experience resets to zero, the threshold grows and a level point is
// granted.
//
// Postcondition: no-op at MaxLevel or for n <= 0.
func (p *Player) GainExperience(n int) LevelResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gainExperienceLocked(n)
}

func (p *Player) gainExperienceLocked(n int) LevelResult {
	res := LevelResult{Level: p.level, AtMax: p.level >= MaxLevel}
	if n <= 0 || p.level >= MaxLevel {
		return res
	}
	p.xp += n
	res.Gained = n
	if p.xp >= p.xpToNext {
		p.level++
		p.xp = 0
		p.xpToNext += XPToNextStep
		p.levelPoints++
		res.LeveledUp = true
		res.Level = p.level
		res.AtMax = p.level >= MaxLevel
	}
	return res
}

// RegenMana restores 1 MP per full second elapsed since the last regen while
// 0 < mp < maxMP. The regen timer resets when mana is full or absent.
//
// Postcondition: Returns the MP restored.
func (p *Player) RegenMana(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.maxMP <= 0 || p.mp <= 0 || p.mp >= p.maxMP {
		p.lastRegen = now
		return 0
	}
	elapsed := now.Sub(p.lastRegen)
	secs := int(elapsed / time.Second)
	if secs <= 0 {
		return 0
	}
	p.lastRegen = p.lastRegen.Add(time.Duration(secs) * time.Second)
	return p.restoreMPLocked(secs)
}

// TryAttack records an attack at now if the class cooldown has elapsed.
func (p *Player) TryAttack(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.lastAttack.IsZero() && now.Sub(p.lastAttack) < p.class.Cooldown() {
		return false
	}
	p.lastAttack = now
	return true
}

// Aim returns the last non-zero aim direction.
func (p *Player) Aim() geom.Vec {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.aim
}

// SetAim updates the aim direction; a zero vector keeps the previous aim.
func (p *Player) SetAim(v geom.Vec) {
	if v.IsZero() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.aim = v.Normalize()
}

// MoveSpeed returns the class move speed in tiles per second, scaled by
// swiftness.
func (p *Player) MoveSpeed(now time.Time) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	speed := p.class.MoveSpeed
	if p.effectActiveLocked(ruleset.EffectSwiftness, now) {
		speed *= SwiftnessMultiplier
	}
	return speed
}

// ActivateEffect starts (or restarts) a timed effect lasting d.
func (p *Player) ActivateEffect(effect string, d time.Duration, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.effects[effect] = now.Add(d)
}

// EffectActive reports whether effect is running at now.
func (p *Player) EffectActive(effect string, now time.Time) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.effectActiveLocked(effect, now)
}

func (p *Player) effectActiveLocked(effect string, now time.Time) bool {
	until, ok := p.effects[effect]
	return ok && now.Before(until)
}

// IsInvisible reports whether enemies can see the player.
func (p *Player) IsInvisible(now time.Time) bool {
	return p.EffectActive(ruleset.EffectInvisibility, now)
}

// IsImmortal reports whether damage and pushback are nullified.
func (p *Player) IsImmortal(now time.Time) bool {
	return p.EffectActive(ruleset.EffectImmortality, now)
}

// ExpireEffects drops every effect that has ended by now.
//
// Postcondition: Returns the names of expired effects.
func (p *Player) ExpireEffects(now time.Time) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var expired []string
	for name, until := range p.effects {
		if !now.Before(until) {
			expired = append(expired, name)
			delete(p.effects, name)
		}
	}
	return expired
}

// ReceiveHit applies an incoming hit of damage. Immortality nullifies it. When
// the hit would be lethal or HP is already at or below AmuletThreshold, an
// Immortality Amulet is consumed first.
func (p *Player) ReceiveHit(damage int, now time.Time) HitOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := HitOutcome{}
	if !p.effectActiveLocked(ruleset.EffectImmortality, now) && p.hp > 0 {
		low := float64(p.hp) <= float64(p.maxHP)*AmuletThreshold
		if damage >= p.hp || low {
			if idx := p.findLocked(ruleset.ImmortalityAmuletName); idx >= 0 {
				amulet := p.removeAtLocked(idx)
				d := time.Duration(amulet.Value) * time.Second
				if d <= 0 {
					d = DefaultAmuletDuration
				}
				p.effects[ruleset.EffectImmortality] = now.Add(d)
				out.AmuletUsed = true
			}
		}
	}
	if p.effectActiveLocked(ruleset.EffectImmortality, now) {
		out.Nullified = true
		out.Alive = p.hp > 0
		return out
	}
	before := p.hp
	p.takeDamageLocked(damage)
	out.Damage = before - p.hp
	out.Alive = p.hp > 0
	return out
}

// Knockback starts a pushback unless immortality is active.
//
// Postcondition: Returns true when the pushback started.
func (p *Player) Knockback(dir geom.Vec, distance, speed float64, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.effectActiveLocked(ruleset.EffectImmortality, now) {
		return false
	}
	p.startPushbackLocked(dir, distance, speed)
	return p.pushing
}

// Inventory returns a copy of the carried items.
func (p *Player) Inventory() []ruleset.Item {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ruleset.Item(nil), p.inventory...)
}

// AddItem puts item into the inventory.
func (p *Player) AddItem(item ruleset.Item) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inventory = append(p.inventory, item)
}

// HasItem reports whether an item called name is carried.
func (p *Player) HasItem(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.findLocked(name) >= 0
}

// ConsumeFloorKey removes one Floor Key.
func (p *Player) ConsumeFloorKey() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.findLocked(ruleset.FloorKeyName)
	if idx < 0 {
		return false
	}
	p.removeAtLocked(idx)
	return true
}

// UseItem consumes the first consumable called name.
//
// Postcondition: On error the inventory is unchanged.
func (p *Player) UseItem(name string, now time.Time) (ItemUse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.findLocked(name)
	if idx < 0 {
		return ItemUse{}, fmt.Errorf("%w: %q", ErrItemNotFound, name)
	}
	item := p.inventory[idx]
	if item.Kind != ruleset.KindConsumable {
		return ItemUse{}, fmt.Errorf("%w: %q", ErrNotUsable, name)
	}
	use := ItemUse{Item: item}
	switch item.Effect {
	case ruleset.EffectHealth:
		if p.hp >= p.maxHP {
			return ItemUse{}, fmt.Errorf("%w: HP is full", ErrNoEffect)
		}
		p.healLocked(item.Value)
	case ruleset.EffectMana:
		if p.mp >= p.maxMP {
			return ItemUse{}, fmt.Errorf("%w: MP is full", ErrNoEffect)
		}
		p.restoreMPLocked(item.Value)
	case ruleset.EffectExperience:
		use.Level = p.gainExperienceLocked(item.Value)
	case ruleset.EffectInvisibility, ruleset.EffectImmortality, ruleset.EffectSwiftness:
		p.effects[item.Effect] = now.Add(time.Duration(item.Value) * time.Second)
	default:
		return ItemUse{}, fmt.Errorf("%w: unknown effect %q", ErrNotUsable, item.Effect)
	}
	p.removeAtLocked(idx)
	return use, nil
}

func (p *Player) findLocked(name string) int {
	for i, it := range p.inventory {
		if it.Name == name {
			return i
		}
	}
	return -1
}

func (p *Player) removeAtLocked(idx int) ruleset.Item {
	item := p.inventory[idx]
	p.inventory = append(p.inventory[:idx], p.inventory[idx+1:]...)
	return item
}
