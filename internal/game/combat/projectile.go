package combat

import (
	"github.com/google/uuid"

	"github.com/cory-johannsen/rogue/internal/game/geom"
)

// ProjectileRadius is the collision radius of every projectile in pixels.
const ProjectileRadius = geom.TileSize / 4

// ProjectileSpeedBump is added to a player's move speed when the class
// projectile speed would let the shooter outrun its own shot.
const ProjectileSpeedBump = 0.1

// Faction tells which side fired a projectile.
type Faction int

const (
	FactionPlayer Faction = iota
	FactionEnemy
)

func (f Faction) String() string {
	if f == FactionPlayer {
		return "player"
	}
	return "enemy"
}

// Attacker is the read-only view of a projectile owner.
type Attacker interface {
	ID() string
	TotalAttack() int
}

// Target is anything a projectile can strike.
type Target interface {
	ID() string
	Center() geom.Vec
	Alive() bool
}

// ProjectileState is a value snapshot of a projectile.
type ProjectileState struct {
	ID        string
	Faction   Faction
	OwnerID   string
	Position  geom.Vec
	Direction geom.Vec
	Speed     float64
	Travelled float64
	MaxDist   float64
	Active    bool
}

// Projectile is a straight-line shot measured in tiles.
//
// It is not safe for concurrent use; the engine guards every projectile with
// its projectile lock.
type Projectile struct {
	id        string
	owner     Attacker
	faction   Faction
	origin    geom.Vec
	pos       geom.Vec
	dir       geom.Vec
	speed     float64
	travelled float64
	maxDist   float64
	radius    float64
	active    bool
}

// NewProjectile fires a shot from origin (a pixel center) along dir.
//
// Precondition: speed > 0 and maxDist > 0 (tiles and tiles per second).
func NewProjectile(owner Attacker, faction Faction, origin, dir geom.Vec, speed, maxDist float64) *Projectile {
	if dir.IsZero() {
		dir = geom.Vec{Y: 1}
	}
	return &Projectile{
		id:      uuid.NewString(),
		owner:   owner,
		faction: faction,
		origin:  origin,
		pos:     origin,
		dir:     dir.Normalize(),
		speed:   speed,
		maxDist: maxDist,
		radius:  ProjectileRadius,
		active:  true,
	}
}

// PlayerProjectileSpeed returns the speed of a player shot: the class speed,
// bumped just above moveSpeed when slower than the shooter.
func PlayerProjectileSpeed(classSpeed, moveSpeed float64) float64 {
	if classSpeed < moveSpeed {
		return moveSpeed + ProjectileSpeedBump
	}
	return classSpeed
}

// ID returns the projectile identifier.
func (p *Projectile) ID() string { return p.id }

// Owner returns the shooter.
func (p *Projectile) Owner() Attacker { return p.owner }

// Faction returns the side that fired.
func (p *Projectile) Faction() Faction { return p.faction }

// Active reports whether the projectile is still flying.
func (p *Projectile) Active() bool { return p.active }

// Position returns the current pixel center.
func (p *Projectile) Position() geom.Vec { return p.pos }

// HitRadius is the center distance in pixels at which a target is struck.
func (p *Projectile) HitRadius() float64 {
	return p.radius + geom.TileSize/2 - 4
}

// State returns a snapshot.
func (p *Projectile) State() ProjectileState {
	var owner string
	if p.owner != nil {
		owner = p.owner.ID()
	}
	return ProjectileState{
		ID:        p.id,
		Faction:   p.faction,
		OwnerID:   owner,
		Position:  p.pos,
		Direction: p.dir,
		Speed:     p.speed,
		Travelled: p.travelled,
		MaxDist:   p.maxDist,
		Active:    p.active,
	}
}

// Update advances the shot by dt seconds. The wall test runs first: a next
// position on an unwalkable tile deactivates the shot without damage. Then
// the first live target within HitRadius is struck. Reaching MaxDist
// deactivates the shot.
//
// Postcondition: once inactive, Update mutates nothing and returns nil.
func (p *Projectile) Update(dt float64, walkable func(geom.Tile) bool, targets []Target) Target {
	if !p.active || dt <= 0 {
		return nil
	}
	step := p.speed * dt
	next := p.pos.Add(p.dir.Scale(step * geom.TileSize))
	if walkable == nil || !walkable(geom.TileOf(next)) {
		p.active = false
		return nil
	}
	p.pos = next
	p.travelled = min(p.maxDist, p.travelled+step)

	reach := p.HitRadius()
	for _, t := range targets {
		if t == nil || !t.Alive() {
			continue
		}
		if p.pos.Dist(t.Center()) <= reach {
			p.active = false
			return t
		}
	}
	if p.travelled >= p.maxDist {
		p.active = false
	}
	return nil
}
