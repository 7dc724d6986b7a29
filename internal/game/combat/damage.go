// Package combat resolves attacks: swing descriptors and their fan hit test,
// the sampler that sweeps a swing over time, projectiles, and the damage
// formula.
package combat

import (
	"time"

	"github.com/cory-johannsen/rogue/internal/game/geom"
)

// Hit reaction tuning.
const (
	// PlayerHitImmunity is granted to the player after any landed hit.
	PlayerHitImmunity = 400 * time.Millisecond
	// PushbackSlack is added to the attack range, in tiles, to get the
	// knockback distance.
	PushbackSlack = 0.2
	// PushbackSpeed is the knockback speed in pixels per tick.
	PushbackSpeed = geom.TileSize * 0.18
)

// Damage is the damage dealt by atk against def. Every landed hit deals at
// least 1.
func Damage(atk, def int) int {
	return max(1, atk-def)
}

// PushbackDistance returns the knockback length in pixels for an attack of
// rangeTiles.
func PushbackDistance(rangeTiles float64) float64 {
	return (rangeTiles + PushbackSlack) * geom.TileSize
}
