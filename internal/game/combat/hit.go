package combat

import (
	"math"

	"github.com/cory-johannsen/rogue/internal/game/geom"
)

// HitSlack is the reach tolerance in tiles added to a swing's range.
const HitSlack = 0.25

// SwingHits reports whether a target centered at target is inside the fan of
// a swing from attacker at angle (radians).
//
// Postcondition: true iff dist/TileSize <= rangeTiles+HitSlack and the
// wrapped angular difference is within HalfFanDegrees.
func SwingHits(attacker, target geom.Vec, rangeTiles, angle float64) bool {
	delta := target.Sub(attacker)
	if delta.Len()/geom.TileSize > rangeTiles+HitSlack {
		return false
	}
	return math.Abs(geom.AngleDelta(delta.Angle(), angle)) <= geom.Radians(HalfFanDegrees)
}
