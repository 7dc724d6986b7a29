// Package geom holds the pixel and tile coordinate types shared by the
// simulation packages.
package geom

import "math"

// TileSize is the edge length of one map tile in pixels.
const TileSize = 32

// Tile is a logical map cell.
type Tile struct {
	X, Y int
}

// Add returns t offset by (dx, dy).
func (t Tile) Add(dx, dy int) Tile { return Tile{X: t.X + dx, Y: t.Y + dy} }

// Manhattan returns the taxicab distance between t and o in tiles.
func (t Tile) Manhattan(o Tile) int {
	return abs(t.X-o.X) + abs(t.Y-o.Y)
}

// Origin returns the pixel position of the tile's top-left corner.
func (t Tile) Origin() Vec {
	return Vec{X: float64(t.X * TileSize), Y: float64(t.Y * TileSize)}
}

// Center returns the pixel position of the tile's center.
func (t Tile) Center() Vec {
	return t.Origin().Add(Vec{X: TileSize / 2, Y: TileSize / 2})
}

// Vec is a position or direction in pixel space.
type Vec struct {
	X, Y float64
}

// Add returns v+o.
func (v Vec) Add(o Vec) Vec { return Vec{X: v.X + o.X, Y: v.Y + o.Y} }

// Sub returns v-o.
func (v Vec) Sub(o Vec) Vec { return Vec{X: v.X - o.X, Y: v.Y - o.Y} }

// Scale returns v*k.
func (v Vec) Scale(k float64) Vec { return Vec{X: v.X * k, Y: v.Y * k} }

// Len returns the Euclidean length of v.
func (v Vec) Len() float64 { return math.Hypot(v.X, v.Y) }

// Dist returns the Euclidean distance between v and o.
func (v Vec) Dist(o Vec) float64 { return v.Sub(o).Len() }

// Normalize returns v scaled to unit length. The zero vector is returned
// unchanged.
func (v Vec) Normalize() Vec {
	l := v.Len()
	if l == 0 {
		return v
	}
	return Vec{X: v.X / l, Y: v.Y / l}
}

// Angle returns atan2(v.Y, v.X) in radians.
func (v Vec) Angle() float64 { return math.Atan2(v.Y, v.X) }

// IsZero reports whether both components are zero.
func (v Vec) IsZero() bool { return v.X == 0 && v.Y == 0 }

// TileOf returns the tile containing pixel position p.
func TileOf(p Vec) Tile {
	return Tile{
		X: int(math.Floor(p.X / TileSize)),
		Y: int(math.Floor(p.Y / TileSize)),
	}
}

// FromAngle returns the unit vector pointing at angle radians.
func FromAngle(angle float64) Vec {
	return Vec{X: math.Cos(angle), Y: math.Sin(angle)}
}

// AngleDelta returns the signed minimal difference a-b wrapped into [-π, π].
func AngleDelta(a, b float64) float64 {
	d := a - b
	return math.Atan2(math.Sin(d), math.Cos(d))
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 { return deg * math.Pi / 180 }

// Sign returns -1, 0 or 1 according to the sign of n.
func Sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
