// Package world provides the map collaborator consumed by the simulation:
// walkability and line-of-sight queries over a tile grid, the items lying on
// it, and the floor layouts the engine cycles through.
package world

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cory-johannsen/rogue/internal/game/geom"
	"github.com/cory-johannsen/rogue/internal/game/ruleset"
)

// Map answers the two questions the simulation asks about terrain.
//
// Implementations MUST be safe for concurrent use.
type Map interface {
	IsWalkable(t geom.Tile) bool
	HasLineOfSight(from, to geom.Tile) bool
}

// Cell is the terrain of one tile.
type Cell byte

const (
	CellWall   Cell = '#'
	CellFloor  Cell = '.'
	CellStairs Cell = '>'
)

// ErrOutOfBounds is returned for tiles outside the grid.
var ErrOutOfBounds = errors.New("tile out of bounds")

// Grid is a rectangular tile map with items lying on its floor.
//
// Invariant: len(cells) == width*height. Terrain is immutable after
// construction; the item layer is guarded by mu.
type Grid struct {
	width, height int
	cells         []Cell

	mu    sync.Mutex
	items map[geom.Tile][]ruleset.Item
}

// NewGrid parses rows of '#', '.', and '>' characters. Any other character is
// treated as floor so layouts can carry markers.
//
// Precondition: rows must be non-empty and rectangular.
// Postcondition: Returns a Grid or a descriptive error.
func NewGrid(rows []string) (*Grid, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("grid: no rows")
	}
	width := len(rows[0])
	if width == 0 {
		return nil, fmt.Errorf("grid: empty first row")
	}
	g := &Grid{
		width:  width,
		height: len(rows),
		cells:  make([]Cell, 0, width*len(rows)),
		items:  make(map[geom.Tile][]ruleset.Item),
	}
	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("grid: row %d has width %d, want %d", y, len(row), width)
		}
		for _, ch := range []byte(row) {
			switch Cell(ch) {
			case CellWall, CellStairs:
				g.cells = append(g.cells, Cell(ch))
			default:
				g.cells = append(g.cells, CellFloor)
			}
		}
	}
	return g, nil
}

// MustGrid is NewGrid for fixtures; it panics on malformed rows.
func MustGrid(rows ...string) *Grid {
	g, err := NewGrid(rows)
	if err != nil {
		panic(err)
	}
	return g
}

// Width returns the grid width in tiles.
func (g *Grid) Width() int { return g.width }

// Height returns the grid height in tiles.
func (g *Grid) Height() int { return g.height }

// InBounds reports whether t lies on the grid.
func (g *Grid) InBounds(t geom.Tile) bool {
	return t.X >= 0 && t.Y >= 0 && t.X < g.width && t.Y < g.height
}

// CellAt returns the terrain at t.
func (g *Grid) CellAt(t geom.Tile) (Cell, error) {
	if !g.InBounds(t) {
		return 0, fmt.Errorf("%w: %v", ErrOutOfBounds, t)
	}
	return g.cells[t.Y*g.width+t.X], nil
}

// IsWalkable reports whether t is in bounds and not a wall.
func (g *Grid) IsWalkable(t geom.Tile) bool {
	c, err := g.CellAt(t)
	return err == nil && c != CellWall
}

// IsStairs reports whether t holds the floor's stairs.
func (g *Grid) IsStairs(t geom.Tile) bool {
	c, err := g.CellAt(t)
	return err == nil && c == CellStairs
}

// HasLineOfSight walks a Bresenham line from from to to. Every tile on the
// line, both endpoints included, must be walkable.
func (g *Grid) HasLineOfSight(from, to geom.Tile) bool {
	dx := abs(to.X - from.X)
	dy := abs(to.Y - from.Y)
	sx, sy := 1, 1
	if from.X > to.X {
		sx = -1
	}
	if from.Y > to.Y {
		sy = -1
	}
	err := dx - dy
	x, y := from.X, from.Y
	for x != to.X || y != to.Y {
		if !g.IsWalkable(geom.Tile{X: x, Y: y}) {
			return false
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x += sx
		}
		if e2 < dx {
			err += dx
			y += sy
		}
	}
	return g.IsWalkable(to)
}

// PlaceItem drops item on t.
func (g *Grid) PlaceItem(t geom.Tile, item ruleset.Item) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.items[t] = append(g.items[t], item)
}

// TakeItems removes and returns every item on t.
func (g *Grid) TakeItems(t geom.Tile) []ruleset.Item {
	g.mu.Lock()
	defer g.mu.Unlock()
	items := g.items[t]
	delete(g.items, t)
	return items
}

// ItemsAt returns a copy of the items lying on t.
func (g *Grid) ItemsAt(t geom.Tile) []ruleset.Item {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ruleset.Item(nil), g.items[t]...)
}

// String renders the terrain, one row per line.
func (g *Grid) String() string {
	var b strings.Builder
	for y := 0; y < g.height; y++ {
		b.Write(cellsToBytes(g.cells[y*g.width : (y+1)*g.width]))
		b.WriteByte('\n')
	}
	return b.String()
}

func cellsToBytes(cs []Cell) []byte {
	out := make([]byte, len(cs))
	for i, c := range cs {
		out[i] = byte(c)
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
