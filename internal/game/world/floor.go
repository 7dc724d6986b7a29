package world

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cory-johannsen/rogue/internal/game/geom"
	"github.com/cory-johannsen/rogue/internal/game/ruleset"
)

// ErrNoFloors is returned when a Library has no layout for a floor kind.
var ErrNoFloors = errors.New("no floor layouts")

// Kind distinguishes regular, boss and bonus floors.
type Kind string

const (
	KindRegular Kind = "regular"
	KindBoss    Kind = "boss"
	KindBonus   Kind = "bonus"
)

// EnemySpawn places one enemy when a floor is instantiated.
type EnemySpawn struct {
	Tile    geom.Tile
	Class   string
	Boss    bool
	Pattern string
}

// ItemSpawn places one item on a floor tile.
type ItemSpawn struct {
	Tile geom.Tile
	Item ruleset.Item
}

// Layout is an immutable floor template.
type Layout struct {
	ID      string
	Kind    Kind
	Rows    []string
	Spawn   geom.Tile
	Enemies []EnemySpawn
	Items   []ItemSpawn
}

// Validate checks that the layout can be instantiated.
func (l *Layout) Validate() error {
	var errs []string
	if l.ID == "" {
		errs = append(errs, "id must not be empty")
	}
	switch l.Kind {
	case KindRegular, KindBoss, KindBonus:
	default:
		errs = append(errs, fmt.Sprintf("unknown kind %q", l.Kind))
	}
	g, err := NewGrid(l.Rows)
	if err != nil {
		errs = append(errs, err.Error())
	} else {
		if !g.IsWalkable(l.Spawn) {
			errs = append(errs, fmt.Sprintf("spawn %v is not walkable", l.Spawn))
		}
		for _, e := range l.Enemies {
			if !g.IsWalkable(e.Tile) {
				errs = append(errs, fmt.Sprintf("enemy at %v is not on a walkable tile", e.Tile))
			}
			if e.Class == "" {
				errs = append(errs, fmt.Sprintf("enemy at %v has no class", e.Tile))
			}
		}
		for _, it := range l.Items {
			if !g.IsWalkable(it.Tile) {
				errs = append(errs, fmt.Sprintf("item %q at %v is not on a walkable tile", it.Item.Name, it.Tile))
			}
			if err := it.Item.Validate(); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("layout %q: %s", l.ID, strings.Join(errs, "; "))
	}
	return nil
}

// Floor is one instantiated dungeon level. Its Grid is exclusively owned by
// the engine that requested it.
type Floor struct {
	Number  int
	Kind    Kind
	Layout  string
	Grid    *Grid
	Spawn   geom.Tile
	Enemies []EnemySpawn
}

// Instantiate builds a fresh Floor from the layout.
//
// Precondition: l.Validate() == nil.
func (l *Layout) Instantiate(number int) (*Floor, error) {
	g, err := NewGrid(l.Rows)
	if err != nil {
		return nil, fmt.Errorf("instantiating layout %q: %w", l.ID, err)
	}
	for _, it := range l.Items {
		g.PlaceItem(it.Tile, it.Item)
	}
	return &Floor{
		Number:  number,
		Kind:    l.Kind,
		Layout:  l.ID,
		Grid:    g,
		Spawn:   l.Spawn,
		Enemies: append([]EnemySpawn(nil), l.Enemies...),
	}, nil
}

// Source produces the floor for a dungeon depth.
type Source interface {
	Floor(number int, kind Kind) (*Floor, error)
}

// Library is a Source cycling through loaded layouts of each kind. Bonus and
// boss requests fall back to regular layouts when none of that kind exist.
type Library struct {
	byKind map[Kind][]*Layout
}

// NewLibrary validates and indexes layouts.
//
// Postcondition: Returns a Library or the first validation error.
func NewLibrary(layouts ...*Layout) (*Library, error) {
	lib := &Library{byKind: make(map[Kind][]*Layout)}
	for _, l := range layouts {
		if err := l.Validate(); err != nil {
			return nil, err
		}
		lib.byKind[l.Kind] = append(lib.byKind[l.Kind], l)
	}
	if len(lib.byKind[KindRegular]) == 0 {
		return nil, fmt.Errorf("%w: at least one regular layout is required", ErrNoFloors)
	}
	return lib, nil
}

// Floor instantiates the layout for number.
func (l *Library) Floor(number int, kind Kind) (*Floor, error) {
	layouts := l.byKind[kind]
	if len(layouts) == 0 {
		layouts = l.byKind[KindRegular]
	}
	if len(layouts) == 0 {
		return nil, fmt.Errorf("%w: kind %q", ErrNoFloors, kind)
	}
	idx := number - 1
	if idx < 0 {
		idx = 0
	}
	f, err := layouts[idx%len(layouts)].Instantiate(number)
	if err != nil {
		return nil, err
	}
	f.Kind = kind
	return f, nil
}
