package world

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/rogue/internal/game/geom"
	"github.com/cory-johannsen/rogue/internal/game/ruleset"
)

//go:embed defaults/floors.yaml
var defaultFloorsYAML []byte

// yamlFloorFile is the top-level YAML structure for floor files.
type yamlFloorFile struct {
	Floors []yamlFloor `yaml:"floors"`
}

// yamlFloor is the YAML representation of a layout. Rows use '#' for walls,
// '.' for floor, '>' for stairs and '@' for the player spawn.
type yamlFloor struct {
	ID      string      `yaml:"id"`
	Kind    string      `yaml:"kind"`
	Layout  string      `yaml:"layout"`
	Enemies []yamlEnemy `yaml:"enemies"`
	Items   []yamlItem  `yaml:"items"`
}

type yamlEnemy struct {
	At      [2]int `yaml:"at"`
	Class   string `yaml:"class"`
	Boss    bool   `yaml:"boss"`
	Pattern string `yaml:"pattern"`
}

type yamlItem struct {
	At   [2]int       `yaml:"at"`
	Item ruleset.Item `yaml:"item"`
}

// ParseLayouts parses a YAML document holding a top-level "floors" list.
//
// Postcondition: Returns validated layouts or a non-nil error.
func ParseLayouts(data []byte) ([]*Layout, error) {
	var file yamlFloorFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing floor YAML: %w", err)
	}
	out := make([]*Layout, 0, len(file.Floors))
	for _, yf := range file.Floors {
		l, err := convertYAMLFloor(yf)
		if err != nil {
			return nil, err
		}
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("validating floor: %w", err)
		}
		out = append(out, l)
	}
	return out, nil
}

// DefaultLibrary returns the built-in layouts.
func DefaultLibrary() (*Library, error) {
	layouts, err := ParseLayouts(defaultFloorsYAML)
	if err != nil {
		return nil, fmt.Errorf("parsing built-in floors: %w", err)
	}
	return NewLibrary(layouts...)
}

// LoadLibrary loads every YAML file in dir. An empty dir returns the
// built-in layouts.
//
// Precondition: dir, when non-empty, must be a readable directory.
func LoadLibrary(dir string) (*Library, error) {
	if dir == "" {
		return DefaultLibrary()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading floor dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && (filepath.Ext(e.Name()) == ".yaml" || filepath.Ext(e.Name()) == ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var layouts []*Layout
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading floor file %s: %w", path, err)
		}
		ls, err := ParseLayouts(data)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		layouts = append(layouts, ls...)
	}
	return NewLibrary(layouts...)
}

func convertYAMLFloor(yf yamlFloor) (*Layout, error) {
	rows := splitRows(yf.Layout)
	spawn, found := geom.Tile{}, false
	for y, row := range rows {
		if x := strings.IndexByte(row, '@'); x >= 0 {
			spawn, found = geom.Tile{X: x, Y: y}, true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("floor %q: layout has no '@' spawn", yf.ID)
	}

	kind := Kind(yf.Kind)
	if kind == "" {
		kind = KindRegular
	}
	l := &Layout{ID: yf.ID, Kind: kind, Rows: rows, Spawn: spawn}
	for _, e := range yf.Enemies {
		pattern := e.Pattern
		if pattern == "" {
			pattern = "default"
		}
		l.Enemies = append(l.Enemies, EnemySpawn{
			Tile:    geom.Tile{X: e.At[0], Y: e.At[1]},
			Class:   e.Class,
			Boss:    e.Boss,
			Pattern: pattern,
		})
	}
	for _, it := range yf.Items {
		l.Items = append(l.Items, ItemSpawn{Tile: geom.Tile{X: it.At[0], Y: it.At[1]}, Item: it.Item})
	}
	return l, nil
}

func splitRows(layout string) []string {
	var rows []string
	for _, line := range strings.Split(layout, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			continue
		}
		rows = append(rows, line)
	}
	return rows
}
