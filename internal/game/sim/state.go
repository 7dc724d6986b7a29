package sim

import (
	"time"

	"github.com/cory-johannsen/rogue/internal/game/ai"
	"github.com/cory-johannsen/rogue/internal/game/combat"
	"github.com/cory-johannsen/rogue/internal/game/geom"
	"github.com/cory-johannsen/rogue/internal/game/ruleset"
	"github.com/cory-johannsen/rogue/internal/game/world"
)

// PlayerState is a copy of the player's visible state.
type PlayerState struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Class     string         `json:"class"`
	HP        int            `json:"hp"`
	MaxHP     int            `json:"max_hp"`
	MP        int            `json:"mp"`
	MaxMP     int            `json:"max_mp"`
	Level     int            `json:"level"`
	XP        int            `json:"xp"`
	XPToNext  int            `json:"xp_to_next"`
	Kills     int            `json:"kills"`
	Tile      geom.Tile      `json:"tile"`
	Position  geom.Vec       `json:"position"`
	Inventory []ruleset.Item `json:"inventory"`
}

// EnemyState is a copy of one enemy's visible state.
type EnemyState struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Class    string    `json:"class"`
	Boss     bool      `json:"boss"`
	HP       int       `json:"hp"`
	MaxHP    int       `json:"max_hp"`
	Tile     geom.Tile `json:"tile"`
	Position geom.Vec  `json:"position"`
	State    ai.State  `json:"state"`
	Noticed  bool      `json:"noticed"`
}

// Snapshot is a consistent copy of the whole run.
type Snapshot struct {
	Tick          uint64                   `json:"tick"`
	Paused        bool                     `json:"paused"`
	InRun         bool                     `json:"in_run"`
	Dead          bool                     `json:"dead"`
	Transitioning bool                     `json:"transitioning"`
	Floor         int                      `json:"floor"`
	FloorKind     world.Kind               `json:"floor_kind"`
	Layout        string                   `json:"layout"`
	Killer        string                   `json:"killer,omitempty"`
	Player        *PlayerState             `json:"player,omitempty"`
	Enemies       []EnemyState             `json:"enemies"`
	Projectiles   []combat.ProjectileState `json:"projectiles"`
}

// RunSummary describes the current or last run for result recording.
type RunSummary struct {
	RunID      string
	PlayerName string
	Class      string
	Floor      int
	Level      int
	Kills      int
	Killer     string
	Dead       bool
	StartedAt  time.Time
}
