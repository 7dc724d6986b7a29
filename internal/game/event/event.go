// Package event defines the closed set of notifications the simulation
// raises and the bus that delivers them to observers.
package event

import (
	"github.com/cory-johannsen/rogue/internal/game/combat"
	"github.com/cory-johannsen/rogue/internal/game/geom"
	"github.com/cory-johannsen/rogue/internal/game/ruleset"
)

// Kind is the stable wire name of an event variant.
type Kind string

const (
	KindStateUpdated           Kind = "state_updated"
	KindPlayerAttacked         Kind = "player_attacked"
	KindPlayerBowAttack        Kind = "player_bow_attack"
	KindPlayerProjectileAttack Kind = "player_projectile_attack"
	KindEnemySwingAttack       Kind = "enemy_swing_attack"
	KindEnemyProjectileAttack  Kind = "enemy_projectile_attack"
	KindWindUpStarted          Kind = "wind_up_started"
	KindItemsCollected         Kind = "items_collected"
	KindLogMessage             Kind = "log_message"
	KindEnemyDefeated          Kind = "enemy_defeated"
	KindBossDefeated           Kind = "boss_defeated"
	KindFloorTransitionStarted Kind = "floor_transition_started"
	KindFloorAdvanced          Kind = "floor_advanced"
	KindGamePaused             Kind = "game_paused"
	KindGameResumed            Kind = "game_resumed"
	KindPlayerDamaged          Kind = "player_damaged"
	KindPlayerDied             Kind = "player_died"
	KindInvalidAction          Kind = "invalid_action"
	KindExperienceGained       Kind = "experience_gained"
	KindLevelUp                Kind = "level_up"
	KindImmortalityTriggered   Kind = "immortality_triggered"
	KindInventoryChanged       Kind = "inventory_changed"
)

// Event is one simulation notification. The set of variants is closed.
type Event interface {
	Kind() Kind
	sealed()
}

// StateUpdated is published at the end of every tick.
type StateUpdated struct {
	Tick        uint64 `msgpack:"tick"`
	Floor       int    `msgpack:"floor"`
	Enemies     int    `msgpack:"enemies"`
	Projectiles int    `msgpack:"projectiles"`
	PlayerHP    int    `msgpack:"player_hp"`
	PlayerMP    int    `msgpack:"player_mp"`
}

// PlayerAttacked is a started player melee swing.
type PlayerAttacked struct {
	Attack combat.Descriptor `msgpack:"attack"`
}

// PlayerBowAttack is a bow draw accompanying a player projectile.
type PlayerBowAttack struct {
	Attack combat.Descriptor `msgpack:"attack"`
}

// PlayerProjectileAttack is a projectile fired by the player.
type PlayerProjectileAttack struct {
	Projectile combat.ProjectileState `msgpack:"projectile"`
}

// EnemySwingAttack is a started enemy melee swing.
type EnemySwingAttack struct {
	EnemyID string            `msgpack:"enemy_id"`
	Attack  combat.Descriptor `msgpack:"attack"`
}

// EnemyProjectileAttack is a projectile fired by an enemy.
type EnemyProjectileAttack struct {
	EnemyID    string                 `msgpack:"enemy_id"`
	Projectile combat.ProjectileState `msgpack:"projectile"`
}

// WindUpStarted signals an enemy telegraphing its attack.
type WindUpStarted struct {
	EnemyID string    `msgpack:"enemy_id"`
	Tile    geom.Tile `msgpack:"tile"`
}

// ItemsCollected is the batched report of items picked up since the last
// notification flush.
type ItemsCollected struct {
	Items []ruleset.Item `msgpack:"items"`
}

// LogMessage is a line for the player's message log.
type LogMessage struct {
	Text string `msgpack:"text"`
}

// EnemyDefeated is an enemy killed by the player.
type EnemyDefeated struct {
	EnemyID    string    `msgpack:"enemy_id"`
	Class      string    `msgpack:"class"`
	Tile       geom.Tile `msgpack:"tile"`
	Experience int       `msgpack:"experience"`
}

// BossDefeated is a boss killed by the player.
type BossDefeated struct {
	EnemyID string `msgpack:"enemy_id"`
	Class   string `msgpack:"class"`
	Floor   int    `msgpack:"floor"`
}

// FloorTransitionStarted marks the start of the floor-change countdown.
type FloorTransitionStarted struct {
	From int `msgpack:"from"`
}

// FloorAdvanced reports the floor the player now stands on.
type FloorAdvanced struct {
	Floor     int    `msgpack:"floor"`
	FloorKind string `msgpack:"kind"`
}

// GamePaused is published when the simulation pauses.
type GamePaused struct{}

// GameResumed is published when the simulation resumes.
type GameResumed struct{}

// PlayerDamaged is a hit taken by the player. Amount is the computed hit,
// which can exceed the HP the player had left.
type PlayerDamaged struct {
	Amount   int    `msgpack:"amount"`
	HP       int    `msgpack:"hp"`
	SourceID string `msgpack:"source_id"`
}

// PlayerDied is published the first time the player's HP reaches zero.
type PlayerDied struct {
	Killer string `msgpack:"killer"`
	Floor  int    `msgpack:"floor"`
	Level  int    `msgpack:"level"`
	Kills  int    `msgpack:"kills"`
}

// InvalidAction reports an action the engine could not interpret.
type InvalidAction struct {
	Action string `msgpack:"action"`
}

// ExperienceGained reports experience awarded to the player.
type ExperienceGained struct {
	Amount int `msgpack:"amount"`
}

// LevelUp reports a new player level.
type LevelUp struct {
	Level int `msgpack:"level"`
}

// ImmortalityTriggered reports an Immortality Amulet consumed automatically.
type ImmortalityTriggered struct{}

// InventoryChanged reports the player's inventory after a change.
type InventoryChanged struct {
	Items []ruleset.Item `msgpack:"items"`
}

func (StateUpdated) Kind() Kind           { return KindStateUpdated }
func (PlayerAttacked) Kind() Kind         { return KindPlayerAttacked }
func (PlayerBowAttack) Kind() Kind        { return KindPlayerBowAttack }
func (PlayerProjectileAttack) Kind() Kind { return KindPlayerProjectileAttack }
func (EnemySwingAttack) Kind() Kind       { return KindEnemySwingAttack }
func (EnemyProjectileAttack) Kind() Kind  { return KindEnemyProjectileAttack }
func (WindUpStarted) Kind() Kind          { return KindWindUpStarted }
func (ItemsCollected) Kind() Kind         { return KindItemsCollected }
func (LogMessage) Kind() Kind             { return KindLogMessage }
func (EnemyDefeated) Kind() Kind          { return KindEnemyDefeated }
func (BossDefeated) Kind() Kind           { return KindBossDefeated }
func (FloorTransitionStarted) Kind() Kind { return KindFloorTransitionStarted }
func (FloorAdvanced) Kind() Kind          { return KindFloorAdvanced }
func (GamePaused) Kind() Kind             { return KindGamePaused }
func (GameResumed) Kind() Kind            { return KindGameResumed }
func (PlayerDamaged) Kind() Kind          { return KindPlayerDamaged }
func (PlayerDied) Kind() Kind             { return KindPlayerDied }
func (InvalidAction) Kind() Kind          { return KindInvalidAction }
func (ExperienceGained) Kind() Kind       { return KindExperienceGained }
func (LevelUp) Kind() Kind                { return KindLevelUp }
func (ImmortalityTriggered) Kind() Kind   { return KindImmortalityTriggered }
func (InventoryChanged) Kind() Kind       { return KindInventoryChanged }

func (StateUpdated) sealed()           {}
func (PlayerAttacked) sealed()         {}
func (PlayerBowAttack) sealed()        {}
func (PlayerProjectileAttack) sealed() {}
func (EnemySwingAttack) sealed()       {}
func (EnemyProjectileAttack) sealed()  {}
func (WindUpStarted) sealed()          {}
func (ItemsCollected) sealed()         {}
func (LogMessage) sealed()             {}
func (EnemyDefeated) sealed()          {}
func (BossDefeated) sealed()           {}
func (FloorTransitionStarted) sealed() {}
func (FloorAdvanced) sealed()          {}
func (GamePaused) sealed()             {}
func (GameResumed) sealed()            {}
func (PlayerDamaged) sealed()          {}
func (PlayerDied) sealed()             {}
func (InvalidAction) sealed()          {}
func (ExperienceGained) sealed()       {}
func (LevelUp) sealed()                {}
func (ImmortalityTriggered) sealed()   {}
func (InventoryChanged) sealed()       {}

// Kinds lists every variant's wire name.
func Kinds() []Kind {
	return []Kind{
		KindStateUpdated, KindPlayerAttacked, KindPlayerBowAttack, KindPlayerProjectileAttack,
		KindEnemySwingAttack, KindEnemyProjectileAttack, KindWindUpStarted, KindItemsCollected,
		KindLogMessage, KindEnemyDefeated, KindBossDefeated, KindFloorTransitionStarted,
		KindFloorAdvanced, KindGamePaused, KindGameResumed, KindPlayerDamaged, KindPlayerDied,
		KindInvalidAction, KindExperienceGained, KindLevelUp, KindImmortalityTriggered,
		KindInventoryChanged,
	}
}
