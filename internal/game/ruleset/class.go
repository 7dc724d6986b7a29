// Package ruleset defines the class, equipment and item content the
// simulation reads stats from.
package ruleset

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownClass is returned when a class id is not in the catalog.
var ErrUnknownClass = errors.New("unknown class")

// Class holds the base stats and capabilities of one character class.
// Enemies derive their stats from the same table.
//
// Invariant: after Validate, AttackSpeed > 0 and at least the ID is set.
type Class struct {
	ID                   string    `yaml:"id"`
	Name                 string    `yaml:"name"`
	MaxHP                int       `yaml:"max_hp"`
	MaxMP                int       `yaml:"max_mp"`
	Attack               int       `yaml:"attack"`
	AttackSpeed          float64   `yaml:"attack_speed"`
	Range                float64   `yaml:"range"`
	MoveSpeed            float64   `yaml:"move_speed"`
	Defense              int       `yaml:"defense"`
	AttackWidth          float64   `yaml:"attack_width"`
	Melee                bool      `yaml:"melee"`
	Projectile           bool      `yaml:"projectile"`
	ProjectileSpeed      float64   `yaml:"projectile_speed"`
	ProjectileDistance   float64   `yaml:"projectile_distance"`
	ManaCost             int       `yaml:"mana_cost"`
	UnlimitedProjectiles bool      `yaml:"unlimited_projectiles"`
	Bow                  bool      `yaml:"bow"`
	StartingWeapon       Equipment `yaml:"starting_weapon"`
	StartingArmor        Equipment `yaml:"starting_armor"`
	EnemyWeapon          Equipment `yaml:"enemy_weapon"`
	EnemyArmor           Equipment `yaml:"enemy_armor"`
	StartingItems        []Item    `yaml:"starting_items"`
}

// Cooldown returns the minimum time between two attacks.
//
// Precondition: AttackSpeed > 0.
func (c *Class) Cooldown() time.Duration {
	return time.Duration(float64(time.Second) / c.AttackSpeed)
}

// Validate checks all class invariants.
//
// Postcondition: Returns nil if the class is usable, or an error listing
// every violation.
func (c *Class) Validate() error {
	var errs []string
	if c.ID == "" {
		errs = append(errs, "id must not be empty")
	}
	if c.MaxHP <= 0 {
		errs = append(errs, fmt.Sprintf("max_hp must be > 0, got %d", c.MaxHP))
	}
	if c.MaxMP < 0 {
		errs = append(errs, fmt.Sprintf("max_mp must be >= 0, got %d", c.MaxMP))
	}
	if c.AttackSpeed <= 0 {
		errs = append(errs, fmt.Sprintf("attack_speed must be > 0, got %g", c.AttackSpeed))
	}
	if c.MoveSpeed <= 0 {
		errs = append(errs, fmt.Sprintf("move_speed must be > 0, got %g", c.MoveSpeed))
	}
	if c.Melee && c.Range <= 0 {
		errs = append(errs, "melee classes need range > 0")
	}
	if c.Projectile && (c.ProjectileSpeed <= 0 || c.ProjectileDistance <= 0) {
		errs = append(errs, "projectile classes need projectile_speed and projectile_distance > 0")
	}
	if c.ManaCost < 0 {
		errs = append(errs, "mana_cost must be >= 0")
	}
	for _, it := range c.StartingItems {
		if err := it.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("class %q: %s", c.ID, strings.Join(errs, "; "))
	}
	return nil
}
