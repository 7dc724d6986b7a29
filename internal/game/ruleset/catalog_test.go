package ruleset_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/rogue/internal/game/ruleset"
)

func TestDefaultCatalog_Classes(t *testing.T) {
	cat, err := ruleset.DefaultCatalog()
	require.NoError(t, err)
	assert.Equal(t, []string{"mage", "ranger", "rogue", "warrior"}, cat.IDs())

	warrior, err := cat.Class("Warrior")
	require.NoError(t, err)
	assert.Equal(t, 120, warrior.MaxHP)
	assert.Equal(t, 15, warrior.StartingWeapon.Attack)
	assert.Equal(t, 5, warrior.StartingArmor.Defense)
	assert.True(t, warrior.Melee)
	assert.False(t, warrior.Projectile)

	mage, err := cat.Class("mage")
	require.NoError(t, err)
	assert.Equal(t, 5, mage.ManaCost)
	assert.True(t, mage.Melee && mage.Projectile)

	ranger, err := cat.Class("ranger")
	require.NoError(t, err)
	assert.True(t, ranger.UnlimitedProjectiles)
	assert.True(t, ranger.Bow)
	assert.False(t, ranger.Melee)
}

func TestCatalog_UnknownClass(t *testing.T) {
	cat, err := ruleset.DefaultCatalog()
	require.NoError(t, err)
	_, err = cat.Class("bard")
	assert.ErrorIs(t, err, ruleset.ErrUnknownClass)
}

func TestLoadCatalog_OverridesByID(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "warrior.yaml"), []byte(`
classes:
  - id: warrior
    name: Heavy Warrior
    max_hp: 200
    attack: 20
    attack_speed: 1.0
    range: 2
    move_speed: 3
    melee: true
`), 0o644))

	cat, err := ruleset.LoadCatalog(dir)
	require.NoError(t, err)
	w, err := cat.Class("warrior")
	require.NoError(t, err)
	assert.Equal(t, "Heavy Warrior", w.Name)
	assert.Equal(t, 200, w.MaxHP)
	assert.Len(t, cat.IDs(), 4)
}

func TestLoadCatalog_InvalidClassRejected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(`
classes:
  - id: broken
    max_hp: 0
    attack_speed: 0
`), 0o644))
	_, err := ruleset.LoadCatalog(dir)
	assert.Error(t, err)
}

func TestLoadCatalog_MissingDir(t *testing.T) {
	_, err := ruleset.LoadCatalog("/nonexistent/classes")
	assert.Error(t, err)
}

func TestItem_Validate(t *testing.T) {
	assert.NoError(t, ruleset.FloorKey().Validate())
	assert.NoError(t, ruleset.EquipmentItem(ruleset.Equipment{Name: "Axe", Kind: ruleset.KindWeapon, Attack: 3}).Validate())
	assert.Error(t, ruleset.Item{Name: "Odd", Kind: ruleset.KindConsumable, Effect: "levitate", Value: 1}.Validate())
	assert.Error(t, ruleset.Item{Kind: ruleset.KindKey}.Validate())
}

func TestProperty_CooldownInverseOfAttackSpeed(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		speed := rapid.Float64Range(0.1, 10).Draw(rt, "attack_speed")
		c := &ruleset.Class{AttackSpeed: speed}
		want := time.Duration(float64(time.Second) / speed)
		assert.Equal(rt, want, c.Cooldown())
	})
}
