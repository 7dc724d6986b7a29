package ruleset

import "fmt"

// ItemKind classifies inventory items.
type ItemKind string

const (
	KindWeapon     ItemKind = "weapon"
	KindArmor      ItemKind = "armor"
	KindConsumable ItemKind = "consumable"
	KindKey        ItemKind = "key"
)

// Consumable effects understood by the player model.
const (
	EffectHealth       = "health"
	EffectMana         = "mana"
	EffectExperience   = "experience"
	EffectInvisibility = "invisibility"
	EffectImmortality  = "immortality"
	EffectSwiftness    = "swiftness"
)

// Item names with engine-level meaning.
const (
	FloorKeyName          = "Floor Key"
	ImmortalityAmuletName = "Immortality Amulet"
)

// Equipment is a weapon or armor piece. Values are shared read-only between
// every character wearing a copy.
type Equipment struct {
	Name    string   `yaml:"name"`
	Kind    ItemKind `yaml:"kind"`
	Attack  int      `yaml:"attack"`
	Defense int      `yaml:"defense"`
}

// Item is an inventory entry: a consumable, a key or a piece of equipment.
type Item struct {
	Name   string   `yaml:"name"`
	Kind   ItemKind `yaml:"kind"`
	Effect string   `yaml:"effect"`
	// Value is the heal/restore amount, the XP granted, or the effect
	// duration in seconds, depending on Effect.
	Value     int        `yaml:"value"`
	Equipment *Equipment `yaml:"equipment,omitempty"`
}

// FloorKey returns the key that unlocks a floor's stairs.
func FloorKey() Item {
	return Item{Name: FloorKeyName, Kind: KindKey}
}

// EquipmentItem wraps e as an inventory item.
func EquipmentItem(e Equipment) Item {
	eq := e
	return Item{Name: e.Name, Kind: e.Kind, Equipment: &eq}
}

// Validate checks the item's shape.
func (i Item) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("item name must not be empty")
	}
	switch i.Kind {
	case KindConsumable:
		switch i.Effect {
		case EffectHealth, EffectMana, EffectExperience, EffectInvisibility, EffectImmortality, EffectSwiftness:
		default:
			return fmt.Errorf("item %q: unknown effect %q", i.Name, i.Effect)
		}
		if i.Value <= 0 {
			return fmt.Errorf("item %q: value must be > 0", i.Name)
		}
	case KindKey:
	case KindWeapon, KindArmor:
		if i.Equipment == nil {
			return fmt.Errorf("item %q: equipment item without equipment", i.Name)
		}
	default:
		return fmt.Errorf("item %q: unknown kind %q", i.Name, i.Kind)
	}
	return nil
}
