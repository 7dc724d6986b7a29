package ai

import (
	"context"
	"fmt"
	"sync"
)

// AttackKind is the attack an enemy commits to when its wind-up ends.
type AttackKind int

const (
	AttackNone AttackKind = iota
	AttackMelee
	AttackProjectile
)

func (k AttackKind) String() string {
	switch k {
	case AttackMelee:
		return "melee"
	case AttackProjectile:
		return "projectile"
	default:
		return "none"
	}
}

// ParseAttackKind maps a script result to an AttackKind.
func ParseAttackKind(s string) (AttackKind, bool) {
	switch s {
	case "melee":
		return AttackMelee, true
	case "projectile":
		return AttackProjectile, true
	case "none":
		return AttackNone, true
	}
	return AttackNone, false
}

// AttackContext is what a Pattern sees when an enemy's wind-up completes.
type AttackContext struct {
	EnemyID          string
	Class            string
	Boss             bool
	Distance         float64
	MeleeRange       float64
	ProjectileRange  float64
	HPFraction       float64
	PlayerHPFraction float64
	// Default is the range-based choice made without the pattern.
	Default AttackKind
}

// Pattern customizes an enemy's attack choice.
type Pattern interface {
	// ChooseAttack returns the kind to use and true, or false to keep
	// AttackContext.Default.
	ChooseAttack(ctx context.Context, in AttackContext) (AttackKind, bool)
}

// PatternFunc adapts a function to Pattern.
type PatternFunc func(ctx context.Context, in AttackContext) (AttackKind, bool)

// ChooseAttack calls f.
func (f PatternFunc) ChooseAttack(ctx context.Context, in AttackContext) (AttackKind, bool) {
	return f(ctx, in)
}

// Registry indexes Patterns by name.
//
// Invariant: each name is registered at most once.
type Registry struct {
	mu       sync.RWMutex
	patterns map[string]Pattern
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{patterns: make(map[string]Pattern)}
}

// Register stores p under name.
//
// Precondition: p must not be nil.
// Postcondition: returns error on name collision.
func (r *Registry) Register(name string, p Pattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.patterns[name]; exists {
		return fmt.Errorf("ai.Registry: pattern %q already registered", name)
	}
	r.patterns[name] = p
	return nil
}

// PatternFor returns the Pattern for name, or false if not registered.
func (r *Registry) PatternFor(name string) (Pattern, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patterns[name]
	return p, ok
}

// Len returns the number of registered patterns.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.patterns)
}
