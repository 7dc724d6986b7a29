package ai_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/rogue/internal/game/ai"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := ai.NewRegistry()
	p := ai.PatternFunc(func(context.Context, ai.AttackContext) (ai.AttackKind, bool) {
		return ai.AttackMelee, true
	})
	require.NoError(t, r.Register("brute", p))
	assert.Error(t, r.Register("brute", p))
	assert.Equal(t, 1, r.Len())

	got, ok := r.PatternFor("brute")
	require.True(t, ok)
	kind, ok := got.ChooseAttack(context.Background(), ai.AttackContext{})
	assert.True(t, ok)
	assert.Equal(t, ai.AttackMelee, kind)

	_, ok = r.PatternFor("missing")
	assert.False(t, ok)
}

func TestParseAttackKind(t *testing.T) {
	for _, k := range []ai.AttackKind{ai.AttackNone, ai.AttackMelee, ai.AttackProjectile} {
		got, ok := ai.ParseAttackKind(k.String())
		assert.True(t, ok)
		assert.Equal(t, k, got)
	}
	_, ok := ai.ParseAttackKind("fireball")
	assert.False(t, ok)
}
