package scripting

import (
	"context"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/rogue/internal/game/ai"
)

// Pattern is an ai.Pattern backed by a script's choose_attack hook.
//
// The hook receives one table with fields enemy_id, class, boss, distance,
// melee_range, projectile_range, hp, player_hp and default, and returns
// "melee", "projectile", "none", or nil to keep the default.
type Pattern struct {
	manager *Manager
	name    string
}

// PatternFor returns the Pattern for a loaded script, or false.
func (m *Manager) PatternFor(name string) (*Pattern, bool) {
	m.mu.RLock()
	_, ok := m.vms[name]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return &Pattern{manager: m, name: name}, true
}

// Name returns the script's pattern name.
func (p *Pattern) Name() string { return p.name }

// ChooseAttack implements ai.Pattern.
func (p *Pattern) ChooseAttack(ctx context.Context, in ai.AttackContext) (ai.AttackKind, bool) {
	var arg *lua.LTable
	if !p.manager.withState(p.name, func(L *lua.LState) { arg = attackTable(L, in) }) {
		return ai.AttackNone, false
	}
	ret := p.manager.CallHook(ctx, p.name, ChooseAttackHook, arg)
	if ret == lua.LNil {
		return ai.AttackNone, false
	}
	s, ok := ret.(lua.LString)
	if !ok {
		p.manager.logger.Warn("pattern returned non-string", zap.String("pattern", p.name), zap.String("type", ret.Type().String()))
		return ai.AttackNone, false
	}
	kind, ok := ai.ParseAttackKind(string(s))
	if !ok {
		p.manager.logger.Warn("pattern returned unknown attack", zap.String("pattern", p.name), zap.String("attack", string(s)))
	}
	return kind, ok
}

func attackTable(L *lua.LState, in ai.AttackContext) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "enemy_id", lua.LString(in.EnemyID))
	L.SetField(t, "class", lua.LString(in.Class))
	L.SetField(t, "boss", lua.LBool(in.Boss))
	L.SetField(t, "distance", lua.LNumber(in.Distance))
	L.SetField(t, "melee_range", lua.LNumber(in.MeleeRange))
	L.SetField(t, "projectile_range", lua.LNumber(in.ProjectileRange))
	L.SetField(t, "hp", lua.LNumber(in.HPFraction))
	L.SetField(t, "player_hp", lua.LNumber(in.PlayerHPFraction))
	L.SetField(t, "default", lua.LString(in.Default.String()))
	return t
}
