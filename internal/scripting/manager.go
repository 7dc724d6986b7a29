package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/rogue/internal/game/ai"
	"github.com/cory-johannsen/rogue/internal/game/dice"
)

// ChooseAttackHook is the global function a pattern script defines.
const ChooseAttackHook = "choose_attack"

type vm struct {
	mu    sync.Mutex
	state *lua.LState
	limit int
}

// Manager owns one sandboxed VM per pattern and dispatches hook calls.
//
// Manager is safe for concurrent use. Calls into one VM are serialized; calls
// into different VMs run concurrently.
type Manager struct {
	mu     sync.RWMutex
	vms    map[string]*vm
	roller *dice.Roller
	logger *zap.Logger
}

// NewManager creates a Manager with no patterns loaded.
//
// Precondition: roller and logger must be non-nil.
func NewManager(roller *dice.Roller, logger *zap.Logger) *Manager {
	if roller == nil {
		panic("scripting.NewManager: roller must not be nil")
	}
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		vms:    make(map[string]*vm),
		roller: roller,
		logger: logger,
	}
}

// LoadPattern compiles the script at path into a fresh VM registered as name,
// replacing any VM previously loaded under that name.
//
// Postcondition: returns error on read, syntax or runtime failure, or when the
// top-level chunk exceeds instLimit opcodes.
func (m *Manager) LoadPattern(ctx context.Context, name, path string, instLimit int) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("scripting: reading %q: %w", path, err)
	}
	return m.LoadPatternString(ctx, name, string(src), instLimit)
}

// LoadPatternString is LoadPattern for in-memory source.
func (m *Manager) LoadPatternString(ctx context.Context, name, src string, instLimit int) error {
	L := NewSandboxedState()
	m.RegisterModules(L, name)
	if err := runBounded(ctx, L, instLimit, func() error { return L.DoString(src) }); err != nil {
		L.Close()
		return fmt.Errorf("scripting: loading pattern %q: %w", name, err)
	}

	m.mu.Lock()
	old := m.vms[name]
	m.vms[name] = &vm{state: L, limit: instLimit}
	m.mu.Unlock()
	if old != nil {
		old.mu.Lock()
		old.state.Close()
		old.mu.Unlock()
	}
	m.logger.Debug("pattern loaded", zap.String("pattern", name))
	return nil
}

// LoadDir loads every *.lua file in dir as a pattern named after the file
// stem, in lexicographic order. An empty dir is a no-op.
//
// Postcondition: returns the loaded names, or the first error encountered.
func (m *Manager) LoadDir(ctx context.Context, dir string, instLimit int) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	names := make([]string, 0, len(files))
	for _, f := range files {
		name := strings.TrimSuffix(f, ".lua")
		if err := m.LoadPattern(ctx, name, filepath.Join(dir, f), instLimit); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}

// Names returns the loaded pattern names, sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.vms))
	for name := range m.vms {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// CallHook calls the global function hook in pattern's VM and returns its first
// result. A missing VM or hook returns LNil. Lua runtime errors, including an
// exhausted opcode budget, are logged at Warn and reported as LNil.
//
// Precondition: args must be values created for this Manager's VMs or plain
// scalar lua values.
func (m *Manager) CallHook(ctx context.Context, pattern, hook string, args ...lua.LValue) lua.LValue {
	m.mu.RLock()
	v := m.vms[pattern]
	m.mu.RUnlock()
	if v == nil {
		m.logger.Info("scripting: no VM for pattern", zap.String("pattern", pattern), zap.String("hook", hook))
		return lua.LNil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	L := v.state
	fn := L.GetGlobal(hook)
	if fn.Type() != lua.LTFunction {
		return lua.LNil
	}
	err := runBounded(ctx, L, v.limit, func() error {
		return L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...)
	})
	if err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("pattern", pattern),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil
	}
	ret := L.Get(-1)
	L.Pop(1)
	return ret
}

// withState runs fn with exclusive use of pattern's LState.
func (m *Manager) withState(pattern string, fn func(L *lua.LState)) bool {
	m.mu.RLock()
	v := m.vms[pattern]
	m.mu.RUnlock()
	if v == nil {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	fn(v.state)
	return true
}

// RegisterPatterns adds every loaded pattern to r.
//
// Postcondition: returns error if r already holds one of the names.
func (m *Manager) RegisterPatterns(r *ai.Registry) error {
	for _, name := range m.Names() {
		if err := r.Register(name, &Pattern{manager: m, name: name}); err != nil {
			return err
		}
	}
	return nil
}

// Close releases every VM.
func (m *Manager) Close() {
	m.mu.Lock()
	vms := m.vms
	m.vms = make(map[string]*vm)
	m.mu.Unlock()
	for _, v := range vms {
		v.mu.Lock()
		v.state.Close()
		v.mu.Unlock()
	}
}
