package world

import (
	"context"
	"sort"
	"sync"

	"github.com/nightwatch-game/server/hook"
	"github.com/nightwatch-game/server/resource"
	"go.uber.org/zap"
)

// Manager owns every running arena.
type Manager struct {
	mu     sync.RWMutex
	arenas map[string]*Arena
	opts   ArenaOptions
	logger *zap.Logger
}

func NewManager(opts ArenaOptions) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		arenas: make(map[string]*Arena),
		opts:   opts,
		logger: opts.Logger,
	}
}

// Load builds all arenas first and starts them only if every one is valid.
func (m *Manager) Load(defs []*resource.ArenaDef) error {
	built := make([]*Arena, 0, len(defs))
	for _, def := range defs {
		a, err := NewArena(def, m.opts)
		if err != nil {
			return err
		}
		built = append(built, a)
	}
	for _, a := range built {
		m.install(a)
	}
	return nil
}

// Reload replaces the arena with def's ID, or adds it. Players of the old
// arena move over at their current positions; enemies restart from the file.
func (m *Manager) Reload(def *resource.ArenaDef) error {
	a, err := NewArena(def, m.opts)
	if err != nil {
		m.logger.Warn("arena reload rejected", zap.String("arena_id", def.ID), zap.Error(err))
		return err
	}
	old := m.install(a)
	if old == nil {
		return nil
	}
	moved := old.detachPlayers()
	for _, p := range moved {
		a.adopt(p)
	}
	_ = m.opts.Hooks.Trigger(context.Background(), &hook.Notification{
		Event:   hook.ArenaReloaded,
		ArenaID: a.ID,
		Data:    map[string]int{"players": len(moved), "enemies": len(a.enemies)},
	})
	m.logger.Info("arena reloaded", zap.String("arena_id", a.ID), zap.Int("players", len(moved)))
	return nil
}

// install swaps a in, stops whatever it replaced and starts a's loop. The old
// arena has finished its last Step when install returns.
func (m *Manager) install(a *Arena) *Arena {
	m.mu.Lock()
	old := m.arenas[a.ID]
	m.arenas[a.ID] = a
	m.mu.Unlock()
	if old != nil {
		old.Stop()
	}
	a.Start()
	m.logger.Info("arena started", zap.String("arena_id", a.ID), zap.String("name", a.Name))
	return old
}

func (m *Manager) Get(id string) (*Arena, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.arenas[id]
	if !ok {
		return nil, ErrArenaNotFound
	}
	return a, nil
}

// List returns the arenas sorted by ID.
func (m *Manager) List() []*Arena {
	m.mu.RLock()
	out := make([]*Arena, 0, len(m.arenas))
	for _, a := range m.arenas {
		out = append(out, a)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.arenas)
}

// Destroy stops and forgets an arena. Its players are invalidated.
func (m *Manager) Destroy(id string) bool {
	m.mu.Lock()
	a, ok := m.arenas[id]
	if ok {
		delete(m.arenas, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	a.Stop()
	for _, p := range a.detachPlayers() {
		p.Remove()
	}
	m.logger.Info("arena destroyed", zap.String("arena_id", id))
	return true
}

func (m *Manager) StopAll() {
	m.mu.Lock()
	arenas := make([]*Arena, 0, len(m.arenas))
	for _, a := range m.arenas {
		arenas = append(arenas, a)
	}
	m.arenas = make(map[string]*Arena)
	m.mu.Unlock()
	for _, a := range arenas {
		a.Stop()
	}
	m.logger.Info("all arenas stopped", zap.Int("count", len(arenas)))
}
