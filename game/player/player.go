package player

import (
	"sync"

	"github.com/nightwatch-game/server/game/ai"
)

// Player is a participant in an arena. It is the target enemies perceive,
// chase and strike.
type Player struct {
	id     string
	Name   string
	Health *Health

	mu      sync.RWMutex
	pos     ai.Vec3
	removed bool
}

func New(id, name string, maxHealth float64) *Player {
	return &Player{id: id, Name: name, Health: NewHealth(maxHealth)}
}

func (p *Player) ID() string { return p.id }

func (p *Player) Position() ai.Vec3 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pos
}

func (p *Player) SetPosition(pos ai.Vec3) {
	p.mu.Lock()
	p.pos = pos
	p.mu.Unlock()
}

// Valid is false for a nil, removed or dead player.
func (p *Player) Valid() bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	removed := p.removed
	p.mu.RUnlock()
	return !removed && p.Health.IsAlive()
}

// Remove invalidates the player for every agent still holding it.
func (p *Player) Remove() {
	p.mu.Lock()
	p.removed = true
	p.mu.Unlock()
}

func (p *Player) Removed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.removed
}

func (p *Player) TakeDamage(amount float64) { p.Health.TakeDamage(amount) }

// Snapshot is the JSON view of a player.
type Snapshot struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Position  ai.Vec3 `json:"position"`
	Health    float64 `json:"health"`
	MaxHealth float64 `json:"max_health"`
	HealthPct float64 `json:"health_pct"`
	Alive     bool    `json:"alive"`
}

func (p *Player) Snapshot() Snapshot {
	return Snapshot{
		ID:        p.id,
		Name:      p.Name,
		Position:  p.Position(),
		Health:    p.Health.Current(),
		MaxHealth: p.Health.Max(),
		HealthPct: p.Health.Percentage(),
		Alive:     p.Health.IsAlive(),
	}
}

var (
	_ ai.Target         = (*Player)(nil)
	_ ai.DamageReceiver = (*Player)(nil)
)
