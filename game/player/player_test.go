package player

import (
	"testing"

	"github.com/nightwatch-game/server/game/ai"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func nop() *zap.Logger { return zap.NewNop() }

// ---- Health ----

func TestHealth_DamageClampsAndDiesOnce(t *testing.T) {
	h := NewHealth(100)
	var changes []float64
	died := 0
	h.OnChanged(func(cur, _ float64) { changes = append(changes, cur) })
	h.OnDied(func() { died++ })

	h.TakeDamage(30)
	assert.Equal(t, 70.0, h.Current())
	assert.InDelta(t, 0.7, h.Percentage(), 1e-9)

	h.TakeDamage(500)
	assert.Equal(t, 0.0, h.Current())
	assert.False(t, h.IsAlive())
	assert.Equal(t, 1, died)

	h.TakeDamage(10)
	assert.Equal(t, 1, died)
	assert.Equal(t, []float64{70, 0}, changes)
}

func TestHealth_HealClampsAtMax(t *testing.T) {
	h := NewHealth(50)
	h.TakeDamage(20)
	h.Heal(100)
	assert.Equal(t, 50.0, h.Current())

	h.Heal(-5)
	h.TakeDamage(0)
	assert.Equal(t, 50.0, h.Current())
}

func TestHealth_DeadCannotHealUntilFullHeal(t *testing.T) {
	h := NewHealth(10)
	h.TakeDamage(10)
	h.Heal(5)
	assert.Equal(t, 0.0, h.Current())

	h.FullHeal()
	assert.Equal(t, 10.0, h.Current())
	assert.True(t, h.IsAlive())
}

func TestHealth_NonPositiveMaxDefaults(t *testing.T) {
	assert.Equal(t, 100.0, NewHealth(0).Max())
}

// ---- Player ----

func TestPlayer_ValidLifecycle(t *testing.T) {
	p := New("p1", "Alice", 100)
	assert.True(t, p.Valid())

	p.TakeDamage(100)
	assert.False(t, p.Valid())

	p.Health.FullHeal()
	assert.True(t, p.Valid())

	p.Remove()
	assert.False(t, p.Valid())
	assert.True(t, p.Removed())

	var nilPlayer *Player
	assert.False(t, nilPlayer.Valid())
}

func TestPlayer_Snapshot(t *testing.T) {
	p := New("p1", "Alice", 80)
	p.SetPosition(ai.Vec3{X: 1, Z: 2})
	p.TakeDamage(20)

	s := p.Snapshot()
	assert.Equal(t, "p1", s.ID)
	assert.Equal(t, ai.Vec3{X: 1, Z: 2}, s.Position)
	assert.Equal(t, 60.0, s.Health)
	assert.Equal(t, 80.0, s.MaxHealth)
	assert.InDelta(t, 0.75, s.HealthPct, 1e-9)
	assert.True(t, s.Alive)
}

// ---- SessionManager ----

func newSession(p *Player) *Session {
	return &Session{
		PlayerID: p.ID(),
		Player:   p,
		SendChan: make(chan []byte, 4),
		Done:     make(chan struct{}),
		logger:   nop(),
	}
}

func TestSessionManager_ReconnectDisplacesOld(t *testing.T) {
	sm := NewSessionManager(nop())
	p := New("p1", "Alice", 100)
	old, cur := newSession(p), newSession(p)

	sm.Register(old)
	sm.Register(cur)
	assert.True(t, old.IsClosed())
	assert.Same(t, cur, sm.Get("p1"))

	// The displaced session's cleanup must not evict its replacement.
	assert.False(t, sm.Unregister(old))
	assert.Equal(t, 1, sm.Count())
	assert.True(t, sm.Unregister(cur))
	assert.Zero(t, sm.Count())
}

func TestSession_SendDropsWhenClosed(t *testing.T) {
	s := newSession(New("p1", "Alice", 100))
	s.SendJSON("health", map[string]float64{"current": 10})
	assert.Len(t, s.SendChan, 1)

	s.Close()
	s.Close()
	s.SendJSON("health", nil)
	assert.Len(t, s.SendChan, 1)
}
