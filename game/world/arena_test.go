package world

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nightwatch-game/server/game/ai"
	"github.com/nightwatch-game/server/game/player"
	"github.com/nightwatch-game/server/hook"
	"github.com/nightwatch-game/server/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const step = 50 * time.Millisecond

func nop() *zap.Logger { return zap.NewNop() }

type recorder struct {
	mu     sync.Mutex
	events []*hook.Notification
}

func (r *recorder) register(hc *hook.HookCenter) {
	fn := func(_ context.Context, n *hook.Notification) error {
		r.mu.Lock()
		r.events = append(r.events, n)
		r.mu.Unlock()
		return nil
	}
	hc.Register(hook.AllAI, 0, "test", fn)
	hc.Register(hook.AllPlayer, 0, "test", fn)
	hc.Register(hook.ArenaReloaded, 0, "test", fn)
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, n := range r.events {
		out[i] = n.Event
	}
	return out
}

func (r *recorder) find(event string) []*hook.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*hook.Notification
	for _, n := range r.events {
		if n.Event == event {
			out = append(out, n)
		}
	}
	return out
}

// guardDef is one stationary guard at the origin facing +Z; players spawn 5m ahead.
func guardDef(walls ...resource.WallDef) *resource.ArenaDef {
	return &resource.ArenaDef{
		ID:      "yard",
		Name:    "Yard",
		Spawn:   ai.Vec3{Z: 5},
		Walls:   walls,
		Enemies: []resource.EnemyDef{{ID: "g1"}},
	}
}

func newTestArena(t *testing.T, def *resource.ArenaDef, cfg ai.Config) (*Arena, *recorder) {
	t.Helper()
	hc := hook.NewHookCenter(nop())
	rec := &recorder{}
	rec.register(hc)
	a, err := NewArena(def, ArenaOptions{AI: cfg, Hooks: hc, Logger: nop()})
	require.NoError(t, err)
	return a, rec
}

func advance(a *Arena, n int) {
	for i := 0; i < n; i++ {
		a.Step(step)
	}
}

func enemySnap(t *testing.T, a *Arena, id string) ai.Snapshot {
	t.Helper()
	for _, e := range a.Snapshot().Enemies {
		if e.ID == id {
			return e
		}
	}
	t.Fatalf("enemy %s not in snapshot", id)
	return ai.Snapshot{}
}

// ---- lifecycle ----

func TestNewArena_StartsEnemiesInPatrol(t *testing.T) {
	a, rec := newTestArena(t, guardDef(), ai.Config{})
	s := enemySnap(t, a, "g1")
	assert.True(t, s.Started)
	assert.Equal(t, ai.StatePatrol, s.State)

	a.Step(step)
	changes := rec.find(hook.AIStateChanged)
	require.NotEmpty(t, changes)
	assert.Equal(t, "yard", changes[0].ArenaID)
	assert.Equal(t, "g1", changes[0].AgentID)
	assert.True(t, changes[0].Data.(ai.EventStateChanged).Initial)
}

func TestNewArena_RejectsInvalidDef(t *testing.T) {
	def := guardDef()
	def.Enemies = nil
	_, err := NewArena(def, ArenaOptions{})
	assert.Error(t, err)
}

// ---- detection and pursuit ----

func TestArena_DetectsChasesAndStrikes(t *testing.T) {
	a, rec := newTestArena(t, guardDef(), ai.Config{})
	p := player.New("p1", "Alice", 100)
	a.Join(p)

	a.Step(step)
	s := enemySnap(t, a, "g1")
	assert.True(t, s.Detected)
	assert.Equal(t, ai.StateChase, s.State)
	assert.Equal(t, "p1", s.TargetID)

	detected := rec.find(hook.AITargetDetected)
	require.Len(t, detected, 1)
	assert.Equal(t, "p1", detected[0].PlayerID)

	// 4 m/s closes the 3m gap to attack range, then the first strike lands
	// after its wind-up.
	for i := 0; i < 60 && p.Health.Current() == 100; i++ {
		a.Step(step)
	}
	assert.Equal(t, 90.0, p.Health.Current())
	assert.Equal(t, ai.StateAttack, enemySnap(t, a, "g1").State)

	strikes := rec.find(hook.AIStrike)
	require.NotEmpty(t, strikes)
	assert.True(t, strikes[0].Data.(ai.EventStrike).Delivered)

	health := rec.find(hook.PlayerHealth)
	require.NotEmpty(t, health)
	assert.Equal(t, "p1", health[0].PlayerID)
	assert.Equal(t, 90.0, health[0].Data.(map[string]float64)["health"])
}

func TestArena_WallBlocksSight(t *testing.T) {
	a, _ := newTestArena(t, guardDef(resource.WallDef{ID: "w", MinX: -2, MinZ: 2, MaxX: 2, MaxZ: 3}), ai.Config{})
	a.Join(player.New("p1", "Alice", 100))

	advance(a, 10)
	s := enemySnap(t, a, "g1")
	assert.False(t, s.Detected)
	assert.Equal(t, ai.StatePatrol, s.State)

	require.NoError(t, a.MovePlayer("p1", ai.Vec3{Z: 1.5}))
	a.Step(step)
	assert.True(t, enemySnap(t, a, "g1").Detected)
}

func TestArena_TargetsNearestPlayer(t *testing.T) {
	def := guardDef()
	def.Enemies[0].Yaw = 180 // look away so nobody is detected
	a, _ := newTestArena(t, def, ai.Config{})

	a.Join(player.New("far", "Far", 100))
	a.Join(player.New("near", "Near", 100))
	require.NoError(t, a.MovePlayer("near", ai.Vec3{X: 3}))

	a.Step(step)
	s := enemySnap(t, a, "g1")
	assert.False(t, s.Detected)
	assert.Equal(t, "near", s.TargetID)

	require.NoError(t, a.MovePlayer("far", ai.Vec3{X: -1}))
	a.Step(step)
	assert.Equal(t, "far", enemySnap(t, a, "g1").TargetID)
}

func TestArena_LeaveDuringChaseReturnsToPatrol(t *testing.T) {
	a, rec := newTestArena(t, guardDef(), ai.Config{})
	a.Join(player.New("p1", "Alice", 100))
	a.Step(step)
	require.Equal(t, ai.StateChase, enemySnap(t, a, "g1").State)

	require.NoError(t, a.Leave("p1"))
	a.Step(step)

	s := enemySnap(t, a, "g1")
	assert.Equal(t, ai.StatePatrol, s.State)
	assert.False(t, s.Detected)
	assert.Empty(t, s.TargetID)

	lost := rec.find(hook.AITargetLost)
	require.Len(t, lost, 1)
	assert.True(t, lost[0].Data.(ai.EventTargetLost).Forced)
	assert.NotEmpty(t, rec.find(hook.PlayerLeft))

	assert.ErrorIs(t, a.Leave("p1"), ErrPlayerNotFound)
}

func TestArena_KilledPlayerIsDropped(t *testing.T) {
	a, rec := newTestArena(t, guardDef(), ai.Config{Attack: ai.AttackConfig{Damage: 500}})
	p := player.New("p1", "Alice", 100)
	a.Join(p)

	for i := 0; i < 80 && p.Health.IsAlive(); i++ {
		a.Step(step)
	}
	require.False(t, p.Health.IsAlive())
	a.Step(step)

	s := enemySnap(t, a, "g1")
	assert.Equal(t, ai.StatePatrol, s.State)
	assert.Empty(t, s.TargetID)
	assert.Len(t, rec.find(hook.PlayerDied), 1)
	assert.ErrorIs(t, a.MovePlayer("p1", ai.Vec3{}), ErrPlayerDead)
}

func TestArena_JoinSameIDReplacesPlayer(t *testing.T) {
	a, _ := newTestArena(t, guardDef(), ai.Config{})
	old := player.New("p1", "Alice", 100)
	a.Join(old)
	cur := player.New("p1", "Alice", 100)
	a.Join(cur)

	assert.False(t, old.Valid())
	got, ok := a.Player("p1")
	require.True(t, ok)
	assert.Same(t, cur, got)
	assert.Equal(t, 1, a.PlayerCount())
	assert.Equal(t, ai.Vec3{Z: 5}, cur.Position())
}

// ---- admin operations ----

func TestArena_SetPerception(t *testing.T) {
	a, _ := newTestArena(t, guardDef(), ai.Config{})
	r, fov, bad := 20.0, 180.0, 400.0

	s, err := a.SetPerception("g1", &r, nil)
	require.NoError(t, err)
	assert.Equal(t, 20.0, s.DetectionRange)
	assert.Equal(t, 90.0, s.FieldOfView)

	s, err = a.SetPerception("g1", nil, &fov)
	require.NoError(t, err)
	assert.Equal(t, 180.0, s.FieldOfView)

	_, err = a.SetPerception("g1", nil, &bad)
	assert.ErrorIs(t, err, ErrInvalidPerception)
	_, err = a.SetPerception("nope", &r, nil)
	assert.ErrorIs(t, err, ErrEnemyNotFound)
}

func TestArena_ForceStateHonorsGuard(t *testing.T) {
	a, rec := newTestArena(t, guardDef(), ai.Config{})

	ok, err := a.ForceState("g1", ai.StatePatrol)
	require.NoError(t, err)
	assert.False(t, ok, "patrol does not re-enter itself")

	ok, err = a.ForceState("g1", ai.StateChase)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ai.StateChase, enemySnap(t, a, "g1").State)
	assert.Len(t, rec.find(hook.AIStateChanged), 2)

	_, err = a.ForceState("ghost", ai.StateChase)
	assert.ErrorIs(t, err, ErrEnemyNotFound)

	s, err := a.EnemySnapshot("g1")
	require.NoError(t, err)
	assert.Equal(t, ai.StateChase, s.State)
	_, err = a.EnemySnapshot("ghost")
	assert.ErrorIs(t, err, ErrEnemyNotFound)
}

func TestArena_SnapshotListsPlayersSorted(t *testing.T) {
	a, _ := newTestArena(t, guardDef(resource.WallDef{ID: "w", MinX: 5, MinZ: 5, MaxX: 6, MaxZ: 6}), ai.Config{})
	a.Join(player.New("b", "B", 100))
	a.Join(player.New("a", "A", 100))

	s := a.Snapshot()
	assert.Equal(t, "yard", s.ID)
	assert.Equal(t, 1, s.Walls)
	require.Len(t, s.Players, 2)
	assert.Equal(t, "a", s.Players[0].ID)
	assert.Equal(t, []string{"g1"}, a.EnemyIDs())
}

func TestArena_RunAndStop(t *testing.T) {
	hc := hook.NewHookCenter(nop())
	a, err := NewArena(guardDef(), ArenaOptions{Tick: 5 * time.Millisecond, Hooks: hc})
	require.NoError(t, err)

	a.Start()
	assert.Eventually(t, func() bool { return a.Snapshot().Steps >= 3 }, time.Second, 5*time.Millisecond)
	a.Stop()
	a.Stop()
	assert.True(t, a.Stopped())

	// Stop returned after the loop exited; no step may follow it.
	steps := a.Snapshot().Steps
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, steps, a.Snapshot().Steps)
}

func TestArena_LeaveIfCurrent(t *testing.T) {
	a, rec := newTestArena(t, guardDef(), ai.Config{})
	old := player.New("p1", "Alice", 100)
	a.Join(old)
	cur := player.New("p1", "Alice", 100)
	a.Join(cur)

	assert.False(t, a.LeaveIfCurrent(old))
	assert.Equal(t, 1, a.PlayerCount())

	assert.True(t, a.LeaveIfCurrent(cur))
	assert.Zero(t, a.PlayerCount())
	assert.False(t, cur.Valid())
	assert.Len(t, rec.find(hook.PlayerLeft), 1)
}
