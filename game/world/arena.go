package world

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/nightwatch-game/server/game/ai"
	"github.com/nightwatch-game/server/game/physics"
	"github.com/nightwatch-game/server/game/player"
	"github.com/nightwatch-game/server/hook"
	"github.com/nightwatch-game/server/resource"
	"go.uber.org/zap"
)

var (
	ErrArenaNotFound     = errors.New("world: arena not found")
	ErrEnemyNotFound     = errors.New("world: enemy not found")
	ErrPlayerNotFound    = errors.New("world: player not in arena")
	ErrPlayerDead        = errors.New("world: player is dead")
	ErrInvalidPerception = errors.New("world: detection range must be > 0 and field of view in (0, 360]")
)

const defaultTick = 50 * time.Millisecond

// ArenaOptions are shared by every arena a Manager creates.
type ArenaOptions struct {
	// AI is the server-wide tuning; per-enemy overrides from the arena file
	// are applied on top.
	AI           ai.Config
	Tick         time.Duration
	PlayerRadius float64
	Hooks        *hook.HookCenter
	Logger       *zap.Logger
}

func (o ArenaOptions) withDefaults() ArenaOptions {
	if o.Tick <= 0 {
		o.Tick = defaultTick
	}
	if o.PlayerRadius <= 0 {
		o.PlayerRadius = 0.5
	}
	if o.Hooks == nil {
		o.Hooks = hook.NewHookCenter(o.Logger)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Enemy pairs an agent with the body it drives.
type Enemy struct {
	ID   string
	AI   *ai.EnemyAI
	Body *Body
}

// Arena is one simulated space: static walls, enemies and the players they hunt.
// All simulation state is guarded by mu; notifications produced while it is
// held are queued and handed to the hook center after it is released.
type Arena struct {
	ID   string
	Name string

	mu      sync.Mutex
	spawn   ai.Vec3
	physics *physics.World
	enemies []*Enemy
	byID    map[string]*Enemy
	players map[string]*player.Player
	steps   uint64

	outMu   sync.Mutex
	outbox  []*hook.Notification
	flushMu sync.Mutex

	opts    ArenaOptions
	stopCh  chan struct{}
	running sync.WaitGroup
	logger  *zap.Logger
}

// NewArena builds the arena described by def and starts every enemy in Patrol.
func NewArena(def *resource.ArenaDef, opts ArenaOptions) (*Arena, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	a := &Arena{
		ID:      def.ID,
		Name:    def.Name,
		spawn:   def.Spawn,
		physics: physics.NewWorld(),
		byID:    make(map[string]*Enemy, len(def.Enemies)),
		players: make(map[string]*player.Player),
		opts:    opts,
		stopCh:  make(chan struct{}),
		logger:  opts.Logger.With(zap.String("arena_id", def.ID)),
	}
	for _, w := range def.Walls {
		if err := a.physics.AddWall(physics.Wall{ID: w.ID, MinX: w.MinX, MinZ: w.MinZ, MaxX: w.MaxX, MaxZ: w.MaxZ}); err != nil {
			return nil, err
		}
	}
	for _, ed := range def.Enemies {
		body := NewBody(ed.Position, ed.Yaw)
		agent, err := ai.New(ai.Options{
			ID:        ed.ID,
			Transform: body,
			Navigator: body,
			Occluder:  a.physics,
			Waypoints: ed.Waypoints,
			Config:    opts.AI,
			Override:  ed.AI,
			Logger:    a.logger,
			Sink:      a.aiSink(),
		})
		if err != nil {
			return nil, err
		}
		e := &Enemy{ID: ed.ID, AI: agent, Body: body}
		a.enemies = append(a.enemies, e)
		a.byID[e.ID] = e
	}
	for _, e := range a.enemies {
		e.AI.Start()
	}
	return a, nil
}

// Start runs the tick loop in its own goroutine; Stop waits for it.
func (a *Arena) Start() {
	a.running.Add(1)
	go func() {
		defer a.running.Done()
		a.Run()
	}()
}

// Run steps the arena at its tick rate until Stop.
func (a *Arena) Run() {
	ticker := time.NewTicker(a.opts.Tick)
	defer ticker.Stop()
	a.logger.Info("arena running", zap.Int("enemies", len(a.enemies)), zap.Duration("tick", a.opts.Tick))
	for {
		select {
		case <-ticker.C:
			a.safeStep(a.opts.Tick)
		case <-a.stopCh:
			return
		}
	}
}

func (a *Arena) safeStep(dt time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("arena step panicked", zap.Any("recover", r), zap.Stack("stack"))
		}
	}()
	a.Step(dt)
}

// Stop ends the tick loop and returns once a Step in progress has finished.
// It must not be called from inside a Step.
func (a *Arena) Stop() {
	select {
	case <-a.stopCh:
	default:
		close(a.stopCh)
	}
	a.running.Wait()
}

func (a *Arena) Stopped() bool {
	select {
	case <-a.stopCh:
		return true
	default:
		return false
	}
}

// Step advances the simulation by dt: every enemy picks its target, thinks,
// then moves.
func (a *Arena) Step(dt time.Duration) {
	defer a.flush()
	a.mu.Lock()
	defer a.mu.Unlock()

	a.steps++
	for _, e := range a.enemies {
		a.retarget(e)
		e.AI.Tick(dt)
		e.Body.Advance(dt)
	}
}

// retarget keeps a detected, valid target locked; otherwise the enemy watches
// the nearest living player. A target that died or left while being chased is
// given up explicitly.
func (a *Arena) retarget(e *Enemy) {
	cur := e.AI.Target()
	if cur != nil && !cur.Valid() {
		if kind, _ := e.AI.CurrentKind(); e.AI.Detected() || kind != ai.StatePatrol {
			e.AI.HandlePlayerLost()
		}
	} else if cur != nil && e.AI.Detected() {
		return
	}

	next := a.nearestPlayer(e.Body.Position())
	if next == nil {
		if cur != nil {
			e.AI.SetTarget(nil)
		}
		return
	}
	if cur == nil || cur.ID() != next.ID() {
		e.AI.SetTarget(next)
	}
}

// nearestPlayer breaks distance ties by player ID.
func (a *Arena) nearestPlayer(from ai.Vec3) *player.Player {
	var best *player.Player
	bestDist := 0.0
	for id, p := range a.players {
		if !p.Valid() {
			continue
		}
		d := ai.Distance(from, p.Position())
		if best == nil || d < bestDist || (d == bestDist && id < best.ID()) {
			best, bestDist = p, d
		}
	}
	return best
}

// ---- players ----

// Join places p at the arena spawn point. A player already present under
// the same ID is replaced and invalidated.
func (a *Arena) Join(p *player.Player) {
	defer a.flush()
	a.mu.Lock()
	defer a.mu.Unlock()
	p.SetPosition(a.spawn)
	a.adoptLocked(p)
}

func (a *Arena) adoptLocked(p *player.Player) {
	id := p.ID()
	if old, ok := a.players[id]; ok && old != p {
		a.detachLocked(old)
		old.Remove()
	}
	a.players[id] = p
	a.physics.SetBody(id, p.Position(), a.opts.PlayerRadius)
	p.Health.OnChanged(func(cur, max float64) {
		a.notify(hook.PlayerHealth, "", id, map[string]float64{"health": cur, "max_health": max})
	})
	p.Health.OnDied(func() {
		a.notify(hook.PlayerDied, "", id, nil)
	})
	a.notify(hook.PlayerJoined, "", id, p.Snapshot())
	a.logger.Info("player joined", zap.String("player_id", id))
}

func (a *Arena) detachLocked(p *player.Player) {
	delete(a.players, p.ID())
	a.physics.RemoveBody(p.ID())
	p.Health.OnChanged(nil)
	p.Health.OnDied(nil)
}

// Leave removes the player; enemies holding it see an invalid target next step.
func (a *Arena) Leave(playerID string) error {
	defer a.flush()
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	a.leaveLocked(p)
	return nil
}

// LeaveIfCurrent removes p unless another player has since taken its ID.
func (a *Arena) LeaveIfCurrent(p *player.Player) bool {
	defer a.flush()
	a.mu.Lock()
	defer a.mu.Unlock()
	if cur, ok := a.players[p.ID()]; !ok || cur != p {
		return false
	}
	a.leaveLocked(p)
	return true
}

func (a *Arena) leaveLocked(p *player.Player) {
	a.detachLocked(p)
	p.Remove()
	a.notify(hook.PlayerLeft, "", p.ID(), nil)
	a.logger.Info("player left", zap.String("player_id", p.ID()))
}

// detachPlayers hands every player over to another arena without invalidating them.
func (a *Arena) detachPlayers() []*player.Player {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*player.Player, 0, len(a.players))
	for _, p := range a.players {
		out = append(out, p)
	}
	for _, p := range out {
		a.detachLocked(p)
	}
	return out
}

// adopt takes over a player from a replaced arena, keeping its position.
func (a *Arena) adopt(p *player.Player) {
	defer a.flush()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.adoptLocked(p)
}

func (a *Arena) MovePlayer(playerID string, pos ai.Vec3) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	if !p.Health.IsAlive() {
		return ErrPlayerDead
	}
	p.SetPosition(pos)
	a.physics.SetBody(playerID, pos, a.opts.PlayerRadius)
	return nil
}

func (a *Arena) Player(playerID string) (*player.Player, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.players[playerID]
	return p, ok
}

func (a *Arena) PlayerCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.players)
}

// ---- enemies ----

// SetPerception retunes one enemy at runtime. Nil leaves a value unchanged.
func (a *Arena) SetPerception(enemyID string, detectionRange, fieldOfView *float64) (ai.Snapshot, error) {
	if detectionRange != nil && *detectionRange <= 0 {
		return ai.Snapshot{}, ErrInvalidPerception
	}
	if fieldOfView != nil && (*fieldOfView <= 0 || *fieldOfView > 360) {
		return ai.Snapshot{}, ErrInvalidPerception
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.byID[enemyID]
	if !ok {
		return ai.Snapshot{}, ErrEnemyNotFound
	}
	if detectionRange != nil {
		e.AI.SetDetectionRange(*detectionRange)
	}
	if fieldOfView != nil {
		e.AI.SetFieldOfView(*fieldOfView)
	}
	a.logger.Info("perception retuned",
		zap.String("enemy_id", enemyID),
		zap.Float64("detection_range", e.AI.DetectionRange()),
		zap.Float64("field_of_view", e.AI.FieldOfView()))
	return e.AI.Snapshot(), nil
}

// ForceState asks an enemy to switch state, honoring its transition guard.
func (a *Arena) ForceState(enemyID string, kind ai.StateKind) (bool, error) {
	defer a.flush()
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.byID[enemyID]
	if !ok {
		return false, ErrEnemyNotFound
	}
	return e.AI.RequestTransition(kind), nil
}

// EnemySnapshot reports one enemy's current state.
func (a *Arena) EnemySnapshot(enemyID string) (ai.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.byID[enemyID]
	if !ok {
		return ai.Snapshot{}, ErrEnemyNotFound
	}
	return e.AI.Snapshot(), nil
}

func (a *Arena) EnemyIDs() []string {
	ids := make([]string, len(a.enemies))
	for i, e := range a.enemies {
		ids[i] = e.ID
	}
	return ids
}

// ---- snapshots ----

type Snapshot struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Steps   uint64            `json:"steps"`
	Walls   int               `json:"walls"`
	Enemies []ai.Snapshot     `json:"enemies"`
	Players []player.Snapshot `json:"players"`
	At      time.Time         `json:"at"`
}

func (a *Arena) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Snapshot{
		ID:      a.ID,
		Name:    a.Name,
		Steps:   a.steps,
		Walls:   a.physics.WallCount(),
		Enemies: make([]ai.Snapshot, len(a.enemies)),
		Players: make([]player.Snapshot, 0, len(a.players)),
		At:      time.Now(),
	}
	for i, e := range a.enemies {
		s.Enemies[i] = e.AI.Snapshot()
	}
	for _, p := range a.players {
		s.Players = append(s.Players, p.Snapshot())
	}
	sort.Slice(s.Players, func(i, j int) bool { return s.Players[i].ID < s.Players[j].ID })
	return s
}

// ---- notifications ----

func (a *Arena) aiSink() ai.Sink {
	return func(ev ai.Event) {
		var agentID, playerID string
		switch e := ev.(type) {
		case ai.EventStateChanged:
			agentID = e.AgentID
		case ai.EventTargetDetected:
			agentID, playerID = e.AgentID, e.TargetID
		case ai.EventTargetLost:
			agentID, playerID = e.AgentID, e.TargetID
		case ai.EventStrike:
			agentID, playerID = e.AgentID, e.TargetID
		case ai.EventConfigWarning:
			agentID = e.AgentID
		}
		a.notify("ai."+ev.EventType(), agentID, playerID, ev)
	}
}

func (a *Arena) notify(event, agentID, playerID string, data any) {
	a.outMu.Lock()
	a.outbox = append(a.outbox, &hook.Notification{
		Event:    event,
		ArenaID:  a.ID,
		AgentID:  agentID,
		PlayerID: playerID,
		Data:     data,
		At:       time.Now(),
	})
	a.outMu.Unlock()
}

// flush delivers queued notifications in order. It must not run under mu.
func (a *Arena) flush() {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	a.outMu.Lock()
	pending := a.outbox
	a.outbox = nil
	a.outMu.Unlock()

	for _, n := range pending {
		_ = a.opts.Hooks.Trigger(context.Background(), n)
	}
}
