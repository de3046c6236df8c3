// Package relay fans arena notifications out to the shared cache: every event
// is published on the arena's channel and appended to a short recent list,
// and arena snapshots are stored on a fixed interval for readers that should
// not touch the live simulation.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nightwatch-game/server/cache"
	"github.com/nightwatch-game/server/game/world"
	"github.com/nightwatch-game/server/hook"
	"github.com/nightwatch-game/server/scheduler"
	"go.uber.org/zap"
)

const (
	// SnapshotTask is the scheduler ticker that refreshes cached snapshots.
	SnapshotTask = "snapshot_publish"

	defaultRecent      = 200
	defaultSnapshotTTL = 10 * time.Second
	opTimeout          = 2 * time.Second
)

func EventsChannel(arenaID string) string { return "arena:" + arenaID + ":events" }
func SnapshotKey(arenaID string) string   { return "arena:" + arenaID + ":snapshot" }
func RecentKey(arenaID string) string     { return "arena:" + arenaID + ":recent" }
func StatesKey(arenaID string) string     { return "arena:" + arenaID + ":states" }

// Envelope is the wire form of a notification.
type Envelope struct {
	Event    string          `json:"event"`
	ArenaID  string          `json:"arena_id"`
	AgentID  string          `json:"agent_id,omitempty"`
	PlayerID string          `json:"player_id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	At       time.Time       `json:"at"`
}

// Encode builds the envelope for n.
func Encode(n *hook.Notification) (Envelope, error) {
	env := Envelope{
		Event:    n.Event,
		ArenaID:  n.ArenaID,
		AgentID:  n.AgentID,
		PlayerID: n.PlayerID,
		At:       n.At,
	}
	if n.Data != nil {
		raw, err := json.Marshal(n.Data)
		if err != nil {
			return env, fmt.Errorf("relay: encode %s: %w", n.Event, err)
		}
		env.Data = raw
	}
	return env, nil
}

type Options struct {
	// Recent bounds the per-arena list of recent events.
	Recent      int
	SnapshotTTL time.Duration
	Logger      *zap.Logger
}

type Relay struct {
	cache  cache.Cache
	ps     cache.PubSub
	recent int
	ttl    time.Duration
	logger *zap.Logger
}

func New(c cache.Cache, ps cache.PubSub, opts Options) *Relay {
	if opts.Recent <= 0 {
		opts.Recent = defaultRecent
	}
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = defaultSnapshotTTL
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Relay{cache: c, ps: ps, recent: opts.Recent, ttl: opts.SnapshotTTL, logger: opts.Logger}
}

// Register forwards AI, player and arena notifications. It runs after the
// journal so a slow cache never delays persistence.
func (r *Relay) Register(hc *hook.HookCenter) {
	fn := func(ctx context.Context, n *hook.Notification) error { return r.Publish(ctx, n) }
	hc.Register(hook.AllAI, 200, "relay", fn)
	hc.Register(hook.AllPlayer, 200, "relay", fn)
	hc.Register(hook.ArenaReloaded, 200, "relay", fn)
}

// Publish sends n to the arena channel and prepends it to the recent list.
func (r *Relay) Publish(ctx context.Context, n *hook.Notification) error {
	env, err := Encode(n)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("relay: marshal envelope: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	msg := string(payload)
	if err := r.ps.Publish(ctx, EventsChannel(n.ArenaID), msg); err != nil {
		return fmt.Errorf("relay: publish: %w", err)
	}
	key := RecentKey(n.ArenaID)
	if err := r.cache.LPush(ctx, key, msg); err != nil {
		return fmt.Errorf("relay: push recent: %w", err)
	}
	return r.cache.LTrim(ctx, key, 0, int64(r.recent-1))
}

// Recent returns up to limit events, newest first.
func (r *Relay) Recent(ctx context.Context, arenaID string, limit int) ([]Envelope, error) {
	if limit <= 0 || limit > r.recent {
		limit = r.recent
	}
	raw, err := r.cache.LRange(ctx, RecentKey(arenaID), 0, int64(limit-1))
	if err != nil {
		return nil, err
	}
	out := make([]Envelope, 0, len(raw))
	for _, s := range raw {
		var env Envelope
		if err := json.Unmarshal([]byte(s), &env); err != nil {
			r.logger.Warn("relay: skipping malformed recent event", zap.String("arena_id", arenaID), zap.Error(err))
			continue
		}
		out = append(out, env)
	}
	return out, nil
}

// Subscribe streams decoded envelopes for one arena until ctx is done or
// cancel is called. The returned channel is closed afterwards.
func (r *Relay) Subscribe(ctx context.Context, arenaID string) (<-chan Envelope, func(), error) {
	msgs, stop, err := r.ps.Subscribe(ctx, EventsChannel(arenaID))
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Envelope, 64)
	go func() {
		defer close(out)
		defer func() {
			stop()
			for range msgs {
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					r.logger.Warn("relay: dropping malformed event", zap.String("arena_id", arenaID), zap.Error(err))
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, cancel, nil
}

// ---- snapshots ----

// StoreSnapshots writes every arena's snapshot and enemy state table.
func (r *Relay) StoreSnapshots(ctx context.Context, m *world.Manager) {
	for _, a := range m.List() {
		if err := r.storeSnapshot(ctx, a.Snapshot()); err != nil {
			r.logger.Warn("relay: snapshot store failed", zap.String("arena_id", a.ID), zap.Error(err))
		}
	}
}

func (r *Relay) storeSnapshot(ctx context.Context, s world.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := r.cache.Set(ctx, SnapshotKey(s.ID), string(payload), r.ttl); err != nil {
		return err
	}
	if len(s.Enemies) == 0 {
		return nil
	}
	states := make(map[string]string, len(s.Enemies))
	for _, e := range s.Enemies {
		states[e.ID] = e.State.String()
	}
	if err := r.cache.HSet(ctx, StatesKey(s.ID), states); err != nil {
		return err
	}
	return r.cache.Expire(ctx, StatesKey(s.ID), r.ttl)
}

// Snapshot returns the cached snapshot JSON, or cache.ErrNotFound once it
// has expired.
func (r *Relay) Snapshot(ctx context.Context, arenaID string) (json.RawMessage, error) {
	s, err := r.cache.Get(ctx, SnapshotKey(arenaID))
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, cache.ErrNotFound
		}
		return nil, err
	}
	return json.RawMessage(s), nil
}

// States returns enemy ID to state name from the last stored snapshot.
func (r *Relay) States(ctx context.Context, arenaID string) (map[string]string, error) {
	return r.cache.HGetAll(ctx, StatesKey(arenaID))
}

// Schedule refreshes snapshots every interval.
func (r *Relay) Schedule(s *scheduler.Scheduler, m *world.Manager, interval time.Duration) {
	s.AddTicker(SnapshotTask, interval, func(ctx context.Context) {
		r.StoreSnapshots(ctx, m)
	})
}
