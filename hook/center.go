// Package hook fans arena notifications out to in-process subscribers such as
// the event journal and the pub/sub relay.
package hook

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrInterrupt stops delivery to lower-priority handlers.
var ErrInterrupt = errors.New("hook interrupted")

// Event names. Patterns ending in ".*" match every event with that prefix.
const (
	AIStateChanged   = "ai.state_changed"
	AITargetDetected = "ai.target_detected"
	AITargetLost     = "ai.target_lost"
	AIStrike         = "ai.strike"
	AIConfigWarning  = "ai.config_warning"
	PlayerJoined     = "player.joined"
	PlayerLeft       = "player.left"
	PlayerHealth     = "player.health"
	PlayerDied       = "player.died"
	ArenaReloaded    = "arena.reloaded"

	AllAI     = "ai.*"
	AllPlayer = "player.*"
)

// Notification is the payload every handler receives.
type Notification struct {
	Event    string    `json:"event"`
	ArenaID  string    `json:"arena_id"`
	AgentID  string    `json:"agent_id,omitempty"`
	PlayerID string    `json:"player_id,omitempty"`
	Data     any       `json:"data,omitempty"`
	At       time.Time `json:"at"`
}

// HookFn handles one notification. Returning ErrInterrupt stops the chain.
type HookFn func(ctx context.Context, n *Notification) error

type hookEntry struct {
	priority int
	name     string
	fn       HookFn
	seq      int
}

// HookCenter keeps handlers per event pattern, ordered by priority (lower first).
type HookCenter struct {
	mu     sync.RWMutex
	hooks  map[string][]*hookEntry
	seq    int
	logger *zap.Logger
}

func NewHookCenter(logger *zap.Logger) *HookCenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HookCenter{hooks: make(map[string][]*hookEntry), logger: logger}
}

// Register adds fn under pattern. name identifies it for Unregister.
func (hc *HookCenter) Register(pattern string, priority int, name string, fn HookFn) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.seq++
	hc.hooks[pattern] = append(hc.hooks[pattern], &hookEntry{priority: priority, name: name, fn: fn, seq: hc.seq})
}

// Unregister removes every handler called name under pattern.
func (hc *HookCenter) Unregister(pattern, name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.hooks[pattern] = without(hc.hooks[pattern], name)
}

// UnregisterAll removes every handler called name.
func (hc *HookCenter) UnregisterAll(name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	for pattern, entries := range hc.hooks {
		hc.hooks[pattern] = without(entries, name)
	}
}

func without(entries []*hookEntry, name string) []*hookEntry {
	out := entries[:0]
	for _, e := range entries {
		if e.name != name {
			out = append(out, e)
		}
	}
	return out
}

// Trigger runs the handlers matching n.Event. A failing or panicking handler
// is logged and does not stop the others; only ErrInterrupt does.
func (hc *HookCenter) Trigger(ctx context.Context, n *Notification) error {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	for _, e := range hc.matching(n.Event) {
		err := hc.call(ctx, e, n)
		if errors.Is(err, ErrInterrupt) {
			return err
		}
		if err != nil {
			hc.logger.Warn("hook handler failed",
				zap.String("event", n.Event),
				zap.String("hook", e.name),
				zap.Error(err))
		}
	}
	return nil
}

func (hc *HookCenter) matching(event string) []*hookEntry {
	hc.mu.RLock()
	var entries []*hookEntry
	for pattern, list := range hc.hooks {
		if match(pattern, event) {
			entries = append(entries, list...)
		}
	}
	hc.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		return entries[i].seq < entries[j].seq
	})
	return entries
}

func (hc *HookCenter) call(ctx context.Context, e *hookEntry, n *Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook %s panicked: %v", e.name, r)
		}
	}()
	return e.fn(ctx, n)
}

func match(pattern, event string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(event, prefix)
	}
	return pattern == event
}
