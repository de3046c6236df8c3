package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/nightwatch-game/server/game/ai"
	"github.com/nightwatch-game/server/game/player"
	"github.com/nightwatch-game/server/game/world"
	"github.com/nightwatch-game/server/hook"
	"github.com/nightwatch-game/server/relay"
)

var (
	errInternal    = errors.New("internal error")
	errBadPosition = errors.New("position must be finite")
)

type movePayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type pingPayload struct {
	TS int64 `json:"ts"`
}

// RegisterHandlers wires the messages a connected player may send.
func RegisterHandlers(r *Router, wm *world.Manager) {
	r.On("move", func(_ context.Context, s *player.Session, raw json.RawMessage) error {
		var m movePayload
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("move: %w", err)
		}
		for _, v := range []float64{m.X, m.Y, m.Z} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errBadPosition
			}
		}
		a, err := wm.Get(s.ArenaID)
		if err != nil {
			return err
		}
		return a.MovePlayer(s.PlayerID, ai.Vec3{X: m.X, Y: m.Y, Z: m.Z})
	})

	r.On("ping", func(_ context.Context, s *player.Session, raw json.RawMessage) error {
		var p pingPayload
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &p)
		}
		s.SendPong(p.TS)
		return nil
	})

	r.On("snapshot", func(_ context.Context, s *player.Session, _ json.RawMessage) error {
		a, err := wm.Get(s.ArenaID)
		if err != nil {
			return err
		}
		s.SendJSON("snapshot", a.Snapshot())
		return nil
	})
}

// forward pushes the arena events a player cares about: every AI event, its
// own health changes and arena reloads.
func forward(s *player.Session, env relay.Envelope) {
	switch {
	case strings.HasPrefix(env.Event, "ai."):
		s.SendJSON("ai_event", env)
	case env.Event == hook.PlayerHealth || env.Event == hook.PlayerDied:
		if env.PlayerID == s.PlayerID {
			s.SendJSON("health", env)
		}
	case env.Event == hook.ArenaReloaded:
		s.SendJSON("arena_reloaded", env)
	}
}
