package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nightwatch-game/server/config"
	"github.com/nightwatch-game/server/game/world"
	mw "github.com/nightwatch-game/server/middleware"
	"github.com/nightwatch-game/server/relay"
	"go.uber.org/zap"
)

const keepaliveInterval = 30 * time.Second

// Handler streams arena events to spectators and players alike.
type Handler struct {
	relay  *relay.Relay
	wm     *world.Manager
	game   config.GameConfig
	logger *zap.Logger
}

func NewHandler(rl *relay.Relay, wm *world.Manager, game config.GameConfig, logger *zap.Logger) *Handler {
	return &Handler{relay: rl, wm: wm, game: game, logger: logger}
}

// ServeSSE handles GET /sse?token=<jwt>[&arena=<id>]. It expects mw.Auth to
// have run. Each notification is sent with its name as the SSE event type.
func (h *Handler) ServeSSE(c *gin.Context) {
	claims := mw.GetClaims(c)
	a, err := h.wm.Get(claims.ArenaOr(c.Query("arena"), h.game.DefaultArena))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "arena not found"})
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	events, unsub, err := h.relay.Subscribe(ctx, a.ID)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.String("arena_id", a.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "subscribe failed"})
		return
	}
	defer unsub()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	h.write(c, "connected", a.Snapshot())

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case env, ok := <-events:
			if !ok {
				return
			}
			h.write(c, env.Event, env)

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) write(c *gin.Context, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Warn("sse encode failed", zap.String("event", event), zap.Error(err))
		return
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
	c.Writer.Flush()
}
