package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/nightwatch-game/server/config"
	"github.com/nightwatch-game/server/game/player"
	"github.com/nightwatch-game/server/game/world"
	mw "github.com/nightwatch-game/server/middleware"
	"github.com/nightwatch-game/server/relay"
	"go.uber.org/zap"
)

// Handler is the Gin handler for GET /ws. It expects mw.Auth to have run.
type Handler struct {
	game     config.GameConfig
	sm       *player.SessionManager
	wm       *world.Manager
	relay    *relay.Relay
	router   *Router
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket Handler.
// sec.AllowedOrigins controls which WebSocket origins are accepted.
// An empty slice permits all origins (development only).
func NewHandler(
	sec config.SecurityConfig,
	game config.GameConfig,
	sm *player.SessionManager,
	wm *world.Manager,
	rl *relay.Relay,
	router *Router,
	logger *zap.Logger,
) *Handler {
	h := &Handler{
		game:   game,
		sm:     sm,
		wm:     wm,
		relay:  rl,
		router: router,
		logger: logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     OriginChecker(sec.AllowedOrigins),
	}
	return h
}

// OriginChecker accepts any origin when allowed is empty.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		for _, o := range allowed {
			if o == origin {
				return true
			}
		}
		return false
	}
}

type welcome struct {
	PlayerID string         `json:"player_id"`
	ArenaID  string         `json:"arena_id"`
	Arena    world.Snapshot `json:"arena"`
}

// ServeWS handles GET /ws?token=<jwt>[&arena=<id>].
func (h *Handler) ServeWS(c *gin.Context) {
	claims := mw.GetClaims(c)
	if claims == nil || claims.Role != mw.RolePlayer {
		c.JSON(http.StatusForbidden, gin.H{"error": "player token required"})
		return
	}
	a, err := h.wm.Get(claims.ArenaOr(c.Query("arena"), h.game.DefaultArena))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "arena not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", zap.Error(err))
		return
	}

	name := claims.Name
	if name == "" {
		name = claims.Subject
	}
	p := player.New(claims.Subject, name, h.game.PlayerMaxHealth)
	sess := player.NewSession(p, a.ID, conn, h.logger.With(zap.String("conn_trace_id", mw.GetTraceID(c))))

	events, unsub, err := h.relay.Subscribe(context.Background(), a.ID)
	if err != nil {
		h.logger.Error("ws event subscribe failed", zap.String("arena_id", a.ID), zap.Error(err))
		sess.Close()
		return
	}
	defer unsub()
	go func() {
		for env := range events {
			forward(sess, env)
		}
	}()

	h.sm.Register(sess)
	a.Join(p)
	sess.SendJSON("welcome", welcome{PlayerID: p.ID(), ArenaID: a.ID, Arena: a.Snapshot()})

	h.readPump(sess)
}

// readPump reads messages from the WebSocket connection and dispatches them.
func (h *Handler) readPump(s *player.Session) {
	defer h.handleDisconnect(s)

	s.SetReadDeadline()
	s.Conn.SetPongHandler(func(string) error {
		s.SetReadDeadline()
		return nil
	})

	for {
		_, raw, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws unexpected close", zap.String("player_id", s.PlayerID), zap.Error(err))
			}
			return
		}
		s.SetReadDeadline()
		h.router.Dispatch(s, raw)
	}
}

// handleDisconnect removes the player from its arena unless a newer
// connection for the same player has already taken over.
func (h *Handler) handleDisconnect(s *player.Session) {
	s.Close()
	h.sm.Unregister(s)
	if a, err := h.wm.Get(s.ArenaID); err == nil {
		a.LeaveIfCurrent(s.Player)
	}
	h.logger.Info("player disconnected", zap.String("player_id", s.PlayerID), zap.String("arena_id", s.ArenaID))
}
