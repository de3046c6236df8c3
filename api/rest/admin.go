package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nightwatch-game/server/cache"
	"github.com/nightwatch-game/server/config"
	"github.com/nightwatch-game/server/game/ai"
	"github.com/nightwatch-game/server/game/player"
	"github.com/nightwatch-game/server/game/world"
	mw "github.com/nightwatch-game/server/middleware"
	"github.com/nightwatch-game/server/scheduler"
	"go.uber.org/zap"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by the mw.AdminKey middleware.
type AdminHandler struct {
	sm     *player.SessionManager
	wm     *world.Manager
	sched  *scheduler.Scheduler
	cache  cache.Cache
	sec    config.SecurityConfig
	logger *zap.Logger
}

func NewAdminHandler(
	sm *player.SessionManager,
	wm *world.Manager,
	sched *scheduler.Scheduler,
	c cache.Cache,
	sec config.SecurityConfig,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{sm: sm, wm: wm, sched: sched, cache: c, sec: sec, logger: logger}
}

type arenaMetrics struct {
	ID      string `json:"id"`
	Steps   uint64 `json:"steps"`
	Players int    `json:"players"`
	Enemies int    `json:"enemies"`
}

// Metrics returns server health metrics.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	arenas := make([]arenaMetrics, 0, h.wm.Count())
	for _, a := range h.wm.List() {
		s := a.Snapshot()
		arenas = append(arenas, arenaMetrics{ID: s.ID, Steps: s.Steps, Players: len(s.Players), Enemies: len(s.Enemies)})
	}
	c.JSON(http.StatusOK, gin.H{
		"online_players":  h.sm.Count(),
		"active_arenas":   len(arenas),
		"arenas":          arenas,
		"scheduler_tasks": h.sched.ListTickers(),
	})
}

type playerInfo struct {
	PlayerID string  `json:"player_id"`
	Name     string  `json:"name"`
	ArenaID  string  `json:"arena_id"`
	Position ai.Vec3 `json:"position"`
	Health   float64 `json:"health"`
	Alive    bool    `json:"alive"`
}

// ListPlayers returns a snapshot of all connected players.
// GET /api/admin/players
func (h *AdminHandler) ListPlayers(c *gin.Context) {
	sessions := h.sm.All()
	result := make([]playerInfo, 0, len(sessions))
	for _, s := range sessions {
		snap := s.Player.Snapshot()
		result = append(result, playerInfo{
			PlayerID: s.PlayerID,
			Name:     snap.Name,
			ArenaID:  s.ArenaID,
			Position: snap.Position,
			Health:   snap.Health,
			Alive:    snap.Alive,
		})
	}
	c.JSON(http.StatusOK, gin.H{"players": result, "count": len(result)})
}

// KickPlayer forcibly disconnects a player.
// POST /api/admin/kick/:id
func (h *AdminHandler) KickPlayer(c *gin.Context) {
	id := c.Param("id")
	s := h.sm.Get(id)
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "player not online"})
		return
	}
	s.Close()
	h.logger.Info("admin kicked player", zap.String("player_id", id))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type perceptionRequest struct {
	DetectionRange *float64 `json:"detection_range"`
	FieldOfView    *float64 `json:"field_of_view"`
}

// SetPerception retunes one enemy's detection range and field of view.
// PUT /api/admin/arenas/:id/enemies/:eid/perception
func (h *AdminHandler) SetPerception(c *gin.Context) {
	var req perceptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.DetectionRange == nil && req.FieldOfView == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "detection_range or field_of_view required"})
		return
	}
	a, err := h.wm.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "arena not found"})
		return
	}
	snap, err := a.SetPerception(c.Param("eid"), req.DetectionRange, req.FieldOfView)
	switch {
	case errors.Is(err, world.ErrEnemyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "enemy not found"})
	case errors.Is(err, world.ErrInvalidPerception):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		c.JSON(http.StatusOK, snap)
	}
}

type stateRequest struct {
	State string `json:"state" binding:"required"`
}

// ForceState asks an enemy to switch behavior state. The enemy's own
// transition guard still applies; "changed" reports whether it moved.
// POST /api/admin/arenas/:id/enemies/:eid/state
func (h *AdminHandler) ForceState(c *gin.Context) {
	var req stateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind, err := ai.ParseStateKind(req.State)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a, err := h.wm.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "arena not found"})
		return
	}
	eid := c.Param("eid")
	changed, err := a.ForceState(eid, kind)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "enemy not found"})
		return
	}
	snap, _ := a.EnemySnapshot(eid)
	h.logger.Info("admin forced enemy state",
		zap.String("arena_id", a.ID),
		zap.String("enemy_id", eid),
		zap.Stringer("state", kind),
		zap.Bool("changed", changed))
	c.JSON(http.StatusOK, gin.H{"changed": changed, "enemy": snap})
}

type tokenRequest struct {
	Subject string `json:"subject"`
	Role    string `json:"role" binding:"required"`
	Arena   string `json:"arena"`
	Name    string `json:"name" binding:"max=32"`
	TTL     string `json:"ttl"`
}

// IssueToken mints a player or spectator token.
// POST /api/admin/tokens
func (h *AdminHandler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role := mw.Role(req.Role)
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be player or spectator"})
		return
	}
	if req.Arena != "" {
		if _, err := h.wm.Get(req.Arena); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "arena not found"})
			return
		}
	}
	ttl := h.sec.JWTTTLH
	if req.TTL != "" {
		d, err := time.ParseDuration(req.TTL)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ttl"})
			return
		}
		ttl = d
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}

	token, claims, err := mw.GenerateToken(req.Subject, role, req.Arena, req.Name, h.sec.JWTSecret, ttl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}
	h.logger.Info("admin issued token",
		zap.String("subject", claims.Subject),
		zap.String("role", string(role)),
		zap.String("arena_id", req.Arena))
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"token_id":   claims.ID,
		"subject":    claims.Subject,
		"role":       role,
		"expires_at": claims.ExpiresAt.Time,
	})
}

type revokeRequest struct {
	Token string `json:"token" binding:"required"`
}

// RevokeToken blocks a token for the rest of its lifetime.
// POST /api/admin/tokens/revoke
func (h *AdminHandler) RevokeToken(c *gin.Context) {
	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, err := mw.ParseToken(req.Token, h.sec.JWTSecret)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token"})
		return
	}
	if err := mw.Revoke(c.Request.Context(), h.cache, claims); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache error"})
		return
	}
	// A connected player holding the token is dropped too.
	if s := h.sm.Get(claims.Subject); s != nil && claims.Role == mw.RolePlayer {
		s.Close()
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "token_id": claims.ID})
}

// ListSchedulerTasks returns names of all registered ticker tasks.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.ListTickers()})
}
