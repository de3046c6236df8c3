package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nightwatch-game/server/cache"
	"github.com/nightwatch-game/server/game/world"
	"github.com/nightwatch-game/server/journal"
	"github.com/nightwatch-game/server/relay"
	"go.uber.org/zap"
)

// ArenaHandler serves read-only arena views.
type ArenaHandler struct {
	wm      *world.Manager
	relay   *relay.Relay
	journal *journal.Service
	logger  *zap.Logger
}

func NewArenaHandler(wm *world.Manager, rl *relay.Relay, j *journal.Service, logger *zap.Logger) *ArenaHandler {
	return &ArenaHandler{wm: wm, relay: rl, journal: j, logger: logger}
}

type arenaSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enemies int    `json:"enemies"`
	Players int    `json:"players"`
}

// List handles GET /api/arenas.
func (h *ArenaHandler) List(c *gin.Context) {
	arenas := h.wm.List()
	out := make([]arenaSummary, 0, len(arenas))
	for _, a := range arenas {
		out = append(out, arenaSummary{
			ID:      a.ID,
			Name:    a.Name,
			Enemies: len(a.EnemyIDs()),
			Players: a.PlayerCount(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"arenas": out, "count": len(out)})
}

// Get handles GET /api/arenas/:id with a live snapshot.
func (h *ArenaHandler) Get(c *gin.Context) {
	a, ok := h.arena(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, a.Snapshot())
}

// Cached handles GET /api/arenas/:id/cached: the last snapshot written by
// the snapshot task, without touching the simulation.
func (h *ArenaHandler) Cached(c *gin.Context) {
	raw, err := h.relay.Snapshot(c.Request.Context(), c.Param("id"))
	if errors.Is(err, cache.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cached snapshot"})
		return
	}
	if err != nil {
		h.logger.Error("cached snapshot read failed", zap.String("arena_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache error"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// States handles GET /api/arenas/:id/states: enemy ID to state name as of
// the last cached snapshot.
func (h *ArenaHandler) States(c *gin.Context) {
	if _, ok := h.arena(c); !ok {
		return
	}
	states, err := h.relay.States(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("cached states read failed", zap.String("arena_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"states": states, "count": len(states)})
}

// Events handles GET /api/arenas/:id/events?limit=N from the journal.
func (h *ArenaHandler) Events(c *gin.Context) {
	if _, ok := h.arena(c); !ok {
		return
	}
	limit, ok := parseLimit(c, 50)
	if !ok {
		return
	}
	events, err := h.journal.Recent(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.logger.Error("journal query failed", zap.String("arena_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// Recent handles GET /api/arenas/:id/recent?limit=N from the cache list,
// which includes events the journal has not flushed yet.
func (h *ArenaHandler) Recent(c *gin.Context) {
	if _, ok := h.arena(c); !ok {
		return
	}
	limit, ok := parseLimit(c, 50)
	if !ok {
		return
	}
	events, err := h.relay.Recent(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func (h *ArenaHandler) arena(c *gin.Context) (*world.Arena, bool) {
	a, err := h.wm.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "arena not found"})
		return nil, false
	}
	return a, true
}

func parseLimit(c *gin.Context, def int) (int, bool) {
	s := c.Query("limit")
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return 0, false
	}
	return n, true
}
