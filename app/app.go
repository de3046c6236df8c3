// Package app wires the arena server together: storage, cache, the event
// pipeline, the running arenas and the HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	apirest "github.com/nightwatch-game/server/api/rest"
	"github.com/nightwatch-game/server/api/sse"
	apiws "github.com/nightwatch-game/server/api/ws"
	"github.com/nightwatch-game/server/cache"
	"github.com/nightwatch-game/server/config"
	dbadapter "github.com/nightwatch-game/server/db"
	"github.com/nightwatch-game/server/game/player"
	"github.com/nightwatch-game/server/game/world"
	"github.com/nightwatch-game/server/hook"
	"github.com/nightwatch-game/server/journal"
	mw "github.com/nightwatch-game/server/middleware"
	"github.com/nightwatch-game/server/model"
	"github.com/nightwatch-game/server/relay"
	"github.com/nightwatch-game/server/resource"
	"github.com/nightwatch-game/server/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// App holds every long-lived component. Arenas and the scheduler are running
// once New returns; Close stops them.
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Cache    cache.Cache
	PubSub   cache.PubSub
	Hooks    *hook.HookCenter
	Journal  *journal.Service
	Relay    *relay.Relay
	World    *world.Manager
	Sessions *player.SessionManager
	Sched    *scheduler.Scheduler

	watcher *resource.Watcher
	router  *gin.Engine
	logger  *zap.Logger
}

func New(cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	a := &App{Config: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	if a.DB, err = dbadapter.Open(cfg.Database); err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	if err = model.AutoMigrate(a.DB); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Cache / PubSub ----
	if a.Cache, err = cache.NewCache(cfg.Cache); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	if a.PubSub, err = cache.NewPubSub(cfg.Cache); err != nil {
		return nil, fmt.Errorf("pubsub: %w", err)
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Event pipeline ----
	a.Hooks = hook.NewHookCenter(logger)
	a.Journal = journal.New(a.DB, logger)
	a.Journal.Register(a.Hooks)
	a.Relay = relay.New(a.Cache, a.PubSub, relay.Options{SnapshotTTL: cfg.Cache.SnapshotTTL, Logger: logger})
	a.Relay.Register(a.Hooks)

	// ---- Arenas ----
	defs, err := resource.LoadDir(cfg.Game.ArenaDir)
	if err != nil {
		return nil, err
	}
	a.World = world.NewManager(world.ArenaOptions{
		AI:           cfg.AI,
		Tick:         cfg.Game.TickInterval(),
		PlayerRadius: cfg.Game.PlayerRadius,
		Hooks:        a.Hooks,
		Logger:       logger,
	})
	if err = a.World.Load(defs); err != nil {
		return nil, err
	}
	if cfg.Game.DefaultArena == "" && len(defs) > 0 {
		cfg.Game.DefaultArena = defs[0].ID
	}
	if _, err = a.World.Get(cfg.Game.DefaultArena); err != nil {
		return nil, fmt.Errorf("default arena %q: %w", cfg.Game.DefaultArena, err)
	}
	logger.Info("arenas loaded", zap.Int("count", len(defs)), zap.String("default", cfg.Game.DefaultArena))

	// ---- Scheduler ----
	a.Sched = scheduler.New(logger)
	a.Relay.Schedule(a.Sched, a.World, cfg.Game.SnapshotInterval)

	if cfg.Game.WatchArenas {
		a.watcher, err = resource.NewWatcher(cfg.Game.ArenaDir, a.Sched, func(def *resource.ArenaDef) {
			// Rejections are logged by the manager; the old arena keeps running.
			_ = a.World.Reload(def)
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("arena watcher: %w", err)
		}
	}

	a.Sessions = player.NewSessionManager(logger)
	a.router = a.routes()
	return a, nil
}

// Router returns the gin engine serving every endpoint.
func (a *App) Router() http.Handler { return a.router }

func (a *App) routes() *gin.Engine {
	cfg := a.Config
	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(a.logger), mw.Recovery(a.logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "arenas": a.World.Count()})
	})

	arenaH := apirest.NewArenaHandler(a.World, a.Relay, a.Journal, a.logger)
	adminH := apirest.NewAdminHandler(a.Sessions, a.World, a.Sched, a.Cache, cfg.Security, a.logger)

	api := r.Group("/api")
	{
		arenas := api.Group("/arenas")
		arenas.GET("", arenaH.List)
		arenas.GET("/:id", arenaH.Get)
		arenas.GET("/:id/cached", arenaH.Cached)
		arenas.GET("/:id/states", arenaH.States)
		arenas.GET("/:id/events", arenaH.Events)
		arenas.GET("/:id/recent", arenaH.Recent)

		admin := api.Group("/admin")
		admin.Use(mw.IPWhitelist(cfg.Security.AdminIPs), mw.AdminKey(cfg.Server.AdminKey))
		admin.GET("/metrics", adminH.Metrics)
		admin.GET("/players", adminH.ListPlayers)
		admin.POST("/kick/:id", adminH.KickPlayer)
		admin.PUT("/arenas/:id/enemies/:eid/perception", adminH.SetPerception)
		admin.POST("/arenas/:id/enemies/:eid/state", adminH.ForceState)
		admin.POST("/tokens", adminH.IssueToken)
		admin.POST("/tokens/revoke", adminH.RevokeToken)
		admin.GET("/scheduler", adminH.ListSchedulerTasks)
	}

	// ---- WebSocket ----
	wsRouter := apiws.NewRouter(a.logger)
	apiws.RegisterHandlers(wsRouter, a.World)
	wsH := apiws.NewHandler(cfg.Security, cfg.Game, a.Sessions, a.World, a.Relay, wsRouter, a.logger)
	r.GET("/ws", mw.Auth(cfg.Security, a.Cache), wsH.ServeWS)

	// ---- SSE ----
	sseH := sse.NewHandler(a.Relay, a.World, cfg.Game, a.logger)
	r.GET("/sse", mw.Auth(cfg.Security, a.Cache), sseH.ServeSSE)

	return r
}

// Close stops the arenas and releases storage. Queued journal events are
// flushed before the database is closed. Safe on a partially built App.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.watcher != nil {
		errs = append(errs, a.watcher.Close())
	}
	if a.Sched != nil {
		a.Sched.Stop()
	}
	if a.Sessions != nil {
		a.Sessions.CloseAll()
	}
	if a.World != nil {
		a.World.StopAll()
	}
	if a.Journal != nil {
		a.Journal.Stop(ctx)
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
