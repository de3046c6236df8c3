package config

import (
	"time"

	"github.com/nightwatch-game/server/game/ai"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Game     GameConfig     `mapstructure:"game"`
	AI       ai.Config      `mapstructure:"ai"`
	Security SecurityConfig `mapstructure:"security"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql | memory
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
	SnapshotTTL     time.Duration `mapstructure:"snapshot_ttl"`
}

type GameConfig struct {
	TickMs           int           `mapstructure:"tick_ms"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
	ArenaDir         string        `mapstructure:"arena_dir"`
	WatchArenas      bool          `mapstructure:"watch_arenas"`
	DefaultArena     string        `mapstructure:"default_arena"`
	PlayerMaxHealth  float64       `mapstructure:"player_max_health"`
	PlayerRadius     float64       `mapstructure:"player_radius"`
}

// TickInterval is the fixed simulation step of every arena.
func (g GameConfig) TickInterval() time.Duration {
	if g.TickMs <= 0 {
		return 50 * time.Millisecond
	}
	return time.Duration(g.TickMs) * time.Millisecond
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// AllowedOrigins lists the WebSocket/SSE origins that are permitted.
	// An empty slice allows all origins (useful for local development only).
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// AdminIPs restricts /api/admin to these IPs or CIDRs. Empty allows all.
	AdminIPs []string `mapstructure:"admin_ips"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/nightwatch.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("cache.snapshot_ttl", "10s")
	v.SetDefault("game.tick_ms", 50)
	v.SetDefault("game.snapshot_interval", "1s")
	v.SetDefault("game.arena_dir", "./data/arenas")
	v.SetDefault("game.watch_arenas", false)
	v.SetDefault("game.player_max_health", 100)
	v.SetDefault("game.player_radius", 0.5)
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)

	// AI tuning shipped with the original enemy prefab.
	d := ai.DefaultConfig()
	v.SetDefault("ai.perception.detection_range", d.Perception.DetectionRange)
	v.SetDefault("ai.perception.field_of_view", d.Perception.FieldOfView)
	v.SetDefault("ai.perception.layer_mask", uint32(d.Perception.LayerMask))
	v.SetDefault("ai.patrol.wait_time", d.Patrol.WaitTime.String())
	v.SetDefault("ai.patrol.speed", d.Patrol.Speed)
	v.SetDefault("ai.patrol.reach_distance", d.Patrol.ReachDistance)
	v.SetDefault("ai.chase.speed", d.Chase.Speed)
	v.SetDefault("ai.chase.attack_range", d.Chase.AttackRange)
	v.SetDefault("ai.chase.lose_distance", d.Chase.LoseDistance)
	v.SetDefault("ai.chase.refresh_interval", d.Chase.RefreshInterval.String())
	v.SetDefault("ai.chase.rotation_speed", d.Chase.RotationSpeed)
	v.SetDefault("ai.attack.range", d.Attack.Range)
	v.SetDefault("ai.attack.cooldown", d.Attack.Cooldown.String())
	v.SetDefault("ai.attack.damage", d.Attack.Damage)
	v.SetDefault("ai.attack.lose_distance", d.Attack.LoseDistance)
	v.SetDefault("ai.attack.rotation_speed", d.Attack.RotationSpeed)
	v.SetDefault("ai.attack.strike_delay", d.Attack.StrikeDelay.String())
	v.SetDefault("ai.attack.complete_strike_on_exit", false)
}
