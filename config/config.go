package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kasuganosora/nightwatch/cache"
	"github.com/kasuganosora/nightwatch/db"
	"github.com/kasuganosora/nightwatch/game/ai"
	"github.com/kasuganosora/nightwatch/game/world"
)

// ErrInvalid is returned by Validate for unusable settings.
var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Server   ServerConfig          `mapstructure:"server"`
	Game     GameConfig            `mapstructure:"game"`
	Cache    cache.CacheConfig     `mapstructure:"cache"`
	Database db.Config             `mapstructure:"database"`
	Events   world.PublisherConfig `mapstructure:"events"`
	Security SecurityConfig        `mapstructure:"security"`
	Pursuit  ai.Config             `mapstructure:"pursuit"`
	Plugins  PluginsConfig         `mapstructure:"plugins"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
}

type GameConfig struct {
	TickMs         int           `mapstructure:"tick_ms"`
	LevelDir       string        `mapstructure:"level_dir"`
	ReportInterval time.Duration `mapstructure:"report_interval"`
	// Seed fixes point generation across restarts; 0 seeds from time.
	Seed uint64 `mapstructure:"seed"`
}

// Tick is the room tick interval.
func (g GameConfig) Tick() time.Duration {
	return time.Duration(g.TickMs) * time.Millisecond
}

type SecurityConfig struct {
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	// AllowedOrigins limits WebSocket origins; empty allows all.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// PluginsConfig configures JavaScript event filters.
type PluginsConfig struct {
	// ScriptDir holds *.js filters run before each event is published.
	// Empty disables scripting.
	ScriptDir string        `mapstructure:"script_dir"`
	PoolSize  int           `mapstructure:"pool_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.admin_key", "")
	v.SetDefault("game.tick_ms", 50)
	v.SetDefault("game.level_dir", "./levels")
	v.SetDefault("game.report_interval", "30s")
	v.SetDefault("game.seed", 0)
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("database.mode", db.ModeDisabled)
	v.SetDefault("database.sqlite_path", "nightwatch.db")
	v.SetDefault("database.mysql_dsn", "")
	v.SetDefault("database.max_open", 10)
	v.SetDefault("database.max_idle", 5)
	v.SetDefault("database.max_life", "1h")
	v.SetDefault("events.buffer", 1024)
	v.SetDefault("events.history_len", 200)
	v.SetDefault("events.caught_cooldown", "3s")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
	v.SetDefault("security.allowed_origins", []string{})
	v.SetDefault("plugins.script_dir", "")
	v.SetDefault("plugins.pool_size", 2)
	v.SetDefault("plugins.timeout", "100ms")

	d := ai.DefaultConfig()
	v.SetDefault("pursuit.detection_radius", d.DetectionRadius)
	v.SetDefault("pursuit.field_of_view", d.FieldOfView)
	v.SetDefault("pursuit.hearing_radius", d.HearingRadius)
	v.SetDefault("pursuit.light_detection_bonus", d.LightDetectionBonus)
	v.SetDefault("pursuit.noise_threshold", d.NoiseThreshold)
	v.SetDefault("pursuit.attack_range", d.AttackRange)
	v.SetDefault("pursuit.eye_height", d.EyeHeight)
	v.SetDefault("pursuit.arrive_distance", d.ArriveDistance)
	v.SetDefault("pursuit.patrol_speed", d.PatrolSpeed)
	v.SetDefault("pursuit.investigate_speed", d.InvestigateSpeed)
	v.SetDefault("pursuit.hunt_speed", d.HuntSpeed)
	v.SetDefault("pursuit.search_speed", d.SearchSpeed)
	v.SetDefault("pursuit.investigate_timeout", d.InvestigateTimeout.String())
	v.SetDefault("pursuit.lose_target_time", d.LoseTargetTime.String())
	v.SetDefault("pursuit.search_duration", d.SearchDuration.String())
	v.SetDefault("pursuit.patrol_point_count", d.PatrolPointCount)
	v.SetDefault("pursuit.patrol_radius", d.PatrolRadius)
	v.SetDefault("pursuit.random_patrol", d.RandomPatrol)
	v.SetDefault("pursuit.search_point_count", d.SearchPointCount)
	v.SetDefault("pursuit.search_radius", d.SearchRadius)
	v.SetDefault("pursuit.projection_radius", d.ProjectionRadius)
}

// Load reads config from the given YAML file path. An empty path uses
// defaults only. NIGHTWATCH_* environment variables override both,
// e.g. NIGHTWATCH_SERVER_PORT or NIGHTWATCH_PURSUIT_HUNT_SPEED.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("nightwatch")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints and the pursuit tuning.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalid, c.Server.Port)
	}
	if c.Game.TickMs <= 0 {
		return fmt.Errorf("%w: game.tick_ms must be > 0", ErrInvalid)
	}
	if c.Game.LevelDir == "" {
		return fmt.Errorf("%w: game.level_dir is required", ErrInvalid)
	}
	switch c.Database.Mode {
	case db.ModeDisabled, db.ModeSQLite, db.ModeMySQL:
	default:
		return fmt.Errorf("%w: database.mode %q", ErrInvalid, c.Database.Mode)
	}
	if c.Events.HistoryLen < 0 || c.Events.Buffer < 0 {
		return fmt.Errorf("%w: events.buffer and events.history_len must be >= 0", ErrInvalid)
	}
	if err := c.Pursuit.Validate(); err != nil {
		return fmt.Errorf("%w: pursuit: %w", ErrInvalid, err)
	}
	return nil
}
