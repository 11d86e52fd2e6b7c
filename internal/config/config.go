package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Store  StoreConfig  `mapstructure:"store"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Cron   CronConfig   `mapstructure:"cron"`

	Pulse  PulseConfig  `mapstructure:"pulse"`
	Points PointsConfig `mapstructure:"points"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	RequireBearer   bool          `mapstructure:"require_bearer"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
	SlowQuery       time.Duration `mapstructure:"slow_query"`
}

// StoreConfig selects the signal log backend: "postgres" or "memory".
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

// CacheConfig selects the display cache backend: "memory" or "redis".
type CacheConfig struct {
	Backend       string        `mapstructure:"backend"`
	TTL           time.Duration `mapstructure:"ttl"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
}

type CronConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	PulseRefresh string `mapstructure:"pulse_refresh"`
}

// PulseConfig holds every window, weight and threshold of the scoring and
// admission pipeline. It is process-wide.
type PulseConfig struct {
	ClockInThrottle   time.Duration `mapstructure:"clock_in_throttle"`
	SameVenueThrottle time.Duration `mapstructure:"same_venue_throttle"`
	VibeValidity      time.Duration `mapstructure:"vibe_validity"`

	LCBWindow      time.Duration `mapstructure:"lcb_window"`
	LCBMaxClockIns int           `mapstructure:"lcb_max_clock_ins"`

	LiveHeadcountWindow time.Duration `mapstructure:"live_headcount_window"`
	VibeWindow          time.Duration `mapstructure:"vibe_window"`
	VibeReportsRequired int           `mapstructure:"vibe_reports_required"`

	BuzzHistory     time.Duration `mapstructure:"buzz_history"`
	DecayHalfLife   time.Duration `mapstructure:"decay_half_life"`
	HeadcountWeight float64       `mapstructure:"headcount_weight"`
	ActionWeight    float64       `mapstructure:"action_weight"`
	DefaultCapacity int           `mapstructure:"default_capacity"`

	Thresholds ThresholdConfig `mapstructure:"thresholds"`

	BuzzClockPriority    time.Duration `mapstructure:"buzz_clock_priority"`
	NotificationCooldown time.Duration `mapstructure:"notification_cooldown"`

	StoreTimeout time.Duration `mapstructure:"store_timeout"`
}

type ThresholdConfig struct {
	Packed  float64 `mapstructure:"packed"`
	Buzzing float64 `mapstructure:"buzzing"`
	Chill   float64 `mapstructure:"chill"`
}

type PointsConfig struct {
	ClockIn               int     `mapstructure:"clock_in"`
	VibeReport            int     `mapstructure:"vibe_report"`
	MarketingConsentBonus int     `mapstructure:"marketing_consent_bonus"`
	GamesUpdateBonus      int     `mapstructure:"games_update_bonus"`
	Multiplier            float64 `mapstructure:"multiplier"`
}

// DefaultPulseConfig returns the reference configuration (LCB Rule of Two,
// 60 minute half-life, 50 person default capacity).
func DefaultPulseConfig() PulseConfig {
	return PulseConfig{
		ClockInThrottle:      120 * time.Minute,
		SameVenueThrottle:    360 * time.Minute,
		VibeValidity:         45 * time.Minute,
		LCBWindow:            12 * time.Hour,
		LCBMaxClockIns:       2,
		LiveHeadcountWindow:  60 * time.Minute,
		VibeWindow:           10 * time.Minute,
		VibeReportsRequired:  2,
		BuzzHistory:          12 * time.Hour,
		DecayHalfLife:        60 * time.Minute,
		HeadcountWeight:      1.0,
		ActionWeight:         0.5,
		DefaultCapacity:      50,
		Thresholds:           ThresholdConfig{Packed: 0.85, Buzzing: 0.50, Chill: 0.15},
		BuzzClockPriority:    240 * time.Minute,
		NotificationCooldown: 4 * time.Hour,
		StoreTimeout:         3 * time.Second,
	}
}

func DefaultPointsConfig() PointsConfig {
	return PointsConfig{
		ClockIn:               10,
		VibeReport:            5,
		MarketingConsentBonus: 5,
		GamesUpdateBonus:      2,
		Multiplier:            1.0,
	}
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.require_bearer", false)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.slow_query", "200ms")
	v.SetDefault("store.backend", "postgres")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", "30s")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.key_prefix", "pulse:")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.pulse_refresh", "@every 1m")

	setPulseDefaults(v, DefaultPulseConfig())
	setPointsDefaults(v, DefaultPointsConfig())

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setPulseDefaults(v *viper.Viper, p PulseConfig) {
	v.SetDefault("pulse.clock_in_throttle", p.ClockInThrottle.String())
	v.SetDefault("pulse.same_venue_throttle", p.SameVenueThrottle.String())
	v.SetDefault("pulse.vibe_validity", p.VibeValidity.String())
	v.SetDefault("pulse.lcb_window", p.LCBWindow.String())
	v.SetDefault("pulse.lcb_max_clock_ins", p.LCBMaxClockIns)
	v.SetDefault("pulse.live_headcount_window", p.LiveHeadcountWindow.String())
	v.SetDefault("pulse.vibe_window", p.VibeWindow.String())
	v.SetDefault("pulse.vibe_reports_required", p.VibeReportsRequired)
	v.SetDefault("pulse.buzz_history", p.BuzzHistory.String())
	v.SetDefault("pulse.decay_half_life", p.DecayHalfLife.String())
	v.SetDefault("pulse.headcount_weight", p.HeadcountWeight)
	v.SetDefault("pulse.action_weight", p.ActionWeight)
	v.SetDefault("pulse.default_capacity", p.DefaultCapacity)
	v.SetDefault("pulse.thresholds.packed", p.Thresholds.Packed)
	v.SetDefault("pulse.thresholds.buzzing", p.Thresholds.Buzzing)
	v.SetDefault("pulse.thresholds.chill", p.Thresholds.Chill)
	v.SetDefault("pulse.buzz_clock_priority", p.BuzzClockPriority.String())
	v.SetDefault("pulse.notification_cooldown", p.NotificationCooldown.String())
	v.SetDefault("pulse.store_timeout", p.StoreTimeout.String())
}

func setPointsDefaults(v *viper.Viper, p PointsConfig) {
	v.SetDefault("points.clock_in", p.ClockIn)
	v.SetDefault("points.vibe_report", p.VibeReport)
	v.SetDefault("points.marketing_consent_bonus", p.MarketingConsentBonus)
	v.SetDefault("points.games_update_bonus", p.GamesUpdateBonus)
	v.SetDefault("points.multiplier", p.Multiplier)
}
