package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. OEEMON_STORE_PRIMARY_DSN
const EnvPrefix = "OEEMON"

type Config struct {
	HTTP  HTTPConfig  `mapstructure:"http"`
	Log   LogConfig   `mapstructure:"log"`
	Store StoreConfig `mapstructure:"store"`
	OEE   OEEConfig   `mapstructure:"oee"`
}

type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StoreConfig struct {
	Primary         PrimaryStoreConfig  `mapstructure:"primary"`
	Fallback        FallbackStoreConfig `mapstructure:"fallback"`
	Breaker         BreakerConfig       `mapstructure:"breaker"`
	ReplicateWrites bool                `mapstructure:"replicate_writes"`
}

// PrimaryStoreConfig points at the remote PostgreSQL store
type PrimaryStoreConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogQueries      bool          `mapstructure:"log_queries"`
}

// FallbackStoreConfig points at the process-local SQLite store
type FallbackStoreConfig struct {
	Path     string `mapstructure:"path"`
	SeedFile string `mapstructure:"seed_file"`
}

// BreakerConfig controls the circuit breaker in front of the primary store
type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
	HalfOpenRequests uint32        `mapstructure:"half_open_requests"`
}

type OEEConfig struct {
	DefaultProductionRate float64       `mapstructure:"default_production_rate"`
	ExpectedEfficiency    float64       `mapstructure:"expected_efficiency"`
	RollupWindow          time.Duration `mapstructure:"rollup_window"`
	NoData                NoDataConfig  `mapstructure:"no_data"`
}

// NoDataConfig describes the placeholder metrics used for machines without
// records in the rollup window.
type NoDataConfig struct {
	TargetShare     float64 `mapstructure:"target_share"`
	PlannedMinutes  float64 `mapstructure:"planned_minutes"`
	DowntimeMinutes float64 `mapstructure:"downtime_minutes"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("store.primary.dsn", "host=localhost user=oee password=oee dbname=oee port=5432 sslmode=disable connect_timeout=5")
	v.SetDefault("store.primary.max_open_conns", 20)
	v.SetDefault("store.primary.max_idle_conns", 5)
	v.SetDefault("store.primary.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("store.primary.log_queries", false)
	v.SetDefault("store.fallback.path", "oeemon-fallback.db")
	v.SetDefault("store.fallback.seed_file", "")
	v.SetDefault("store.breaker.enabled", true)
	v.SetDefault("store.breaker.failure_threshold", 3)
	v.SetDefault("store.breaker.cooldown", 30*time.Second)
	v.SetDefault("store.breaker.half_open_requests", 1)
	v.SetDefault("store.replicate_writes", true)

	v.SetDefault("oee.default_production_rate", 65.0)
	v.SetDefault("oee.expected_efficiency", 0.85)
	v.SetDefault("oee.rollup_window", 24*time.Hour)
	v.SetDefault("oee.no_data.target_share", 0.85)
	v.SetDefault("oee.no_data.planned_minutes", 480.0)
	v.SetDefault("oee.no_data.downtime_minutes", 30.0)
}

// Load reads configuration from path, or from oeemon.yaml in the usual
// locations when path is empty. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("oeemon")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/oeemon")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("store.primary.dsn", EnvPrefix+"_STORE_PRIMARY_DSN", "DATABASE_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges that would otherwise fail at runtime
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q: must be one of debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log.format %q: must be json or text", c.Log.Format)
	}
	if c.Store.Fallback.Path == "" {
		return errors.New("store.fallback.path is required")
	}
	if c.Store.Breaker.Enabled {
		if c.Store.Breaker.FailureThreshold == 0 {
			return errors.New("store.breaker.failure_threshold must be at least 1")
		}
		if c.Store.Breaker.Cooldown <= 0 {
			return errors.New("store.breaker.cooldown must be positive")
		}
	}
	if c.OEE.DefaultProductionRate <= 0 {
		return errors.New("oee.default_production_rate must be positive")
	}
	if c.OEE.ExpectedEfficiency <= 0 || c.OEE.ExpectedEfficiency > 1 {
		return errors.New("oee.expected_efficiency must be in (0,1]")
	}
	if c.OEE.RollupWindow <= 0 {
		return errors.New("oee.rollup_window must be positive")
	}
	if c.OEE.NoData.TargetShare < 0 || c.OEE.NoData.PlannedMinutes < 0 || c.OEE.NoData.DowntimeMinutes < 0 {
		return errors.New("oee.no_data values must not be negative")
	}
	return nil
}
