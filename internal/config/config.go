// Package config loads and validates PDP service configuration
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full service configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Log        LogConfig        `mapstructure:"log"`
}

// AuditConfig stores decision audit trail settings
type AuditConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	File          string        `mapstructure:"file"`
	MaxSizeMB     int           `mapstructure:"max_size_mb"`
	MaxBackups    int           `mapstructure:"max_backups"`
	MaxAgeDays    int           `mapstructure:"max_age_days"`
	BufferSize    int           `mapstructure:"buffer_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// ServerConfig stores HTTP server settings
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// RedisConfig stores connection settings for the shared decision cache
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// CacheConfig stores decision cache TTL policy and the local fallback bounds
type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	PositiveTTL   time.Duration `mapstructure:"positive_ttl"`
	NegativeTTL   time.Duration `mapstructure:"negative_ttl"`
	LocalCapacity int           `mapstructure:"local_capacity"`
}

// EvaluationConfig stores the rule pipeline parameters
type EvaluationConfig struct {
	Timeout         time.Duration  `mapstructure:"timeout"`
	Bypass          bool           `mapstructure:"bypass"`
	SuperUserRole   string         `mapstructure:"super_user_role"`
	ScopedAdminRole string         `mapstructure:"scoped_admin_role"`
	ActionLevels    map[string]int `mapstructure:"action_levels"`
	BatchWorkers    int            `mapstructure:"batch_workers"`
}

// CatalogConfig selects and configures the role/permission catalog source
type CatalogConfig struct {
	Source      string `mapstructure:"source"` // "file" or "postgres"
	Path        string `mapstructure:"path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	Watch       bool   `mapstructure:"watch"`
}

// LogConfig stores logger settings
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Redis: RedisConfig{
			Host:         "localhost",
			Port:         6379,
			DB:           0,
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			KeyPrefix:    "pdp:decision:",
		},
		Cache: CacheConfig{
			Enabled:       true,
			PositiveTTL:   300 * time.Second,
			NegativeTTL:   60 * time.Second,
			LocalCapacity: 10000,
		},
		Evaluation: EvaluationConfig{
			Timeout:         3 * time.Second,
			Bypass:          false,
			SuperUserRole:   "SUPER_ADMIN",
			ScopedAdminRole: "TENANT_ADMIN",
			ActionLevels: map[string]int{
				"read":        1,
				"list":        1,
				"write":       30,
				"create":      30,
				"update":      30,
				"delete":      60,
				"admin":       80,
				"super_admin": 100,
			},
			BatchWorkers: 16,
		},
		Catalog: CatalogConfig{
			Source: "file",
			Path:   "catalog.yaml",
			Watch:  true,
		},
		Audit: AuditConfig{
			Enabled:       false,
			MaxSizeMB:     100,
			MaxBackups:    5,
			MaxAgeDays:    30,
			BufferSize:    1024,
			FlushInterval: time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from the given file (optional) and environment,
// layered over defaults. Environment variables use the PDP_ prefix with
// underscores, e.g. PDP_CACHE_POSITIVE_TTL.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PDP")
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)

	v.SetDefault("redis.host", d.Redis.Host)
	v.SetDefault("redis.port", d.Redis.Port)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.pool_size", d.Redis.PoolSize)
	v.SetDefault("redis.dial_timeout", d.Redis.DialTimeout)
	v.SetDefault("redis.read_timeout", d.Redis.ReadTimeout)
	v.SetDefault("redis.write_timeout", d.Redis.WriteTimeout)
	v.SetDefault("redis.key_prefix", d.Redis.KeyPrefix)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.positive_ttl", d.Cache.PositiveTTL)
	v.SetDefault("cache.negative_ttl", d.Cache.NegativeTTL)
	v.SetDefault("cache.local_capacity", d.Cache.LocalCapacity)

	v.SetDefault("evaluation.timeout", d.Evaluation.Timeout)
	v.SetDefault("evaluation.bypass", d.Evaluation.Bypass)
	v.SetDefault("evaluation.super_user_role", d.Evaluation.SuperUserRole)
	v.SetDefault("evaluation.scoped_admin_role", d.Evaluation.ScopedAdminRole)
	v.SetDefault("evaluation.action_levels", d.Evaluation.ActionLevels)
	v.SetDefault("evaluation.batch_workers", d.Evaluation.BatchWorkers)

	v.SetDefault("catalog.source", d.Catalog.Source)
	v.SetDefault("catalog.path", d.Catalog.Path)
	v.SetDefault("catalog.watch", d.Catalog.Watch)

	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.max_size_mb", d.Audit.MaxSizeMB)
	v.SetDefault("audit.max_backups", d.Audit.MaxBackups)
	v.SetDefault("audit.max_age_days", d.Audit.MaxAgeDays)
	v.SetDefault("audit.buffer_size", d.Audit.BufferSize)
	v.SetDefault("audit.flush_interval", d.Audit.FlushInterval)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Cache.PositiveTTL <= 0 {
		return fmt.Errorf("cache.positive_ttl must be greater than 0")
	}
	if c.Cache.NegativeTTL <= 0 {
		return fmt.Errorf("cache.negative_ttl must be greater than 0")
	}
	// Stale denies must expire before stale permits
	if c.Cache.NegativeTTL > c.Cache.PositiveTTL {
		return fmt.Errorf("cache.negative_ttl must not exceed cache.positive_ttl")
	}
	if c.Evaluation.Timeout <= 0 {
		return fmt.Errorf("evaluation.timeout must be greater than 0")
	}
	if c.Evaluation.SuperUserRole == "" {
		return fmt.Errorf("evaluation.super_user_role is required")
	}
	if len(c.Evaluation.ActionLevels) == 0 {
		return fmt.Errorf("evaluation.action_levels must not be empty")
	}
	for action, level := range c.Evaluation.ActionLevels {
		if level < 0 {
			return fmt.Errorf("evaluation.action_levels[%s] must not be negative", action)
		}
	}
	switch c.Catalog.Source {
	case "file":
		if c.Catalog.Path == "" {
			return fmt.Errorf("catalog.path is required for the file source")
		}
	case "postgres":
		if c.Catalog.PostgresDSN == "" {
			return fmt.Errorf("catalog.postgres_dsn is required for the postgres source")
		}
	default:
		return fmt.Errorf("catalog.source must be file or postgres, got %q", c.Catalog.Source)
	}
	return nil
}
