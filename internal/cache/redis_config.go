package cache

import (
	"crypto/tls"
	"time"
)

// RedisConfig contains connection settings for the shared decision store
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	TLS *tls.Config

	// Key prefix for namespacing decision entries
	KeyPrefix string

	// Circuit breaker thresholds
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultRedisConfig returns a configuration with sensible defaults
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Host:            "localhost",
		Port:            6379,
		Password:        "",
		DB:              0,
		PoolSize:        10,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		KeyPrefix:       "pdp:decision:",
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// Validate checks the configuration for validity
func (c *RedisConfig) Validate() error {
	if c.Host == "" {
		return ErrInvalidConfig("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return ErrInvalidConfig("port must be between 1 and 65535")
	}
	if c.PoolSize <= 0 {
		return ErrInvalidConfig("pool_size must be greater than 0")
	}
	return nil
}
