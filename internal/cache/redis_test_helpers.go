package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupMiniredisTest creates a Redis decision cache backed by miniredis
func setupMiniredisTest(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	s := miniredis.RunT(t)

	config := DefaultRedisConfig()
	config.Host = s.Host()
	config.KeyPrefix = "test:"
	if _, err := fmt.Sscanf(s.Port(), "%d", &config.Port); err != nil {
		t.Fatalf("parse miniredis port: %v", err)
	}

	// Create the client directly to disable CLIENT SETINFO, which miniredis
	// does not implement
	client := redis.NewClient(&redis.Options{
		Addr:             fmt.Sprintf("%s:%d", config.Host, config.Port),
		DB:               config.DB,
		PoolSize:         config.PoolSize,
		ReadTimeout:      config.ReadTimeout,
		WriteTimeout:     config.WriteTimeout,
		DialTimeout:      config.DialTimeout,
		DisableIndentity: true,
	})

	c := NewRedisWithClient(client, config, nil)
	t.Cleanup(func() {
		c.Close()
	})
	return c, s
}

// brokenRedisCache returns a cache pointed at a closed miniredis so every
// operation fails
func brokenRedisCache(t *testing.T) *Redis {
	t.Helper()

	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	client := redis.NewClient(&redis.Options{
		Addr:             addr,
		DialTimeout:      100 * time.Millisecond,
		ReadTimeout:      100 * time.Millisecond,
		WriteTimeout:     100 * time.Millisecond,
		DisableIndentity: true,
	})

	config := DefaultRedisConfig()
	config.KeyPrefix = "test:"
	c := NewRedisWithClient(client, config, nil)
	t.Cleanup(func() {
		c.Close()
	})
	return c
}
