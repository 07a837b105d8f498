package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/pdp-engine/go-core/pkg/types"
)

// Redis is the primary decision store shared by all service instances.
// Every operation runs through a circuit breaker so a dead redis degrades to
// fast-failing misses instead of per-call connection timeouts.
type Redis struct {
	client  redis.UniversalClient
	config  *RedisConfig
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger

	hits   uint64
	misses uint64
}

// NewRedis creates the remote decision store and verifies connectivity
func NewRedis(config *RedisConfig, logger *zap.Logger) (*Redis, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(config.Host, fmt.Sprintf("%d", config.Port)),
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		TLSConfig:    config.TLS,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, ErrConnectionFailed(err)
	}

	return NewRedisWithClient(client, config, logger), nil
}

// NewRedisWithClient wraps an existing client; used by tests with miniredis
// and redismock.
func NewRedisWithClient(client redis.UniversalClient, config *RedisConfig, logger *zap.Logger) *Redis {
	if config == nil {
		config = DefaultRedisConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	failures := config.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-decision-cache",
		MaxRequests: 3,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Decision cache breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Redis{
		client:  client,
		config:  config,
		breaker: breaker,
		logger:  logger,
	}
}

// Get retrieves a cached decision. The bool distinguishes a clean miss from
// a transport failure.
func (c *Redis) Get(ctx context.Context, fingerprint string) (*types.Decision, bool, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		data, err := c.client.Get(ctx, c.config.KeyPrefix+fingerprint).Bytes()
		if err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		if err == redis.Nil {
			atomic.AddUint64(&c.misses, 1)
			return nil, false, nil
		}
		// Not a lookup result: the caller falls back to another tier
		// which accounts for this request
		return nil, false, ErrOperationFailed("get", err)
	}

	decision := &types.Decision{}
	if err := json.Unmarshal(result.([]byte), decision); err != nil {
		// A corrupt entry behaves like a miss; recompute overwrites it
		atomic.AddUint64(&c.misses, 1)
		return nil, false, nil
	}

	atomic.AddUint64(&c.hits, 1)
	return decision, true, nil
}

// Set stores a decision with the given TTL
func (c *Redis) Set(ctx context.Context, fingerprint string, decision *types.Decision, ttl time.Duration) error {
	data, err := json.Marshal(decision)
	if err != nil {
		return ErrSerializationFailed(err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Set(ctx, c.config.KeyPrefix+fingerprint, data, ttl).Err()
	})
	if err != nil {
		return ErrOperationFailed("set", err)
	}
	return nil
}

// Delete removes one fingerprint
func (c *Redis) Delete(ctx context.Context, fingerprint string) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Del(ctx, c.config.KeyPrefix+fingerprint).Err()
	})
	if err != nil {
		return ErrOperationFailed("delete", err)
	}
	return nil
}

// DeletePattern removes all entries matching the glob pattern under the
// key prefix, returning the number removed.
func (c *Redis) DeletePattern(ctx context.Context, pattern string) (int, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		iter := c.client.Scan(ctx, 0, c.config.KeyPrefix+pattern, 100).Iterator()

		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return 0, err
		}

		if len(keys) == 0 {
			return 0, nil
		}
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return 0, err
		}
		return len(keys), nil
	})
	if err != nil {
		return 0, ErrOperationFailed("delete_pattern", err)
	}
	return result.(int), nil
}

// Clear removes all entries under the key prefix
func (c *Redis) Clear(ctx context.Context) error {
	_, err := c.DeletePattern(ctx, "*")
	return err
}

// TTL returns the remaining TTL for a fingerprint
func (c *Redis) TTL(ctx context.Context, fingerprint string) (time.Duration, error) {
	ttl, err := c.client.TTL(ctx, c.config.KeyPrefix+fingerprint).Result()
	if err != nil {
		return -1, ErrOperationFailed("ttl", err)
	}
	return ttl, nil
}

// Connected reports whether the breaker currently allows traffic
func (c *Redis) Connected() bool {
	return c.breaker.State() != gobreaker.StateOpen
}

// Stats returns cache statistics
func (c *Redis) Stats() Stats {
	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)
	total := hits + misses

	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	size := 0
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if c.Connected() {
		if dbSize, err := c.client.DBSize(ctx).Result(); err == nil {
			size = int(dbSize)
		}
	}

	return Stats{
		Size:      size,
		Hits:      hits,
		Misses:    misses,
		HitRate:   hitRate,
		Connected: c.Connected(),
	}
}

// Close closes the underlying client
func (c *Redis) Close() error {
	return c.client.Close()
}
