package cache

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pdp-engine/go-core/pkg/types"
)

// FallbackRecorder receives a signal each time the remote tier is bypassed
type FallbackRecorder interface {
	RecordCacheFallback()
}

type noopFallbackRecorder struct{}

func (noopFallbackRecorder) RecordCacheFallback() {}

// Tiered fronts the shared remote store with an in-process fallback. Reads
// and writes go to redis first; any transport failure (including an open
// breaker) degrades to the local store so evaluation latency stays bounded.
type Tiered struct {
	remote   *Redis
	local    *Local
	recorder FallbackRecorder
	logger   *zap.Logger

	fallbacks uint64
}

// NewTiered composes the remote and local stores
func NewTiered(remote *Redis, local *Local, recorder FallbackRecorder, logger *zap.Logger) *Tiered {
	if local == nil {
		local = NewLocal(0)
	}
	if recorder == nil {
		recorder = noopFallbackRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tiered{
		remote:   remote,
		local:    local,
		recorder: recorder,
		logger:   logger,
	}
}

func (c *Tiered) recordFallback() {
	atomic.AddUint64(&c.fallbacks, 1)
	c.recorder.RecordCacheFallback()
}

// Get reads from redis, falling back to the local store on failure
func (c *Tiered) Get(ctx context.Context, fingerprint string) (*types.Decision, bool) {
	if c.remote != nil {
		decision, found, err := c.remote.Get(ctx, fingerprint)
		if err == nil {
			return decision, found
		}
		c.recordFallback()
		c.logger.Debug("Remote cache get failed, using local fallback",
			zap.Error(err),
		)
	}
	return c.local.Get(ctx, fingerprint)
}

// Set writes to both tiers. A remote failure is absorbed; the local copy
// still serves until the remote recovers.
func (c *Tiered) Set(ctx context.Context, fingerprint string, decision *types.Decision, ttl time.Duration) {
	if c.remote != nil {
		if err := c.remote.Set(ctx, fingerprint, decision, ttl); err != nil {
			c.recordFallback()
			c.logger.Debug("Remote cache set failed",
				zap.Error(err),
			)
		}
	}
	c.local.Set(ctx, fingerprint, decision, ttl)
}

// Delete removes the fingerprint from both tiers
func (c *Tiered) Delete(ctx context.Context, fingerprint string) {
	if c.remote != nil {
		if err := c.remote.Delete(ctx, fingerprint); err != nil {
			c.logger.Warn("Remote cache delete failed",
				zap.String("fingerprint", fingerprint),
				zap.Error(err),
			)
		}
	}
	c.local.Delete(ctx, fingerprint)
}

// DeletePattern invalidates every entry whose fingerprint starts with the
// given tenant segment, in both tiers.
func (c *Tiered) DeletePattern(ctx context.Context, pattern string) int {
	removed := 0
	if c.remote != nil {
		n, err := c.remote.DeletePattern(ctx, pattern+":*")
		if err != nil {
			c.logger.Warn("Remote cache pattern delete failed",
				zap.String("pattern", pattern),
				zap.Error(err),
			)
		}
		removed += n
	}
	removed += c.local.DeletePattern(ctx, pattern)
	return removed
}

// Clear flushes both tiers
func (c *Tiered) Clear(ctx context.Context) {
	if c.remote != nil {
		if err := c.remote.Clear(ctx); err != nil {
			c.logger.Warn("Remote cache clear failed", zap.Error(err))
		}
	}
	c.local.Clear(ctx)
}

// Stats merges remote and local statistics. Connected reflects the remote
// tier; a nil remote reports as disconnected with local-only counters.
func (c *Tiered) Stats() Stats {
	localStats := c.local.Stats()
	if c.remote == nil {
		localStats.Connected = false
		localStats.Fallbacks = atomic.LoadUint64(&c.fallbacks)
		return localStats
	}

	// Each lookup lands in exactly one tier (local is only consulted when
	// the remote fails), so the merged counters describe real traffic
	remoteStats := c.remote.Stats()
	hits := remoteStats.Hits + localStats.Hits
	misses := remoteStats.Misses + localStats.Misses
	rate := 0.0
	if hits+misses > 0 {
		rate = float64(hits) / float64(hits+misses)
	}
	return Stats{
		Size:      remoteStats.Size,
		Hits:      hits,
		Misses:    misses,
		HitRate:   rate,
		Connected: remoteStats.Connected,
		Fallbacks: atomic.LoadUint64(&c.fallbacks),
	}
}

// Close releases the remote connection
func (c *Tiered) Close() error {
	if c.remote != nil {
		return c.remote.Close()
	}
	return nil
}
