// Package cache provides decision memoization with a shared remote store and
// a degraded local fallback
package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pdp-engine/go-core/pkg/types"
)

// DecisionCache is the interface the evaluation engine memoizes through.
// The cache is a bounded-staleness optimization, never the source of truth:
// every implementation must degrade to misses rather than fail an evaluation.
type DecisionCache interface {
	Get(ctx context.Context, fingerprint string) (*types.Decision, bool)
	Set(ctx context.Context, fingerprint string, decision *types.Decision, ttl time.Duration)
	Delete(ctx context.Context, fingerprint string)
	DeletePattern(ctx context.Context, pattern string) int
	Clear(ctx context.Context)
	Stats() Stats
}

// Stats contains cache statistics and connectivity state
type Stats struct {
	Size      int     `json:"size"`
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	HitRate   float64 `json:"hitRate"`
	Connected bool    `json:"connected"`
	Fallbacks uint64  `json:"fallbacks,omitempty"`
}

// Local is an in-process LRU decision cache with per-entry TTL. It serves as
// the degraded fallback while the remote store is unreachable.
type Local struct {
	capacity int

	items map[string]*list.Element
	order *list.List
	mu    sync.Mutex

	hits   uint64
	misses uint64
}

type localEntry struct {
	key       string
	decision  *types.Decision
	expiresAt time.Time
}

// NewLocal creates a local decision cache
func NewLocal(capacity int) *Local {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Local{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get retrieves a decision if present and unexpired
func (c *Local) Get(_ context.Context, fingerprint string) (*types.Decision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[fingerprint]
	if !ok {
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}

	entry := elem.Value.(*localEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeElement(elem)
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}

	c.order.MoveToFront(elem)
	atomic.AddUint64(&c.hits, 1)
	return entry.decision, true
}

// Set stores a decision with its own TTL
func (c *Local) Set(_ context.Context, fingerprint string, decision *types.Decision, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[fingerprint]; ok {
		entry := elem.Value.(*localEntry)
		entry.decision = decision
		entry.expiresAt = time.Now().Add(ttl)
		c.order.MoveToFront(elem)
		return
	}

	for c.order.Len() >= c.capacity {
		c.evictOldest()
	}

	elem := c.order.PushFront(&localEntry{
		key:       fingerprint,
		decision:  decision,
		expiresAt: time.Now().Add(ttl),
	})
	c.items[fingerprint] = elem
}

// Delete removes one fingerprint
func (c *Local) Delete(_ context.Context, fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[fingerprint]; ok {
		c.removeElement(elem)
	}
}

// DeletePattern removes entries whose fingerprint starts with the given
// tenant segment. Fingerprints embed the target tenant as their first
// segment, so "tenant-1" clears every decision targeting that tenant.
func (c *Local) DeletePattern(_ context.Context, tenantID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := tenantID + ":"
	removed := 0
	var next *list.Element
	for elem := c.order.Front(); elem != nil; elem = next {
		next = elem.Next()
		entry := elem.Value.(*localEntry)
		if strings.HasPrefix(entry.key, prefix) {
			c.removeElement(elem)
			removed++
		}
	}
	return removed
}

// Clear removes all entries
func (c *Local) Clear(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Stats returns cache statistics
func (c *Local) Stats() Stats {
	c.mu.Lock()
	size := c.order.Len()
	c.mu.Unlock()

	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)
	total := hits + misses

	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Size:      size,
		Hits:      hits,
		Misses:    misses,
		HitRate:   hitRate,
		Connected: true,
	}
}

func (c *Local) removeElement(elem *list.Element) {
	entry := elem.Value.(*localEntry)
	delete(c.items, entry.key)
	c.order.Remove(elem)
}

func (c *Local) evictOldest() {
	if elem := c.order.Back(); elem != nil {
		c.removeElement(elem)
	}
}
