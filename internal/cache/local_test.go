package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdp-engine/go-core/pkg/types"
)

func testDecision(outcome types.Outcome, reason types.ReasonCode) *types.Decision {
	return &types.Decision{
		Outcome:     outcome,
		Reason:      reason,
		Resource:    "portal",
		Action:      "read",
		EvaluatedAt: time.Now(),
	}
}

func TestLocal_SetAndGet(t *testing.T) {
	c := NewLocal(10)
	ctx := context.Background()

	d := testDecision(types.OutcomePermit, types.ReasonPolicySatisfied)
	c.Set(ctx, "tenant-1:abc", d, time.Minute)

	got, found := c.Get(ctx, "tenant-1:abc")
	require.True(t, found)
	assert.Equal(t, types.OutcomePermit, got.Outcome)
	assert.Equal(t, types.ReasonPolicySatisfied, got.Reason)

	_, found = c.Get(ctx, "tenant-1:missing")
	assert.False(t, found)
}

func TestLocal_Expiry(t *testing.T) {
	c := NewLocal(10)
	ctx := context.Background()

	c.Set(ctx, "tenant-1:abc", testDecision(types.OutcomeDeny, types.ReasonMissingPermission), 10*time.Millisecond)

	_, found := c.Get(ctx, "tenant-1:abc")
	assert.True(t, found)

	time.Sleep(30 * time.Millisecond)
	_, found = c.Get(ctx, "tenant-1:abc")
	assert.False(t, found)
}

func TestLocal_ZeroTTLNotStored(t *testing.T) {
	c := NewLocal(10)
	ctx := context.Background()

	c.Set(ctx, "tenant-1:abc", testDecision(types.OutcomePermit, types.ReasonPolicySatisfied), 0)
	_, found := c.Get(ctx, "tenant-1:abc")
	assert.False(t, found)
}

func TestLocal_LRUEviction(t *testing.T) {
	c := NewLocal(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		c.Set(ctx, fmt.Sprintf("t:%d", i), testDecision(types.OutcomePermit, types.ReasonPolicySatisfied), time.Minute)
	}

	// Touch the oldest entry so it becomes the most recent
	_, found := c.Get(ctx, "t:0")
	require.True(t, found)

	c.Set(ctx, "t:3", testDecision(types.OutcomePermit, types.ReasonPolicySatisfied), time.Minute)

	_, found = c.Get(ctx, "t:0")
	assert.True(t, found, "recently used entry survives eviction")
	_, found = c.Get(ctx, "t:1")
	assert.False(t, found, "least recently used entry is evicted")
}

func TestLocal_DeletePatternMatchesTenantSegment(t *testing.T) {
	c := NewLocal(10)
	ctx := context.Background()

	c.Set(ctx, "tenant-1:aaa", testDecision(types.OutcomePermit, types.ReasonPolicySatisfied), time.Minute)
	c.Set(ctx, "tenant-1:bbb", testDecision(types.OutcomeDeny, types.ReasonMissingPermission), time.Minute)
	c.Set(ctx, "tenant-2:ccc", testDecision(types.OutcomePermit, types.ReasonPolicySatisfied), time.Minute)

	removed := c.DeletePattern(ctx, "tenant-1")
	assert.Equal(t, 2, removed)

	_, found := c.Get(ctx, "tenant-1:aaa")
	assert.False(t, found)
	_, found = c.Get(ctx, "tenant-2:ccc")
	assert.True(t, found, "other tenants are untouched")
}

func TestLocal_DeletePatternNoPrefixCollision(t *testing.T) {
	c := NewLocal(10)
	ctx := context.Background()

	c.Set(ctx, "tenant-1:aaa", testDecision(types.OutcomePermit, types.ReasonPolicySatisfied), time.Minute)
	c.Set(ctx, "tenant-10:bbb", testDecision(types.OutcomePermit, types.ReasonPolicySatisfied), time.Minute)

	removed := c.DeletePattern(ctx, "tenant-1")
	assert.Equal(t, 1, removed)

	_, found := c.Get(ctx, "tenant-10:bbb")
	assert.True(t, found)
}

func TestLocal_ClearAndStats(t *testing.T) {
	c := NewLocal(10)
	ctx := context.Background()

	c.Set(ctx, "tenant-1:aaa", testDecision(types.OutcomePermit, types.ReasonPolicySatisfied), time.Minute)
	c.Get(ctx, "tenant-1:aaa")
	c.Get(ctx, "tenant-1:missing")

	stats := c.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)
	assert.True(t, stats.Connected)

	c.Clear(ctx)
	assert.Equal(t, 0, c.Stats().Size)
}
