package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdp-engine/go-core/pkg/types"
)

func TestTiered_ReadThroughRemote(t *testing.T) {
	remote, _ := setupMiniredisTest(t)
	tiered := NewTiered(remote, NewLocal(10), nil, nil)
	ctx := context.Background()

	tiered.Set(ctx, "tenant-1:abc", testDecision(types.OutcomePermit, types.ReasonPolicySatisfied), time.Minute)

	got, found := tiered.Get(ctx, "tenant-1:abc")
	require.True(t, found)
	assert.Equal(t, types.OutcomePermit, got.Outcome)
}

func TestTiered_FallsBackToLocalWhenRemoteDown(t *testing.T) {
	remote := brokenRedisCache(t)
	local := NewLocal(10)
	tiered := NewTiered(remote, local, nil, nil)
	ctx := context.Background()

	// The write fails remotely but lands in the local tier
	tiered.Set(ctx, "tenant-1:abc", testDecision(types.OutcomeDeny, types.ReasonTenantMismatch), time.Minute)

	got, found := tiered.Get(ctx, "tenant-1:abc")
	require.True(t, found)
	assert.Equal(t, types.OutcomeDeny, got.Outcome)

	stats := tiered.Stats()
	assert.False(t, stats.Connected)
	assert.Greater(t, stats.Fallbacks, uint64(0))
}

type countingRecorder struct {
	fallbacks int
}

func (r *countingRecorder) RecordCacheFallback() {
	r.fallbacks++
}

func TestTiered_FallbackSignalsRecorder(t *testing.T) {
	remote := brokenRedisCache(t)
	recorder := &countingRecorder{}
	tiered := NewTiered(remote, NewLocal(10), recorder, nil)
	ctx := context.Background()

	// Both the failed write and the failed read bypass the remote tier
	tiered.Set(ctx, "tenant-1:abc", testDecision(types.OutcomePermit, types.ReasonPolicySatisfied), time.Minute)
	tiered.Get(ctx, "tenant-1:abc")

	assert.Equal(t, 2, recorder.fallbacks)
	assert.Equal(t, uint64(2), tiered.Stats().Fallbacks)
}

func TestTiered_StatsMergeAcrossTiers(t *testing.T) {
	remote := brokenRedisCache(t)
	tiered := NewTiered(remote, NewLocal(10), nil, nil)
	ctx := context.Background()

	tiered.Set(ctx, "tenant-1:abc", testDecision(types.OutcomePermit, types.ReasonPolicySatisfied), time.Minute)

	_, found := tiered.Get(ctx, "tenant-1:abc")
	require.True(t, found)
	_, found = tiered.Get(ctx, "tenant-1:missing")
	require.False(t, found)

	// Lookups served by the fallback tier still count toward the rate
	stats := tiered.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)
}

func TestTiered_LocalOnlyWhenRemoteNil(t *testing.T) {
	tiered := NewTiered(nil, NewLocal(10), nil, nil)
	ctx := context.Background()

	tiered.Set(ctx, "tenant-1:abc", testDecision(types.OutcomePermit, types.ReasonPolicySatisfied), time.Minute)

	_, found := tiered.Get(ctx, "tenant-1:abc")
	assert.True(t, found)
	assert.False(t, tiered.Stats().Connected)
}

func TestTiered_DeleteRemovesBothTiers(t *testing.T) {
	remote, _ := setupMiniredisTest(t)
	local := NewLocal(10)
	tiered := NewTiered(remote, local, nil, nil)
	ctx := context.Background()

	tiered.Set(ctx, "tenant-1:abc", testDecision(types.OutcomePermit, types.ReasonPolicySatisfied), time.Minute)
	tiered.Delete(ctx, "tenant-1:abc")

	_, found := tiered.Get(ctx, "tenant-1:abc")
	assert.False(t, found)
	_, found = local.Get(ctx, "tenant-1:abc")
	assert.False(t, found)
}

func TestTiered_DeletePatternClearsTenantEverywhere(t *testing.T) {
	remote, _ := setupMiniredisTest(t)
	local := NewLocal(10)
	tiered := NewTiered(remote, local, nil, nil)
	ctx := context.Background()

	tiered.Set(ctx, "tenant-1:aaa", testDecision(types.OutcomePermit, types.ReasonPolicySatisfied), time.Minute)
	tiered.Set(ctx, "tenant-2:bbb", testDecision(types.OutcomePermit, types.ReasonPolicySatisfied), time.Minute)

	removed := tiered.DeletePattern(ctx, "tenant-1")
	// Both tiers held the entry
	assert.Equal(t, 2, removed)

	_, found := tiered.Get(ctx, "tenant-1:aaa")
	assert.False(t, found)
	_, found = tiered.Get(ctx, "tenant-2:bbb")
	assert.True(t, found)
}

func TestTiered_Clear(t *testing.T) {
	remote, _ := setupMiniredisTest(t)
	tiered := NewTiered(remote, NewLocal(10), nil, nil)
	ctx := context.Background()

	tiered.Set(ctx, "tenant-1:abc", testDecision(types.OutcomePermit, types.ReasonPolicySatisfied), time.Minute)
	tiered.Clear(ctx)

	_, found := tiered.Get(ctx, "tenant-1:abc")
	assert.False(t, found)
}
