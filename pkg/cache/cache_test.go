package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	Day   int     `json:"day"`
	Close float64 `json:"close"`
}

func TestMemoryCache_TypedRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	in := []point{{1, 100.5}, {2, 101}}
	require.NoError(t, mc.Set(ctx, "series:a", in, time.Minute))

	var out []point
	require.NoError(t, mc.Get(ctx, "series:a", &out))
	assert.Equal(t, in, out)

	var s string
	require.NoError(t, mc.Set(ctx, "plain", "value", 0))
	require.NoError(t, mc.Get(ctx, "plain", &s))
	assert.Equal(t, "value", s)

	assert.ErrorIs(t, mc.Get(ctx, "missing", &s), ErrCacheMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set(ctx, "k", 1, time.Second))
	ok, _ := mc.Exists(ctx, "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	var v int
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryCleanup(0))
	defer mc.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { now = now.Add(time.Millisecond); return now }

	require.NoError(t, mc.Set(ctx, "a", 1, time.Hour))
	require.NoError(t, mc.Set(ctx, "b", 2, time.Hour))
	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	require.NoError(t, mc.Set(ctx, "c", 3, time.Hour))

	assert.NoError(t, mc.Get(ctx, "a", &v))
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "c", &v))
}

func TestMemoryCache_DeleteByPattern(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	for _, k := range []string{"catalog:tables:db1", "catalog:columns:db1:t", "series:x"} {
		require.NoError(t, mc.Set(ctx, k, k, time.Minute))
	}
	require.NoError(t, mc.DeleteByPattern(ctx, BuildPattern("catalog:")))
	assert.Equal(t, 1, mc.Len())
}

func TestMemoryCache_TryLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	ok, err := mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = mc.TryLock(ctx, "lock", time.Minute)
	assert.False(t, ok)
	require.NoError(t, mc.Unlock(ctx, "lock"))
	ok, _ = mc.TryLock(ctx, "lock", time.Minute)
	assert.True(t, ok)
}

func TestMemoryCache_LockSurvivesEviction(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryCleanup(0))
	defer mc.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { now = now.Add(time.Millisecond); return now }

	ok, err := mc.TryLock(ctx, "schedule:nightly", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, mc.Set(ctx, k, k, time.Hour))
	}
	require.NoError(t, mc.DeleteByPattern(ctx, "*"))

	ok, _ = mc.TryLock(ctx, "schedule:nightly", time.Hour)
	assert.False(t, ok, "lock must outlive LRU eviction")
}

func TestMemoryCache_LockExpires(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	ok, _ := mc.TryLock(ctx, "lock", time.Second)
	require.True(t, ok)
	now = now.Add(2 * time.Second)
	ok, _ = mc.TryLock(ctx, "lock", time.Second)
	assert.True(t, ok)
}

func TestLayeredCache_FillsL1FromL2(t *testing.T) {
	ctx := context.Background()
	l2 := NewMemoryCache()
	lc := NewLayeredCache(l2, WithLayeredMemoryTTL(time.Minute))
	defer lc.Close()

	require.NoError(t, l2.Set(ctx, "k", point{1, 2}, time.Hour))

	var p point
	require.NoError(t, lc.Get(ctx, "k", &p))
	assert.Equal(t, point{1, 2}, p)

	require.NoError(t, l2.Delete(ctx, "k"))
	p = point{}
	require.NoError(t, lc.Get(ctx, "k", &p), "served from L1")
	assert.Equal(t, point{1, 2}, p)

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &p), ErrCacheMiss)
}

func TestGetOrLoad(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"db1", "db2"}, nil
	}

	v, hit, err := GetOrLoad(ctx, mc, "dbs", time.Minute, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"db1", "db2"}, v)

	v, hit, err = GetOrLoad(ctx, mc, "dbs", time.Minute, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"db1", "db2"}, v)
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, _, err = GetOrLoad(ctx, mc, "other", time.Minute, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	v, hit, err = GetOrLoad[[]string](ctx, nil, "dbs", time.Minute, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, v, 2)
}
