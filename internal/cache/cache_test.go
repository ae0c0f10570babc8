// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0, 0)
	defer c.Close()

	c.Set(ctx, "key1", []byte("value1"), 5*time.Minute)

	val, ok := c.Get(ctx, "key1")
	require.True(t, ok)
	assert.Equal(t, []byte("value1"), val)

	_, ok = c.Get(ctx, "nonexistent")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, 1, stats.CurrentSize)
}

func TestMemoryCache_Expiration(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0, 0)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(ctx, "short", []byte("v"), time.Second)
	_, ok := c.Get(ctx, "short")
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = c.Get(ctx, "short")
	assert.False(t, ok)

	assert.Equal(t, 1, c.deleteExpired())
	assert.Equal(t, 0, c.Stats().CurrentSize)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestMemoryCache_MaxItemsEvictsSoonestExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, 0)

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Hour)
	c.Set(ctx, "c", []byte("3"), time.Hour)

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok, "a expires first and is evicted")
	_, ok = c.Get(ctx, "b")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Stats().CurrentSize)

	// Overwriting an existing key does not evict.
	c.Set(ctx, "b", []byte("2b"), time.Hour)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestMemoryCache_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0, 0)

	c.Set(ctx, "k1", []byte("v"), time.Minute)
	c.Set(ctx, "k2", []byte("v"), time.Minute)
	c.Delete(ctx, "k1", "k2", "missing")
	assert.Equal(t, 0, c.Stats().CurrentSize)
}

func TestMemoryCache_JanitorStops(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0, 10*time.Millisecond)
	c.Set(ctx, "k", []byte("v"), time.Millisecond)

	require.Eventually(t, func() bool { return c.Stats().CurrentSize == 0 }, time.Second, 10*time.Millisecond)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestMemoryCache_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(50, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", (i*200+j)%80)
				c.Set(ctx, key, []byte("v"), time.Minute)
				c.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	stats := c.Stats()
	assert.LessOrEqual(t, stats.CurrentSize, 50)
	assert.Equal(t, int64(1600), stats.Sets)
	assert.Equal(t, int64(1600), stats.Hits+stats.Misses)
}

func TestNoOp(t *testing.T) {
	ctx := context.Background()
	var c Cache = NoOp{}
	c.Set(ctx, "k", []byte("v"), time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.NoError(t, c.Ping(ctx))
}
