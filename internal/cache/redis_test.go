// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betspecs/betspecs/internal/odds"
)

// setupMiniRedis starts an in-process Redis and a cache talking to it.
func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := &RedisCache{client: client, prefix: "test:", logger: zerolog.Nop()}
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestRedisCache_SetGet(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte(`{"a":1}`), 5*time.Minute)
	assert.True(t, mr.Exists("test:k"))

	val, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(val))

	_, ok = c.Get(ctx, "missing")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.CurrentSize)
}

func TestRedisCache_TTL(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	mr.FastForward(2 * time.Minute)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisCache_Delete(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Minute)
	c.Delete(ctx, "a", "b")

	assert.False(t, mr.Exists("test:a"))
	assert.False(t, mr.Exists("test:b"))
	assert.Equal(t, int64(2), c.Stats().Evictions)
}

func TestRedisCache_ServerDown(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()
	mr.Close()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Error(t, c.Ping(ctx))
	assert.Equal(t, int64(0), c.Stats().Sets)
}

func TestNew_Backends(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	c, err := New(ctx, Options{Backend: "redis", RedisAddr: mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &RedisCache{}, c)
	require.NoError(t, c.Close())

	c, err = New(ctx, Options{Backend: "memory", MaxItems: 10}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)
	require.NoError(t, c.Close())

	_, err = New(ctx, Options{Backend: "memcached"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestEventCache(t *testing.T) {
	_, backend := setupMiniRedis(t)
	ctx := context.Background()
	ec := NewEventCache(backend, time.Minute, zerolog.Nop())

	evt := &odds.Event{
		ID:       "evt_101",
		HomeTeam: "Golden State Warriors",
		AwayTeam: "Los Angeles Lakers",
		Markets: []odds.Market{{
			ID:   "mkt_101_ml",
			Type: odds.MarketMoneyline,
			Lines: []odds.Line{
				{Selection: "Golden State Warriors", Odds: decimal.NewFromInt(-150), Format: odds.FormatAmerican},
			},
		}},
	}

	_, ok := ec.Get(ctx, "evt_101")
	assert.False(t, ok)

	ec.Put(ctx, evt)
	got, ok := ec.Get(ctx, "evt_101")
	require.True(t, ok)
	assert.Equal(t, evt.HomeTeam, got.HomeTeam)
	require.Len(t, got.Markets, 1)
	assert.True(t, decimal.NewFromInt(-150).Equal(got.Markets[0].Lines[0].Odds))

	ec.Invalidate(ctx, "evt_101")
	_, ok = ec.Get(ctx, "evt_101")
	assert.False(t, ok)

	// Garbage in the backend is treated as a miss and removed.
	backend.Set(ctx, eventKeyPrefix+"evt_bad", []byte("{"), time.Minute)
	_, ok = ec.Get(ctx, "evt_bad")
	assert.False(t, ok)
	_, ok = backend.Get(ctx, eventKeyPrefix+"evt_bad")
	assert.False(t, ok)
}
