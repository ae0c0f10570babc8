// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/betspecs/betspecs/internal/metrics"
	"github.com/betspecs/betspecs/internal/odds"
)

const eventKeyPrefix = "event:"

// Options selects and sizes a backend.
type Options struct {
	Backend   string // memory|redis|none
	RedisAddr string
	RedisDB   int
	MaxItems  int
	TTL       time.Duration
}

// New builds the configured backend.
func New(ctx context.Context, opts Options, logger zerolog.Logger) (Cache, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemoryCache(opts.MaxItems, time.Minute), nil
	case "redis":
		return NewRedisCache(ctx, RedisConfig{Addr: opts.RedisAddr, DB: opts.RedisDB, Prefix: "betspecs:"}, logger)
	case "none":
		return NoOp{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}

// EventCache stores ground-truth events as JSON.
type EventCache struct {
	backend Cache
	ttl     time.Duration
	logger  zerolog.Logger
}

// NewEventCache wraps backend. A zero ttl defaults to 30s.
func NewEventCache(backend Cache, ttl time.Duration, logger zerolog.Logger) *EventCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &EventCache{backend: backend, ttl: ttl, logger: logger}
}

// Get returns a cached event.
func (c *EventCache) Get(ctx context.Context, id string) (*odds.Event, bool) {
	raw, ok := c.backend.Get(ctx, eventKeyPrefix+id)
	if !ok {
		metrics.RecordCacheLookup(false)
		return nil, false
	}
	var e odds.Event
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Warn().Err(err).Str("event_id", id).Msg("dropping undecodable cached event")
		c.backend.Delete(ctx, eventKeyPrefix+id)
		metrics.RecordCacheLookup(false)
		return nil, false
	}
	metrics.RecordCacheLookup(true)
	return &e, true
}

// Put caches e under its ID.
func (c *EventCache) Put(ctx context.Context, e *odds.Event) {
	raw, err := json.Marshal(e)
	if err != nil {
		c.logger.Warn().Err(err).Str("event_id", e.ID).Msg("event not cacheable")
		return
	}
	c.backend.Set(ctx, eventKeyPrefix+e.ID, raw, c.ttl)
}

// Invalidate drops the given events.
func (c *EventCache) Invalidate(ctx context.Context, ids ...string) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = eventKeyPrefix + id
	}
	c.backend.Delete(ctx, keys...)
}

// Backend returns the underlying cache.
func (c *EventCache) Backend() Cache { return c.backend }
