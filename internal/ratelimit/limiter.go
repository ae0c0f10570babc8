// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ratelimit throttles prediction generation: a global budget for
// upstream LLM calls plus a per-event budget so one event cannot starve
// the rest.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var rateLimitExceeded = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "betspecs",
		Name:      "ratelimit_exceeded_total",
		Help:      "Total rate limit rejections",
	},
	[]string{"limit_type"},
)

// Config holds rate limiting configuration
type Config struct {
	GlobalRate  rate.Limit // generations per second
	GlobalBurst int

	PerKeyRate  rate.Limit
	PerKeyBurst int

	// Cleanup interval for idle per-key limiters
	CleanupInterval time.Duration
}

// DefaultConfig allows one generation per second globally and one every
// ten seconds per event.
func DefaultConfig() Config {
	return Config{
		GlobalRate:      1,
		GlobalBurst:     3,
		PerKeyRate:      rate.Every(10 * time.Second),
		PerKeyBurst:     3,
		CleanupInterval: 5 * time.Minute,
	}
}

type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter combines a global and a per-key token bucket.
type Limiter struct {
	mu          sync.Mutex
	config      Config
	global      *rate.Limiter
	perKey      map[string]*keyLimiter
	lastCleanup time.Time
	now         func() time.Time
}

// New creates a new rate limiter with the given config
func New(config Config) *Limiter {
	return &Limiter{
		config:      config,
		global:      rate.NewLimiter(config.GlobalRate, config.GlobalBurst),
		perKey:      make(map[string]*keyLimiter),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// Allow reports whether a call for key may proceed now.
func (l *Limiter) Allow(key string) bool {
	kl := l.keyLimiter(key)
	if !kl.Allow() {
		rateLimitExceeded.WithLabelValues("per_key").Inc()
		return false
	}
	if !l.globalLimiter().Allow() {
		rateLimitExceeded.WithLabelValues("global").Inc()
		return false
	}
	return true
}

// Wait blocks until a call for key may proceed or ctx is done. The per-key
// budget is checked without waiting; only the global budget queues.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if !l.keyLimiter(key).Allow() {
		rateLimitExceeded.WithLabelValues("per_key").Inc()
		return fmt.Errorf("%w: %s", ErrLimited, key)
	}
	if err := l.globalLimiter().Wait(ctx); err != nil {
		rateLimitExceeded.WithLabelValues("global").Inc()
		return fmt.Errorf("%w: %w", ErrLimited, err)
	}
	return nil
}

// ErrLimited is returned by Wait when a budget is exhausted.
var ErrLimited = errors.New("rate limited")

// SetGlobal changes the global budget in place.
func (l *Limiter) SetGlobal(r rate.Limit, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.GlobalRate, l.config.GlobalBurst = r, burst
	l.global.SetLimit(r)
	l.global.SetBurst(burst)
}

func (l *Limiter) globalLimiter() *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.global
}

func (l *Limiter) keyLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanupLocked(now)

	kl, ok := l.perKey[key]
	if !ok {
		kl = &keyLimiter{limiter: rate.NewLimiter(l.config.PerKeyRate, l.config.PerKeyBurst)}
		l.perKey[key] = kl
	}
	kl.lastSeen = now
	return kl.limiter
}

// cleanupLocked drops limiters idle for longer than the cleanup interval.
func (l *Limiter) cleanupLocked(now time.Time) {
	if l.config.CleanupInterval <= 0 || now.Sub(l.lastCleanup) < l.config.CleanupInterval {
		return
	}
	for k, kl := range l.perKey {
		if now.Sub(kl.lastSeen) >= l.config.CleanupInterval {
			delete(l.perKey, k)
		}
	}
	l.lastCleanup = now
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.perKey)
}

// GetClientIP extracts the client IP, preferring proxy headers.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
