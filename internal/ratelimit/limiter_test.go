// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ratelimit

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestLimiter_GlobalBurst(t *testing.T) {
	l := New(Config{
		GlobalRate:  rate.Every(time.Hour),
		GlobalBurst: 5,
		PerKeyRate:  rate.Inf,
		PerKeyBurst: 100,
	})

	allowed := 0
	for i := 0; i < 10; i++ {
		if l.Allow("evt_101") {
			allowed++
		}
	}
	assert.Equal(t, 5, allowed)
}

func TestLimiter_PerKeyIsolation(t *testing.T) {
	l := New(Config{
		GlobalRate:  rate.Inf,
		GlobalBurst: 100,
		PerKeyRate:  rate.Every(time.Hour),
		PerKeyBurst: 2,
	})

	assert.True(t, l.Allow("evt_101"))
	assert.True(t, l.Allow("evt_101"))
	assert.False(t, l.Allow("evt_101"))

	assert.True(t, l.Allow("evt_202"), "other events keep their own budget")
	assert.Equal(t, 2, l.Len())
}

func TestLimiter_Wait(t *testing.T) {
	l := New(Config{
		GlobalRate:  rate.Every(time.Hour),
		GlobalBurst: 1,
		PerKeyRate:  rate.Inf,
		PerKeyBurst: 10,
	})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "evt_101"))

	// The next token is an hour away, beyond the deadline.
	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, "evt_101")
	assert.True(t, errors.Is(err, ErrLimited))
}

func TestLimiter_WaitPerKeyFailsFast(t *testing.T) {
	l := New(Config{
		GlobalRate:  rate.Inf,
		GlobalBurst: 10,
		PerKeyRate:  rate.Every(time.Hour),
		PerKeyBurst: 1,
	})
	require.NoError(t, l.Wait(context.Background(), "evt_101"))

	start := time.Now()
	err := l.Wait(context.Background(), "evt_101")
	assert.ErrorIs(t, err, ErrLimited)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLimiter_SetGlobal(t *testing.T) {
	l := New(Config{GlobalRate: rate.Every(time.Hour), GlobalBurst: 1, PerKeyRate: rate.Inf, PerKeyBurst: 10})
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	l.SetGlobal(rate.Inf, 10)
	assert.True(t, l.Allow("a"))
}

func TestLimiter_CleanupIdleKeys(t *testing.T) {
	l := New(Config{GlobalRate: rate.Inf, GlobalBurst: 1, PerKeyRate: rate.Inf, PerKeyBurst: 1, CleanupInterval: time.Minute})
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.lastCleanup = now

	l.Allow("evt_101")
	l.Allow("evt_202")
	assert.Equal(t, 2, l.Len())

	now = now.Add(2 * time.Minute)
	l.Allow("evt_303")
	assert.Equal(t, 1, l.Len())
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"remote addr", "10.0.0.1:1234", "", "", "10.0.0.1"},
		{"forwarded chain", "10.0.0.1:1234", "203.0.113.9, 10.0.0.2", "", "203.0.113.9"},
		{"real ip", "10.0.0.1:1234", "", "198.51.100.7", "198.51.100.7"},
		{"no port", "10.0.0.1", "", "", "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, GetClientIP(r))
		})
	}
}
