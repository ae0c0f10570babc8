// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betspecs/betspecs/internal/config"
)

const bootSnapshot = `{"provider":"pinnacle","captured_at":"2026-10-18T12:00:00Z","events":[{
  "event_id":"evt_101","sport":"basketball","league":"NBA",
  "home_team":"Golden State Warriors","away_team":"Los Angeles Lakers",
  "start_time":"2026-10-19T02:00:00Z",
  "markets":[{"market_id":"mkt_101_ml","market_type":"moneyline","lines":[
    {"selection":"Golden State Warriors","odds":-150},
    {"selection":"Los Angeles Lakers","odds":130}]}]}]}`

func testConfig(t *testing.T) config.AppConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.Version = "test"
	cfg.DataDir = t.TempDir()
	cfg.ListenAddr = reserveListenAddr(t)
	cfg.RateLimit.Enabled = false
	return cfg
}

func TestBootstrap_ServesAPI(t *testing.T) {
	cfg := testConfig(t)
	holder := config.NewConfigHolder(cfg, config.NewLoader("", "test"))

	rt, err := Bootstrap(context.Background(), holder)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()
	require.NoError(t, waitForListen(cfg.ListenAddr, 2*time.Second))

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 5 * time.Second}
	base := "http://" + cfg.ListenAddr

	resp, err := client.Get(base + "/readyz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Post(base+"/api/v1/snapshots", "application/json", strings.NewReader(bootSnapshot))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(base + "/api/v1/events/evt_101")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Golden State Warriors")

	// Generation is off without an API key.
	resp, err = client.Post(base+"/api/v1/predictions", "application/json", strings.NewReader(`{"event_id":"evt_101"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runtime did not stop")
	}
	assert.FileExists(t, filepath.Join(cfg.DataDir, "betspecs.db"))
}

func TestBootstrap_BadCacheBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Backend = "memcached"
	_, err := Bootstrap(context.Background(), config.NewConfigHolder(cfg, config.NewLoader("", "test")))
	assert.Error(t, err)
}

func TestRuntime_ApplyConfig(t *testing.T) {
	cfg := testConfig(t)
	rt, err := Bootstrap(context.Background(), config.NewConfigHolder(cfg, config.NewLoader("", "test")))
	require.NoError(t, err)
	t.Cleanup(func() {
		// Starting with a canceled context shuts straight down and runs the
		// close hooks for the store and cache.
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_ = rt.Manager.Start(ctx)
	})

	_, ok := rt.aliases.Canonical("LAL")
	assert.False(t, ok)

	aliases := filepath.Join(cfg.DataDir, "aliases.yaml")
	require.NoError(t, os.WriteFile(aliases, []byte("Los Angeles Lakers: [Lakers, LAL]\n"), 0o600))

	next := cfg
	next.Trust.Tolerance = 0.5
	next.Trust.AliasesFile = aliases
	rt.ApplyConfig(next)

	assert.True(t, decimal.RequireFromString("0.5").Equal(rt.validator.Config().Tolerance))
	canonical, ok := rt.aliases.Canonical("LAL")
	assert.True(t, ok)
	assert.Equal(t, "Los Angeles Lakers", canonical)

	// A broken alias file keeps the previous registry.
	require.NoError(t, os.WriteFile(aliases, []byte("{not yaml"), 0o600))
	rt.ApplyConfig(next)
	_, ok = rt.aliases.Canonical("LAL")
	assert.True(t, ok)

	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })
	next.LogLevel = "debug"
	rt.ApplyConfig(next)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}
