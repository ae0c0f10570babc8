// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oasdiff/yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betspecs/betspecs/internal/validate"
)

// writeConfig marshals a map so tests never depend on YAML indentation.
func writeConfig(t *testing.T, path string, cfg map[string]interface{}) {
	t.Helper()
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BETSPECS_DATA_DIR", t.TempDir())

	cfg, err := NewLoader("", "1.2.3").Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 0.01, cfg.Trust.Tolerance)
	assert.Equal(t, 5*time.Minute, cfg.Trust.MaxStaleness)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 3, cfg.AI.MaxAttempts)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, map[string]interface{}{
		"dataDir":  dir,
		"logLevel": "debug",
		"trust": map[string]interface{}{
			"tolerance":    0.5,
			"maxStaleness": "2m",
		},
		"cache": map[string]interface{}{
			"backend":   "redis",
			"redisAddr": "localhost:6379",
		},
	})

	// ENV wins over the file.
	t.Setenv("BETSPECS_TRUST_TOLERANCE", "0.25")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	l := NewLoader(path, "dev")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 0.25, cfg.Trust.Tolerance)
	assert.Equal(t, 2*time.Minute, cfg.Trust.MaxStaleness)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.Contains(t, l.ConsumedEnvKeys, "BETSPECS_TRUST_TOLERANCE")
}

func TestLoad_CORSOrigins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, map[string]interface{}{
		"dataDir":     dir,
		"corsOrigins": []string{"https://a.example"},
	})

	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example"}, cfg.CORSOrigins)

	t.Setenv("BETSPECS_CORS_ORIGINS", " https://b.example, ,https://c.example ")
	cfg, err = NewLoader(path, "dev").Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://b.example", "https://c.example"}, cfg.CORSOrigins)
}

func TestLoad_StrictYAML(t *testing.T) {
	dir := t.TempDir()

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("dataDir: "+dir+"\nbouquets: [x]\n"), 0o600))
	_, err := NewLoader(unknown, "").Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownConfigField), "got %v", err)

	multi := filepath.Join(dir, "multi.yaml")
	require.NoError(t, os.WriteFile(multi, []byte("logLevel: info\n---\nlogLevel: debug\n"), 0o600))
	_, err = NewLoader(multi, "").Load()
	assert.ErrorContains(t, err, "multiple documents")

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	t.Setenv("BETSPECS_DATA_DIR", dir)
	_, err = NewLoader(empty, "").Load()
	assert.NoError(t, err)

	_, err = NewLoader(filepath.Join(dir, "config.toml"), "").Load()
	assert.ErrorContains(t, err, "only YAML supported")
}

func TestLoad_ValidationAccumulates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, map[string]interface{}{
		"dataDir":  dir,
		"logLevel": "loud",
		"cache":    map[string]interface{}{"backend": "redis"},
		"ai":       map[string]interface{}{"maxAttempts": 0},
	})

	_, err := NewLoader(path, "").Load()
	require.Error(t, err)

	var ve validate.ValidationError
	require.True(t, errors.As(err, &ve))
	fields := map[string]bool{}
	for _, e := range ve.Errors() {
		fields[e.Field] = true
	}
	assert.True(t, fields["logLevel"])
	assert.True(t, fields["cache.redisAddr"])
	assert.True(t, fields["ai.maxAttempts"])
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("BETSPECS_DATA_DIR", t.TempDir())
	t.Setenv("BETSPECS_TRUST_MAX_STALENESS", "five minutes")
	t.Setenv("BETSPECS_RATELIMIT_ENABLED", "maybe")

	cfg, err := NewLoader("", "").Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Trust.MaxStaleness)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestConfigHolder_ReloadNotifiesListeners(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, map[string]interface{}{"dataDir": dir})

	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)

	holder := NewConfigHolder(initial, loader)
	ch := make(chan AppConfig, 1)
	holder.RegisterListener(ch)

	writeConfig(t, path, map[string]interface{}{
		"dataDir": dir,
		"trust":   map[string]interface{}{"tolerance": 0.05},
	})
	require.NoError(t, holder.Reload(context.Background()))

	select {
	case cfg := <-ch:
		assert.Equal(t, 0.05, cfg.Trust.Tolerance)
	default:
		t.Fatal("listener not notified")
	}
	assert.Equal(t, 0.05, holder.Get().Trust.Tolerance)

	// An invalid file keeps the previous configuration.
	writeConfig(t, path, map[string]interface{}{"dataDir": dir, "logLevel": "loud"})
	require.Error(t, holder.Reload(context.Background()))
	assert.Equal(t, 0.05, holder.Get().Trust.Tolerance)
}

func TestConfigHolder_Watcher(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BETSPECS_DATA_DIR", dir)
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, map[string]interface{}{"dataDir": dir})

	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)

	holder := NewConfigHolder(initial, loader)
	holder.debounce = 10 * time.Millisecond
	ch := make(chan AppConfig, 4)
	holder.RegisterListener(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, holder.StartWatcher(ctx))

	writeConfig(t, path, map[string]interface{}{"dataDir": dir, "logLevel": "warn"})

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-ch:
			if cfg.LogLevel == "warn" {
				return
			}
		case <-deadline:
			t.Fatal("watcher did not reload")
		}
	}
}

func TestStartWatcher_NoFile(t *testing.T) {
	holder := NewConfigHolder(Defaults(), NewLoader("", ""))
	assert.NoError(t, holder.StartWatcher(context.Background()))
}
