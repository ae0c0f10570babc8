// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// ConfigPath returns the YAML file the loader reads, if any.
func (l *Loader) ConfigPath() string { return l.configPath }

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		ListenAddr: ":8080",
		DataDir:    "data",
		LogLevel:   "info",
		LogService: "betspecs",
		Trust: TrustConfig{
			Tolerance:    0.01,
			MaxStaleness: 5 * time.Minute,
			LogCapacity:  10000,
		},
		Cache: CacheConfig{
			Backend:  "memory",
			TTL:      30 * time.Second,
			MaxItems: 1000,
		},
		Ingest: IngestConfig{
			PollInterval: 15 * time.Second,
			NATSSubject:  "odds.snapshots",
		},
		AI: AIConfig{
			Model:             "claude-sonnet-4-5",
			MaxTokens:         1024,
			MaxAttempts:       3,
			RequestsPerSecond: 1,
			MaxConcurrent:     2,
			Timeout:           60 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 120,
		},
	}
}

// Load loads configuration with precedence: ENV > File > Defaults.
// It enforces Parse File (Strict) -> Apply Env -> Validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return parseFile(data)
}

func parseFile(data []byte) (*FileConfig, error) {
	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

func mergeFileConfig(cfg *AppConfig, f *FileConfig) error {
	setString(&cfg.ListenAddr, f.ListenAddr)
	setString(&cfg.DataDir, f.DataDir)
	setString(&cfg.LogLevel, f.LogLevel)
	setString(&cfg.LogService, f.LogService)
	setString(&cfg.APIToken, f.APIToken)
	if len(f.CORSOrigins) > 0 {
		cfg.CORSOrigins = f.CORSOrigins
	}

	if t := f.Trust; t != nil {
		setPtr(&cfg.Trust.Tolerance, t.Tolerance)
		setPtr(&cfg.Trust.LogCapacity, t.LogCapacity)
		setString(&cfg.Trust.AliasesFile, t.AliasesFile)
		if err := setDuration(&cfg.Trust.MaxStaleness, "trust.maxStaleness", t.MaxStaleness); err != nil {
			return err
		}
	}
	if c := f.Cache; c != nil {
		setString(&cfg.Cache.Backend, c.Backend)
		setString(&cfg.Cache.RedisAddr, c.RedisAddr)
		setPtr(&cfg.Cache.RedisDB, c.RedisDB)
		setPtr(&cfg.Cache.MaxItems, c.MaxItems)
		if err := setDuration(&cfg.Cache.TTL, "cache.ttl", c.TTL); err != nil {
			return err
		}
	}
	if i := f.Ingest; i != nil {
		setString(&cfg.Ingest.PollURL, i.PollURL)
		setString(&cfg.Ingest.NATSURL, i.NATSURL)
		setString(&cfg.Ingest.NATSSubject, i.NATSSubject)
		if err := setDuration(&cfg.Ingest.PollInterval, "ingest.pollInterval", i.PollInterval); err != nil {
			return err
		}
	}
	if a := f.AI; a != nil {
		setString(&cfg.AI.Model, a.Model)
		setPtr(&cfg.AI.MaxTokens, a.MaxTokens)
		setPtr(&cfg.AI.MaxAttempts, a.MaxAttempts)
		setPtr(&cfg.AI.RequestsPerSecond, a.RequestsPerSecond)
		setPtr(&cfg.AI.MaxConcurrent, a.MaxConcurrent)
		if err := setDuration(&cfg.AI.Timeout, "ai.timeout", a.Timeout); err != nil {
			return err
		}
	}
	if t := f.Telemetry; t != nil {
		setPtr(&cfg.Telemetry.Enabled, t.Enabled)
		setString(&cfg.Telemetry.Exporter, t.Exporter)
		setString(&cfg.Telemetry.Endpoint, t.Endpoint)
		setPtr(&cfg.Telemetry.SamplingRate, t.SamplingRate)
	}
	if r := f.RateLimit; r != nil {
		setPtr(&cfg.RateLimit.Enabled, r.Enabled)
		setPtr(&cfg.RateLimit.RequestsPerMinute, r.RequestsPerMinute)
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.ListenAddr = l.envString(EnvPrefix+"LISTEN_ADDR", cfg.ListenAddr)
	cfg.DataDir = l.envString(EnvPrefix+"DATA_DIR", cfg.DataDir)
	cfg.LogLevel = l.envString(EnvPrefix+"LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString(EnvPrefix+"LOG_SERVICE", cfg.LogService)
	cfg.APIToken = l.envString(EnvPrefix+"API_TOKEN", cfg.APIToken)
	if origins := l.envString(EnvPrefix+"CORS_ORIGINS", ""); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	cfg.Trust.Tolerance = l.envFloat(EnvPrefix+"TRUST_TOLERANCE", cfg.Trust.Tolerance)
	cfg.Trust.MaxStaleness = l.envDuration(EnvPrefix+"TRUST_MAX_STALENESS", cfg.Trust.MaxStaleness)
	cfg.Trust.AliasesFile = l.envString(EnvPrefix+"TRUST_ALIASES_FILE", cfg.Trust.AliasesFile)
	cfg.Trust.LogCapacity = l.envInt(EnvPrefix+"TRUST_LOG_CAPACITY", cfg.Trust.LogCapacity)

	cfg.Cache.Backend = l.envString(EnvPrefix+"CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.RedisAddr = l.envString(EnvPrefix+"CACHE_REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisDB = l.envInt(EnvPrefix+"CACHE_REDIS_DB", cfg.Cache.RedisDB)
	cfg.Cache.TTL = l.envDuration(EnvPrefix+"CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.MaxItems = l.envInt(EnvPrefix+"CACHE_MAX_ITEMS", cfg.Cache.MaxItems)

	cfg.Ingest.PollURL = l.envString(EnvPrefix+"INGEST_POLL_URL", cfg.Ingest.PollURL)
	cfg.Ingest.PollInterval = l.envDuration(EnvPrefix+"INGEST_POLL_INTERVAL", cfg.Ingest.PollInterval)
	cfg.Ingest.NATSURL = l.envString(EnvPrefix+"INGEST_NATS_URL", cfg.Ingest.NATSURL)
	cfg.Ingest.NATSSubject = l.envString(EnvPrefix+"INGEST_NATS_SUBJECT", cfg.Ingest.NATSSubject)

	// The provider key is only ever read from the environment.
	cfg.AI.APIKey = l.envString("ANTHROPIC_API_KEY", cfg.AI.APIKey)
	cfg.AI.Model = l.envString(EnvPrefix+"AI_MODEL", cfg.AI.Model)
	cfg.AI.MaxTokens = l.envInt(EnvPrefix+"AI_MAX_TOKENS", cfg.AI.MaxTokens)
	cfg.AI.MaxAttempts = l.envInt(EnvPrefix+"AI_MAX_ATTEMPTS", cfg.AI.MaxAttempts)
	cfg.AI.RequestsPerSecond = l.envFloat(EnvPrefix+"AI_REQUESTS_PER_SECOND", cfg.AI.RequestsPerSecond)
	cfg.AI.MaxConcurrent = l.envInt(EnvPrefix+"AI_MAX_CONCURRENT", cfg.AI.MaxConcurrent)
	cfg.AI.Timeout = l.envDuration(EnvPrefix+"AI_TIMEOUT", cfg.AI.Timeout)

	cfg.Telemetry.Enabled = l.envBool(EnvPrefix+"TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvPrefix+"TELEMETRY_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvPrefix+"TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvPrefix+"TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)

	cfg.RateLimit.Enabled = l.envBool(EnvPrefix+"RATELIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RequestsPerMinute = l.envInt(EnvPrefix+"RATELIMIT_RPM", cfg.RateLimit.RequestsPerMinute)
}

// splitList parses a comma-separated environment value.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, field, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, v, err)
	}
	*dst = d
	return nil
}
