// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads betspecs configuration with precedence
// ENV > YAML file > defaults and supports hot reload.
package config

import (
	"path/filepath"
	"time"
)

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	Version    string
	ListenAddr string
	DataDir    string
	LogLevel   string
	LogService string
	APIToken   string
	// CORSOrigins enables CORS for these origins; "*" allows all.
	CORSOrigins []string

	Trust     TrustConfig
	Cache     CacheConfig
	Ingest    IngestConfig
	AI        AIConfig
	Telemetry TelemetryConfig
	RateLimit RateLimitConfig
}

// TrustConfig tunes the Trust Layer.
type TrustConfig struct {
	Tolerance    float64
	MaxStaleness time.Duration
	AliasesFile  string
	LogCapacity  int
}

// CacheConfig selects the event cache backend.
type CacheConfig struct {
	Backend   string // memory|redis
	RedisAddr string
	RedisDB   int
	TTL       time.Duration
	MaxItems  int
}

// IngestConfig configures the live odds feeds. Empty URLs disable a feed.
type IngestConfig struct {
	PollURL      string
	PollInterval time.Duration
	NATSURL      string
	NATSSubject  string
}

// AIConfig configures the prediction generator.
type AIConfig struct {
	APIKey            string
	Model             string
	MaxTokens         int
	MaxAttempts       int
	RequestsPerSecond float64
	MaxConcurrent     int
	Timeout           time.Duration
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool
	Exporter     string // grpc|http
	Endpoint     string
	SamplingRate float64
}

// RateLimitConfig configures per-IP HTTP rate limiting.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
}

// DBPath returns the SQLite database location inside the data directory.
func (c AppConfig) DBPath() string {
	return filepath.Join(c.DataDir, "betspecs.db")
}

// FileConfig mirrors the YAML file. Pointers distinguish "unset" from zero.
type FileConfig struct {
	ListenAddr string `yaml:"listenAddr,omitempty"`
	DataDir    string `yaml:"dataDir,omitempty"`
	LogLevel   string `yaml:"logLevel,omitempty"`
	LogService string `yaml:"logService,omitempty"`
	APIToken   string `yaml:"apiToken,omitempty"`

	CORSOrigins []string `yaml:"corsOrigins,omitempty"`

	Trust     *TrustFile     `yaml:"trust,omitempty"`
	Cache     *CacheFile     `yaml:"cache,omitempty"`
	Ingest    *IngestFile    `yaml:"ingest,omitempty"`
	AI        *AIFile        `yaml:"ai,omitempty"`
	Telemetry *TelemetryFile `yaml:"telemetry,omitempty"`
	RateLimit *RateLimitFile `yaml:"rateLimit,omitempty"`
}

type TrustFile struct {
	Tolerance    *float64 `yaml:"tolerance,omitempty"`
	MaxStaleness string   `yaml:"maxStaleness,omitempty"`
	AliasesFile  string   `yaml:"aliasesFile,omitempty"`
	LogCapacity  *int     `yaml:"logCapacity,omitempty"`
}

type CacheFile struct {
	Backend   string `yaml:"backend,omitempty"`
	RedisAddr string `yaml:"redisAddr,omitempty"`
	RedisDB   *int   `yaml:"redisDB,omitempty"`
	TTL       string `yaml:"ttl,omitempty"`
	MaxItems  *int   `yaml:"maxItems,omitempty"`
}

type IngestFile struct {
	PollURL      string `yaml:"pollURL,omitempty"`
	PollInterval string `yaml:"pollInterval,omitempty"`
	NATSURL      string `yaml:"natsURL,omitempty"`
	NATSSubject  string `yaml:"natsSubject,omitempty"`
}

type AIFile struct {
	Model             string   `yaml:"model,omitempty"`
	MaxTokens         *int     `yaml:"maxTokens,omitempty"`
	MaxAttempts       *int     `yaml:"maxAttempts,omitempty"`
	RequestsPerSecond *float64 `yaml:"requestsPerSecond,omitempty"`
	MaxConcurrent     *int     `yaml:"maxConcurrent,omitempty"`
	Timeout           string   `yaml:"timeout,omitempty"`
}

type TelemetryFile struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
}

type RateLimitFile struct {
	Enabled           *bool `yaml:"enabled,omitempty"`
	RequestsPerMinute *int  `yaml:"requestsPerMinute,omitempty"`
}
