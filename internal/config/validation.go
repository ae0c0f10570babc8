// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/betspecs/betspecs/internal/validate"
)

// Validate checks a resolved configuration and reports every problem at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.ListenAddr("listenAddr", cfg.ListenAddr)
	v.Directory("dataDir", cfg.DataDir, false)
	v.OneOf("logLevel", cfg.LogLevel, []string{"trace", "debug", "info", "warn", "error"})
	v.NotEmpty("logService", cfg.LogService)

	v.FloatRange("trust.tolerance", cfg.Trust.Tolerance, 0, 1000)
	v.DurationRange("trust.maxStaleness", cfg.Trust.MaxStaleness, 0, 24*time.Hour)
	v.File("trust.aliasesFile", cfg.Trust.AliasesFile)
	v.Range("trust.logCapacity", cfg.Trust.LogCapacity, 1, 1_000_000)

	v.OneOf("cache.backend", cfg.Cache.Backend, []string{"memory", "redis"})
	if cfg.Cache.Backend == "redis" {
		v.NotEmpty("cache.redisAddr", cfg.Cache.RedisAddr)
	}
	v.Range("cache.redisDB", cfg.Cache.RedisDB, 0, 15)
	v.DurationRange("cache.ttl", cfg.Cache.TTL, time.Second, 24*time.Hour)
	v.Positive("cache.maxItems", cfg.Cache.MaxItems)

	if cfg.Ingest.PollURL != "" {
		v.URL("ingest.pollURL", cfg.Ingest.PollURL, []string{"http", "https"})
		v.DurationRange("ingest.pollInterval", cfg.Ingest.PollInterval, time.Second, time.Hour)
	}
	if cfg.Ingest.NATSURL != "" {
		v.URL("ingest.natsURL", cfg.Ingest.NATSURL, []string{"nats", "tls"})
		v.NotEmpty("ingest.natsSubject", cfg.Ingest.NATSSubject)
	}

	v.NotEmpty("ai.model", cfg.AI.Model)
	v.Range("ai.maxTokens", cfg.AI.MaxTokens, 1, 64000)
	v.Range("ai.maxAttempts", cfg.AI.MaxAttempts, 1, 10)
	v.FloatRange("ai.requestsPerSecond", cfg.AI.RequestsPerSecond, 0.01, 100)
	v.Range("ai.maxConcurrent", cfg.AI.MaxConcurrent, 1, 64)
	v.DurationRange("ai.timeout", cfg.AI.Timeout, time.Second, 10*time.Minute)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	if cfg.RateLimit.Enabled {
		v.Range("rateLimit.requestsPerMinute", cfg.RateLimit.RequestsPerMinute, 1, 100000)
	}

	return v.Err()
}
