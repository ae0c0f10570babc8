// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon assembles the BetSpecs runtime and manages its lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/betspecs/betspecs/internal/agent"
	"github.com/betspecs/betspecs/internal/api"
	"github.com/betspecs/betspecs/internal/audit"
	"github.com/betspecs/betspecs/internal/cache"
	"github.com/betspecs/betspecs/internal/config"
	"github.com/betspecs/betspecs/internal/health"
	"github.com/betspecs/betspecs/internal/ingest"
	"github.com/betspecs/betspecs/internal/ledger"
	xglog "github.com/betspecs/betspecs/internal/log"
	"github.com/betspecs/betspecs/internal/ratelimit"
	"github.com/betspecs/betspecs/internal/store"
	"github.com/betspecs/betspecs/internal/telemetry"
	"github.com/betspecs/betspecs/internal/trust"
)

// generationBurst is the global token bucket depth for model calls.
const generationBurst = 3

// Runtime is an assembled daemon ready to run.
type Runtime struct {
	App     *App
	Manager Manager
	Server  *api.Server

	validator *trust.Validator
	aliases   *trust.AliasRegistry
	limiter   *ratelimit.Limiter
}

// Bootstrap builds every component from the holder's current configuration.
// Resources opened here are released by the manager's shutdown hooks; on
// error they are released before returning.
func Bootstrap(ctx context.Context, holder *config.ConfigHolder) (rt *Runtime, err error) {
	cfg := holder.Get()
	logger := xglog.WithComponent("daemon")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return nil, err
	}

	var hooks []namedHook
	defer func() {
		if err == nil {
			return
		}
		for i := len(hooks) - 1; i >= 0; i-- {
			_ = hooks[i].hook(context.WithoutCancel(ctx))
		}
	}()

	if cfg.Telemetry.Enabled {
		provider, err := telemetry.NewProvider(ctx, telemetry.Config{
			Enabled:        true,
			ServiceName:    "betspecs",
			ServiceVersion: cfg.Version,
			Environment:    "production",
			ExporterType:   cfg.Telemetry.Exporter,
			Endpoint:       cfg.Telemetry.Endpoint,
			SamplingRate:   cfg.Telemetry.SamplingRate,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Telemetry initialization failed, continuing without tracing")
		} else {
			hooks = append(hooks, namedHook{"telemetry", provider.Shutdown})
		}
	}

	st, err := store.Open(ctx, cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	hooks = append(hooks, namedHook{"store", func(context.Context) error { return st.Close() }})

	backend, err := cache.New(ctx, cache.Options{
		Backend:   cfg.Cache.Backend,
		RedisAddr: cfg.Cache.RedisAddr,
		RedisDB:   cfg.Cache.RedisDB,
		MaxItems:  cfg.Cache.MaxItems,
		TTL:       cfg.Cache.TTL,
	}, xglog.WithComponent("cache"))
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	hooks = append(hooks, namedHook{"cache", func(context.Context) error { return backend.Close() }})
	events := cache.NewEventCache(backend, cfg.Cache.TTL, xglog.WithComponent("cache"))

	aliases, err := trust.LoadAliasesFile(cfg.Trust.AliasesFile)
	if err != nil {
		return nil, err
	}
	validator := trust.New(TrustSettings(cfg.Trust), trust.WithAliases(aliases), trust.WithRecorder(st))

	auditLog := audit.NewLogger()
	ingestor := ingest.NewIngestor(st, events, ingest.NewNormalizer(aliases), auditLog)
	a := agent.New(st, events, validator)

	limiter := ratelimit.New(limiterConfig(cfg.AI))
	var gen agent.Generator
	if cfg.AI.APIKey != "" {
		g, err := agent.NewAnthropicGenerator(agent.AnthropicConfig{
			APIKey:        cfg.AI.APIKey,
			Model:         cfg.AI.Model,
			MaxTokens:     cfg.AI.MaxTokens,
			MaxConcurrent: cfg.AI.MaxConcurrent,
			Timeout:       cfg.AI.Timeout,
			Retry:         agent.DefaultRetryConfig(),
		})
		if err != nil {
			return nil, err
		}
		gen = g
	}
	guard := agent.NewGuard(a, gen, agent.GuardConfig{
		MaxAttempts: cfg.AI.MaxAttempts,
		Model:       cfg.AI.Model,
		Limiter:     limiter,
		Audit:       auditLog,
	})

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewPingChecker("store", true, st.Ping))
	hm.RegisterChecker(health.NewPingChecker("cache", cfg.Cache.Backend == "redis", backend.Ping))

	var workers []Worker
	if cfg.Ingest.PollURL != "" {
		poller := ingest.NewPoller(cfg.Ingest.PollURL, cfg.Ingest.PollInterval, nil, ingestor)
		workers = append(workers, Worker{Name: "poller", Run: poller.Run})
	}
	if cfg.Ingest.NATSURL != "" {
		sub := ingest.NewSubscriber(cfg.Ingest.NATSURL, cfg.Ingest.NATSSubject, ingestor)
		workers = append(workers, Worker{Name: "nats", Run: sub.Run})
	}
	if len(workers) > 0 {
		hm.RegisterChecker(health.NewFeedChecker(ingestor.LastApplied, feedMaxAge(cfg.Ingest)))
	}

	srv, err := api.New(api.Deps{
		Config:   holder.Get,
		Store:    st,
		Ingestor: ingestor,
		Agent:    a,
		Guard:    guard,
		Ledger:   ledger.New(st),
		Health:   hm,
		Audit:    auditLog,
	})
	if err != nil {
		return nil, err
	}

	mgr, err := NewManager(DefaultServerConfig(cfg.ListenAddr), Deps{
		Logger:     logger,
		APIHandler: srv.Handler(),
	})
	if err != nil {
		return nil, err
	}
	for _, h := range hooks {
		mgr.RegisterShutdownHook(h.name, h.hook)
	}

	rt = &Runtime{
		Manager:   mgr,
		Server:    srv,
		validator: validator,
		aliases:   aliases,
		limiter:   limiter,
	}
	rt.App = NewApp(logger, mgr, holder, workers, rt.ApplyConfig)

	logger.Info().
		Str("version", cfg.Version).
		Str("listen", cfg.ListenAddr).
		Str("db", st.Path()).
		Bool("generation", guard.Enabled()).
		Int("workers", len(workers)).
		Msg("Starting betspecs daemon")
	return rt, nil
}

// ApplyConfig re-applies the settings that can change without a restart:
// trust tolerances, team aliases and the generation rate.
func (rt *Runtime) ApplyConfig(cfg config.AppConfig) {
	logger := xglog.WithComponent("daemon")

	rt.validator.Reconfigure(TrustSettings(cfg.Trust))

	if aliases, err := trust.LoadAliasesFile(cfg.Trust.AliasesFile); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "aliases.reload_failed").Msg("keeping previous team aliases")
	} else {
		rt.aliases.Replace(aliases)
	}

	if cfg.AI.RequestsPerSecond > 0 {
		rt.limiter.SetGlobal(rate.Limit(cfg.AI.RequestsPerSecond), generationBurst)
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(level)
	}
	logger.Info().Str(xglog.FieldEvent, "config.applied").Msg("live settings applied")
}

// Run runs the App until SIGINT or SIGTERM.
func (rt *Runtime) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rt.App.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// TrustSettings converts the loaded trust section into validator settings.
func TrustSettings(c config.TrustConfig) trust.Config {
	return trust.Config{
		Tolerance:    decimal.NewFromFloat(c.Tolerance),
		MaxStaleness: c.MaxStaleness,
		LogCapacity:  c.LogCapacity,
	}
}

func limiterConfig(c config.AIConfig) ratelimit.Config {
	lc := ratelimit.DefaultConfig()
	if c.RequestsPerSecond > 0 {
		lc.GlobalRate = rate.Limit(c.RequestsPerSecond)
		lc.GlobalBurst = generationBurst
	}
	return lc
}

// feedMaxAge tolerates a few missed polls before readiness degrades.
func feedMaxAge(c config.IngestConfig) time.Duration {
	if c.PollURL != "" && c.PollInterval > 0 {
		return 4 * c.PollInterval
	}
	return 5 * time.Minute
}
