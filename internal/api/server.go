// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the BetSpecs HTTP API: snapshot ingestion, ground-truth
// lookups, prediction verification, guarded generation and the bet ledger.
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/betspecs/betspecs/internal/agent"
	"github.com/betspecs/betspecs/internal/api/middleware"
	"github.com/betspecs/betspecs/internal/audit"
	"github.com/betspecs/betspecs/internal/config"
	"github.com/betspecs/betspecs/internal/health"
	"github.com/betspecs/betspecs/internal/ingest"
	"github.com/betspecs/betspecs/internal/ledger"
	"github.com/betspecs/betspecs/internal/log"
	"github.com/betspecs/betspecs/internal/store"
)

// Deps are the collaborators the server routes to. Guard, Health and Audit
// may be nil.
type Deps struct {
	// Config returns the current configuration; it is read per request.
	Config   func() config.AppConfig
	Store    *store.Store
	Ingestor *ingest.Ingestor
	Agent    *agent.Agent
	Guard    *agent.Guard
	Ledger   *ledger.Ledger
	Health   *health.Manager
	Audit    *audit.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	deps   Deps
	logger zerolog.Logger
}

// New validates deps and returns a Server.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("api: config is required")
	case deps.Store == nil:
		return nil, errors.New("api: store is required")
	case deps.Ingestor == nil:
		return nil, errors.New("api: ingestor is required")
	case deps.Agent == nil:
		return nil, errors.New("api: agent is required")
	case deps.Ledger == nil:
		return nil, errors.New("api: ledger is required")
	}
	if deps.Health == nil {
		deps.Health = health.NewManager(deps.Config().Version)
	}
	return &Server{deps: deps, logger: log.WithComponent("api")}, nil
}

// Handler builds the router. Middleware settings are taken from the
// configuration at call time.
func (s *Server) Handler() http.Handler {
	cfg := s.deps.Config()

	stack := middleware.StackConfig{
		EnableCORS:            len(cfg.CORSOrigins) > 0,
		AllowedOrigins:        cfg.CORSOrigins,
		EnableSecurityHeaders: true,
		CSP:                   middleware.DefaultCSP,
		EnableMetrics:         true,
		EnableLogging:         true,
		RateLimitEnabled:      cfg.RateLimit.Enabled,
		RequestsPerMinute:     cfg.RateLimit.RequestsPerMinute,
		Audit:                 s.deps.Audit,
	}
	if cfg.Telemetry.Enabled {
		stack.TracingService = "betspecs"
	}
	r := middleware.NewRouter(stack)

	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/api/v1/openapi.yaml", handleOpenAPI)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.BearerAuth(func() string { return s.deps.Config().APIToken }, s.deps.Audit))

		r.Post("/snapshots", s.handleIngestSnapshot)
		r.Get("/events/{eventID}", s.handleGetEvent)
		r.Post("/verify", s.handleVerify)
		r.Post("/predictions", s.handleGeneratePrediction)
		r.Get("/verifications", s.handleListVerifications)
		r.Get("/verifications/summary", s.handleVerificationSummary)
		r.Post("/bets", s.handlePlaceBet)
		r.Post("/bets/{betID}/settle", s.handleSettleBet)
		r.Get("/ledger", s.handleLedger)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "route/not_found", "Not Found", "NOT_FOUND", "No route matches this path.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusMethodNotAllowed, "route/method_not_allowed", "Method Not Allowed", "METHOD_NOT_ALLOWED", "")
	})
	return r
}
