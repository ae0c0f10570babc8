// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package trust

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	xglog "github.com/betspecs/betspecs/internal/log"
	"github.com/betspecs/betspecs/internal/metrics"
)

// Validator is the entry point of the Trust Layer. It verifies predictions,
// keeps a bounded in-memory log of every check and forwards results to an
// optional Recorder. It is safe for concurrent use.
type Validator struct {
	odds  *OddsValidator
	teams *TeamValidator

	mu       sync.Mutex
	cfg      Config
	log      []Result
	next     int
	full     bool
	counts   Summary
	recorder Recorder
	logger   zerolog.Logger
	now      func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithRecorder persists every result through r.
func WithRecorder(r Recorder) Option {
	return func(v *Validator) { v.recorder = r }
}

// WithAliases sets the alias registry used by team checks.
func WithAliases(reg *AliasRegistry) Option {
	return func(v *Validator) { v.teams = NewTeamValidator(reg) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// New creates a Validator.
func New(cfg Config, opts ...Option) *Validator {
	cfg = withDefaults(cfg)
	v := &Validator{
		odds:   NewOddsValidator(cfg.Tolerance, cfg.MaxStaleness),
		teams:  NewTeamValidator(nil),
		cfg:    cfg,
		log:    make([]Result, cfg.LogCapacity),
		logger: xglog.WithComponent("trust"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.odds.now = v.now
	v.teams.now = v.now
	return v
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Tolerance.IsNegative() {
		cfg.Tolerance = cfg.Tolerance.Abs()
	}
	if cfg.LogCapacity <= 0 {
		cfg.LogCapacity = def.LogCapacity
	}
	if cfg.MaxStaleness < 0 {
		cfg.MaxStaleness = def.MaxStaleness
	}
	return cfg
}

// OddsValidator returns the odds checker.
func (v *Validator) OddsValidator() *OddsValidator { return v.odds }

// TeamValidator returns the team checker.
func (v *Validator) TeamValidator() *TeamValidator { return v.teams }

// Config returns the active configuration.
func (v *Validator) Config() Config {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cfg
}

// Reconfigure applies a new tolerance and staleness window. The log is
// resized only when the capacity changes; existing entries are kept in order.
func (v *Validator) Reconfigure(cfg Config) {
	cfg = withDefaults(cfg)
	v.odds.configure(cfg.Tolerance, cfg.MaxStaleness)

	v.mu.Lock()
	defer v.mu.Unlock()
	if cfg.LogCapacity != v.cfg.LogCapacity {
		entries := v.entriesLocked()
		if len(entries) > cfg.LogCapacity {
			entries = entries[len(entries)-cfg.LogCapacity:]
		}
		v.log = make([]Result, cfg.LogCapacity)
		copy(v.log, entries)
		v.next = len(entries) % cfg.LogCapacity
		v.full = len(entries) == cfg.LogCapacity
	}
	v.cfg = cfg
	v.logger.Info().
		Str(xglog.FieldEvent, "trust.reconfigured").
		Str("tolerance", cfg.Tolerance.String()).
		Dur("max_staleness", cfg.MaxStaleness).
		Int("log_capacity", cfg.LogCapacity).
		Msg("trust layer reconfigured")
}

// VerifyOddsClaim checks claimed odds for a selection against the source.
func (v *Validator) VerifyOddsClaim(ctx context.Context, claimed decimal.Decimal, source Source, selection string) Result {
	r := v.odds.VerifyOddsWithHistory(claimed, source)
	r.Claim = "Odds for " + selection
	v.record(ctx, r)
	return r
}

// VerifyTeamName checks a claimed team name against the source.
func (v *Validator) VerifyTeamName(ctx context.Context, claimed, source string) Result {
	r := v.teams.VerifyTeam(claimed, source)
	v.record(ctx, r)
	return r
}

// VerifyPrediction runs every applicable check for a prediction. It passes
// only when every result is StatusVerified.
func (v *Validator) VerifyPrediction(ctx context.Context, p Prediction, src Source) (bool, []Result) {
	results := make([]Result, 0, 3)

	team := v.teams.VerifyTeam(p.Selection, src.Team)
	team.EventID = p.EventID
	results = append(results, team)

	oddsResult := v.odds.VerifyOddsWithHistory(p.OddsClaimed, src)
	oddsResult.Claim = "Odds for " + p.Selection
	oddsResult.EventID = p.EventID
	results = append(results, oddsResult)

	if p.Confidence < 0 || p.Confidence > 1 {
		c := newResult(v.now(), ClaimConfidence, "Confidence")
		c.EventID = p.EventID
		c.Status = StatusFailed
		c.AIValue = strconv.FormatFloat(p.Confidence, 'f', -1, 64)
		c.SourceValue = "0..1"
		c.Discrepancy = "Confidence out of valid range"
		results = append(results, c)
	}

	passed := true
	for _, r := range results {
		v.record(ctx, r)
		if r.Status != StatusVerified {
			passed = false
		}
	}

	ev := v.logger.Info()
	if !passed {
		ev = v.logger.Warn()
	}
	ev.Str(xglog.FieldEvent, "trust.prediction_verified").
		Str(xglog.FieldEventID, p.EventID).
		Str(xglog.FieldSelection, p.Selection).
		Bool("passed", passed).
		Int("checks", len(results)).
		Msg("prediction verified")

	return passed, results
}

// Record adds an externally produced result (for example an unknown event)
// to the log and the recorder.
func (v *Validator) Record(ctx context.Context, r Result) {
	if r.ID == "" {
		fresh := newResult(v.now(), r.ClaimType, r.Claim)
		r.ID = fresh.ID
		if r.Timestamp.IsZero() {
			r.Timestamp = fresh.Timestamp
		}
	}
	v.record(ctx, r)
}

// NewResult builds a result stamped with the validator's clock.
func (v *Validator) NewResult(status Status, claimType, claim, discrepancy string) Result {
	r := newResult(v.now(), claimType, claim)
	r.Status = status
	r.Discrepancy = discrepancy
	return r
}

func (v *Validator) record(ctx context.Context, r Result) {
	v.mu.Lock()
	v.log[v.next] = r
	v.next = (v.next + 1) % len(v.log)
	if v.next == 0 {
		v.full = true
	}
	v.counts.Add(r.Status, 1)
	rec := v.recorder
	v.mu.Unlock()

	metrics.RecordVerification(string(r.Status), r.ClaimType)

	if rec == nil {
		return
	}
	if err := rec.RecordVerification(ctx, r); err != nil {
		metrics.IncVerificationRecordError()
		v.logger.Error().Err(err).
			Str(xglog.FieldEvent, "trust.record_failed").
			Str(xglog.FieldVerificationID, r.ID).
			Msg("failed to persist verification result")
	}
}

// Log returns the retained verification results, oldest first.
func (v *Validator) Log() []Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.entriesLocked()
}

func (v *Validator) entriesLocked() []Result {
	if !v.full {
		out := make([]Result, v.next)
		copy(out, v.log[:v.next])
		return out
	}
	out := make([]Result, 0, len(v.log))
	out = append(out, v.log[v.next:]...)
	out = append(out, v.log[:v.next]...)
	return out
}

// Summary returns counts over every check since the validator was created.
func (v *Validator) Summary() Summary {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.counts
}

// Feedback renders the non-verified results as lines suitable for a retry
// prompt.
func Feedback(results []Result) []string {
	var out []string
	for _, r := range results {
		if r.Status == StatusVerified {
			continue
		}
		line := fmt.Sprintf("%s [%s]", r.Claim, r.Status)
		if r.Discrepancy != "" {
			line += ": " + r.Discrepancy
		}
		if r.SourceValue != "" {
			line += fmt.Sprintf(" (verified value: %s)", r.SourceValue)
		}
		out = append(out, line)
	}
	return out
}
