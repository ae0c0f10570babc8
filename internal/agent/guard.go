// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"

	"github.com/betspecs/betspecs/internal/audit"
	xglog "github.com/betspecs/betspecs/internal/log"
	"github.com/betspecs/betspecs/internal/metrics"
	"github.com/betspecs/betspecs/internal/telemetry"
	"github.com/betspecs/betspecs/internal/trust"
)

var (
	// ErrRejected is returned when no attempt produced a verified prediction.
	ErrRejected = errors.New("prediction rejected after retries")
	// ErrNoGenerator is returned when generation is not configured.
	ErrNoGenerator = errors.New("prediction generator not configured")
)

// DefaultMaxAttempts bounds the reject-and-regenerate loop.
const DefaultMaxAttempts = 3

// Limiter throttles generation calls per key.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// Attempt records one round of the loop.
type Attempt struct {
	Number  int     `json:"attempt"`
	Raw     string  `json:"raw,omitempty"`
	Error   string  `json:"error,omitempty"`
	Outcome Outcome `json:"outcome"`
}

// GuardResult is the final state of a guarded generation.
type GuardResult struct {
	Prediction *trust.Prediction `json:"prediction,omitempty"`
	Outcome    Outcome           `json:"outcome"`
	Attempts   []Attempt         `json:"attempts"`
}

// GuardConfig configures a Guard.
type GuardConfig struct {
	MaxAttempts int
	Model       string
	Limiter     Limiter
	Audit       *audit.Logger
}

// Guard runs generate, parse and verify until a prediction passes or the
// attempt budget is spent. Rejected output is never returned as a
// prediction.
type Guard struct {
	agent       *Agent
	generator   Generator
	maxAttempts int
	model       string
	limiter     Limiter
	audit       *audit.Logger
	logger      zerolog.Logger
}

// NewGuard wires a Guard. gen may be nil, in which case Run returns
// ErrNoGenerator.
func NewGuard(a *Agent, gen Generator, cfg GuardConfig) *Guard {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Guard{
		agent:       a,
		generator:   gen,
		maxAttempts: cfg.MaxAttempts,
		model:       cfg.Model,
		limiter:     cfg.Limiter,
		audit:       cfg.Audit,
		logger:      xglog.WithComponent("guard"),
	}
}

// Enabled reports whether a generator is configured.
func (g *Guard) Enabled() bool { return g.generator != nil }

// Run generates a verified prediction for req. On exhaustion it returns the
// last outcome together with ErrRejected.
func (g *Guard) Run(ctx context.Context, req Request) (GuardResult, error) {
	if g.generator == nil {
		return GuardResult{}, ErrNoGenerator
	}

	ctx, span := telemetry.Tracer("betspecs/agent").Start(ctx, "agent.guard")
	defer span.End()

	if req.Anchor == "" {
		anchor, err := g.agent.Anchor(ctx, req.EventID)
		if err == nil {
			req.Anchor = anchor
		} else {
			// Unknown events still go to the model; verification rejects them.
			g.logger.Debug().Err(err).Str(xglog.FieldEventID, req.EventID).Msg("no anchor for event")
		}
	}

	var res GuardResult
	for n := 1; n <= g.maxAttempts; n++ {
		span.SetAttributes(telemetry.GenerationAttributes(g.model, n)...)

		if g.limiter != nil {
			if err := g.limiter.Wait(ctx, req.EventID); err != nil {
				return res, err
			}
		}

		att, p, err := g.attempt(ctx, n, req)
		res.Attempts = append(res.Attempts, att)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return res, err
		}
		res.Outcome = att.Outcome

		if att.Outcome.Passed {
			res.Prediction = p
			metrics.RecordPrediction(true)
			g.logger.Info().
				Str(xglog.FieldEvent, "guard.accepted").
				Str(xglog.FieldEventID, req.EventID).
				Int(xglog.FieldAttempt, n).
				Msg("prediction verified")
			return res, nil
		}

		req.Feedback = feedbackFor(att)
		g.logger.Info().
			Str(xglog.FieldEvent, "guard.regenerate").
			Str(xglog.FieldEventID, req.EventID).
			Int(xglog.FieldAttempt, n).
			Strs("feedback", req.Feedback).
			Msg("prediction rejected")
	}

	metrics.RecordPrediction(false)
	if g.audit != nil {
		g.audit.PredictionRejected(ctx, req.EventID, g.maxAttempts, req.Feedback)
	}
	span.SetStatus(codes.Error, ErrRejected.Error())
	return res, fmt.Errorf("%w: %d attempts for event %s", ErrRejected, g.maxAttempts, req.EventID)
}

// attempt runs one generate, parse and verify round. Unparseable output is
// a rejected attempt, not an error.
func (g *Guard) attempt(ctx context.Context, n int, req Request) (Attempt, *trust.Prediction, error) {
	att := Attempt{Number: n, Outcome: Outcome{EventID: req.EventID}}

	start := time.Now()
	raw, err := g.generator.Generate(ctx, req)
	if err != nil {
		return att, nil, fmt.Errorf("generate attempt %d: %w", n, err)
	}
	att.Raw = raw

	p, err := ParsePrediction(raw)
	if err != nil {
		metrics.RecordGeneration("rejected", time.Since(start).Seconds())
		att.Error = err.Error()
		return att, nil, nil
	}
	if p.PredictionType == "" {
		p.PredictionType = req.PredictionType
	}
	if r, off := g.offTopic(req, p); off {
		metrics.RecordGeneration("rejected", time.Since(start).Seconds())
		att.Outcome = g.agent.reject(ctx, Outcome{EventID: req.EventID, Selection: p.Selection}, r)
		return att, nil, nil
	}

	out, err := g.agent.Verify(ctx, p)
	if err != nil {
		return att, nil, fmt.Errorf("verify attempt %d: %w", n, err)
	}
	att.Outcome = out
	if !out.Passed {
		metrics.RecordGeneration("rejected", time.Since(start).Seconds())
		return att, nil, nil
	}
	metrics.RecordGeneration("passed", time.Since(start).Seconds())
	return att, &p, nil
}

// offTopic reports a failed result when p answers a different event or
// market than req asked for.
func (g *Guard) offTopic(req Request, p trust.Prediction) (trust.Result, bool) {
	v := g.agent.Validator()
	switch {
	case p.EventID != req.EventID:
		r := v.NewResult(trust.StatusFailed, trust.ClaimEvent, "Event "+p.EventID,
			fmt.Sprintf("Prediction is for event %s, not the requested event", p.EventID))
		r.EventID = req.EventID
		r.SourceValue = req.EventID
		r.AIValue = p.EventID
		return r, true
	case req.PredictionType != "" && !strings.EqualFold(p.PredictionType, req.PredictionType):
		r := v.NewResult(trust.StatusFailed, trust.ClaimMarket, "Market "+p.PredictionType,
			fmt.Sprintf("Prediction is for the %s market, not the requested market", p.PredictionType))
		r.EventID = req.EventID
		r.SourceValue = req.PredictionType
		r.AIValue = p.PredictionType
		return r, true
	}
	return trust.Result{}, false
}

func feedbackFor(att Attempt) []string {
	if att.Error != "" {
		return []string{"Response was not a valid prediction JSON object: " + att.Error}
	}
	if fb := att.Outcome.Feedback(); len(fb) > 0 {
		return fb
	}
	return []string{"Prediction did not verify"}
}
