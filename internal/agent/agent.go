// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package agent is the Verification Agent: it parses model output into a
// prediction, looks the claim up in the ground-truth store and runs it
// through the Trust Layer. Guard wraps a Generator in a bounded
// reject-and-regenerate loop.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	xglog "github.com/betspecs/betspecs/internal/log"
	"github.com/betspecs/betspecs/internal/odds"
	"github.com/betspecs/betspecs/internal/store"
	"github.com/betspecs/betspecs/internal/telemetry"
	"github.com/betspecs/betspecs/internal/trust"
)

const historyLimit = 20

// EventStore is the ground truth the agent reads.
type EventStore interface {
	Event(ctx context.Context, id string) (*odds.Event, error)
	History(ctx context.Context, marketID, selection string, limit int) ([]odds.Quote, error)
}

// EventCache caches events between store reads.
type EventCache interface {
	Get(ctx context.Context, id string) (*odds.Event, bool)
	Put(ctx context.Context, e *odds.Event)
}

// Outcome is the verdict on one prediction.
type Outcome struct {
	Passed    bool           `json:"passed"`
	EventID   string         `json:"event_id"`
	MarketID  string         `json:"market_id,omitempty"`
	Selection string         `json:"selection,omitempty"`
	Results   []trust.Result `json:"results"`
}

// Feedback lists the discrepancies of every non-verified result.
func (o Outcome) Feedback() []string {
	return trust.Feedback(o.Results)
}

// Agent verifies predictions against the store.
type Agent struct {
	store     EventStore
	cache     EventCache
	validator *trust.Validator
	group     singleflight.Group
	logger    zerolog.Logger
}

// New returns an Agent. cache may be nil.
func New(st EventStore, cache EventCache, validator *trust.Validator) *Agent {
	return &Agent{
		store:     st,
		cache:     cache,
		validator: validator,
		logger:    xglog.WithComponent("agent"),
	}
}

// Validator returns the Trust Layer the agent reports to.
func (a *Agent) Validator() *trust.Validator { return a.validator }

// Verify checks p against the ground truth. The returned error is reserved
// for infrastructure failures; a rejected claim is a non-passing Outcome.
func (a *Agent) Verify(ctx context.Context, p trust.Prediction) (Outcome, error) {
	ctx, span := telemetry.Tracer("betspecs/agent").Start(ctx, "agent.verify",
		trace.WithAttributes(telemetry.ClaimAttributes(p.EventID, p.PredictionType, p.Selection)...))
	defer span.End()

	out, err := a.verify(ctx, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Outcome{}, err
	}

	failed := 0
	for _, r := range out.Results {
		if r.Status != trust.StatusVerified {
			failed++
		}
	}
	span.SetAttributes(telemetry.OutcomeAttributes(out.Passed, len(out.Results), failed)...)
	return out, nil
}

func (a *Agent) verify(ctx context.Context, p trust.Prediction) (Outcome, error) {
	out := Outcome{EventID: p.EventID, Selection: p.Selection}
	if p.PredictionType == "" {
		p.PredictionType = odds.MarketMoneyline
	}

	evt, err := a.Event(ctx, p.EventID)
	if errors.Is(err, store.ErrNotFound) {
		r := a.validator.NewResult(trust.StatusFailed, trust.ClaimEvent, "Event "+p.EventID,
			"Event not found in verified data")
		r.EventID = p.EventID
		r.AIValue = p.EventID
		return a.reject(ctx, out, r), nil
	}
	if err != nil {
		return Outcome{}, err
	}

	market, ok := evt.Market(p.PredictionType)
	if !ok {
		r := a.validator.NewResult(trust.StatusFailed, trust.ClaimMarket, "Market "+p.PredictionType,
			fmt.Sprintf("No %s market for this event", p.PredictionType))
		r.EventID = p.EventID
		r.AIValue = p.PredictionType
		r.SourceValue = marketTypes(evt)
		return a.reject(ctx, out, r), nil
	}
	out.MarketID = market.ID

	if !market.IsActive() {
		r := a.validator.NewResult(trust.StatusSkipped, trust.ClaimMarket, "Market "+market.ID,
			fmt.Sprintf("Market is %s", market.Status))
		r.EventID = p.EventID
		r.SourceValue = string(market.Status)
		return a.reject(ctx, out, r), nil
	}

	line, ok := a.matchLine(market, p.Selection)
	if !ok {
		r := a.validator.NewResult(trust.StatusFailed, trust.ClaimTeam, "Team name", "Team name mismatch")
		r.EventID = p.EventID
		r.AIValue = p.Selection
		r.SourceValue = participants(evt, market)
		return a.reject(ctx, out, r), nil
	}

	history, err := a.store.History(ctx, market.ID, line.Selection, historyLimit)
	if err != nil {
		return Outcome{}, fmt.Errorf("load history: %w", err)
	}

	src := trust.Source{
		Odds:      line.Odds,
		Format:    line.EffectiveFormat(),
		Team:      line.Selection,
		Timestamp: market.LastUpdated,
		History:   history,
	}
	if src.Format == odds.FormatAmerican {
		src.Side = odds.SideOf(line.Odds)
	}

	out.Passed, out.Results = a.validator.VerifyPrediction(ctx, p, src)
	return out, nil
}

func (a *Agent) reject(ctx context.Context, out Outcome, r trust.Result) Outcome {
	a.validator.Record(ctx, r)
	a.logger.Warn().
		Str(xglog.FieldEvent, "agent.claim_rejected").
		Str(xglog.FieldEventID, out.EventID).
		Str(xglog.FieldClaimType, r.ClaimType).
		Str(xglog.FieldStatus, string(r.Status)).
		Msg(r.Discrepancy)
	out.Passed = false
	out.Results = []trust.Result{r}
	return out
}

// Event loads an event through the cache. Concurrent misses for the same ID
// share one store read, which outlives the cancellation of any single caller.
func (a *Agent) Event(ctx context.Context, id string) (*odds.Event, error) {
	if a.cache != nil {
		if e, ok := a.cache.Get(ctx, id); ok {
			return e, nil
		}
	}
	shared := context.WithoutCancel(ctx)
	ch := a.group.DoChan(id, func() (any, error) {
		e, err := a.store.Event(shared, id)
		if err != nil {
			return nil, err
		}
		if a.cache != nil {
			a.cache.Put(shared, e)
		}
		return e, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*odds.Event), nil
	}
}

// matchLine picks the line whose selection matches claimed. A verified
// team match wins over a partial one.
func (a *Agent) matchLine(m odds.Market, claimed string) (odds.Line, bool) {
	teams := a.validator.TeamValidator()
	var (
		partial odds.Line
		found   bool
	)
	for _, l := range m.Lines {
		switch teams.VerifyTeam(claimed, l.Selection).Status {
		case trust.StatusVerified:
			return l, true
		case trust.StatusPartial:
			if !found {
				partial, found = l, true
			}
		}
	}
	return partial, found
}

func marketTypes(e *odds.Event) string {
	types := make([]string, 0, len(e.Markets))
	for _, m := range e.Markets {
		types = append(types, m.Type)
	}
	return strings.Join(types, ", ")
}

func participants(e *odds.Event, m odds.Market) string {
	names := make([]string, 0, len(m.Lines))
	for _, l := range m.Lines {
		names = append(names, l.Selection)
	}
	if len(names) == 0 {
		names = append(names, e.HomeTeam, e.AwayTeam)
	}
	return strings.Join(names, ", ")
}
