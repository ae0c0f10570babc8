// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ingest

import (
	"fmt"
	"strings"

	"github.com/betspecs/betspecs/internal/odds"
	"github.com/betspecs/betspecs/internal/trust"
)

// Normalizer brings feed data into the store's canonical shape.
type Normalizer struct {
	aliases *trust.AliasRegistry
}

// NewNormalizer returns a Normalizer resolving team names through aliases.
// A nil registry leaves names untouched apart from trimming.
func NewNormalizer(aliases *trust.AliasRegistry) *Normalizer {
	return &Normalizer{aliases: aliases}
}

// Normalize returns a canonical copy of snap:
//   - team names and selections resolve through the alias registry
//   - moneyline prices become american odds
//   - spread and total lines are marked as points
//   - priced lines carry an implied probability
//   - markets without LastUpdated inherit CapturedAt
func (n *Normalizer) Normalize(snap odds.Snapshot) (odds.Snapshot, error) {
	out := odds.Snapshot{
		Provider:   strings.TrimSpace(snap.Provider),
		CapturedAt: snap.CapturedAt.UTC(),
		Events:     make([]odds.Event, 0, len(snap.Events)),
	}

	for _, e := range snap.Events {
		ne := e
		ne.ID = strings.TrimSpace(e.ID)
		ne.HomeTeam = n.team(e.HomeTeam)
		ne.AwayTeam = n.team(e.AwayTeam)
		ne.StartTime = e.StartTime.UTC()
		ne.Markets = make([]odds.Market, 0, len(e.Markets))

		for _, m := range e.Markets {
			nm, err := n.market(m, out)
			if err != nil {
				return odds.Snapshot{}, fmt.Errorf("event %s: %w", ne.ID, err)
			}
			ne.Markets = append(ne.Markets, nm)
		}
		out.Events = append(out.Events, ne)
	}
	return out, nil
}

func (n *Normalizer) market(m odds.Market, snap odds.Snapshot) (odds.Market, error) {
	nm := m
	nm.ID = strings.TrimSpace(m.ID)
	nm.Type = strings.ToLower(strings.TrimSpace(m.Type))
	if nm.Status == "" {
		nm.Status = odds.MarketOpen
	}
	if nm.LastUpdated.IsZero() {
		nm.LastUpdated = snap.CapturedAt
	}
	nm.LastUpdated = nm.LastUpdated.UTC()
	nm.Lines = make([]odds.Line, 0, len(m.Lines))

	for _, l := range m.Lines {
		nl := odds.Line{Selection: n.team(l.Selection), Odds: l.Odds, Format: l.EffectiveFormat()}

		switch nm.Type {
		case odds.MarketSpread, odds.MarketTotal:
			nl.Format = odds.FormatPoints
		case odds.MarketMoneyline:
			if nl.Format == odds.FormatDecimal || nl.Format == odds.FormatFractional {
				american, err := nl.ToAmerican()
				if err != nil {
					return odds.Market{}, fmt.Errorf("market %s selection %q: %w", nm.ID, l.Selection, err)
				}
				nl.Odds, nl.Format = american, odds.FormatAmerican
			}
		}

		if err := nl.Validate(); err != nil {
			return odds.Market{}, fmt.Errorf("market %s selection %q: %w", nm.ID, l.Selection, err)
		}
		if nl.Format != odds.FormatPoints {
			p := nl.CalculateImpliedProbability().Round(6)
			nl.ImpliedProbability = &p
		}
		nm.Lines = append(nm.Lines, nl)
	}
	return nm, nil
}

func (n *Normalizer) team(name string) string {
	name = strings.TrimSpace(name)
	if n.aliases == nil || name == "" {
		return name
	}
	if c, ok := n.aliases.Canonical(name); ok {
		return c
	}
	return name
}
