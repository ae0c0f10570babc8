// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/betspecs/betspecs/internal/odds"
)

// Anchor renders the verified state of an event as prompt context.
func (a *Agent) Anchor(ctx context.Context, eventID string) (string, error) {
	evt, err := a.Event(ctx, eventID)
	if err != nil {
		return "", err
	}
	return RenderAnchor(evt), nil
}

// RenderAnchor formats an event, its markets and current prices.
func RenderAnchor(e *odds.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event %s: %s at %s", e.ID, e.AwayTeam, e.HomeTeam)
	if e.League != "" || e.Sport != "" {
		fmt.Fprintf(&b, " (%s)", strings.Trim(e.League+", "+e.Sport, ", "))
	}
	if !e.StartTime.IsZero() {
		fmt.Fprintf(&b, ", starts %s", e.StartTime.UTC().Format(time.RFC3339))
	}
	b.WriteByte('\n')

	for _, m := range e.Markets {
		status := m.Status
		if status == "" {
			status = odds.MarketOpen
		}
		fmt.Fprintf(&b, "Market %s (%s, %s", m.ID, m.Type, status)
		if !m.LastUpdated.IsZero() {
			fmt.Fprintf(&b, ", updated %s", m.LastUpdated.UTC().Format(time.RFC3339))
		}
		b.WriteString("):\n")
		for _, l := range m.Lines {
			fmt.Fprintf(&b, "  - %s: %s %s", l.Selection, l.Odds.String(), l.EffectiveFormat())
			if l.ImpliedProbability != nil {
				fmt.Fprintf(&b, " (implied %s)", l.ImpliedProbability.StringFixed(4))
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}
