// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package odds

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Common market types.
const (
	MarketMoneyline = "moneyline"
	MarketSpread    = "spread"
	MarketTotal     = "total"
)

// Market is a betting market with multiple lines.
type Market struct {
	ID          string       `json:"market_id"`
	Type        string       `json:"market_type"`
	Status      MarketStatus `json:"status,omitempty"`
	Lines       []Line       `json:"lines"`
	LastUpdated time.Time    `json:"last_updated"`
}

// IsActive reports whether the market is tradeable.
func (m Market) IsActive() bool {
	return m.Status == MarketOpen || m.Status == ""
}

// Line returns the line with exactly the given selection.
func (m Market) Line(selection string) (Line, bool) {
	for _, l := range m.Lines {
		if l.Selection == selection {
			return l, true
		}
	}
	return Line{}, false
}

// Event is a sporting event with markets.
type Event struct {
	ID        string    `json:"event_id"`
	Sport     string    `json:"sport"`
	League    string    `json:"league"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	StartTime time.Time `json:"start_time"`
	Markets   []Market  `json:"markets"`
}

// Market returns the first market of the given type.
func (e Event) Market(marketType string) (Market, bool) {
	for _, m := range e.Markets {
		if m.Type == marketType {
			return m, true
		}
	}
	return Market{}, false
}

// Snapshot is a point-in-time capture of odds from one provider.
type Snapshot struct {
	Provider   string    `json:"provider"`
	CapturedAt time.Time `json:"captured_at"`
	Events     []Event   `json:"events"`
}

// GetEvent finds an event by ID.
func (s Snapshot) GetEvent(eventID string) (*Event, bool) {
	for i := range s.Events {
		if s.Events[i].ID == eventID {
			return &s.Events[i], true
		}
	}
	return nil, false
}

// Validate checks identifiers and every line in the snapshot.
func (s Snapshot) Validate() error {
	if s.Provider == "" {
		return fmt.Errorf("snapshot: provider is empty")
	}
	for _, e := range s.Events {
		if e.ID == "" {
			return fmt.Errorf("snapshot: event without event_id")
		}
		for _, m := range e.Markets {
			if m.ID == "" {
				return fmt.Errorf("event %s: market without market_id", e.ID)
			}
			if m.Status != "" && !m.Status.Valid() {
				return fmt.Errorf("event %s market %s: unknown status %q", e.ID, m.ID, m.Status)
			}
			for _, l := range m.Lines {
				if err := l.Validate(); err != nil {
					return fmt.Errorf("event %s market %s selection %q: %w", e.ID, m.ID, l.Selection, err)
				}
			}
		}
	}
	return nil
}

// Quote is a single historical price for a selection.
type Quote struct {
	MarketID   string          `json:"market_id"`
	Selection  string          `json:"selection"`
	Odds       decimal.Decimal `json:"odds"`
	Format     Format          `json:"odds_format"`
	CapturedAt time.Time       `json:"captured_at"`
	Provider   string          `json:"provider,omitempty"`
}
