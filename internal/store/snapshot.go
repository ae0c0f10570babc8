// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	xglog "github.com/betspecs/betspecs/internal/log"
	"github.com/betspecs/betspecs/internal/odds"
)

// ApplyStats reports what an applied snapshot touched.
type ApplyStats struct {
	Events  int `json:"events"`
	Markets int `json:"markets"`
	Lines   int `json:"lines"`
	// Changed counts lines that were new or whose price moved.
	Changed int `json:"changed"`
}

// ApplySnapshot upserts every event, market and line of the snapshot in one
// transaction. New or re-priced lines are appended to line_history.
func (s *Store) ApplySnapshot(ctx context.Context, snap odds.Snapshot) (ApplyStats, error) {
	var stats ApplyStats
	captured := snap.CapturedAt
	if captured.IsZero() {
		captured = time.Now()
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range snap.Events {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO events (id, sport, league, home_team, away_team, start_time, provider, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					sport = excluded.sport,
					league = excluded.league,
					home_team = excluded.home_team,
					away_team = excluded.away_team,
					start_time = excluded.start_time,
					provider = excluded.provider,
					updated_at = excluded.updated_at`,
				e.ID, e.Sport, e.League, e.HomeTeam, e.AwayTeam, formatTime(e.StartTime), snap.Provider, formatTime(captured),
			); err != nil {
				return fmt.Errorf("upsert event %s: %w", e.ID, err)
			}
			stats.Events++

			for _, m := range e.Markets {
				status := m.Status
				if status == "" {
					status = odds.MarketOpen
				}
				lastUpdated := m.LastUpdated
				if lastUpdated.IsZero() {
					lastUpdated = captured
				}
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO markets (id, event_id, market_type, status, last_updated)
					VALUES (?, ?, ?, ?, ?)
					ON CONFLICT(id) DO UPDATE SET
						event_id = excluded.event_id,
						market_type = excluded.market_type,
						status = excluded.status,
						last_updated = excluded.last_updated`,
					m.ID, e.ID, m.Type, string(status), formatTime(lastUpdated),
				); err != nil {
					return fmt.Errorf("upsert market %s: %w", m.ID, err)
				}
				stats.Markets++

				for _, l := range m.Lines {
					changed, err := upsertLine(ctx, tx, m.ID, l, snap.Provider, lastUpdated)
					if err != nil {
						return err
					}
					stats.Lines++
					if changed {
						stats.Changed++
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return ApplyStats{}, err
	}

	s.logger.Debug().
		Str(xglog.FieldEvent, "store.snapshot_applied").
		Str(xglog.FieldProvider, snap.Provider).
		Int("events", stats.Events).
		Int("lines", stats.Lines).
		Int("changed", stats.Changed).
		Msg("snapshot applied")
	return stats, nil
}

func upsertLine(ctx context.Context, tx *sql.Tx, marketID string, l odds.Line, provider string, at time.Time) (bool, error) {
	var current string
	err := tx.QueryRowContext(ctx,
		`SELECT odds FROM lines WHERE market_id = ? AND selection = ?`, marketID, l.Selection,
	).Scan(&current)

	changed := false
	switch {
	case errors.Is(err, sql.ErrNoRows):
		changed = true
	case err != nil:
		return false, fmt.Errorf("read line %s/%s: %w", marketID, l.Selection, err)
	default:
		prev, perr := decimal.NewFromString(current)
		changed = perr != nil || !prev.Equal(l.Odds)
	}

	var implied sql.NullString
	if l.ImpliedProbability != nil {
		implied = sql.NullString{String: l.ImpliedProbability.String(), Valid: true}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO lines (market_id, selection, odds, odds_format, implied_probability, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(market_id, selection) DO UPDATE SET
			odds = excluded.odds,
			odds_format = excluded.odds_format,
			implied_probability = excluded.implied_probability,
			updated_at = excluded.updated_at`,
		marketID, l.Selection, l.Odds.String(), string(l.EffectiveFormat()), implied, formatTime(at),
	); err != nil {
		return false, fmt.Errorf("upsert line %s/%s: %w", marketID, l.Selection, err)
	}

	if changed {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO line_history (market_id, selection, odds, odds_format, provider, captured_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			marketID, l.Selection, l.Odds.String(), string(l.EffectiveFormat()), provider, formatTime(at),
		); err != nil {
			return false, fmt.Errorf("append history %s/%s: %w", marketID, l.Selection, err)
		}
	}
	return changed, nil
}

// Event loads an event with all its markets and current lines.
func (s *Store) Event(ctx context.Context, id string) (*odds.Event, error) {
	var (
		e     odds.Event
		start string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, sport, league, home_team, away_team, start_time FROM events WHERE id = ?`, id,
	).Scan(&e.ID, &e.Sport, &e.League, &e.HomeTeam, &e.AwayTeam, &start)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query event %s: %w", id, err)
	}
	if e.StartTime, err = parseTime(start); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.market_type, m.status, m.last_updated,
		       l.selection, l.odds, l.odds_format, l.implied_probability
		FROM markets m
		LEFT JOIN lines l ON l.market_id = m.id
		WHERE m.event_id = ?
		ORDER BY m.id, l.rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("query markets %s: %w", id, err)
	}
	defer rows.Close()

	index := map[string]int{}
	for rows.Next() {
		var (
			marketID, marketType, status, updated string
			selection, price, format, implied     sql.NullString
		)
		if err := rows.Scan(&marketID, &marketType, &status, &updated, &selection, &price, &format, &implied); err != nil {
			return nil, fmt.Errorf("scan market row: %w", err)
		}
		i, ok := index[marketID]
		if !ok {
			lastUpdated, err := parseTime(updated)
			if err != nil {
				return nil, err
			}
			e.Markets = append(e.Markets, odds.Market{
				ID:          marketID,
				Type:        marketType,
				Status:      odds.MarketStatus(status),
				LastUpdated: lastUpdated,
			})
			i = len(e.Markets) - 1
			index[marketID] = i
		}
		if !selection.Valid {
			continue
		}
		line, err := scanLine(selection.String, price.String, format.String, implied)
		if err != nil {
			return nil, err
		}
		e.Markets[i].Lines = append(e.Markets[i].Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate markets: %w", err)
	}
	return &e, nil
}

func scanLine(selection, price, format string, implied sql.NullString) (odds.Line, error) {
	v, err := decimal.NewFromString(price)
	if err != nil {
		return odds.Line{}, fmt.Errorf("parse odds %q: %w", price, err)
	}
	l := odds.Line{Selection: selection, Odds: v, Format: odds.Format(format)}
	if implied.Valid {
		p, err := decimal.NewFromString(implied.String)
		if err != nil {
			return odds.Line{}, fmt.Errorf("parse implied probability %q: %w", implied.String, err)
		}
		l.ImpliedProbability = &p
	}
	return l, nil
}

// EventIDs lists known event IDs, most recently updated first.
func (s *Store) EventIDs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM events ORDER BY updated_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan event id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// History returns earlier prices of a selection, newest first.
func (s *Store) History(ctx context.Context, marketID, selection string, limit int) ([]odds.Quote, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT odds, odds_format, provider, captured_at
		FROM line_history
		WHERE market_id = ? AND selection = ?
		ORDER BY captured_at DESC, id DESC
		LIMIT ?`, marketID, selection, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var quotes []odds.Quote
	for rows.Next() {
		var price, format, provider, captured string
		if err := rows.Scan(&price, &format, &provider, &captured); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		v, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parse odds %q: %w", price, err)
		}
		at, err := parseTime(captured)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, odds.Quote{
			MarketID:   marketID,
			Selection:  selection,
			Odds:       v,
			Format:     odds.Format(format),
			CapturedAt: at,
			Provider:   provider,
		})
	}
	return quotes, rows.Err()
}
