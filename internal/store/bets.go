// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/betspecs/betspecs/internal/ledger"
)

var _ ledger.Repository = (*Store)(nil)

const betColumns = `id, event_id, market_id, selection, odds, stake, status, verification_id, placed_at, settled_at, profit`

// InsertBet stores a new bet.
func (s *Store) InsertBet(ctx context.Context, b ledger.Bet) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO bets (`+betColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.EventID, b.MarketID, b.Selection, b.Odds.String(), b.Stake.String(), string(b.Status),
		b.VerificationID, formatTime(b.PlacedAt), nullTime(b), b.Profit.String(),
	)
	if err != nil {
		return fmt.Errorf("insert bet %s: %w", b.ID, err)
	}
	return nil
}

// GetBet loads a bet by ID.
func (s *Store) GetBet(ctx context.Context, id string) (ledger.Bet, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+betColumns+` FROM bets WHERE id = ?`, id)
	b, err := scanBet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Bet{}, fmt.Errorf("bet %s: %w", id, ErrNotFound)
	}
	return b, err
}

// SettleBet persists the settlement fields of a bet that is still pending.
// A bet settled in the meantime yields ledger.ErrAlreadySettled.
func (s *Store) SettleBet(ctx context.Context, b ledger.Bet) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bets SET status = ?, settled_at = ?, profit = ? WHERE id = ? AND status = ?`,
		string(b.Status), nullTime(b), b.Profit.String(), b.ID, string(ledger.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("settle bet %s: %w", b.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("settle bet %s: %w", b.ID, err)
	}
	if n == 1 {
		return nil
	}

	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM bets WHERE id = ?`, b.ID).Scan(&status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("bet %s: %w", b.ID, ErrNotFound)
	case err != nil:
		return fmt.Errorf("settle bet %s: %w", b.ID, err)
	}
	return fmt.Errorf("%w: %s is %s", ledger.ErrAlreadySettled, b.ID, status)
}

// ListBets returns every bet in placement order.
func (s *Store) ListBets(ctx context.Context) ([]ledger.Bet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+betColumns+` FROM bets ORDER BY placed_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query bets: %w", err)
	}
	defer rows.Close()

	var bets []ledger.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBet(sc scanner) (ledger.Bet, error) {
	var (
		b                    ledger.Bet
		price, stake, status string
		placed, profit       string
		settled              sql.NullString
	)
	if err := sc.Scan(&b.ID, &b.EventID, &b.MarketID, &b.Selection, &price, &stake, &status,
		&b.VerificationID, &placed, &settled, &profit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Bet{}, err
		}
		return ledger.Bet{}, fmt.Errorf("scan bet: %w", err)
	}

	var err error
	if b.Odds, err = decimal.NewFromString(price); err != nil {
		return ledger.Bet{}, fmt.Errorf("parse odds %q: %w", price, err)
	}
	if b.Stake, err = decimal.NewFromString(stake); err != nil {
		return ledger.Bet{}, fmt.Errorf("parse stake %q: %w", stake, err)
	}
	if b.Profit, err = decimal.NewFromString(profit); err != nil {
		return ledger.Bet{}, fmt.Errorf("parse profit %q: %w", profit, err)
	}
	b.Status = ledger.Status(status)
	if b.PlacedAt, err = parseTime(placed); err != nil {
		return ledger.Bet{}, err
	}
	if settled.Valid {
		t, err := parseTime(settled.String)
		if err != nil {
			return ledger.Bet{}, err
		}
		b.SettledAt = &t
	}
	return b, nil
}

func nullTime(b ledger.Bet) sql.NullString {
	if b.SettledAt == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*b.SettledAt), Valid: true}
}
