// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ledger tracks bets placed on verified predictions and computes
// profit and loss.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	xglog "github.com/betspecs/betspecs/internal/log"
	"github.com/betspecs/betspecs/internal/metrics"
	"github.com/betspecs/betspecs/internal/odds"
)

// Status is the lifecycle state of a bet.
type Status string

const (
	StatusPending Status = "pending"
	StatusWon     Status = "won"
	StatusLost    Status = "lost"
	StatusPush    Status = "push"
	StatusVoid    Status = "void"
)

// Settled reports whether s is a final state.
func (s Status) Settled() bool {
	switch s {
	case StatusWon, StatusLost, StatusPush, StatusVoid:
		return true
	default:
		return false
	}
}

var (
	// ErrAlreadySettled is returned when settling a bet that is not pending.
	ErrAlreadySettled = errors.New("bet already settled")
	// ErrInvalidBet is returned for bets that fail validation.
	ErrInvalidBet = errors.New("invalid bet")
	// ErrInvalidStatus is returned for unknown settlement states.
	ErrInvalidStatus = errors.New("invalid settlement status")
)

// Bet is a wager on a selection at american odds.
type Bet struct {
	ID             string          `json:"bet_id"`
	EventID        string          `json:"event_id"`
	MarketID       string          `json:"market_id,omitempty"`
	Selection      string          `json:"selection"`
	Odds           decimal.Decimal `json:"odds"`
	Stake          decimal.Decimal `json:"stake"`
	Status         Status          `json:"status"`
	VerificationID string          `json:"verification_id,omitempty"`
	PlacedAt       time.Time       `json:"placed_at"`
	SettledAt      *time.Time      `json:"settled_at,omitempty"`
	Profit         decimal.Decimal `json:"profit"`
}

// Repository persists bets.
type Repository interface {
	InsertBet(ctx context.Context, b Bet) error
	GetBet(ctx context.Context, id string) (Bet, error)
	// SettleBet stores the settlement fields of b only while the stored bet
	// is still pending, and returns ErrAlreadySettled otherwise.
	SettleBet(ctx context.Context, b Bet) error
	ListBets(ctx context.Context) ([]Bet, error)
}

// Summary aggregates ledger performance.
type Summary struct {
	Bets    int             `json:"bets"`
	Pending int             `json:"pending"`
	Settled int             `json:"settled"`
	Wins    int             `json:"wins"`
	Losses  int             `json:"losses"`
	Pushes  int             `json:"pushes"`
	Staked  decimal.Decimal `json:"staked"`
	Profit  decimal.Decimal `json:"profit"`
	// ROI is profit over settled stake, in percent.
	ROI decimal.Decimal `json:"roi"`
}

// Ledger places and settles bets.
type Ledger struct {
	repo   Repository
	now    func() time.Time
	logger zerolog.Logger
}

// New returns a Ledger backed by repo.
func New(repo Repository) *Ledger {
	return &Ledger{repo: repo, now: time.Now, logger: xglog.WithComponent("ledger")}
}

// Place validates and records a pending bet. ID and PlacedAt are assigned
// when empty.
func (l *Ledger) Place(ctx context.Context, b Bet) (Bet, error) {
	if strings.TrimSpace(b.EventID) == "" || strings.TrimSpace(b.Selection) == "" {
		return Bet{}, fmt.Errorf("%w: event_id and selection are required", ErrInvalidBet)
	}
	if err := odds.ValidateAmerican(b.Odds); err != nil {
		return Bet{}, fmt.Errorf("%w: %w", ErrInvalidBet, err)
	}
	if b.Odds.IsZero() {
		return Bet{}, fmt.Errorf("%w: odds must be non-zero", ErrInvalidBet)
	}
	if !b.Stake.IsPositive() {
		return Bet{}, fmt.Errorf("%w: stake must be positive", ErrInvalidBet)
	}

	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.PlacedAt.IsZero() {
		b.PlacedAt = l.now().UTC()
	}
	b.Status = StatusPending
	b.SettledAt = nil
	b.Profit = decimal.Zero

	if err := l.repo.InsertBet(ctx, b); err != nil {
		return Bet{}, fmt.Errorf("insert bet: %w", err)
	}
	metrics.RecordBet("placed")
	l.logger.Info().
		Str(xglog.FieldEvent, "ledger.bet_placed").
		Str(xglog.FieldBetID, b.ID).
		Str(xglog.FieldEventID, b.EventID).
		Str("stake", b.Stake.String()).
		Str("odds", b.Odds.String()).
		Msg("bet placed")
	return b, nil
}

// Settle closes a pending bet with a final status and computes its profit.
func (l *Ledger) Settle(ctx context.Context, id string, status Status) (Bet, error) {
	if !status.Settled() {
		return Bet{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	b, err := l.repo.GetBet(ctx, id)
	if err != nil {
		return Bet{}, err
	}
	if b.Status != StatusPending {
		return Bet{}, fmt.Errorf("%w: %s is %s", ErrAlreadySettled, id, b.Status)
	}

	now := l.now().UTC()
	b.Status = status
	b.SettledAt = &now
	b.Profit = Profit(b.Odds, b.Stake, status)

	if err := l.repo.SettleBet(ctx, b); err != nil {
		return Bet{}, fmt.Errorf("settle bet: %w", err)
	}
	metrics.RecordBet(string(status))
	l.logger.Info().
		Str(xglog.FieldEvent, "ledger.bet_settled").
		Str(xglog.FieldBetID, b.ID).
		Str(xglog.FieldStatus, string(status)).
		Str("profit", b.Profit.String()).
		Msg("bet settled")
	return b, nil
}

// Profit returns the result of a settled bet at american odds.
func Profit(americanOdds, stake decimal.Decimal, status Status) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	switch status {
	case StatusWon:
		if americanOdds.IsPositive() {
			return stake.Mul(americanOdds).Div(hundred).Round(2)
		}
		return stake.Mul(hundred).Div(americanOdds.Abs()).Round(2)
	case StatusLost:
		return stake.Neg()
	default:
		return decimal.Zero
	}
}

// Bets lists every bet.
func (l *Ledger) Bets(ctx context.Context) ([]Bet, error) {
	return l.repo.ListBets(ctx)
}

// Summary aggregates all bets.
func (l *Ledger) Summary(ctx context.Context) (Summary, error) {
	bets, err := l.repo.ListBets(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list bets: %w", err)
	}
	return Summarize(bets), nil
}

// Summarize computes a Summary over bets.
func Summarize(bets []Bet) Summary {
	s := Summary{Staked: decimal.Zero, Profit: decimal.Zero, ROI: decimal.Zero}
	settledStake := decimal.Zero
	for _, b := range bets {
		s.Bets++
		s.Staked = s.Staked.Add(b.Stake)
		switch b.Status {
		case StatusPending:
			s.Pending++
			continue
		case StatusWon:
			s.Wins++
		case StatusLost:
			s.Losses++
		case StatusPush:
			s.Pushes++
		}
		s.Settled++
		s.Profit = s.Profit.Add(b.Profit)
		if b.Status != StatusVoid {
			settledStake = settledStake.Add(b.Stake)
		}
	}
	if settledStake.IsPositive() {
		s.ROI = s.Profit.Div(settledStake).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return s
}
