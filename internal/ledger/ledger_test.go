// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMissing = errors.New("missing")

type memRepo struct {
	mu    sync.Mutex
	order []string
	bets  map[string]Bet
}

func newMemRepo() *memRepo { return &memRepo{bets: map[string]Bet{}} }

func (r *memRepo) InsertBet(_ context.Context, b Bet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bets[b.ID]; ok {
		return fmt.Errorf("duplicate %s", b.ID)
	}
	r.bets[b.ID] = b
	r.order = append(r.order, b.ID)
	return nil
}

func (r *memRepo) GetBet(_ context.Context, id string) (Bet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bets[id]
	if !ok {
		return Bet{}, errMissing
	}
	return b, nil
}

func (r *memRepo) SettleBet(_ context.Context, b Bet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.bets[b.ID]
	if !ok {
		return errMissing
	}
	if cur.Status != StatusPending {
		return ErrAlreadySettled
	}
	r.bets[b.ID] = b
	return nil
}

func (r *memRepo) ListBets(context.Context) ([]Bet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Bet, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.bets[id])
	}
	return out, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestLedger() (*Ledger, *memRepo) {
	repo := newMemRepo()
	l := New(repo)
	l.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }
	return l, repo
}

func TestProfit(t *testing.T) {
	tests := []struct {
		odds   string
		stake  string
		status Status
		want   string
	}{
		{"150", "100", StatusWon, "150"},
		{"-150", "100", StatusWon, "66.67"},
		{"-110", "55", StatusWon, "50"},
		{"150", "100", StatusLost, "-100"},
		{"-150", "100", StatusPush, "0"},
		{"-150", "100", StatusVoid, "0"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%s_%s", tt.odds, tt.stake, tt.status), func(t *testing.T) {
			got := Profit(d(tt.odds), d(tt.stake), tt.status)
			assert.True(t, d(tt.want).Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestPlace(t *testing.T) {
	l, repo := newTestLedger()
	ctx := context.Background()

	b, err := l.Place(ctx, Bet{EventID: "evt_101", Selection: "Golden State Warriors", Odds: d("-150"), Stake: d("100")})
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, l.now(), b.PlacedAt)
	assert.Len(t, repo.bets, 1)

	invalid := []Bet{
		{Selection: "Warriors", Odds: d("-150"), Stake: d("10")},
		{EventID: "evt_101", Odds: d("-150"), Stake: d("10")},
		{EventID: "evt_101", Selection: "Warriors", Odds: d("50"), Stake: d("10")},
		{EventID: "evt_101", Selection: "Warriors", Odds: d("0"), Stake: d("10")},
		{EventID: "evt_101", Selection: "Warriors", Odds: d("120"), Stake: d("0")},
		{EventID: "evt_101", Selection: "Warriors", Odds: d("120"), Stake: d("-5")},
	}
	for i, bad := range invalid {
		_, err := l.Place(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidBet, "case %d", i)
	}
	assert.Len(t, repo.bets, 1)
}

func TestSettle(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()

	b, err := l.Place(ctx, Bet{ID: "bet_1", EventID: "evt_101", Selection: "Warriors", Odds: d("150"), Stake: d("40")})
	require.NoError(t, err)

	_, err = l.Settle(ctx, b.ID, StatusPending)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	settled, err := l.Settle(ctx, b.ID, StatusWon)
	require.NoError(t, err)
	assert.Equal(t, StatusWon, settled.Status)
	require.NotNil(t, settled.SettledAt)
	assert.True(t, d("60").Equal(settled.Profit))

	_, err = l.Settle(ctx, b.ID, StatusLost)
	assert.ErrorIs(t, err, ErrAlreadySettled)

	_, err = l.Settle(ctx, "bet_404", StatusWon)
	assert.ErrorIs(t, err, errMissing)
}

func TestSummary(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()

	place := func(id, price, stake string) {
		t.Helper()
		_, err := l.Place(ctx, Bet{ID: id, EventID: "evt_" + id, Selection: "Home", Odds: d(price), Stake: d(stake)})
		require.NoError(t, err)
	}
	place("a", "150", "100")
	place("b", "-200", "100")
	place("c", "-110", "100")
	place("d", "120", "100")
	place("e", "120", "50")

	for id, st := range map[string]Status{"a": StatusWon, "b": StatusLost, "c": StatusPush, "e": StatusVoid} {
		_, err := l.Settle(ctx, id, st)
		require.NoError(t, err)
	}

	sum, err := l.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Bets)
	assert.Equal(t, 1, sum.Pending)
	assert.Equal(t, 4, sum.Settled)
	assert.Equal(t, 1, sum.Wins)
	assert.Equal(t, 1, sum.Losses)
	assert.Equal(t, 1, sum.Pushes)
	assert.True(t, d("450").Equal(sum.Staked))
	assert.True(t, d("50").Equal(sum.Profit))
	// 50 profit over 300 settled non-void stake.
	assert.True(t, d("16.67").Equal(sum.ROI), "roi %s", sum.ROI)
}

func TestSummarize_Empty(t *testing.T) {
	sum := Summarize(nil)
	assert.Zero(t, sum.Bets)
	assert.True(t, sum.ROI.IsZero())
}
