// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betspecs/betspecs/internal/ledger"
	"github.com/betspecs/betspecs/internal/odds"
	"github.com/betspecs/betspecs/internal/persistence/sqlite"
	"github.com/betspecs/betspecs/internal/trust"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "betspecs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSnapshot(at time.Time, warriors, lakers, total string) odds.Snapshot {
	return odds.Snapshot{
		Provider:   "pinnacle",
		CapturedAt: at,
		Events: []odds.Event{{
			ID:        "evt_101",
			Sport:     "basketball",
			League:    "NBA",
			HomeTeam:  "Golden State Warriors",
			AwayTeam:  "Los Angeles Lakers",
			StartTime: time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC),
			Markets: []odds.Market{
				{
					ID:          "mkt_101_ml",
					Type:        odds.MarketMoneyline,
					Status:      odds.MarketOpen,
					LastUpdated: at,
					Lines: []odds.Line{
						{Selection: "Golden State Warriors", Odds: d(warriors), Format: odds.FormatAmerican},
						{Selection: "Los Angeles Lakers", Odds: d(lakers), Format: odds.FormatAmerican},
					},
				},
				{
					ID:          "mkt_101_tot",
					Type:        odds.MarketTotal,
					Status:      odds.MarketOpen,
					LastUpdated: at,
					Lines: []odds.Line{
						{Selection: "Over", Odds: d(total), Format: odds.FormatPoints},
					},
				},
			},
		}},
	}
}

func TestApplySnapshot_EventRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	snap := testSnapshot(at, "-150", "130", "210.5")
	stats, err := s.ApplySnapshot(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, ApplyStats{Events: 1, Markets: 2, Lines: 3, Changed: 3}, stats)

	got, err := s.Event(ctx, "evt_101")
	require.NoError(t, err)

	want := snap.Events[0]
	if diff := cmp.Diff(&want, got, decimalEqual); diff != "" {
		t.Errorf("Event mismatch (-want +got):\n%s", diff)
	}

	_, err = s.Event(ctx, "evt_999")
	assert.True(t, errors.Is(err, ErrNotFound))

	ids, err := s.EventIDs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"evt_101"}, ids)
}

func TestApplySnapshot_History(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	t2 := t1.Add(time.Hour)

	_, err := s.ApplySnapshot(ctx, testSnapshot(t0, "-150", "130", "210.5"))
	require.NoError(t, err)

	// Same prices: nothing changes.
	stats, err := s.ApplySnapshot(ctx, testSnapshot(t1, "-150", "130", "210.5"))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Changed)

	stats, err = s.ApplySnapshot(ctx, testSnapshot(t2, "-150", "130", "212"))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Changed)

	quotes, err := s.History(ctx, "mkt_101_tot", "Over", 10)
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.True(t, d("212").Equal(quotes[0].Odds))
	assert.Equal(t, t2, quotes[0].CapturedAt)
	assert.True(t, d("210.5").Equal(quotes[1].Odds))
	assert.Equal(t, odds.FormatPoints, quotes[1].Format)
	assert.Equal(t, "pinnacle", quotes[1].Provider)

	evt, err := s.Event(ctx, "evt_101")
	require.NoError(t, err)
	m, ok := evt.Market(odds.MarketTotal)
	require.True(t, ok)
	assert.True(t, d("212").Equal(m.Lines[0].Odds))
	assert.Equal(t, t2, m.LastUpdated)
}

func TestVerifications(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	results := []trust.Result{
		{ID: "v1", EventID: "evt_101", Status: trust.StatusVerified, ClaimType: trust.ClaimTeam, Claim: "Team: Dubs",
			Metadata: map[string]string{trust.MetaMatchedVia: trust.MatchAlias}, Timestamp: at},
		{ID: "v2", EventID: "evt_101", Status: trust.StatusFailed, ClaimType: trust.ClaimOdds, Claim: "Odds for Dubs",
			SourceValue: "-500", AIValue: "200", Discrepancy: "Difference of 700 exceeds tolerance 0.01", Timestamp: at.Add(time.Second)},
		{ID: "v3", EventID: "evt_202", Status: trust.StatusStale, ClaimType: trust.ClaimOdds, Claim: "Odds for Over", Timestamp: at.Add(2 * time.Second)},
	}
	for _, r := range results {
		require.NoError(t, s.RecordVerification(ctx, r))
	}

	all, err := s.ListVerifications(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "v3", all[0].ID, "newest first")

	byEvent, err := s.ListVerifications(ctx, Filter{EventID: "evt_101"})
	require.NoError(t, err)
	if diff := cmp.Diff([]trust.Result{results[1], results[0]}, byEvent); diff != "" {
		t.Errorf("ListVerifications mismatch (-want +got):\n%s", diff)
	}

	failed, err := s.ListVerifications(ctx, Filter{Status: trust.StatusFailed, Limit: 5})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "v2", failed[0].ID)

	sum, err := s.VerificationCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.TotalChecks)
	assert.Equal(t, 1, sum.Verified)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Stale)
	assert.InDelta(t, 1.0/3.0, sum.PassRate, 1e-9)

	// Duplicate IDs are rejected.
	assert.Error(t, s.RecordVerification(ctx, results[0]))
}

func TestBets(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	placed := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	b := ledger.Bet{
		ID:        "bet_1",
		EventID:   "evt_101",
		Selection: "Golden State Warriors",
		Odds:      d("-150"),
		Stake:     d("100"),
		Status:    ledger.StatusPending,
		PlacedAt:  placed,
		Profit:    decimal.Zero,
	}
	require.NoError(t, s.InsertBet(ctx, b))

	got, err := s.GetBet(ctx, "bet_1")
	require.NoError(t, err)
	if diff := cmp.Diff(b, got, decimalEqual); diff != "" {
		t.Errorf("GetBet mismatch (-want +got):\n%s", diff)
	}

	settled := placed.Add(3 * time.Hour)
	b.Status = ledger.StatusWon
	b.SettledAt = &settled
	b.Profit = d("66.67")
	require.NoError(t, s.SettleBet(ctx, b))

	bets, err := s.ListBets(ctx)
	require.NoError(t, err)
	require.Len(t, bets, 1)
	if diff := cmp.Diff(b, bets[0], decimalEqual); diff != "" {
		t.Errorf("ListBets mismatch (-want +got):\n%s", diff)
	}

	_, err = s.GetBet(ctx, "bet_404")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.SettleBet(ctx, ledger.Bet{ID: "bet_404"}), ErrNotFound))

	// Settling twice is refused at the row level.
	b.Status = ledger.StatusLost
	assert.ErrorIs(t, s.SettleBet(ctx, b), ledger.ErrAlreadySettled)
	got, err = s.GetBet(ctx, "bet_1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusWon, got.Status)
}

func TestLedger_ConcurrentSettleHasOneWinner(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	l := ledger.New(s)

	for i := 0; i < 20; i++ {
		bet, err := l.Place(ctx, ledger.Bet{
			EventID:   "evt_101",
			Selection: "Golden State Warriors",
			Odds:      d("-150"),
			Stake:     d("100"),
		})
		require.NoError(t, err)

		var (
			wg        sync.WaitGroup
			successes atomic.Int32
			refused   atomic.Int32
		)
		for _, status := range []ledger.Status{ledger.StatusWon, ledger.StatusLost, ledger.StatusPush, ledger.StatusVoid} {
			wg.Add(1)
			go func(status ledger.Status) {
				defer wg.Done()
				_, err := l.Settle(ctx, bet.ID, status)
				switch {
				case err == nil:
					successes.Add(1)
				case errors.Is(err, ledger.ErrAlreadySettled):
					refused.Add(1)
				default:
					t.Errorf("settle %s: %v", status, err)
				}
			}(status)
		}
		wg.Wait()

		assert.Equal(t, int32(1), successes.Load(), "bet %s", bet.ID)
		assert.Equal(t, int32(3), refused.Load(), "bet %s", bet.ID)
	}
}

func TestStore_SchemaAndIntegrity(t *testing.T) {
	s := openTestStore(t)

	v, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	require.NoError(t, s.Ping(context.Background()))

	issues, err := sqlite.VerifyIntegrity(s.Path(), sqlite.ModeQuick)
	require.NoError(t, err)
	assert.Nil(t, issues)
}
