// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package agent

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betspecs/betspecs/internal/cache"
	"github.com/betspecs/betspecs/internal/odds"
	"github.com/betspecs/betspecs/internal/store"
	"github.com/betspecs/betspecs/internal/trust"
)

var t0 = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func snapshotAt(at time.Time, warriors string) odds.Snapshot {
	return odds.Snapshot{
		Provider:   "pinnacle",
		CapturedAt: at,
		Events: []odds.Event{{
			ID:        "evt_101",
			Sport:     "basketball",
			League:    "NBA",
			HomeTeam:  "Golden State Warriors",
			AwayTeam:  "Los Angeles Lakers",
			StartTime: t0.Add(14 * time.Hour),
			Markets: []odds.Market{
				{
					ID: "mkt_101_ml", Type: odds.MarketMoneyline, Status: odds.MarketOpen, LastUpdated: at,
					Lines: []odds.Line{
						{Selection: "Golden State Warriors", Odds: d(warriors), Format: odds.FormatAmerican},
						{Selection: "Los Angeles Lakers", Odds: d("130"), Format: odds.FormatAmerican},
					},
				},
				{
					ID: "mkt_101_sp", Type: odds.MarketSpread, Status: odds.MarketSuspended, LastUpdated: at,
					Lines: []odds.Line{
						{Selection: "Golden State Warriors", Odds: d("-5.5"), Format: odds.FormatPoints},
					},
				},
			},
		}},
	}
}

type countingStore struct {
	*store.Store
	events atomic.Int32
}

func (c *countingStore) Event(ctx context.Context, id string) (*odds.Event, error) {
	c.events.Add(1)
	return c.Store.Event(ctx, id)
}

// gatedStore blocks event reads until release is closed.
type gatedStore struct {
	*store.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) Event(ctx context.Context, id string) (*odds.Event, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-g.release:
	}
	return g.Store.Event(ctx, id)
}

func newTestStore(t *testing.T, snaps ...odds.Snapshot) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	for _, s := range snaps {
		_, err := st.ApplySnapshot(context.Background(), s)
		require.NoError(t, err)
	}
	return st
}

func newTestValidator(now time.Time) *trust.Validator {
	return trust.New(trust.DefaultConfig(),
		trust.WithAliases(trust.DefaultAliasRegistry()),
		trust.WithClock(func() time.Time { return now }),
	)
}

func newTestAgent(t *testing.T, snaps ...odds.Snapshot) *Agent {
	t.Helper()
	return New(newTestStore(t, snaps...), nil, newTestValidator(t0.Add(time.Minute)))
}

func prediction(eventID, marketType, selection, price string, confidence float64) trust.Prediction {
	return trust.Prediction{
		EventID:        eventID,
		PredictionType: marketType,
		Selection:      selection,
		OddsClaimed:    d(price),
		Confidence:     confidence,
	}
}

func TestAgent_Verify(t *testing.T) {
	a := newTestAgent(t, snapshotAt(t0, "-150"))

	tests := []struct {
		name       string
		p          trust.Prediction
		wantPassed bool
		wantClaims []string
		wantStatus []trust.Status
	}{
		{
			name:       "alias and exact price",
			p:          prediction("evt_101", "moneyline", "Warriors", "-150", 0.6),
			wantPassed: true,
			wantClaims: []string{trust.ClaimTeam, trust.ClaimOdds},
			wantStatus: []trust.Status{trust.StatusVerified, trust.StatusVerified},
		},
		{
			name:       "wrong price",
			p:          prediction("evt_101", "moneyline", "Golden State Warriors", "-200", 0.6),
			wantClaims: []string{trust.ClaimTeam, trust.ClaimOdds},
			wantStatus: []trust.Status{trust.StatusVerified, trust.StatusFailed},
		},
		{
			name:       "hallucinated event",
			p:          prediction("evt_999", "moneyline", "Warriors", "-150", 0.6),
			wantClaims: []string{trust.ClaimEvent},
			wantStatus: []trust.Status{trust.StatusFailed},
		},
		{
			name:       "missing market",
			p:          prediction("evt_101", "total", "Over", "220.5", 0.6),
			wantClaims: []string{trust.ClaimMarket},
			wantStatus: []trust.Status{trust.StatusFailed},
		},
		{
			name:       "suspended market",
			p:          prediction("evt_101", "spread", "Warriors", "-5.5", 0.6),
			wantClaims: []string{trust.ClaimMarket},
			wantStatus: []trust.Status{trust.StatusSkipped},
		},
		{
			name:       "team not in event",
			p:          prediction("evt_101", "moneyline", "Boston Celtics", "-150", 0.6),
			wantClaims: []string{trust.ClaimTeam},
			wantStatus: []trust.Status{trust.StatusFailed},
		},
		{
			name:       "confidence out of range",
			p:          prediction("evt_101", "moneyline", "Warriors", "-150", 1.5),
			wantClaims: []string{trust.ClaimTeam, trust.ClaimOdds, trust.ClaimConfidence},
			wantStatus: []trust.Status{trust.StatusVerified, trust.StatusVerified, trust.StatusFailed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := a.Verify(context.Background(), tt.p)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPassed, out.Passed)

			var claims []string
			var statuses []trust.Status
			for _, r := range out.Results {
				claims = append(claims, r.ClaimType)
				statuses = append(statuses, r.Status)
				assert.Equal(t, tt.p.EventID, r.EventID)
			}
			assert.Equal(t, tt.wantClaims, claims)
			assert.Equal(t, tt.wantStatus, statuses)
		})
	}

	sum := a.Validator().Summary()
	assert.Equal(t, 11, sum.TotalChecks)
	assert.Equal(t, 5, sum.Verified)
}

func TestAgent_VerifyDefaultsToMoneyline(t *testing.T) {
	a := newTestAgent(t, snapshotAt(t0, "-150"))

	out, err := a.Verify(context.Background(), prediction("evt_101", "", "Lakers", "130", 0.4))
	require.NoError(t, err)
	assert.Equal(t, "mkt_101_ml", out.MarketID)
	// "Lakers" has no default alias; substring matching makes it partial.
	assert.False(t, out.Passed)
	require.NotEmpty(t, out.Results)
	assert.Equal(t, trust.StatusPartial, out.Results[0].Status)
}

func TestAgent_VerifyLineMoved(t *testing.T) {
	a := New(
		newTestStore(t, snapshotAt(t0, "-150"), snapshotAt(t0.Add(30*time.Second), "-170")),
		nil,
		newTestValidator(t0.Add(time.Minute)),
	)

	out, err := a.Verify(context.Background(), prediction("evt_101", "moneyline", "Warriors", "-150", 0.6))
	require.NoError(t, err)
	assert.False(t, out.Passed)

	require.Len(t, out.Results, 2)
	moved := out.Results[1]
	assert.Equal(t, trust.StatusStale, moved.Status)
	assert.Equal(t, "Line moved from -150 to -170", moved.Discrepancy)
	assert.Equal(t, "-150", moved.Metadata[trust.MetaLineMovedFrom])
	assert.Equal(t, "-170", moved.Metadata[trust.MetaLineMovedTo])
	assert.Contains(t, out.Feedback()[0], "verified value: -170")
}

func TestAgent_EventCache(t *testing.T) {
	st := &countingStore{Store: newTestStore(t, snapshotAt(t0, "-150"))}
	mem := cache.NewMemoryCache(100, 0)
	defer mem.Close()
	events := cache.NewEventCache(mem, time.Minute, zerolog.Nop())

	a := New(st, events, newTestValidator(t0.Add(time.Minute)))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := a.Event(ctx, "evt_101")
			if assert.NoError(t, err) {
				assert.Equal(t, "evt_101", e.ID)
			}
		}()
	}
	wg.Wait()

	before := st.events.Load()
	assert.GreaterOrEqual(t, before, int32(1))

	_, err := a.Event(ctx, "evt_101")
	require.NoError(t, err)
	assert.Equal(t, before, st.events.Load(), "cached event must not hit the store")

	events.Invalidate(ctx, "evt_101")
	_, err = a.Event(ctx, "evt_101")
	require.NoError(t, err)
	assert.Equal(t, before+1, st.events.Load())
}

func TestAgent_EventSharedLoadSurvivesCallerCancel(t *testing.T) {
	st := &gatedStore{
		Store:   newTestStore(t, snapshotAt(t0, "-150")),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	a := New(st, nil, newTestValidator(t0.Add(time.Minute)))

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := a.Event(first, "evt_101")
		firstErr <- err
	}()
	<-st.entered

	type result struct {
		e   *odds.Event
		err error
	}
	second := make(chan result, 1)
	go func() {
		e, err := a.Event(context.Background(), "evt_101")
		second <- result{e, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(st.release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, "evt_101", res.e.ID)
}

func TestAnchor(t *testing.T) {
	a := newTestAgent(t, snapshotAt(t0, "-150"))

	anchor, err := a.Anchor(context.Background(), "evt_101")
	require.NoError(t, err)
	assert.Contains(t, anchor, "Event evt_101: Los Angeles Lakers at Golden State Warriors (NBA, basketball)")
	assert.Contains(t, anchor, "Market mkt_101_ml (moneyline, open")
	assert.Contains(t, anchor, "  - Golden State Warriors: -150 american")
	assert.Contains(t, anchor, "Market mkt_101_sp (spread, suspended")
	assert.Contains(t, anchor, "  - Golden State Warriors: -5.5 points\n")

	_, err = a.Anchor(context.Background(), "evt_404")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
