// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package trust

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/betspecs/betspecs/internal/odds"
)

// OddsValidator checks claimed odds against source odds.
type OddsValidator struct {
	mu           sync.RWMutex
	tolerance    decimal.Decimal
	maxStaleness time.Duration
	now          func() time.Time
}

// NewOddsValidator returns an OddsValidator with the given tolerance and
// maximum source age.
func NewOddsValidator(tolerance decimal.Decimal, maxStaleness time.Duration) *OddsValidator {
	return &OddsValidator{tolerance: tolerance.Abs(), maxStaleness: maxStaleness, now: time.Now}
}

func (v *OddsValidator) configure(tolerance decimal.Decimal, maxStaleness time.Duration) {
	v.mu.Lock()
	v.tolerance = tolerance.Abs()
	v.maxStaleness = maxStaleness
	v.mu.Unlock()
}

func (v *OddsValidator) settings() (decimal.Decimal, time.Duration) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.tolerance, v.maxStaleness
}

// VerifyOdds compares claimed odds with the source. A source older than the
// configured staleness window yields StatusStale regardless of value.
func (v *OddsValidator) VerifyOdds(claimed, source decimal.Decimal, sourceTimestamp time.Time) Result {
	tolerance, maxStaleness := v.settings()
	now := v.now()

	r := newResult(now, ClaimOdds, "Odds")
	r.SourceValue = source.String()
	r.AIValue = claimed.String()

	if maxStaleness > 0 && !sourceTimestamp.IsZero() {
		age := now.Sub(sourceTimestamp)
		if age > maxStaleness {
			r.Status = StatusStale
			r.Discrepancy = fmt.Sprintf("Source data is %s old (max %s)", age.Truncate(time.Second), maxStaleness)
			r.Metadata = map[string]string{MetaSourceAge: age.Truncate(time.Second).String()}
			return r
		}
	}

	diff := claimed.Sub(source).Abs()
	if diff.LessThanOrEqual(tolerance) {
		r.Status = StatusVerified
		return r
	}

	r.Status = StatusFailed
	r.Discrepancy = fmt.Sprintf("Difference of %s exceeds tolerance %s", diff, tolerance)
	return r
}

// VerifyOddsWithHistory behaves like VerifyOdds, but a claim that matches an
// earlier quote is reported as StatusStale with the line movement attached,
// so the caller can tell an outdated claim from an invented one.
func (v *OddsValidator) VerifyOddsWithHistory(claimed decimal.Decimal, src Source) Result {
	r := v.VerifyOdds(claimed, src.Odds, src.Timestamp)
	if r.Status != StatusFailed || len(src.History) == 0 {
		return r
	}

	tolerance, _ := v.settings()
	for _, q := range src.History {
		if q.Odds.Equal(src.Odds) {
			continue
		}
		if claimed.Sub(q.Odds).Abs().GreaterThan(tolerance) {
			continue
		}
		r.Status = StatusStale
		r.Discrepancy = fmt.Sprintf("Line moved from %s to %s", q.Odds, src.Odds)
		r.Metadata = map[string]string{
			MetaLineMovedFrom: q.Odds.String(),
			MetaLineMovedTo:   src.Odds.String(),
			MetaMovedAt:       q.CapturedAt.UTC().Format(time.RFC3339),
		}
		if m, ok := movementBetween(src, q); ok {
			r.Metadata[MetaMovement] = string(m)
		}
		return r
	}
	return r
}

func movementBetween(src Source, previous odds.Quote) (odds.Movement, bool) {
	format := src.Format
	if format == "" {
		format = odds.FormatAmerican
	}
	if format != odds.FormatAmerican {
		return "", false
	}
	side := src.Side
	if side == "" {
		side = odds.SideOf(src.Odds)
	}
	return odds.DetectLineMovement(src.Odds, previous.Odds, side), true
}

// CalculateVig returns the bookmaker margin of a two-way american market in percent.
func (v *OddsValidator) CalculateVig(a, b decimal.Decimal) decimal.Decimal {
	return odds.CalculateVig(a, b)
}

// DetectLineMovement classifies the move between two american prices.
func (v *OddsValidator) DetectLineMovement(current, previous decimal.Decimal, side string) odds.Movement {
	return odds.DetectLineMovement(current, previous, side)
}

func newResult(now time.Time, claimType, claim string) Result {
	return Result{
		ID:        uuid.NewString(),
		ClaimType: claimType,
		Claim:     claim,
		Timestamp: now.UTC(),
	}
}
