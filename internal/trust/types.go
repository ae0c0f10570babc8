// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package trust implements the Trust Layer: every AI-generated claim is
// cross-referenced against verified source data before it may be shown.
//
// The rules are deliberately strict. Only a claim whose every check is
// StatusVerified passes; partial, stale and skipped checks all reject.
package trust

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betspecs/betspecs/internal/odds"
)

// Status is the outcome of a single verification check.
type Status string

const (
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
	StatusPartial  Status = "partial"
	StatusSkipped  Status = "skipped"
	StatusStale    Status = "stale"
)

// Valid returns true if the status is known.
func (s Status) Valid() bool {
	switch s {
	case StatusVerified, StatusFailed, StatusPartial, StatusSkipped, StatusStale:
		return true
	default:
		return false
	}
}

// Claim types recorded on results.
const (
	ClaimTeam       = "team"
	ClaimOdds       = "odds"
	ClaimConfidence = "confidence"
	ClaimEvent      = "event"
	ClaimMarket     = "market"
)

// Metadata keys.
const (
	MetaMatchedVia    = "matched_via"
	MetaCanonical     = "canonical"
	MetaLineMovedFrom = "line_moved_from"
	MetaLineMovedTo   = "line_moved_to"
	MetaMovedAt       = "moved_at"
	MetaMovement      = "movement"
	MetaSourceAge     = "source_age"
)

// Result is the result of a single verification check.
type Result struct {
	ID          string            `json:"id"`
	EventID     string            `json:"event_id,omitempty"`
	Status      Status            `json:"status"`
	ClaimType   string            `json:"claim_type"`
	Claim       string            `json:"claim"`
	SourceValue string            `json:"source_value,omitempty"`
	AIValue     string            `json:"ai_value,omitempty"`
	Discrepancy string            `json:"discrepancy,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Prediction is an AI-generated prediction or insight.
type Prediction struct {
	EventID        string          `json:"event_id"`
	PredictionType string          `json:"prediction_type"`
	Selection      string          `json:"selection"`
	OddsClaimed    decimal.Decimal `json:"odds"`
	Confidence     float64         `json:"confidence"`
	Reasoning      string          `json:"reasoning,omitempty"`
	GeneratedAt    time.Time       `json:"generated_at,omitempty"`
}

// Source holds the ground-truth values a prediction is checked against.
type Source struct {
	Odds      decimal.Decimal
	Format    odds.Format
	Team      string
	Timestamp time.Time
	// History holds earlier quotes for the same selection, newest first.
	History []odds.Quote
	// Side is odds.SideFavorite or odds.SideUnderdog; empty for points lines.
	Side string
}

// Summary aggregates verification outcomes.
type Summary struct {
	TotalChecks   int     `json:"total_checks"`
	Verified      int     `json:"verified"`
	Failed        int     `json:"failed"`
	Partial       int     `json:"partial"`
	Stale         int     `json:"stale"`
	Skipped       int     `json:"skipped"`
	PassRate      float64 `json:"pass_rate"`
	RejectionRate float64 `json:"rejection_rate"`
}

// Add counts one result.
func (s *Summary) Add(status Status, n int) {
	s.TotalChecks += n
	switch status {
	case StatusVerified:
		s.Verified += n
	case StatusFailed:
		s.Failed += n
	case StatusPartial:
		s.Partial += n
	case StatusStale:
		s.Stale += n
	case StatusSkipped:
		s.Skipped += n
	}
	s.finalize()
}

func (s *Summary) finalize() {
	if s.TotalChecks == 0 {
		s.PassRate, s.RejectionRate = 0, 0
		return
	}
	s.PassRate = float64(s.Verified) / float64(s.TotalChecks)
	s.RejectionRate = float64(s.Failed) / float64(s.TotalChecks)
}

// Recorder persists verification results for audit.
type Recorder interface {
	RecordVerification(ctx context.Context, r Result) error
}

// Config tunes the validator.
type Config struct {
	// Tolerance is the acceptable absolute deviation for numeric comparisons.
	Tolerance decimal.Decimal
	// MaxStaleness is the maximum age of source data; zero disables the check.
	MaxStaleness time.Duration
	// LogCapacity bounds the in-memory verification log.
	LogCapacity int
}

// DefaultConfig returns the validator defaults.
func DefaultConfig() Config {
	return Config{
		Tolerance:    decimal.RequireFromString("0.01"),
		MaxStaleness: 5 * time.Minute,
		LogCapacity:  10000,
	}
}
