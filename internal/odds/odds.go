// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package odds models bookmaker odds snapshots: events, markets and priced
// lines, plus the price arithmetic (implied probability, format conversion,
// vig and line movement) the trust layer relies on.
package odds

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Format identifies how a line's number is expressed.
type Format string

const (
	FormatAmerican   Format = "american"
	FormatDecimal    Format = "decimal"
	FormatFractional Format = "fractional"
	// FormatPoints marks spread and total lines where the number is a
	// handicap or a total, not a price.
	FormatPoints Format = "points"
)

// Valid returns true if the format is known.
func (f Format) Valid() bool {
	switch f {
	case FormatAmerican, FormatDecimal, FormatFractional, FormatPoints:
		return true
	default:
		return false
	}
}

// MarketStatus is the trading status of a market.
type MarketStatus string

const (
	MarketOpen      MarketStatus = "open"
	MarketSuspended MarketStatus = "suspended"
	MarketClosed    MarketStatus = "closed"
)

// Valid returns true if the status is known.
func (s MarketStatus) Valid() bool {
	switch s {
	case MarketOpen, MarketSuspended, MarketClosed:
		return true
	default:
		return false
	}
}

var (
	// ErrOddsOutOfRange is returned for american odds beyond +/-10000.
	ErrOddsOutOfRange = errors.New("odds out of range")
	// ErrInvalidAmerican is returned for american odds strictly between -100 and +100 (other than 0).
	ErrInvalidAmerican = errors.New("invalid American odds")
	// ErrInvalidDecimal is returned for decimal odds below 1.01.
	ErrInvalidDecimal = errors.New("invalid decimal odds")
	// ErrInvalidFractional is returned for non-positive fractional odds.
	ErrInvalidFractional = errors.New("invalid fractional odds")
	// ErrEmptySelection is returned for lines without a selection.
	ErrEmptySelection = errors.New("selection is empty")
	// ErrUnknownFormat is returned for unsupported odds formats.
	ErrUnknownFormat = errors.New("unknown odds format")
)

var (
	hundred          = decimal.NewFromInt(100)
	one              = decimal.NewFromInt(1)
	two              = decimal.NewFromInt(2)
	americanMax      = decimal.NewFromInt(10000)
	minDecimalOdds   = decimal.RequireFromString("1.01")
	americanBoundary = decimal.NewFromInt(100)
)

// Line is a single priced outcome inside a market.
type Line struct {
	Selection          string           `json:"selection"`
	Odds               decimal.Decimal  `json:"odds"`
	Format             Format           `json:"odds_format,omitempty"`
	ImpliedProbability *decimal.Decimal `json:"implied_probability,omitempty"`
}

// EffectiveFormat returns the line's format, defaulting to american.
func (l Line) EffectiveFormat() Format {
	if l.Format == "" {
		return FormatAmerican
	}
	return l.Format
}

// Validate checks the line against the bounds of its format.
func (l Line) Validate() error {
	if strings.TrimSpace(l.Selection) == "" {
		return ErrEmptySelection
	}
	switch l.EffectiveFormat() {
	case FormatAmerican:
		return ValidateAmerican(l.Odds)
	case FormatDecimal:
		if l.Odds.LessThan(minDecimalOdds) {
			return fmt.Errorf("%w: %s", ErrInvalidDecimal, l.Odds)
		}
	case FormatFractional:
		if !l.Odds.IsPositive() {
			return fmt.Errorf("%w: %s", ErrInvalidFractional, l.Odds)
		}
	case FormatPoints:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, l.Format)
	}
	return nil
}

// ValidateAmerican applies the american odds bounds: within +/-10000 and
// never strictly between -100 and +100, except 0.
func ValidateAmerican(v decimal.Decimal) error {
	if v.Abs().GreaterThan(americanMax) {
		return fmt.Errorf("%w: %s", ErrOddsOutOfRange, v)
	}
	if v.Abs().LessThan(americanBoundary) && !v.IsZero() {
		return fmt.Errorf("%w: %s", ErrInvalidAmerican, v)
	}
	return nil
}

// CalculateImpliedProbability returns the bookmaker's implied probability
// for the line. Points lines and prices without a defined probability
// return zero.
func (l Line) CalculateImpliedProbability() decimal.Decimal {
	switch l.EffectiveFormat() {
	case FormatAmerican:
		return ImpliedFromAmerican(l.Odds)
	case FormatDecimal:
		if !l.Odds.IsPositive() {
			return decimal.Zero
		}
		return one.Div(l.Odds)
	case FormatFractional:
		divisor := l.Odds.Add(one)
		if !divisor.IsPositive() {
			return decimal.Zero
		}
		return one.Div(divisor)
	default:
		return decimal.Zero
	}
}

// ImpliedFromAmerican converts american odds to an implied probability.
func ImpliedFromAmerican(v decimal.Decimal) decimal.Decimal {
	if v.IsPositive() {
		return hundred.Div(v.Add(hundred))
	}
	abs := v.Abs()
	return abs.Div(abs.Add(hundred))
}

// AmericanToDecimal converts american odds to decimal odds.
func AmericanToDecimal(v decimal.Decimal) decimal.Decimal {
	if v.IsPositive() {
		return one.Add(v.Div(hundred))
	}
	if v.IsZero() {
		return one
	}
	return one.Add(hundred.Div(v.Abs()))
}

// DecimalToAmerican converts decimal odds to american odds, rounded to the
// nearest whole number.
func DecimalToAmerican(d decimal.Decimal) (decimal.Decimal, error) {
	if d.LessThanOrEqual(one) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidDecimal, d)
	}
	if d.GreaterThanOrEqual(two) {
		return d.Sub(one).Mul(hundred).Round(0), nil
	}
	return hundred.Neg().Div(d.Sub(one)).Round(0), nil
}

// FractionalToAmerican converts a fractional ratio (5/2 stored as 2.5) to american odds.
func FractionalToAmerican(ratio decimal.Decimal) (decimal.Decimal, error) {
	if !ratio.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidFractional, ratio)
	}
	return DecimalToAmerican(ratio.Add(one))
}

// ToAmerican returns the line's price as american odds.
func (l Line) ToAmerican() (decimal.Decimal, error) {
	switch l.EffectiveFormat() {
	case FormatAmerican:
		return l.Odds, nil
	case FormatDecimal:
		return DecimalToAmerican(l.Odds)
	case FormatFractional:
		return FractionalToAmerican(l.Odds)
	default:
		return decimal.Zero, fmt.Errorf("%w: %s has no price", ErrUnknownFormat, l.Format)
	}
}
