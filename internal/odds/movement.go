// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package odds

import "github.com/shopspring/decimal"

// Movement classifies how a price moved between two quotes.
type Movement string

const (
	MovementStable Movement = "stable"
	// MovementSteam: the side shortened, money is coming in on it.
	MovementSteam Movement = "steam"
	// MovementDrift: the side lengthened.
	MovementDrift Movement = "drift"
	// MovementReverse: the underdog shortened against the market.
	MovementReverse Movement = "reverse"
)

// Market sides used by DetectLineMovement.
const (
	SideFavorite = "favorite"
	SideUnderdog = "underdog"
)

// movementThreshold is the minimum implied probability change (0.5 points)
// that counts as a move.
var movementThreshold = decimal.RequireFromString("0.005")

// CalculateVig returns the bookmaker margin of a two-way market in percent.
// Both prices are american odds.
func CalculateVig(a, b decimal.Decimal) decimal.Decimal {
	overround := ImpliedFromAmerican(a).Add(ImpliedFromAmerican(b)).Sub(one)
	return overround.Mul(hundred).Round(4)
}

// DetectLineMovement compares two american prices for the same selection.
func DetectLineMovement(current, previous decimal.Decimal, side string) Movement {
	delta := ImpliedFromAmerican(current).Sub(ImpliedFromAmerican(previous))
	switch {
	case delta.Abs().LessThan(movementThreshold):
		return MovementStable
	case delta.IsNegative():
		return MovementDrift
	case side == SideUnderdog:
		return MovementReverse
	default:
		return MovementSteam
	}
}

// SideOf reports whether american odds price a favourite or an underdog.
// Even money (+100) counts as underdog.
func SideOf(v decimal.Decimal) string {
	if v.IsNegative() {
		return SideFavorite
	}
	return SideUnderdog
}
