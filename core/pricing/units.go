// Package pricing turns a catalog unit price and a usage context into a deterministic cost.
// All pricing math flows through this package; callers declare usage, they never do math.
package pricing

import (
	"github.com/shopspring/decimal"

	qerrors "model-quote/internal/errors"
)

// BillingUnit describes what one unit of price represents
type BillingUnit string

const (
	PerMillionTokens  BillingUnit = "per-million-tokens"
	PerThousandTokens BillingUnit = "per-thousand-tokens"
	PerImage          BillingUnit = "per-image"
	PerSecond         BillingUnit = "per-second"
	PerCall           BillingUnit = "per-call"
	PerMonth          BillingUnit = "per-month"
)

// ParseBillingUnit validates a billing unit string
func ParseBillingUnit(s string) (BillingUnit, error) {
	u := BillingUnit(s)
	switch u {
	case PerMillionTokens, PerThousandTokens, PerImage, PerSecond, PerCall, PerMonth:
		return u, nil
	}
	return "", qerrors.Validation("billing_unit", "unknown billing unit %q", s)
}

// IsTokenMetered reports whether the unit is priced on token volume
func (u BillingUnit) IsTokenMetered() bool {
	return u == PerMillionTokens || u == PerThousandTokens
}

// Measure returns the name of one volume unit, for display
func (u BillingUnit) Measure() string {
	switch u {
	case PerMillionTokens:
		return "million-tokens"
	case PerThousandTokens:
		return "thousand-tokens"
	case PerImage:
		return "images"
	case PerSecond:
		return "seconds"
	case PerCall:
		return "calls"
	case PerMonth:
		return "months"
	default:
		return string(u)
	}
}

// tokenVolume converts a raw token count into billing units.
// Shifting keeps the division exact.
func (u BillingUnit) tokenVolume(tokens decimal.Decimal) decimal.Decimal {
	d := tokens
	switch u {
	case PerMillionTokens:
		return d.Shift(-6)
	case PerThousandTokens:
		return d.Shift(-3)
	default:
		return d
	}
}

// Scheme is the tagged variant selected from the context shape
type Scheme string

const (
	SchemeFlat        Scheme = "flat"
	SchemeTiered      Scheme = "tiered"
	SchemeModeBlended Scheme = "mode_blended"
)
