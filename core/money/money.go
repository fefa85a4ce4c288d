// Package money provides exact decimal amounts and rates with storage-scale rounding.
// NEVER use float64 for money calculations.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"

	qerrors "model-quote/internal/errors"
)

const (
	// AmountScale is the number of fractional digits kept for amounts
	AmountScale = 6

	// AmountDigits is the total digit budget for amounts, numeric(20,6)
	AmountDigits = 20

	// RateScale is the number of fractional digits kept for rates
	RateScale = 4

	// RateDigits is the total digit budget for rates, numeric(5,4)
	RateDigits = 5

	// RatioScale is the number of fractional digits kept for mode and batch ratios, numeric(9,6)
	RatioScale = 6
)

var (
	// One is the neutral rate 1.0000
	One = decimal.NewFromInt(1)

	maxAmountInteger = decimal.New(1, AmountDigits-AmountScale)
)

// RoundAmount rounds half up to the amount storage scale.
// Amounts are non-negative, so half-away-from-zero is half-up.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountScale)
}

// RoundRate rounds half up to the rate storage scale
func RoundRate(d decimal.Decimal) decimal.Decimal {
	return d.Round(RateScale)
}

// ParseAmount parses a decimal string into an amount
func ParseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, qerrors.Validation(field, "not a decimal: %q", s)
	}
	if err := CheckAmountFits(field, d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ParseRate parses a decimal string into a discount rate in (0,1]
func ParseRate(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, qerrors.Validation(field, "not a decimal: %q", s)
	}
	if err := CheckRate(field, d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// CheckAmountFits rejects amounts whose integer part exceeds the storage budget
func CheckAmountFits(field string, d decimal.Decimal) error {
	if d.Abs().GreaterThanOrEqual(maxAmountInteger) {
		return qerrors.Validation(field, "%s exceeds %d integer digits", d.String(), AmountDigits-AmountScale)
	}
	return nil
}

// CheckRate requires a rate in (0,1] with at most RateScale fractional digits.
// Extra precision is rejected, never rounded away.
func CheckRate(field string, r decimal.Decimal) error {
	if !r.IsPositive() {
		return qerrors.Validation(field, "rate %s must be greater than 0", r.String())
	}
	if r.GreaterThan(One) {
		return qerrors.Validation(field, "rate %s must not exceed 1", r.String())
	}
	if !RoundRate(r).Equal(r) {
		return qerrors.Validation(field, "rate %s has more than %d fractional digits", r.String(), RateScale)
	}
	return nil
}

// CheckRatio requires a fraction in [0,1] with at most RatioScale fractional digits
func CheckRatio(field string, r decimal.Decimal) error {
	if r.IsNegative() || r.GreaterThan(One) {
		return qerrors.Validation(field, "ratio %s must lie in [0,1]", r.String())
	}
	if !r.Round(RatioScale).Equal(r) {
		return qerrors.Validation(field, "ratio %s has more than %d fractional digits", r.String(), RatioScale)
	}
	return nil
}

// FormatAmount renders an amount at storage scale
func FormatAmount(d decimal.Decimal) string {
	return RoundAmount(d).StringFixed(AmountScale)
}

// FormatRate renders a rate at storage scale
func FormatRate(d decimal.Decimal) string {
	return RoundRate(d).StringFixed(RateScale)
}

// Money represents a monetary amount with full precision.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// New creates Money from a decimal
func New(amount decimal.Decimal, currency string) Money {
	return Money{amount: amount, currency: currency}
}

// Zero creates zero money
func Zero(currency string) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() string {
	return m.currency
}

// Add adds two monetary amounts; mixing currencies is an inconsistency
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, qerrors.Inconsistency("cannot add %s and %s", m.currency, other.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Mul multiplies by a factor, keeping full precision
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor), currency: m.currency}
}

// Round returns the amount rounded to storage scale
func (m Money) Round() Money {
	return Money{amount: RoundAmount(m.amount), currency: m.currency}
}

// IsZero reports whether the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// String formats as "CNY 3.002000"
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.currency, FormatAmount(m.amount))
}
