// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents. On the wire they travel as JSON decimal
// numbers ("12.34"); conversion goes through shopspring/decimal so that no
// float rounding leaks into stored values.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// maxCents keeps cents*100 arithmetic in the aggregation engine inside int64.
const maxCents = (1<<63 - 1) / 10000

var hundred = decimal.NewFromInt(100)

// Money is a non-negative monetary value expressed in cents.
type Money struct {
	Cents int64
}

// ParseDecimalToCents converts a decimal string to cents with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Negative values and malformed input are rejected; zero is a valid amount.
//
// Examples:
//
//	ParseDecimalToCents("12.34")  -> 1234, nil
//	ParseDecimalToCents("12,345") -> 1235, nil
//	ParseDecimalToCents("0")      -> 0, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return decimalToCents(d)
}

func decimalToCents(d decimal.Decimal) (int64, error) {
	if d.IsNegative() {
		return 0, ErrInvalidAmount
	}
	cents := d.Mul(hundred).Round(0)
	if cents.GreaterThan(decimal.NewFromInt(maxCents)) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// NewMoney builds a Money from a decimal string, see ParseDecimalToCents.
func NewMoney(s string) (Money, error) {
	cents, err := ParseDecimalToCents(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: cents}, nil
}

// Units is a convenience constructor for whole currency units.
func Units(n int64) Money {
	return Money{Cents: n * 100}
}

// Decimal returns the amount as a decimal with two fractional digits.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount with exactly two decimals, e.g. "12.30".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Add returns m+o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Sub returns m-o. The result may be negative.
func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Cents == 0
}

// Validate rejects negative or out of range amounts.
func (m Money) Validate() error {
	if m.Cents < 0 || m.Cents > maxCents {
		return ErrInvalidAmount
	}
	return nil
}

// MarshalJSON emits the amount as a bare JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string. Sign is preserved
// so that Validate can report negative input as a validation error.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	neg := d.IsNegative()
	cents, err := decimalToCents(d.Abs())
	if err != nil {
		return fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, d.String())
	}
	if neg {
		cents = -cents
	}
	m.Cents = cents
	return nil
}

// percentOf returns part/whole*100 rounded to two decimals. whole must be non-zero.
func percentOf(part, whole int64) float64 {
	return decimal.NewFromInt(part).
		Mul(hundred).
		DivRound(decimal.NewFromInt(whole), 2).
		InexactFloat64()
}
