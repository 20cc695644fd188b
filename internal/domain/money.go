// Package domain defines core data structures used throughout the portfolio engine.
package domain

import (
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	// QuantityPlaces is the number of fractional digits guaranteed for asset quantities.
	QuantityPlaces = 8
	// CurrencyPlaces is the number of fractional digits used for currency display.
	CurrencyPlaces = 2

	// divisionPlaces keeps division results well above QuantityPlaces so chained
	// averages do not drift.
	divisionPlaces = 18
)

// ErrDivisionByZero is returned by Money.Div when the divisor is zero.
var ErrDivisionByZero = errors.New("division by zero")

// Zero is the zero Money value.
var Zero = Money{}

// Money is an immutable decimal value used for currency amounts, prices and quantities.
// The zero value is a valid zero.
type Money struct {
	value decimal.Decimal
}

// NewMoney wraps a decimal.
func NewMoney(d decimal.Decimal) Money {
	return Money{value: d}
}

// FromInt returns Money holding the integer value.
func FromInt(v int64) Money {
	return Money{value: decimal.NewFromInt(v)}
}

// FromDecimalString parses s. Malformed input degrades to Zero.
func FromDecimalString(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		return Zero
	}
	return m
}

// ParseMoney parses s and reports malformed input.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, errors.New("empty decimal string")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, errors.Wrapf(err, "parse decimal %q", s)
	}
	return Money{value: d}, nil
}

// FromFloat converts f. NaN and infinities degrade to Zero.
func FromFloat(f float64) Money {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Zero
	}
	return Money{value: decimal.NewFromFloat(f)}
}

// Decimal returns the underlying decimal value.
func (m Money) Decimal() decimal.Decimal { return m.value }

func (m Money) Add(n Money) Money { return Money{value: m.value.Add(n.value)} }
func (m Money) Sub(n Money) Money { return Money{value: m.value.Sub(n.value)} }
func (m Money) Mul(n Money) Money { return Money{value: m.value.Mul(n.value)} }
func (m Money) Neg() Money        { return Money{value: m.value.Neg()} }

// Div divides m by n, failing with ErrDivisionByZero when n is zero.
func (m Money) Div(n Money) (Money, error) {
	if n.value.IsZero() {
		return Zero, ErrDivisionByZero
	}
	return Money{value: m.value.DivRound(n.value, divisionPlaces)}, nil
}

func (m Money) IsZero() bool                    { return m.value.IsZero() }
func (m Money) IsPositive() bool                { return m.value.IsPositive() }
func (m Money) IsNegative() bool                { return m.value.IsNegative() }
func (m Money) Cmp(n Money) int                 { return m.value.Cmp(n.value) }
func (m Money) Equal(n Money) bool              { return m.value.Equal(n.value) }
func (m Money) LessThan(n Money) bool           { return m.value.LessThan(n.value) }
func (m Money) LessThanOrEqual(n Money) bool    { return m.value.LessThanOrEqual(n.value) }
func (m Money) GreaterThan(n Money) bool        { return m.value.GreaterThan(n.value) }
func (m Money) GreaterThanOrEqual(n Money) bool { return m.value.GreaterThanOrEqual(n.value) }

// Round rounds half away from zero to the given number of places.
func (m Money) Round(places int32) Money {
	return Money{value: m.value.Round(places)}
}

// Float64 returns the nearest float64. Use only for display or statistics.
func (m Money) Float64() float64 {
	return m.value.InexactFloat64()
}

// String returns the exact decimal representation.
func (m Money) String() string {
	return m.value.String()
}

// ToDisplayString rounds to places fractional digits and pads with zeros.
func (m Money) ToDisplayString(places int32) string {
	if places < 0 {
		places = 0
	}
	return m.value.StringFixed(places)
}

// Format renders m as an amount of the given ISO currency, e.g. "$9,950.00".
func (m Money) Format(currency string) string {
	cur := *money.New(0, currency).Currency()
	units := m.value.Round(int32(cur.Fraction)).Shift(int32(cur.Fraction))
	return cur.Formatter().Format(units.IntPart())
}

// MarshalText encodes the exact decimal string.
func (m Money) MarshalText() ([]byte, error) {
	return []byte(m.value.String()), nil
}

// UnmarshalText decodes a decimal string. Malformed values degrade to Zero.
func (m *Money) UnmarshalText(text []byte) error {
	*m = FromDecimalString(string(text))
	return nil
}

// MinMoney returns the smaller of a and b.
func MinMoney(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

// SumMoney adds all values.
func SumMoney(values ...Money) Money {
	total := Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
