// Package money provides exact decimal arithmetic for the matching engine.
//
// Every balance, freeze amount, fee, income, and outcome in the engine is a
// Money value. Money never touches binary floating point: it is a thin,
// immutable wrapper around shopspring/decimal with the two rounding modes
// the engine needs — half-even (the default, used wherever a rounding
// residue must not systematically favor either side of a trade) and
// toward-zero (used wherever an amount must never exceed a reserved
// budget, e.g. deal quantities and fees).
package money

import (
	"github.com/shopspring/decimal"
)

// PrecisionExp is the engine-wide fractional scale: 10^-4, i.e. four
// decimal digits. All quantized values round to this exponent.
const PrecisionExp int32 = -4

// Mode selects a rounding strategy for Quantize.
type Mode int

const (
	// HalfEven rounds to the nearest representable value, ties to even.
	// This is the default, used for the bid freeze amount, where a
	// residue must not systematically favor one side of a trade.
	HalfEven Mode = iota
	// TowardZero truncates any digits beyond the target scale. Used for
	// amounts and outcomes that must never exceed a reserved budget.
	TowardZero
)

// Money is an immutable signed decimal value.
type Money struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Money{d: decimal.Zero}

// New builds a Money from a string, e.g. "10.1000". Panics on malformed
// input — callers that accept untrusted strings should use NewFromString.
func New(s string) Money {
	m, err := NewFromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

// NewFromString parses a decimal string into a Money value.
func NewFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{d: d}, nil
}

// NewFromInt builds a Money from an integer (no fractional part).
func NewFromInt(i int64) Money {
	return Money{d: decimal.NewFromInt(i)}
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{d: m.d.Add(other.d)}
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return Money{d: m.d.Sub(other.d)}
}

// Mul returns m * other, unrounded (full precision).
func (m Money) Mul(other Money) Money {
	return Money{d: m.d.Mul(other.d)}
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{d: m.d.Neg()}
}

// Cmp returns -1, 0, or 1 if m is less than, equal to, or greater than other.
func (m Money) Cmp(other Money) int {
	return m.d.Cmp(other.d)
}

// Equal reports exact decimal equality.
func (m Money) Equal(other Money) bool {
	return m.d.Equal(other.d)
}

// LessThan reports whether m < other.
func (m Money) LessThan(other Money) bool {
	return m.d.Cmp(other.d) < 0
}

// GreaterThan reports whether m > other.
func (m Money) GreaterThan(other Money) bool {
	return m.d.Cmp(other.d) > 0
}

// IsZero reports whether m == 0.
func (m Money) IsZero() bool {
	return m.d.IsZero()
}

// IsNegative reports whether m < 0.
func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

// IsPositive reports whether m > 0.
func (m Money) IsPositive() bool {
	return m.d.IsPositive()
}

// Quantize rounds m to exp fractional digits (exp is negative, e.g. -4 for
// PrecisionExp) using the given rounding Mode.
func (m Money) Quantize(exp int32, mode Mode) Money {
	switch mode {
	case TowardZero:
		return Money{d: m.d.Truncate(-exp)}
	default:
		return Money{d: m.d.RoundBank(-exp)}
	}
}

// String renders m in plain decimal notation, e.g. "10.1000".
func (m Money) String() string {
	return m.d.StringFixed(-PrecisionExp)
}

// MarshalJSON renders m as a JSON string so precision is never lost to a
// float64 round-trip. Every fractional digit m holds is written out, so
// UnmarshalJSON restores both the value and its decimal scale.
func (m Money) MarshalJSON() ([]byte, error) {
	s := m.d.String()
	if exp := m.d.Exponent(); exp < 0 {
		s = m.d.StringFixed(-exp)
	}
	return []byte(`"` + s + `"`), nil
}

// UnmarshalJSON parses a JSON string into m.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := NewFromString(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Decimal exposes the underlying decimal.Decimal for callers (e.g.
// snapshot persistence) that need direct access.
func (m Money) Decimal() decimal.Decimal {
	return m.d
}

// FromDecimal wraps an existing decimal.Decimal as Money.
func FromDecimal(d decimal.Decimal) Money {
	return Money{d: d}
}
