package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ErrInvalidAmount indicates an externally supplied amount could not be parsed
// as a non-negative finite decimal.
var ErrInvalidAmount = errors.New("money: invalid amount")

// currencyScale is the number of decimal places every derived amount is
// rounded to. Rounding happens where a derived value is produced (line
// subtotal, discounted total), never by re-rounding already rounded parts.
const currencyScale = 2

var currencyPrinter = message.NewPrinter(language.English)

// Money is a fixed-point currency amount backed by an arbitrary-precision
// decimal. The zero value is zero currency units. Construction does not
// round: a unit price keeps whatever precision it was supplied with, and
// half-up rounding is applied only when a derived amount is produced.
type Money struct {
	dec decimal.Decimal
}

// ParseMoney converts an externally supplied string into Money. The input
// must be a finite, non-negative decimal number.
func ParseMoney(value string) (Money, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Money{}, fmt.Errorf("%w: empty input", ErrInvalidAmount)
	}
	dec, err := decimal.NewFromString(trimmed)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, trimmed)
	}
	if dec.IsNegative() {
		return Money{}, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, trimmed)
	}
	return Money{dec: dec}, nil
}

// MoneyFromCents constructs Money from an integral number of minor units.
func MoneyFromCents(cents int64) Money {
	return Money{dec: decimal.New(cents, -currencyScale)}
}

// MustParseMoney is ParseMoney that panics on error, for literals in wiring
// and tests.
func MustParseMoney(value string) Money {
	m, err := ParseMoney(value)
	if err != nil {
		panic(err)
	}
	return m
}

// Add returns m + other. Addition of already rounded amounts is exact.
func (m Money) Add(other Money) Money {
	return Money{dec: m.dec.Add(other.dec)}
}

// Sub returns m - other. The result may be negative (e.g. a shortfall).
func (m Money) Sub(other Money) Money {
	return Money{dec: m.dec.Sub(other.dec)}
}

// MulInt derives the amount for quantity units, rounded half-up at two
// decimals. Quantities below zero are treated as zero.
func (m Money) MulInt(quantity int) Money {
	if quantity <= 0 {
		return Money{}
	}
	product := m.dec.Mul(decimal.NewFromInt(int64(quantity)))
	return Money{dec: roundHalfUp(product)}
}

// Discount applies a percentage discount in [0,100] and rounds the result
// half-up at two decimals. Values outside the range are clamped.
func (m Money) Discount(percent float64) Money {
	switch {
	case percent <= 0:
		return Money{dec: roundHalfUp(m.dec)}
	case percent >= 100:
		return Money{}
	}
	factor := decimal.NewFromInt(100).Sub(decimal.NewFromFloat(percent)).Div(decimal.NewFromInt(100))
	return Money{dec: roundHalfUp(m.dec.Mul(factor))}
}

// Cmp compares m to other: -1 if m < other, 0 if equal, +1 if m > other.
func (m Money) Cmp(other Money) int {
	return m.dec.Cmp(other.dec)
}

// LessThan reports whether m is strictly smaller than other.
func (m Money) LessThan(other Money) bool {
	return m.dec.Cmp(other.dec) < 0
}

// Equal reports numeric equality regardless of internal exponent.
func (m Money) Equal(other Money) bool {
	return m.dec.Cmp(other.dec) == 0
}

// IsZero reports whether the amount equals zero.
func (m Money) IsZero() bool {
	return m.dec.IsZero()
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.dec.IsNegative()
}

// Cents returns the amount in minor units, rounded half-up.
func (m Money) Cents() int64 {
	return roundHalfUp(m.dec).Shift(currencyScale).IntPart()
}

// String renders the amount as a plain decimal with two places, for wire and
// storage use.
func (m Money) String() string {
	return roundHalfUp(m.dec).StringFixed(currencyScale)
}

// Format renders a locale-style currency string with thousands separators.
// Pure presentation; never used on the transactional path.
func (m Money) Format() string {
	rounded := roundHalfUp(m.dec)
	units := rounded.IntPart()
	cents := rounded.Shift(currencyScale).IntPart() - units*100
	if cents < 0 {
		cents = -cents
	}
	if rounded.IsNegative() && units == 0 {
		return currencyPrinter.Sprintf("-$%d.%02d", units, cents)
	}
	return currencyPrinter.Sprintf("$%d.%02d", units, cents)
}

// roundHalfUp quantizes to two decimals rounding half away from zero, which
// for the non-negative amounts produced on the transactional path is exactly
// round-half-up.
func roundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Round(currencyScale)
}
