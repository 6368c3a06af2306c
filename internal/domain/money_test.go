package domain

import (
	"errors"
	"testing"
)

func TestParseMoneyRejectsInvalidInput(t *testing.T) {
	cases := []string{"", "  ", "abc", "12,50", "-1.00", "1.2.3"}
	for _, input := range cases {
		if _, err := ParseMoney(input); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("ParseMoney(%q): expected ErrInvalidAmount, got %v", input, err)
		}
	}
}

func TestParseMoneyKeepsSubCentPrecision(t *testing.T) {
	price, err := ParseMoney("0.015")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// Rounding applies when the subtotal is derived, not at construction.
	if got := price.MulInt(3).String(); got != "0.05" {
		t.Fatalf("expected 0.015 x 3 to round half-up to 0.05, got %s", got)
	}
}

func TestMoneyMulIntRoundsAtTheLine(t *testing.T) {
	price := MustParseMoney("3.335")
	if got := price.MulInt(1).String(); got != "3.34" {
		t.Fatalf("expected half-up to 3.34, got %s", got)
	}
	if got := price.MulInt(0).String(); got != "0.00" {
		t.Fatalf("expected zero subtotal for zero quantity, got %s", got)
	}
}

func TestMoneyDiscount(t *testing.T) {
	total := MustParseMoney("23.55")
	if got := total.Discount(10).String(); got != "21.20" {
		t.Fatalf("expected 23.55 at 10%% to round to 21.20, got %s", got)
	}
	if got := total.Discount(0).String(); got != "23.55" {
		t.Fatalf("expected no-op discount, got %s", got)
	}
	if got := total.Discount(100).String(); got != "0.00" {
		t.Fatalf("expected full discount to be zero, got %s", got)
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := MustParseMoney("19.99")
	b := MustParseMoney("20.00")
	if got := b.Sub(a).String(); got != "0.01" {
		t.Fatalf("expected change 0.01, got %s", got)
	}
	if !a.LessThan(b) {
		t.Fatalf("expected 19.99 < 20.00")
	}
	if got := a.Add(b).String(); got != "39.99" {
		t.Fatalf("expected sum 39.99, got %s", got)
	}
	if diff := a.Sub(b); !diff.IsNegative() {
		t.Fatalf("expected negative difference, got %s", diff)
	}
}

func TestMoneyFromCents(t *testing.T) {
	m := MoneyFromCents(123456)
	if got := m.String(); got != "1234.56" {
		t.Fatalf("expected 1234.56, got %s", got)
	}
	if got := m.Cents(); got != 123456 {
		t.Fatalf("expected 123456 cents, got %d", got)
	}
}

func TestMoneyFormatUsesThousandsSeparators(t *testing.T) {
	if got := MustParseMoney("1234567.5").Format(); got != "$1,234,567.50" {
		t.Fatalf("unexpected formatting: %s", got)
	}
	if got := (Money{}).Format(); got != "$0.00" {
		t.Fatalf("unexpected zero formatting: %s", got)
	}
}
