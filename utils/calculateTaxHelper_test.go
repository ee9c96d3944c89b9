package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculateTaxAmount(t *testing.T) {
	cases := []struct {
		amount   string
		rate     string
		expected string
	}{
		{"100", "20", "20.00"},
		{"50", "10", "5.00"},
		{"200", "20", "40.00"},
		{"99.99", "20", "20.00"},
		{"2.50", "5", "0.13"},
		{"100", "0", "0.00"},
	}
	for _, tc := range cases {
		got := RoundMoney(CalculateTaxAmount(
			decimal.RequireFromString(tc.amount),
			decimal.RequireFromString(tc.rate),
		))
		if got.StringFixed(2) != tc.expected {
			t.Fatalf("tax(%s, %s%%) expected %s, got %s", tc.amount, tc.rate, tc.expected, got)
		}
	}
}

func TestCalculateLineTotal(t *testing.T) {
	got := CalculateLineTotal(decimal.RequireFromString("3"), decimal.RequireFromString("33.33"))
	if got.String() != "99.99" {
		t.Fatalf("3 x 33.33 expected 99.99, got %s", got)
	}
}

func TestRoundMoney_HalfAwayFromZero(t *testing.T) {
	if got := RoundMoney(decimal.RequireFromString("0.125")); got.String() != "0.13" {
		t.Fatalf("0.125 expected 0.13, got %s", got)
	}
	if got := RoundMoney(decimal.RequireFromString("-0.125")); got.String() != "-0.13" {
		t.Fatalf("-0.125 expected -0.13, got %s", got)
	}
}
