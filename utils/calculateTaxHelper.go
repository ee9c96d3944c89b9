package utils

import (
	"github.com/shopspring/decimal"
)

var decimalOneHundred = decimal.NewFromInt(100)

// RoundMoney renders a decimal at currency minor-unit precision (2).
// Individual line fields and document aggregates are both rounded at their
// own write time; see config.SingleRoundingTotals for the single-pass mode.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// CalculateTaxAmount returns the exclusive tax for an amount at a percentage
// rate (rate 20.00 means 20%). No rounding; callers round at write time.
func CalculateTaxAmount(totalAmount decimal.Decimal, taxRate decimal.Decimal) decimal.Decimal {
	// (totalAmount / 100) * taxRate
	return totalAmount.DivRound(decimalOneHundred, 6).Mul(taxRate)
}

// CalculateLineTotal returns quantity * unit price. No rounding.
func CalculateLineTotal(quantity decimal.Decimal, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice)
}
