package models

import (
	"context"

	"github.com/myjantes/atelier_backend/config"
	"github.com/myjantes/atelier_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Documents created before itemization carry their totals as single stored
// values; itemized documents derive them from line items. The tag keeps the
// two modes distinct instead of an implicit fallback.
type AggregateSource string

const (
	AggregateSourceLineItems AggregateSource = "line_items"
	AggregateSourceLegacy    AggregateSource = "legacy"
)

type Aggregates struct {
	Source            AggregateSource
	TotalExcludingTax decimal.Decimal
	TaxAmount         decimal.Decimal
	TotalIncludingTax decimal.Decimal
	// TaxRate is display-only: the first item's rate by creation order, not a
	// weighted average. 20 when nothing else is known.
	TaxRate decimal.Decimal
}

// LegacyTotals are the document-level single values used when no line items
// exist.
type LegacyTotals struct {
	TotalExcludingTax decimal.Decimal
	TaxAmount         decimal.Decimal
	TotalIncludingTax decimal.Decimal
	TaxRate           decimal.Decimal
}

var defaultTaxRate = decimal.NewFromInt(20)

// ComputeAggregates is the pure core of the recalculation: items win when any
// exist, otherwise the legacy totals are kept as-is (with a usable tax rate).
//
// Rounding: per-line fields were already rounded at their own write time, so
// the default path sums those stored values and renders the sums at two
// decimals again. With singleRounding the line totals are recomputed
// unrounded from quantity, unit price and rate, and rounding happens once
// here.
func ComputeAggregates(items []*LineItem, legacy LegacyTotals, singleRounding bool) Aggregates {
	if len(items) == 0 {
		rate := legacy.TaxRate
		if rate.IsZero() {
			rate = defaultTaxRate
		}
		return Aggregates{
			Source:            AggregateSourceLegacy,
			TotalExcludingTax: utils.RoundMoney(legacy.TotalExcludingTax),
			TaxAmount:         utils.RoundMoney(legacy.TaxAmount),
			TotalIncludingTax: utils.RoundMoney(legacy.TotalIncludingTax),
			TaxRate:           rate,
		}
	}

	totalHT := decimal.Zero
	totalTax := decimal.Zero
	for _, item := range items {
		if singleRounding {
			lineHT := utils.CalculateLineTotal(item.Quantity, item.UnitPriceExcludingTax)
			totalHT = totalHT.Add(lineHT)
			totalTax = totalTax.Add(utils.CalculateTaxAmount(lineHT, item.TaxRate))
		} else {
			totalHT = totalHT.Add(item.TotalExcludingTax)
			totalTax = totalTax.Add(item.TaxAmount)
		}
	}
	totalHT = utils.RoundMoney(totalHT)
	totalTax = utils.RoundMoney(totalTax)

	return Aggregates{
		Source:            AggregateSourceLineItems,
		TotalExcludingTax: totalHT,
		TaxAmount:         totalTax,
		TotalIncludingTax: totalHT.Add(totalTax),
		TaxRate:           items[0].TaxRate,
	}
}

// RecalculateQuoteTotals recomputes and persists the quote's aggregate fields
// from its current line items. Idempotent; NotFound when the quote does not
// exist.
func RecalculateQuoteTotals(ctx context.Context, quoteID int) (*Quote, error) {
	db := config.GetDB()

	var quote *Quote
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		quote, txErr = recalculateQuoteTotalsTx(ctx, tx, quoteID)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

func recalculateQuoteTotalsTx(ctx context.Context, tx *gorm.DB, quoteID int) (*Quote, error) {

	var quote Quote
	if err := tx.WithContext(ctx).First(&quote, quoteID).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	items, err := listLineItemsTx(ctx, tx, ParentTypeQuote, quoteID)
	if err != nil {
		return nil, err
	}

	agg := ComputeAggregates(items, LegacyTotals{
		TotalExcludingTax: quote.PriceExcludingTax,
		TaxAmount:         quote.TaxAmount,
		TotalIncludingTax: quote.QuoteAmount,
		TaxRate:           quote.TaxRate,
	}, config.SingleRoundingTotals())

	err = tx.WithContext(ctx).Model(&quote).Updates(map[string]interface{}{
		"PriceExcludingTax": agg.TotalExcludingTax,
		"TaxAmount":         agg.TaxAmount,
		"QuoteAmount":       agg.TotalIncludingTax,
		"TaxRate":           agg.TaxRate,
	}).Error
	if err != nil {
		return nil, err
	}

	quote.PriceExcludingTax = agg.TotalExcludingTax
	quote.TaxAmount = agg.TaxAmount
	quote.QuoteAmount = agg.TotalIncludingTax
	quote.TaxRate = agg.TaxRate
	return &quote, nil
}

// RecalculateInvoiceTotals is the invoice counterpart of
// RecalculateQuoteTotals.
func RecalculateInvoiceTotals(ctx context.Context, invoiceID int) (*Invoice, error) {
	db := config.GetDB()

	var invoice *Invoice
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		invoice, txErr = recalculateInvoiceTotalsTx(ctx, tx, invoiceID)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func recalculateInvoiceTotalsTx(ctx context.Context, tx *gorm.DB, invoiceID int) (*Invoice, error) {

	var invoice Invoice
	if err := tx.WithContext(ctx).First(&invoice, invoiceID).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	items, err := listLineItemsTx(ctx, tx, ParentTypeInvoice, invoiceID)
	if err != nil {
		return nil, err
	}

	agg := ComputeAggregates(items, LegacyTotals{
		TotalExcludingTax: invoice.PriceExcludingTax,
		TaxAmount:         invoice.TaxAmount,
		TotalIncludingTax: invoice.Amount,
		TaxRate:           invoice.TaxRate,
	}, config.SingleRoundingTotals())

	err = tx.WithContext(ctx).Model(&invoice).Updates(map[string]interface{}{
		"PriceExcludingTax": agg.TotalExcludingTax,
		"TaxAmount":         agg.TaxAmount,
		"Amount":            agg.TotalIncludingTax,
		"TaxRate":           agg.TaxRate,
	}).Error
	if err != nil {
		return nil, err
	}

	invoice.PriceExcludingTax = agg.TotalExcludingTax
	invoice.TaxAmount = agg.TaxAmount
	invoice.Amount = agg.TotalIncludingTax
	invoice.TaxRate = agg.TaxRate
	return &invoice, nil
}
