package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func makeItem(t *testing.T, qty, unitPrice, taxRate string) *LineItem {
	t.Helper()
	item := &LineItem{
		Quantity:              decimal.RequireFromString(qty),
		UnitPriceExcludingTax: decimal.RequireFromString(unitPrice),
		TaxRate:               decimal.RequireFromString(taxRate),
	}
	item.applyLineTotals()
	return item
}

func TestComputeAggregates_GoldenTotals(t *testing.T) {
	// A: 2 x 100.00 at 20% -> 200.00 HT, 40.00 tax
	// B: 1 x 50.00 at 10% ->  50.00 HT,  5.00 tax
	items := []*LineItem{
		makeItem(t, "2", "100", "20"),
		makeItem(t, "1", "50", "10"),
	}

	agg := ComputeAggregates(items, LegacyTotals{}, false)

	if got := agg.TotalExcludingTax.StringFixed(2); got != "250.00" {
		t.Fatalf("TotalExcludingTax expected 250.00, got %s", got)
	}
	if got := agg.TaxAmount.StringFixed(2); got != "45.00" {
		t.Fatalf("TaxAmount expected 45.00, got %s", got)
	}
	if got := agg.TotalIncludingTax.StringFixed(2); got != "295.00" {
		t.Fatalf("TotalIncludingTax expected 295.00, got %s", got)
	}
	if got := agg.TaxRate.String(); got != "20" {
		t.Fatalf("TaxRate expected 20, got %s", got)
	}
	if agg.Source != AggregateSourceLineItems {
		t.Fatalf("expected line-item source, got %v", agg.Source)
	}
}

func TestComputeAggregates_FirstItemRateWins(t *testing.T) {
	items := []*LineItem{
		makeItem(t, "1", "100", "20"),
		makeItem(t, "1", "100", "10"),
	}
	agg := ComputeAggregates(items, LegacyTotals{}, false)
	if got := agg.TaxRate.String(); got != "20" {
		t.Fatalf("document rate should follow the first item, expected 20, got %s", got)
	}
}

func TestComputeAggregates_SumInvariant(t *testing.T) {
	cases := [][]*LineItem{
		{makeItem(t, "1", "0.01", "20")},
		{makeItem(t, "3", "33.33", "20"), makeItem(t, "7", "19.99", "5.5")},
		{makeItem(t, "4", "12.5", "10"), makeItem(t, "2", "7.77", "20"), makeItem(t, "1", "0.99", "0")},
	}
	for i, items := range cases {
		agg := ComputeAggregates(items, LegacyTotals{}, false)
		sum := agg.TotalExcludingTax.Add(agg.TaxAmount)
		if !agg.TotalIncludingTax.Equal(sum) {
			t.Fatalf("case %d: TTC %s != HT %s + tax %s", i,
				agg.TotalIncludingTax, agg.TotalExcludingTax, agg.TaxAmount)
		}
	}
}

func TestComputeAggregates_Idempotent(t *testing.T) {
	items := []*LineItem{
		makeItem(t, "3", "33.33", "20"),
		makeItem(t, "1", "10.01", "5.5"),
	}
	first := ComputeAggregates(items, LegacyTotals{}, false)
	second := ComputeAggregates(items, LegacyTotals{}, false)

	if !first.TotalExcludingTax.Equal(second.TotalExcludingTax) ||
		!first.TaxAmount.Equal(second.TaxAmount) ||
		!first.TotalIncludingTax.Equal(second.TotalIncludingTax) ||
		!first.TaxRate.Equal(second.TaxRate) {
		t.Fatalf("repeated recalculation changed the result: %+v vs %+v", first, second)
	}
}

func TestComputeAggregates_EmptyListKeepsLegacyTotals(t *testing.T) {
	legacy := LegacyTotals{
		TotalExcludingTax: decimal.RequireFromString("120.00"),
		TaxAmount:         decimal.RequireFromString("24.00"),
		TotalIncludingTax: decimal.RequireFromString("144.00"),
		TaxRate:           decimal.RequireFromString("20"),
	}
	agg := ComputeAggregates(nil, legacy, false)
	if agg.Source != AggregateSourceLegacy {
		t.Fatalf("expected legacy source, got %v", agg.Source)
	}
	if got := agg.TotalIncludingTax.StringFixed(2); got != "144.00" {
		t.Fatalf("legacy TTC should be kept, got %s", got)
	}
}

func TestComputeAggregates_EmptyListDefaultsZeroRate(t *testing.T) {
	agg := ComputeAggregates(nil, LegacyTotals{}, false)
	if got := agg.TaxRate.String(); got != "20" {
		t.Fatalf("unknown legacy rate should fall back to 20, got %s", got)
	}
}

func TestComputeAggregates_RoundingVariants(t *testing.T) {
	// 3 x (1 x 2.50 at 5%): per-line tax is 0.125, rounded to 0.13 at write.
	items := []*LineItem{
		makeItem(t, "1", "2.50", "5"),
		makeItem(t, "1", "2.50", "5"),
		makeItem(t, "1", "2.50", "5"),
	}

	double := ComputeAggregates(items, LegacyTotals{}, false)
	if got := double.TaxAmount.StringFixed(2); got != "0.39" {
		t.Fatalf("double rounding sums the stored lines, expected 0.39, got %s", got)
	}

	single := ComputeAggregates(items, LegacyTotals{}, true)
	if got := single.TaxAmount.StringFixed(2); got != "0.38" {
		t.Fatalf("single rounding rounds the unrounded sum once, expected 0.38, got %s", got)
	}
	sum := single.TotalExcludingTax.Add(single.TaxAmount)
	if !single.TotalIncludingTax.Equal(sum) {
		t.Fatalf("single rounding TTC %s != HT + tax %s", single.TotalIncludingTax, sum)
	}
}

func TestApplyLineTotals_RoundsAtWrite(t *testing.T) {
	item := makeItem(t, "3", "33.33", "20")
	if got := item.TotalExcludingTax.StringFixed(2); got != "99.99" {
		t.Fatalf("TotalExcludingTax expected 99.99, got %s", got)
	}
	if got := item.TaxAmount.StringFixed(2); got != "20.00" {
		t.Fatalf("TaxAmount expected 20.00, got %s", got)
	}
	if got := item.TotalIncludingTax.StringFixed(2); got != "119.99" {
		t.Fatalf("TotalIncludingTax expected 119.99, got %s", got)
	}
}
