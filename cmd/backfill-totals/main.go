// backfill-totals recomputes the stored aggregates of every quote and
// invoice from their line items. Run it after bulk data fixes or imports.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... go run ./cmd/backfill-totals [-dry-run] [-parent quotes|invoices]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/myjantes/atelier_backend/config"
	"github.com/myjantes/atelier_backend/models"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Report documents whose totals would change without writing")
	parent := flag.String("parent", "", "Optional: restrict to quotes or invoices")
	flag.Parse()

	_ = godotenv.Load()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	doQuotes := *parent == "" || *parent == "quotes"
	doInvoices := *parent == "" || *parent == "invoices"
	if !doQuotes && !doInvoices {
		fmt.Fprintln(os.Stderr, "-parent must be quotes or invoices")
		os.Exit(1)
	}

	changed, scanned := 0, 0

	if doQuotes {
		var ids []int
		if err := db.WithContext(ctx).Model(&models.Quote{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to list quotes: %v\n", err)
			os.Exit(1)
		}
		for _, id := range ids {
			scanned++
			before, err := models.GetQuote(ctx, id)
			if err != nil {
				fmt.Fprintf(os.Stderr, "quote %d: %v\n", id, err)
				continue
			}
			if *dryRun {
				items, err := models.ListLineItems(ctx, models.ParentTypeQuote, id)
				if err != nil {
					fmt.Fprintf(os.Stderr, "quote %d: %v\n", id, err)
					continue
				}
				agg := models.ComputeAggregates(items, models.LegacyTotals{
					TotalExcludingTax: before.PriceExcludingTax,
					TaxAmount:         before.TaxAmount,
					TotalIncludingTax: before.QuoteAmount,
					TaxRate:           before.TaxRate,
				}, false)
				if !agg.TotalIncludingTax.Equal(before.QuoteAmount) {
					changed++
					fmt.Printf("quote %d: %s -> %s\n", id, before.QuoteAmount, agg.TotalIncludingTax)
				}
				continue
			}
			after, err := models.RecalculateQuoteTotals(ctx, id)
			if err != nil {
				fmt.Fprintf(os.Stderr, "quote %d: %v\n", id, err)
				continue
			}
			if !after.QuoteAmount.Equal(before.QuoteAmount) {
				changed++
				fmt.Printf("quote %d: %s -> %s\n", id, before.QuoteAmount, after.QuoteAmount)
			}
		}
	}

	if doInvoices {
		var ids []int
		if err := db.WithContext(ctx).Model(&models.Invoice{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to list invoices: %v\n", err)
			os.Exit(1)
		}
		for _, id := range ids {
			scanned++
			before, err := models.GetInvoice(ctx, id)
			if err != nil {
				fmt.Fprintf(os.Stderr, "invoice %d: %v\n", id, err)
				continue
			}
			if *dryRun {
				items, err := models.ListLineItems(ctx, models.ParentTypeInvoice, id)
				if err != nil {
					fmt.Fprintf(os.Stderr, "invoice %d: %v\n", id, err)
					continue
				}
				agg := models.ComputeAggregates(items, models.LegacyTotals{
					TotalExcludingTax: before.PriceExcludingTax,
					TaxAmount:         before.TaxAmount,
					TotalIncludingTax: before.Amount,
					TaxRate:           before.TaxRate,
				}, false)
				if !agg.TotalIncludingTax.Equal(before.Amount) {
					changed++
					fmt.Printf("invoice %d: %s -> %s\n", id, before.Amount, agg.TotalIncludingTax)
				}
				continue
			}
			after, err := models.RecalculateInvoiceTotals(ctx, id)
			if err != nil {
				fmt.Fprintf(os.Stderr, "invoice %d: %v\n", id, err)
				continue
			}
			if !after.Amount.Equal(before.Amount) {
				changed++
				fmt.Printf("invoice %d: %s -> %s\n", id, before.Amount, after.Amount)
			}
		}
	}

	fmt.Printf("scanned %d documents, %d totals adjusted\n", scanned, changed)
}
