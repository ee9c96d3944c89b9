package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/myjantes/atelier_backend/config"
	"github.com/myjantes/atelier_backend/models"
	"github.com/shopspring/decimal"
)

// Integration harness: full quote -> invoice lifecycle against real MySQL and
// redis containers.
//
// Usage (requires Docker): INTEGRATION_TESTS=1 go test ./models -run Lifecycle -v

func setupIntegrationEnv(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "atelier_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	return context.Background()
}

func threeImages() []models.NewMediaReference {
	return []models.NewMediaReference{
		{ObjectKey: "quotes/w1.jpg", MimeType: "image/jpeg"},
		{ObjectKey: "quotes/w2.jpg", MimeType: "image/jpeg"},
		{ObjectKey: "quotes/w3.jpg", MimeType: "image/png"},
	}
}

func TestDocumentLifecycle_QuoteToInvoice(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	client, err := models.CreateUser(ctx, &models.NewUser{
		Email:    "client@lifecycle.test",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	rimRepair, err := models.CreateService(ctx, &models.NewService{
		Name:      "Rim straightening",
		BasePrice: decimal.RequireFromString("100"),
		TaxRate:   decimal.RequireFromString("20"),
	})
	if err != nil {
		t.Fatalf("CreateService: %v", err)
	}

	qty := decimal.NewFromInt(2)
	quote, err := models.CreateQuote(ctx, &models.NewQuote{
		ClientID:      client.ID,
		PaymentMethod: models.PaymentTypeCash,
		WheelCount:    4,
		Diameter:      "18",
		Services:      []models.QuoteServiceInput{{ServiceID: rimRepair.ID, Quantity: &qty}},
		Media:         threeImages(),
	})
	if err != nil {
		t.Fatalf("CreateQuote: %v", err)
	}
	if got := quote.PriceExcludingTax.StringFixed(2); got != "200.00" {
		t.Fatalf("quote HT expected 200.00, got %s", got)
	}
	if got := quote.QuoteAmount.StringFixed(2); got != "240.00" {
		t.Fatalf("quote TTC expected 240.00, got %s", got)
	}

	if _, err := models.UpdateQuoteStatus(ctx, quote.ID, models.QuoteStatusApproved); err != nil {
		t.Fatalf("UpdateQuoteStatus: %v", err)
	}

	invoice, err := models.CreateInvoice(ctx, &models.NewInvoice{
		ClientID: client.ID,
		QuoteID:  &quote.ID,
		Media:    threeImages(),
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if invoice.InvoiceNumber != "MY-INV-ESP00000001" {
		t.Fatalf("first cash invoice number expected MY-INV-ESP00000001, got %s", invoice.InvoiceNumber)
	}
	if invoice.PaymentMethod != models.PaymentTypeCash {
		t.Fatalf("payment method must be copied from the quote, got %s", invoice.PaymentMethod)
	}
	if invoice.WheelCount != 4 || invoice.Diameter != "18" {
		t.Fatalf("wheel details must be copied from the quote: %+v", invoice)
	}
	if got := invoice.Amount.StringFixed(2); got != "240.00" {
		t.Fatalf("invoice TTC expected 240.00 from the quote snapshot, got %s", got)
	}

	// The snapshot is a copy: changing the quote afterwards leaves the
	// invoice untouched.
	newDiameter := "19"
	if _, err := models.UpdateQuote(ctx, quote.ID, &models.UpdateQuoteInput{Diameter: &newDiameter}); err != nil {
		t.Fatalf("UpdateQuote: %v", err)
	}
	fetched, err := models.GetInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if fetched.Diameter != "18" {
		t.Fatalf("invoice diameter changed after quote edit: %s", fetched.Diameter)
	}

	second, err := models.CreateInvoice(ctx, &models.NewInvoice{
		ClientID:      client.ID,
		PaymentMethod: models.PaymentTypeCash,
		Media:         threeImages(),
	})
	if err != nil {
		t.Fatalf("CreateInvoice (second): %v", err)
	}
	if second.InvoiceNumber != "MY-INV-ESP00000002" {
		t.Fatalf("second cash invoice number expected MY-INV-ESP00000002, got %s", second.InvoiceNumber)
	}

	wire, err := models.CreateInvoice(ctx, &models.NewInvoice{
		ClientID:      client.ID,
		PaymentMethod: models.PaymentTypeWireTransfer,
		Media:         threeImages(),
	})
	if err != nil {
		t.Fatalf("CreateInvoice (wire): %v", err)
	}
	if wire.InvoiceNumber != "MY-INV-VIR00000001" {
		t.Fatalf("first wire invoice number expected MY-INV-VIR00000001, got %s", wire.InvoiceNumber)
	}
}

func TestDocumentLifecycle_ImageValidationBlocksPersistence(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	client, err := models.CreateUser(ctx, &models.NewUser{
		Email:    "client2@lifecycle.test",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	_, err = models.CreateQuote(ctx, &models.NewQuote{
		ClientID: client.ID,
		Media: []models.NewMediaReference{
			{ObjectKey: "quotes/w1.jpg", MimeType: "image/jpeg"},
		},
	})
	if err == nil {
		t.Fatal("quote with 1 image must be rejected")
	}

	quotes, err := models.GetQuotes(ctx, &client.ID, nil)
	if err != nil {
		t.Fatalf("GetQuotes: %v", err)
	}
	if len(quotes) != 0 {
		t.Fatalf("rejected quote left %d rows behind", len(quotes))
	}
}

func TestDocumentLifecycle_ItemOrderAndRecalculation(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	client, err := models.CreateUser(ctx, &models.NewUser{
		Email:    "client3@lifecycle.test",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	invoice, err := models.CreateInvoice(ctx, &models.NewInvoice{
		ClientID:      client.ID,
		PaymentMethod: models.PaymentTypeCard,
		Items: []models.NewLineItem{
			{Description: "Rim straightening", Quantity: decimalPtr("2"), UnitPriceExcludingTax: decimal.RequireFromString("100"), TaxRate: decimal.RequireFromString("20")},
			{Description: "Valve replacement", Quantity: decimalPtr("1"), UnitPriceExcludingTax: decimal.RequireFromString("50"), TaxRate: decimal.RequireFromString("10")},
		},
		Media: threeImages(),
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	items, err := models.ListLineItems(ctx, models.ParentTypeInvoice, invoice.ID)
	if err != nil {
		t.Fatalf("ListLineItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Description != "Rim straightening" || items[1].Description != "Valve replacement" {
		t.Fatalf("items out of input order: %s, %s", items[0].Description, items[1].Description)
	}

	if got := invoice.PriceExcludingTax.StringFixed(2); got != "250.00" {
		t.Fatalf("invoice HT expected 250.00, got %s", got)
	}
	if got := invoice.TaxAmount.StringFixed(2); got != "45.00" {
		t.Fatalf("invoice tax expected 45.00, got %s", got)
	}
	if got := invoice.Amount.StringFixed(2); got != "295.00" {
		t.Fatalf("invoice TTC expected 295.00, got %s", got)
	}
	if got := invoice.TaxRate.String(); got != "20" {
		t.Fatalf("invoice display rate expected 20, got %s", got)
	}

	// Deleting an item re-derives the aggregates from what is left.
	if _, err := models.DeleteLineItem(ctx, items[1].ID); err != nil {
		t.Fatalf("DeleteLineItem: %v", err)
	}
	recalced, err := models.RecalculateInvoiceTotals(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("RecalculateInvoiceTotals: %v", err)
	}
	if got := recalced.Amount.StringFixed(2); got != "240.00" {
		t.Fatalf("invoice TTC after delete expected 240.00, got %s", got)
	}
}

func TestDocumentLifecycle_ConcurrentNumbering(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	db := config.GetDB()
	const n = 20

	results := make(chan string, n)
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx := db.Begin()
			counter, err := models.NextInvoiceNumber(ctx, tx, models.PaymentTypeCash)
			if err != nil {
				_ = tx.Rollback().Error
				errs <- err
				return
			}
			if err := tx.Commit().Error; err != nil {
				errs <- err
				return
			}
			results <- models.FormatInvoiceNumber(models.PaymentTypeCash, counter.CurrentNumber)
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("NextInvoiceNumber: %v", err)
	}

	seen := map[string]bool{}
	for number := range results {
		if seen[number] {
			t.Fatalf("invoice number %s was allocated twice", number)
		}
		seen[number] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct numbers, got %d", n, len(seen))
	}
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("atelier-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("atelier-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=atelier_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
