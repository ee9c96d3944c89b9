package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/myjantes/atelier_backend/config"
	"github.com/myjantes/atelier_backend/utils"
	"github.com/shopspring/decimal"
)

// Invoice is a billing document, optionally snapshotted from an approved
// quote, carrying a unique sequential number partitioned by payment method.
type Invoice struct {
	ID                int             `gorm:"primary_key" json:"id"`
	ClientID          int             `gorm:"index;not null" json:"client_id"`
	QuoteID           *int            `gorm:"index" json:"quote_id"`
	InvoiceNumber     string          `gorm:"size:30;uniqueIndex;not null" json:"invoice_number"`
	SequenceNo        int64           `gorm:"not null" json:"sequence_no"`
	PaymentMethod     PaymentType     `gorm:"size:30;not null" json:"payment_method"`
	Status            InvoiceStatus   `gorm:"size:20;not null;default:'pending'" json:"status"`
	WheelCount        int             `json:"wheel_count"`
	Diameter          string          `gorm:"size:20" json:"diameter"`
	ProductDetails    string          `gorm:"type:text" json:"product_details"`
	Amount            decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	PriceExcludingTax decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price_excluding_tax"`
	TaxAmount         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"tax_amount"`
	TaxRate           decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"tax_rate"`
	Notes             string          `gorm:"type:text" json:"notes"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	LineItems []*LineItem  `gorm:"-" json:"line_items,omitempty"`
	Media     []*MediaFile `gorm:"-" json:"media,omitempty"`
}

type NewInvoice struct {
	ClientID int  `json:"client_id" binding:"required"`
	QuoteID  *int `json:"quote_id"`
	// ignored when QuoteID is set; the quote snapshot wins
	PaymentMethod  PaymentType `json:"payment_method"`
	WheelCount     int         `json:"wheel_count"`
	Diameter       string      `json:"diameter"`
	ProductDetails string      `json:"product_details"`
	Notes          string      `json:"notes"`
	// legacy single-value totals for invoices created without line items
	Amount            decimal.Decimal     `json:"amount"`
	PriceExcludingTax decimal.Decimal     `json:"price_excluding_tax"`
	TaxAmount         decimal.Decimal     `json:"tax_amount"`
	TaxRate           decimal.Decimal     `json:"tax_rate"`
	Items             []NewLineItem       `json:"items"`
	Media             []NewMediaReference `json:"media"`
}

// CreateInvoice runs the invoice creation protocol: image validation before
// any row is written, quote snapshot copy when created from an approved
// quote, exactly one number allocation inside the transaction, sequential
// item writes, recalculation last, and a best-effort notification.
func CreateInvoice(ctx context.Context, input *NewInvoice) (*Invoice, error) {
	db := config.GetDB()

	// no partial state before this check
	if err := ValidateMinimumImages(input.Media, MinimumDocumentImages); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[User](ctx, input.ClientID); err != nil {
		return nil, errors.New("client not found")
	}

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	invoice := Invoice{
		ClientID:          input.ClientID,
		QuoteID:           input.QuoteID,
		PaymentMethod:     input.PaymentMethod,
		Status:            InvoiceStatusPending,
		WheelCount:        input.WheelCount,
		Diameter:          input.Diameter,
		ProductDetails:    input.ProductDetails,
		Amount:            input.Amount,
		PriceExcludingTax: input.PriceExcludingTax,
		TaxAmount:         input.TaxAmount,
		TaxRate:           input.TaxRate,
		Notes:             input.Notes,
	}

	if input.QuoteID != nil {
		var quote Quote
		if err := tx.WithContext(ctx).First(&quote, *input.QuoteID).Error; err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		if quote.Status != QuoteStatusApproved {
			return nil, utils.NewValidationError("quote_id",
				fmt.Sprintf("quote %d is %s, only approved quotes can be invoiced", quote.ID, quote.Status))
		}
		// snapshot at copy time; no live link afterwards
		invoice.PaymentMethod = quote.PaymentMethod
		invoice.WheelCount = quote.WheelCount
		invoice.Diameter = quote.Diameter
		invoice.ProductDetails = quote.ProductDetails
		invoice.PriceExcludingTax = quote.PriceExcludingTax
		invoice.TaxRate = quote.TaxRate
		invoice.TaxAmount = quote.TaxAmount
		invoice.Amount = quote.QuoteAmount
	}

	if invoice.PaymentMethod == "" {
		return nil, utils.NewValidationError("payment_method", "payment method is required")
	}

	// numbering happens exactly once, in the same transaction as the row
	counter, err := NextInvoiceNumber(ctx, tx, invoice.PaymentMethod)
	if err != nil {
		return nil, err
	}
	invoice.SequenceNo = counter.CurrentNumber
	invoice.InvoiceNumber = FormatInvoiceNumber(invoice.PaymentMethod, counter.CurrentNumber)

	if err := tx.WithContext(ctx).Create(&invoice).Error; err != nil {
		return nil, err
	}

	// items written one by one in input order
	for i := range input.Items {
		if _, err := createLineItemTx(ctx, tx, ParentTypeInvoice, invoice.ID, &input.Items[i]); err != nil {
			return nil, err
		}
	}

	media, err := createMediaFilesTx(ctx, tx, ParentTypeInvoice, invoice.ID, input.Media)
	if err != nil {
		return nil, err
	}

	// aggregates observe the fully written item set
	updated, err := recalculateInvoiceTotalsTx(ctx, tx, invoice.ID)
	if err != nil {
		return nil, err
	}

	EnqueueNotification(ctx, tx, invoice.ClientID, NotificationEventInvoiceCreated, string(ParentTypeInvoice), invoice.ID, string(invoice.Status))

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	updated.Media = media
	updated.LineItems, _ = ListLineItems(ctx, ParentTypeInvoice, updated.ID)
	return updated, nil
}

// UpdateInvoiceStatus moves the invoice through its lifecycle:
// pending -> paid | overdue | cancelled.
func UpdateInvoiceStatus(ctx context.Context, id int, status InvoiceStatus) (*Invoice, error) {
	db := config.GetDB()

	invoice, err := utils.FetchModel[Invoice](ctx, id)
	if err != nil {
		return nil, err
	}

	if config.StrictStatusTransitions() && !invoice.Status.CanTransitionTo(status) {
		return nil, utils.NewValidationError("status",
			fmt.Sprintf("cannot transition invoice from %s to %s", invoice.Status, status))
	}

	if err := db.WithContext(ctx).Model(&invoice).Update("Status", status).Error; err != nil {
		return nil, err
	}
	invoice.Status = status
	return invoice, nil
}

type UpdateInvoiceInput struct {
	Notes          *string `json:"notes"`
	WheelCount     *int    `json:"wheel_count"`
	Diameter       *string `json:"diameter"`
	ProductDetails *string `json:"product_details"`
}

func UpdateInvoice(ctx context.Context, id int, input *UpdateInvoiceInput) (*Invoice, error) {

	invoice, err := utils.FetchModel[Invoice](ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Notes != nil {
		updates["Notes"] = *input.Notes
	}
	if input.WheelCount != nil {
		updates["WheelCount"] = *input.WheelCount
	}
	if input.Diameter != nil {
		updates["Diameter"] = *input.Diameter
	}
	if input.ProductDetails != nil {
		updates["ProductDetails"] = *input.ProductDetails
	}
	if len(updates) == 0 {
		return invoice, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&invoice).Updates(updates).Error; err != nil {
		return nil, err
	}
	return utils.FetchModel[Invoice](ctx, id)
}

func GetInvoice(ctx context.Context, id int) (*Invoice, error) {

	invoice, err := utils.FetchModel[Invoice](ctx, id)
	if err != nil {
		return nil, err
	}
	invoice.LineItems, err = ListLineItems(ctx, ParentTypeInvoice, invoice.ID)
	if err != nil {
		return nil, err
	}
	invoice.Media, err = ListMediaFiles(ctx, ParentTypeInvoice, invoice.ID)
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func GetInvoices(ctx context.Context, clientID *int, status *InvoiceStatus) ([]*Invoice, error) {
	db := config.GetDB()
	var invoices []*Invoice

	dbCtx := db.WithContext(ctx)
	if clientID != nil && *clientID > 0 {
		dbCtx = dbCtx.Where("client_id = ?", *clientID)
	}
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	if err := dbCtx.Order("id DESC").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// DeleteInvoice removes the invoice and everything owned by it. The consumed
// counter value is never handed out again.
func DeleteInvoice(ctx context.Context, id int) (*Invoice, error) {
	db := config.GetDB()

	invoice, err := utils.FetchModel[Invoice](ctx, id)
	if err != nil {
		return nil, err
	}

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if err := deleteLineItemsForParentTx(ctx, tx, ParentTypeInvoice, invoice.ID); err != nil {
		return nil, err
	}
	if err := deleteMediaForParentTx(ctx, tx, ParentTypeInvoice, invoice.ID); err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(&invoice).Error; err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return invoice, nil
}
