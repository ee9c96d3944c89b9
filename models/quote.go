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

// Quote is a priced proposal awaiting approval before it can become an
// invoice. Aggregate monetary fields are derived; only the recalculation
// writes them once line items exist.
type Quote struct {
	ID                int             `gorm:"primary_key" json:"id"`
	ClientID          int             `gorm:"index;not null" json:"client_id"`
	Status            QuoteStatus     `gorm:"size:20;not null;default:'pending'" json:"status"`
	PaymentMethod     PaymentType     `gorm:"size:30" json:"payment_method"`
	WheelCount        int             `json:"wheel_count"`
	Diameter          string          `gorm:"size:20" json:"diameter"`
	ProductDetails    string          `gorm:"type:text" json:"product_details"`
	QuoteAmount       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quote_amount"`
	PriceExcludingTax decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price_excluding_tax"`
	TaxAmount         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"tax_amount"`
	TaxRate           decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"tax_rate"`
	Notes             string          `gorm:"type:text" json:"notes"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	LineItems []*LineItem  `gorm:"-" json:"line_items,omitempty"`
	Media     []*MediaFile `gorm:"-" json:"media,omitempty"`
}

// QuoteServiceInput references a catalog service to auto-generate one line
// item at creation time, saving the round trip through the item endpoint.
type QuoteServiceInput struct {
	ServiceID int              `json:"service_id" binding:"required"`
	Quantity  *decimal.Decimal `json:"quantity"`
}

type NewQuote struct {
	ClientID       int                 `json:"client_id" binding:"required"`
	PaymentMethod  PaymentType         `json:"payment_method"`
	WheelCount     int                 `json:"wheel_count"`
	Diameter       string              `json:"diameter"`
	ProductDetails string              `json:"product_details"`
	Notes          string              `json:"notes"`
	// TaxRate applies to auto-generated service lines; a service's own rate
	// is used when zero. Also the legacy display rate for item-less quotes.
	TaxRate decimal.Decimal `json:"tax_rate"`
	// legacy single-value totals for quotes created without line items
	QuoteAmount       decimal.Decimal     `json:"quote_amount"`
	PriceExcludingTax decimal.Decimal     `json:"price_excluding_tax"`
	TaxAmount         decimal.Decimal     `json:"tax_amount"`
	Services          []QuoteServiceInput `json:"services"`
	Media             []NewMediaReference `json:"media"`
}

type UpdateQuoteInput struct {
	PaymentMethod  *PaymentType `json:"payment_method"`
	WheelCount     *int         `json:"wheel_count"`
	Diameter       *string      `json:"diameter"`
	ProductDetails *string      `json:"product_details"`
	Notes          *string      `json:"notes"`
}

// CreateQuote runs the quote creation protocol: image validation before any
// row is written, then parent, service line items in input order, media
// references, and recalculation last, all in one transaction.
func CreateQuote(ctx context.Context, input *NewQuote) (*Quote, error) {
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

	quote := Quote{
		ClientID:          input.ClientID,
		Status:            QuoteStatusPending,
		PaymentMethod:     input.PaymentMethod,
		WheelCount:        input.WheelCount,
		Diameter:          input.Diameter,
		ProductDetails:    input.ProductDetails,
		QuoteAmount:       input.QuoteAmount,
		PriceExcludingTax: input.PriceExcludingTax,
		TaxAmount:         input.TaxAmount,
		TaxRate:           input.TaxRate,
		Notes:             input.Notes,
	}
	if err := tx.WithContext(ctx).Create(&quote).Error; err != nil {
		return nil, err
	}

	for _, svcInput := range input.Services {
		var service Service
		if err := tx.WithContext(ctx).First(&service, svcInput.ServiceID).Error; err != nil {
			return nil, fmt.Errorf("service %d not found", svcInput.ServiceID)
		}
		rate := input.TaxRate
		if rate.IsZero() {
			rate = service.TaxRate
		}
		_, err := createLineItemTx(ctx, tx, ParentTypeQuote, quote.ID, &NewLineItem{
			Description:           service.Name,
			Quantity:              svcInput.Quantity,
			UnitPriceExcludingTax: service.BasePrice,
			TaxRate:               rate,
		})
		if err != nil {
			return nil, err
		}
	}

	media, err := createMediaFilesTx(ctx, tx, ParentTypeQuote, quote.ID, input.Media)
	if err != nil {
		return nil, err
	}

	// aggregates observe the fully written item set
	updated, err := recalculateQuoteTotalsTx(ctx, tx, quote.ID)
	if err != nil {
		return nil, err
	}

	EnqueueNotification(ctx, tx, quote.ClientID, NotificationEventQuoteUpdated, string(ParentTypeQuote), quote.ID, string(quote.Status))

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	updated.Media = media
	updated.LineItems, _ = ListLineItems(ctx, ParentTypeQuote, updated.ID)
	return updated, nil
}

func UpdateQuote(ctx context.Context, id int, input *UpdateQuoteInput) (*Quote, error) {

	quote, err := utils.FetchModel[Quote](ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.PaymentMethod != nil {
		updates["PaymentMethod"] = *input.PaymentMethod
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
	if input.Notes != nil {
		updates["Notes"] = *input.Notes
	}
	if len(updates) == 0 {
		return quote, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&quote).Updates(updates).Error; err != nil {
		return nil, err
	}
	return utils.FetchModel[Quote](ctx, id)
}

// UpdateQuoteStatus moves the quote through its lifecycle:
// pending -> approved | rejected, approved -> completed.
func UpdateQuoteStatus(ctx context.Context, id int, status QuoteStatus) (*Quote, error) {
	db := config.GetDB()

	quote, err := utils.FetchModel[Quote](ctx, id)
	if err != nil {
		return nil, err
	}

	if config.StrictStatusTransitions() && !quote.Status.CanTransitionTo(status) {
		return nil, utils.NewValidationError("status",
			fmt.Sprintf("cannot transition quote from %s to %s", quote.Status, status))
	}

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.WithContext(ctx).Model(&quote).Update("Status", status).Error; err != nil {
		return nil, err
	}
	quote.Status = status

	EnqueueNotification(ctx, tx, quote.ClientID, NotificationEventQuoteUpdated, string(ParentTypeQuote), quote.ID, string(status))

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return quote, nil
}

func GetQuote(ctx context.Context, id int) (*Quote, error) {

	quote, err := utils.FetchModel[Quote](ctx, id)
	if err != nil {
		return nil, err
	}
	quote.LineItems, err = ListLineItems(ctx, ParentTypeQuote, quote.ID)
	if err != nil {
		return nil, err
	}
	quote.Media, err = ListMediaFiles(ctx, ParentTypeQuote, quote.ID)
	if err != nil {
		return nil, err
	}
	return quote, nil
}

func GetQuotes(ctx context.Context, clientID *int, status *QuoteStatus) ([]*Quote, error) {
	db := config.GetDB()
	var quotes []*Quote

	dbCtx := db.WithContext(ctx)
	if clientID != nil && *clientID > 0 {
		dbCtx = dbCtx.Where("client_id = ?", *clientID)
	}
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	if err := dbCtx.Order("id DESC").Find(&quotes).Error; err != nil {
		return nil, err
	}
	return quotes, nil
}

// DeleteQuote removes the quote and everything owned by it.
func DeleteQuote(ctx context.Context, id int) (*Quote, error) {
	db := config.GetDB()

	quote, err := utils.FetchModel[Quote](ctx, id)
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

	if err := deleteLineItemsForParentTx(ctx, tx, ParentTypeQuote, quote.ID); err != nil {
		return nil, err
	}
	if err := deleteMediaForParentTx(ctx, tx, ParentTypeQuote, quote.ID); err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(&quote).Error; err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return quote, nil
}
