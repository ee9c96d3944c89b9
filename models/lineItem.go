package models

import (
	"context"
	"errors"
	"time"

	"github.com/myjantes/atelier_backend/config"
	"github.com/myjantes/atelier_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LineItem is one billable row of a quote or invoice. The parent reference is
// polymorphic; an item belongs to exactly one document and is removed with it.
type LineItem struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	ParentType            ParentType      `gorm:"size:20;not null;index:idx_line_items_parent,priority:1" json:"parent_type"`
	ParentID              int             `gorm:"not null;index:idx_line_items_parent,priority:2" json:"parent_id"`
	Description           string          `gorm:"size:255" json:"description"`
	Quantity              decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPriceExcludingTax decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price_excluding_tax"`
	TaxRate               decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"tax_rate"`
	TotalExcludingTax     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_excluding_tax"`
	TaxAmount             decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"tax_amount"`
	TotalIncludingTax     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_including_tax"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewLineItem struct {
	Description           string           `json:"description"`
	Quantity              *decimal.Decimal `json:"quantity"`
	UnitPriceExcludingTax decimal.Decimal  `json:"unit_price_excluding_tax"`
	TaxRate               decimal.Decimal  `json:"tax_rate"`
}

// UpdateLineItemInput carries a partial merge; nil fields keep their stored
// value.
type UpdateLineItemInput struct {
	Description           *string          `json:"description"`
	Quantity              *decimal.Decimal `json:"quantity"`
	UnitPriceExcludingTax *decimal.Decimal `json:"unit_price_excluding_tax"`
	TaxRate               *decimal.Decimal `json:"tax_rate"`
}

func (input *NewLineItem) validate() error {
	if input.Quantity != nil && input.Quantity.IsNegative() {
		return utils.NewValidationError("quantity", "must not be negative")
	}
	if input.UnitPriceExcludingTax.IsNegative() {
		return utils.NewValidationError("unit_price_excluding_tax", "must not be negative")
	}
	if input.TaxRate.IsNegative() {
		return utils.NewValidationError("tax_rate", "must not be negative")
	}
	return nil
}

// applyLineTotals stores the derived fields at write time, each rendered at
// two decimals (see ComputeAggregates for how aggregates treat this).
func (item *LineItem) applyLineTotals() {
	total := utils.CalculateLineTotal(item.Quantity, item.UnitPriceExcludingTax)
	tax := utils.CalculateTaxAmount(total, item.TaxRate)
	item.TotalExcludingTax = utils.RoundMoney(total)
	item.TaxAmount = utils.RoundMoney(tax)
	item.TotalIncludingTax = item.TotalExcludingTax.Add(item.TaxAmount)
}

func validParentType(parentType ParentType) bool {
	return parentType == ParentTypeQuote || parentType == ParentTypeInvoice
}

// ListLineItems returns the parent's items in creation order. An unknown
// parent id yields an empty slice, not an error.
func ListLineItems(ctx context.Context, parentType ParentType, parentID int) ([]*LineItem, error) {
	if !validParentType(parentType) {
		return nil, errors.New("invalid parent type")
	}
	db := config.GetDB()
	return listLineItemsTx(ctx, db, parentType, parentID)
}

func listLineItemsTx(ctx context.Context, tx *gorm.DB, parentType ParentType, parentID int) ([]*LineItem, error) {
	var items []*LineItem
	err := tx.WithContext(ctx).
		Where("parent_type = ? AND parent_id = ?", parentType, parentID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func GetLineItem(ctx context.Context, id int) (*LineItem, error) {
	return utils.FetchModel[LineItem](ctx, id)
}

// CreateLineItem stores a new item. It does not recalculate the parent's
// aggregates; callers invoke the recalculation after their item writes.
func CreateLineItem(ctx context.Context, parentType ParentType, parentID int, input *NewLineItem) (*LineItem, error) {
	db := config.GetDB()
	return createLineItemTx(ctx, db, parentType, parentID, input)
}

func createLineItemTx(ctx context.Context, tx *gorm.DB, parentType ParentType, parentID int, input *NewLineItem) (*LineItem, error) {
	if !validParentType(parentType) {
		return nil, errors.New("invalid parent type")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	if err := validateParentExists(ctx, tx, parentType, parentID); err != nil {
		return nil, err
	}

	quantity := decimal.NewFromInt(1)
	if input.Quantity != nil {
		quantity = *input.Quantity
	}

	item := LineItem{
		ParentType:            parentType,
		ParentID:              parentID,
		Description:           input.Description,
		Quantity:              quantity,
		UnitPriceExcludingTax: input.UnitPriceExcludingTax,
		TaxRate:               input.TaxRate,
	}
	item.applyLineTotals()

	if err := tx.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func UpdateLineItem(ctx context.Context, id int, input *UpdateLineItemInput) (*LineItem, error) {

	item, err := utils.FetchModel[LineItem](ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Description != nil {
		item.Description = *input.Description
	}
	if input.Quantity != nil {
		if input.Quantity.IsNegative() {
			return nil, utils.NewValidationError("quantity", "must not be negative")
		}
		item.Quantity = *input.Quantity
	}
	if input.UnitPriceExcludingTax != nil {
		if input.UnitPriceExcludingTax.IsNegative() {
			return nil, utils.NewValidationError("unit_price_excluding_tax", "must not be negative")
		}
		item.UnitPriceExcludingTax = *input.UnitPriceExcludingTax
	}
	if input.TaxRate != nil {
		if input.TaxRate.IsNegative() {
			return nil, utils.NewValidationError("tax_rate", "must not be negative")
		}
		item.TaxRate = *input.TaxRate
	}
	item.applyLineTotals()

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&item).Updates(map[string]interface{}{
		"Description":           item.Description,
		"Quantity":              item.Quantity,
		"UnitPriceExcludingTax": item.UnitPriceExcludingTax,
		"TaxRate":               item.TaxRate,
		"TotalExcludingTax":     item.TotalExcludingTax,
		"TaxAmount":             item.TaxAmount,
		"TotalIncludingTax":     item.TotalIncludingTax,
	}).Error
	if err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteLineItem removes the item and returns the deleted row so the caller
// still holds the parent reference for the recalculation that follows.
func DeleteLineItem(ctx context.Context, id int) (*LineItem, error) {

	item, err := utils.FetchModel[LineItem](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func deleteLineItemsForParentTx(ctx context.Context, tx *gorm.DB, parentType ParentType, parentID int) error {
	return tx.WithContext(ctx).
		Where("parent_type = ? AND parent_id = ?", parentType, parentID).
		Delete(&LineItem{}).Error
}

func validateParentExists(ctx context.Context, tx *gorm.DB, parentType ParentType, parentID int) error {
	var count int64
	err := tx.WithContext(ctx).Table(string(parentType)).Where("id = ?", parentID).Count(&count).Error
	if err != nil {
		return err
	}
	if count <= 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}
