package models

import (
	"context"
	"time"

	"github.com/myjantes/atelier_backend/config"
	"github.com/myjantes/atelier_backend/utils"
	"github.com/shopspring/decimal"
)

// Service is one catalog entry (dévoilage, décapage, peinture...).
type Service struct {
	ID          int             `gorm:"primary_key" json:"id"`
	Name        string          `gorm:"size:100;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	BasePrice   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"base_price"`
	TaxRate     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"tax_rate"`
	ImageURL    string          `gorm:"size:1000" json:"image_url"`
	IsActive    *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewService struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	BasePrice   decimal.Decimal `json:"base_price" binding:"required"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	ImageURL    string          `json:"image_url"`
}

const activeServicesCacheKey = "services:active"

func (input *NewService) validate(ctx context.Context, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Service](ctx, id); err != nil {
			return err
		}
	}
	if input.BasePrice.IsNegative() {
		return utils.NewValidationError("base_price", "must not be negative")
	}
	if input.TaxRate.IsNegative() {
		return utils.NewValidationError("tax_rate", "must not be negative")
	}
	// name
	if err := utils.ValidateUnique[Service](ctx, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateService(ctx context.Context, input *NewService) (*Service, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	service := Service{
		Name:        input.Name,
		Description: input.Description,
		BasePrice:   input.BasePrice,
		TaxRate:     input.TaxRate,
		ImageURL:    input.ImageURL,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&service).Error; err != nil {
		return nil, err
	}

	invalidateServiceCache()
	return &service, nil
}

func UpdateService(ctx context.Context, id int, input *NewService) (*Service, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	service, err := utils.FetchModel[Service](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&service).Updates(map[string]interface{}{
		"Name":        input.Name,
		"Description": input.Description,
		"BasePrice":   input.BasePrice,
		"TaxRate":     input.TaxRate,
		"ImageURL":    input.ImageURL,
	}).Error
	if err != nil {
		return nil, err
	}

	invalidateServiceCache()
	return service, nil
}

func DeleteService(ctx context.Context, id int) (*Service, error) {

	service, err := utils.FetchModel[Service](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&service).Error; err != nil {
		return nil, err
	}

	invalidateServiceCache()
	return service, nil
}

func GetService(ctx context.Context, id int) (*Service, error) {
	return utils.FetchModel[Service](ctx, id)
}

// GetActiveServices returns the client-facing catalog, cached in redis until
// the next write.
func GetActiveServices(ctx context.Context) ([]*Service, error) {

	var services []*Service
	exists, err := config.GetRedisObject(activeServicesCacheKey, &services)
	if err == nil && exists {
		return services, nil
	}

	db := config.GetDB()
	err = db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name").
		Find(&services).Error
	if err != nil {
		return nil, err
	}

	if err := config.SetRedisObject(activeServicesCacheKey, &services, time.Hour); err != nil {
		logger := config.GetLogger()
		config.LogError(logger, "models", "GetActiveServices", "cache", nil, err)
	}
	return services, nil
}

func GetServices(ctx context.Context) ([]*Service, error) {
	db := config.GetDB()
	var services []*Service
	err := db.WithContext(ctx).Order("name").Find(&services).Error
	if err != nil {
		return nil, err
	}
	return services, nil
}

func ToggleActiveService(ctx context.Context, id int, isActive bool) (*Service, error) {

	service, err := utils.FetchModel[Service](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&service).Update("IsActive", isActive).Error
	if err != nil {
		return nil, err
	}
	service.IsActive = &isActive

	invalidateServiceCache()
	return service, nil
}

func invalidateServiceCache() {
	if err := config.RemoveRedisKey(activeServicesCacheKey); err != nil {
		logger := config.GetLogger()
		config.LogError(logger, "models", "invalidateServiceCache", "cache", nil, err)
	}
}
