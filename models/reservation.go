package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/myjantes/atelier_backend/config"
	"github.com/myjantes/atelier_backend/utils"
)

// Reservation is a workshop time slot booked for a catalog service.
type Reservation struct {
	ID           int               `gorm:"primary_key" json:"id"`
	ClientID     int               `gorm:"index;not null" json:"client_id"`
	ServiceID    int               `gorm:"index;not null" json:"service_id"`
	Status       ReservationStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	ScheduledAt  time.Time         `gorm:"index;not null" json:"scheduled_at"`
	VehiclePlate string            `gorm:"size:20" json:"vehicle_plate"`
	Notes        string            `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"autoUpdateTime" json:"updated_at"`

	Service *Service `gorm:"foreignKey:ServiceID" json:"service,omitempty"`
}

type NewReservation struct {
	ClientID     int       `json:"client_id" binding:"required"`
	ServiceID    int       `json:"service_id" binding:"required"`
	ScheduledAt  time.Time `json:"scheduled_at" binding:"required"`
	VehiclePlate string    `json:"vehicle_plate"`
	Notes        string    `json:"notes"`
}

func CreateReservation(ctx context.Context, input *NewReservation) (*Reservation, error) {

	if err := utils.ValidateResourceId[User](ctx, input.ClientID); err != nil {
		return nil, errors.New("client not found")
	}
	if err := utils.ValidateResourceId[Service](ctx, input.ServiceID); err != nil {
		return nil, errors.New("service not found")
	}
	if input.ScheduledAt.Before(time.Now()) {
		return nil, utils.NewValidationError("scheduled_at", "must be in the future")
	}

	reservation := Reservation{
		ClientID:     input.ClientID,
		ServiceID:    input.ServiceID,
		Status:       ReservationStatusPending,
		ScheduledAt:  input.ScheduledAt,
		VehiclePlate: input.VehiclePlate,
		Notes:        input.Notes,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&reservation).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

// UpdateReservationStatus moves the reservation through its lifecycle:
// pending -> confirmed -> completed, cancellable until completed.
func UpdateReservationStatus(ctx context.Context, id int, status ReservationStatus) (*Reservation, error) {
	db := config.GetDB()

	reservation, err := utils.FetchModel[Reservation](ctx, id)
	if err != nil {
		return nil, err
	}

	if config.StrictStatusTransitions() && !reservation.Status.CanTransitionTo(status) {
		return nil, utils.NewValidationError("status",
			fmt.Sprintf("cannot transition reservation from %s to %s", reservation.Status, status))
	}

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.WithContext(ctx).Model(&reservation).Update("Status", status).Error; err != nil {
		return nil, err
	}
	reservation.Status = status

	eventType := NotificationEventReservationUpdated
	if status == ReservationStatusConfirmed {
		eventType = NotificationEventReservationConfirmed
	}
	EnqueueNotification(ctx, tx, reservation.ClientID, eventType, "reservations", reservation.ID, string(status))

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return reservation, nil
}

func GetReservation(ctx context.Context, id int) (*Reservation, error) {
	return utils.FetchModel[Reservation](ctx, id, "Service")
}

func GetReservations(ctx context.Context, clientID *int, status *ReservationStatus) ([]*Reservation, error) {
	db := config.GetDB()
	var reservations []*Reservation

	dbCtx := db.WithContext(ctx).Preload("Service")
	if clientID != nil && *clientID > 0 {
		dbCtx = dbCtx.Where("client_id = ?", *clientID)
	}
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	if err := dbCtx.Order("scheduled_at ASC").Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

func DeleteReservation(ctx context.Context, id int) (*Reservation, error) {

	reservation, err := utils.FetchModel[Reservation](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&reservation).Error; err != nil {
		return nil, err
	}
	return reservation, nil
}
