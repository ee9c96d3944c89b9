package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/myjantes/atelier_backend/config"
	"github.com/myjantes/atelier_backend/utils"
	"gorm.io/gorm"
)

// NotificationRecord is a transactional outbox row: written inside the
// caller's DB transaction, delivered asynchronously by the dispatcher after
// commit. Delivery is at-most-once, best-effort.
type NotificationRecord struct {
	ID            int                   `gorm:"primary_key;index:idx_notification_dispatch,priority:3" json:"id"`
	UserID        int                   `gorm:"index;not null" json:"user_id"`
	EventType     NotificationEventType `gorm:"size:50;not null" json:"event_type"`
	ReferenceType string                `gorm:"size:20;not null" json:"reference_type"`
	ReferenceID   int                   `gorm:"not null" json:"reference_id"`
	Payload       []byte                `gorm:"type:blob" json:"payload"`
	PublishStatus string                `gorm:"size:20;index;not null;default:'PENDING';index:idx_notification_dispatch,priority:1" json:"publish_status"`
	PublishedAt   *time.Time            `gorm:"index" json:"published_at"`
	// message id assigned by Pub/Sub when that sink is configured
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_notification_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (NotificationRecord) TableName() string {
	return "notification_outbox"
}

// NotificationEvent is the structured payload delivered to the client's
// channel.
type NotificationEvent struct {
	Type          NotificationEventType `json:"type"`
	ReferenceType string                `json:"reference_type"`
	DocumentID    int                   `json:"document_id"`
	Status        string                `json:"status,omitempty"`
	UserID        int                   `json:"user_id"`
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func enqueueNotificationTx(ctx context.Context, tx *gorm.DB, userID int, eventType NotificationEventType, referenceType string, referenceID int, status string) error {

	payload, err := json.Marshal(NotificationEvent{
		Type:          eventType,
		ReferenceType: referenceType,
		DocumentID:    referenceID,
		Status:        status,
		UserID:        userID,
	})
	if err != nil {
		return err
	}

	record := NotificationRecord{
		UserID:        userID,
		EventType:     eventType,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
		Payload:       payload,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

// EnqueueNotification writes the outbox row. Failure is logged, never
// propagated: the primary operation already stands on its own.
func EnqueueNotification(ctx context.Context, tx *gorm.DB, userID int, eventType NotificationEventType, referenceType string, referenceID int, status string) {
	if err := enqueueNotificationTx(ctx, tx, userID, eventType, referenceType, referenceID, status); err != nil {
		logger := config.GetLogger()
		config.LogError(logger, "models", "EnqueueNotification", string(eventType), map[string]interface{}{
			"referenceType": referenceType,
			"referenceId":   referenceID,
		}, err)
	}
}

func GetNotificationRecord(ctx context.Context, id int) (*NotificationRecord, error) {
	return utils.FetchModel[NotificationRecord](ctx, id)
}

func ListNotificationsForUser(ctx context.Context, userID int, limit int) ([]*NotificationRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	db := config.GetDB()
	var records []*NotificationRecord
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
