package workflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/myjantes/atelier_backend/config"
	"github.com/myjantes/atelier_backend/models"
	"github.com/myjantes/atelier_backend/push"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationDispatcher drains the notification outbox after commit: claim a
// batch, deliver to the configured sinks (websocket hub, redis channel,
// Pub/Sub), retry with backoff, DEAD after max attempts. Document creation
// never waits on any of this.
type NotificationDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	Hub          *push.Hub
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewNotificationDispatcher(db *gorm.DB, logger *logrus.Logger, hub *push.Hub) *NotificationDispatcher {
	return &NotificationDispatcher{
		DB:             db,
		Logger:         logger,
		Hub:            hub,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
	}
}

func (d *NotificationDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

func (d *NotificationDispatcher) dispatchOnce(ctx context.Context) {
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)
	db := d.DB
	if db == nil {
		return
	}

	var claimed []models.NotificationRecord
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Eligible:
		// - PENDING / FAILED and ready to retry
		// - PROCESSING but lock is stale (dispatcher crashed mid-batch)
		q := tx.
			Where(`
				(
					publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					publish_status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []string{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}, now, models.OutboxPublishStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		for i := range claimed {
			// Poison messages go terminal.
			if d.MaxAttempts > 0 && claimed[i].PublishAttempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].PublishStatus = models.OutboxPublishStatusDead
				if err := tx.Model(&models.NotificationRecord{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"publish_status":     models.OutboxPublishStatusDead,
					"last_publish_error": &msg,
					"next_attempt_at":    nil,
					"locked_at":          nil,
					"locked_by":          nil,
				}).Error; err != nil {
					return err
				}
				continue
			}

			// Claim for delivery.
			claimed[i].PublishStatus = models.OutboxPublishStatusProcessing
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &d.DispatcherID
			claimed[i].PublishAttempts = claimed[i].PublishAttempts + 1
			claimed[i].LastPublishError = nil
			if err := tx.Model(&models.NotificationRecord{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"publish_status":     claimed[i].PublishStatus,
				"locked_at":          claimed[i].LockedAt,
				"locked_by":          claimed[i].LockedBy,
				"publish_attempts":   gorm.Expr("publish_attempts + 1"),
				"last_publish_error": nil,
				"next_attempt_at":    nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(claimed) == 0 {
		return
	}

	for _, rec := range claimed {
		if rec.PublishStatus == models.OutboxPublishStatusDead {
			continue
		}
		pubID, err := d.deliver(ctx, &rec)
		if err != nil {
			d.markPublishFailed(ctx, rec.ID, err, rec.PublishAttempts)
			continue
		}
		d.markPublishSent(ctx, rec.ID, pubID, now)
	}
}

// deliver fans the event out. The websocket hub and the redis channel are
// at-most-once and never fail the record; only the Pub/Sub sink (when
// configured) gates the SENT transition.
func (d *NotificationDispatcher) deliver(ctx context.Context, rec *models.NotificationRecord) (string, error) {

	if d.Hub != nil {
		d.Hub.Send(rec.UserID, rec.Payload)
	}

	if err := config.PublishRedis(ctx, "notifications:"+strconv.Itoa(rec.UserID), rec.Payload); err != nil {
		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field":     "NotificationDispatcher",
				"record_id": rec.ID,
			}).Warn("redis publish failed: " + err.Error())
		}
	}

	if !config.PubSubConfigured() {
		return "", nil
	}
	return config.PublishNotificationWithResult(ctx, rec.Payload, map[string]string{
		"event_type":     string(rec.EventType),
		"user_id":        strconv.Itoa(rec.UserID),
		"correlation_id": rec.CorrelationId,
	})
}

func (d *NotificationDispatcher) markPublishSent(ctx context.Context, recordID int, pubsubMsgID string, now time.Time) {
	db := d.DB.WithContext(ctx)
	updates := map[string]interface{}{
		"publish_status":  models.OutboxPublishStatusSent,
		"published_at":    &now,
		"locked_at":       nil,
		"locked_by":       nil,
		"next_attempt_at": nil,
	}
	if pubsubMsgID != "" {
		updates["pub_sub_message_id"] = &pubsubMsgID
	}
	_ = db.Model(&models.NotificationRecord{}).
		Where("id = ?", recordID).
		Updates(updates).Error
}

func (d *NotificationDispatcher) markPublishFailed(ctx context.Context, recordID int, err error, attempt int) {
	db := d.DB.WithContext(ctx)
	now := time.Now().UTC()
	msg := err.Error()

	// Terminal after MaxAttempts.
	if d.MaxAttempts > 0 && attempt >= d.MaxAttempts {
		_ = db.Model(&models.NotificationRecord{}).
			Where("id = ?", recordID).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusDead,
				"last_publish_error": &msg,
				"next_attempt_at":    nil,
				"locked_at":          nil,
				"locked_by":          nil,
			}).Error

		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field":     "NotificationDispatcher",
				"record_id": recordID,
				"attempt":   attempt,
			}).Error("notification moved to DEAD after max attempts: " + fmt.Sprintf("%v", err))
		}
		return
	}

	backoff := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > time.Minute*10 {
			backoff = time.Minute * 10
			break
		}
	}
	next := now.Add(backoff)
	_ = db.Model(&models.NotificationRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusFailed,
			"last_publish_error": &msg,
			"next_attempt_at":    &next,
			"locked_at":          nil,
			"locked_by":          nil,
		}).Error

	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":           "NotificationDispatcher",
			"record_id":       recordID,
			"attempt":         attempt,
			"next_attempt_at": next.Format(time.RFC3339Nano),
		}).Error("notification delivery failed: " + fmt.Sprintf("%v", err))
	}
}
