package models

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/myjantes/atelier_backend/config"
	"github.com/myjantes/atelier_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InvoiceCounter is one numbering partition. Numbers are strictly increasing
// per payment type and never reset.
type InvoiceCounter struct {
	PaymentType   PaymentType `gorm:"primary_key;size:30" json:"payment_type"`
	CurrentNumber int64       `gorm:"not null" json:"current_number"`
	CreatedAt     time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func counterLockName(paymentType PaymentType) string {
	return "invoice_counter:" + string(paymentType)
}

// NextInvoiceNumber allocates the next number for the payment type inside the
// caller's transaction. The increment is a single atomic upsert under a
// per-partition advisory lock, so concurrent instances never see the same
// value. First use of a payment type yields 1.
func NextInvoiceNumber(ctx context.Context, tx *gorm.DB, paymentType PaymentType) (*InvoiceCounter, error) {

	lockName := counterLockName(paymentType)

	// Redis fast path keeps concurrent callers from queueing on the DB lock.
	// Best-effort only; correctness comes from the advisory lock + upsert.
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, lockName, 5*time.Second, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 20),
		})
		if err == nil {
			defer lock.Release(context.WithoutCancel(ctx))
		}
	}

	if err := utils.AcquireNamedLock(tx, lockName); err != nil {
		return nil, err
	}
	defer utils.ReleaseNamedLock(tx, lockName)

	err := tx.WithContext(ctx).Exec(`
		INSERT INTO invoice_counters (payment_type, current_number, created_at, updated_at)
		VALUES (?, 1, NOW(), NOW())
		ON DUPLICATE KEY UPDATE current_number = current_number + 1, updated_at = NOW()`,
		paymentType).Error
	if err != nil {
		return nil, err
	}

	var counter InvoiceCounter
	err = tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&counter, "payment_type = ?", paymentType).Error
	if err != nil {
		return nil, err
	}
	return &counter, nil
}

// FormatInvoiceNumber renders the public invoice number,
// e.g. MY-INV-VIR00000042.
func FormatInvoiceNumber(paymentType PaymentType, number int64) string {
	return fmt.Sprintf("MY-INV-%s%08d", paymentType.CounterCode(), number)
}

func GetInvoiceCounter(ctx context.Context, paymentType PaymentType) (*InvoiceCounter, error) {
	db := config.GetDB()
	var counter InvoiceCounter
	err := db.WithContext(ctx).First(&counter, "payment_type = ?", paymentType).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &counter, nil
}
