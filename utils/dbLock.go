package utils

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireNamedLock serializes critical sections across instances using MySQL
// advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB (transaction) that will do the protected work, and released on it.
func AcquireNamedLock(tx *gorm.DB, name string) error {
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", name).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire lock %q", name)
	}
	return nil
}

func ReleaseNamedLock(tx *gorm.DB, name string) {
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", name).Scan(&_ok).Error
}
