package models

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireBatchPostingLock serializes quantity mutation per batch across
// instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB transaction that will do the mutation.
func AcquireBatchPostingLock(tx *gorm.DB, batchId int) error {
	lockName := fmt.Sprintf("batch_posting:%d", batchId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire posting lock for batch_id=%d", batchId)
	}
	return nil
}

func ReleaseBatchPostingLock(tx *gorm.DB, batchId int) {
	lockName := fmt.Sprintf("batch_posting:%d", batchId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
