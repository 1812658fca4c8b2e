package workflow

import (
	"fmt"

	"github.com/zedibooks/ledger_backend/utils"
	"gorm.io/gorm"
)

// AcquireTenantPostingLock serializes derived-state posting per tenant across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same *gorm.DB that will do the posting transaction.
func AcquireTenantPostingLock(tx *gorm.DB, userId string) error {
	lockName := fmt.Sprintf("posting:%s", userId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("posting lock for user_id=%s: %w", userId, utils.ErrPeriodLockContention)
	}
	return nil
}

func ReleaseTenantPostingLock(tx *gorm.DB, userId string) {
	lockName := fmt.Sprintf("posting:%s", userId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
