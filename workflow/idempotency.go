package workflow

import (
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/zedibooks/ledger_backend/models"
	"gorm.io/gorm"
)

var ErrIdempotencyInProgress = errors.New("idempotency in progress")

// idempotencyStaleAfter is how long a STARTED row can sit untouched before a
// worker may assume its owner crashed and reclaim it.
const idempotencyStaleAfter = 5 * time.Minute

// idempotencyAction is the decision taken on a duplicate-key conflict.
type idempotencyAction int

const (
	idempotencySkip idempotencyAction = iota
	idempotencyRetryLater
	idempotencyReclaim
)

// resolveIdempotencyConflict decides what a worker does when its STARTED
// insert collided with an existing row: skip a SUCCEEDED message, back off
// from a live STARTED one, reclaim a stale STARTED or FAILED one.
func resolveIdempotencyConflict(existing *models.IdempotencyKey, now time.Time) idempotencyAction {
	switch existing.Status {
	case models.IdempotencyStatusSucceeded:
		return idempotencySkip
	case models.IdempotencyStatusStarted:
		if now.Sub(existing.UpdatedAt) < idempotencyStaleAfter {
			return idempotencyRetryLater
		}
		return idempotencyReclaim
	default:
		return idempotencyReclaim
	}
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// BeginIdempotency inserts STARTED. If SUCCEEDED exists, returns (true, nil) meaning "skip safely".
func BeginIdempotency(tx *gorm.DB, userId, handlerName, messageId string) (skip bool, err error) {
	key := models.IdempotencyKey{
		UserId:      userId,
		HandlerName: handlerName,
		MessageId:   messageId,
		Status:      models.IdempotencyStatusStarted,
	}
	if err := tx.Create(&key).Error; err == nil {
		return false, nil
	} else if !isDuplicateKeyErr(err) {
		return false, err
	}

	var existing models.IdempotencyKey
	if err := tx.Where("user_id = ? AND handler_name = ? AND message_id = ?", userId, handlerName, messageId).
		First(&existing).Error; err != nil {
		return false, err
	}

	switch resolveIdempotencyConflict(&existing, time.Now().UTC()) {
	case idempotencySkip:
		return true, nil
	case idempotencyRetryLater:
		return false, ErrIdempotencyInProgress
	default:
		return false, tx.Model(&models.IdempotencyKey{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{"status": models.IdempotencyStatusStarted, "last_error": nil}).Error
	}
}

func MarkIdempotencySucceeded(tx *gorm.DB, userId, handlerName, messageId string) error {
	return tx.Model(&models.IdempotencyKey{}).
		Where("user_id = ? AND handler_name = ? AND message_id = ?", userId, handlerName, messageId).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusSucceeded, "last_error": nil}).Error
}

func MarkIdempotencyFailed(tx *gorm.DB, userId, handlerName, messageId string, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return tx.Model(&models.IdempotencyKey{}).
		Where("user_id = ? AND handler_name = ? AND message_id = ?", userId, handlerName, messageId).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusFailed, "last_error": &msg}).Error
}
