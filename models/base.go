package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/zedibooks/ledger_backend/utils"
	"gorm.io/gorm"
)

// PublishEvent appends an outbox row for a committed primary-event transition.
// Must run on the same transaction as the primary write so that the event and
// the write commit or roll back together.
func PublishEvent(ctx context.Context, tx *gorm.DB, userId string, eventDateTime time.Time, refId string, refType EventReferenceType, obj interface{}, oldObj interface{}, action EventAction) error {
	var objInByte []byte
	var oldObjInByte []byte
	var err error

	if action == EventActionCreate || action == EventActionUpdate {
		objInByte, err = json.Marshal(obj)
		if err != nil {
			return err
		}
	}
	if action == EventActionUpdate || action == EventActionDelete {
		oldObjInByte, err = json.Marshal(oldObj)
		if err != nil {
			return err
		}
	}

	record := EventRecord{
		UserId:        userId,
		EventDateTime: eventDateTime,
		ReferenceId:   refId,
		ReferenceType: refType,
		Action:        action,
		NewObj:        objInByte,
		OldObj:        oldObjInByte,
		IsProcessed:   false,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
