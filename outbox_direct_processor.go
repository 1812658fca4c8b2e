package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zedibooks/ledger_backend/models"
	"github.com/zedibooks/ledger_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxDirectProcessor processes unhandled outbox records without Pub/Sub.
// This is intended for local/dev environments and single-binary deployments
// where Pub/Sub is not configured.
type OutboxDirectProcessor struct {
	DB          *gorm.DB
	Logger      *logrus.Logger
	WorkerID    string
	BatchSize   int
	Interval    time.Duration
	LockTTL     time.Duration
	MaxAttempts int
}

func NewOutboxDirectProcessor(db *gorm.DB, logger *logrus.Logger) *OutboxDirectProcessor {
	return &OutboxDirectProcessor{
		DB:          db,
		Logger:      logger,
		WorkerID:    "direct-" + time.Now().Format("20060102-150405.000"),
		BatchSize:   50,
		Interval:    2 * time.Second,
		LockTTL:     30 * time.Second,
		MaxAttempts: 5,
	}
}

func (p *OutboxDirectProcessor) Run(ctx context.Context) {
	if p == nil || p.DB == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.processOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

func (p *OutboxDirectProcessor) processOnce(ctx context.Context) {
	now := time.Now().UTC()
	staleBefore := now.Add(-p.LockTTL)

	var claimed []models.EventRecord
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("is_processed = 0").
			Where("process_status <> ?", models.OutboxProcessStatusDead).
			Where("(locked_at IS NULL OR locked_at <= ?)", staleBefore).
			Order("id ASC").
			Limit(p.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		for i := range claimed {
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &p.WorkerID
			if err := tx.Model(&models.EventRecord{}).
				Where("id = ?", claimed[i].ID).
				Updates(map[string]interface{}{
					"locked_at": claimed[i].LockedAt,
					"locked_by": claimed[i].LockedBy,
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
		msg := models.ConvertToEventMessage(rec)
		procCtx := utils.SetUserIdInContext(ctx, rec.UserId)
		procCtx = utils.SetActorNameInContext(procCtx, "System")
		procCtx = utils.SetCorrelationIdInContext(procCtx, rec.CorrelationId)

		if err := ProcessMessage(procCtx, p.Logger, msg); err != nil {
			errMsg := err.Error()
			attempts := rec.ProcessAttempts + 1
			update := map[string]interface{}{
				"process_attempts":   attempts,
				"last_process_error": &errMsg,
				"locked_at":          nil,
				"locked_by":          nil,
			}
			// A record that keeps failing is parked instead of being
			// re-claimed forever; operators inspect last_process_error.
			dead := attempts >= p.MaxAttempts
			if dead {
				update["process_status"] = models.OutboxProcessStatusDead
			}
			_ = p.DB.WithContext(ctx).Model(&models.EventRecord{}).
				Where("id = ?", rec.ID).
				Updates(update).Error
			if p.Logger != nil {
				entry := p.Logger.WithFields(logrus.Fields{
					"field":          "OutboxDirectProcessor",
					"user_id":        rec.UserId,
					"reference_type": rec.ReferenceType,
					"reference_id":   rec.ReferenceId,
					"record_id":      rec.ID,
					"attempts":       attempts,
				})
				if dead {
					entry.Error("direct processing gave up, record parked: " + errMsg)
				} else {
					entry.Error("direct processing failed: " + errMsg)
				}
			}
			continue
		}

		_ = p.DB.WithContext(ctx).Model(&models.EventRecord{}).
			Where("id = ?", rec.ID).
			Updates(map[string]interface{}{
				"locked_at": nil,
				"locked_by": nil,
			}).Error
	}
}
