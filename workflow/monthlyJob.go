package workflow

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zedibooks/ledger_backend/config"
	"github.com/zedibooks/ledger_backend/models"
	"github.com/zedibooks/ledger_backend/utils"
	"gorm.io/gorm"
)

// CalculateMonthlyAggregates re-runs the summary and metric recomputation for
// every active tenant for the given month. The redis lock keeps overlapping
// instances from doing the same batch twice; skipping when locked is safe
// because the recompute is idempotent.
func CalculateMonthlyAggregates(ctx context.Context, db *gorm.DB, logger *logrus.Logger, year int, month int) error {
	release, err := utils.AcquireOwnerLock(ctx, "all", "batch", "monthlyJob.go", "CalculateMonthlyAggregates")
	if err != nil {
		logger.WithFields(logrus.Fields{
			"year":  year,
			"month": month,
		}).Warn("monthly aggregate batch already running, skipping")
		return nil
	}
	defer release()

	var users []models.User
	err = db.WithContext(ctx).Where("is_active = ?", true).Find(&users).Error
	if err != nil {
		config.LogError(logger, "monthlyJob.go", "CalculateMonthlyAggregates", "ListUsers", nil, err)
		return err
	}

	start := time.Now()
	var failed int
	for _, user := range users {
		userId := user.ID
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := AcquireTenantPostingLock(tx.WithContext(ctx), userId); err != nil {
				return err
			}
			defer ReleaseTenantPostingLock(tx.WithContext(ctx), userId)

			if _, err := RebuildTaxPeriod(tx.WithContext(ctx), logger, userId, year, month); err != nil {
				return err
			}
			if _, err := RecomputeSummary(tx.WithContext(ctx), logger, userId, year, month); err != nil {
				return err
			}
			return UpdateMetricsForMonth(tx.WithContext(ctx), logger, userId, year, month)
		})
		if err != nil {
			// One tenant failing must not starve the rest of the batch.
			failed++
			config.LogError(logger, "monthlyJob.go", "CalculateMonthlyAggregates", "TenantRecompute", userId, err)
		}
	}

	logger.WithFields(logrus.Fields{
		"year":     year,
		"month":    month,
		"tenants":  len(users),
		"failed":   failed,
		"duration": time.Since(start).String(),
	}).Info("monthly aggregate batch finished")
	return nil
}

// RunMonthlyAggregateLoop wakes periodically and refreshes the previous and
// current month. Meant to run once per worker instance; the redis lock in the
// batch dedupes across instances.
func RunMonthlyAggregateLoop(ctx context.Context, db *gorm.DB, logger *logrus.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UTC()
			prevYear, prevMonth := utils.PreviousMonth(now.Year(), now.Month())
			if err := CalculateMonthlyAggregates(ctx, db, logger, prevYear, int(prevMonth)); err != nil {
				config.LogError(logger, "monthlyJob.go", "RunMonthlyAggregateLoop", "PreviousMonth", nil, err)
			}
			if err := CalculateMonthlyAggregates(ctx, db, logger, now.Year(), int(now.Month())); err != nil {
				config.LogError(logger, "monthlyJob.go", "RunMonthlyAggregateLoop", "CurrentMonth", nil, err)
			}
		}
	}
}
