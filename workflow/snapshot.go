package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/zedibooks/ledger_backend/config"
	"github.com/zedibooks/ledger_backend/models"
	"github.com/zedibooks/ledger_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// snapshotInvalidationWindow is the trailing range behind a primary-event
// write inside which cached reports can no longer be trusted.
const snapshotInvalidationWindow = 30 * 24 * time.Hour

const snapshotRedisTTL = 6 * time.Hour

func snapshotRedisKey(userId string, reportType models.ReportType, periodStart time.Time) string {
	return fmt.Sprintf("snapshot:%s:%s:%s", userId, reportType, periodStart.UTC().Format("2006-01-02"))
}

// SnapshotPayload is what callers get back from the cache: the headline
// figures plus the serialized report body.
type SnapshotPayload struct {
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	NetProfit     decimal.Decimal `json:"net_profit"`
	Payload       []byte          `json:"payload"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// GetSnapshot returns the cached report for (user, type, period) when it is
// still fresh. Redis fronts the table; a stale or missing row is a miss and
// the caller recomputes and calls PutSnapshot.
func GetSnapshot(db *gorm.DB, userId string, reportType models.ReportType, periodStart time.Time) (*SnapshotPayload, bool, error) {
	key := snapshotRedisKey(userId, reportType, periodStart)
	var cached SnapshotPayload
	if hit, err := config.GetRedisObject(key, &cached); err == nil && hit {
		// The redis copy outlives the row's fresh flag when an invalidation
		// deletes keys before its transaction commits, so the flag is the
		// authority and the hit is only served while it still holds.
		fresh, err := snapshotIsFresh(db, userId, reportType, periodStart)
		if err != nil {
			return nil, false, err
		}
		if fresh {
			return &cached, true, nil
		}
		_ = config.RemoveRedisKey(key)
	}

	snapshot, err := models.GetReportSnapshot(db, userId, reportType, periodStart)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !snapshot.IsFresh {
		return nil, false, nil
	}

	payload := SnapshotPayload{
		TotalRevenue:  snapshot.TotalRevenue,
		TotalExpenses: snapshot.TotalExpenses,
		NetProfit:     snapshot.NetProfit,
		Payload:       snapshot.Payload,
		GeneratedAt:   snapshot.GeneratedAt,
	}
	_ = config.SetRedisObject(key, &payload, snapshotRedisTTL)
	return &payload, true, nil
}

// snapshotIsFresh reads just the fresh flag for one snapshot row. No row
// means not fresh.
func snapshotIsFresh(db *gorm.DB, userId string, reportType models.ReportType, periodStart time.Time) (bool, error) {
	snapshot, err := models.GetReportSnapshot(db, userId, reportType, periodStart)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return snapshot.IsFresh, nil
}

// PutSnapshot stores a freshly computed report, replacing any prior row for
// the same (user, type, period) and warming the redis copy.
func PutSnapshot(tx *gorm.DB, logger *logrus.Logger, userId string, reportType models.ReportType, periodStart, periodEnd time.Time, payload SnapshotPayload) (*models.ReportSnapshot, error) {
	if !periodEnd.After(periodStart) {
		return nil, errors.New("snapshot period end must be after period start")
	}

	snapshot := models.ReportSnapshot{
		UserId:      userId,
		ReportType:  reportType,
		PeriodStart: periodStart,
	}
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(models.ReportSnapshot{UserId: userId, ReportType: reportType, PeriodStart: periodStart}).
		FirstOrCreate(&snapshot).Error
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	snapshot.PeriodEnd = periodEnd
	snapshot.TotalRevenue = utils.Round2(payload.TotalRevenue)
	snapshot.TotalExpenses = utils.Round2(payload.TotalExpenses)
	snapshot.NetProfit = utils.Round2(payload.NetProfit)
	snapshot.Payload = payload.Payload
	snapshot.IsFresh = true
	snapshot.GeneratedAt = now

	err = tx.Model(&models.ReportSnapshot{}).
		Where("id = ?", snapshot.ID).
		Updates(map[string]interface{}{
			"period_end":     snapshot.PeriodEnd,
			"total_revenue":  snapshot.TotalRevenue,
			"total_expenses": snapshot.TotalExpenses,
			"net_profit":     snapshot.NetProfit,
			"payload":        snapshot.Payload,
			"is_fresh":       true,
			"generated_at":   now,
		}).Error
	if err != nil {
		return nil, err
	}

	cached := SnapshotPayload{
		TotalRevenue:  snapshot.TotalRevenue,
		TotalExpenses: snapshot.TotalExpenses,
		NetProfit:     snapshot.NetProfit,
		Payload:       snapshot.Payload,
		GeneratedAt:   now,
	}
	_ = config.SetRedisObject(snapshotRedisKey(userId, reportType, periodStart), &cached, snapshotRedisTTL)

	logger.WithFields(logrus.Fields{
		"user_id":      userId,
		"report_type":  reportType,
		"period_start": periodStart.Format("2006-01-02"),
	}).Info("report snapshot stored")
	return &snapshot, nil
}

// InvalidateRecentSnapshots clears the fresh flag on every snapshot whose
// period end falls within the trailing window behind sinceDate, then drops
// the redis copies. Called by the dispatcher after every primary-event write.
func InvalidateRecentSnapshots(tx *gorm.DB, logger *logrus.Logger, userId string, sinceDate time.Time) error {
	windowStart := sinceDate.Add(-snapshotInvalidationWindow)

	var stale []models.ReportSnapshot
	err := tx.Where("user_id = ? AND is_fresh = ? AND period_end >= ?", userId, true, windowStart).
		Find(&stale).Error
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	ids := make([]int, 0, len(stale))
	for _, s := range stale {
		ids = append(ids, s.ID)
	}
	err = tx.Model(&models.ReportSnapshot{}).
		Where("id IN ?", ids).
		Update("is_fresh", false).Error
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(stale))
	for _, s := range stale {
		keys = append(keys, snapshotRedisKey(userId, s.ReportType, s.PeriodStart))
	}
	_ = config.RemoveRedisKey(keys...)

	logger.WithFields(logrus.Fields{
		"user_id": userId,
		"count":   len(stale),
		"since":   sinceDate.Format("2006-01-02"),
	}).Info("report snapshots invalidated")
	return nil
}
