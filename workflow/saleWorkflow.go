package workflow

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zedibooks/ledger_backend/config"
	"github.com/zedibooks/ledger_backend/models"
	"gorm.io/gorm"
)

// ProcessSaleWorkflow folds a committed sale change into derived state.
// Stock already moved inside the sale's own transaction; this handler only
// owns income, tax, summaries, and cache invalidation.
func ProcessSaleWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.EventMessage) error {
	if msg.Action == string(models.EventActionCreate) {

		var sale models.Sale
		err := json.Unmarshal(msg.NewObj, &sale)
		if err != nil {
			config.LogError(logger, "SaleWorkflow.go", "ProcessSaleWorkflow > Create", "Unmarshal msg.NewObj", msg.NewObj, err)
			return err
		}
		deltas, err := SyncIncomeFromSale(tx, logger, &sale)
		if err != nil {
			config.LogError(logger, "SaleWorkflow.go", "ProcessSaleWorkflow > Create", "SyncIncome", sale.ID, err)
			return err
		}
		if err := applyDerivedState(tx, logger, msg.UserId, deltas, sale.SaleDate); err != nil {
			return err
		}

	} else if msg.Action == string(models.EventActionUpdate) {

		var sale models.Sale
		err := json.Unmarshal(msg.NewObj, &sale)
		if err != nil {
			config.LogError(logger, "SaleWorkflow.go", "ProcessSaleWorkflow > Update", "Unmarshal msg.NewObj", msg.NewObj, err)
			return err
		}
		deltas, err := SyncIncomeFromSale(tx, logger, &sale)
		if err != nil {
			config.LogError(logger, "SaleWorkflow.go", "ProcessSaleWorkflow > Update", "SyncIncome", sale.ID, err)
			return err
		}
		if err := applyDerivedState(tx, logger, msg.UserId, deltas, sale.SaleDate); err != nil {
			return err
		}

	} else if msg.Action == string(models.EventActionDelete) {

		var oldSale models.Sale
		err := json.Unmarshal(msg.OldObj, &oldSale)
		if err != nil {
			config.LogError(logger, "SaleWorkflow.go", "ProcessSaleWorkflow > Delete", "Unmarshal msg.OldObj", msg.OldObj, err)
			return err
		}
		deltas, err := RemoveIncomeForSale(tx, logger, msg.UserId, oldSale.ID)
		if err != nil {
			config.LogError(logger, "SaleWorkflow.go", "ProcessSaleWorkflow > Delete", "RemoveIncome", oldSale.ID, err)
			return err
		}
		if err := applyDerivedState(tx, logger, msg.UserId, deltas, oldSale.SaleDate); err != nil {
			return err
		}
	}

	return markEventProcessed(tx, msg.ID)
}

// applyDerivedState runs the downstream chain shared by every handler: fold
// income deltas into tax periods, recompute the touched summaries, and
// invalidate cached reports behind the event date.
func applyDerivedState(tx *gorm.DB, logger *logrus.Logger, userId string, deltas []IncomeDelta, eventDate time.Time) error {
	if err := ApplyRevenueDeltas(tx, logger, userId, deltas); err != nil {
		config.LogError(logger, "SaleWorkflow.go", "applyDerivedState", "ApplyRevenueDeltas", deltas, err)
		return err
	}
	seen := make(map[[2]int]bool)
	for _, delta := range deltas {
		key := [2]int{delta.Year, delta.Month}
		if seen[key] {
			continue
		}
		seen[key] = true
		if _, err := RecomputeSummary(tx, logger, userId, delta.Year, delta.Month); err != nil {
			config.LogError(logger, "SaleWorkflow.go", "applyDerivedState", "RecomputeSummary", key, err)
			return err
		}
	}
	if err := InvalidateRecentSnapshots(tx, logger, userId, eventDate); err != nil {
		config.LogError(logger, "SaleWorkflow.go", "applyDerivedState", "InvalidateRecentSnapshots", eventDate, err)
		return err
	}
	return nil
}

func markEventProcessed(tx *gorm.DB, msgId int) error {
	now := time.Now().UTC()
	return tx.Model(&models.EventRecord{}).
		Where("id = ?", msgId).
		Updates(map[string]interface{}{"is_processed": true, "processed_at": &now}).Error
}
