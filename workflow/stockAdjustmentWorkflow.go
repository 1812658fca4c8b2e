package workflow

import (
	"github.com/sirupsen/logrus"
	"github.com/zedibooks/ledger_backend/config"
	"github.com/zedibooks/ledger_backend/models"
	"gorm.io/gorm"
)

// ProcessStockAdjustmentWorkflow runs after a manual stock change commits.
// The movement itself was applied inside the adjustment's own transaction;
// here income and tax are untouched, only report caches covering the
// adjustment date go stale.
func ProcessStockAdjustmentWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.EventMessage) error {
	if msg.Action != string(models.EventActionCreate) {
		return markEventProcessed(tx, msg.ID)
	}

	if err := InvalidateRecentSnapshots(tx, logger, msg.UserId, msg.EventDateTime); err != nil {
		config.LogError(logger, "StockAdjustmentWorkflow.go", "ProcessStockAdjustmentWorkflow", "InvalidateRecentSnapshots", msg.ReferenceId, err)
		return err
	}

	return markEventProcessed(tx, msg.ID)
}
