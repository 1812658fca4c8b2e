package workflow

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
	"github.com/zedibooks/ledger_backend/config"
	"github.com/zedibooks/ledger_backend/models"
	"gorm.io/gorm"
)

// Asset changes only move book value, which feeds the summary's asset column
// and cached overview reports.
func ProcessAssetWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.EventMessage) error {
	var asset models.Asset
	if msg.Action == string(models.EventActionDelete) {
		if err := json.Unmarshal(msg.OldObj, &asset); err != nil {
			config.LogError(logger, "AssetWorkflow.go", "ProcessAssetWorkflow > Delete", "Unmarshal msg.OldObj", msg.OldObj, err)
			return err
		}
	} else {
		if err := json.Unmarshal(msg.NewObj, &asset); err != nil {
			config.LogError(logger, "AssetWorkflow.go", "ProcessAssetWorkflow", "Unmarshal msg.NewObj", msg.NewObj, err)
			return err
		}
	}

	eventDate := msg.EventDateTime
	year, month := eventDate.Year(), int(eventDate.Month())
	if _, err := RecomputeSummary(tx, logger, msg.UserId, year, month); err != nil {
		config.LogError(logger, "AssetWorkflow.go", "ProcessAssetWorkflow", "RecomputeSummary", asset.ID, err)
		return err
	}
	if err := InvalidateRecentSnapshots(tx, logger, msg.UserId, eventDate); err != nil {
		config.LogError(logger, "AssetWorkflow.go", "ProcessAssetWorkflow", "InvalidateRecentSnapshots", asset.ID, err)
		return err
	}

	return markEventProcessed(tx, msg.ID)
}
