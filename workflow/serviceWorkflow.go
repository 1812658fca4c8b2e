package workflow

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
	"github.com/zedibooks/ledger_backend/config"
	"github.com/zedibooks/ledger_backend/models"
	"gorm.io/gorm"
)

func ProcessServiceRecordWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.EventMessage) error {
	if msg.Action == string(models.EventActionCreate) || msg.Action == string(models.EventActionUpdate) {

		var record models.ServiceRecord
		err := json.Unmarshal(msg.NewObj, &record)
		if err != nil {
			config.LogError(logger, "ServiceWorkflow.go", "ProcessServiceRecordWorkflow", "Unmarshal msg.NewObj", msg.NewObj, err)
			return err
		}
		deltas, err := SyncIncomeFromServiceRecord(tx, logger, &record)
		if err != nil {
			config.LogError(logger, "ServiceWorkflow.go", "ProcessServiceRecordWorkflow", "SyncIncome", record.ID, err)
			return err
		}
		if err := applyDerivedState(tx, logger, msg.UserId, deltas, record.ServiceDate); err != nil {
			return err
		}

	} else if msg.Action == string(models.EventActionDelete) {

		var oldRecord models.ServiceRecord
		err := json.Unmarshal(msg.OldObj, &oldRecord)
		if err != nil {
			config.LogError(logger, "ServiceWorkflow.go", "ProcessServiceRecordWorkflow > Delete", "Unmarshal msg.OldObj", msg.OldObj, err)
			return err
		}
		deltas, err := RemoveIncomeForServiceRecord(tx, logger, msg.UserId, oldRecord.ID)
		if err != nil {
			config.LogError(logger, "ServiceWorkflow.go", "ProcessServiceRecordWorkflow > Delete", "RemoveIncome", oldRecord.ID, err)
			return err
		}
		if err := applyDerivedState(tx, logger, msg.UserId, deltas, oldRecord.ServiceDate); err != nil {
			return err
		}
	}

	return markEventProcessed(tx, msg.ID)
}
