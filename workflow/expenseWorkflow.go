package workflow

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
	"github.com/zedibooks/ledger_backend/config"
	"github.com/zedibooks/ledger_backend/models"
	"gorm.io/gorm"
)

// Expenses never touch income or tax; their derived state is the monthly
// summary and any cached report covering the expense date.
func ProcessExpenseWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.EventMessage) error {
	var expense models.Expense
	if msg.Action == string(models.EventActionDelete) {
		if err := json.Unmarshal(msg.OldObj, &expense); err != nil {
			config.LogError(logger, "ExpenseWorkflow.go", "ProcessExpenseWorkflow > Delete", "Unmarshal msg.OldObj", msg.OldObj, err)
			return err
		}
	} else {
		if err := json.Unmarshal(msg.NewObj, &expense); err != nil {
			config.LogError(logger, "ExpenseWorkflow.go", "ProcessExpenseWorkflow", "Unmarshal msg.NewObj", msg.NewObj, err)
			return err
		}
	}

	year, month := expense.ExpenseDate.Year(), int(expense.ExpenseDate.Month())
	if _, err := RecomputeSummary(tx, logger, msg.UserId, year, month); err != nil {
		config.LogError(logger, "ExpenseWorkflow.go", "ProcessExpenseWorkflow", "RecomputeSummary", expense.ID, err)
		return err
	}

	// An update can move the expense across months; refresh the old one too.
	if msg.Action == string(models.EventActionUpdate) {
		var oldExpense models.Expense
		if err := json.Unmarshal(msg.OldObj, &oldExpense); err != nil {
			config.LogError(logger, "ExpenseWorkflow.go", "ProcessExpenseWorkflow > Update", "Unmarshal msg.OldObj", msg.OldObj, err)
			return err
		}
		oldYear, oldMonth := oldExpense.ExpenseDate.Year(), int(oldExpense.ExpenseDate.Month())
		if oldYear != year || oldMonth != month {
			if _, err := RecomputeSummary(tx, logger, msg.UserId, oldYear, oldMonth); err != nil {
				config.LogError(logger, "ExpenseWorkflow.go", "ProcessExpenseWorkflow > Update", "RecomputeSummary Old", oldExpense.ID, err)
				return err
			}
		}
	}

	if err := InvalidateRecentSnapshots(tx, logger, msg.UserId, expense.ExpenseDate); err != nil {
		config.LogError(logger, "ExpenseWorkflow.go", "ProcessExpenseWorkflow", "InvalidateRecentSnapshots", expense.ID, err)
		return err
	}

	return markEventProcessed(tx, msg.ID)
}
