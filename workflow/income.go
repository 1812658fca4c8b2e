package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/zedibooks/ledger_backend/models"
	"github.com/zedibooks/ledger_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IncomeDelta is the net change a sync produced in the income ledger, keyed
// by the month the income lands in. The tax calculator consumes it directly.
type IncomeDelta struct {
	Year   int
	Month  int
	Amount decimal.Decimal
}

// SyncIncomeFromSale upserts the sale's income entry from its current status:
// revenue statuses mirror the total, non-revenue statuses remove the entry.
// The returned deltas carry the net ledger change, including the month move
// when a revenue sale's date changes.
func SyncIncomeFromSale(tx *gorm.DB, logger *logrus.Logger, sale *models.Sale) ([]IncomeDelta, error) {
	if sale.Status.IsRevenue() {
		return upsertIncomeEntry(tx, logger, sale.UserId, models.IncomeSourceSales, sale.ID,
			sale.TotalAmount, sale.SaleDate, fmt.Sprintf("Sale %s", sale.SaleNumber))
	}
	return removeIncomeEntry(tx, logger, sale.UserId, models.IncomeSourceSales, sale.ID)
}

// SyncIncomeFromServiceRecord mirrors a paid service record into the ledger;
// pending and cancelled records are removed.
func SyncIncomeFromServiceRecord(tx *gorm.DB, logger *logrus.Logger, record *models.ServiceRecord) ([]IncomeDelta, error) {
	if record.PaymentStatus.CountsAsIncome() {
		description := "Service income"
		if record.CustomerName != "" {
			description = fmt.Sprintf("Service for %s", record.CustomerName)
		}
		return upsertIncomeEntry(tx, logger, record.UserId, models.IncomeSourceServices, record.ID,
			record.Amount, record.ServiceDate, description)
	}
	return removeIncomeEntry(tx, logger, record.UserId, models.IncomeSourceServices, record.ID)
}

// RemoveIncomeForSale unwinds the ledger entry of a deleted sale.
func RemoveIncomeForSale(tx *gorm.DB, logger *logrus.Logger, userId string, saleId string) ([]IncomeDelta, error) {
	return removeIncomeEntry(tx, logger, userId, models.IncomeSourceSales, saleId)
}

// RemoveIncomeForServiceRecord unwinds the ledger entry of a deleted record.
func RemoveIncomeForServiceRecord(tx *gorm.DB, logger *logrus.Logger, userId string, recordId string) ([]IncomeDelta, error) {
	return removeIncomeEntry(tx, logger, userId, models.IncomeSourceServices, recordId)
}

// upsertIncomeEntry writes the entry for (user, source, sourceRef) to match
// the source row exactly and reports the net change per affected month. A
// date change across months yields two deltas: the old month loses the old
// amount, the new month gains the new one.
func upsertIncomeEntry(tx *gorm.DB, logger *logrus.Logger, userId string, source models.IncomeSource, sourceRef string, amount decimal.Decimal, incomeDate time.Time, description string) ([]IncomeDelta, error) {
	amount = utils.Round2(amount)

	var existing models.IncomeEntry
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND source = ? AND source_ref = ?", userId, source, sourceRef).
		First(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		entry := models.IncomeEntry{
			UserId:      userId,
			Source:      source,
			SourceRef:   sourceRef,
			Amount:      amount,
			IncomeDate:  incomeDate,
			Description: description,
		}
		if err := tx.Create(&entry).Error; err != nil {
			if isDuplicateKeyErr(err) {
				// Lost the insert race. The outbox retry re-reads the row.
				return nil, fmt.Errorf("income entry (%s, %s, %s): %w", userId, source, sourceRef, utils.ErrDuplicateDerivation)
			}
			return nil, err
		}
		logger.WithFields(logrus.Fields{
			"user_id":    userId,
			"source":     source,
			"source_ref": sourceRef,
			"amount":     amount.String(),
		}).Info("income entry created")
		return []IncomeDelta{{Year: incomeDate.Year(), Month: int(incomeDate.Month()), Amount: amount}}, nil
	}

	sameMonth := existing.IncomeDate.Year() == incomeDate.Year() && existing.IncomeDate.Month() == incomeDate.Month()
	if sameMonth && existing.Amount.Equal(amount) && existing.Description == description &&
		existing.IncomeDate.Equal(incomeDate) {
		return nil, nil
	}

	if err := tx.Model(&models.IncomeEntry{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"amount":      amount,
			"income_date": incomeDate,
			"description": description,
		}).Error; err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"user_id":    userId,
		"source":     source,
		"source_ref": sourceRef,
		"amount":     amount.String(),
	}).Info("income entry updated")

	if sameMonth {
		delta := amount.Sub(existing.Amount)
		if delta.IsZero() {
			return nil, nil
		}
		return []IncomeDelta{{Year: incomeDate.Year(), Month: int(incomeDate.Month()), Amount: delta}}, nil
	}
	return []IncomeDelta{
		{Year: existing.IncomeDate.Year(), Month: int(existing.IncomeDate.Month()), Amount: existing.Amount.Neg()},
		{Year: incomeDate.Year(), Month: int(incomeDate.Month()), Amount: amount},
	}, nil
}

// removeIncomeEntry deletes the entry if present. Removing an absent entry is
// a no-op so handler retries stay idempotent.
func removeIncomeEntry(tx *gorm.DB, logger *logrus.Logger, userId string, source models.IncomeSource, sourceRef string) ([]IncomeDelta, error) {
	var existing models.IncomeEntry
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND source = ? AND source_ref = ?", userId, source, sourceRef).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Delete(&models.IncomeEntry{}, existing.ID).Error; err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"user_id":    userId,
		"source":     source,
		"source_ref": sourceRef,
		"amount":     existing.Amount.String(),
	}).Info("income entry removed")
	return []IncomeDelta{{Year: existing.IncomeDate.Year(), Month: int(existing.IncomeDate.Month()), Amount: existing.Amount.Neg()}}, nil
}
