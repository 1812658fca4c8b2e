package workflow

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/zedibooks/ledger_backend/models"
	"github.com/zedibooks/ledger_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApplyRevenueDelta folds one income-ledger change into the month's tax
// period and recomputes the derived tax columns. Turnover clamps at zero so
// late reversals cannot drive it negative. The row is locked for the whole
// read-modify-write.
func ApplyRevenueDelta(tx *gorm.DB, logger *logrus.Logger, userId string, delta IncomeDelta) (*models.TaxPeriod, error) {
	if delta.Amount.IsZero() {
		return nil, nil
	}

	period := models.TaxPeriod{
		UserId: userId,
		Year:   delta.Year,
		Month:  delta.Month,
	}
	// New rows freeze the current threshold and rate; existing rows keep
	// whatever they were assessed under.
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(models.TaxPeriod{UserId: userId, Year: delta.Year, Month: delta.Month}).
		Attrs(models.TaxPeriod{TaxFreeThreshold: models.DefaultTaxThreshold, TaxRate: models.DefaultTaxRate}).
		FirstOrCreate(&period).Error
	if err != nil {
		return nil, err
	}

	period.Turnover = period.Turnover.Add(delta.Amount)
	if period.Turnover.Sign() < 0 {
		logger.WithFields(logrus.Fields{
			"user_id":  userId,
			"year":     delta.Year,
			"month":    delta.Month,
			"turnover": period.Turnover.String(),
		}).Warn("turnover delta would go negative, clamping to zero")
		period.Turnover = decimal.Zero
	}
	period.Recalculate()

	err = tx.Model(&models.TaxPeriod{}).
		Where("id = ?", period.ID).
		Updates(map[string]interface{}{
			"turnover":       period.Turnover,
			"taxable_amount": period.TaxableAmount,
			"tax_due":        period.TaxDue,
		}).Error
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"user_id":  userId,
		"year":     delta.Year,
		"month":    delta.Month,
		"turnover": period.Turnover.String(),
		"tax_due":  period.TaxDue.String(),
	}).Info("tax period updated")
	return &period, nil
}

// ApplyRevenueDeltas folds a batch of deltas, one period at a time.
func ApplyRevenueDeltas(tx *gorm.DB, logger *logrus.Logger, userId string, deltas []IncomeDelta) error {
	for _, delta := range deltas {
		if _, err := ApplyRevenueDelta(tx, logger, userId, delta); err != nil {
			return err
		}
	}
	return nil
}

// RebuildTaxPeriod recomputes one period's turnover from the income ledger
// instead of folding deltas. Used by the backfill command.
func RebuildTaxPeriod(tx *gorm.DB, logger *logrus.Logger, userId string, year int, month int) (*models.TaxPeriod, error) {
	period := models.TaxPeriod{UserId: userId, Year: year, Month: month}
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(models.TaxPeriod{UserId: userId, Year: year, Month: month}).
		Attrs(models.TaxPeriod{TaxFreeThreshold: models.DefaultTaxThreshold, TaxRate: models.DefaultTaxRate}).
		FirstOrCreate(&period).Error
	if err != nil {
		return nil, err
	}

	from, to := utils.MonthRange(year, time.Month(month))
	turnover, err := models.SumIncome(tx, userId, nil, from, to)
	if err != nil {
		return nil, err
	}
	period.Turnover = turnover
	period.Recalculate()

	err = tx.Model(&models.TaxPeriod{}).
		Where("id = ?", period.ID).
		Updates(map[string]interface{}{
			"turnover":       period.Turnover,
			"taxable_amount": period.TaxableAmount,
			"tax_due":        period.TaxDue,
		}).Error
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"user_id": userId,
		"year":    year,
		"month":   month,
		"tax_due": period.TaxDue.String(),
	}).Info("tax period rebuilt from income ledger")
	return &period, nil
}
