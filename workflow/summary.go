package workflow

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/zedibooks/ledger_backend/models"
	"github.com/zedibooks/ledger_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecomputeSummary rebuilds one tenant-month financial summary from the
// source tables. Every column is replaced, nothing is accumulated, so running
// it twice in a row is a no-op with a newer timestamp.
func RecomputeSummary(tx *gorm.DB, logger *logrus.Logger, userId string, year int, month int) (*models.FinancialSummary, error) {
	from, to := utils.MonthRange(year, time.Month(month))

	summary := models.FinancialSummary{UserId: userId, Year: year, Month: month}
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(models.FinancialSummary{UserId: userId, Year: year, Month: month}).
		FirstOrCreate(&summary).Error
	if err != nil {
		return nil, err
	}

	salesSource := models.IncomeSourceSales
	salesIncome, err := models.SumIncome(tx, userId, &salesSource, from, to)
	if err != nil {
		return nil, err
	}
	serviceSource := models.IncomeSourceServices
	serviceIncome, err := models.SumIncome(tx, userId, &serviceSource, from, to)
	if err != nil {
		return nil, err
	}
	otherSource := models.IncomeSourceOther
	otherIncome, err := models.SumIncome(tx, userId, &otherSource, from, to)
	if err != nil {
		return nil, err
	}

	// Only settled expenses count; unpaid and overdue ones are liabilities,
	// not spend.
	var totalExpenses decimal.NullDecimal
	err = tx.Model(&models.Expense{}).
		Select("SUM(amount)").
		Where("user_id = ? AND expense_date >= ? AND expense_date < ? AND payment_status = ?",
			userId, from, to, models.PaymentStatusPaid).
		Scan(&totalExpenses).Error
	if err != nil {
		return nil, err
	}

	// Asset valuation is a point-in-time figure, not a period sum.
	var assets []models.Asset
	err = tx.Where("user_id = ? AND status = ?", userId, models.AssetStatusActive).
		Find(&assets).Error
	if err != nil {
		return nil, err
	}
	totalAssets := decimal.Zero
	for i := range assets {
		totalAssets = totalAssets.Add(assets[i].EffectiveValue())
	}

	taxDue := decimal.Zero
	period, err := models.GetTaxPeriod(tx, userId, year, month)
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}
	if period != nil {
		taxDue = period.TaxDue
	}

	var saleCount, serviceCount, expenseCount int64
	err = tx.Model(&models.Sale{}).
		Where("user_id = ? AND sale_date >= ? AND sale_date < ? AND status = ?", userId, from, to, models.SaleStatusCompleted).
		Count(&saleCount).Error
	if err != nil {
		return nil, err
	}
	err = tx.Model(&models.ServiceRecord{}).
		Where("user_id = ? AND service_date >= ? AND service_date < ?", userId, from, to).
		Count(&serviceCount).Error
	if err != nil {
		return nil, err
	}
	err = tx.Model(&models.Expense{}).
		Where("user_id = ? AND expense_date >= ? AND expense_date < ?", userId, from, to).
		Count(&expenseCount).Error
	if err != nil {
		return nil, err
	}

	summary.SalesIncome = utils.Round2(salesIncome)
	summary.ServiceIncome = utils.Round2(serviceIncome)
	summary.OtherIncome = utils.Round2(otherIncome)
	summary.TotalExpenses = utils.Round2(totalExpenses.Decimal)
	summary.TotalAssets = utils.Round2(totalAssets)
	summary.TaxDue = taxDue
	summary.SaleCount = int(saleCount)
	summary.ServiceRecordCount = int(serviceCount)
	summary.ExpenseCount = int(expenseCount)
	summary.Derive()
	summary.LastCalculatedAt = time.Now().UTC()

	err = tx.Model(&models.FinancialSummary{}).
		Where("id = ?", summary.ID).
		Updates(map[string]interface{}{
			"sales_income":         summary.SalesIncome,
			"service_income":       summary.ServiceIncome,
			"other_income":         summary.OtherIncome,
			"total_income":         summary.TotalIncome,
			"total_expenses":       summary.TotalExpenses,
			"net_profit":           summary.NetProfit,
			"total_assets":         summary.TotalAssets,
			"tax_due":              summary.TaxDue,
			"sale_count":           summary.SaleCount,
			"service_record_count": summary.ServiceRecordCount,
			"expense_count":        summary.ExpenseCount,
			"last_calculated_at":   summary.LastCalculatedAt,
		}).Error
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"user_id":      userId,
		"year":         year,
		"month":        month,
		"total_income": summary.TotalIncome.String(),
		"net_profit":   summary.NetProfit.String(),
	}).Info("financial summary recomputed")
	return &summary, nil
}
