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

var hundred = decimal.NewFromInt(100)

// trackedMetrics is the set recomputed by the monthly job, in a stable order.
var trackedMetrics = []models.MetricType{
	models.MetricTypeRevenueGrowth,
	models.MetricTypeProfitMargin,
	models.MetricTypeAverageOrderValue,
	models.MetricTypeExpenseRatio,
	models.MetricTypeInventoryTurnover,
	models.MetricTypeServiceUtilization,
}

// ComputeMetricValue derives one metric for a tenant-month from the financial
// summary and inventory tables. Ratio metrics with a zero denominator come
// out as zero rather than failing.
func ComputeMetricValue(tx *gorm.DB, userId string, metricType models.MetricType, year int, month int) (decimal.Decimal, error) {
	summary, err := models.GetFinancialSummary(tx, userId, year, month)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			summary = &models.FinancialSummary{UserId: userId, Year: year, Month: month}
		} else {
			return decimal.Zero, err
		}
	}

	switch metricType {
	case models.MetricTypeRevenueGrowth:
		// Stored as the revenue level; the sample's change percent carries
		// the growth itself.
		return summary.TotalIncome, nil
	case models.MetricTypeProfitMargin:
		if summary.TotalIncome.IsZero() {
			return decimal.Zero, nil
		}
		return summary.NetProfit.Div(summary.TotalIncome).Mul(hundred), nil
	case models.MetricTypeAverageOrderValue:
		if summary.SaleCount == 0 {
			return decimal.Zero, nil
		}
		return summary.SalesIncome.Div(decimal.NewFromInt(int64(summary.SaleCount))), nil
	case models.MetricTypeExpenseRatio:
		if summary.TotalIncome.IsZero() {
			return decimal.Zero, nil
		}
		return summary.TotalExpenses.Div(summary.TotalIncome).Mul(hundred), nil
	case models.MetricTypeInventoryTurnover:
		return computeInventoryTurnover(tx, userId, year, month)
	case models.MetricTypeServiceUtilization:
		if summary.TotalIncome.IsZero() {
			return decimal.Zero, nil
		}
		return summary.ServiceIncome.Div(summary.TotalIncome).Mul(hundred), nil
	}
	return decimal.Zero, errors.New("unknown metric type")
}

// computeInventoryTurnover relates units sold in the month to current
// on-hand stock across all products.
func computeInventoryTurnover(tx *gorm.DB, userId string, year int, month int) (decimal.Decimal, error) {
	from, to := utils.MonthRange(year, time.Month(month))

	var sold decimal.NullDecimal
	err := tx.Model(&models.StockMovement{}).
		Select("SUM(ABS(quantity))").
		Where("user_id = ? AND kind = ? AND is_reversal = ? AND created_at >= ? AND created_at < ?",
			userId, models.MovementKindSale, false, from, to).
		Scan(&sold).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sold.Valid || sold.Decimal.IsZero() {
		return decimal.Zero, nil
	}

	var onHand decimal.NullDecimal
	err = tx.Model(&models.Inventory{}).
		Select("SUM(quantity_in_stock)").
		Where("user_id = ?", userId).
		Scan(&onHand).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !onHand.Valid || onHand.Decimal.Sign() <= 0 {
		return decimal.Zero, nil
	}
	return sold.Decimal.Div(onHand.Decimal), nil
}

// UpdateMetric recomputes one metric sample for a tenant-month, anchoring the
// trend against the previous month's stored sample.
func UpdateMetric(tx *gorm.DB, logger *logrus.Logger, userId string, metricType models.MetricType, year int, month int) (*models.MetricSample, error) {
	value, err := ComputeMetricValue(tx, userId, metricType, year, month)
	if err != nil {
		return nil, err
	}
	value = value.Round(4)

	var previous *decimal.Decimal
	prevYear, prevMonth := utils.PreviousMonth(year, time.Month(month))
	prevSample, err := models.GetMetricSample(tx, userId, metricType, prevYear, int(prevMonth))
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}
	if prevSample != nil {
		previous = &prevSample.Value
	}

	trend, changePercent := models.ComputeTrend(value, previous)
	improvement := models.Improvement(metricType, trend)

	sample := models.MetricSample{UserId: userId, MetricType: metricType, Year: year, Month: month, Value: value, Trend: trend}
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(models.MetricSample{UserId: userId, MetricType: metricType, Year: year, Month: month}).
		FirstOrCreate(&sample).Error
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sample.Value = value
	sample.PreviousValue = previous
	sample.ChangePercent = changePercent
	sample.Trend = trend
	sample.IsImprovement = improvement
	sample.CalculatedAt = now

	err = tx.Model(&models.MetricSample{}).
		Where("id = ?", sample.ID).
		Updates(map[string]interface{}{
			"value":          sample.Value,
			"previous_value": sample.PreviousValue,
			"change_percent": sample.ChangePercent,
			"trend":          sample.Trend,
			"is_improvement": sample.IsImprovement,
			"calculated_at":  now,
		}).Error
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"user_id": userId,
		"metric":  metricType,
		"year":    year,
		"month":   month,
		"value":   value.String(),
		"trend":   trend,
	}).Info("metric sample updated")
	return &sample, nil
}

// UpdateMetricsForMonth recomputes every tracked metric for the tenant-month.
func UpdateMetricsForMonth(tx *gorm.DB, logger *logrus.Logger, userId string, year int, month int) error {
	for _, metricType := range trackedMetrics {
		if _, err := UpdateMetric(tx, logger, userId, metricType, year, month); err != nil {
			return err
		}
	}
	return nil
}
