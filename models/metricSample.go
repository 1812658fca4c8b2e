package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zedibooks/ledger_backend/config"
	"github.com/zedibooks/ledger_backend/utils"
	"gorm.io/gorm"
)

// MetricSample stores one tenant-month observation of a business metric with
// its period-over-period movement against the previous month.
type MetricSample struct {
	ID         int        `gorm:"primary_key" json:"id"`
	UserId     string     `gorm:"size:64;not null;uniqueIndex:uniq_metric_sample,priority:1" json:"user_id"`
	MetricType MetricType `gorm:"size:30;not null;uniqueIndex:uniq_metric_sample,priority:2" json:"metric_type"`
	Year       int        `gorm:"not null;uniqueIndex:uniq_metric_sample,priority:3" json:"year"`
	Month      int        `gorm:"not null;uniqueIndex:uniq_metric_sample,priority:4" json:"month"`

	Value         decimal.Decimal  `gorm:"type:decimal(14,4);not null" json:"value"`
	PreviousValue *decimal.Decimal `gorm:"type:decimal(14,4)" json:"previous_value"`
	ChangePercent *decimal.Decimal `gorm:"type:decimal(14,4)" json:"change_percent"`
	Trend         TrendDirection   `gorm:"size:10;not null;default:'stable'" json:"trend"`
	IsImprovement *bool            `json:"is_improvement"`

	CalculatedAt time.Time `gorm:"not null" json:"calculated_at"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// trendDeadBand absorbs rounding noise: movements under half a percent of the
// previous value read as stable.
var trendDeadBand = decimal.RequireFromString("0.5")

// HigherIsBetter is the polarity table: for most metrics a rise is an
// improvement, but a rising expense ratio means costs are eating revenue.
func (m MetricType) HigherIsBetter() bool {
	return m != MetricTypeExpenseRatio
}

// ComputeTrend derives the period-over-period movement. With no previous
// value the trend is stable and the change percent is nil; a previous value
// of zero cannot anchor a percentage either.
func ComputeTrend(value decimal.Decimal, previous *decimal.Decimal) (TrendDirection, *decimal.Decimal) {
	if previous == nil || previous.IsZero() {
		return TrendDirectionStable, nil
	}
	change := value.Sub(*previous).Div(previous.Abs()).Mul(decimal.NewFromInt(100))
	change = utils.Round2(change)
	switch {
	case change.Abs().Cmp(trendDeadBand) < 0:
		return TrendDirectionStable, &change
	case change.Sign() > 0:
		return TrendDirectionUp, &change
	default:
		return TrendDirectionDown, &change
	}
}

// Improvement applies the polarity table to a trend: nil when the trend is
// stable, otherwise whether the movement is good for the business.
func Improvement(metric MetricType, trend TrendDirection) *bool {
	switch trend {
	case TrendDirectionUp:
		v := metric.HigherIsBetter()
		return &v
	case TrendDirectionDown:
		v := !metric.HigherIsBetter()
		return &v
	}
	return nil
}

// GetMetricTrend lists one metric's monthly samples across a date range,
// oldest first, so the caller gets a chart-ready series.
func GetMetricTrend(ctx context.Context, metricType MetricType, from, to time.Time) ([]MetricSample, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id not found in context")
	}
	var samples []MetricSample
	err := config.GetDB().WithContext(ctx).
		Where("user_id = ? AND metric_type = ? AND (year * 100 + month) BETWEEN ? AND ?",
			userId, metricType, from.Year()*100+int(from.Month()), to.Year()*100+int(to.Month())).
		Order("year ASC, month ASC").
		Find(&samples).Error
	if err != nil {
		return nil, err
	}
	return samples, nil
}

func GetMetricSample(tx *gorm.DB, userId string, metricType MetricType, year int, month int) (*MetricSample, error) {
	var sample MetricSample
	err := tx.Where("user_id = ? AND metric_type = ? AND year = ? AND month = ?", userId, metricType, year, month).
		First(&sample).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &sample, nil
}
