package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zedibooks/ledger_backend/utils"
	"gorm.io/gorm"
)

// ReportSnapshot caches one computed report for a tenant, report type and
// period. IsFresh is the validity bit: primary-event writes flip it off for
// every snapshot whose period overlaps the trailing invalidation window, and
// the next read recomputes.
type ReportSnapshot struct {
	ID          int        `gorm:"primary_key" json:"id"`
	UserId      string     `gorm:"size:64;not null;uniqueIndex:uniq_report_snapshot,priority:1" json:"user_id"`
	ReportType  ReportType `gorm:"size:30;not null;uniqueIndex:uniq_report_snapshot,priority:2" json:"report_type"`
	PeriodStart time.Time  `gorm:"not null;uniqueIndex:uniq_report_snapshot,priority:3;index:idx_snapshot_window" json:"period_start"`
	PeriodEnd   time.Time  `gorm:"not null;index:idx_snapshot_window" json:"period_end"`

	// Headline figures are lifted into columns; the full report body rides
	// along as JSON.
	TotalRevenue  decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_revenue"`
	TotalExpenses decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_expenses"`
	NetProfit     decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"net_profit"`
	Payload       []byte          `gorm:"type:blob" json:"payload"`

	IsFresh     bool      `gorm:"not null;default:true;index" json:"is_fresh"`
	GeneratedAt time.Time `gorm:"not null" json:"generated_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProfitMargin returns net profit over revenue as a percentage, nil when
// there is no revenue to divide by.
func (s *ReportSnapshot) ProfitMargin() *decimal.Decimal {
	if s.TotalRevenue.IsZero() {
		return nil
	}
	margin := utils.Round2(s.NetProfit.Div(s.TotalRevenue).Mul(decimal.NewFromInt(100)))
	return &margin
}

// ExpenseRatio returns expenses over revenue as a percentage, nil when there
// is no revenue.
func (s *ReportSnapshot) ExpenseRatio() *decimal.Decimal {
	if s.TotalRevenue.IsZero() {
		return nil
	}
	ratio := utils.Round2(s.TotalExpenses.Div(s.TotalRevenue).Mul(decimal.NewFromInt(100)))
	return &ratio
}

func GetReportSnapshot(tx *gorm.DB, userId string, reportType ReportType, periodStart time.Time) (*ReportSnapshot, error) {
	var snapshot ReportSnapshot
	err := tx.Where("user_id = ? AND report_type = ? AND period_start = ?", userId, reportType, periodStart).
		First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &snapshot, nil
}
