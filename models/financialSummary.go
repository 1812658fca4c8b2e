package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zedibooks/ledger_backend/utils"
	"gorm.io/gorm"
)

// FinancialSummary is one tenant-month of aggregated figures. Every column is
// recomputed from source tables on each refresh; nothing here accumulates
// incrementally, so a recompute is always safe to repeat.
type FinancialSummary struct {
	ID     int    `gorm:"primary_key" json:"id"`
	UserId string `gorm:"size:64;not null;uniqueIndex:uniq_financial_summary,priority:1" json:"user_id"`
	Year   int    `gorm:"not null;uniqueIndex:uniq_financial_summary,priority:2" json:"year"`
	Month  int    `gorm:"not null;uniqueIndex:uniq_financial_summary,priority:3" json:"month"`

	SalesIncome   decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"sales_income"`
	ServiceIncome decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"service_income"`
	OtherIncome   decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"other_income"`
	TotalIncome   decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_income"`
	TotalExpenses decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_expenses"`
	NetProfit     decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"net_profit"`
	TotalAssets   decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_assets"`
	TaxDue        decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"tax_due"`

	SaleCount          int `gorm:"not null;default:0" json:"sale_count"`
	ServiceRecordCount int `gorm:"not null;default:0" json:"service_record_count"`
	ExpenseCount       int `gorm:"not null;default:0" json:"expense_count"`

	LastCalculatedAt time.Time `gorm:"not null" json:"last_calculated_at"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Derive fills the columns computed from the others.
func (s *FinancialSummary) Derive() {
	s.TotalIncome = utils.Round2(s.SalesIncome.Add(s.ServiceIncome).Add(s.OtherIncome))
	s.NetProfit = utils.Round2(s.TotalIncome.Sub(s.TotalExpenses))
}

func GetFinancialSummary(tx *gorm.DB, userId string, year int, month int) (*FinancialSummary, error) {
	var summary FinancialSummary
	err := tx.Where("user_id = ? AND year = ? AND month = ?", userId, year, month).
		First(&summary).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &summary, nil
}
