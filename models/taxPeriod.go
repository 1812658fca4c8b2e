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

// Defaults for new tax periods. The threshold and rate are stored per period
// row so a future rate change only applies from the month it takes effect;
// settled months keep the parameters they were assessed under.
var (
	DefaultTaxThreshold  = decimal.NewFromInt(1000)
	DefaultTaxRate       = decimal.NewFromInt(5)
	TaxAnnualTurnoverCap = decimal.NewFromInt(5000000)
)

// TaxPeriod accumulates one tenant-month of taxable turnover. Rows are
// created lazily on the first revenue delta for the month, freezing the
// threshold and rate in force at that time.
type TaxPeriod struct {
	ID               int              `gorm:"primary_key" json:"id"`
	UserId           string           `gorm:"size:64;not null;uniqueIndex:uniq_tax_period,priority:1" json:"user_id"`
	Year             int              `gorm:"not null;uniqueIndex:uniq_tax_period,priority:2" json:"year"`
	Month            int              `gorm:"not null;uniqueIndex:uniq_tax_period,priority:3" json:"month"`
	Turnover         decimal.Decimal  `gorm:"type:decimal(14,2);not null;default:0" json:"turnover"`
	TaxFreeThreshold decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:1000" json:"tax_free_threshold"`
	TaxRate          decimal.Decimal  `gorm:"type:decimal(5,2);not null;default:5" json:"tax_rate"`
	TaxableAmount    decimal.Decimal  `gorm:"type:decimal(14,2);not null;default:0" json:"taxable_amount"`
	TaxDue           decimal.Decimal  `gorm:"type:decimal(14,2);not null;default:0" json:"tax_due"`
	PaymentStatus    TaxPaymentStatus `gorm:"size:20;not null;default:'pending'" json:"payment_status"`
	PaidAt           *time.Time       `json:"paid_at"`
	PaymentReference string           `gorm:"size:100" json:"payment_reference"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// CalculateTax derives the taxable amount and tax due from a turnover figure.
// Turnover at or below the threshold owes nothing; the taxable remainder is
// taxed at ratePercent, rounded half-up to two decimal places.
func CalculateTax(turnover, threshold, ratePercent decimal.Decimal) (taxable decimal.Decimal, taxDue decimal.Decimal) {
	taxable = turnover.Sub(threshold)
	if taxable.Sign() < 0 {
		taxable = decimal.Zero
	}
	taxable = utils.Round2(taxable)
	taxDue = utils.Round2(taxable.Mul(ratePercent).Div(decimal.NewFromInt(100)))
	return taxable, taxDue
}

// Recalculate rewrites the derived columns from the stored turnover using the
// row's own threshold and rate. Turnover itself never goes below zero even
// when deltas would take it there.
func (p *TaxPeriod) Recalculate() {
	if p.Turnover.Sign() < 0 {
		p.Turnover = decimal.Zero
	}
	p.TaxableAmount, p.TaxDue = CalculateTax(p.Turnover, p.TaxFreeThreshold, p.TaxRate)
}

func GetTaxPeriod(tx *gorm.DB, userId string, year int, month int) (*TaxPeriod, error) {
	var period TaxPeriod
	err := tx.Where("user_id = ? AND year = ? AND month = ?", userId, year, month).
		First(&period).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &period, nil
}

// GetAnnualTurnover sums the stored monthly turnover for a calendar year.
func GetAnnualTurnover(tx *gorm.DB, userId string, year int) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := tx.Model(&TaxPeriod{}).
		Select("SUM(turnover)").
		Where("user_id = ? AND year = ?", userId, year).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// IsTurnoverTaxEligible reports whether the tenant's annual turnover stays
// within the scheme's ceiling.
func IsTurnoverTaxEligible(ctx context.Context, year int) (bool, decimal.Decimal, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return false, decimal.Zero, errors.New("user id not found in context")
	}
	annual, err := GetAnnualTurnover(config.GetDB().WithContext(ctx), userId, year)
	if err != nil {
		return false, decimal.Zero, err
	}
	return annual.Cmp(TaxAnnualTurnoverCap) <= 0, annual, nil
}

// MarkTaxPeriodPaid closes out a period's tax liability, recording the
// payment reference when one is given.
func MarkTaxPeriodPaid(ctx context.Context, year int, month int, reference string) (*TaxPeriod, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id not found in context")
	}

	var updated *TaxPeriod
	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		period, err := GetTaxPeriod(tx, userId, year, month)
		if err != nil {
			return err
		}
		if period.PaymentStatus == TaxPaymentStatusPaid {
			updated = period
			return nil
		}
		now := time.Now().UTC()
		period.PaymentStatus = TaxPaymentStatusPaid
		period.PaidAt = &now
		period.PaymentReference = reference
		if err := tx.Model(&TaxPeriod{}).
			Where("id = ?", period.ID).
			Updates(map[string]interface{}{
				"payment_status":    TaxPaymentStatusPaid,
				"paid_at":           now,
				"payment_reference": reference,
			}).Error; err != nil {
			return err
		}
		updated = period
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
