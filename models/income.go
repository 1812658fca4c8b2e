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

// IncomeEntry mirrors one revenue-producing primary event into the income
// ledger. The (user, source, source_ref) key makes the mirroring idempotent:
// re-syncing the same source row upserts instead of duplicating.
type IncomeEntry struct {
	ID          int             `gorm:"primary_key" json:"id"`
	UserId      string          `gorm:"size:64;not null;uniqueIndex:uniq_income_source,priority:1" json:"user_id"`
	Source      IncomeSource    `gorm:"size:20;not null;uniqueIndex:uniq_income_source,priority:2" json:"source"`
	SourceRef   string          `gorm:"size:64;not null;uniqueIndex:uniq_income_source,priority:3" json:"source_ref"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	IncomeDate  time.Time       `gorm:"not null;index" json:"income_date"`
	Description string          `gorm:"size:255" json:"description"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetIncomeEntry(tx *gorm.DB, userId string, source IncomeSource, sourceRef string) (*IncomeEntry, error) {
	var entry IncomeEntry
	err := tx.Where("user_id = ? AND source = ? AND source_ref = ?", userId, source, sourceRef).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// GetIncomeLedger lists income entries in a date range, newest first.
func GetIncomeLedger(ctx context.Context, from, to time.Time) ([]IncomeEntry, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id not found in context")
	}
	var entries []IncomeEntry
	err := config.GetDB().WithContext(ctx).
		Where("user_id = ? AND income_date >= ? AND income_date < ?", userId, from, to).
		Order("income_date DESC, id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// SumIncome totals entries in [from, to), optionally filtered by source.
func SumIncome(tx *gorm.DB, userId string, source *IncomeSource, from, to time.Time) (decimal.Decimal, error) {
	query := tx.Model(&IncomeEntry{}).
		Select("SUM(amount)").
		Where("user_id = ? AND income_date >= ? AND income_date < ?", userId, from, to)
	if source != nil {
		query = query.Where("source = ?", *source)
	}
	var total decimal.NullDecimal
	if err := query.Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
