package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zedibooks/ledger_backend/config"
	"github.com/zedibooks/ledger_backend/utils"
	"gorm.io/gorm"
)

type AssetCategory struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Asset is a business asset. CurrentValue is the user-recorded valuation;
// when unset the purchase price stands in. The straight-line depreciation
// helpers are advisory and never overwrite it.
type Asset struct {
	ID               string           `gorm:"primary_key;size:64" json:"id"`
	UserId           string           `gorm:"size:64;not null;index" json:"user_id"`
	CategoryId       *int             `gorm:"index" json:"category_id"`
	Name             string           `gorm:"size:200;not null" json:"name"`
	PurchasePrice    decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"purchase_price"`
	CurrentValue     *decimal.Decimal `gorm:"type:decimal(12,2)" json:"current_value"`
	PurchaseDate     time.Time        `gorm:"not null;index" json:"purchase_date"`
	UsefulLifeYears  *int             `json:"useful_life_years"`
	SalvageValue     decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"salvage_value"`
	Status           AssetStatus      `gorm:"size:20;not null;default:'active';index" json:"status"`
	DisposedAt       *time.Time       `json:"disposed_at"`
	DisposalProceeds *decimal.Decimal `gorm:"type:decimal(12,2)" json:"disposal_proceeds"`
	Notes            string           `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *Asset) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// AnnualDepreciation returns the straight-line yearly write-down, or zero
// when no useful life is set.
func (a *Asset) AnnualDepreciation() decimal.Decimal {
	if a.UsefulLifeYears == nil || *a.UsefulLifeYears <= 0 {
		return decimal.Zero
	}
	base := a.PurchasePrice.Sub(a.SalvageValue)
	if base.Sign() <= 0 {
		return decimal.Zero
	}
	return utils.Round2(base.Div(decimal.NewFromInt(int64(*a.UsefulLifeYears))))
}

// EffectiveValue is the valuation the summary aggregates: the recorded
// current value when present, otherwise the purchase price.
func (a *Asset) EffectiveValue() decimal.Decimal {
	if a.CurrentValue != nil {
		return *a.CurrentValue
	}
	return a.PurchasePrice
}

// DepreciationPercent returns how much of the depreciable base has been
// written down at a point in time, between 0 and 100.
func (a *Asset) DepreciationPercent(now time.Time) decimal.Decimal {
	base := a.PurchasePrice.Sub(a.SalvageValue)
	if base.Sign() <= 0 {
		return decimal.Zero
	}
	written := a.PurchasePrice.Sub(a.BookValue(now))
	if written.Sign() <= 0 {
		return decimal.Zero
	}
	pct := written.Div(base).Mul(decimal.NewFromInt(100))
	if pct.Cmp(decimal.NewFromInt(100)) > 0 {
		return decimal.NewFromInt(100)
	}
	return utils.Round2(pct)
}

// BookValue returns the straight-line depreciated value at a point in time,
// never below the salvage value.
func (a *Asset) BookValue(now time.Time) decimal.Decimal {
	annual := a.AnnualDepreciation()
	if annual.IsZero() {
		return a.PurchasePrice
	}
	years := now.Sub(a.PurchaseDate).Hours() / (24 * 365.25)
	if years <= 0 {
		return a.PurchasePrice
	}
	written := annual.Mul(decimal.NewFromFloat(years))
	value := a.PurchasePrice.Sub(written)
	if value.Cmp(a.SalvageValue) < 0 {
		return a.SalvageValue
	}
	return utils.Round2(value)
}

type NewAsset struct {
	CategoryId      *int             `json:"category_id"`
	Name            string           `json:"name" validate:"required"`
	PurchasePrice   decimal.Decimal  `json:"purchase_price" validate:"required"`
	CurrentValue    *decimal.Decimal `json:"current_value"`
	PurchaseDate    time.Time        `json:"purchase_date" validate:"required"`
	UsefulLifeYears *int             `json:"useful_life_years"`
	SalvageValue    decimal.Decimal  `json:"salvage_value"`
	Notes           string           `json:"notes"`
}

func CreateAsset(ctx context.Context, input *NewAsset) (*Asset, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id not found in context")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.PurchasePrice.Sign() <= 0 {
		return nil, errors.New("purchase price must be positive")
	}
	if input.SalvageValue.Sign() < 0 || input.SalvageValue.Cmp(input.PurchasePrice) > 0 {
		return nil, errors.New("salvage value must be between zero and the purchase price")
	}
	if input.CurrentValue != nil && input.CurrentValue.Sign() < 0 {
		return nil, errors.New("current value must not be negative")
	}

	asset := Asset{
		UserId:          userId,
		CategoryId:      input.CategoryId,
		Name:            input.Name,
		PurchasePrice:   utils.Round2(input.PurchasePrice),
		CurrentValue:    input.CurrentValue,
		PurchaseDate:    input.PurchaseDate,
		UsefulLifeYears: input.UsefulLifeYears,
		SalvageValue:    utils.Round2(input.SalvageValue),
		Status:          AssetStatusActive,
		Notes:           input.Notes,
	}

	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&asset).Error; err != nil {
			return err
		}
		return PublishEvent(ctx, tx, userId, asset.PurchaseDate, asset.ID, EventReferenceTypeAsset, &asset, nil, EventActionCreate)
	})
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

func GetAssetById(tx *gorm.DB, userId string, assetId string) (*Asset, error) {
	var asset Asset
	if err := tx.Where("user_id = ? AND id = ?", userId, assetId).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &asset, nil
}

// UpdateAssetCurrentValue records a revaluation and publishes the update
// event so the summary picks up the new figure.
func UpdateAssetCurrentValue(ctx context.Context, assetId string, value decimal.Decimal) (*Asset, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id not found in context")
	}
	if value.Sign() < 0 {
		return nil, errors.New("current value must not be negative")
	}

	var updated *Asset
	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		asset, err := GetAssetById(tx, userId, assetId)
		if err != nil {
			return err
		}
		old := *asset

		rounded := utils.Round2(value)
		asset.CurrentValue = &rounded
		if err := tx.Model(&Asset{}).
			Where("user_id = ? AND id = ?", userId, assetId).
			Update("current_value", rounded).Error; err != nil {
			return err
		}
		updated = asset
		return PublishEvent(ctx, tx, userId, time.Now().UTC(), asset.ID, EventReferenceTypeAsset, asset, &old, EventActionUpdate)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DisposeAsset closes out an asset, optionally recording sale proceeds.
func DisposeAsset(ctx context.Context, assetId string, proceeds *decimal.Decimal) (*Asset, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id not found in context")
	}
	if proceeds != nil && proceeds.Sign() < 0 {
		return nil, errors.New("disposal proceeds must not be negative")
	}

	var updated *Asset
	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		asset, err := GetAssetById(tx, userId, assetId)
		if err != nil {
			return err
		}
		if asset.Status == AssetStatusDisposed {
			updated = asset
			return nil
		}
		old := *asset

		now := time.Now().UTC()
		asset.Status = AssetStatusDisposed
		asset.DisposedAt = &now
		asset.DisposalProceeds = proceeds
		if err := tx.Save(asset).Error; err != nil {
			return err
		}
		updated = asset
		return PublishEvent(ctx, tx, userId, now, asset.ID, EventReferenceTypeAsset, asset, &old, EventActionUpdate)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
