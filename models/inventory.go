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

// Inventory holds the on-hand quantity for one product. The quantity is, at
// all times, the signed sum of that product's StockMovement rows; it is only
// written through ApplyMovement's conditional update.
type Inventory struct {
	ID              int              `gorm:"primary_key" json:"id"`
	UserId          string           `gorm:"size:64;not null;index" json:"user_id"`
	ProductId       string           `gorm:"size:64;not null;uniqueIndex" json:"product_id"`
	QuantityInStock decimal.Decimal  `gorm:"type:decimal(12,3);not null;default:0" json:"quantity_in_stock"`
	ReorderLevel    *decimal.Decimal `gorm:"type:decimal(12,3)" json:"reorder_level"`
	OpeningStock    decimal.Decimal  `gorm:"type:decimal(12,3);not null;default:0" json:"opening_stock"`
	LastStockUpdate time.Time        `gorm:"autoUpdateTime" json:"last_stock_update"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// StockStatus classifies the current level against the reorder level.
func (i *Inventory) StockStatus() StockStatus {
	return ClassifyStockLevel(i.QuantityInStock, i.ReorderLevel)
}

// ClassifyStockLevel is the single stock-status rule used by inventory reads
// and alerting: zero or below is out of stock, at or below the reorder level
// is low.
func ClassifyStockLevel(qty decimal.Decimal, reorderLevel *decimal.Decimal) StockStatus {
	if qty.Sign() <= 0 {
		return StockStatusOutOfStock
	}
	if reorderLevel != nil && qty.Cmp(*reorderLevel) <= 0 {
		return StockStatusLowStock
	}
	return StockStatusInStock
}

// StockMovement is the append-only audit record for every quantity change.
// Rows are immutable once written; corrections are compensating rows created
// by ReverseMovement, never edits.
type StockMovement struct {
	ID             int             `gorm:"primary_key" json:"id"`
	UserId         string          `gorm:"size:64;not null;index" json:"user_id"`
	ProductId      string          `gorm:"size:64;not null;index" json:"product_id"`
	Kind           MovementKind    `gorm:"size:20;not null;index" json:"kind"`
	Quantity       decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"quantity"`
	QuantityBefore decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"quantity_before"`
	QuantityAfter  decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"quantity_after"`
	Reference      string          `gorm:"size:100;index" json:"reference"`
	Notes          string          `gorm:"type:text" json:"notes"`
	Actor          string          `gorm:"size:100" json:"actor"`

	// Reversal linkage: originals are marked, never mutated.
	IsReversal         bool       `gorm:"not null;default:false;index" json:"is_reversal"`
	ReversesMovementId *int       `gorm:"index" json:"reverses_movement_id"`
	ReversedByMovementId *int     `gorm:"index" json:"reversed_by_movement_id"`
	ReversalReason     *string    `gorm:"type:text" json:"reversal_reason"`
	ReversedAt         *time.Time `gorm:"index" json:"reversed_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// StockAlert records a low/out-of-stock condition. At most one unresolved
// alert exists per product; alerting resolves the previous one before raising
// a new one.
type StockAlert struct {
	ID           int              `gorm:"primary_key" json:"id"`
	UserId       string           `gorm:"size:64;not null;index" json:"user_id"`
	ProductId    string           `gorm:"size:64;not null;index" json:"product_id"`
	AlertType    StockAlertType   `gorm:"size:20;not null" json:"alert_type"`
	CurrentStock decimal.Decimal  `gorm:"type:decimal(12,3);not null" json:"current_stock"`
	ReorderLevel *decimal.Decimal `gorm:"type:decimal(12,3)" json:"reorder_level"`
	IsResolved   bool             `gorm:"not null;default:false;index" json:"is_resolved"`
	ResolvedAt   *time.Time       `json:"resolved_at"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// StockAdjustmentRequest is the payload of a manual stock change event
// (and of the opening-stock event emitted by CreateProduct).
type StockAdjustmentRequest struct {
	ProductId string          `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	Kind      MovementKind    `json:"kind" validate:"required"`
	Reference string          `json:"reference"`
	Notes     string          `json:"notes"`
	Actor     string          `json:"actor"`
}

// RequestStockAdjustment applies a manual stock change. The movement, its
// alert refresh, and the outbox event commit in one transaction, so an
// InsufficientStock failure rejects the adjustment outright instead of
// leaving a poisoned event behind.
func RequestStockAdjustment(ctx context.Context, input *StockAdjustmentRequest) error {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return errors.New("user id not found in context")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if !input.Kind.Valid() {
		return errors.New("invalid movement kind")
	}
	if input.Quantity.IsZero() {
		return errors.New("quantity must be non-zero")
	}
	if input.Actor == "" {
		if actor, ok := utils.GetActorNameFromContext(ctx); ok {
			input.Actor = actor
		}
	}

	db := config.GetDB()
	logger := config.GetLogger()
	return db.Transaction(func(tx *gorm.DB) error {
		if _, err := GetProductById(tx, userId, input.ProductId); err != nil {
			return err
		}
		_, err := ApplyMovement(tx, logger, userId, MovementInput{
			ProductId: input.ProductId,
			Kind:      input.Kind,
			Quantity:  input.Quantity.Abs(),
			Reference: input.Reference,
			Notes:     input.Notes,
			Actor:     input.Actor,
		})
		if err != nil {
			return err
		}
		return PublishEvent(ctx, tx, userId, time.Now().UTC(), input.ProductId, EventReferenceTypeStockAdjustment, input, nil, EventActionCreate)
	})
}

func GetInventoryByProduct(tx *gorm.DB, userId string, productId string) (*Inventory, error) {
	var inventory Inventory
	if err := tx.Where("user_id = ? AND product_id = ?", userId, productId).First(&inventory).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &inventory, nil
}

// GetInventoryLevel is the read surface for the excluded reporting layer.
func GetInventoryLevel(ctx context.Context, productId string) (decimal.Decimal, StockStatus, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return decimal.Zero, "", errors.New("user id not found in context")
	}
	inventory, err := GetInventoryByProduct(config.GetDB().WithContext(ctx), userId, productId)
	if err != nil {
		return decimal.Zero, "", err
	}
	return inventory.QuantityInStock, inventory.StockStatus(), nil
}

// SumMovements returns the signed movement total for one product. Used by the
// rebuild command and integrity checks against Inventory.QuantityInStock.
func SumMovements(tx *gorm.DB, userId string, productId string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := tx.Model(&StockMovement{}).
		Select("SUM(quantity)").
		Where("user_id = ? AND product_id = ?", userId, productId).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
