package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/zedibooks/ledger_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MovementInput describes one stock change to apply.
type MovementInput struct {
	ProductId string
	Kind      MovementKind
	Quantity  decimal.Decimal
	Reference string
	Notes     string
	Actor     string
}

// SignedQuantity returns the delta to apply to on-hand stock: outbound kinds
// subtract, everything else adds.
func (m MovementInput) SignedQuantity() decimal.Decimal {
	if m.Kind.Outbound() {
		return m.Quantity.Abs().Neg()
	}
	return m.Quantity.Abs()
}

// ApplyMovement atomically applies one stock change: it adjusts the on-hand
// quantity (refusing to go negative), appends the audit movement row, and
// refreshes the product's stock alert. The quantity guard lives in the UPDATE
// itself, so concurrent outbound movements cannot both pass a stale read.
// It runs inside the caller's transaction; an InsufficientStockError aborts
// the whole primary write.
func ApplyMovement(tx *gorm.DB, logger *logrus.Logger, userId string, input MovementInput) (*StockMovement, error) {
	if !input.Kind.Valid() {
		return nil, fmt.Errorf("invalid movement kind %q", input.Kind)
	}
	if input.Quantity.Sign() <= 0 {
		return nil, errors.New("movement quantity must be positive")
	}

	inventory, err := lockInventory(tx, userId, input.ProductId)
	if err != nil {
		return nil, err
	}

	delta := input.SignedQuantity()
	before := inventory.QuantityInStock
	after := before.Add(delta)

	result := tx.Model(&Inventory{}).
		Where("id = ? AND quantity_in_stock + ? >= 0", inventory.ID, delta).
		Updates(map[string]interface{}{
			"quantity_in_stock": gorm.Expr("quantity_in_stock + ?", delta),
			"last_stock_update": time.Now().UTC(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, &utils.InsufficientStockError{
			ProductId: input.ProductId,
			Available: before,
			Requested: delta.Abs(),
		}
	}

	movement := StockMovement{
		UserId:         userId,
		ProductId:      input.ProductId,
		Kind:           input.Kind,
		Quantity:       delta,
		QuantityBefore: before,
		QuantityAfter:  after,
		Reference:      input.Reference,
		Notes:          input.Notes,
		Actor:          input.Actor,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return nil, err
	}

	if err := RefreshStockAlert(tx, userId, input.ProductId, after, inventory.ReorderLevel); err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"user_id":    userId,
		"product_id": input.ProductId,
		"kind":       input.Kind,
		"quantity":   delta.String(),
		"after":      after.String(),
	}).Info("stock movement applied")
	return &movement, nil
}

// ReverseMovement appends a compensating movement for a prior one and links
// the pair. The original row is marked reversed, never edited; reversing an
// already-reversed movement is refused.
func ReverseMovement(tx *gorm.DB, logger *logrus.Logger, userId string, movementId int, reason string) (*StockMovement, error) {
	var original StockMovement
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND id = ?", userId, movementId).
		First(&original).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if original.IsReversal {
		return nil, errors.New("cannot reverse a reversal movement")
	}
	if original.ReversedByMovementId != nil {
		return nil, errors.New("movement already reversed")
	}

	inventory, err := lockInventory(tx, userId, original.ProductId)
	if err != nil {
		return nil, err
	}

	delta := original.Quantity.Neg()
	before := inventory.QuantityInStock
	after := before.Add(delta)

	result := tx.Model(&Inventory{}).
		Where("id = ? AND quantity_in_stock + ? >= 0", inventory.ID, delta).
		Updates(map[string]interface{}{
			"quantity_in_stock": gorm.Expr("quantity_in_stock + ?", delta),
			"last_stock_update": time.Now().UTC(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, &utils.InsufficientStockError{
			ProductId: original.ProductId,
			Available: before,
			Requested: delta.Abs(),
		}
	}

	now := time.Now().UTC()
	reversal := StockMovement{
		UserId:             userId,
		ProductId:          original.ProductId,
		Kind:               original.Kind,
		Quantity:           delta,
		QuantityBefore:     before,
		QuantityAfter:      after,
		Reference:          original.Reference,
		Actor:              original.Actor,
		IsReversal:         true,
		ReversesMovementId: &original.ID,
		ReversalReason:     &reason,
	}
	if err := tx.Create(&reversal).Error; err != nil {
		return nil, err
	}
	err = tx.Model(&StockMovement{}).
		Where("id = ?", original.ID).
		Updates(map[string]interface{}{
			"reversed_by_movement_id": reversal.ID,
			"reversed_at":             now,
		}).Error
	if err != nil {
		return nil, err
	}

	if err := RefreshStockAlert(tx, userId, original.ProductId, after, inventory.ReorderLevel); err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"user_id":     userId,
		"product_id":  original.ProductId,
		"movement_id": original.ID,
		"reversal_id": reversal.ID,
	}).Info("stock movement reversed")
	return &reversal, nil
}

// RefreshStockAlert reconciles the alert table with the current level.
// Invariant: at most one unresolved alert per product. A changed condition
// resolves the old alert before raising the new one.
func RefreshStockAlert(tx *gorm.DB, userId string, productId string, qty decimal.Decimal, reorderLevel *decimal.Decimal) error {
	status := ClassifyStockLevel(qty, reorderLevel)

	var open StockAlert
	err := tx.Where("user_id = ? AND product_id = ? AND is_resolved = ?", userId, productId, false).
		First(&open).Error
	hasOpen := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	var wanted *StockAlertType
	switch status {
	case StockStatusOutOfStock:
		t := StockAlertTypeOutOfStock
		wanted = &t
	case StockStatusLowStock:
		t := StockAlertTypeLowStock
		wanted = &t
	}

	if hasOpen {
		if wanted != nil && open.AlertType == *wanted {
			return tx.Model(&StockAlert{}).
				Where("id = ?", open.ID).
				Update("current_stock", qty).Error
		}
		now := time.Now().UTC()
		err := tx.Model(&StockAlert{}).
			Where("id = ?", open.ID).
			Updates(map[string]interface{}{"is_resolved": true, "resolved_at": now}).Error
		if err != nil {
			return err
		}
	}

	if wanted == nil {
		return nil
	}
	alert := StockAlert{
		UserId:       userId,
		ProductId:    productId,
		AlertType:    *wanted,
		CurrentStock: qty,
		ReorderLevel: reorderLevel,
	}
	return tx.Create(&alert).Error
}

// lockInventory loads the inventory row under FOR UPDATE, creating it lazily
// for products that predate inventory tracking.
func lockInventory(tx *gorm.DB, userId string, productId string) (*Inventory, error) {
	var inventory Inventory
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(Inventory{UserId: userId, ProductId: productId}).
		FirstOrCreate(&inventory).Error
	if err != nil {
		return nil, err
	}
	return &inventory, nil
}

// RebuildInventory recomputes one product's on-hand quantity from its
// movement rows and overwrites the inventory row. Used by the rebuild command
// after manual data surgery.
func RebuildInventory(tx *gorm.DB, logger *logrus.Logger, userId string, productId string) error {
	inventory, err := lockInventory(tx, userId, productId)
	if err != nil {
		return err
	}
	total, err := SumMovements(tx, userId, productId)
	if err != nil {
		return err
	}
	if total.Sign() < 0 {
		return fmt.Errorf("movement sum is negative for product_id=%s: %s", productId, total.String())
	}
	if err := tx.Model(&Inventory{}).
		Where("id = ?", inventory.ID).
		Updates(map[string]interface{}{
			"quantity_in_stock": total,
			"last_stock_update": time.Now().UTC(),
		}).Error; err != nil {
		return err
	}
	if err := RefreshStockAlert(tx, userId, productId, total, inventory.ReorderLevel); err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"user_id":    userId,
		"product_id": productId,
		"quantity":   total.String(),
	}).Info("inventory rebuilt from movements")
	return nil
}
