package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/zedibooks/ledger_backend/config"
	"github.com/zedibooks/ledger_backend/utils"
	"gorm.io/gorm"
)

// Sale is a primary event. Stock moves in the same transaction as the sale
// row so an oversell fails the write; income, tax, and summaries react to the
// outbox events this file publishes.
type Sale struct {
	ID            string          `gorm:"primary_key;size:64" json:"id"`
	UserId        string          `gorm:"size:64;not null;uniqueIndex:uniq_sale_number,priority:1" json:"user_id"`
	SaleNumber    string          `gorm:"size:40;not null;uniqueIndex:uniq_sale_number,priority:2" json:"sale_number"`
	SaleDate      time.Time       `gorm:"not null;index" json:"sale_date"`
	Status        SaleStatus      `gorm:"size:20;not null;default:'pending';index" json:"status"`
	CustomerName  string          `gorm:"size:200" json:"customer_name"`
	CustomerPhone string          `gorm:"size:40" json:"customer_phone"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
	DiscountTotal decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount_total"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`
	PaymentMethod string          `gorm:"size:40" json:"payment_method"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Items []SaleItem `gorm:"foreignKey:SaleId" json:"items"`
}

func (s *Sale) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// SaleItem is a tagged union: exactly one of ProductId/ServiceId is set,
// matching ItemType. LineTotal is derived on save and never trusted from
// input.
type SaleItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	SaleId      string          `gorm:"size:64;not null;index" json:"sale_id"`
	UserId      string          `gorm:"size:64;not null;index" json:"user_id"`
	ItemType    SaleItemType    `gorm:"size:10;not null" json:"item_type"`
	ProductId   *string         `gorm:"size:64;index" json:"product_id"`
	ServiceId   *string         `gorm:"size:64;index" json:"service_id"`
	Description string          `gorm:"size:255" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Discount    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"line_total"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// ComputeLineTotal derives quantity * unit price minus the line discount,
// clamped at zero. A discount can never make a line negative.
func ComputeLineTotal(quantity, unitPrice, discount decimal.Decimal) decimal.Decimal {
	total := quantity.Mul(unitPrice).Sub(discount)
	if total.Sign() < 0 {
		total = decimal.Zero
	}
	return utils.Round2(total)
}

func (i *SaleItem) validateUnion() error {
	switch i.ItemType {
	case SaleItemTypeProduct:
		if i.ProductId == nil || *i.ProductId == "" {
			return errors.New("product item requires product_id")
		}
		if i.ServiceId != nil {
			return errors.New("product item must not carry service_id")
		}
	case SaleItemTypeService:
		if i.ServiceId == nil || *i.ServiceId == "" {
			return errors.New("service item requires service_id")
		}
		if i.ProductId != nil {
			return errors.New("service item must not carry product_id")
		}
	default:
		return errors.New("invalid sale item type")
	}
	return nil
}

type NewSaleItem struct {
	ItemType    SaleItemType    `json:"item_type" validate:"required"`
	ProductId   *string         `json:"product_id"`
	ServiceId   *string         `json:"service_id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity" validate:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
}

type NewSale struct {
	SaleNumber    string        `json:"sale_number" validate:"required"`
	SaleDate      time.Time     `json:"sale_date" validate:"required"`
	Status        SaleStatus    `json:"status"`
	CustomerName  string        `json:"customer_name"`
	CustomerPhone string        `json:"customer_phone"`
	PaymentMethod string        `json:"payment_method"`
	Notes         string        `json:"notes"`
	Items         []NewSaleItem `json:"items" validate:"required,min=1,dive"`
}

// recalcTotals rewrites the header totals from the item lines.
func (s *Sale) recalcTotals() {
	subtotal := decimal.Zero
	discountTotal := decimal.Zero
	total := decimal.Zero
	for _, item := range s.Items {
		subtotal = subtotal.Add(item.Quantity.Mul(item.UnitPrice))
		discountTotal = discountTotal.Add(item.Discount)
		total = total.Add(item.LineTotal)
	}
	s.Subtotal = utils.Round2(subtotal)
	s.DiscountTotal = utils.Round2(discountTotal)
	s.TotalAmount = utils.Round2(total)
}

// CreateSale inserts the sale with its items and publishes the created event.
// Derived-state handlers pick it up from the outbox.
func CreateSale(ctx context.Context, input *NewSale) (*Sale, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id not found in context")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	status := input.Status
	if status == "" {
		status = SaleStatusPending
	}
	if !status.Valid() {
		return nil, errors.New("invalid sale status")
	}

	sale := Sale{
		UserId:        userId,
		SaleNumber:    input.SaleNumber,
		SaleDate:      input.SaleDate,
		Status:        status,
		CustomerName:  input.CustomerName,
		CustomerPhone: input.CustomerPhone,
		PaymentMethod: input.PaymentMethod,
		Notes:         input.Notes,
	}
	for _, in := range input.Items {
		if in.Quantity.Sign() <= 0 {
			return nil, errors.New("item quantity must be positive")
		}
		if in.UnitPrice.Sign() < 0 || in.Discount.Sign() < 0 {
			return nil, errors.New("item amounts must not be negative")
		}
		item := SaleItem{
			UserId:      userId,
			ItemType:    in.ItemType,
			ProductId:   in.ProductId,
			ServiceId:   in.ServiceId,
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Discount:    in.Discount,
			LineTotal:   ComputeLineTotal(in.Quantity, in.UnitPrice, in.Discount),
		}
		if err := item.validateUnion(); err != nil {
			return nil, err
		}
		sale.Items = append(sale.Items, item)
	}
	sale.recalcTotals()

	db := config.GetDB()
	logger := config.GetLogger()
	err := db.Transaction(func(tx *gorm.DB) error {
		for i := range sale.Items {
			if sale.Items[i].ProductId != nil {
				if _, err := GetProductById(tx, userId, *sale.Items[i].ProductId); err != nil {
					return err
				}
			}
		}
		if err := tx.Create(&sale).Error; err != nil {
			return err
		}
		// Stock moves in the sale's own transaction so an oversell rolls the
		// sale back and surfaces InsufficientStock to the caller.
		if sale.Status.HoldsStock() {
			if err := applySaleStockMovements(tx, logger, &sale); err != nil {
				return err
			}
		}
		return PublishEvent(ctx, tx, userId, sale.SaleDate, sale.ID, EventReferenceTypeSale, &sale, nil, EventActionCreate)
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// applySaleStockMovements decrements inventory for every product line of the
// sale. Movements carry the sale id as reference so a later status change can
// find and reverse them.
func applySaleStockMovements(tx *gorm.DB, logger *logrus.Logger, sale *Sale) error {
	for _, item := range sale.Items {
		if item.ItemType != SaleItemTypeProduct || item.ProductId == nil {
			continue
		}
		_, err := ApplyMovement(tx, logger, sale.UserId, MovementInput{
			ProductId: *item.ProductId,
			Kind:      MovementKindSale,
			Quantity:  item.Quantity,
			Reference: sale.ID,
			Actor:     "system",
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// reverseSaleStockMovements compensates every live movement the sale created.
func reverseSaleStockMovements(tx *gorm.DB, logger *logrus.Logger, userId string, saleId string) error {
	var movements []StockMovement
	err := tx.Where("user_id = ? AND reference = ? AND kind = ? AND is_reversal = ? AND reversed_by_movement_id IS NULL",
		userId, saleId, MovementKindSale, false).
		Find(&movements).Error
	if err != nil {
		return err
	}
	for _, movement := range movements {
		if _, err := ReverseMovement(tx, logger, userId, movement.ID, "sale cancelled"); err != nil {
			return err
		}
	}
	return nil
}

func GetSaleById(tx *gorm.DB, userId string, saleId string) (*Sale, error) {
	var sale Sale
	err := tx.Preload("Items").Where("user_id = ? AND id = ?", userId, saleId).First(&sale).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &sale, nil
}

// UpdateSaleStatus moves a sale through its lifecycle and publishes the
// old/new pair so handlers can compute revenue deltas from the transition.
func UpdateSaleStatus(ctx context.Context, saleId string, status SaleStatus) (*Sale, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id not found in context")
	}
	if !status.Valid() {
		return nil, errors.New("invalid sale status")
	}

	var updated *Sale
	db := config.GetDB()
	logger := config.GetLogger()
	err := db.Transaction(func(tx *gorm.DB) error {
		sale, err := GetSaleById(tx, userId, saleId)
		if err != nil {
			return err
		}
		if sale.Status == status {
			updated = sale
			return nil
		}
		old := *sale
		old.Items = append([]SaleItem(nil), sale.Items...)

		sale.Status = status
		if err := tx.Model(&Sale{}).
			Where("user_id = ? AND id = ?", userId, saleId).
			Update("status", status).Error; err != nil {
			return err
		}
		if old.Status.HoldsStock() && !status.HoldsStock() {
			if err := reverseSaleStockMovements(tx, logger, userId, sale.ID); err != nil {
				return err
			}
		} else if !old.Status.HoldsStock() && status.HoldsStock() {
			if err := applySaleStockMovements(tx, logger, sale); err != nil {
				return err
			}
		}
		updated = sale
		return PublishEvent(ctx, tx, userId, time.Now().UTC(), sale.ID, EventReferenceTypeSale, sale, &old, EventActionUpdate)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteSale removes the sale and its items and publishes the delete event so
// handlers can unwind the derived state it produced.
func DeleteSale(ctx context.Context, saleId string) error {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return errors.New("user id not found in context")
	}

	db := config.GetDB()
	logger := config.GetLogger()
	return db.Transaction(func(tx *gorm.DB) error {
		sale, err := GetSaleById(tx, userId, saleId)
		if err != nil {
			return err
		}
		if sale.Status.HoldsStock() {
			if err := reverseSaleStockMovements(tx, logger, userId, sale.ID); err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ? AND sale_id = ?", userId, saleId).Delete(&SaleItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ? AND id = ?", userId, saleId).Delete(&Sale{}).Error; err != nil {
			return err
		}
		return PublishEvent(ctx, tx, userId, time.Now().UTC(), sale.ID, EventReferenceTypeSale, nil, sale, EventActionDelete)
	})
}
