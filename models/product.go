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

type ProductCategory struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"size:50;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Product struct {
	ID            string           `gorm:"primary_key;size:64" json:"id"`
	UserId        string           `gorm:"size:64;not null;index;index:uniq_product_sku,unique" json:"user_id"`
	Name          string           `gorm:"size:255;not null" json:"name"`
	Sku           string           `gorm:"size:100;index:uniq_product_sku,unique" json:"sku"`
	Description   string           `gorm:"type:text" json:"description"`
	CategoryId    *int             `gorm:"index" json:"category_id"`
	SellingPrice  decimal.Decimal  `gorm:"type:decimal(12,2);default:0" json:"selling_price"`
	CostPrice     *decimal.Decimal `gorm:"type:decimal(12,2)" json:"cost_price"`
	UnitOfMeasure string           `gorm:"size:20;default:'each'" json:"unit_of_measure"`
	IsActive      *bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// ProfitMargin returns the margin percent over cost, nil when cost is unknown.
func (p *Product) ProfitMargin() *decimal.Decimal {
	if p.CostPrice == nil || !p.CostPrice.IsPositive() {
		return nil
	}
	m := p.SellingPrice.Sub(*p.CostPrice).Div(*p.CostPrice).Mul(decimal.NewFromInt(100))
	return &m
}

// StockValue prices the on-hand quantity at cost, falling back to the
// selling price when no cost is recorded.
func (p *Product) StockValue(quantityInStock decimal.Decimal) decimal.Decimal {
	unit := p.SellingPrice
	if p.CostPrice != nil && p.CostPrice.IsPositive() {
		unit = *p.CostPrice
	}
	return utils.Round2(quantityInStock.Mul(unit))
}

type NewProduct struct {
	Name          string           `json:"name" validate:"required"`
	Sku           string           `json:"sku"`
	Description   string           `json:"description"`
	CategoryId    *int             `json:"category_id"`
	SellingPrice  decimal.Decimal  `json:"selling_price"`
	CostPrice     *decimal.Decimal `json:"cost_price"`
	UnitOfMeasure string           `json:"unit_of_measure"`
	OpeningStock  decimal.Decimal  `json:"opening_stock"`
	ReorderLevel  *decimal.Decimal `json:"reorder_level"`
}

// CreateProduct inserts the product with its inventory row. A non-zero
// opening stock is applied as an opening_stock movement in the same
// transaction so the audit trail starts like every other quantity change.
func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id not found in context")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.OpeningStock.IsNegative() {
		return nil, errors.New("opening stock cannot be negative")
	}

	product := Product{
		UserId:        userId,
		Name:          input.Name,
		Sku:           input.Sku,
		Description:   input.Description,
		CategoryId:    input.CategoryId,
		SellingPrice:  input.SellingPrice,
		CostPrice:     input.CostPrice,
		UnitOfMeasure: input.UnitOfMeasure,
		IsActive:      utils.NewTrue(),
	}
	if product.UnitOfMeasure == "" {
		product.UnitOfMeasure = "each"
	}

	db := config.GetDB()
	logger := config.GetLogger()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&product).Error; err != nil {
			return err
		}
		inventory := Inventory{
			UserId:       userId,
			ProductId:    product.ID,
			OpeningStock: input.OpeningStock,
			ReorderLevel: input.ReorderLevel,
		}
		if err := tx.Create(&inventory).Error; err != nil {
			return err
		}
		if input.OpeningStock.IsPositive() {
			adj := StockAdjustmentRequest{
				ProductId: product.ID,
				Quantity:  input.OpeningStock,
				Kind:      MovementKindOpeningStock,
				Reference: "OPENING-" + product.ID,
			}
			if actor, ok := utils.GetActorNameFromContext(ctx); ok {
				adj.Actor = actor
			}
			if _, err := ApplyMovement(tx, logger, userId, MovementInput{
				ProductId: adj.ProductId,
				Kind:      adj.Kind,
				Quantity:  adj.Quantity,
				Reference: adj.Reference,
				Actor:     adj.Actor,
			}); err != nil {
				return err
			}
			return PublishEvent(ctx, tx, userId, time.Now().UTC(), product.ID, EventReferenceTypeStockAdjustment, adj, nil, EventActionCreate)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func GetProductById(tx *gorm.DB, userId string, productId string) (*Product, error) {
	var product Product
	if err := tx.Where("user_id = ? AND id = ?", userId, productId).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &product, nil
}
