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

type ExpenseCategory struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Expense is a primary event. The overdue status is derived, not stored by
// callers: an unpaid expense past its due date reads as overdue.
type Expense struct {
	ID            string           `gorm:"primary_key;size:64" json:"id"`
	UserId        string           `gorm:"size:64;not null;index" json:"user_id"`
	CategoryId    *int             `gorm:"index" json:"category_id"`
	Description   string           `gorm:"size:255;not null" json:"description"`
	Amount        decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"amount"`
	ExpenseDate   time.Time        `gorm:"not null;index" json:"expense_date"`
	DueDate       *time.Time       `gorm:"index" json:"due_date"`
	PaymentStatus PaymentStatus    `gorm:"size:20;not null;default:'unpaid'" json:"payment_status"`
	AmountPaid    decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"amount_paid"`
	PaidAt        *time.Time       `json:"paid_at"`
	Vendor        string           `gorm:"size:200" json:"vendor"`
	Notes         string           `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e *Expense) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// BeforeSave derives overdue from the due date so the stored status never
// lags behind the calendar on write paths.
func (e *Expense) BeforeSave(tx *gorm.DB) error {
	e.PaymentStatus = e.EffectiveStatus(time.Now().UTC())
	return nil
}

// EffectiveStatus resolves the payment status at a point in time: unpaid or
// partial past the due date reads as overdue, paid never does.
func (e *Expense) EffectiveStatus(now time.Time) PaymentStatus {
	if e.PaymentStatus == PaymentStatusPaid {
		return PaymentStatusPaid
	}
	if e.DueDate != nil && now.After(*e.DueDate) {
		return PaymentStatusOverdue
	}
	if e.PaymentStatus == PaymentStatusOverdue {
		// Due date moved or cleared; fall back on the paid amount.
		if e.AmountPaid.Sign() > 0 {
			return PaymentStatusPartial
		}
		return PaymentStatusUnpaid
	}
	return e.PaymentStatus
}

type NewExpense struct {
	CategoryId  *int            `json:"category_id"`
	Description string          `json:"description" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	ExpenseDate time.Time       `json:"expense_date" validate:"required"`
	DueDate     *time.Time      `json:"due_date"`
	Vendor      string          `json:"vendor"`
	Notes       string          `json:"notes"`
}

func CreateExpense(ctx context.Context, input *NewExpense) (*Expense, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id not found in context")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.Amount.Sign() <= 0 {
		return nil, errors.New("amount must be positive")
	}

	expense := Expense{
		UserId:        userId,
		CategoryId:    input.CategoryId,
		Description:   input.Description,
		Amount:        utils.Round2(input.Amount),
		ExpenseDate:   input.ExpenseDate,
		DueDate:       input.DueDate,
		PaymentStatus: PaymentStatusUnpaid,
		Vendor:        input.Vendor,
		Notes:         input.Notes,
	}

	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&expense).Error; err != nil {
			return err
		}
		return PublishEvent(ctx, tx, userId, expense.ExpenseDate, expense.ID, EventReferenceTypeExpense, &expense, nil, EventActionCreate)
	})
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

func GetExpenseById(tx *gorm.DB, userId string, expenseId string) (*Expense, error) {
	var expense Expense
	if err := tx.Where("user_id = ? AND id = ?", userId, expenseId).First(&expense).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &expense, nil
}

// MarkExpensePaid records a payment against the expense. A payment covering
// the full amount flips the status to paid; anything less leaves it partial.
func MarkExpensePaid(ctx context.Context, expenseId string, amount decimal.Decimal) (*Expense, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id not found in context")
	}
	if amount.Sign() <= 0 {
		return nil, errors.New("payment amount must be positive")
	}

	var updated *Expense
	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		expense, err := GetExpenseById(tx, userId, expenseId)
		if err != nil {
			return err
		}
		if expense.PaymentStatus == PaymentStatusPaid {
			updated = expense
			return nil
		}
		old := *expense

		now := time.Now().UTC()
		expense.AmountPaid = utils.Round2(expense.AmountPaid.Add(amount))
		if expense.AmountPaid.Cmp(expense.Amount) >= 0 {
			expense.PaymentStatus = PaymentStatusPaid
			expense.PaidAt = &now
		} else {
			expense.PaymentStatus = PaymentStatusPartial
		}
		if err := tx.Save(expense).Error; err != nil {
			return err
		}
		updated = expense
		return PublishEvent(ctx, tx, userId, now, expense.ID, EventReferenceTypeExpense, expense, &old, EventActionUpdate)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteExpense removes the expense and publishes the delete event.
func DeleteExpense(ctx context.Context, expenseId string) error {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return errors.New("user id not found in context")
	}

	db := config.GetDB()
	return db.Transaction(func(tx *gorm.DB) error {
		expense, err := GetExpenseById(tx, userId, expenseId)
		if err != nil {
			return err
		}
		if err := tx.Where("user_id = ? AND id = ?", userId, expenseId).Delete(&Expense{}).Error; err != nil {
			return err
		}
		return PublishEvent(ctx, tx, userId, time.Now().UTC(), expense.ID, EventReferenceTypeExpense, nil, expense, EventActionDelete)
	})
}
