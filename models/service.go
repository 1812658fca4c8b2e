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

type Service struct {
	ID              string          `gorm:"primary_key;size:64" json:"id"`
	UserId          string          `gorm:"size:64;not null;uniqueIndex:uniq_service_name,priority:1" json:"user_id"`
	Name            string          `gorm:"size:200;not null;uniqueIndex:uniq_service_name,priority:2" json:"name"`
	Description     string          `gorm:"type:text" json:"description"`
	Price           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	DurationMinutes *int            `json:"duration_minutes"`
	IsActive        *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Service) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

type NewService struct {
	Name            string          `json:"name" validate:"required"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price" validate:"required"`
	DurationMinutes *int            `json:"duration_minutes"`
}

func CreateService(ctx context.Context, input *NewService) (*Service, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id not found in context")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.Price.Sign() < 0 {
		return nil, errors.New("price must not be negative")
	}

	service := Service{
		UserId:          userId,
		Name:            input.Name,
		Description:     input.Description,
		Price:           input.Price,
		DurationMinutes: input.DurationMinutes,
		IsActive:        utils.NewTrue(),
	}
	if err := config.GetDB().WithContext(ctx).Create(&service).Error; err != nil {
		return nil, err
	}
	return &service, nil
}

func GetServiceById(tx *gorm.DB, userId string, serviceId string) (*Service, error) {
	var service Service
	if err := tx.Where("user_id = ? AND id = ?", userId, serviceId).First(&service).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &service, nil
}

// ServiceRecord is a delivered-service primary event. The worker union holds
// either an employee name or marks the owner as the worker, never both.
type ServiceRecord struct {
	ID            string               `gorm:"primary_key;size:64" json:"id"`
	UserId        string               `gorm:"size:64;not null;index" json:"user_id"`
	ServiceId     string               `gorm:"size:64;not null;index" json:"service_id"`
	ServiceDate   time.Time            `gorm:"not null;index" json:"service_date"`
	CustomerName  string               `gorm:"size:200" json:"customer_name"`
	WorkerType    WorkerType           `gorm:"size:10;not null" json:"worker_type"`
	EmployeeName  *string              `gorm:"size:200" json:"employee_name"`
	Amount        decimal.Decimal      `gorm:"type:decimal(12,2);not null" json:"amount"`
	PaymentStatus ServicePaymentStatus `gorm:"size:20;not null;default:'pending';index" json:"payment_status"`
	PaidAt        *time.Time           `json:"paid_at"`
	Notes         string               `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *ServiceRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (r *ServiceRecord) validateWorker() error {
	switch r.WorkerType {
	case WorkerTypeEmployee:
		if r.EmployeeName == nil || *r.EmployeeName == "" {
			return errors.New("employee worker requires employee_name")
		}
	case WorkerTypeOwner:
		if r.EmployeeName != nil {
			return errors.New("owner worker must not carry employee_name")
		}
	default:
		return errors.New("invalid worker type")
	}
	return nil
}

type NewServiceRecord struct {
	ServiceId    string          `json:"service_id" validate:"required"`
	ServiceDate  time.Time       `json:"service_date" validate:"required"`
	CustomerName string          `json:"customer_name"`
	WorkerType   WorkerType      `json:"worker_type" validate:"required"`
	EmployeeName *string         `json:"employee_name"`
	Amount       *decimal.Decimal `json:"amount"`
	Notes        string          `json:"notes"`
}

// CreateServiceRecord inserts the record and publishes the created event. The
// amount defaults to the service's catalog price when not given.
func CreateServiceRecord(ctx context.Context, input *NewServiceRecord) (*ServiceRecord, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id not found in context")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	var record *ServiceRecord
	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		service, err := GetServiceById(tx, userId, input.ServiceId)
		if err != nil {
			return err
		}
		amount := service.Price
		if input.Amount != nil {
			amount = *input.Amount
		}
		if amount.Sign() < 0 {
			return errors.New("amount must not be negative")
		}

		record = &ServiceRecord{
			UserId:        userId,
			ServiceId:     service.ID,
			ServiceDate:   input.ServiceDate,
			CustomerName:  input.CustomerName,
			WorkerType:    input.WorkerType,
			EmployeeName:  input.EmployeeName,
			Amount:        utils.Round2(amount),
			PaymentStatus: ServicePaymentStatusPending,
			Notes:         input.Notes,
		}
		if err := record.validateWorker(); err != nil {
			return err
		}
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		return PublishEvent(ctx, tx, userId, record.ServiceDate, record.ID, EventReferenceTypeServiceRecord, record, nil, EventActionCreate)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func GetServiceRecordById(tx *gorm.DB, userId string, recordId string) (*ServiceRecord, error) {
	var record ServiceRecord
	if err := tx.Where("user_id = ? AND id = ?", userId, recordId).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

// MarkServiceRecordPaid moves a pending record to paid. Paid records count
// toward service income; the update event carries the transition for the
// handlers. A cancelled record cannot be paid.
func MarkServiceRecordPaid(ctx context.Context, recordId string) (*ServiceRecord, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id not found in context")
	}

	var updated *ServiceRecord
	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		record, err := GetServiceRecordById(tx, userId, recordId)
		if err != nil {
			return err
		}
		if record.PaymentStatus == ServicePaymentStatusPaid {
			updated = record
			return nil
		}
		if record.PaymentStatus == ServicePaymentStatusCancelled {
			return errors.New("cancelled service record cannot be paid")
		}
		old := *record

		now := time.Now().UTC()
		record.PaymentStatus = ServicePaymentStatusPaid
		record.PaidAt = &now
		if err := tx.Model(&ServiceRecord{}).
			Where("user_id = ? AND id = ?", userId, recordId).
			Updates(map[string]interface{}{"payment_status": ServicePaymentStatusPaid, "paid_at": now}).Error; err != nil {
			return err
		}
		updated = record
		return PublishEvent(ctx, tx, userId, now, record.ID, EventReferenceTypeServiceRecord, record, &old, EventActionUpdate)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CancelServiceRecord voids a record. A paid record must be deleted instead,
// so the income its payment produced is explicitly unwound.
func CancelServiceRecord(ctx context.Context, recordId string) (*ServiceRecord, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id not found in context")
	}

	var updated *ServiceRecord
	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		record, err := GetServiceRecordById(tx, userId, recordId)
		if err != nil {
			return err
		}
		if record.PaymentStatus == ServicePaymentStatusCancelled {
			updated = record
			return nil
		}
		if record.PaymentStatus == ServicePaymentStatusPaid {
			return errors.New("paid service record cannot be cancelled")
		}
		old := *record

		record.PaymentStatus = ServicePaymentStatusCancelled
		if err := tx.Model(&ServiceRecord{}).
			Where("user_id = ? AND id = ?", userId, recordId).
			Update("payment_status", ServicePaymentStatusCancelled).Error; err != nil {
			return err
		}
		updated = record
		return PublishEvent(ctx, tx, userId, time.Now().UTC(), record.ID, EventReferenceTypeServiceRecord, record, &old, EventActionUpdate)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteServiceRecord removes the record and publishes the delete event.
func DeleteServiceRecord(ctx context.Context, recordId string) error {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return errors.New("user id not found in context")
	}

	db := config.GetDB()
	return db.Transaction(func(tx *gorm.DB) error {
		record, err := GetServiceRecordById(tx, userId, recordId)
		if err != nil {
			return err
		}
		if err := tx.Where("user_id = ? AND id = ?", userId, recordId).Delete(&ServiceRecord{}).Error; err != nil {
			return err
		}
		return PublishEvent(ctx, tx, userId, time.Now().UTC(), record.ID, EventReferenceTypeServiceRecord, nil, record, EventActionDelete)
	})
}
