package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the tenant: every ledger row carries its owner's UserId.
// Authentication/session issuance lives outside this service.
type User struct {
	ID           string    `gorm:"primary_key;size:64" json:"id"`
	Email        string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	BusinessName string    `gorm:"size:255" json:"business_name"`
	IsActive     *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
