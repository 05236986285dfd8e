package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PendingUserStatus string

const (
	PendingUserStatusPending   PendingUserStatus = "pending"
	PendingUserStatusCompleted PendingUserStatus = "completed"
)

// PendingUser is a demo request captured before the account exists
type PendingUser struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Email          string            `gorm:"size:255;not null;index" json:"email"`
	Name           string            `gorm:"size:255;not null" json:"name"`
	Telegram       *string           `gorm:"size:100" json:"telegram,omitempty"`
	Country        string            `gorm:"size:100;not null" json:"country"`
	ReferredByCode *string           `gorm:"size:15" json:"referred_by_code,omitempty"`
	Status         PendingUserStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	ClerkUserID    *string           `gorm:"size:191;index" json:"clerk_user_id,omitempty"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func (PendingUser) TableName() string {
	return "pending_users"
}

func (p *PendingUser) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
