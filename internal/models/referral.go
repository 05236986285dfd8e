package models

import (
	"time"
)

type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusCompleted ReferralStatus = "completed"
	ReferralStatusCancelled ReferralStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed
func (s ReferralStatus) IsTerminal() bool {
	return s == ReferralStatusCompleted || s == ReferralStatusCancelled
}

// UserReferral is the referral record owned by one platform user.
// UserID is the identity provider's subject.
type UserReferral struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           string    `gorm:"uniqueIndex;size:191;not null" json:"user_id"`
	ReferralCode     string    `gorm:"uniqueIndex;size:15;not null" json:"referral_code"`
	ReferredByCode   *string   `gorm:"size:15" json:"referred_by_code,omitempty"`
	ReferredByUserID *string   `gorm:"size:191;index" json:"referred_by_user_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (UserReferral) TableName() string {
	return "user_referrals"
}

// ReferralTracking is one referrer→referred edge
type ReferralTracking struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ReferrerUserID string         `gorm:"size:191;not null;uniqueIndex:idx_referral_pair" json:"referrer_user_id"`
	ReferredUserID string         `gorm:"size:191;not null;uniqueIndex:idx_referral_pair;index" json:"referred_user_id"`
	ReferralCode   string         `gorm:"size:15;not null" json:"referral_code"`
	Status         ReferralStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

func (ReferralTracking) TableName() string {
	return "referral_tracking"
}

// ReferralStats holds per-status counts of a referrer's tracking edges
type ReferralStats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
}
