package repository

import (
	"context"
	"errors"
	"time"

	"affiliate-platform/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GetOpenPendingUser returns the pending-status row for email, or nil
func (r *Repository) GetOpenPendingUser(ctx context.Context, email string) (*models.PendingUser, error) {
	var user models.PendingUser
	err := r.db.WithContext(ctx).
		Where("email = ? AND status = ?", email, models.PendingUserStatusPending).
		Order("created_at DESC").
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetLatestPendingUser returns the most recent row for email regardless of status
func (r *Repository) GetLatestPendingUser(ctx context.Context, email string) (*models.PendingUser, error) {
	var user models.PendingUser
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at DESC").
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetCompletedPendingUser finds the row already linked to clerkUserID for email
func (r *Repository) GetCompletedPendingUser(ctx context.Context, email, clerkUserID string) (*models.PendingUser, error) {
	var user models.PendingUser
	err := r.db.WithContext(ctx).
		Where("email = ? AND status = ? AND clerk_user_id = ?", email, models.PendingUserStatusCompleted, clerkUserID).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreatePendingUser inserts a demo request
func (r *Repository) CreatePendingUser(ctx context.Context, user *models.PendingUser) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// CompletePendingUser links a pending row to an identity. Zero rows means it
// was no longer pending.
func (r *Repository) CompletePendingUser(ctx context.Context, id uuid.UUID, clerkUserID string, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PendingUser{}).
		Where("id = ? AND status = ?", id, models.PendingUserStatusPending).
		Updates(map[string]interface{}{
			"status":        models.PendingUserStatusCompleted,
			"clerk_user_id": clerkUserID,
			"completed_at":  now,
			"updated_at":    now,
		})
	return result.RowsAffected, result.Error
}
