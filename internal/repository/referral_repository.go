package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"affiliate-platform/internal/models"

	"gorm.io/gorm"
)

// GetUserReferral returns the referral record of a user, or nil when absent
func (r *Repository) GetUserReferral(ctx context.Context, userID string) (*models.UserReferral, error) {
	var record models.UserReferral
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetUserReferralByCode resolves a code (case-insensitively) to its owner's record
func (r *Repository) GetUserReferralByCode(ctx context.Context, code string) (*models.UserReferral, error) {
	var record models.UserReferral
	err := r.db.WithContext(ctx).
		Where("UPPER(referral_code) = ?", strings.ToUpper(code)).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// CountReferralCode counts records holding code, ignoring excludeUserID's own record
func (r *Repository) CountReferralCode(ctx context.Context, code string, excludeUserID string) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).
		Model(&models.UserReferral{}).
		Where("UPPER(referral_code) = ?", strings.ToUpper(code))
	if excludeUserID != "" {
		query = query.Where("user_id <> ?", excludeUserID)
	}
	err := query.Count(&count).Error
	return count, err
}

// CreateUserReferral inserts a new referral record
func (r *Repository) CreateUserReferral(ctx context.Context, record *models.UserReferral) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// UpdateReferralCode overwrites a user's code. Returns the number of rows touched.
func (r *Repository) UpdateReferralCode(ctx context.Context, userID, code string, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.UserReferral{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"referral_code": code,
			"updated_at":    now,
		})
	return result.RowsAffected, result.Error
}

// CreateReferralTracking inserts a referrer→referred edge
func (r *Repository) CreateReferralTracking(ctx context.Context, edge *models.ReferralTracking) error {
	return r.db.WithContext(ctx).Create(edge).Error
}

// GetReferralTracking retrieves an edge by ID
func (r *Repository) GetReferralTracking(ctx context.Context, id uint) (*models.ReferralTracking, error) {
	var edge models.ReferralTracking
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&edge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

// TransitionReferralTracking moves a pending edge to status. Terminal edges are
// left untouched; the returned count is zero in that case.
func (r *Repository) TransitionReferralTracking(ctx context.Context, id uint, status models.ReferralStatus, now time.Time) (int64, error) {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}
	if status == models.ReferralStatusCompleted {
		updates["completed_at"] = now
	}

	result := r.db.WithContext(ctx).
		Model(&models.ReferralTracking{}).
		Where("id = ? AND status = ?", id, models.ReferralStatusPending).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// ListReferralsByReferrer returns the edges a referrer created, newest first
func (r *Repository) ListReferralsByReferrer(ctx context.Context, referrerUserID string) ([]models.ReferralTracking, error) {
	var edges []models.ReferralTracking
	err := r.db.WithContext(ctx).
		Where("referrer_user_id = ?", referrerUserID).
		Order("created_at DESC").
		Find(&edges).Error
	if err != nil {
		return nil, err
	}
	return edges, nil
}

// CountReferralsByStatus aggregates a referrer's edges by status
func (r *Repository) CountReferralsByStatus(ctx context.Context, referrerUserID string) (map[models.ReferralStatus]int64, error) {
	var rows []struct {
		Status models.ReferralStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.ReferralTracking{}).
		Select("status, COUNT(*) AS count").
		Where("referrer_user_id = ?", referrerUserID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.ReferralStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
