package repository

import (
	"context"
	"errors"
	"time"

	"affiliate-platform/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// fanOutBatchSize bounds the rows per INSERT when broadcasting
const fanOutBatchSize = 500

// CreateNotification inserts a notification
func (r *Repository) CreateNotification(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// GetNotificationByID retrieves a notification, or nil when absent
func (r *Repository) GetNotificationByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ListNotifications returns notifications newest first plus the total count
func (r *Repository) ListNotifications(ctx context.Context, limit, offset int) ([]models.Notification, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Notification{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []models.Notification
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

// ListDraftNotifications returns undelivered notifications created before cutoff
func (r *Repository) ListDraftNotifications(ctx context.Context, cutoff time.Time, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.WithContext(ctx).
		Where("delivery_status = ? AND created_at <= ?", models.DeliveryStatusDraft, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

// InsertUserNotifications bulk-inserts inbox edges in one transaction, skipping
// pairs that already exist. A failed batch rolls back the whole fan-out.
// Returns the number of rows actually inserted.
func (r *Repository) InsertUserNotifications(ctx context.Context, edges []models.UserNotification) (int64, error) {
	var inserted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(edges); start += fanOutBatchSize {
			end := start + fanOutBatchSize
			if end > len(edges) {
				end = len(edges)
			}
			batch := edges[start:end]

			result := tx.Omit(clause.Associations).
				Clauses(clause.OnConflict{DoNothing: true}).
				Create(&batch)
			if result.Error != nil {
				return result.Error
			}
			inserted += result.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// MarkNotificationDelivered records the recipient count and flips the status
func (r *Repository) MarkNotificationDelivered(ctx context.Context, id uuid.UUID, now time.Time) (int64, error) {
	var recipients int64
	err := r.db.WithContext(ctx).
		Unscoped().
		Model(&models.UserNotification{}).
		Where("notification_id = ?", id).
		Count(&recipients).Error
	if err != nil {
		return 0, err
	}

	err = r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"delivery_status": models.DeliveryStatusDelivered,
			"recipient_count": recipients,
			"delivered_at":    now,
			"updated_at":      now,
		}).Error
	return recipients, err
}

// ListInbox returns a user's non-deleted edges with their notification, newest first
func (r *Repository) ListInbox(ctx context.Context, userID string) ([]models.UserNotification, error) {
	var edges []models.UserNotification
	err := r.db.WithContext(ctx).
		Preload("Notification").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&edges).Error
	if err != nil {
		return nil, err
	}
	return edges, nil
}

// CountUnread counts non-deleted, unread edges for a user
func (r *Repository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UserNotification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error
	return count, err
}

// UserNotificationExists reports whether the edge exists, deleted or not
func (r *Repository) UserNotificationExists(ctx context.Context, userID string, notificationID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Unscoped().
		Model(&models.UserNotification{}).
		Where("user_id = ? AND notification_id = ?", userID, notificationID).
		Count(&count).Error
	return count > 0, err
}

// MarkUserNotificationRead sets read_at once; already-read edges are left alone
func (r *Repository) MarkUserNotificationRead(ctx context.Context, userID string, notificationID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Unscoped().
		Model(&models.UserNotification{}).
		Where("user_id = ? AND notification_id = ? AND read_at IS NULL", userID, notificationID).
		Update("read_at", now)
	return result.RowsAffected, result.Error
}

// MarkAllUserNotificationsRead sets read_at on every unread, non-deleted edge
func (r *Repository) MarkAllUserNotificationsRead(ctx context.Context, userID string, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.UserNotification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", now)
	return result.RowsAffected, result.Error
}

// SoftDeleteUserNotification sets deleted_at on one edge if not already set
func (r *Repository) SoftDeleteUserNotification(ctx context.Context, userID string, notificationID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.UserNotification{}).
		Where("user_id = ? AND notification_id = ?", userID, notificationID).
		Update("deleted_at", now)
	return result.RowsAffected, result.Error
}

// SoftDeleteAllUserNotifications sets deleted_at on all of a user's live edges
func (r *Repository) SoftDeleteAllUserNotifications(ctx context.Context, userID string, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.UserNotification{}).
		Where("user_id = ?", userID).
		Update("deleted_at", now)
	return result.RowsAffected, result.Error
}
