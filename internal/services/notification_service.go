package services

import (
	"context"
	"errors"
	"time"

	"affiliate-platform/internal/metrics"
	"affiliate-platform/internal/models"
	"affiliate-platform/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// redeliveryBatch caps how many drafts one RedeliverPending pass handles
const redeliveryBatch = 50

// UserDirectory enumerates every known platform user
type UserDirectory interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

type NotificationService struct {
	repo  *repository.Repository
	users UserDirectory
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewNotificationService(repo *repository.Repository, users UserDirectory, log logrus.FieldLogger) *NotificationService {
	return &NotificationService{
		repo:  repo,
		users: users,
		log:   log.WithField("component", "notifications"),
		now:   time.Now,
	}
}

// CreateNotificationInput is validated by the HTTP layer before reaching here
type CreateNotificationInput struct {
	Type    models.NotificationType
	Title   string
	Message string
	Data    *models.NotificationData
}

// BroadcastResult pairs a notification with the edges created for it
type BroadcastResult struct {
	Notification   *models.Notification `json:"notification"`
	BroadcastCount int64                `json:"broadcast_count"`
}

// CreateAndBroadcast stores a notification and fans it out to every user.
// When the fan-out fails the notification is still returned with a zero
// count together with the error; it stays in draft and can be redelivered.
func (s *NotificationService) CreateAndBroadcast(ctx context.Context, input CreateNotificationInput) (*BroadcastResult, error) {
	now := s.now()
	n := &models.Notification{
		Type:           input.Type,
		Title:          input.Title,
		Message:        input.Message,
		Data:           input.Data,
		DeliveryStatus: models.DeliveryStatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return nil, storageError("failed to create notification", err)
	}
	metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()

	result := &BroadcastResult{Notification: n}
	count, err := s.deliver(ctx, n)
	if err != nil {
		return result, err
	}
	result.BroadcastCount = count
	return result, nil
}

// Deliver (re)runs the fan-out for an existing notification. Safe to retry:
// users that already have the notification are skipped.
func (s *NotificationService) Deliver(ctx context.Context, id uuid.UUID) (*BroadcastResult, error) {
	n, err := s.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return nil, storageError("failed to load notification", err)
	}
	if n == nil {
		return nil, notFoundError("Notification not found")
	}

	result := &BroadcastResult{Notification: n}
	count, err := s.deliver(ctx, n)
	if err != nil {
		return result, err
	}
	result.BroadcastCount = count
	return result, nil
}

func (s *NotificationService) deliver(ctx context.Context, n *models.Notification) (int64, error) {
	entry := s.log.WithField("notification_id", n.ID)

	userIDs, err := s.users.ListUserIDs(ctx)
	if err != nil {
		metrics.BroadcastFailures.Inc()
		entry.WithError(err).Error("failed to enumerate users for broadcast")
		return 0, storageError("failed to enumerate users", err)
	}

	now := s.now()
	seen := make(map[string]struct{}, len(userIDs))
	edges := make([]models.UserNotification, 0, len(userIDs))
	for _, userID := range userIDs {
		if userID == "" {
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		edges = append(edges, models.UserNotification{
			UserID:         userID,
			NotificationID: n.ID,
			CreatedAt:      now,
		})
	}

	inserted, err := s.repo.InsertUserNotifications(ctx, edges)
	if err != nil {
		metrics.BroadcastFailures.Inc()
		entry.WithError(err).WithField("recipients", len(edges)).Error("broadcast fan-out failed")
		return 0, storageError("failed to broadcast notification", err)
	}
	metrics.NotificationRecipients.Add(float64(inserted))

	recipients, err := s.repo.MarkNotificationDelivered(ctx, n.ID, now)
	if err != nil {
		// Edges exist; the notification stays draft and the next
		// redelivery pass will flip it.
		entry.WithError(err).Warn("failed to mark notification delivered")
		return inserted, nil
	}

	n.DeliveryStatus = models.DeliveryStatusDelivered
	n.RecipientCount = recipients
	n.DeliveredAt = &now
	n.UpdatedAt = now

	entry.WithFields(logrus.Fields{
		"inserted":   inserted,
		"recipients": recipients,
	}).Info("notification broadcast")

	return inserted, nil
}

// RedeliverPending delivers drafts older than minAge. Returns how many were
// delivered; failures are joined into the returned error.
func (s *NotificationService) RedeliverPending(ctx context.Context, minAge time.Duration) (int, error) {
	drafts, err := s.repo.ListDraftNotifications(ctx, s.now().Add(-minAge), redeliveryBatch)
	if err != nil {
		return 0, storageError("failed to list draft notifications", err)
	}

	var errs []error
	delivered := 0
	for i := range drafts {
		if _, err := s.deliver(ctx, &drafts[i]); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}

// ListNotifications pages through all notifications, newest first
func (s *NotificationService) ListNotifications(ctx context.Context, limit, offset int) ([]models.Notification, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	notifications, total, err := s.repo.ListNotifications(ctx, limit, offset)
	if err != nil {
		return nil, 0, storageError("failed to list notifications", err)
	}
	return notifications, total, nil
}

// GetUserNotifications returns the user's inbox, newest first, excluding
// soft-deleted entries.
func (s *NotificationService) GetUserNotifications(ctx context.Context, userID string) ([]models.InboxItem, error) {
	edges, err := s.repo.ListInbox(ctx, userID)
	if err != nil {
		return nil, storageError("failed to load notifications", err)
	}

	items := make([]models.InboxItem, 0, len(edges))
	for _, edge := range edges {
		if edge.Notification == nil {
			continue
		}
		items = append(items, models.InboxItem{
			Notification: *edge.Notification,
			Read:         edge.ReadAt != nil,
			ReadAt:       edge.ReadAt,
			ReceivedAt:   edge.CreatedAt,
		})
	}
	return items, nil
}

// UnreadCount counts unread, non-deleted inbox entries
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, storageError("failed to count notifications", err)
	}
	return count, nil
}

// MarkAsRead sets read_at once. Repeating the call is a no-op.
func (s *NotificationService) MarkAsRead(ctx context.Context, userID string, notificationID uuid.UUID) error {
	rows, err := s.repo.MarkUserNotificationRead(ctx, userID, notificationID, s.now())
	if err != nil {
		return storageError("failed to mark notification read", err)
	}
	if rows > 0 {
		return nil
	}
	return s.requireEdge(ctx, userID, notificationID)
}

// MarkAllAsRead marks every unread inbox entry of the user
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	rows, err := s.repo.MarkAllUserNotificationsRead(ctx, userID, s.now())
	if err != nil {
		return 0, storageError("failed to mark notifications read", err)
	}
	return rows, nil
}

// SoftDeleteForUser hides one notification from the user's inbox
func (s *NotificationService) SoftDeleteForUser(ctx context.Context, userID string, notificationID uuid.UUID) error {
	rows, err := s.repo.SoftDeleteUserNotification(ctx, userID, notificationID, s.now())
	if err != nil {
		return storageError("failed to delete notification", err)
	}
	if rows > 0 {
		return nil
	}
	return s.requireEdge(ctx, userID, notificationID)
}

// SoftDeleteAllForUser hides every notification from the user's inbox
func (s *NotificationService) SoftDeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	rows, err := s.repo.SoftDeleteAllUserNotifications(ctx, userID, s.now())
	if err != nil {
		return 0, storageError("failed to delete notifications", err)
	}
	return rows, nil
}

func (s *NotificationService) requireEdge(ctx context.Context, userID string, notificationID uuid.UUID) error {
	exists, err := s.repo.UserNotificationExists(ctx, userID, notificationID)
	if err != nil {
		return storageError("failed to load notification", err)
	}
	if !exists {
		return notFoundError("Notification not found")
	}
	return nil
}
