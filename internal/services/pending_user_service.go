package services

import (
	"context"
	"errors"
	"strings"

	"affiliate-platform/internal/metrics"
	"affiliate-platform/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PendingUserInput is a demo request as submitted by a visitor
type PendingUserInput struct {
	Email          string
	Name           string
	Country        string
	Telegram       string
	ReferredByCode string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// GetPendingUserByEmail returns the most recent demo request for email, or nil
func (s *ReferralService) GetPendingUserByEmail(ctx context.Context, email string) (*models.PendingUser, error) {
	user, err := s.repo.GetLatestPendingUser(ctx, normalizeEmail(email))
	if err != nil {
		return nil, storageError("failed to load pending user", err)
	}
	return user, nil
}

// CreatePendingUser captures a demo request. At most one pending request may
// exist per email; the check is read-then-write and backed by a partial
// unique index where the database supports it.
func (s *ReferralService) CreatePendingUser(ctx context.Context, input PendingUserInput) (*models.PendingUser, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, validationError("INVALID_EMAIL", "email is required", nil)
	}

	user := &models.PendingUser{
		Email:    email,
		Name:     strings.TrimSpace(input.Name),
		Country:  strings.TrimSpace(input.Country),
		Telegram: optional(input.Telegram),
		Status:   models.PendingUserStatusPending,
	}

	if code := NormalizeReferralCode(input.ReferredByCode); code != "" {
		referrer, err := s.repo.GetUserReferralByCode(ctx, code)
		if err != nil {
			return nil, storageError("failed to resolve referral code", err)
		}
		if referrer == nil {
			return nil, validationError("INVALID_REFERRAL_CODE", "Referral code does not exist", map[string]string{
				"referred_by_code": code,
			})
		}
		user.ReferredByCode = &referrer.ReferralCode
	}

	open, err := s.repo.GetOpenPendingUser(ctx, email)
	if err != nil {
		return nil, storageError("failed to check pending requests", err)
	}
	if open != nil {
		return nil, conflictError("PENDING_REQUEST_EXISTS", "A demo request for this email is already pending", nil)
	}

	now := s.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if err := s.repo.CreatePendingUser(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, conflictError("PENDING_REQUEST_EXISTS", "A demo request for this email is already pending", nil)
		}
		return nil, storageError("failed to create pending user", err)
	}

	metrics.PendingUsersCaptured.Inc()
	s.log.WithFields(logrus.Fields{
		"pending_user_id": user.ID,
		"country":         user.Country,
		"referred":        user.ReferredByCode != nil,
	}).Info("demo request captured")

	if s.leads != nil {
		if err := s.leads.NotifyNewLead(ctx, user); err != nil {
			s.log.WithError(err).Warn("failed to send lead alert")
		}
	}

	return user, nil
}

// LinkPendingUserToIdentity completes the open demo request for email with the
// identity provider's user id. Re-linking the same identity is a no-op.
func (s *ReferralService) LinkPendingUserToIdentity(ctx context.Context, email, clerkUserID string) (*models.PendingUser, error) {
	email = normalizeEmail(email)
	clerkUserID = strings.TrimSpace(clerkUserID)
	if email == "" || clerkUserID == "" {
		return nil, validationError("INVALID_INPUT", "email and clerk_user_id are required", nil)
	}

	user, err := s.repo.GetOpenPendingUser(ctx, email)
	if err != nil {
		return nil, storageError("failed to load pending user", err)
	}
	if user == nil {
		linked, err := s.repo.GetCompletedPendingUser(ctx, email, clerkUserID)
		if err != nil {
			return nil, storageError("failed to load pending user", err)
		}
		if linked != nil {
			return linked, nil
		}
		return nil, notFoundError("No pending demo request for this email")
	}

	now := s.now()
	rows, err := s.repo.CompletePendingUser(ctx, user.ID, clerkUserID, now)
	if err != nil {
		return nil, storageError("failed to link pending user", err)
	}
	if rows == 0 {
		return nil, conflictError("ALREADY_LINKED", "Demo request was completed concurrently", nil)
	}

	user.Status = models.PendingUserStatusCompleted
	user.ClerkUserID = &clerkUserID
	user.CompletedAt = &now
	user.UpdatedAt = now

	s.log.WithFields(logrus.Fields{
		"pending_user_id": user.ID,
		"clerk_user_id":   clerkUserID,
	}).Info("demo request linked to account")

	return user, nil
}
