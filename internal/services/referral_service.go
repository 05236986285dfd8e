package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"affiliate-platform/internal/metrics"
	"affiliate-platform/internal/models"
	"affiliate-platform/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// maxCodeAttempts bounds random code generation in RegisterUser
	maxCodeAttempts = 10

	maxSuggestions        = 5
	maxSuggestionAttempts = 20
)

// LeadNotifier is told about every captured demo request
type LeadNotifier interface {
	NotifyNewLead(ctx context.Context, user *models.PendingUser) error
}

type ReferralService struct {
	repo  *repository.Repository
	log   logrus.FieldLogger
	leads LeadNotifier

	now          func() time.Time
	generateCode func() (string, error)
}

func NewReferralService(repo *repository.Repository, log logrus.FieldLogger) *ReferralService {
	return &ReferralService{
		repo:         repo,
		log:          log.WithField("component", "referrals"),
		now:          time.Now,
		generateCode: GenerateReferralCode,
	}
}

// WithLeadNotifier attaches an alert sink for new demo requests
func (s *ReferralService) WithLeadNotifier(n LeadNotifier) *ReferralService {
	s.leads = n
	return s
}

// RegistrationResult describes what RegisterUser did
type RegistrationResult struct {
	Record  *models.UserReferral `json:"record"`
	Created bool                 `json:"created"`
	// ReferrerNotFound is set when a referral code was supplied but did not
	// resolve to another user. Registration still succeeds.
	ReferrerNotFound bool `json:"referrer_not_found"`
}

// GetUserReferralData returns the user's referral record; nil means not registered
func (s *ReferralService) GetUserReferralData(ctx context.Context, userID string) (*models.UserReferral, error) {
	record, err := s.repo.GetUserReferral(ctx, userID)
	if err != nil {
		return nil, storageError("failed to load referral record", err)
	}
	return record, nil
}

// CheckReferralCodeAvailability reports whether code is free, treating the
// record owned by excludeUserID as not taking it.
func (s *ReferralService) CheckReferralCodeAvailability(ctx context.Context, code string, excludeUserID string) (bool, error) {
	code = NormalizeReferralCode(code)
	if code == "" {
		return false, nil
	}

	count, err := s.repo.CountReferralCode(ctx, code, excludeUserID)
	if err != nil {
		return false, storageError("failed to check referral code", err)
	}
	return count == 0, nil
}

// ValidateAndCheckCode runs format validation, then availability for userID.
// Taken codes come back invalid with suggestions.
func (s *ReferralService) ValidateAndCheckCode(ctx context.Context, candidate, userID string) (CodeValidation, error) {
	result := ValidateCustomReferralCode(candidate)
	if !result.IsValid {
		return result, nil
	}

	available, err := s.CheckReferralCodeAvailability(ctx, result.Code, userID)
	if err != nil {
		return result, err
	}
	if available {
		return result, nil
	}

	suggestions, err := s.SuggestReferralCodes(ctx, result.Code, userID)
	if err != nil {
		return result, err
	}

	result.IsValid = false
	result.Taken = true
	result.Error = "This referral code is already taken"
	result.Suggestions = suggestions
	return result, nil
}

// SuggestReferralCodes derives available alternatives from a taken code
func (s *ReferralService) SuggestReferralCodes(ctx context.Context, base, excludeUserID string) ([]string, error) {
	base = NormalizeReferralCode(base)
	seen := make(map[string]struct{}, maxSuggestions)
	suggestions := make([]string, 0, maxSuggestions)

	for attempt := 0; attempt < maxSuggestionAttempts && len(suggestions) < maxSuggestions; attempt++ {
		candidate, err := suggestionCandidate(base)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}

		if !ValidateCustomReferralCode(candidate).IsValid {
			continue
		}

		available, err := s.CheckReferralCodeAvailability(ctx, candidate, excludeUserID)
		if err != nil {
			return nil, err
		}
		if available {
			suggestions = append(suggestions, candidate)
		}
	}

	return suggestions, nil
}

// RegisterUser creates the referral record for userID. It is idempotent: an
// existing record is returned unchanged and no second tracking edge is made.
func (s *ReferralService) RegisterUser(ctx context.Context, userID string, referredByCode string) (*RegistrationResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, validationError("INVALID_USER", "user id is required", nil)
	}

	existing, err := s.repo.GetUserReferral(ctx, userID)
	if err != nil {
		return nil, storageError("failed to load referral record", err)
	}
	if existing != nil {
		return &RegistrationResult{Record: existing}, nil
	}

	var referrer *models.UserReferral
	referrerNotFound := false
	if supplied := NormalizeReferralCode(referredByCode); supplied != "" {
		referrer, err = s.repo.GetUserReferralByCode(ctx, supplied)
		if err != nil {
			return nil, storageError("failed to resolve referral code", err)
		}
		if referrer == nil || referrer.UserID == userID {
			referrer = nil
			referrerNotFound = true
		}
	}

	now := s.now()
	record := &models.UserReferral{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if referrer != nil {
		record.ReferredByCode = &referrer.ReferralCode
		record.ReferredByUserID = &referrer.UserID
	}
	result := &RegistrationResult{Record: record, Created: true, ReferrerNotFound: referrerNotFound}

	// A unique violation on the code means another user claimed it after the
	// availability check.
	var code string
	for attempt := 1; ; attempt++ {
		code, err = s.uniqueCode(ctx)
		if err != nil {
			return nil, err
		}
		record.ID = 0
		record.ReferralCode = code

		err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
			if err := tx.CreateUserReferral(ctx, record); err != nil {
				return err
			}
			if referrer == nil {
				return nil
			}
			return tx.CreateReferralTracking(ctx, &models.ReferralTracking{
				ReferrerUserID: referrer.UserID,
				ReferredUserID: userID,
				ReferralCode:   referrer.ReferralCode,
				Status:         models.ReferralStatusPending,
				CreatedAt:      now,
				UpdatedAt:      now,
			})
		})
		if err == nil {
			break
		}

		// A concurrent registration for the same user won the insert.
		if winner, lookupErr := s.repo.GetUserReferral(ctx, userID); lookupErr == nil && winner != nil {
			return &RegistrationResult{Record: winner}, nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) && attempt < maxCodeAttempts {
			s.log.WithFields(logrus.Fields{
				"user_id": userID,
				"code":    code,
				"attempt": attempt,
			}).Warn("referral code claimed concurrently, retrying")
			continue
		}
		return nil, storageError("failed to register referral record", err)
	}

	attribution := "direct"
	switch {
	case referrer != nil:
		attribution = "referred"
	case result.ReferrerNotFound:
		attribution = "referrer_not_found"
	}
	metrics.ReferralRegistrations.WithLabelValues(attribution).Inc()

	s.log.WithFields(logrus.Fields{
		"user_id":     userID,
		"code":        code,
		"attribution": attribution,
	}).Info("registered referral record")

	return result, nil
}

func (s *ReferralService) uniqueCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.generateCode()
		if err != nil {
			return "", storageError("failed to generate referral code", err)
		}
		available, err := s.CheckReferralCodeAvailability(ctx, code, "")
		if err != nil {
			return "", err
		}
		if available {
			return code, nil
		}
	}

	s.log.WithField("attempts", maxCodeAttempts).Error("referral code space exhausted")
	return "", &DomainError{
		Kind:    ErrStorage,
		Code:    "CODE_GENERATION_EXHAUSTED",
		Message: "could not allocate a unique referral code",
		Err:     ErrCodeGenerationExhausted,
	}
}

// UpdateUserReferralCode replaces a user's code. Availability is re-checked at
// write time; callers are expected to have validated the format already.
func (s *ReferralService) UpdateUserReferralCode(ctx context.Context, userID, newCode string) (*models.UserReferral, error) {
	code := NormalizeReferralCode(newCode)
	if code == "" {
		return nil, validationError("INVALID_CODE", "referral code is required", nil)
	}

	record, err := s.repo.GetUserReferral(ctx, userID)
	if err != nil {
		return nil, storageError("failed to load referral record", err)
	}
	if record == nil {
		return nil, notFoundError("Referral record not found")
	}

	available, err := s.CheckReferralCodeAvailability(ctx, code, userID)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, conflictError("CODE_TAKEN", "This referral code is already taken", nil)
	}

	now := s.now()
	rows, err := s.repo.UpdateReferralCode(ctx, userID, code, now)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, conflictError("CODE_TAKEN", "This referral code is already taken", nil)
		}
		return nil, storageError("failed to update referral code", err)
	}
	if rows == 0 {
		return nil, notFoundError("Referral record not found")
	}

	s.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"old_code": record.ReferralCode,
		"new_code": code,
	}).Info("referral code updated")

	record.ReferralCode = code
	record.UpdatedAt = now
	return record, nil
}

// ListReferrals returns the tracking edges where userID is the referrer
func (s *ReferralService) ListReferrals(ctx context.Context, userID string) ([]models.ReferralTracking, error) {
	edges, err := s.repo.ListReferralsByReferrer(ctx, userID)
	if err != nil {
		return nil, storageError("failed to list referrals", err)
	}
	return edges, nil
}

// GetReferralStats counts a referrer's edges per status
func (s *ReferralService) GetReferralStats(ctx context.Context, userID string) (*models.ReferralStats, error) {
	counts, err := s.repo.CountReferralsByStatus(ctx, userID)
	if err != nil {
		return nil, storageError("failed to load referral stats", err)
	}

	stats := &models.ReferralStats{
		Pending:   counts[models.ReferralStatusPending],
		Completed: counts[models.ReferralStatusCompleted],
		Cancelled: counts[models.ReferralStatusCancelled],
	}
	stats.Total = stats.Pending + stats.Completed + stats.Cancelled
	return stats, nil
}

// UpdateTrackingStatus moves a pending edge to completed or cancelled
func (s *ReferralService) UpdateTrackingStatus(ctx context.Context, id uint, status models.ReferralStatus) (*models.ReferralTracking, error) {
	if !status.IsTerminal() {
		return nil, validationError("INVALID_STATUS", "status must be completed or cancelled", nil)
	}

	edge, err := s.repo.GetReferralTracking(ctx, id)
	if err != nil {
		return nil, storageError("failed to load referral", err)
	}
	if edge == nil {
		return nil, notFoundError("Referral not found")
	}
	if edge.Status.IsTerminal() {
		return nil, conflictError("INVALID_TRANSITION", "Referral is already "+string(edge.Status), nil)
	}

	now := s.now()
	rows, err := s.repo.TransitionReferralTracking(ctx, id, status, now)
	if err != nil {
		return nil, storageError("failed to update referral", err)
	}
	if rows == 0 {
		return nil, conflictError("INVALID_TRANSITION", "Referral is no longer pending", nil)
	}

	edge.Status = status
	edge.UpdatedAt = now
	if status == models.ReferralStatusCompleted {
		edge.CompletedAt = &now
	}
	return edge, nil
}
