package handlers

import (
	"errors"
	"io"
	"net/http"

	"affiliate-platform/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type ReferralHandler struct {
	referralService *services.ReferralService
	log             logrus.FieldLogger
}

func NewReferralHandler(referralService *services.ReferralService, log logrus.FieldLogger) *ReferralHandler {
	return &ReferralHandler{
		referralService: referralService,
		log:             log,
	}
}

// CapturePendingUser records a demo request
// POST /api/referrals/pending-user
func (h *ReferralHandler) CapturePendingUser(c *gin.Context) {
	var req struct {
		Email          string `json:"email" binding:"required,email,max=255"`
		Name           string `json:"name" binding:"required,max=255"`
		Country        string `json:"country" binding:"required,max=100"`
		Telegram       string `json:"telegram" binding:"max=100"`
		ReferredByCode string `json:"referred_by_code" binding:"max=15"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	user, err := h.referralService.CreatePendingUser(c.Request.Context(), services.PendingUserInput{
		Email:          req.Email,
		Name:           req.Name,
		Country:        req.Country,
		Telegram:       req.Telegram,
		ReferredByCode: req.ReferredByCode,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondData(c, http.StatusCreated, user)
}

// LinkPendingUser completes a demo request once the identity provider has
// created the account, then registers the account's referral record.
// PATCH /api/referrals/pending-user
func (h *ReferralHandler) LinkPendingUser(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required,email"`
		ClerkUserID string `json:"clerk_user_id" binding:"required,max=191"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	ctx := c.Request.Context()
	user, err := h.referralService.LinkPendingUserToIdentity(ctx, req.Email, req.ClerkUserID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	referredBy := ""
	if user.ReferredByCode != nil {
		referredBy = *user.ReferredByCode
	}
	registration, err := h.referralService.RegisterUser(ctx, req.ClerkUserID, referredBy)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if registration.ReferrerNotFound {
		h.log.WithFields(logrus.Fields{
			"user_id": req.ClerkUserID,
			"code":    referredBy,
		}).Warn("referral code no longer resolves; registered without referrer")
	}

	respondData(c, http.StatusOK, gin.H{
		"pending_user": user,
		"referral":     registration.Record,
	})
}

// GetMyReferral returns the caller's referral record, or null if not registered
// GET /api/referrals/me
func (h *ReferralHandler) GetMyReferral(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	record, err := h.referralService.GetUserReferralData(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondData(c, http.StatusOK, record)
}

// Register creates the caller's referral record if it does not exist yet
// POST /api/referrals/register
func (h *ReferralHandler) Register(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req struct {
		ReferredByCode string `json:"referred_by_code" binding:"max=15"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindingError(c, err)
		return
	}

	result, err := h.referralService.RegisterUser(c.Request.Context(), userID, req.ReferredByCode)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if result.ReferrerNotFound {
		h.log.WithFields(logrus.Fields{
			"user_id": userID,
			"code":    req.ReferredByCode,
		}).Warn("unknown referral code at registration")
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	respondData(c, status, result)
}

// ValidateCode checks a custom code's format and availability
// GET /api/referrals/validate-code?code=
func (h *ReferralHandler) ValidateCode(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var query struct {
		Code string `form:"code" binding:"required"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindingError(c, err)
		return
	}

	result, err := h.referralService.ValidateAndCheckCode(c.Request.Context(), query.Code, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondData(c, http.StatusOK, result)
}

// UpdateCode replaces the caller's referral code with a custom one
// PUT /api/referrals/update-code
func (h *ReferralHandler) UpdateCode(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	ctx := c.Request.Context()
	check, err := h.referralService.ValidateAndCheckCode(ctx, req.Code, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if !check.IsValid {
		status, code := http.StatusBadRequest, "INVALID_REFERRAL_CODE"
		if check.Taken {
			status, code = http.StatusConflict, "CODE_TAKEN"
		}
		respondFailure(c, status, code, check.Error, gin.H{"suggestions": check.Suggestions})
		return
	}

	record, err := h.referralService.UpdateUserReferralCode(ctx, userID, check.Code)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondData(c, http.StatusOK, record)
}

// GetReferralStats returns per-status referral counts for the caller
// GET /api/referrals/stats
func (h *ReferralHandler) GetReferralStats(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	stats, err := h.referralService.GetReferralStats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondData(c, http.StatusOK, stats)
}

// GetReferrals returns the users the caller referred
// GET /api/referrals/referrals
func (h *ReferralHandler) GetReferrals(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	referrals, err := h.referralService.ListReferrals(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    referrals,
		"count":   len(referrals),
	})
}
