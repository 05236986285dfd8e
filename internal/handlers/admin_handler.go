package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"affiliate-platform/internal/models"
	"affiliate-platform/internal/services"
	"affiliate-platform/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MaxUploadSize bounds admin image uploads
const MaxUploadSize = 5 << 20

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type AdminHandler struct {
	notificationService *services.NotificationService
	referralService     *services.ReferralService
	store               storage.ObjectStore
	log                 logrus.FieldLogger
}

// NewAdminHandler wires the admin endpoints; store may be nil when object
// storage is not configured.
func NewAdminHandler(
	notificationService *services.NotificationService,
	referralService *services.ReferralService,
	store storage.ObjectStore,
	log logrus.FieldLogger,
) *AdminHandler {
	return &AdminHandler{
		notificationService: notificationService,
		referralService:     referralService,
		store:               store,
		log:                 log,
	}
}

// CreateNotification stores a notification and broadcasts it to every user
// POST /api/admin/notifications
func (h *AdminHandler) CreateNotification(c *gin.Context) {
	var req struct {
		Type    string                   `json:"type" binding:"required,oneof=success info warning error prize"`
		Title   string                   `json:"title" binding:"required,max=100"`
		Message string                   `json:"message" binding:"required,max=500"`
		Data    *models.NotificationData `json:"data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	result, err := h.notificationService.CreateAndBroadcast(c.Request.Context(), services.CreateNotificationInput{
		Type:    models.NotificationType(req.Type),
		Title:   req.Title,
		Message: req.Message,
		Data:    req.Data,
	})
	if err != nil {
		if result == nil {
			respondError(c, h.log, err)
			return
		}
		// Stored but not fanned out; the redelivery job picks it up.
		h.log.WithError(err).WithField("notification_id", result.Notification.ID).
			Warn("notification created but broadcast failed")
		c.JSON(http.StatusCreated, gin.H{
			"success": true,
			"data":    result,
			"warning": "Notification created but broadcast failed; delivery will be retried",
		})
		return
	}

	respondData(c, http.StatusCreated, result)
}

// GetNotifications pages through every notification
// GET /api/admin/notifications?limit=&offset=
func (h *AdminHandler) GetNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	notifications, total, err := h.notificationService.ListNotifications(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    notifications,
		"total":   total,
	})
}

// DeliverNotification re-runs the fan-out for one notification
// POST /api/admin/notifications/:id/deliver
func (h *AdminHandler) DeliverNotification(c *gin.Context) {
	id, ok := notificationIDParam(c)
	if !ok {
		return
	}

	result, err := h.notificationService.Deliver(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondData(c, http.StatusOK, result)
}

// UpdateReferralStatus completes or cancels a pending referral
// PATCH /api/admin/referrals/:id/status
func (h *AdminHandler) UpdateReferralStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondFailure(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid referral ID", nil)
		return
	}

	var req struct {
		Status string `json:"status" binding:"required,oneof=completed cancelled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	edge, err := h.referralService.UpdateTrackingStatus(c.Request.Context(), uint(id), models.ReferralStatus(req.Status))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"referral_id": edge.ID,
		"status":      edge.Status,
	}).Info("referral status updated")
	respondData(c, http.StatusOK, edge)
}

// GetPendingUser looks up the latest demo request for an email
// GET /api/admin/pending-users?email=
func (h *AdminHandler) GetPendingUser(c *gin.Context) {
	var query struct {
		Email string `form:"email" binding:"required,email"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindingError(c, err)
		return
	}

	user, err := h.referralService.GetPendingUserByEmail(c.Request.Context(), query.Email)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if user == nil {
		respondFailure(c, http.StatusNotFound, "NOT_FOUND", "Pending user not found", nil)
		return
	}

	respondData(c, http.StatusOK, user)
}

// UploadImage stores an image in the bucket and returns its public URL
// POST /api/admin/uploads
func (h *AdminHandler) UploadImage(c *gin.Context) {
	if h.store == nil {
		respondFailure(c, http.StatusServiceUnavailable, "STORAGE_DISABLED", "Object storage is not configured", nil)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+1<<20)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondFailure(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File must be at most 5MB", nil)
			return
		}
		respondFailure(c, http.StatusBadRequest, "VALIDATION_ERROR", "Multipart field \"file\" is required", nil)
		return
	}
	if fileHeader.Size > MaxUploadSize {
		respondFailure(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File must be at most 5MB", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadSize+1))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if len(data) > MaxUploadSize {
		respondFailure(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File must be at most 5MB", nil)
		return
	}

	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		respondFailure(c, http.StatusBadRequest, "UNSUPPORTED_MEDIA_TYPE", "Only PNG, JPEG, GIF and WebP images are accepted", nil)
		return
	}

	key := "uploads/" + uuid.NewString() + ext
	url, err := h.store.Upload(c.Request.Context(), key, contentType, bytes.NewReader(data))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.log.WithFields(logrus.Fields{"key": key, "size": len(data)}).Info("image uploaded")
	respondData(c, http.StatusCreated, gin.H{
		"key":          key,
		"url":          url,
		"content_type": contentType,
		"size":         len(data),
	})
}
