package handlers

import (
	"net/http"

	"affiliate-platform/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NotificationHandler serves the signed-in user's inbox
type NotificationHandler struct {
	notificationService *services.NotificationService
	log                 logrus.FieldLogger
}

func NewNotificationHandler(notificationService *services.NotificationService, log logrus.FieldLogger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		log:                 log,
	}
}

// GetNotifications returns the inbox, newest first
// GET /api/notifications
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	items, err := h.notificationService.GetUserNotifications(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"count":   len(items),
	})
}

// GET /api/notifications/unread-count
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	count, err := h.notificationService.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"unread_count": count})
}

// MarkAsRead marks one inbox entry read; repeating it is a no-op
// PATCH /api/notifications/:id/read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := notificationIDParam(c)
	if !ok {
		return
	}

	if err := h.notificationService.MarkAsRead(c.Request.Context(), userID, id); err != nil {
		respondError(c, h.log, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"id": id, "read": true})
}

// PATCH /api/notifications/read-all
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	updated, err := h.notificationService.MarkAllAsRead(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"updated": updated})
}

// DeleteNotification hides one entry from the inbox
// DELETE /api/notifications/:id
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := notificationIDParam(c)
	if !ok {
		return
	}

	if err := h.notificationService.SoftDeleteForUser(c.Request.Context(), userID, id); err != nil {
		respondError(c, h.log, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}

// DELETE /api/notifications
func (h *NotificationHandler) DeleteAllNotifications(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	deleted, err := h.notificationService.SoftDeleteAllForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"deleted": deleted})
}

func notificationIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondFailure(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid notification ID", nil)
		return uuid.Nil, false
	}
	return id, true
}
