package handlers

import (
	"net/http"
	"time"

	"affiliate-platform/internal/auth"
	"affiliate-platform/internal/logger"
	"affiliate-platform/internal/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RouterConfig carries everything the HTTP surface needs
type RouterConfig struct {
	Referrals      *ReferralHandler
	Notifications  *NotificationHandler
	Admin          *AdminHandler
	AdminPolicy    *auth.AdminPolicy
	AllowedOrigins []string
	WebhookSecret  string
	Log            logrus.FieldLogger
}

// NewRouter builds the gin engine with every route mounted
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinMiddleware(cfg.Log))
	router.Use(metrics.GinMiddleware())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With", "X-Webhook-Secret"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", metrics.Handler())

	api := router.Group("/api")

	// Demo request capture is public; linking is called by the identity webhook
	api.POST("/referrals/pending-user", cfg.Referrals.CapturePendingUser)
	api.PATCH("/referrals/pending-user", auth.WebhookSecret(cfg.WebhookSecret), cfg.Referrals.LinkPendingUser)

	protected := api.Group("")
	protected.Use(auth.AuthMiddleware(cfg.Log))
	{
		referrals := protected.Group("/referrals")
		referrals.GET("/me", cfg.Referrals.GetMyReferral)
		referrals.POST("/register", cfg.Referrals.Register)
		referrals.GET("/validate-code", cfg.Referrals.ValidateCode)
		referrals.PUT("/update-code", cfg.Referrals.UpdateCode)
		referrals.GET("/stats", cfg.Referrals.GetReferralStats)
		referrals.GET("/referrals", cfg.Referrals.GetReferrals)

		notifications := protected.Group("/notifications")
		notifications.GET("", cfg.Notifications.GetNotifications)
		notifications.GET("/unread-count", cfg.Notifications.GetUnreadCount)
		notifications.PATCH("/read-all", cfg.Notifications.MarkAllAsRead)
		notifications.PATCH("/:id/read", cfg.Notifications.MarkAsRead)
		notifications.DELETE("", cfg.Notifications.DeleteAllNotifications)
		notifications.DELETE("/:id", cfg.Notifications.DeleteNotification)

		admin := protected.Group("/admin")
		admin.Use(cfg.AdminPolicy.RequireAdmin())
		admin.POST("/notifications", cfg.Admin.CreateNotification)
		admin.GET("/notifications", cfg.Admin.GetNotifications)
		admin.POST("/notifications/:id/deliver", cfg.Admin.DeliverNotification)
		admin.PATCH("/referrals/:id/status", cfg.Admin.UpdateReferralStatus)
		admin.GET("/pending-users", cfg.Admin.GetPendingUser)
		admin.POST("/uploads", cfg.Admin.UploadImage)
	}

	return router
}
