package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "affiliate"

var (
	ReferralRegistrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "referral_registrations_total",
		Help:      "Referral records created, by attribution outcome.",
	}, []string{"attribution"})

	PendingUsersCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pending_users_captured_total",
		Help:      "Demo requests captured.",
	})

	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_created_total",
		Help:      "Notifications created, by type.",
	}, []string{"type"})

	NotificationRecipients = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_recipients_total",
		Help:      "Inbox entries inserted by broadcasts.",
	})

	BroadcastFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_broadcast_failures_total",
		Help:      "Broadcast fan-outs that failed and left a draft behind.",
	})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// GinMiddleware records request latency per matched route
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
