package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	userIDKey = "user_id"
	claimsKey = "claims"

	// AdminRole is the claim value that grants admin capability
	AdminRole = "admin"
)

func abortUnauthorized(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// AuthMiddleware validates JWT tokens and protects routes
func AuthMiddleware(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header required")
			return
		}

		// Extract token from "Bearer <token>" format
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization header format. Expected: Bearer <token>")
			return
		}

		claims, err := ValidateToken(parts[1])
		if err != nil {
			log.WithError(err).Debug("token validation failed")
			abortUnauthorized(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
			return
		}

		c.Set(userIDKey, claims.Subject)
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// GetUserID retrieves the user ID from the context
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(userIDKey)
	if !exists {
		return "", false
	}

	id, ok := userID.(string)
	return id, ok && id != ""
}

// GetClaims retrieves the verified token claims from the context
func GetClaims(c *gin.Context) (*Claims, bool) {
	value, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*Claims)
	return claims, ok
}

// AdminPolicy decides who holds the admin capability: tokens carrying the
// admin role, plus any user ids configured out of band.
type AdminPolicy struct {
	userIDs map[string]struct{}
}

func NewAdminPolicy(adminUserIDs []string) *AdminPolicy {
	ids := make(map[string]struct{}, len(adminUserIDs))
	for _, id := range adminUserIDs {
		ids[id] = struct{}{}
	}
	return &AdminPolicy{userIDs: ids}
}

// IsAdmin reports whether the claims grant admin capability
func (p *AdminPolicy) IsAdmin(claims *Claims) bool {
	if claims == nil {
		return false
	}
	if claims.HasRole(AdminRole) {
		return true
	}
	_, ok := p.userIDs[claims.Subject]
	return ok
}

// RequireAdmin must run after AuthMiddleware
func (p *AdminPolicy) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			abortUnauthorized(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
			return
		}
		if !p.IsAdmin(claims) {
			abortUnauthorized(c, http.StatusForbidden, "FORBIDDEN", "Admin access required")
			return
		}
		c.Next()
	}
}

// WebhookSecret guards server-to-server routes with a shared header secret.
// An empty secret disables the check.
func WebhookSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			abortUnauthorized(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid webhook secret")
			return
		}
		c.Next()
	}
}
