package middleware

import (
	"gift_registry/internal/config" // Admin allow-list
	"gift_registry/internal/domain" // Importing domain models
	"net/http"                      // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework
)

// IsAdmin reports whether u is on the admin allow-list or flagged as admin
func IsAdmin(cfg *config.Config, u *domain.User) bool {
	if u == nil {
		return false
	}
	return u.IsAdmin || cfg.IsAdminEmail(u.Email)
}

// AdminOnlyMiddleware rejects callers that are not admins. Must run after JWTAuthMiddleware.
func AdminOnlyMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if !IsAdmin(cfg, user) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}
