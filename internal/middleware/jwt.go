package middleware

import (
	"gift_registry/internal/domain" // Importing domain models
	"gift_registry/internal/utils"  // JWT utility functions
	"net/http"                      // HTTP status codes
	"strings"                       // String manipulation

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gorm.io/gorm"               // GORM ORM library
)

const (
	userKey   = "user"   // *domain.User of the caller
	userIDKey = "userID" // caller id as string
)

// JWTAuthMiddleware validates the bearer token and loads the user it names
func JWTAuthMiddleware(secret string, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		// Check if the Authorization header is present and properly formatted
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ") // Extract the token string
		claims, err := utils.ParseJWT(tokenStr, secret)       // Parse the JWT token
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		var user domain.User
		// The subject must still resolve to a stored user
		if err := db.WithContext(c.Request.Context()).Where("id = ?", claims.Subject).First(&user).Error; err != nil {
			logrus.WithField("user_id", claims.Subject).Debug("token subject not found")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			return
		}
		c.Set(userKey, &user)     // Store user in context
		c.Set(userIDKey, user.ID) // Store userID in context
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil outside JWTAuthMiddleware
func CurrentUser(c *gin.Context) *domain.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*domain.User)
	return u
}
