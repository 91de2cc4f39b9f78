package middleware

import (
	"gift_registry/internal/ratelimit" // Sliding window limiter
	"net/http"                         // HTTP status codes

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// RateLimit rejects a client with 429 once it exceeds the limiter's window for route.
// Limiter backend errors are logged and the request is let through.
func RateLimit(l ratelimit.Limiter, route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := route + ":" + c.ClientIP()
		ok, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			logrus.WithError(err).WithField("key", key).Warn("rate limiter unavailable")
			c.Next()
			return
		}
		if !ok {
			logrus.WithField("key", key).Info("rate limited")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
