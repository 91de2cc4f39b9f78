package api

import (
	"crypto/sha256"                     // Reset token hashing
	"encoding/hex"                      // Reset token hashing
	"errors"                            // Error matching
	"gift_registry/internal/config"     // Application configuration
	"gift_registry/internal/domain"     // Importing domain models
	"gift_registry/internal/middleware" // Authenticated user lookup
	"gift_registry/internal/notify"     // Reset emails
	"gift_registry/internal/utils"      // Utility functions
	"net/http"                          // HTTP status codes
	"strings"                           // String manipulation
	"time"                              // Reset token expiry

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/google/uuid"     // Identifiers
	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gorm.io/gorm"               // GORM ORM library
)

const resetTokenTTL = time.Hour

// Request struct for registration
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=120"`           // Display name
	Email    string `json:"email" binding:"required,email,max=180"`    // Login email
	Password string `json:"password" binding:"required,min=4,max=128"` // Plain password
}

// Request struct for login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`    // Login email
	Password string `json:"password" binding:"required"` // Plain password
}

// UserResponse is the public view of a user
type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// Response struct for authentication
type AuthResponse struct {
	AccessToken string       `json:"access_token"` // JWT token
	TokenType   string       `json:"token_type"`   // Always "bearer"
	User        UserResponse `json:"user"`         // Public user fields
}

func newUserResponse(cfg *config.Config, u *domain.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, IsAdmin: middleware.IsAdmin(cfg, u), CreatedAt: u.CreatedAt}
}

// respondWithToken signs a token for u and writes the auth response
func respondWithToken(c *gin.Context, cfg *config.Config, status int, u *domain.User) {
	token, err := utils.GenerateJWT(u.ID, cfg.JWTSecret, cfg.JWTExpires)
	if err != nil {
		internalError(c, err, "Failed to generate token", logrus.Fields{"user_id": u.ID})
		return
	}
	c.JSON(status, AuthResponse{AccessToken: token, TokenType: "bearer", User: newUserResponse(cfg, u)})
}

// RegisterHandler creates a user and returns a token
func RegisterHandler(db *gorm.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if !bindJSON(c, &req) {
			return
		}
		email := utils.NormalizeEmail(req.Email) // Emails are unique case-insensitively
		var count int64
		if err := db.Model(&domain.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			internalError(c, err, "Failed to check email", logrus.Fields{"email": email})
			return
		}
		if count > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		hash, err := utils.HashPassword(req.Password)
		if err != nil {
			internalError(c, err, "Failed to hash password", nil)
			return
		}
		user := domain.User{ID: uuid.NewString(), Name: strings.TrimSpace(req.Name), Email: email, PasswordHash: hash}
		if err := db.Create(&user).Error; err != nil {
			// Lost a race with a concurrent registration
			if cerr := db.Model(&domain.User{}).Where("email = ?", email).Count(&count).Error; cerr == nil && count > 0 {
				c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
				return
			}
			internalError(c, err, "Failed to create user", logrus.Fields{"email": email})
			return
		}
		logrus.WithFields(logrus.Fields{"user_id": user.ID, "email": email}).Info("user registered")
		respondWithToken(c, cfg, http.StatusCreated, &user)
	}
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(db *gorm.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if !bindJSON(c, &req) {
			return
		}
		email := utils.NormalizeEmail(req.Email)
		bootstrap := cfg.AdminBootstrapLogin && cfg.IsAdminEmail(email)

		var user domain.User
		err := db.Where("email = ?", email).First(&user).Error
		passwordOK := err == nil && utils.CheckPassword(user.PasswordHash, req.Password)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound) && bootstrap:
			// Allow-listed admin logging in for the first time
			hash, herr := utils.HashPassword(req.Password)
			if herr != nil {
				internalError(c, herr, "Failed to hash password", nil)
				return
			}
			user = domain.User{ID: uuid.NewString(), Name: strings.Split(email, "@")[0], Email: email, PasswordHash: hash, IsAdmin: true}
			if err := db.Create(&user).Error; err != nil {
				internalError(c, err, "Failed to create admin", logrus.Fields{"email": email})
				return
			}
			logrus.WithField("email", email).Warn("admin account bootstrapped at login")
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		case err != nil:
			internalError(c, err, "Failed to load user", logrus.Fields{"email": email})
			return
		case !passwordOK && bootstrap:
			hash, herr := utils.HashPassword(req.Password)
			if herr != nil {
				internalError(c, herr, "Failed to hash password", nil)
				return
			}
			if err := db.Model(&user).Update("password_hash", hash).Error; err != nil {
				internalError(c, err, "Failed to reset admin password", logrus.Fields{"user_id": user.ID})
				return
			}
			logrus.WithField("user_id", user.ID).Warn("admin password reset at login")
		case !passwordOK:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		respondWithToken(c, cfg, http.StatusOK, &user)
	}
}

// MeHandler returns the authenticated user
func MeHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, newUserResponse(cfg, middleware.CurrentUser(c)))
	}
}

type passwordResetRequest struct {
	Email string `json:"email" binding:"required"`
}

type passwordResetConfirm struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=4,max=128"`
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// PasswordResetRequestHandler emails a one-hour reset link. It answers 200
// whether or not the email is registered.
func PasswordResetRequestHandler(db *gorm.DB, n *notify.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req passwordResetRequest
		if !bindJSON(c, &req) {
			return
		}
		var user domain.User
		if err := db.Where("email = ?", utils.NormalizeEmail(req.Email)).First(&user).Error; err == nil {
			token := uuid.NewString() + uuid.NewString()
			reset := domain.PasswordReset{
				ID:        uuid.NewString(),
				UserID:    user.ID,
				TokenHash: hashToken(token),
				ExpiresAt: time.Now().UTC().Add(resetTokenTTL),
			}
			if err := db.Create(&reset).Error; err != nil {
				internalError(c, err, "Failed to create reset token", logrus.Fields{"user_id": user.ID})
				return
			}
			if n != nil {
				n.PasswordReset(&user, token)
			}
			logrus.WithField("user_id", user.ID).Info("password reset requested")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			internalError(c, err, "Failed to load user", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// PasswordResetConfirmHandler sets a new password for a valid, unused token
func PasswordResetConfirmHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req passwordResetConfirm
		if !bindJSON(c, &req) {
			return
		}
		hash, err := utils.HashPassword(req.NewPassword)
		if err != nil {
			internalError(c, err, "Failed to hash password", nil)
			return
		}
		errInvalid := errors.New("invalid token")
		err = db.Transaction(func(tx *gorm.DB) error {
			var reset domain.PasswordReset
			if err := tx.Where("token_hash = ? AND used = ? AND expires_at > ?", hashToken(req.Token), false, time.Now().UTC()).
				First(&reset).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return errInvalid
				}
				return err
			}
			if err := tx.Model(&domain.User{}).Where("id = ?", reset.UserID).Update("password_hash", hash).Error; err != nil {
				return err
			}
			return tx.Model(&reset).Update("used", true).Error
		})
		if errors.Is(err, errInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired token"})
			return
		}
		if err != nil {
			internalError(c, err, "Failed to reset password", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
