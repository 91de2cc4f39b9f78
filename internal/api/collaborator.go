package api

import (
	"errors"                            // Error matching
	"gift_registry/internal/domain"     // Importing domain models
	"gift_registry/internal/middleware" // Authenticated user lookup
	"gift_registry/internal/utils"      // Utility functions
	"net/http"                          // HTTP status codes

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gorm.io/gorm"               // GORM ORM library
	"gorm.io/gorm/clause"        // Upsert clauses
)

type collaboratorRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// AddCollaboratorHandler grants an existing user edit access to a registry
func AddCollaboratorHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		reg, ok := loadRegistry(c, db, c.Param("id"))
		if !ok || !isOwner(c, reg) {
			return
		}
		var req collaboratorRequest
		if !bindJSON(c, &req) {
			return
		}
		var invitee domain.User
		err := db.Where("email = ?", utils.NormalizeEmail(req.Email)).First(&invitee).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		if err != nil {
			internalError(c, err, "Failed to load user", nil)
			return
		}
		if invitee.ID == reg.OwnerID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Owner is already a collaborator"})
			return
		}
		owner := middleware.CurrentUser(c)
		err = db.Transaction(func(tx *gorm.DB) error {
			link := domain.RegistryCollaborator{RegistryID: reg.ID, UserID: invitee.ID}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				writeAudit(tx, reg.ID, &owner.ID, domain.ActionCollaboratorAdd, map[string]any{"user_id": invitee.ID})
			}
			return nil
		})
		if err != nil {
			internalError(c, err, "Failed to add collaborator", logrus.Fields{"registry_id": reg.ID})
			return
		}
		logrus.WithFields(logrus.Fields{"registry_id": reg.ID, "collaborator_id": invitee.ID}).Info("collaborator added")
		if reg, ok = loadRegistry(c, db, reg.ID); ok {
			c.JSON(http.StatusOK, reg)
		}
	}
}

// RemoveCollaboratorHandler revokes a collaborator's access
func RemoveCollaboratorHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		reg, ok := loadRegistry(c, db, c.Param("id"))
		if !ok || !isOwner(c, reg) {
			return
		}
		userID := c.Param("user_id")
		owner := middleware.CurrentUser(c)
		err := db.Transaction(func(tx *gorm.DB) error {
			res := tx.Where("registry_id = ? AND user_id = ?", reg.ID, userID).Delete(&domain.RegistryCollaborator{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				writeAudit(tx, reg.ID, &owner.ID, domain.ActionCollaboratorRemove, map[string]any{"user_id": userID})
			}
			return nil
		})
		if err != nil {
			internalError(c, err, "Failed to remove collaborator", logrus.Fields{"registry_id": reg.ID})
			return
		}
		if reg, ok = loadRegistry(c, db, reg.ID); ok {
			c.JSON(http.StatusOK, reg)
		}
	}
}
