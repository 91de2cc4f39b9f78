package api

import (
	"errors"                            // Error matching
	"gift_registry/internal/config"     // Admin allow-list
	"gift_registry/internal/domain"     // Importing domain models
	"gift_registry/internal/middleware" // Authenticated user lookup
	"net/http"                          // HTTP status codes

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gorm.io/gorm"               // GORM ORM library
)

// loadRegistry fetches a registry with its collaborator ids, replying 404 or 500 on failure
func loadRegistry(c *gin.Context, db *gorm.DB, id string) (*domain.Registry, bool) {
	var reg domain.Registry
	err := db.WithContext(c.Request.Context()).Where("id = ?", id).First(&reg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Registry not found"})
		return nil, false
	}
	if err == nil {
		err = loadCollaborators(db, &reg)
	}
	if err != nil {
		logrus.WithError(err).WithField("registry_id", id).Error("failed to load registry")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load registry"})
		return nil, false
	}
	return &reg, true
}

// loadCollaborators fills reg.Collaborators from the join table
func loadCollaborators(db *gorm.DB, reg *domain.Registry) error {
	ids := []string{}
	err := db.Model(&domain.RegistryCollaborator{}).
		Where("registry_id = ?", reg.ID).
		Order("created_at asc").
		Pluck("user_id", &ids).Error
	reg.Collaborators = ids
	return err
}

// collaboratorsByRegistry loads collaborator ids for many registries at once
func collaboratorsByRegistry(db *gorm.DB, regs []domain.Registry) error {
	if len(regs) == 0 {
		return nil
	}
	ids := make([]string, len(regs))
	for i := range regs {
		ids[i] = regs[i].ID
	}
	var links []domain.RegistryCollaborator
	if err := db.Where("registry_id IN ?", ids).Order("created_at asc").Find(&links).Error; err != nil {
		return err
	}
	byReg := map[string][]string{}
	for _, l := range links {
		byReg[l.RegistryID] = append(byReg[l.RegistryID], l.UserID)
	}
	for i := range regs {
		regs[i].Collaborators = byReg[regs[i].ID]
		if regs[i].Collaborators == nil {
			regs[i].Collaborators = []string{}
		}
	}
	return nil
}

// canView replies 403 unless the caller is owner, collaborator or admin
func canView(c *gin.Context, cfg *config.Config, reg *domain.Registry) bool {
	user := middleware.CurrentUser(c)
	if reg.CanEdit(user.ID) || middleware.IsAdmin(cfg, user) {
		return true
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed"})
	return false
}

// canEdit replies 403 unless the caller is owner or collaborator, and 423 when locked
func canEdit(c *gin.Context, reg *domain.Registry) bool {
	if !reg.CanEdit(middleware.CurrentUser(c).ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed"})
		return false
	}
	return notLocked(c, reg)
}

// isOwner replies 403 unless the caller owns the registry, and 423 when locked
func isOwner(c *gin.Context, reg *domain.Registry) bool {
	if !reg.IsOwner(middleware.CurrentUser(c).ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the owner can do this"})
		return false
	}
	return notLocked(c, reg)
}

func notLocked(c *gin.Context, reg *domain.Registry) bool {
	if reg.Locked {
		c.JSON(http.StatusLocked, gin.H{"error": "Registry is locked"})
		return false
	}
	return true
}

// bindJSON binds the request body, replying 422 on malformed or invalid input
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// internalError logs err with fields and replies 500 with msg
func internalError(c *gin.Context, err error, msg string, fields logrus.Fields) {
	logrus.WithError(err).WithFields(fields).Error(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
