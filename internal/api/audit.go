package api

import (
	"gift_registry/internal/config" // Access checks
	"gift_registry/internal/domain" // Importing domain models
	"net/http"                      // HTTP status codes

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/google/uuid"     // Identifiers
	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gorm.io/gorm"               // GORM ORM library
)

const auditListLimit = 200

// writeAudit appends an audit entry using tx. The insert runs under its own
// savepoint, so a failed write is rolled back alone and logged while the
// surrounding transaction carries on.
func writeAudit(tx *gorm.DB, registryID string, userID *string, action string, meta map[string]any) {
	entry := domain.AuditLog{
		ID:         uuid.NewString(),
		RegistryID: registryID,
		UserID:     userID,
		Action:     action,
		Meta:       meta,
	}
	err := tx.Transaction(func(sp *gorm.DB) error {
		return sp.Create(&entry).Error
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"registry_id": registryID, "action": action}).Warn("failed to write audit log")
	}
}

// ListAuditHandler returns the newest audit entries of a registry
func ListAuditHandler(db *gorm.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		reg, ok := loadRegistry(c, db, c.Param("id"))
		if !ok || !canView(c, cfg, reg) {
			return
		}
		logs := []domain.AuditLog{}
		if err := db.WithContext(c.Request.Context()).
			Where("registry_id = ?", reg.ID).
			Order("created_at desc").
			Limit(auditListLimit).
			Find(&logs).Error; err != nil {
			internalError(c, err, "Failed to fetch audit log", logrus.Fields{"registry_id": reg.ID})
			return
		}
		c.JSON(http.StatusOK, logs)
	}
}
