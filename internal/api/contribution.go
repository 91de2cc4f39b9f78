package api

import (
	"errors"                        // Error matching
	"gift_registry/internal/config" // Application configuration
	"gift_registry/internal/domain" // Importing domain models
	"gift_registry/internal/notify" // Contribution emails
	"net/http"                      // HTTP status codes
	"strings"                       // String manipulation

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/google/uuid"     // Identifiers
	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gorm.io/gorm"               // GORM ORM library
)

// Request struct for a guest contribution
type ContributionRequest struct {
	FundID  string  `json:"fund_id" binding:"required"`              // Target fund
	Name    *string `json:"name" binding:"omitempty,max=200"`        // Guest name
	Amount  float64 `json:"amount" binding:"gt=0"`                   // Gift amount
	Message *string `json:"message" binding:"omitempty,max=2000"`    // Note to the couple
	Public  *bool   `json:"public"`                                  // Defaults to true
	Method  *string `json:"method" binding:"omitempty,max=32"`       // Payment method label
	Email   *string `json:"email" binding:"omitempty,email,max=180"` // Receipt address
}

// CreateContributionHandler records a gift and notifies the contributor and
// the registry owner in the background.
func CreateContributionHandler(db *gorm.DB, n *notify.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ContributionRequest
		if !bindJSON(c, &req) {
			return
		}
		var fund domain.Fund
		err := db.Where("id = ?", req.FundID).First(&fund).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Fund not found"})
			return
		}
		if err != nil {
			internalError(c, err, "Failed to load fund", logrus.Fields{"fund_id": req.FundID})
			return
		}
		var reg domain.Registry
		if err := db.Where("id = ?", fund.RegistryID).First(&reg).Error; err != nil {
			internalError(c, err, "Failed to load registry", logrus.Fields{"fund_id": fund.ID})
			return
		}
		if !notLocked(c, &reg) {
			return
		}

		contrib := domain.Contribution{
			ID:      uuid.NewString(),
			FundID:  fund.ID,
			Name:    req.Name,
			Amount:  req.Amount,
			Message: req.Message,
			Public:  req.Public == nil || *req.Public,
			Method:  req.Method,
		}
		if req.Email != nil && strings.TrimSpace(*req.Email) != "" {
			email := strings.TrimSpace(*req.Email)
			contrib.Email = &email
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&contrib).Error; err != nil {
				return err
			}
			writeAudit(tx, reg.ID, nil, domain.ActionContributionCreate, map[string]any{
				"contribution_id": contrib.ID,
				"fund_id":         fund.ID,
				"amount":          contrib.Amount,
			})
			return nil
		})
		if err != nil {
			internalError(c, err, "Failed to record contribution", logrus.Fields{"fund_id": fund.ID})
			return
		}
		logrus.WithFields(logrus.Fields{
			"contribution_id": contrib.ID,
			"fund_id":         fund.ID,
			"registry_id":     reg.ID,
			"amount":          contrib.Amount,
		}).Info("contribution received")

		if n != nil {
			var owner domain.User
			if err := db.Where("id = ?", reg.OwnerID).First(&owner).Error; err != nil {
				logrus.WithError(err).WithField("registry_id", reg.ID).Warn("registry owner not found, skipping owner email")
				n.ContributionReceived(&reg, &fund, nil, &contrib)
			} else {
				n.ContributionReceived(&reg, &fund, &owner, &contrib)
			}
		}
		c.JSON(http.StatusCreated, contrib)
	}
}

// ListFundContributionsHandler returns the public contributions of a fund without emails
func ListFundContributionsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var fund domain.Fund
		err := db.Where("id = ?", c.Param("fund_id")).First(&fund).Error
		if err == nil {
			var reg domain.Registry
			if err = db.Select("id", "locked").Where("id = ?", fund.RegistryID).First(&reg).Error; err == nil && reg.Locked {
				err = gorm.ErrRecordNotFound
			}
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Fund not found"})
			return
		}
		if err != nil {
			internalError(c, err, "Failed to load fund", logrus.Fields{"fund_id": c.Param("fund_id")})
			return
		}
		contribs := []domain.Contribution{}
		if err := db.Where("fund_id = ? AND public = ?", fund.ID, true).Order("created_at desc").Find(&contribs).Error; err != nil {
			internalError(c, err, "Failed to fetch contributions", logrus.Fields{"fund_id": fund.ID})
			return
		}
		for i := range contribs {
			contribs[i].Email = nil
		}
		c.JSON(http.StatusOK, contribs)
	}
}

// ListRegistryContributionsHandler returns every contribution of a registry, newest first
func ListRegistryContributionsHandler(db *gorm.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		reg, ok := loadRegistry(c, db, c.Param("id"))
		if !ok || !canView(c, cfg, reg) {
			return
		}
		contribs := []domain.Contribution{}
		if err := db.Where("fund_id IN (?)", registryFundIDs(db, reg.ID)).Order("created_at desc").Find(&contribs).Error; err != nil {
			internalError(c, err, "Failed to fetch contributions", logrus.Fields{"registry_id": reg.ID})
			return
		}
		c.JSON(http.StatusOK, contribs)
	}
}

// registryFundIDs is a subquery selecting the fund ids of a registry
func registryFundIDs(db *gorm.DB, registryID string) *gorm.DB {
	return db.Model(&domain.Fund{}).Select("id").Where("registry_id = ?", registryID)
}
