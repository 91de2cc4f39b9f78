package api

import (
	"errors"                            // Error matching
	"gift_registry/internal/config"     // Application configuration
	"gift_registry/internal/domain"     // Importing domain models
	"gift_registry/internal/middleware" // Authenticated user lookup
	"net/http"                          // HTTP status codes
	"strings"                           // String manipulation

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/google/uuid"     // Identifiers
	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gorm.io/gorm"               // GORM ORM library
)

// Request struct for a fund; also one item of a bulk upsert
type FundRequest struct {
	ID          *string `json:"id"`                                    // Only honoured by bulk upsert
	Title       string  `json:"title" binding:"required,max=200"`      // Fund title
	Description *string `json:"description"`                           // Free text
	Goal        float64 `json:"goal" binding:"gte=0"`                  // Target amount
	CoverURL    *string `json:"cover_url" binding:"omitempty,max=500"` // Cover image
	Category    *string `json:"category" binding:"omitempty,max=64"`   // Category label
	Visible     *bool   `json:"visible"`                               // Defaults to true
	Order       *int    `json:"order"`                                 // Defaults to the end of the list
	Pinned      *bool   `json:"pinned"`                                // Defaults to false
}

// Request struct for a partial fund update; nil fields are left alone
type FundUpdateRequest struct {
	Title       *string  `json:"title" binding:"omitempty,min=1,max=200"`
	Description *string  `json:"description"`
	Goal        *float64 `json:"goal" binding:"omitempty,gte=0"`
	CoverURL    *string  `json:"cover_url" binding:"omitempty,max=500"`
	Category    *string  `json:"category" binding:"omitempty,max=64"`
	Visible     *bool    `json:"visible"`
	Order       *int     `json:"order"`
	Pinned      *bool    `json:"pinned"`
}

// Request struct for bulk upsert
type BulkUpsertRequest struct {
	Funds []FundRequest `json:"funds" binding:"dive"`
}

// maxFundOrder returns the largest order in a registry, -1 when it has no funds
func maxFundOrder(db *gorm.DB, registryID string) (int, error) {
	var row struct{ Highest *int }
	err := db.Model(&domain.Fund{}).Select("MAX(sort_order) AS highest").Where("registry_id = ?", registryID).Scan(&row).Error
	if err != nil || row.Highest == nil {
		return -1, err
	}
	return *row.Highest, nil
}

// apply copies the request onto f, keeping f's values where the request is silent
func (r *FundRequest) apply(f *domain.Fund) {
	f.Title = strings.TrimSpace(r.Title)
	f.Description = r.Description
	f.Goal = r.Goal
	f.CoverURL = r.CoverURL
	f.Category = r.Category
	if r.Visible != nil {
		f.Visible = *r.Visible
	}
	if r.Order != nil {
		f.Order = *r.Order
	}
	if r.Pinned != nil {
		f.Pinned = *r.Pinned
	}
}

// loadFund fetches a fund of the registry, replying 404 or 500 on failure
func loadFund(c *gin.Context, db *gorm.DB, registryID, fundID string) (*domain.Fund, bool) {
	var fund domain.Fund
	err := db.Where("id = ? AND registry_id = ?", fundID, registryID).First(&fund).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Fund not found"})
		return nil, false
	}
	if err != nil {
		internalError(c, err, "Failed to load fund", logrus.Fields{"fund_id": fundID})
		return nil, false
	}
	return &fund, true
}

// ListFundsHandler returns every fund of a registry in display order
func ListFundsHandler(db *gorm.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		reg, ok := loadRegistry(c, db, c.Param("id"))
		if !ok || !canView(c, cfg, reg) {
			return
		}
		funds := []domain.Fund{}
		if err := db.Where("registry_id = ?", reg.ID).Order("pinned desc, sort_order asc, created_at asc").Find(&funds).Error; err != nil {
			internalError(c, err, "Failed to fetch funds", logrus.Fields{"registry_id": reg.ID})
			return
		}
		c.JSON(http.StatusOK, funds)
	}
}

// CreateFundHandler adds a fund to a registry
func CreateFundHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		reg, ok := loadRegistry(c, db, c.Param("id"))
		if !ok || !canEdit(c, reg) {
			return
		}
		var req FundRequest
		if !bindJSON(c, &req) {
			return
		}
		user := middleware.CurrentUser(c)
		fund := domain.Fund{ID: uuid.NewString(), RegistryID: reg.ID, Visible: true}
		req.apply(&fund)
		err := db.Transaction(func(tx *gorm.DB) error {
			if req.Order == nil {
				highest, err := maxFundOrder(tx, reg.ID)
				if err != nil {
					return err
				}
				fund.Order = highest + 1
			}
			if err := tx.Create(&fund).Error; err != nil {
				return err
			}
			writeAudit(tx, reg.ID, &user.ID, domain.ActionFundCreate, map[string]any{"fund_id": fund.ID, "title": fund.Title})
			return nil
		})
		if err != nil {
			internalError(c, err, "Failed to create fund", logrus.Fields{"registry_id": reg.ID})
			return
		}
		logrus.WithFields(logrus.Fields{"registry_id": reg.ID, "fund_id": fund.ID}).Info("fund created")
		c.JSON(http.StatusCreated, fund)
	}
}

// UpdateFundHandler applies the provided fields to a fund
func UpdateFundHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		reg, ok := loadRegistry(c, db, c.Param("id"))
		if !ok || !canEdit(c, reg) {
			return
		}
		fund, ok := loadFund(c, db, reg.ID, c.Param("fund_id"))
		if !ok {
			return
		}
		var req FundUpdateRequest
		if !bindJSON(c, &req) {
			return
		}
		updates := map[string]any{}
		if req.Title != nil {
			updates["title"] = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.Goal != nil {
			updates["goal"] = *req.Goal
		}
		if req.CoverURL != nil {
			updates["cover_url"] = *req.CoverURL
		}
		if req.Category != nil {
			updates["category"] = *req.Category
		}
		if req.Visible != nil {
			updates["visible"] = *req.Visible
		}
		if req.Order != nil {
			updates["sort_order"] = *req.Order
		}
		if req.Pinned != nil {
			updates["pinned"] = *req.Pinned
		}
		if len(updates) > 0 {
			user := middleware.CurrentUser(c)
			err := db.Transaction(func(tx *gorm.DB) error {
				if err := tx.Model(fund).Updates(updates).Error; err != nil {
					return err
				}
				writeAudit(tx, reg.ID, &user.ID, domain.ActionFundUpdate, map[string]any{"fund_id": fund.ID})
				return nil
			})
			if err != nil {
				internalError(c, err, "Failed to update fund", logrus.Fields{"fund_id": fund.ID})
				return
			}
			if fund, ok = loadFund(c, db, reg.ID, fund.ID); !ok {
				return
			}
		}
		c.JSON(http.StatusOK, fund)
	}
}

// DeleteFundHandler removes a fund and its contributions
func DeleteFundHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		reg, ok := loadRegistry(c, db, c.Param("id"))
		if !ok || !canEdit(c, reg) {
			return
		}
		fund, ok := loadFund(c, db, reg.ID, c.Param("fund_id"))
		if !ok {
			return
		}
		user := middleware.CurrentUser(c)
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("fund_id = ?", fund.ID).Delete(&domain.Contribution{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(fund).Error; err != nil {
				return err
			}
			writeAudit(tx, reg.ID, &user.ID, domain.ActionFundDelete, map[string]any{"fund_id": fund.ID, "title": fund.Title})
			return nil
		})
		if err != nil {
			internalError(c, err, "Failed to delete fund", logrus.Fields{"fund_id": fund.ID})
			return
		}
		logrus.WithFields(logrus.Fields{"registry_id": reg.ID, "fund_id": fund.ID}).Info("fund deleted")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// BulkUpsertFundsHandler updates funds whose id belongs to the registry and
// creates the rest under fresh ids.
func BulkUpsertFundsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		reg, ok := loadRegistry(c, db, c.Param("id"))
		if !ok || !canEdit(c, reg) {
			return
		}
		var req BulkUpsertRequest
		if !bindJSON(c, &req) {
			return
		}
		user := middleware.CurrentUser(c)
		created, updated := 0, 0
		err := db.Transaction(func(tx *gorm.DB) error {
			maxOrder, err := maxFundOrder(tx, reg.ID)
			if err != nil {
				return err
			}
			for i := range req.Funds {
				item := &req.Funds[i]
				var existing domain.Fund
				found := false
				if item.ID != nil && *item.ID != "" {
					err := tx.Where("id = ? AND registry_id = ?", *item.ID, reg.ID).First(&existing).Error
					if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
						return err
					}
					found = err == nil
				}
				if found {
					item.apply(&existing)
					if err := tx.Save(&existing).Error; err != nil {
						return err
					}
					maxOrder = max(maxOrder, existing.Order)
					updated++
					continue
				}
				fund := domain.Fund{ID: uuid.NewString(), RegistryID: reg.ID, Visible: true}
				item.apply(&fund)
				if item.Order == nil {
					fund.Order = max(maxOrder+1, i)
				}
				if err := tx.Create(&fund).Error; err != nil {
					return err
				}
				maxOrder = max(maxOrder, fund.Order)
				created++
			}
			writeAudit(tx, reg.ID, &user.ID, domain.ActionFundBulkUpsert, map[string]any{"created": created, "updated": updated})
			return nil
		})
		if err != nil {
			internalError(c, err, "Failed to upsert funds", logrus.Fields{"registry_id": reg.ID})
			return
		}
		logrus.WithFields(logrus.Fields{"registry_id": reg.ID, "created": created, "updated": updated}).Info("funds upserted")
		c.JSON(http.StatusOK, gin.H{"created": created, "updated": updated})
	}
}
