package api

import (
	"errors"                            // Error matching
	"gift_registry/internal/config"     // Application configuration
	"gift_registry/internal/domain"     // Importing domain models
	"gift_registry/internal/middleware" // Authenticated user lookup
	"gift_registry/internal/utils"      // Utility functions
	"math"                              // Progress rounding
	"net/http"                          // HTTP status codes
	"strings"                           // String manipulation
	"time"                              // Event date validation

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/google/uuid"     // Identifiers
	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gorm.io/gorm"               // GORM ORM library
)

// Request struct for creating a registry
type RegistryRequest struct {
	CoupleNames string  `json:"couple_names" binding:"required,max=200"`
	EventDate   *string `json:"event_date"` // YYYY-MM-DD
	Location    *string `json:"location" binding:"omitempty,max=200"`
	Currency    string  `json:"currency" binding:"omitempty,max=8"`
	HeroImage   *string `json:"hero_image" binding:"omitempty,max=500"`
	Slug        string  `json:"slug" binding:"required"`
	Theme       string  `json:"theme" binding:"omitempty,max=32"`
}

// Request struct for a partial registry update; nil fields are left alone
type RegistryUpdateRequest struct {
	CoupleNames *string `json:"couple_names" binding:"omitempty,min=1,max=200"`
	EventDate   *string `json:"event_date"`
	Location    *string `json:"location" binding:"omitempty,max=200"`
	Currency    *string `json:"currency" binding:"omitempty,min=1,max=8"`
	HeroImage   *string `json:"hero_image" binding:"omitempty,max=500"`
	Slug        *string `json:"slug"`
	Theme       *string `json:"theme" binding:"omitempty,min=1,max=32"`
}

// FundProgress is a fund with its raised amount, as shown publicly
type FundProgress struct {
	domain.Fund
	Raised   float64 `json:"raised"`
	Progress int     `json:"progress"`
}

// PublicRegistryResponse is the guest-facing registry page
type PublicRegistryResponse struct {
	Registry domain.Registry    `json:"registry"`
	Funds    []FundProgress     `json:"funds"`
	Totals   map[string]float64 `json:"totals"`
}

func validEventDate(d *string) bool {
	if d == nil || *d == "" {
		return true
	}
	_, err := time.Parse("2006-01-02", *d)
	return err == nil
}

// slugTaken reports whether another registry already uses slug
func slugTaken(db *gorm.DB, slug, exceptID string) (bool, error) {
	var count int64
	q := db.Model(&domain.Registry{}).Where("slug = ?", slug)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

// progress is raised as a whole percentage of goal, capped at 100. Halves
// round to the even neighbour.
func progress(raised, goal float64) int {
	if goal <= 0 {
		return 0
	}
	return int(math.Min(100, math.RoundToEven(raised/goal*100)))
}

// CreateRegistryHandler creates a registry owned by the caller
func CreateRegistryHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegistryRequest
		if !bindJSON(c, &req) {
			return
		}
		slug := strings.TrimSpace(req.Slug)
		if !utils.IsValidSlug(slug) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Slug must be 3-64 lower-case letters, digits or hyphens"})
			return
		}
		if !validEventDate(req.EventDate) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "event_date must be YYYY-MM-DD"})
			return
		}
		taken, err := slugTaken(db, slug, "")
		if err != nil {
			internalError(c, err, "Failed to check slug", logrus.Fields{"slug": slug})
			return
		}
		if taken {
			c.JSON(http.StatusConflict, gin.H{"error": "Slug already in use"})
			return
		}
		user := middleware.CurrentUser(c)
		reg := domain.Registry{
			ID:            uuid.NewString(),
			CoupleNames:   strings.TrimSpace(req.CoupleNames),
			EventDate:     req.EventDate,
			Location:      req.Location,
			Currency:      strings.ToUpper(strings.TrimSpace(req.Currency)),
			HeroImage:     req.HeroImage,
			Slug:          slug,
			Theme:         strings.TrimSpace(req.Theme),
			OwnerID:       user.ID,
			Collaborators: []string{},
		}
		if reg.Currency == "" {
			reg.Currency = "AED"
		}
		if reg.Theme == "" {
			reg.Theme = "modern"
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&reg).Error; err != nil {
				return err
			}
			writeAudit(tx, reg.ID, &user.ID, domain.ActionRegistryCreate, map[string]any{"slug": reg.Slug})
			return nil
		})
		if err != nil {
			if taken, _ := slugTaken(db, slug, ""); taken {
				c.JSON(http.StatusConflict, gin.H{"error": "Slug already in use"})
				return
			}
			internalError(c, err, "Failed to create registry", logrus.Fields{"slug": slug})
			return
		}
		logrus.WithFields(logrus.Fields{"registry_id": reg.ID, "slug": reg.Slug, "owner_id": user.ID}).Info("registry created")
		c.JSON(http.StatusCreated, reg)
	}
}

// ListMyRegistriesHandler returns registries the caller owns or collaborates on
func ListMyRegistriesHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.CurrentUser(c).ID
		shared := db.Model(&domain.RegistryCollaborator{}).Select("registry_id").Where("user_id = ?", userID)
		regs := []domain.Registry{}
		if err := db.Where("owner_id = ? OR id IN (?)", userID, shared).Order("created_at desc").Find(&regs).Error; err != nil {
			internalError(c, err, "Failed to fetch registries", logrus.Fields{"user_id": userID})
			return
		}
		if err := collaboratorsByRegistry(db, regs); err != nil {
			internalError(c, err, "Failed to fetch collaborators", logrus.Fields{"user_id": userID})
			return
		}
		c.JSON(http.StatusOK, regs)
	}
}

// GetRegistryHandler returns one registry to its owner, collaborators or an admin
func GetRegistryHandler(db *gorm.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		reg, ok := loadRegistry(c, db, c.Param("id"))
		if !ok || !canView(c, cfg, reg) {
			return
		}
		c.JSON(http.StatusOK, reg)
	}
}

// UpdateRegistryHandler applies the provided fields to a registry
func UpdateRegistryHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		reg, ok := loadRegistry(c, db, c.Param("id"))
		if !ok || !canEdit(c, reg) {
			return
		}
		var req RegistryUpdateRequest
		if !bindJSON(c, &req) {
			return
		}
		updates := map[string]any{}
		if req.Slug != nil && strings.TrimSpace(*req.Slug) != reg.Slug {
			slug := strings.TrimSpace(*req.Slug)
			if !utils.IsValidSlug(slug) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Slug must be 3-64 lower-case letters, digits or hyphens"})
				return
			}
			taken, err := slugTaken(db, slug, reg.ID)
			if err != nil {
				internalError(c, err, "Failed to check slug", logrus.Fields{"slug": slug})
				return
			}
			if taken {
				c.JSON(http.StatusConflict, gin.H{"error": "Slug already in use"})
				return
			}
			updates["slug"] = slug
		}
		if !validEventDate(req.EventDate) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "event_date must be YYYY-MM-DD"})
			return
		}
		if req.CoupleNames != nil {
			updates["couple_names"] = strings.TrimSpace(*req.CoupleNames)
		}
		if req.EventDate != nil {
			updates["event_date"] = *req.EventDate
		}
		if req.Location != nil {
			updates["location"] = *req.Location
		}
		if req.Currency != nil {
			updates["currency"] = strings.ToUpper(strings.TrimSpace(*req.Currency))
		}
		if req.HeroImage != nil {
			updates["hero_image"] = *req.HeroImage
		}
		if req.Theme != nil {
			updates["theme"] = strings.TrimSpace(*req.Theme)
		}
		if len(updates) == 0 {
			c.JSON(http.StatusOK, reg)
			return
		}
		user := middleware.CurrentUser(c)
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(reg).Updates(updates).Error; err != nil {
				return err
			}
			fields := make([]string, 0, len(updates))
			for k := range updates {
				fields = append(fields, k)
			}
			writeAudit(tx, reg.ID, &user.ID, domain.ActionRegistryUpdate, map[string]any{"fields": fields})
			return nil
		})
		if err != nil {
			if slug, ok := updates["slug"].(string); ok {
				if taken, _ := slugTaken(db, slug, reg.ID); taken {
					c.JSON(http.StatusConflict, gin.H{"error": "Slug already in use"})
					return
				}
			}
			internalError(c, err, "Failed to update registry", logrus.Fields{"registry_id": reg.ID})
			return
		}
		logrus.WithFields(logrus.Fields{"registry_id": reg.ID, "user_id": user.ID}).Info("registry updated")
		updated, ok := loadRegistry(c, db, reg.ID)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// DeleteRegistryHandler removes a registry with its funds and their contributions
func DeleteRegistryHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		reg, ok := loadRegistry(c, db, c.Param("id"))
		if !ok || !isOwner(c, reg) {
			return
		}
		user := middleware.CurrentUser(c)
		err := db.Transaction(func(tx *gorm.DB) error {
			funds := tx.Model(&domain.Fund{}).Select("id").Where("registry_id = ?", reg.ID)
			if err := tx.Where("fund_id IN (?)", funds).Delete(&domain.Contribution{}).Error; err != nil {
				return err
			}
			if err := tx.Where("registry_id = ?", reg.ID).Delete(&domain.Fund{}).Error; err != nil {
				return err
			}
			if err := tx.Where("registry_id = ?", reg.ID).Delete(&domain.RegistryCollaborator{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(reg).Error; err != nil {
				return err
			}
			writeAudit(tx, reg.ID, &user.ID, domain.ActionRegistryDelete, map[string]any{"slug": reg.Slug})
			return nil
		})
		if err != nil {
			internalError(c, err, "Failed to delete registry", logrus.Fields{"registry_id": reg.ID})
			return
		}
		logrus.WithFields(logrus.Fields{"registry_id": reg.ID, "user_id": user.ID}).Info("registry deleted")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// raisedByFund sums contributions per fund id
func raisedByFund(db *gorm.DB, fundIDs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(fundIDs))
	if len(fundIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		FundID string
		Total  float64
	}
	err := db.Model(&domain.Contribution{}).
		Select("fund_id, COALESCE(SUM(amount), 0) AS total").
		Where("fund_id IN ?", fundIDs).
		Group("fund_id").
		Scan(&rows).Error
	for _, r := range rows {
		out[r.FundID] = r.Total
	}
	return out, err
}

// PublicRegistryHandler serves the guest view of a registry by slug.
// Locked registries are reported as missing.
func PublicRegistryHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var reg domain.Registry
		err := db.Where("slug = ?", c.Param("slug")).First(&reg).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && reg.Locked) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Registry not found"})
			return
		}
		if err != nil {
			internalError(c, err, "Failed to load registry", logrus.Fields{"slug": c.Param("slug")})
			return
		}
		var funds []domain.Fund
		if err := db.Where("registry_id = ? AND visible = ?", reg.ID, true).
			Order("pinned desc, sort_order asc, created_at asc").
			Find(&funds).Error; err != nil {
			internalError(c, err, "Failed to load funds", logrus.Fields{"registry_id": reg.ID})
			return
		}
		ids := make([]string, len(funds))
		for i := range funds {
			ids[i] = funds[i].ID
		}
		raised, err := raisedByFund(db, ids)
		if err != nil {
			internalError(c, err, "Failed to sum contributions", logrus.Fields{"registry_id": reg.ID})
			return
		}
		resp := PublicRegistryResponse{Registry: reg, Funds: make([]FundProgress, len(funds)), Totals: map[string]float64{"raised": 0}}
		resp.Registry.Collaborators = []string{}
		for i, f := range funds {
			r := raised[f.ID]
			resp.Funds[i] = FundProgress{Fund: f, Raised: r, Progress: progress(r, f.Goal)}
			resp.Totals["raised"] += r
		}
		c.JSON(http.StatusOK, resp)
	}
}
