package api

import (
	"context"                           // Context for Redis operations
	"errors"                            // Error matching
	"gift_registry/internal/config"     // Application configuration
	"gift_registry/internal/domain"     // Importing domain models
	"gift_registry/internal/middleware" // Authenticated user lookup
	"gift_registry/internal/utils"      // Utility functions
	"net/http"                          // HTTP status codes
	"strconv"                           // String conversion
	"strings"                           // String manipulation
	"time"                              // Time durations

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
	"gorm.io/gorm"                 // GORM ORM library
)

const (
	statsCacheKey   = "admin:stats"   // Cached dashboard counts
	metricsCacheKey = "admin:metrics" // Cached dashboard metrics
	adminCacheTTL   = 60 * time.Second
	recentLimit     = 5 // Rows in each "last"/"top" list
)

// AdminStats is the admin dashboard summary
type AdminStats struct {
	Counts         map[string]int64  `json:"counts"`          // users, registries, funds, contributions
	LastUsers      []UserResponse    `json:"last_users"`      // Newest users
	LastRegistries []domain.Registry `json:"last_registries"` // Newest registries
	TopFunds       []TopFund         `json:"top_funds"`       // Funds with the most raised
	Cached         bool              `json:"cached"`          // Served from Redis
}

// TopFund is one row of the top funds list
type TopFund struct {
	FundID     string  `json:"fund_id"`
	Title      string  `json:"title"`
	RegistryID string  `json:"registry_id"`
	Raised     float64 `json:"raised"`
	Count      int64   `json:"count"`
}

// AdminMetrics summarises activity across all registries
type AdminMetrics struct {
	ActiveEvents  int64   `json:"active_events"`  // Unlocked registries whose event is not past
	ActiveGifts   int64   `json:"active_gifts"`   // Visible funds in unlocked registries
	AverageAmount float64 `json:"average_amount"` // Mean contribution
	MaxAmount     float64 `json:"max_amount"`     // Largest contribution
	Cached        bool    `json:"cached"`         // Served from Redis
}

// AdminRegistry is a registry row with its owner's email
type AdminRegistry struct {
	domain.Registry
	OwnerEmail string `json:"owner_email"`
}

// paginate reads page and page_size (1-100, default 20) from the query
func paginate(c *gin.Context) (page, pageSize, offset int) {
	page, pageSize = 1, 20 // Defaults
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v // Set page if valid
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v // Set page size within limits
		}
	}
	return page, pageSize, (page - 1) * pageSize
}

// likePattern wraps a search term for a case-insensitive LIKE using ! as escape
func likePattern(q string) string {
	q = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(strings.ToLower(strings.TrimSpace(q)))
	return "%" + q + "%"
}

// searchScope matches q against any of columns; an empty q matches everything
func searchScope(q string, columns ...string) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if strings.TrimSpace(q) == "" {
			return tx
		}
		pattern := likePattern(q)
		conds := make([]string, len(columns))
		args := make([]any, len(columns))
		for i, col := range columns {
			conds[i] = "LOWER(" + col + ") LIKE ? ESCAPE '!'"
			args[i] = pattern
		}
		return tx.Where(strings.Join(conds, " OR "), args...)
	}
}

// AdminMeHandler tells any authenticated user whether they are an admin
func AdminMeHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"id": user.ID, "email": user.Email, "is_admin": middleware.IsAdmin(cfg, user)})
	}
}

// AdminStatsHandler returns counts and recent activity, cached for a minute
func AdminStatsHandler(db *gorm.DB, cfg *config.Config, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var stats AdminStats
		// If cached data found, return it
		if found, err := utils.GetCache(ctx, rdb, statsCacheKey, &stats); err == nil && found {
			stats.Cached = true
			c.JSON(http.StatusOK, stats)
			return
		} else if err != nil {
			logrus.WithError(err).Warn("admin stats cache read failed")
		}

		stats = AdminStats{Counts: map[string]int64{}, LastUsers: []UserResponse{}, LastRegistries: []domain.Registry{}, TopFunds: []TopFund{}}
		for name, model := range map[string]any{
			"users":         &domain.User{},
			"registries":    &domain.Registry{},
			"funds":         &domain.Fund{},
			"contributions": &domain.Contribution{},
		} {
			var n int64
			if err := db.Model(model).Count(&n).Error; err != nil {
				internalError(c, err, "Failed to count "+name, nil)
				return
			}
			stats.Counts[name] = n
		}

		var users []domain.User
		if err := db.Order("created_at desc").Limit(recentLimit).Find(&users).Error; err != nil {
			internalError(c, err, "Failed to fetch users", nil)
			return
		}
		for i := range users {
			stats.LastUsers = append(stats.LastUsers, newUserResponse(cfg, &users[i]))
		}
		if err := db.Order("created_at desc").Limit(recentLimit).Find(&stats.LastRegistries).Error; err != nil {
			internalError(c, err, "Failed to fetch registries", nil)
			return
		}
		if err := collaboratorsByRegistry(db, stats.LastRegistries); err != nil {
			internalError(c, err, "Failed to fetch collaborators", nil)
			return
		}
		if err := db.Table("funds").
			Select("funds.id AS fund_id, funds.title AS title, funds.registry_id AS registry_id, SUM(contributions.amount) AS raised, COUNT(contributions.id) AS count").
			Joins("JOIN contributions ON contributions.fund_id = funds.id").
			Group("funds.id, funds.title, funds.registry_id").
			Order("raised desc").
			Limit(recentLimit).
			Scan(&stats.TopFunds).Error; err != nil {
			internalError(c, err, "Failed to fetch top funds", nil)
			return
		}

		// Cache the response for future requests
		if err := utils.SetCache(ctx, rdb, statsCacheKey, stats, adminCacheTTL); err != nil {
			logrus.WithError(err).Warn("admin stats cache write failed")
		}
		c.JSON(http.StatusOK, stats)
	}
}

// AdminMetricsHandler returns activity metrics, cached for a minute
func AdminMetricsHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var m AdminMetrics
		if found, err := utils.GetCache(ctx, rdb, metricsCacheKey, &m); err == nil && found {
			m.Cached = true
			c.JSON(http.StatusOK, m)
			return
		} else if err != nil {
			logrus.WithError(err).Warn("admin metrics cache read failed")
		}

		today := time.Now().UTC().Format("2006-01-02")
		if err := db.Model(&domain.Registry{}).
			Where("locked = ? AND (event_date IS NULL OR event_date = '' OR event_date >= ?)", false, today).
			Count(&m.ActiveEvents).Error; err != nil {
			internalError(c, err, "Failed to count events", nil)
			return
		}
		unlocked := db.Model(&domain.Registry{}).Select("id").Where("locked = ?", false)
		if err := db.Model(&domain.Fund{}).
			Where("visible = ? AND registry_id IN (?)", true, unlocked).
			Count(&m.ActiveGifts).Error; err != nil {
			internalError(c, err, "Failed to count funds", nil)
			return
		}
		var amounts struct {
			Average float64
			Highest float64
		}
		if err := db.Model(&domain.Contribution{}).
			Select("COALESCE(AVG(amount), 0) AS average, COALESCE(MAX(amount), 0) AS highest").
			Scan(&amounts).Error; err != nil {
			internalError(c, err, "Failed to aggregate amounts", nil)
			return
		}
		m.AverageAmount, m.MaxAmount = amounts.Average, amounts.Highest

		if err := utils.SetCache(ctx, rdb, metricsCacheKey, m, adminCacheTTL); err != nil {
			logrus.WithError(err).Warn("admin metrics cache write failed")
		}
		c.JSON(http.StatusOK, m)
	}
}

// AdminListUsersHandler pages through users, filtered by ?query= on name or email
func AdminListUsersHandler(db *gorm.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, pageSize, offset := paginate(c)
		search := searchScope(c.Query("query"), "name", "email")
		var total int64
		if err := db.Model(&domain.User{}).Scopes(search).Count(&total).Error; err != nil {
			internalError(c, err, "Failed to count users", nil)
			return
		}
		var users []domain.User
		if err := db.Scopes(search).Order("created_at desc").Offset(offset).Limit(pageSize).Find(&users).Error; err != nil {
			internalError(c, err, "Failed to fetch users", nil)
			return
		}
		resp := make([]UserResponse, len(users))
		for i := range users {
			resp[i] = newUserResponse(cfg, &users[i])
		}
		c.JSON(http.StatusOK, gin.H{
			"users":       resp,
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": (int(total) + pageSize - 1) / pageSize,
		})
	}
}

// AdminLookupUsersHandler resolves ?ids=a,b to minimal user records
func AdminLookupUsersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var ids []string
		for _, id := range strings.Split(c.Query("ids"), ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		type lookup struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Email string `json:"email"`
		}
		out := []lookup{}
		if len(ids) > 0 {
			if err := db.Model(&domain.User{}).Select("id", "name", "email").Where("id IN ?", ids).Scan(&out).Error; err != nil {
				internalError(c, err, "Failed to look up users", nil)
				return
			}
		}
		c.JSON(http.StatusOK, out)
	}
}

// AdminUserDetailHandler returns a user with the registries they own
func AdminUserDetailHandler(db *gorm.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var user domain.User
		err := db.Where("id = ?", c.Param("id")).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		if err != nil {
			internalError(c, err, "Failed to load user", logrus.Fields{"user_id": c.Param("id")})
			return
		}
		regs := []domain.Registry{}
		if err := db.Where("owner_id = ?", user.ID).Order("created_at desc").Find(&regs).Error; err != nil {
			internalError(c, err, "Failed to fetch registries", logrus.Fields{"user_id": user.ID})
			return
		}
		if err := collaboratorsByRegistry(db, regs); err != nil {
			internalError(c, err, "Failed to fetch collaborators", logrus.Fields{"user_id": user.ID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": newUserResponse(cfg, &user), "registries": regs})
	}
}

// AdminListRegistriesHandler pages through registries, filtered by ?query= on couple names or slug
func AdminListRegistriesHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, pageSize, offset := paginate(c)
		search := searchScope(c.Query("query"), "couple_names", "slug")
		var total int64
		if err := db.Model(&domain.Registry{}).Scopes(search).Count(&total).Error; err != nil {
			internalError(c, err, "Failed to count registries", nil)
			return
		}
		var regs []domain.Registry
		if err := db.Scopes(search).Order("created_at desc").Offset(offset).Limit(pageSize).Find(&regs).Error; err != nil {
			internalError(c, err, "Failed to fetch registries", nil)
			return
		}
		if err := collaboratorsByRegistry(db, regs); err != nil {
			internalError(c, err, "Failed to fetch collaborators", nil)
			return
		}
		ownerIDs := make([]string, len(regs))
		for i := range regs {
			ownerIDs[i] = regs[i].OwnerID
		}
		var owners []domain.User
		if len(ownerIDs) > 0 {
			if err := db.Select("id", "email").Where("id IN ?", ownerIDs).Find(&owners).Error; err != nil {
				internalError(c, err, "Failed to fetch owners", nil)
				return
			}
		}
		emails := make(map[string]string, len(owners))
		for _, o := range owners {
			emails[o.ID] = o.Email
		}
		resp := make([]AdminRegistry, len(regs))
		for i := range regs {
			resp[i] = AdminRegistry{Registry: regs[i], OwnerEmail: emails[regs[i].OwnerID]}
		}
		c.JSON(http.StatusOK, gin.H{
			"registries":  resp,
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": (int(total) + pageSize - 1) / pageSize,
		})
	}
}

// AdminRegistryFundsHandler returns every fund of a registry with its raised amount
func AdminRegistryFundsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		reg, ok := loadRegistry(c, db, c.Param("id"))
		if !ok {
			return
		}
		var funds []domain.Fund
		if err := db.Where("registry_id = ?", reg.ID).Order("pinned desc, sort_order asc, created_at asc").Find(&funds).Error; err != nil {
			internalError(c, err, "Failed to fetch funds", logrus.Fields{"registry_id": reg.ID})
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
		resp := make([]FundProgress, len(funds))
		for i, f := range funds {
			resp[i] = FundProgress{Fund: f, Raised: raised[f.ID], Progress: progress(raised[f.ID], f.Goal)}
		}
		c.JSON(http.StatusOK, resp)
	}
}

// Request struct for locking a registry
type LockRequest struct {
	Locked *bool   `json:"locked" binding:"required"`
	Reason *string `json:"reason" binding:"omitempty,max=500"`
}

// AdminLockRegistryHandler locks or unlocks a registry
func AdminLockRegistryHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		reg, ok := loadRegistry(c, db, c.Param("id"))
		if !ok {
			return
		}
		var req LockRequest
		if !bindJSON(c, &req) {
			return
		}
		locked := *req.Locked
		var reason *string
		if locked {
			reason = req.Reason
		}
		action := domain.ActionRegistryUnlock
		if locked {
			action = domain.ActionRegistryLock
		}
		admin := middleware.CurrentUser(c)
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(reg).Updates(map[string]any{"locked": locked, "lock_reason": reason}).Error; err != nil {
				return err
			}
			writeAudit(tx, reg.ID, &admin.ID, action, map[string]any{"reason": reason})
			return nil
		})
		if err != nil {
			internalError(c, err, "Failed to update lock", logrus.Fields{"registry_id": reg.ID})
			return
		}
		// Metrics count unlocked registries only
		if err := utils.DeleteCache(context.Background(), rdb, statsCacheKey, metricsCacheKey); err != nil {
			logrus.WithError(err).Warn("admin cache invalidation failed")
		}
		logrus.WithFields(logrus.Fields{"registry_id": reg.ID, "admin_id": admin.ID, "locked": locked}).Info("registry lock changed")
		c.JSON(http.StatusOK, gin.H{"ok": true, "locked": locked})
	}
}
