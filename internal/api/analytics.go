package api

import (
	"gift_registry/internal/config" // Application configuration
	"gift_registry/internal/domain" // Importing domain models
	"net/http"                      // HTTP status codes
	"time"                          // Daily window

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gorm.io/gorm"               // GORM ORM library
)

const analyticsDays = 30

// FundTotal is one row of the per-fund breakdown
type FundTotal struct {
	FundID string  `json:"fund_id"`
	Title  string  `json:"title"`
	Total  float64 `json:"total"`
	Count  int64   `json:"count"`
}

// MethodTotal is one row of the per-method breakdown
type MethodTotal struct {
	Method string  `json:"method"`
	Total  float64 `json:"total"`
	Count  int64   `json:"count"`
}

// DayTotal is one day of the trailing window, in UTC
type DayTotal struct {
	Date  string  `json:"date"`
	Total float64 `json:"total"`
	Count int64   `json:"count"`
}

// AnalyticsResponse aggregates a registry's contributions
type AnalyticsResponse struct {
	Total    float64       `json:"total"`
	Count    int64         `json:"count"`
	Average  float64       `json:"average"`
	ByFund   []FundTotal   `json:"by_fund"`
	ByMethod []MethodTotal `json:"by_method"`
	Daily    []DayTotal    `json:"daily"`
}

// registryAnalytics runs the aggregate queries for one registry
func registryAnalytics(db *gorm.DB, registryID string, now time.Time) (*AnalyticsResponse, error) {
	resp := &AnalyticsResponse{ByFund: []FundTotal{}, ByMethod: []MethodTotal{}}
	fundIDs := registryFundIDs(db, registryID)

	var totals struct {
		Total   float64
		Count   int64
		Average float64
	}
	if err := db.Model(&domain.Contribution{}).
		Select("COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count, COALESCE(AVG(amount), 0) AS average").
		Where("fund_id IN (?)", fundIDs).
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	resp.Total, resp.Count, resp.Average = totals.Total, totals.Count, totals.Average

	if err := db.Table("funds").
		Select("funds.id AS fund_id, funds.title AS title, COALESCE(SUM(contributions.amount), 0) AS total, COUNT(contributions.id) AS count").
		Joins("LEFT JOIN contributions ON contributions.fund_id = funds.id").
		Where("funds.registry_id = ?", registryID).
		Group("funds.id, funds.title").
		Order("total desc, funds.title asc").
		Scan(&resp.ByFund).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&domain.Contribution{}).
		Select("COALESCE(method, 'unknown') AS method, SUM(amount) AS total, COUNT(*) AS count").
		Where("fund_id IN (?)", fundIDs).
		Group("COALESCE(method, 'unknown')").
		Order("total desc").
		Scan(&resp.ByMethod).Error; err != nil {
		return nil, err
	}

	today := now.UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(analyticsDays - 1))
	var days []struct {
		Day   string
		Total float64
		Count int64
	}
	if err := db.Model(&domain.Contribution{}).
		Select("DATE(created_at) AS day, SUM(amount) AS total, COUNT(*) AS count").
		Where("fund_id IN (?) AND created_at >= ?", fundIDs, since).
		Group("DATE(created_at)").
		Scan(&days).Error; err != nil {
		return nil, err
	}
	byDay := make(map[string]DayTotal, len(days))
	for _, d := range days {
		if len(d.Day) >= 10 {
			key := d.Day[:10] // drivers return either "2006-01-02" or a full timestamp
			byDay[key] = DayTotal{Date: key, Total: d.Total, Count: d.Count}
		}
	}
	resp.Daily = make([]DayTotal, analyticsDays)
	for i := range resp.Daily {
		key := since.AddDate(0, 0, i).Format("2006-01-02")
		if d, ok := byDay[key]; ok {
			resp.Daily[i] = d
		} else {
			resp.Daily[i] = DayTotal{Date: key}
		}
	}
	return resp, nil
}

// AnalyticsHandler returns totals and breakdowns of a registry's contributions
func AnalyticsHandler(db *gorm.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		reg, ok := loadRegistry(c, db, c.Param("id"))
		if !ok || !canView(c, cfg, reg) {
			return
		}
		resp, err := registryAnalytics(db.WithContext(c.Request.Context()), reg.ID, time.Now())
		if err != nil {
			internalError(c, err, "Failed to compute analytics", logrus.Fields{"registry_id": reg.ID})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
