package api

import (
	"encoding/csv"                  // CSV writer
	"gift_registry/internal/config" // Application configuration
	"net/http"                      // HTTP status codes
	"strconv"                       // Number formatting
	"time"                          // Timestamp formatting

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gorm.io/gorm"               // GORM ORM library
)

var csvHeader = []string{"created_at", "fund", "name", "email", "amount", "method", "public", "message"}

type exportRow struct {
	CreatedAt time.Time
	Fund      string
	Name      *string
	Email     *string
	Amount    float64
	Method    *string
	Public    bool
	Message   *string
}

// ExportCSVHandler streams a registry's contributions as a CSV attachment
func ExportCSVHandler(db *gorm.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		reg, ok := loadRegistry(c, db, c.Param("id"))
		if !ok || !canView(c, cfg, reg) {
			return
		}
		var rows []exportRow
		if err := db.Table("contributions").
			Select("contributions.created_at, funds.title AS fund, contributions.name, contributions.email, " +
				"contributions.amount, contributions.method, contributions.public, contributions.message").
			Joins("JOIN funds ON funds.id = contributions.fund_id").
			Where("funds.registry_id = ?", reg.ID).
			Order("contributions.created_at asc").
			Scan(&rows).Error; err != nil {
			internalError(c, err, "Failed to export contributions", logrus.Fields{"registry_id": reg.ID})
			return
		}

		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", `attachment; filename="registry-`+reg.Slug+`-contributions.csv"`)
		c.Status(http.StatusOK)

		w := csv.NewWriter(c.Writer)
		_ = w.Write(csvHeader)
		for _, r := range rows {
			_ = w.Write([]string{
				r.CreatedAt.UTC().Format(time.RFC3339),
				r.Fund,
				str(r.Name),
				str(r.Email),
				strconv.FormatFloat(r.Amount, 'f', 2, 64),
				str(r.Method),
				strconv.FormatBool(r.Public),
				str(r.Message),
			})
		}
		w.Flush()
		if err := w.Error(); err != nil {
			logrus.WithError(err).WithField("registry_id", reg.ID).Warn("csv export interrupted")
		}
	}
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
