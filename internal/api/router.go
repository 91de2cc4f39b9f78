package api

import (
	"gift_registry/internal/config"     // Application configuration
	"gift_registry/internal/middleware" // Auth, admin, rate limit, logging
	"gift_registry/internal/notify"     // Email notifications
	"gift_registry/internal/ratelimit"  // Sliding window limiter
	"gift_registry/internal/storage"    // Object storage
	"gift_registry/internal/upload"     // Chunk assembler
	"net/http"                          // HTTP methods
	"time"                              // CORS max age

	"github.com/gin-contrib/cors"  // CORS middleware
	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// Deps carries everything the handlers need. Redis and Notifier may be nil.
type Deps struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Config   *config.Config
	Limiter  ratelimit.Limiter
	Storage  *storage.Storage
	Uploads  *upload.Assembler
	Notifier *notify.Notifier
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.CORSOrigins) == 0 || (len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = cfg.CORSOrigins
		cc.AllowCredentials = true
	}
	return cors.New(cc)
}

// SetupRouter registers every route under /api
func SetupRouter(d Deps) *gin.Engine {
	cfg, db := d.Config, d.DB
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery(), corsMiddleware(cfg))

	limit := func(route string) gin.HandlerFunc { return middleware.RateLimit(d.Limiter, route) }
	auth := middleware.JWTAuthMiddleware(cfg.JWTSecret, db)

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Auth routes
	api.POST("/auth/register", limit("register"), RegisterHandler(db, cfg))
	api.POST("/auth/login", limit("login"), LoginHandler(db, cfg))
	api.GET("/auth/me", auth, MeHandler(cfg))
	api.POST("/auth/password-reset/request", limit("password-reset"), PasswordResetRequestHandler(db, d.Notifier))
	api.POST("/auth/password-reset/confirm", limit("password-reset-confirm"), PasswordResetConfirmHandler(db))

	// Public routes
	api.GET("/public/registries/:slug", PublicRegistryHandler(db))
	api.GET("/funds/:fund_id/contributions", ListFundContributionsHandler(db))
	api.POST("/contributions", limit("contribution"), CreateContributionHandler(db, d.Notifier))
	api.GET("/files/*key", ServeFileHandler(d.Storage))

	// Registry routes (protected by JWT)
	reg := api.Group("/registries", auth)
	reg.POST("", CreateRegistryHandler(db))
	reg.GET("", ListMyRegistriesHandler(db))
	reg.GET("/:id", GetRegistryHandler(db, cfg))
	reg.PUT("/:id", UpdateRegistryHandler(db))
	reg.DELETE("/:id", DeleteRegistryHandler(db))
	reg.POST("/:id/collaborators", AddCollaboratorHandler(db))
	reg.DELETE("/:id/collaborators/:user_id", RemoveCollaboratorHandler(db))
	reg.GET("/:id/audit", ListAuditHandler(db, cfg))
	reg.GET("/:id/funds", ListFundsHandler(db, cfg))
	reg.POST("/:id/funds", CreateFundHandler(db))
	reg.POST("/:id/funds/bulk_upsert", BulkUpsertFundsHandler(db))
	reg.PUT("/:id/funds/:fund_id", UpdateFundHandler(db))
	reg.DELETE("/:id/funds/:fund_id", DeleteFundHandler(db))
	reg.GET("/:id/contributions", ListRegistryContributionsHandler(db, cfg))
	reg.GET("/:id/analytics", AnalyticsHandler(db, cfg))
	reg.GET("/:id/export/csv", ExportCSVHandler(db, cfg))

	// Upload routes (protected by JWT)
	chunk := UploadChunkHandler(d.Uploads)
	api.POST("/uploads/initiate", auth, InitiateUploadHandler(db, d.Uploads))
	api.POST("/uploads/chunk", auth, chunk)
	api.POST("/upload/chunk", auth, chunk)
	api.POST("/uploads/complete", auth, CompleteUploadHandler(db, d.Uploads))
	api.GET("/uploads/:upload_id", auth, UploadStatusHandler(d.Uploads))

	// Admin routes; /admin/me answers any authenticated user
	api.GET("/admin/me", auth, AdminMeHandler(cfg))
	admin := api.Group("/admin", auth, middleware.AdminOnlyMiddleware(cfg))
	admin.GET("/stats", AdminStatsHandler(db, cfg, d.Redis))
	admin.GET("/metrics", AdminMetricsHandler(db, d.Redis))
	admin.GET("/users", AdminListUsersHandler(db, cfg))
	admin.GET("/users/lookup", AdminLookupUsersHandler(db))
	admin.GET("/users/:id", AdminUserDetailHandler(db, cfg))
	admin.GET("/registries", AdminListRegistriesHandler(db))
	admin.GET("/registries/:id/funds", AdminRegistryFundsHandler(db))
	admin.POST("/registries/:id/lock", AdminLockRegistryHandler(db, d.Redis))

	return r
}
