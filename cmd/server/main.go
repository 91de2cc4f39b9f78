package main

import (
	"context"                          // Context for startup and shutdown
	"errors"                           // Error matching
	"gift_registry/internal/api"       // Custom package for API handlers
	"gift_registry/internal/config"    // Custom package for configuration
	"gift_registry/internal/db"        // Database connection and migration
	"gift_registry/internal/notify"    // Email notifications
	"gift_registry/internal/ratelimit" // Sliding window limiter
	"gift_registry/internal/storage"   // Object storage
	"gift_registry/internal/upload"    // Chunk assembler
	"net/http"                         // HTTP server
	"os"                               // Signals
	"os/signal"                        // Signals
	"syscall"                          // Signals
	"time"                             // Shutdown timeout

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if cfg.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET is required")
	}

	// Connect to the database and bring the schema up to date
	database, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		logrus.Fatalf("failed to migrate DB: %v", err)
	}

	// Redis is optional: it backs the admin cache and a shared rate limiter
	var redisClient *redis.Client
	window := ratelimit.Window{Max: cfg.RateLimitMax, Period: cfg.RateLimitWindow}
	var limiter ratelimit.Limiter = ratelimit.NewMemory(window)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		// Test Redis connection
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logrus.Fatalf("failed to connect to Redis: %v", err)
		}
		limiter = ratelimit.NewRedis(redisClient, window, "ratelimit:")
	}

	store, err := storage.Open(context.Background(), cfg)
	if err != nil {
		logrus.Fatalf("failed to open storage: %v", err)
	}

	var sender notify.Sender = notify.LogSender{}
	if cfg.EmailAPIKey != "" {
		sender = notify.NewHTTPSender(cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.EmailFrom)
	}
	notifier := notify.New(sender, cfg.PublicBaseURL)

	r := api.SetupRouter(api.Deps{
		DB:       database,
		Redis:    redisClient,
		Config:   cfg,
		Limiter:  limiter,
		Storage:  store,
		Uploads:  upload.NewAssembler(database, store, cfg.UploadTmpDir),
		Notifier: notifier,
	})
	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	srv := &http.Server{Addr: ":" + cfg.AppPort, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logrus.WithFields(logrus.Fields{"port": cfg.AppPort, "db": cfg.DBDriver, "storage": cfg.StorageDriver}).Info("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("server shutdown")
	}
	notifier.Wait() // Let queued emails finish
	if redisClient != nil {
		_ = redisClient.Close()
	}
	logrus.Info("server stopped")
}
