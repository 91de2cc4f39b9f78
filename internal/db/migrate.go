package db

import (
	"fmt"                           // Error formatting
	"gift_registry/internal/config" // Application configuration
	"gift_registry/internal/domain" // Importing domain models
	"time"                          // UTC clock for timestamps

	"github.com/glebarez/sqlite" // Pure-Go SQLite driver for GORM
	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gorm.io/driver/mysql"       // MySQL driver for GORM
	"gorm.io/driver/postgres"    // Postgres driver for GORM
	"gorm.io/gorm"               // GORM ORM library
	"gorm.io/gorm/logger"        // GORM logger levels
)

func utcNow() time.Time { return time.Now().UTC() }

// Models lists every persisted model in migration order
var Models = []any{
	&domain.User{},
	&domain.PasswordReset{},
	&domain.Registry{},
	&domain.RegistryCollaborator{},
	&domain.Fund{},
	&domain.Contribution{},
	&domain.AuditLog{},
	&domain.Upload{},
}

// Open connects to the database selected by cfg.DBDriver
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN())
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	gormCfg := &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn), // Info is too verbose
		NowFunc: utcNow,                              // Timestamps are stored in UTC
	}
	return gorm.Open(dialector, gormCfg)
}

// Migrate performs automatic migration for the database schema
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := db.AutoMigrate(Models...); err != nil {
		return err
	}
	logrus.Info("Migration completed.") // Log successful migration
	return nil
}

// OpenMemory returns a migrated in-memory SQLite database, used by tests and local tooling
func OpenMemory() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), NowFunc: utcNow})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1) // Every connection to :memory: is a separate database
	if err := db.AutoMigrate(Models...); err != nil {
		return nil, err
	}
	return db, nil
}
