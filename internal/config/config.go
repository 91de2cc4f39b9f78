package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"strings" // For list parsing
	"time"    // For durations

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort    string // Application port
	IsProd     bool   // Is production environment
	DBDriver   string // mysql | postgres | sqlite
	DBUser     string // Database user
	DBPassword string // Database password
	DBHost     string // Database host
	DBPort     string // Database port
	DBName     string // Database name
	SQLitePath string // SQLite file path when DBDriver is sqlite

	JWTSecret  string        // JWT secret key
	JWTExpires time.Duration // Token lifetime

	RedisAddr string // Redis server address, empty disables Redis
	RedisPass string // Redis password
	RedisDB   int    // Redis database number

	AdminEmails         []string // Lower-cased admin allow-list
	AdminBootstrapLogin bool     // Allow-listed emails get created/reset at login

	RateLimitMax    int           // Requests allowed per window
	RateLimitWindow time.Duration // Sliding window length

	CORSOrigins []string // Allowed origins, "*" for any

	StorageDriver  string // local | minio
	UploadDir      string // Root for local object storage
	UploadTmpDir   string // Where chunk parts are staged
	MinioEndpoint  string // MinIO host:port
	MinioAccessKey string // MinIO access key
	MinioSecretKey string // MinIO secret key
	MinioBucket    string // MinIO bucket
	MinioUseSSL    bool   // MinIO TLS

	EmailAPIURL   string // Transactional email endpoint
	EmailAPIKey   string // Transactional email API key, empty logs instead of sending
	EmailFrom     string // Sender address
	PublicBaseURL string // Frontend base URL used in emails
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	return &Config{
		AppPort:    getEnv("APP_PORT", "8001"),
		IsProd:     os.Getenv("IS_PROD") == "true",
		DBDriver:   getEnv("DB_DRIVER", "mysql"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBName:     getEnv("DB_NAME", "gift_registry"),
		SQLitePath: getEnv("SQLITE_PATH", "registry.db"),

		JWTSecret:  os.Getenv("JWT_SECRET"),
		JWTExpires: getEnvDuration("JWT_EXPIRES", 7*24*time.Hour),

		RedisAddr: os.Getenv("REDIS_ADDR"),
		RedisPass: os.Getenv("REDIS_PASS"),
		RedisDB:   getEnvInt("REDIS_DB", 0),

		AdminEmails:         splitList(strings.ToLower(os.Getenv("ADMIN_EMAILS"))),
		AdminBootstrapLogin: os.Getenv("ADMIN_BOOTSTRAP_LOGIN") == "true",

		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 10),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		StorageDriver:  getEnv("STORAGE_DRIVER", "local"),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		UploadTmpDir:   getEnv("UPLOAD_TMP_DIR", os.TempDir()),
		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "registry-uploads"),
		MinioUseSSL:    os.Getenv("MINIO_USE_SSL") == "true",

		EmailAPIURL:   getEnv("EMAIL_API_URL", "https://api.resend.com/emails"),
		EmailAPIKey:   os.Getenv("EMAIL_API_KEY"),
		EmailFrom:     getEnv("EMAIL_FROM", "registry@example.com"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),
	}
}

// DSN builds the MySQL or Postgres connection string for the configured driver
func (c *Config) DSN() string {
	switch c.DBDriver {
	case "postgres":
		return "host=" + c.DBHost + " user=" + c.DBUser + " password=" + c.DBPassword +
			" dbname=" + c.DBName + " port=" + c.DBPort + " sslmode=disable TimeZone=UTC"
	case "sqlite":
		return c.SQLitePath
	default:
		return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true&loc=UTC"
	}
}

// IsAdminEmail reports whether email is on the admin allow-list
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range c.AdminEmails {
		if e == email {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
