// Package config provides configuration for the application
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Media drivers
const (
	MediaDriverS3    = "s3"
	MediaDriverLocal = "local"
)

// Config holds all configuration for the application
type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Server    ServerConfig
	Logging   LoggingConfig
	CORS      CORSConfig
	Session   SessionConfig
	Reset     ResetConfig
	SMTP      SMTPConfig
	Media     MediaConfig
	Reconcile ReconcileConfig
	APIKey    string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns the Redis address in host:port form
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port int
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// SessionConfig holds session token and cookie settings
type SessionConfig struct {
	Secret        string
	TokenExpiry   time.Duration
	CookieExpiry  time.Duration
	CookieSecure  bool
	DenylistStore bool
}

// ResetConfig holds password reset settings
type ResetConfig struct {
	TokenTTL time.Duration
	// URLBase overrides the scheme and host inferred from the request, e.g. https://shop.example.com
	URLBase string
}

// SMTPConfig holds SMTP server configuration
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// MediaConfig holds avatar hosting configuration
type MediaConfig struct {
	Driver      string
	Folder      string
	AvatarWidth int

	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicBaseURL string

	BasePath string
	BaseURL  string
}

// ReconcileConfig holds orphaned avatar reconciliation settings
type ReconcileConfig struct {
	Schedule string
	Grace    time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	cfg := &Config{}

	// Database configuration
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		return nil, fmt.Errorf("DB_HOST is required")
	}
	cfg.Database.Host = dbHost

	dbPortStr := os.Getenv("DB_PORT")
	if dbPortStr == "" {
		return nil, fmt.Errorf("DB_PORT is required")
	}
	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.Database.Port = dbPort

	dbUser := os.Getenv("DB_USER")
	if dbUser == "" {
		return nil, fmt.Errorf("DB_USER is required")
	}
	cfg.Database.User = dbUser

	dbPassword := os.Getenv("DB_PASSWORD")
	if dbPassword == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	cfg.Database.Password = dbPassword

	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		return nil, fmt.Errorf("DB_NAME is required")
	}
	cfg.Database.DBName = dbName

	// Server configuration
	if cfg.Server.Port, err = envInt("SERVER_PORT", 8080); err != nil {
		return nil, err
	}

	// Logging configuration
	cfg.Logging.Level = envString("LOG_LEVEL", "info")
	cfg.Logging.Format = envString("LOG_FORMAT", "json")

	// CORS configuration
	cfg.CORS.AllowedOrigins = parseOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"))

	// Session configuration
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	cfg.Session.Secret = secret

	if cfg.Session.TokenExpiry, err = envDuration("JWT_EXPIRE", 120*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Session.CookieExpiry, err = envDuration("COOKIE_EXPIRE", 120*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Session.CookieSecure, err = envBool("COOKIE_SECURE", false); err != nil {
		return nil, err
	}
	if cfg.Session.DenylistStore, err = envBool("SESSION_DENYLIST", true); err != nil {
		return nil, err
	}

	// Password reset configuration
	if cfg.Reset.TokenTTL, err = envDuration("RESET_TOKEN_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	cfg.Reset.URLBase = strings.TrimRight(os.Getenv("RESET_URL_BASE"), "/")

	// API Key configuration (optional, for internal endpoints)
	cfg.APIKey = os.Getenv("API_KEY")

	// Redis configuration (session denylist and cleanup queue)
	cfg.Redis.Host = envString("REDIS_HOST", "localhost")
	if cfg.Redis.Port, err = envInt("REDIS_PORT", 6379); err != nil {
		return nil, err
	}
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD") // optional
	if cfg.Redis.DB, err = envInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	// SMTP configuration
	cfg.SMTP.Host = envString("SMTP_HOST", "localhost")
	if cfg.SMTP.Port, err = envInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	cfg.SMTP.Username = os.Getenv("SMTP_USERNAME") // optional
	cfg.SMTP.Password = os.Getenv("SMTP_PASSWORD") // optional
	cfg.SMTP.From = envString("SMTP_FROM", "noreply@shopfront.local")

	// Media configuration
	if err := loadMedia(cfg); err != nil {
		return nil, err
	}

	// Reconciliation configuration
	cfg.Reconcile.Schedule = envString("RECONCILE_SCHEDULE", "@hourly")
	if cfg.Reconcile.Grace, err = envDuration("RECONCILE_GRACE", time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadMedia(cfg *Config) error {
	var err error

	cfg.Media.Driver = envString("MEDIA_DRIVER", MediaDriverLocal)
	cfg.Media.Folder = envString("MEDIA_FOLDER", "avatars")
	if cfg.Media.AvatarWidth, err = envInt("AVATAR_WIDTH", 150); err != nil {
		return err
	}
	if cfg.Media.AvatarWidth <= 0 {
		return fmt.Errorf("AVATAR_WIDTH must be positive")
	}

	switch cfg.Media.Driver {
	case MediaDriverS3:
		cfg.Media.S3Bucket = os.Getenv("S3_BUCKET")
		if cfg.Media.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for s3 media driver")
		}
		cfg.Media.S3Region = envString("S3_REGION", "us-east-1")
		cfg.Media.S3Endpoint = os.Getenv("S3_ENDPOINT")
		cfg.Media.S3AccessKey = os.Getenv("S3_ACCESS_KEY")
		cfg.Media.S3SecretKey = os.Getenv("S3_SECRET_KEY")
		cfg.Media.S3PublicBaseURL = strings.TrimRight(os.Getenv("S3_PUBLIC_BASE_URL"), "/")
	case MediaDriverLocal:
		cfg.Media.BasePath = envString("MEDIA_BASE_PATH", "./media")
		cfg.Media.BaseURL = strings.TrimRight(envString("MEDIA_BASE_URL", "http://localhost:8080/media"), "/")
	default:
		return fmt.Errorf("invalid MEDIA_DRIVER: %q", cfg.Media.Driver)
	}

	return nil
}

// parseOrigins parses comma-separated origins, defaulting to allow all
func parseOrigins(value string) []string {
	if value == "" {
		// Default to allow all origins if not specified (for development)
		return []string{"*"}
	}

	origins := strings.Split(value, ",")
	allowed := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowed = append(allowed, origin)
		}
	}
	if len(allowed) == 0 {
		return []string{"*"}
	}
	return allowed
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// DSN returns the database connection string
func (c *Config) DSN() string {
	if c.Database.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
	)
}
