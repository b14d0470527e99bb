// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
	GetMigrationsEnabled() bool
	GetDatabaseMaxConns() int
	GetDatabaseMinConns() int
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetPublicRateLimit() float64
	GetPublicRateBurst() int
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	IsSchedulerEnabled() bool
}

// ReminderConfig provides settings for task reminder scans.
type ReminderConfig interface {
	GetReminderScanInterval() time.Duration
	GetReminderLookahead() time.Duration
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketBudgetPDFs() string
	IsMinIOEnabled() bool
}

// GotenbergConfig provides settings for the Gotenberg HTML-to-PDF service.
type GotenbergConfig interface {
	GetGotenbergURL() string
	GetGotenbergUsername() string
	GetGotenbergPassword() string
	IsGotenbergEnabled() bool
}

// SMTPConfig provides settings for outgoing email.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsEmailEnabled() bool
}

// PublicLinkConfig provides the base URL used to build public links.
type PublicLinkConfig interface {
	GetAppBaseURL() string
}

// PhoneConfig provides the default region for phone normalization.
type PhoneConfig interface {
	GetPhoneDefaultRegion() string
}

// LeadsConfig provides tuning for lead operations.
type LeadsConfig interface {
	GetBulkAssignConcurrency() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	MigrationsEnabled     bool
	DatabaseMaxConns      int
	DatabaseMinConns      int
	JWTAccessSecret       string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	PublicRateLimit       float64
	PublicRateBurst       int
	AppBaseURL            string
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
	ReminderScanInterval  time.Duration
	ReminderLookahead     time.Duration
	MinIOEndpoint         string
	MinIOAccessKey        string
	MinIOSecretKey        string
	MinIOUseSSL           bool
	MinioBucketBudgetPDFs string
	GotenbergURL          string
	GotenbergUsername     string
	GotenbergPassword     string
	EmailEnabled          bool
	SMTPHost              string
	SMTPPort              int
	SMTPUsername          string
	SMTPPassword          string
	EmailFromName         string
	EmailFromAddress      string
	PhoneDefaultRegion    string
	BulkAssignConcurrency int
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string     { return c.DatabaseURL }
func (c *Config) GetMigrationsEnabled() bool { return c.MigrationsEnabled }
func (c *Config) GetDatabaseMaxConns() int   { return c.DatabaseMaxConns }
func (c *Config) GetDatabaseMinConns() int   { return c.DatabaseMinConns }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string         { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool       { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string    { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool     { return c.CORSAllowCreds }
func (c *Config) GetPublicRateLimit() float64 { return c.PublicRateLimit }
func (c *Config) GetPublicRateBurst() int     { return c.PublicRateBurst }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string         { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool   { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string   { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int    { return c.AsynqConcurrency }
func (c *Config) IsSchedulerEnabled() bool    { return c.RedisURL != "" }

// ReminderConfig implementation
func (c *Config) GetReminderScanInterval() time.Duration { return c.ReminderScanInterval }
func (c *Config) GetReminderLookahead() time.Duration    { return c.ReminderLookahead }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string         { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string        { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string        { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool             { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketBudgetPDFs() string { return c.MinioBucketBudgetPDFs }
func (c *Config) IsMinIOEnabled() bool             { return c.MinIOEndpoint != "" }

// GotenbergConfig implementation
func (c *Config) GetGotenbergURL() string      { return c.GotenbergURL }
func (c *Config) GetGotenbergUsername() string { return c.GotenbergUsername }
func (c *Config) GetGotenbergPassword() string { return c.GotenbergPassword }
func (c *Config) IsGotenbergEnabled() bool     { return c.GotenbergURL != "" }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsEmailEnabled() bool        { return c.EmailEnabled }

// PublicLinkConfig implementation
func (c *Config) GetAppBaseURL() string { return c.AppBaseURL }

// PhoneConfig implementation
func (c *Config) GetPhoneDefaultRegion() string { return c.PhoneDefaultRegion }

// LeadsConfig implementation
func (c *Config) GetBulkAssignConcurrency() int { return c.BulkAssignConcurrency }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		MigrationsEnabled:     strings.EqualFold(getEnv("MIGRATIONS_ENABLED", "true"), "true"),
		DatabaseMaxConns:      mustInt(getEnv("DB_MAX_CONNS", "20"), 20),
		DatabaseMinConns:      mustInt(getEnv("DB_MIN_CONNS", "2"), 2),
		JWTAccessSecret:       getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		PublicRateLimit:       mustFloat(getEnv("PUBLIC_RATE_LIMIT", "5")),
		PublicRateBurst:       mustInt(getEnv("PUBLIC_RATE_BURST", "20"), 20),
		AppBaseURL:            strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:4200"), "/"),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "5"), 5),
		ReminderScanInterval:  mustDuration(getEnv("REMINDER_SCAN_INTERVAL", "5m"), 5*time.Minute),
		ReminderLookahead:     mustDuration(getEnv("REMINDER_LOOKAHEAD", "15m"), 15*time.Minute),
		MinIOEndpoint:         getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:        getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:        getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:           strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketBudgetPDFs: getEnv("MINIO_BUCKET_BUDGET_PDFS", "budget-pdfs"),
		GotenbergURL:          getEnv("GOTENBERG_URL", ""),
		GotenbergUsername:     getEnv("GOTENBERG_USERNAME", ""),
		GotenbergPassword:     getEnv("GOTENBERG_PASSWORD", ""),
		EmailEnabled:          emailEnabled && smtpHost != "",
		SMTPHost:              smtpHost,
		SMTPPort:              mustInt(getEnv("SMTP_PORT", "587"), 587),
		SMTPUsername:          getEnv("SMTP_USERNAME", ""),
		SMTPPassword:          getEnv("SMTP_PASSWORD", ""),
		EmailFromName:         getEnv("EMAIL_FROM_NAME", "Travel CRM"),
		EmailFromAddress:      getEnv("EMAIL_FROM_ADDRESS", ""),
		PhoneDefaultRegion:    strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "AR")),
		BulkAssignConcurrency: mustInt(getEnv("BULK_ASSIGN_CONCURRENCY", "8"), 8),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if c.EmailEnabled && c.EmailFromAddress == "" {
		return fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if c.DatabaseMaxConns < 1 || c.DatabaseMinConns < 0 || c.DatabaseMinConns > c.DatabaseMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS, and DB_MAX_CONNS at least 1")
	}
	if c.BulkAssignConcurrency < 1 {
		return fmt.Errorf("BULK_ASSIGN_CONCURRENCY must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func mustInt(value string, fallback int) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
