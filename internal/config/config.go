// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process configuration read from the environment
type Config struct {
	DataDir        string // Base directory for all databases (always absolute)
	Port           int
	LogLevel       string
	DevMode        bool
	RiskConfigPath string   // Optional YAML risk configuration; defaults apply when empty
	Schedule       string   // Cron spec of the end-of-day batch run; empty disables it
	Portfolios     []string // Portfolios analysed by the batch run; empty means all
	Timezone       string   // Location the schedules are evaluated in

	RunRetentionDays    int // Stored runs older than this are pruned; 0 keeps everything
	BackupRetentionDays int

	Archive ArchiveConfig
}

// ArchiveConfig holds the S3-compatible report archive settings
type ArchiveConfig struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // Custom endpoint for S3-compatible stores (R2, MinIO)
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether reports should be archived
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("RISK_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:        absDataDir,
		Port:           getEnvAsInt("RISK_PORT", 8080),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		RiskConfigPath: getEnv("RISK_CONFIG_PATH", ""),
		Schedule:       getEnv("RISK_SCHEDULE", "30 18 * * 1-5"), // 18:30 on weekdays
		Portfolios:     getEnvAsList("RISK_PORTFOLIOS"),
		Timezone:       getEnv("RISK_TIMEZONE", "UTC"),

		RunRetentionDays:    getEnvAsInt("RISK_RUN_RETENTION_DAYS", 365),
		BackupRetentionDays: getEnvAsInt("RISK_BACKUP_RETENTION_DAYS", 30),

		Archive: ArchiveConfig{
			Bucket:          getEnv("RISK_ARCHIVE_BUCKET", ""),
			Prefix:          getEnv("RISK_ARCHIVE_PREFIX", "reports"),
			Region:          getEnv("RISK_ARCHIVE_REGION", "auto"),
			Endpoint:        getEnv("RISK_ARCHIVE_ENDPOINT", ""),
			AccessKeyID:     getEnv("RISK_ARCHIVE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("RISK_ARCHIVE_SECRET_ACCESS_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("RISK_PORT must be a valid port, got %d", c.Port)
	}
	if c.RunRetentionDays < 0 || c.BackupRetentionDays < 0 {
		return fmt.Errorf("retention days must not be negative")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid RISK_TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.Archive.Enabled() && (c.Archive.AccessKeyID == "") != (c.Archive.SecretAccessKey == "") {
		return fmt.Errorf("RISK_ARCHIVE_ACCESS_KEY_ID and RISK_ARCHIVE_SECRET_ACCESS_KEY must be set together")
	}
	return nil
}

// Location returns the schedule time zone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DatabasePath returns the path of a named database inside DataDir
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
