// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // base directory for all databases, always absolute
	Port     int
	LogLevel string
	DevMode  bool

	// Market data feed
	FeedBaseURL      string
	FeedWebSocketURL string

	// Risk questionnaire file; empty means the compiled-in default set.
	QuestionnairePath string

	// Backups
	BackupBucket    string
	BackupRegion    string
	BackupEndpoint  string
	BackupAccessKey string
	BackupSecretKey string
	BackupPrefix    string

	// Job schedules (cron with seconds field)
	PriceRefreshSchedule    string
	ProtectionSweepSchedule string
	SnapshotSchedule        string
	BackupSchedule          string
	SnapshotsToKeep         int
	FixedIncomeAnnualRate   float64
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("HRAM_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data directory: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("HRAM_PORT", 8001),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		FeedBaseURL:      getEnv("FEED_BASE_URL", "http://localhost:9000"),
		FeedWebSocketURL: getEnv("FEED_WS_URL", ""),

		QuestionnairePath: getEnv("QUESTIONNAIRE_PATH", ""),

		BackupBucket:    getEnv("BACKUP_S3_BUCKET", ""),
		BackupRegion:    getEnv("BACKUP_S3_REGION", "us-east-1"),
		BackupEndpoint:  getEnv("BACKUP_S3_ENDPOINT", ""),
		BackupAccessKey: getEnv("BACKUP_S3_ACCESS_KEY", ""),
		BackupSecretKey: getEnv("BACKUP_S3_SECRET_KEY", ""),
		BackupPrefix:    getEnv("BACKUP_S3_PREFIX", "hram"),

		PriceRefreshSchedule:    getEnv("PRICE_REFRESH_SCHEDULE", "0 */5 * * * *"),
		ProtectionSweepSchedule: getEnv("PROTECTION_SWEEP_SCHEDULE", "0 0 * * * *"),
		SnapshotSchedule:        getEnv("SNAPSHOT_SCHEDULE", "0 0 */6 * * *"),
		BackupSchedule:          getEnv("BACKUP_SCHEDULE", "0 30 2 * * *"),
		SnapshotsToKeep:         getEnvAsInt("SNAPSHOTS_TO_KEEP", 180),
		FixedIncomeAnnualRate:   getEnvAsFloat("FIXED_INCOME_ANNUAL_RATE", 0.25),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.FeedBaseURL == "" {
		return fmt.Errorf("FEED_BASE_URL is required")
	}
	if c.SnapshotsToKeep < 1 {
		return fmt.Errorf("SNAPSHOTS_TO_KEEP must be at least 1")
	}
	return nil
}

// DatabasePath returns the absolute path of a named database file.
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

// BackupEnabled reports whether S3 backups are configured.
func (c *Config) BackupEnabled() bool {
	return c.BackupBucket != ""
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
