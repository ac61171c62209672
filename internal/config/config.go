// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Trigger names how a task run was started
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// Config holds application configuration
type Config struct {
	DatabasePath       string // SQLite file (resolved to absolute path)
	ImportDir          string // Directory holding catalogue.csv and daily/*.csv
	StrategyFile       string // Optional YAML overrides for strategy parameters
	WebhookURL         string // WeCom robot webhook
	Environment        string // Shown in the notification footer
	LogLevel           string
	LogPretty          bool
	HTTPPort           int
	MinScore           float64
	ScoreTopPercent    float64
	CatalogueMaxAgeDay int
	BenchmarkCode      string
	Task               string
	Trigger            Trigger
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dbPath, err := filepath.Abs(getEnv("DATABASE_PATH", "./data/karmy.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}

	cfg := &Config{
		DatabasePath:       dbPath,
		ImportDir:          getEnv("IMPORT_DIR", "./data/import"),
		StrategyFile:       getEnv("STRATEGY_FILE", ""),
		WebhookURL:         getEnv("WECOM_WEBHOOK", ""),
		Environment:        getEnv("ENVIRONMENT", "生产"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogPretty:          getEnvAsBool("LOG_PRETTY", false),
		HTTPPort:           getEnvAsInt("HTTP_PORT", 8080),
		MinScore:           getEnvAsFloat("SCORE_MIN", 60),
		ScoreTopPercent:    getEnvAsFloat("SCORE_TOP_PERCENT", 20),
		CatalogueMaxAgeDay: getEnvAsInt("ETF_LIST_UPDATE_INTERVAL_DAYS", 7),
		BenchmarkCode:      getEnv("BENCHMARK_CODE", "510300"),
		Task:               strings.TrimSpace(getEnv("TASK", "")),
		Trigger:            detectTrigger(getEnv("GITHUB_EVENT_NAME", "")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and sane
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.MinScore < 0 || c.MinScore > 100 {
		return fmt.Errorf("SCORE_MIN must be within [0, 100], got %v", c.MinScore)
	}
	if c.ScoreTopPercent <= 0 || c.ScoreTopPercent > 100 {
		return fmt.Errorf("SCORE_TOP_PERCENT must be within (0, 100], got %v", c.ScoreTopPercent)
	}
	if c.CatalogueMaxAgeDay < 1 {
		return fmt.Errorf("ETF_LIST_UPDATE_INTERVAL_DAYS must be positive, got %d", c.CatalogueMaxAgeDay)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT out of range: %d", c.HTTPPort)
	}
	return nil
}

// detectTrigger maps the CI event name to a trigger kind.
// workflow_dispatch is a manual run; anything else counts as scheduled.
func detectTrigger(eventName string) Trigger {
	if strings.EqualFold(strings.TrimSpace(eventName), "workflow_dispatch") {
		return TriggerManual
	}
	return TriggerSchedule
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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
