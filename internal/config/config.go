// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the server.
type Config struct {
	// HTTP
	Addr string

	// Database
	DBPath string

	// Scheduling
	TickInterval time.Duration
	PollTimeout  time.Duration

	// Content: optional CUE catalog path overriding the embedded one.
	CatalogPath string

	// Logging
	LogLevel slog.Level
}

// Load reads configuration from environment variables, after loading a
// .env file from the working directory if one exists.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Addr:        getEnvOrDefault("BRAWL_ADDR", ":8080"),
		DBPath:      getEnvOrDefault("BRAWL_DB_PATH", "brawl.db"),
		CatalogPath: os.Getenv("BRAWL_CATALOG"),
	}

	var err error
	if cfg.TickInterval, err = parsePositiveDuration("BRAWL_TICK_INTERVAL", "1s"); err != nil {
		return nil, err
	}
	if cfg.PollTimeout, err = parsePositiveDuration("BRAWL_POLL_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = ParseLevel(getEnvOrDefault("BRAWL_LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("invalid BRAWL_LOG_LEVEL: %w", err)
	}
	return cfg, nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, err
	}
	return level, nil
}

func parsePositiveDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnvOrDefault(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive, got %s", key, d)
	}
	return d, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
