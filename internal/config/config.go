// Package config provides configuration management for the application.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/amaumene/gostreamer/internal/constants"
)

const (
	// Default configuration file name
	defaultConfigFile = "config.json"
	// Default database path
	defaultDatabasePath = "./data.db"
)

// Config holds the application configuration.
// It supports loading from environment variables and JSON files.
type Config struct {
	// Provider endpoints
	ProviderBaseURL string `json:"PROVIDER_BASE_URL"`

	// Storage settings
	DatabasePath string        `json:"DATABASE_PATH"`
	CacheSize    int           `json:"CACHE_SIZE"`
	CacheTTL     time.Duration `json:"CACHE_TTL"`

	// Mapping-cache staleness guard. An expired mapping is treated as a
	// lookup miss and rebuilt; the stored row is kept until overwritten.
	MappingTTL time.Duration `json:"MAPPING_TTL"`

	// Swarm settings
	SwarmDataDir      string        `json:"SWARM_DATA_DIR"`
	MaxActiveSessions int           `json:"MAX_ACTIVE_SESSIONS"`
	SwarmIdleTimeout  time.Duration `json:"SWARM_IDLE_TIMEOUT"`

	// HTTP settings
	Port string `json:"PORT"`
}

// Load reads configuration from environment variables and optional JSON file.
// Environment variables take precedence over file values.
// Returns an error if the configuration is invalid.
func Load() (*Config, error) {
	cfg := &Config{
		CacheSize:         constants.DefaultCacheSize,
		CacheTTL:          time.Duration(constants.DefaultCacheTTL) * time.Hour,
		MappingTTL:        time.Duration(constants.DefaultMappingTTL) * time.Hour,
		MaxActiveSessions: constants.MaxActiveSessions,
		SwarmIdleTimeout:  constants.SwarmIdleTimeout,
		DatabasePath:      getEnvOrDefault("DATABASE_PATH", defaultDatabasePath),
		Port:              getEnvOrDefault("PORT", constants.DefaultPort),
	}

	// Load from config file if exists
	configFile := getEnvOrDefault("CONFIG_FILE", defaultConfigFile)
	if err := cfg.loadFromFile(configFile); err != nil {
		// Ignore file not found errors
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Environment variables take precedence
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// loadFromEnv loads configuration from environment variables.
func (c *Config) loadFromEnv() {
	if base := os.Getenv("PROVIDER_BASE_URL"); base != "" {
		c.ProviderBaseURL = base
	}
	if dir := os.Getenv("SWARM_DATA_DIR"); dir != "" {
		c.SwarmDataDir = dir
	}
	if maxStr := os.Getenv("MAX_ACTIVE_SESSIONS"); maxStr != "" {
		if n, err := strconv.Atoi(maxStr); err == nil && n > 0 {
			c.MaxActiveSessions = n
		}
	}
	if ttlStr := os.Getenv("MAPPING_TTL"); ttlStr != "" {
		if d, err := time.ParseDuration(ttlStr); err == nil && d > 0 {
			c.MappingTTL = d
		}
	}
}

// loadFromFile loads configuration from a JSON file.
func (c *Config) loadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, c)
}

// Validate checks if the configuration is valid.
// Sets default values for missing optional fields.
func (c *Config) Validate() error {
	if c.ProviderBaseURL == "" {
		return fmt.Errorf("PROVIDER_BASE_URL is required")
	}
	if c.SwarmDataDir == "" {
		c.SwarmDataDir = os.TempDir()
	}
	return nil
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
