package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the settings for both the API server and the sync client
type Config struct {
	// Server
	Port             string
	TableName        string
	ConnectionString string
	AllowedOrigins   []string
	StoreTimeout     time.Duration

	// Client
	APIBase         string
	CachePath       string
	OneDriveAPIBase string
	HTTPTimeout     time.Duration

	LogLevel  string
	LogFormat string
}

// connectionStringKeys are checked in order, first non-empty wins
var connectionStringKeys = []string{
	"TABLE_CONN_STRING",
	"AZURE_TABLE_CONNECTION_STRING",
	"STORAGE_CONNECTION_STRING",
}

// LoadEnvFile loads a .env file for local development (ignored in Docker).
// It reports whether a file was loaded; a missing file is not an error.
func LoadEnvFile(paths ...string) bool {
	if os.Getenv("DOCKER_ENV") != "" {
		return false
	}
	return godotenv.Load(paths...) == nil
}

// LoadConfig reads the configuration from the environment
func LoadConfig() (Config, error) {
	cfg := Config{}

	cfg.Port = envOrDefault("PORT", "8080")
	cfg.TableName = envOrDefault("TABLE_NAME", "worksheets")
	for _, key := range connectionStringKeys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			cfg.ConnectionString = value
			break
		}
	}
	cfg.AllowedOrigins = ParseOrigins(envOrDefault("ALLOWED_ORIGINS", "*"))

	var err error
	cfg.StoreTimeout, err = parseDurationEnv("STORE_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse STORE_TIMEOUT: %w", err)
	}

	cfg.APIBase = strings.TrimRight(strings.TrimSpace(os.Getenv("WORKSHEETS_API_BASE")), "/")
	cfg.CachePath = envOrDefault("WORKSHEETS_CACHE_PATH", defaultCachePath())
	cfg.OneDriveAPIBase = envOrDefault("ONEDRIVE_API_BASE", "https://api.onedrive.com/v1.0")
	cfg.HTTPTimeout, err = parseDurationEnv("HTTP_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse HTTP_TIMEOUT: %w", err)
	}

	cfg.LogLevel = envOrDefault("LOG_LEVEL", "info")
	cfg.LogFormat = os.Getenv("LOG_FORMAT")

	return cfg, nil
}

// ParseOrigins splits a comma-separated allow-list, dropping blanks
func ParseOrigins(raw string) []string {
	origins := make([]string, 0)
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func defaultCachePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "worksheets", "cache.db")
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && strings.TrimSpace(val) != "" {
		return strings.TrimSpace(val)
	}
	return fallback
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := envOrDefault(key, "")
	if value == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}
