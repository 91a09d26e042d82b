// Package config loads server configuration from the environment.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the gridshare server.
type Config struct {
	Addr      string // listen address, e.g. ":4000"
	DataDir   string // directory holding the SQLite database
	JWTSecret string // secret for signing session tokens
	PublicURL string // base URL used when rendering invite links
	LogLevel  string // DEBUG, INFO, WARN or ERROR
}

// Load reads configuration from a .env file (if present) and the process
// environment. Missing optional values fall back to development defaults.
func Load() *Config {
	// Best effort; a missing .env file is not an error.
	_ = godotenv.Load()

	return &Config{
		Addr:      getenv("GRIDSHARE_ADDR", ":4000"),
		DataDir:   getenv("GRIDSHARE_DATA_DIR", "./data"),
		JWTSecret: getenv("GRIDSHARE_JWT_SECRET", "dev-secret"),
		PublicURL: getenv("GRIDSHARE_PUBLIC_URL", "http://localhost:5173"),
		LogLevel:  getenv("GRIDSHARE_LOG_LEVEL", "INFO"),
	}
}

func getenv(name, fallback string) string {
	if val := os.Getenv(name); val != "" {
		return val
	}
	return fallback
}
