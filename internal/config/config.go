// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything the server needs to start.
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr string `env:"ADDR" envDefault:":8080"`

	// DBPath is the SQLite database file.
	DBPath string `env:"DB_PATH" envDefault:"./data/trustvault.db"`

	// JWTSecret signs session tokens. Override in any real deployment.
	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret-change-in-prod"`

	// TokenTTL is how long issued tokens stay valid.
	TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads an optional .env file, then parses the environment.
func Load() (Config, error) {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
