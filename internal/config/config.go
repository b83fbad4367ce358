// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is everything the server needs to start. Defaults suit local
// development; JWT_SECRET is the one value with no usable default.
type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	DBPath   string `envconfig:"DB_PATH" default:"mychat.db"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	AvatarDir string `envconfig:"AVATAR_DIR" default:"avatars"`

	AdminUsername string `envconfig:"ADMIN_USERNAME" default:"admin"`
	AdminEmail    string `envconfig:"ADMIN_EMAIL" default:"admin@mychat.local"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD" default:"Admin123"`

	MaxFailedAccess int           `envconfig:"MAX_FAILED_ACCESS" default:"5"`
	LockoutDuration time.Duration `envconfig:"LOCKOUT_DURATION" default:"87600h"`
}

// Load reads .env (if present) and then the environment. Real environment
// variables win over .env values.
func Load() (Config, error) {
	// Ignore a missing .env: production configures through the environment.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
