package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config with EDGEMED_* environment variables, loading a
// .env file from the working directory first when one exists. A missing
// .env file is not an error.
func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("EDGEMED_SERVER_ADDR"); v != "" {
		cfg.EndpointAddr = v
	}
	if v := os.Getenv("EDGEMED_DATABASE_DSN"); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := os.Getenv("EDGEMED_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("EDGEMED_TOKEN_VALIDITY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.TokenValidityDuration = d
		}
	}
}
