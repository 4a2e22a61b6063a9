package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         int
	DatabaseURL  string
	LogLevel     string
	ClientOrigin string
}

// Load reads configuration from the environment, after merging in a
// .env file if one exists (missing .env is not an error).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:         5000,
		LogLevel:     "info",
		ClientOrigin: "*",
	}

	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return Config{}, fmt.Errorf("config: invalid PORT %q", v)
		}
		cfg.Port = p
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL is required")
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CLIENT_ORIGIN"); v != "" {
		cfg.ClientOrigin = v
	}

	return cfg, nil
}
