package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minJWTSecretLen = 16

// Config holds application configuration loaded from environment variables
type Config struct {
	PGURL          string
	Port           string
	JWTSecret      string
	JWTTTL         time.Duration
	CORSOrigins    []string
	QuoteTimeout   time.Duration
	SearchCacheTTL time.Duration
	BcryptCost     int
	LogLevel       string
	LogFormat      string
}

// Load reads configuration from environment variables.
// A .env file in the working directory is applied first if present;
// variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	pgURL := os.Getenv("PG_URL")
	if pgURL == "" {
		pgURL = os.Getenv("DATABASE_URL")
	}
	if pgURL == "" {
		return nil, fmt.Errorf("PG_URL environment variable is required")
	}

	secret := os.Getenv("JWT_SECRET")
	if len(secret) < minJWTSecretLen {
		return nil, fmt.Errorf("JWT_SECRET environment variable must be at least %d characters", minJWTSecretLen)
	}

	cfg := &Config{
		PGURL:       pgURL,
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   secret,
		CORSOrigins: splitList(getEnv("CORS_ORIGIN", "http://localhost:3000")),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.JWTTTL, err = getDuration("JWT_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.QuoteTimeout, err = getDuration("QUOTE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.SearchCacheTTL, err = getDuration("SEARCH_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}

	cfg.BcryptCost = 12
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil || cost < 4 || cost > 31 {
			return nil, fmt.Errorf("BCRYPT_COST must be an integer between 4 and 31, got %q", v)
		}
		cfg.BcryptCost = cost
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be 'text' or 'json', got %q", cfg.LogFormat)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
