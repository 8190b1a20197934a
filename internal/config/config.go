// Package config reads the service configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full service configuration.
type Config struct {
	Env  string
	Addr string

	// Empty DatabaseURL, RedisURL or KafkaBrokers fall back to in-process
	// implementations.
	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string
	KafkaGroupID string

	APIBaseURL    string
	APITimeout    time.Duration
	APIRetries    uint
	CatalogReload time.Duration

	ValidationTimeout     time.Duration
	ValidationConcurrency int

	SessionTTL    time.Duration
	CartCacheIdle time.Duration

	Installments    int
	DiscountPercent int
}

// Load reads .env outside production, then the environment.
func Load() (Config, error) {
	env := getEnv("ENV", "development")
	if env != "production" {
		if err := godotenv.Load(); err != nil {
			slog.Info("No .env file loaded, using process environment", "err", err)
		}
	}

	var errs []string
	cfg := Config{
		Env:                   env,
		Addr:                  ":" + strings.TrimPrefix(getEnv("PORT", "8081"), ":"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisURL:              os.Getenv("REDIS_URL"),
		KafkaBrokers:          splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaGroupID:          getEnv("KAFKA_GROUP_ID", "storefront-stock"),
		APIBaseURL:            getEnv("API_BASE_URL", "http://localhost:8080/api"),
		APITimeout:            getDuration("API_TIMEOUT", 10*time.Second, &errs),
		APIRetries:            uint(getInt("API_RETRIES", 3, &errs)),
		CatalogReload:         getDuration("CATALOG_RELOAD_INTERVAL", 5*time.Minute, &errs),
		ValidationTimeout:     getDuration("VALIDATION_TIMEOUT", 10*time.Second, &errs),
		ValidationConcurrency: getInt("VALIDATION_CONCURRENCY", 4, &errs),
		SessionTTL:            getDuration("SESSION_TTL", 7*24*time.Hour, &errs),
		CartCacheIdle:         getDuration("CART_CACHE_IDLE", 30*time.Minute, &errs),
		Installments:          getInt("INSTALLMENTS", 24, &errs),
		DiscountPercent:       getInt("DISCOUNT_PERCENT", 46, &errs),
	}
	if cfg.APIRetries == 0 {
		errs = append(errs, "API_RETRIES must be at least 1")
	}
	if cfg.ValidationConcurrency <= 0 {
		errs = append(errs, "VALIDATION_CONCURRENCY must be positive")
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]string) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		*errs = append(*errs, fmt.Sprintf("%s must be a non-negative integer, got %q", key, val))
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration, errs *[]string) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		*errs = append(*errs, fmt.Sprintf("%s must be a duration like 10s, got %q", key, val))
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
