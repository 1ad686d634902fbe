package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	CORSAllowedOrigins []string

	SalesAPIBaseURL     string
	SalesAPITimeout     time.Duration
	SalesAPIMaxAttempts int

	SessionTTL      time.Duration
	IdempotencyTTL  time.Duration
	CatalogCacheTTL time.Duration
	CurrencyCode    string

	// Role-based ceilings for percentage discounts. Managers and admins use
	// ManagerDiscountCapPct; pharmacists and cashiers use StaffDiscountCapPct.
	ManagerDiscountCapPct decimal.Decimal
	StaffDiscountCapPct   decimal.Decimal

	SearchRateMax      int
	SearchRateWindow   time.Duration
	CheckoutRateMax    int
	CheckoutRateWindow time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          strings.TrimSpace(k.String("JWT_ISSUER")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		SalesAPIBaseURL:     strings.TrimRight(strings.TrimSpace(k.String("SALES_API_BASE_URL")), "/"),
		SalesAPITimeout:     parseDuration(k.String("SALES_API_TIMEOUT"), "30s"),
		SalesAPIMaxAttempts: parseInt(k.String("SALES_API_MAX_ATTEMPTS"), 3),

		SessionTTL:      parseDuration(k.String("REGISTER_SESSION_TTL"), "12h"),
		IdempotencyTTL:  parseDuration(k.String("IDEMPOTENCY_TTL"), "6h"),
		CatalogCacheTTL: parseDuration(k.String("CATALOG_CACHE_TTL"), "30s"),
		CurrencyCode:    valueOrDefault(k.String("CURRENCY_CODE"), "IDR"),

		ManagerDiscountCapPct: parsePct(k.String("DISCOUNT_CAP_MANAGER_PCT"), "100"),
		StaffDiscountCapPct:   parsePct(k.String("DISCOUNT_CAP_STAFF_PCT"), "10"),

		SearchRateMax:      parseInt(k.String("RATE_SEARCH_MAX"), 30),
		SearchRateWindow:   parseDuration(k.String("RATE_SEARCH_WINDOW"), "10s"),
		CheckoutRateMax:    parseInt(k.String("RATE_CHECKOUT_MAX"), 10),
		CheckoutRateWindow: parseDuration(k.String("RATE_CHECKOUT_WINDOW"), "1m"),
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.SalesAPIBaseURL == "" {
		return nil, errors.New("SALES_API_BASE_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	var parsed int
	if _, err := fmt.Sscanf(trimmed, "%d", &parsed); err != nil {
		return fallback
	}
	return parsed
}

func parsePct(value, fallback string) decimal.Decimal {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := decimal.NewFromString(base)
	if err != nil || d.IsNegative() {
		d, _ = decimal.NewFromString(fallback)
	}
	hundred := decimal.NewFromInt(100)
	if d.GreaterThan(hundred) {
		return hundred
	}
	return d
}

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests lets tests override environment variables and restores them afterwards.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
