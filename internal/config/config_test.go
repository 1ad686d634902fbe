package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func baseEnv() map[string]string {
	return map[string]string{
		"REDIS_URL":          "redis://localhost:6379/0",
		"JWT_SECRET":         "secret",
		"SALES_API_BASE_URL": "http://sales.local/api",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppEnv != "development" {
		t.Fatalf("unexpected app env %q", cfg.AppEnv)
	}
	if cfg.HTTPAddr() != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr())
	}
	if cfg.SalesAPITimeout != 30*time.Second {
		t.Fatalf("unexpected sales timeout %v", cfg.SalesAPITimeout)
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Fatalf("unexpected session ttl %v", cfg.SessionTTL)
	}
	if cfg.CurrencyCode != "IDR" {
		t.Fatalf("unexpected currency %q", cfg.CurrencyCode)
	}
	if !cfg.StaffDiscountCapPct.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected staff cap %s", cfg.StaffDiscountCapPct)
	}
	if !cfg.ManagerDiscountCapPct.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected manager cap %s", cfg.ManagerDiscountCapPct)
	}
}

func TestLoadRequiredVariables(t *testing.T) {
	for _, missing := range []string{"REDIS_URL", "JWT_SECRET", "SALES_API_BASE_URL"} {
		env := baseEnv()
		env[missing] = ""
		if _, err := LoadForTests(env); err == nil {
			t.Fatalf("expected error when %s is missing", missing)
		}
	}
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "9090"
	env["SALES_API_BASE_URL"] = "http://sales.local/api/"
	env["DISCOUNT_CAP_STAFF_PCT"] = "15"
	env["DISCOUNT_CAP_MANAGER_PCT"] = "250"
	env["RATE_CHECKOUT_MAX"] = "5"

	cfg, err := LoadForTests(env)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr() != ":9090" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr())
	}
	if cfg.SalesAPIBaseURL != "http://sales.local/api" {
		t.Fatalf("trailing slash must be trimmed, got %q", cfg.SalesAPIBaseURL)
	}
	if !cfg.StaffDiscountCapPct.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("unexpected staff cap %s", cfg.StaffDiscountCapPct)
	}
	if !cfg.ManagerDiscountCapPct.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("caps above 100 must clamp, got %s", cfg.ManagerDiscountCapPct)
	}
	if cfg.CheckoutRateMax != 5 {
		t.Fatalf("unexpected checkout rate %d", cfg.CheckoutRateMax)
	}
}
