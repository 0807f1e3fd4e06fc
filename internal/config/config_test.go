package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "REDIS_DB", "ORDER_RATE_LIMIT", "ORDER_RATE_WINDOW", "CORS_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	if cfg.Port != "8081" {
		t.Errorf("port: got %s, want 8081", cfg.Port)
	}
	if cfg.OrderRateLimit != 5 {
		t.Errorf("rate limit: got %d, want 5", cfg.OrderRateLimit)
	}
	if cfg.OrderRateWindow != time.Minute {
		t.Errorf("rate window: got %s, want 1m", cfg.OrderRateWindow)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:5173" {
		t.Errorf("cors origins: got %v", cfg.CORSOrigins)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("ORDER_RATE_LIMIT", "12")
	t.Setenv("ORDER_RATE_WINDOW", "30s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")

	cfg := Load()

	if cfg.Port != "9000" || cfg.RedisDB != 3 || cfg.OrderRateLimit != 12 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.OrderRateWindow != 30*time.Second {
		t.Errorf("rate window: got %s", cfg.OrderRateWindow)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors origins: got %v", cfg.CORSOrigins)
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("ORDER_RATE_LIMIT", "many")
	t.Setenv("ORDER_RATE_WINDOW", "-5s")

	cfg := Load()

	if cfg.OrderRateLimit != 5 || cfg.OrderRateWindow != time.Minute {
		t.Errorf("expected fallbacks, got %d / %s", cfg.OrderRateLimit, cfg.OrderRateWindow)
	}
}
