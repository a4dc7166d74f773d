package config

import (
	"os"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, e := range os.Environ() {
		if len(e) > 10 && e[:10] == "OPTIMIZER_" {
			key := e[:indexByte(e, '=')]
			os.Unsetenv(key)
		}
	}
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func baseEnv(t *testing.T) {
	t.Helper()
	os.Setenv("OPTIMIZER_DATABASE_HOST", "localhost")
	os.Setenv("OPTIMIZER_DATABASE_NAME", "optimizer_test")
	os.Setenv("OPTIMIZER_DATABASE_USER", "optimizer")
	os.Setenv("OPTIMIZER_WEBHOOK_SECRET", "s3cr3t")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	baseEnv(t)
	t.Cleanup(func() { clearEnv(t) })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8585 {
		t.Errorf("expected default port 8585, got %d", cfg.Server.Port)
	}
	if cfg.Polling.IntervalMinutes != 5 {
		t.Errorf("expected default polling interval 5, got %d", cfg.Polling.IntervalMinutes)
	}
	if cfg.Optimization.CycleHours != 6 {
		t.Errorf("expected default optimization cycle 6h, got %d", cfg.Optimization.CycleHours)
	}
	if cfg.Optimization.MinImprovementPct != 5 {
		t.Errorf("expected default min improvement pct 5, got %v", cfg.Optimization.MinImprovementPct)
	}
	if cfg.Alerts.CooldownMinutes != 15 {
		t.Errorf("expected default alert cooldown 15m, got %d", cfg.Alerts.CooldownMinutes)
	}
}

func TestLoad_MissingWebhookSecret(t *testing.T) {
	clearEnv(t)
	os.Setenv("OPTIMIZER_DATABASE_HOST", "localhost")
	os.Setenv("OPTIMIZER_DATABASE_NAME", "optimizer_test")
	os.Setenv("OPTIMIZER_DATABASE_USER", "optimizer")
	t.Cleanup(func() { clearEnv(t) })

	if _, err := Load(); err == nil {
		t.Error("expected error for missing webhook secret")
	}
}

func TestValidate_RejectsBadPort(t *testing.T) {
	cfg := &Config{
		Server:       ServerConfig{Port: 70000},
		Database:     DatabaseConfig{Host: "h", Name: "n", User: "u", MaxConnections: 1, MinConnections: 1},
		Logging:      LoggingConfig{Level: "info", Format: "json"},
		Polling:      PollingConfig{IntervalMinutes: 1},
		Optimization: OptimizationConfig{CycleHours: 1},
		Webhook:      WebhookConfig{Port: 80, Secret: "x"},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for out-of-range port")
	}
}

func TestValidate_RejectsMinExceedsMaxConnections(t *testing.T) {
	cfg := &Config{
		Server:       ServerConfig{Port: 80},
		Database:     DatabaseConfig{Host: "h", Name: "n", User: "u", MaxConnections: 2, MinConnections: 5},
		Logging:      LoggingConfig{Level: "info", Format: "json"},
		Polling:      PollingConfig{IntervalMinutes: 1},
		Optimization: OptimizationConfig{CycleHours: 1},
		Webhook:      WebhookConfig{Port: 80, Secret: "x"},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when min connections exceeds max")
	}
}

func TestValidate_RejectsShortJWTSecret(t *testing.T) {
	cfg := &Config{
		Server:       ServerConfig{Port: 80},
		Database:     DatabaseConfig{Host: "h", Name: "n", User: "u", MaxConnections: 1, MinConnections: 1},
		Logging:      LoggingConfig{Level: "info", Format: "json"},
		Polling:      PollingConfig{IntervalMinutes: 1},
		Optimization: OptimizationConfig{CycleHours: 1},
		Webhook:      WebhookConfig{Port: 80, Secret: "x"},
		Auth:         AuthConfig{JWTSecret: "too-short"},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for short JWT secret")
	}
}

func TestDatabaseConfig_URL(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Name: "optimizer", User: "u", Password: "p", SSLMode: "disable"}
	want := "postgres://u:p@db:5432/optimizer?sslmode=disable"
	if got := d.URL(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
