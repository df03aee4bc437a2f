// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Booking.SlotStep != 15*time.Minute {
		t.Errorf("Booking.SlotStep = %v, want 15m", cfg.Booking.SlotStep)
	}
	if cfg.Booking.PaymentHold != 15*time.Minute {
		t.Errorf("Booking.PaymentHold = %v, want 15m", cfg.Booking.PaymentHold)
	}
	if cfg.Billing.SyncInterval != 6*time.Hour {
		t.Errorf("Billing.SyncInterval = %v, want 6h", cfg.Billing.SyncInterval)
	}
	if cfg.Billing.GracePeriod != 7*24*time.Hour {
		t.Errorf("Billing.GracePeriod = %v, want 168h", cfg.Billing.GracePeriod)
	}
	if cfg.Events.Backend != "memory" {
		t.Errorf("Events.Backend = %q, want memory", cfg.Events.Backend)
	}
	if cfg.Sessions.Store != "badger" {
		t.Errorf("Sessions.Store = %q, want badger", cfg.Sessions.Store)
	}
	if cfg.Stripe.Enabled() {
		t.Error("Stripe should be disabled without a secret key")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"DUCKDB_PATH", "database.path"},
		{"STRIPE_SECRET_KEY", "stripe.secret_key"},
		{"BOOKING_SLOT_STEP", "booking.slot_step"},
		{"NATS_EMBEDDED", "events.embedded"},
		{"cors_origins", "security.cors_origins"},
		{"HOME", ""},
		{"PATH", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoadWithKoanf_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("BOOKING_MIN_NOTICE", "30m")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("SESSION_STORE", "memory")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Booking.MinNotice != 30*time.Minute {
		t.Errorf("Booking.MinNotice = %v, want 30m", cfg.Booking.MinNotice)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("Security.CORSOrigins = %v, want two trimmed origins", cfg.Security.CORSOrigins)
	}
	if cfg.Sessions.Store != "memory" {
		t.Errorf("Sessions.Store = %q, want memory", cfg.Sessions.Store)
	}
}

func TestLoadWithKoanf_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 7000
security:
  jwt_secret: "` + testJWTSecret + `"
booking:
  slot_step: 30m
  max_range_days: 14
sessions:
  store: memory
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Booking.SlotStep != 30*time.Minute {
		t.Errorf("Booking.SlotStep = %v, want 30m", cfg.Booking.SlotStep)
	}
	if cfg.Booking.MaxRangeDays != 14 {
		t.Errorf("Booking.MaxRangeDays = %d, want 14", cfg.Booking.MaxRangeDays)
	}
	// Untouched values keep their defaults
	if cfg.Booking.PaymentHold != 15*time.Minute {
		t.Errorf("Booking.PaymentHold = %v, want default 15m", cfg.Booking.PaymentHold)
	}
}

func TestLoadWithKoanf_MissingSecret(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("JWT_SECRET", "short")

	if _, err := LoadWithKoanf(); err == nil {
		t.Fatal("expected validation error for short JWT secret")
	}
}
