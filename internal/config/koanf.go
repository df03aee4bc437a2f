// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/bookpro/config.yaml",
	"/etc/bookpro/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
			PublicURL:   "http://localhost:8080",
		},
		Database: DatabaseConfig{
			Path:      "/data/bookpro.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 lets DuckDB pick runtime.NumCPU()
		},
		Security: SecurityConfig{
			SessionTimeout:  24 * time.Hour,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			PublicRateLimit: 30,
			LoginRatePerMin: 10,
			CORSOrigins:     []string{"*"},
			TrustedProxies:  []string{},
		},
		Stripe: StripeConfig{
			Timeout: 15 * time.Second,
		},
		Billing: BillingConfig{
			SyncEnabled:     true,
			SyncInterval:    6 * time.Hour,
			SyncConcurrency: 4,
			SyncRatePerSec:  5,
			SyncMaxAttempts: 4,
			SyncBaseBackoff: 2 * time.Second,
			SyncMaxBackoff:  time.Minute,
			GracePeriod:     7 * 24 * time.Hour,
		},
		Booking: BookingConfig{
			SlotStep:          15 * time.Minute,
			MinNotice:         2 * time.Hour,
			MaxAdvance:        90 * 24 * time.Hour,
			MaxRangeDays:      31,
			PaymentHold:       15 * time.Minute,
			HoldCheckInterval: time.Minute,
			SlotCacheTTL:      30 * time.Second,
		},
		Events: EventsConfig{
			Backend:       "memory",
			NATSURL:       "nats://127.0.0.1:4222",
			Embedded:      false,
			EmbeddedHost:  "127.0.0.1",
			EmbeddedPort:  4222,
			StoreDir:      "/data/nats",
			JetStream:     false,
			QueueGroup:    "bookpro",
			RetryCount:    3,
			RetryInterval: 500 * time.Millisecond,
			CloseTimeout:  30 * time.Second,
		},
		Notify: NotifyConfig{
			Enabled:               true,
			SMTPPort:              587,
			SMTPFromName:          "BookPro",
			SMTPUseTLS:            true,
			ReminderLead:          24 * time.Hour,
			ReminderCheckInterval: 5 * time.Minute,
			MaxConcurrent:         5,
		},
		Media: MediaConfig{
			Enabled: false,
			Region:  "us-east-1",
			Prefix:  "bookpro",
		},
		Audit: AuditConfig{
			BufferSize:      1000,
			RetentionDays:   365,
			CleanupInterval: 24 * time.Hour,
		},
		Sessions: SessionsConfig{
			Store: "badger",
			Path:  "/data/sessions",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf with layered sources.
// Priority (lowest to highest): defaults, config file, environment variables.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "" if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are koanf paths that accept comma-separated env values.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.trusted_proxies",
}

// processSliceFields splits comma-separated strings from the environment into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// YAML already produced a slice
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_port":    "server.port",
	"http_host":    "server.host",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",
	"public_url":   "server.public_url",

	// Database
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	// Security
	"jwt_secret":          "security.jwt_secret",
	"session_timeout":     "security.session_timeout",
	"admin_email":         "security.admin_email",
	"admin_password":      "security.admin_password",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"public_rate_limit":   "security.public_rate_limit",
	"login_rate_per_min":  "security.login_rate_per_min",
	"cors_origins":        "security.cors_origins",
	"trusted_proxies":     "security.trusted_proxies",
	"casbin_model_path":   "security.casbin_model_path",
	"casbin_policy_path":  "security.casbin_policy_path",

	// Stripe
	"stripe_secret_key":       "stripe.secret_key",
	"stripe_webhook_secret":   "stripe.webhook_secret",
	"stripe_starter_price_id": "stripe.starter_price_id",
	"stripe_pro_price_id":     "stripe.pro_price_id",
	"stripe_timeout":          "stripe.timeout",

	// Billing
	"billing_sync_enabled":      "billing.sync_enabled",
	"billing_sync_interval":     "billing.sync_interval",
	"billing_sync_concurrency":  "billing.sync_concurrency",
	"billing_sync_rate":         "billing.sync_rate_per_sec",
	"billing_sync_max_attempts": "billing.sync_max_attempts",
	"billing_sync_base_backoff": "billing.sync_base_backoff",
	"billing_sync_max_backoff":  "billing.sync_max_backoff",
	"billing_grace_period":      "billing.grace_period",

	// Booking
	"booking_slot_step":      "booking.slot_step",
	"booking_min_notice":     "booking.min_notice",
	"booking_max_advance":    "booking.max_advance",
	"booking_max_range_days": "booking.max_range_days",
	"booking_payment_hold":   "booking.payment_hold",
	"booking_hold_check":     "booking.hold_check_interval",
	"booking_slot_cache_ttl": "booking.slot_cache_ttl",

	// Events
	"events_backend":        "events.backend",
	"nats_url":              "events.nats_url",
	"nats_embedded":         "events.embedded",
	"nats_embedded_host":    "events.embedded_host",
	"nats_embedded_port":    "events.embedded_port",
	"nats_store_dir":        "events.store_dir",
	"nats_jetstream":        "events.jetstream",
	"nats_queue_group":      "events.queue_group",
	"events_retry_count":    "events.retry_count",
	"events_retry_interval": "events.retry_interval",
	"events_close_timeout":  "events.close_timeout",

	// Notifications
	"notify_enabled":          "notify.enabled",
	"smtp_host":               "notify.smtp_host",
	"smtp_port":               "notify.smtp_port",
	"smtp_username":           "notify.smtp_username",
	"smtp_password":           "notify.smtp_password",
	"smtp_from":               "notify.smtp_from",
	"smtp_from_name":          "notify.smtp_from_name",
	"smtp_use_tls":            "notify.smtp_use_tls",
	"reminder_lead":           "notify.reminder_lead",
	"reminder_check_interval": "notify.reminder_check_interval",
	"notify_max_concurrent":   "notify.max_concurrent",

	// Media
	"media_enabled":          "media.enabled",
	"media_s3_bucket":        "media.bucket",
	"media_s3_region":        "media.region",
	"media_s3_prefix":        "media.prefix",
	"media_s3_endpoint":      "media.endpoint",
	"media_public_base_url":  "media.public_base_url",
	"media_force_path_style": "media.force_path_style",

	// Audit
	"audit_buffer_size":      "audit.buffer_size",
	"audit_retention_days":   "audit.retention_days",
	"audit_cleanup_interval": "audit.cleanup_interval",

	// Sessions
	"session_store":      "sessions.store",
	"session_store_path": "sessions.path",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc converts an environment variable name to a koanf path.
// Unmapped variables return "" so they are skipped.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

// WatchConfigFile invokes callback whenever the config file at path changes.
func WatchConfigFile(path string, callback func()) error {
	f := file.Provider(path)
	return f.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
