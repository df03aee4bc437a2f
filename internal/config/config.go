// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package config

import (
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Security SecurityConfig `koanf:"security"`
	Stripe   StripeConfig   `koanf:"stripe"`
	Billing  BillingConfig  `koanf:"billing"`
	Booking  BookingConfig  `koanf:"booking"`
	Events   EventsConfig   `koanf:"events"`
	Notify   NotifyConfig   `koanf:"notify"`
	Media    MediaConfig    `koanf:"media"`
	Audit    AuditConfig    `koanf:"audit"`
	Sessions SessionsConfig `koanf:"sessions"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`

	// PublicURL is the externally reachable base URL, used for Stripe return URLs.
	PublicURL string `koanf:"public_url"`
}

// DatabaseConfig holds DuckDB configuration
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// SecurityConfig holds authentication and HTTP hardening settings
type SecurityConfig struct {
	JWTSecret         string        `koanf:"jwt_secret"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`
	AdminEmail        string        `koanf:"admin_email"`
	AdminPassword     string        `koanf:"admin_password"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	PublicRateLimit   int           `koanf:"public_rate_limit"`
	LoginRatePerMin   int           `koanf:"login_rate_per_min"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	TrustedProxies    []string      `koanf:"trusted_proxies"`

	// CasbinModelPath and CasbinPolicyPath override the embedded RBAC files when set.
	CasbinModelPath  string `koanf:"casbin_model_path"`
	CasbinPolicyPath string `koanf:"casbin_policy_path"`
}

// StripeConfig holds Stripe API credentials and plan price mapping
type StripeConfig struct {
	SecretKey      string `koanf:"secret_key"`
	WebhookSecret  string `koanf:"webhook_secret"`
	StarterPriceID string `koanf:"starter_price_id"`
	ProPriceID     string `koanf:"pro_price_id"`

	// Timeout bounds every Stripe API call.
	Timeout time.Duration `koanf:"timeout"`
}

// Enabled reports whether Stripe credentials are configured.
func (s StripeConfig) Enabled() bool {
	return s.SecretKey != ""
}

// BillingConfig controls subscription lifecycle and the Stripe sync job
type BillingConfig struct {
	SyncEnabled     bool          `koanf:"sync_enabled"`
	SyncInterval    time.Duration `koanf:"sync_interval"`
	SyncConcurrency int           `koanf:"sync_concurrency"`
	SyncRatePerSec  float64       `koanf:"sync_rate_per_sec"`
	SyncMaxAttempts int           `koanf:"sync_max_attempts"`
	SyncBaseBackoff time.Duration `koanf:"sync_base_backoff"`
	SyncMaxBackoff  time.Duration `koanf:"sync_max_backoff"`
	GracePeriod     time.Duration `koanf:"grace_period"`
}

// BookingConfig controls slot generation and payment holds
type BookingConfig struct {
	SlotStep          time.Duration `koanf:"slot_step"`
	MinNotice         time.Duration `koanf:"min_notice"`
	MaxAdvance        time.Duration `koanf:"max_advance"`
	MaxRangeDays      int           `koanf:"max_range_days"`
	PaymentHold       time.Duration `koanf:"payment_hold"`
	HoldCheckInterval time.Duration `koanf:"hold_check_interval"`
	SlotCacheTTL      time.Duration `koanf:"slot_cache_ttl"`
}

// EventsConfig selects the event bus backend
type EventsConfig struct {
	Backend       string        `koanf:"backend"`
	NATSURL       string        `koanf:"nats_url"`
	Embedded      bool          `koanf:"embedded"`
	EmbeddedHost  string        `koanf:"embedded_host"`
	EmbeddedPort  int           `koanf:"embedded_port"`
	StoreDir      string        `koanf:"store_dir"`
	JetStream     bool          `koanf:"jetstream"`
	QueueGroup    string        `koanf:"queue_group"`
	RetryCount    int           `koanf:"retry_count"`
	RetryInterval time.Duration `koanf:"retry_interval"`
	CloseTimeout  time.Duration `koanf:"close_timeout"`
}

// NotifyConfig holds notification delivery settings
type NotifyConfig struct {
	Enabled               bool          `koanf:"enabled"`
	SMTPHost              string        `koanf:"smtp_host"`
	SMTPPort              int           `koanf:"smtp_port"`
	SMTPUsername          string        `koanf:"smtp_username"`
	SMTPPassword          string        `koanf:"smtp_password"`
	SMTPFrom              string        `koanf:"smtp_from"`
	SMTPFromName          string        `koanf:"smtp_from_name"`
	SMTPUseTLS            bool          `koanf:"smtp_use_tls"`
	ReminderLead          time.Duration `koanf:"reminder_lead"`
	ReminderCheckInterval time.Duration `koanf:"reminder_check_interval"`
	MaxConcurrent         int           `koanf:"max_concurrent"`
}

// SMTPEnabled reports whether outbound mail is configured.
func (n NotifyConfig) SMTPEnabled() bool {
	return n.SMTPHost != ""
}

// MediaConfig holds object storage settings for business logos
type MediaConfig struct {
	Enabled        bool   `koanf:"enabled"`
	Bucket         string `koanf:"bucket"`
	Region         string `koanf:"region"`
	Prefix         string `koanf:"prefix"`
	Endpoint       string `koanf:"endpoint"`
	PublicBaseURL  string `koanf:"public_base_url"`
	ForcePathStyle bool   `koanf:"force_path_style"`
}

// AuditConfig controls the audit trail writer and its retention
type AuditConfig struct {
	BufferSize      int           `koanf:"buffer_size"`
	RetentionDays   int           `koanf:"retention_days"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// SessionsConfig holds the revoked-token store location
type SessionsConfig struct {
	// Store is "badger" or "memory".
	Store string `koanf:"store"`
	Path  string `koanf:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, an optional YAML file, and the environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "" || c.Server.Environment == "development"
}
