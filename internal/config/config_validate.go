// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package config

import (
	"fmt"
	"strings"
	"time"
)

// MinJWTSecretLength is the minimum accepted JWT signing secret length.
const MinJWTSecretLength = 32

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	if err := c.validateStripe(); err != nil {
		return err
	}

	if err := c.validateBilling(); err != nil {
		return err
	}

	if err := c.validateBooking(); err != nil {
		return err
	}

	if err := c.validateEvents(); err != nil {
		return err
	}

	if err := c.validateMedia(); err != nil {
		return err
	}

	if err := c.validateSessions(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.PublicURL != "" {
		if err := validateHTTPURL(c.Server.PublicURL, "PUBLIC_URL"); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if len(c.Security.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", MinJWTSecretLength)
	}

	if c.IsProduction() && c.ShouldWarnAboutCORS() {
		return fmt.Errorf("CORS_ORIGINS must not contain '*' in production")
	}

	return c.validateRateLimits()
}

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 || c.Security.RateLimitReqs > 100000 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between 1 and 100000")
	}
	if c.Security.RateLimitWindow < time.Second {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be at least 1s")
	}
	if c.Security.PublicRateLimit < 1 {
		return fmt.Errorf("PUBLIC_RATE_LIMIT must be at least 1")
	}
	return nil
}

func (c *Config) validateStripe() error {
	if !c.Stripe.Enabled() {
		return nil
	}
	if !strings.HasPrefix(c.Stripe.SecretKey, "sk_") && !strings.HasPrefix(c.Stripe.SecretKey, "rk_") {
		return fmt.Errorf("STRIPE_SECRET_KEY must start with sk_ or rk_")
	}
	if c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}
	if c.Stripe.StarterPriceID == "" || c.Stripe.ProPriceID == "" {
		return fmt.Errorf("STRIPE_STARTER_PRICE_ID and STRIPE_PRO_PRICE_ID are required when STRIPE_SECRET_KEY is set")
	}
	return nil
}

func (c *Config) validateBilling() error {
	if !c.Billing.SyncEnabled {
		return nil
	}
	if c.Billing.SyncInterval < time.Minute {
		return fmt.Errorf("BILLING_SYNC_INTERVAL must be at least 1m")
	}
	if c.Billing.SyncMaxAttempts < 1 {
		return fmt.Errorf("BILLING_SYNC_MAX_ATTEMPTS must be at least 1")
	}
	if c.Billing.SyncMaxBackoff < c.Billing.SyncBaseBackoff {
		return fmt.Errorf("BILLING_SYNC_MAX_BACKOFF must not be less than BILLING_SYNC_BASE_BACKOFF")
	}
	return nil
}

func (c *Config) validateBooking() error {
	b := c.Booking
	if b.SlotStep < 5*time.Minute || b.SlotStep > 4*time.Hour {
		return fmt.Errorf("BOOKING_SLOT_STEP must be between 5m and 4h")
	}
	if b.MinNotice < 0 {
		return fmt.Errorf("BOOKING_MIN_NOTICE must not be negative")
	}
	if b.MaxAdvance <= b.MinNotice {
		return fmt.Errorf("BOOKING_MAX_ADVANCE must be greater than BOOKING_MIN_NOTICE")
	}
	if b.MaxRangeDays < 1 || b.MaxRangeDays > 93 {
		return fmt.Errorf("BOOKING_MAX_RANGE_DAYS must be between 1 and 93")
	}
	if b.PaymentHold < time.Minute {
		return fmt.Errorf("BOOKING_PAYMENT_HOLD must be at least 1m")
	}
	return nil
}

func (c *Config) validateEvents() error {
	switch c.Events.Backend {
	case "memory":
		return nil
	case "nats":
		if c.Events.Embedded {
			return nil
		}
		return validateNATSURL(c.Events.NATSURL)
	default:
		return fmt.Errorf("EVENTS_BACKEND must be 'memory' or 'nats', got: %s", c.Events.Backend)
	}
}

func (c *Config) validateMedia() error {
	if !c.Media.Enabled {
		return nil
	}
	if c.Media.Bucket == "" {
		return fmt.Errorf("MEDIA_S3_BUCKET is required when MEDIA_ENABLED=true")
	}
	if c.Media.Endpoint != "" {
		return validateHTTPURL(c.Media.Endpoint, "MEDIA_S3_ENDPOINT")
	}
	return nil
}

func (c *Config) validateSessions() error {
	switch c.Sessions.Store {
	case "memory":
		return nil
	case "badger":
		if c.Sessions.Path == "" {
			return fmt.Errorf("SESSION_STORE_PATH is required when SESSION_STORE=badger")
		}
		return nil
	default:
		return fmt.Errorf("SESSION_STORE must be 'badger' or 'memory', got: %s", c.Sessions.Store)
	}
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, panic, disabled")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be 'json' or 'console'")
	}
}

// ShouldWarnAboutCORS reports whether the CORS configuration allows any origin.
func (c *Config) ShouldWarnAboutCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}
