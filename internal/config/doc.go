// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

/*
Package config provides centralized configuration management for BookPro.

Configuration is layered with Koanf. Struct defaults are loaded first, then an
optional YAML file, then environment variables. Later layers win.

# Config File

The file is located through CONFIG_PATH or the first existing entry of
DefaultConfigPaths. Keys mirror the koanf struct tags:

	server:
	  port: 8080
	  public_url: https://book.example.com
	booking:
	  slot_step: 15m
	  min_notice: 2h
	stripe:
	  secret_key: sk_live_...
	  webhook_secret: whsec_...

# Environment Variables

Only explicitly mapped variables are read (see envMappings). The most common:

Server:
  - HTTP_PORT, HTTP_HOST, ENVIRONMENT, PUBLIC_URL

Database:
  - DUCKDB_PATH, DUCKDB_MAX_MEMORY

Security:
  - JWT_SECRET (required, 32+ characters)
  - CORS_ORIGINS, TRUSTED_PROXIES (comma separated)
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, PUBLIC_RATE_LIMIT

Stripe and billing:
  - STRIPE_SECRET_KEY, STRIPE_WEBHOOK_SECRET
  - STRIPE_STARTER_PRICE_ID, STRIPE_PRO_PRICE_ID
  - BILLING_SYNC_INTERVAL, BILLING_SYNC_MAX_ATTEMPTS, BILLING_GRACE_PERIOD

Booking:
  - BOOKING_SLOT_STEP, BOOKING_MIN_NOTICE, BOOKING_MAX_ADVANCE, BOOKING_PAYMENT_HOLD

Events:
  - EVENTS_BACKEND (memory or nats), NATS_URL, NATS_EMBEDDED

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Validation

Validate runs after loading and returns the first problem found. Error
messages name the environment variable to change.
*/
package config
