// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

/*
Package main is the entry point for the BookPro server.

BookPro is a multi-tenant appointment booking backend. Businesses publish
services and weekly opening hours, clients book free slots, and owners are
billed through Stripe subscriptions.

# Application Architecture

Every long-running component runs under a Suture v4 supervisor tree:

	RootSupervisor ("bookpro")
	├── WorkerSupervisor ("worker-layer")
	│   ├── audit-recorder
	│   ├── job:audit-retention
	│   ├── job:hold-expiry
	│   ├── job:reminders (notify.enabled)
	│   └── job:subscription-sync (Stripe configured, billing.sync_enabled)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── event-router (notifier, audit consumer, live feed)
	│   └── websocket-hub
	└── APISupervisor ("api-layer")
	    └── http-server

Component initialization order:

 1. Configuration: Koanf v2 with defaults, an optional config file and environment variables
 2. Database: DuckDB with embedded schema migrations
 3. Authentication: session revocation store, JWT manager and the optional bootstrap admin
 4. Authorization: Casbin RBAC enforcer
 5. Event bus: in-process channels or NATS (optionally embedded)
 6. Domain services: availability, billing, booking, catalog, audit and media
 7. Event consumers and the HTTP router

# Configuration

Configuration is loaded with layered sources (highest priority wins):
  - Environment variables (see internal/config)
  - Config file (config.yaml)
  - Built-in defaults

Required in production:
  - JWT_SECRET: 32+ character secret for token signing

Optional:
  - ADMIN_EMAIL, ADMIN_PASSWORD: create or reset an admin account at startup
  - STRIPE_SECRET_KEY, STRIPE_WEBHOOK_SECRET: enable paid plans and online payments
  - NOTIFY_ENABLED, SMTP_HOST: send notifications by email instead of logging them
  - MEDIA_ENABLED, MEDIA_S3_BUCKET: store business logos in S3

# Signal Handling

SIGINT and SIGTERM cancel the root context. The supervisor gives the HTTP
server a 10s drain, stops the router and workers, and then the
deferred closers release the event bus, session store and database.
*/
package main
