// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

/*
schema.go - Database Schema Management

Tables:
  - users: accounts (email unique)
  - businesses: tenants (slug unique)
  - memberships: owner/staff links between users and businesses
  - services: bookable offerings
  - weekly_rules: recurring availability template, several rows per weekday
  - week_overrides: whole-week replacements keyed by (business_id, week_start)
  - bookings: appointments and their payment state
  - subscriptions: local copy of Stripe subscription state, one per business
  - stripe_events: webhook idempotency ledger (event_id primary key)
  - audit_events: audit trail

Columns that are updated never carry a unique index; DuckDB rewrites indexed
rows on update and rejects some same-transaction key changes.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"fmt"
)

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

var tableCreationQueries = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR PRIMARY KEY,
		email VARCHAR NOT NULL UNIQUE,
		name VARCHAR NOT NULL DEFAULT '',
		password_hash VARCHAR NOT NULL,
		role VARCHAR NOT NULL,
		created_at TIMESTAMP NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS businesses (
		id VARCHAR PRIMARY KEY,
		slug VARCHAR NOT NULL UNIQUE,
		name VARCHAR NOT NULL,
		timezone VARCHAR NOT NULL,
		currency VARCHAR NOT NULL,
		email VARCHAR NOT NULL DEFAULT '',
		phone VARCHAR NOT NULL DEFAULT '',
		logo_url VARCHAR NOT NULL DEFAULT '',
		owner_id VARCHAR NOT NULL,
		plan VARCHAR NOT NULL DEFAULT 'free',
		cancellation_window_minutes INTEGER NOT NULL DEFAULT 1440,
		buffer_minutes INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS memberships (
		business_id VARCHAR NOT NULL,
		user_id VARCHAR NOT NULL,
		role VARCHAR NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (business_id, user_id)
	);`,

	`CREATE TABLE IF NOT EXISTS services (
		id VARCHAR PRIMARY KEY,
		business_id VARCHAR NOT NULL,
		name VARCHAR NOT NULL,
		description VARCHAR NOT NULL DEFAULT '',
		duration_minutes INTEGER NOT NULL,
		price_cents BIGINT NOT NULL DEFAULT 0,
		currency VARCHAR NOT NULL,
		payment_mode VARCHAR NOT NULL DEFAULT 'none',
		deposit_percent INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS weekly_rules (
		business_id VARCHAR NOT NULL,
		weekday INTEGER NOT NULL,
		start_minute INTEGER NOT NULL,
		end_minute INTEGER NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS week_overrides (
		id VARCHAR NOT NULL,
		business_id VARCHAR NOT NULL,
		week_start VARCHAR NOT NULL,
		days VARCHAR NOT NULL,
		note VARCHAR NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (business_id, week_start)
	);`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id VARCHAR PRIMARY KEY,
		business_id VARCHAR NOT NULL,
		service_id VARCHAR NOT NULL,
		client_id VARCHAR NOT NULL DEFAULT '',
		client_name VARCHAR NOT NULL,
		client_email VARCHAR NOT NULL,
		client_phone VARCHAR NOT NULL DEFAULT '',
		notes VARCHAR NOT NULL DEFAULT '',
		start_at TIMESTAMP NOT NULL,
		end_at TIMESTAMP NOT NULL,
		status VARCHAR NOT NULL,
		price_cents BIGINT NOT NULL DEFAULT 0,
		amount_due_cents BIGINT NOT NULL DEFAULT 0,
		currency VARCHAR NOT NULL,
		payment_status VARCHAR NOT NULL,
		checkout_session_id VARCHAR NOT NULL DEFAULT '',
		payment_intent_id VARCHAR NOT NULL DEFAULT '',
		hold_expires_at TIMESTAMP,
		reminder_sent_at TIMESTAMP,
		cancelled_at TIMESTAMP,
		cancel_reason VARCHAR NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS subscriptions (
		business_id VARCHAR PRIMARY KEY,
		stripe_customer_id VARCHAR NOT NULL DEFAULT '',
		stripe_subscription_id VARCHAR NOT NULL DEFAULT '',
		plan VARCHAR NOT NULL DEFAULT 'free',
		status VARCHAR NOT NULL DEFAULT 'incomplete',
		current_period_end TIMESTAMP,
		cancel_at_period_end BOOLEAN NOT NULL DEFAULT FALSE,
		grace_until TIMESTAMP,
		last_synced_at TIMESTAMP,
		updated_at TIMESTAMP NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS stripe_events (
		event_id VARCHAR PRIMARY KEY,
		type VARCHAR NOT NULL,
		status VARCHAR NOT NULL,
		received_at TIMESTAMP NOT NULL,
		processed_at TIMESTAMP,
		error VARCHAR NOT NULL DEFAULT ''
	);`,

	`CREATE TABLE IF NOT EXISTS audit_events (
		id VARCHAR PRIMARY KEY,
		business_id VARCHAR NOT NULL,
		actor_id VARCHAR NOT NULL DEFAULT '',
		action VARCHAR NOT NULL,
		resource_type VARCHAR NOT NULL,
		resource_id VARCHAR NOT NULL,
		details VARCHAR NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);`,
}

// createIndexes creates lookup indexes. None of them cover columns that are updated.
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range indexQueries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

var indexQueries = []string{
	`CREATE INDEX IF NOT EXISTS idx_memberships_user ON memberships(user_id);`,
	`CREATE INDEX IF NOT EXISTS idx_services_business ON services(business_id);`,
	`CREATE INDEX IF NOT EXISTS idx_weekly_rules_business ON weekly_rules(business_id);`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_business ON bookings(business_id);`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_client ON bookings(client_id);`,
	`CREATE INDEX IF NOT EXISTS idx_audit_business ON audit_events(business_id);`,
}
