// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

// Package database is the DuckDB persistence layer for BookPro.
//
// # Overview
//
// The package opens DuckDB through database/sql, wraps the handle with sqlx for
// struct scanning, creates the schema and applies versioned migrations. Every
// other package talks to storage through the methods on *DB, usually behind a
// small interface declared by the consumer.
//
// # Files
//
//   - database.go: lifecycle (New, Close, Ping) and connection pool setup
//   - schema.go: table and index DDL
//   - migrations.go: versioned migrations tracked in schema_migrations
//   - businesses.go, users.go, services.go: tenant, account and offering CRUD
//   - availability.go: weekly rules and week overrides
//   - bookings.go: booking rows, busy intervals, hold and reminder queries
//   - subscriptions.go, stripe_events.go: billing state and webhook ledger
//   - audit.go: audit trail
//
// # Conventions
//
// Timestamps are written with .UTC() and read back as UTC. IDs are UUID strings
// stored as VARCHAR. There are no foreign keys; referential checks happen in the
// service layer. Unique violations surface as ErrDuplicate, missing rows as
// ErrNotFound, and lost optimistic updates as ErrConflict.
//
// # Thread Safety
//
// *DB is safe for concurrent use. DuckDB serializes writers internally.
package database
