// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/bookpro/internal/logging"
)

// Migration represents a versioned database migration.
type Migration struct {
	Version     int       `db:"version"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	SQL         string    `db:"-"`
	AppliedAt   time.Time `db:"applied_at"`
}

// schemaMigrationsTable creates the migration tracking table
const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name VARCHAR NOT NULL,
	description VARCHAR NOT NULL DEFAULT '',
	applied_at TIMESTAMP NOT NULL
);
`

// migrations returns all versioned migrations in order. The base schema in
// schema.go is version 0; entries here are append-only.
func migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Name:        "bookings_start_index",
			Description: "Index bookings by start for reminder and hold scans",
			SQL:         `CREATE INDEX IF NOT EXISTS idx_bookings_start ON bookings(start_at);`,
		},
		{
			Version:     2,
			Name:        "subscriptions_stripe_index",
			Description: "Look up subscriptions by Stripe subscription id from webhooks",
			SQL:         `CREATE INDEX IF NOT EXISTS idx_subscriptions_stripe ON subscriptions(stripe_subscription_id);`,
		},
	}
}

func (db *DB) getAppliedMigrations(ctx context.Context) (map[int]Migration, error) {
	var rows []Migration
	if err := db.x.SelectContext(ctx, &rows, `SELECT version, name, description, applied_at FROM schema_migrations ORDER BY version`); err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	applied := make(map[int]Migration, len(rows))
	for _, m := range rows {
		applied[m.Version] = m
	}
	return applied, nil
}

// runVersionedMigrations executes only new migrations that haven't been applied yet.
func (db *DB) runVersionedMigrations() error {
	ctx, cancel := schemaContext()
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	newMigrations := 0
	for _, m := range migrations() {
		if _, exists := applied[m.Version]; exists {
			continue
		}
		if _, err := db.conn.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("failed to execute migration v%d (%s): %w", m.Version, m.Name, err)
		}
		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, description, applied_at) VALUES (?, ?, ?, ?)`,
			m.Version, m.Name, m.Description, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
		}
		newMigrations++
	}

	if newMigrations > 0 {
		logging.Info().Int("applied", newMigrations).Msg("Applied database migrations")
	}
	return nil
}

// SchemaVersion returns the highest applied migration version.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var version int
	if err := db.x.GetContext(ctx, &version, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// AppliedMigrations lists applied migrations in version order.
func (db *DB) AppliedMigrations(ctx context.Context) ([]Migration, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var rows []Migration
	if err := db.x.SelectContext(ctx, &rows, `SELECT version, name, description, applied_at FROM schema_migrations ORDER BY version`); err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	return rows, nil
}
