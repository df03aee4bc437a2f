// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/bookpro/internal/models"
)

const serviceColumns = `id, business_id, name, description, duration_minutes, price_cents, currency,
	payment_mode, deposit_percent, active, created_at, updated_at`

// CreateService inserts a service.
func (db *DB) CreateService(ctx context.Context, s *models.Service) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now

	_, err := db.x.NamedExecContext(ctx, `
		INSERT INTO services (`+serviceColumns+`)
		VALUES (:id, :business_id, :name, :description, :duration_minutes, :price_cents, :currency,
			:payment_mode, :deposit_percent, :active, :created_at, :updated_at)`, s)
	return wrapInsert("service", err)
}

// GetService loads a service scoped to its business.
func (db *DB) GetService(ctx context.Context, businessID, id string) (*models.Service, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var s models.Service
	err := db.x.GetContext(ctx, &s, `SELECT `+serviceColumns+` FROM services WHERE id = ? AND business_id = ?`,
		id, businessID)
	if err != nil {
		return nil, wrapGet("service", err)
	}
	return &s, nil
}

// ListServices returns a business's services ordered by name.
func (db *DB) ListServices(ctx context.Context, businessID string, activeOnly bool) ([]models.Service, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + serviceColumns + ` FROM services WHERE business_id = ?`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY name`

	var out []models.Service
	if err := db.x.SelectContext(ctx, &out, query, businessID); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return out, nil
}

// UpdateService writes all editable fields.
func (db *DB) UpdateService(ctx context.Context, s *models.Service) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	s.UpdatedAt = time.Now().UTC()
	res, err := db.x.NamedExecContext(ctx, `
		UPDATE services SET name = :name, description = :description, duration_minutes = :duration_minutes,
			price_cents = :price_cents, currency = :currency, payment_mode = :payment_mode,
			deposit_percent = :deposit_percent, active = :active, updated_at = :updated_at
		WHERE id = :id AND business_id = :business_id`, s)
	if err != nil {
		return fmt.Errorf("failed to update service: %w", err)
	}
	return requireOneRow(res, fmt.Errorf("service %s: %w", s.ID, ErrNotFound))
}

// DeleteService removes a service that has no upcoming active bookings.
// Otherwise it returns ErrConflict and the caller should deactivate it instead.
func (db *DB) DeleteService(ctx context.Context, businessID, id string, now time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var upcoming int
	err := db.x.GetContext(ctx, &upcoming, `
		SELECT COUNT(*) FROM bookings
		WHERE service_id = ? AND business_id = ? AND status IN (?, ?) AND end_at > ?`,
		id, businessID, string(models.BookingPendingPayment), string(models.BookingConfirmed), now.UTC())
	if err != nil {
		return fmt.Errorf("failed to count bookings for service: %w", err)
	}
	if upcoming > 0 {
		return fmt.Errorf("service %s has %d upcoming bookings: %w", id, upcoming, ErrConflict)
	}

	res, err := db.x.ExecContext(ctx, `DELETE FROM services WHERE id = ? AND business_id = ?`, id, businessID)
	if err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}
	return requireOneRow(res, fmt.Errorf("service %s: %w", id, ErrNotFound))
}

// CountServices counts all services of a business, active or not.
func (db *DB) CountServices(ctx context.Context, businessID string) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int
	if err := db.x.GetContext(ctx, &n, `SELECT COUNT(*) FROM services WHERE business_id = ?`, businessID); err != nil {
		return 0, fmt.Errorf("failed to count services: %w", err)
	}
	return n, nil
}
