// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tomtom215/bookpro/internal/models"
)

const businessColumns = `id, slug, name, timezone, currency, email, phone, logo_url, owner_id, plan,
	cancellation_window_minutes, buffer_minutes, created_at, updated_at`

// CreateBusiness inserts the business and its owner membership in one transaction.
// A taken slug returns ErrDuplicate.
func (db *DB) CreateBusiness(ctx context.Context, b *models.Business) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.CreatedAt
	if b.Plan == "" {
		b.Plan = models.PlanFree
	}

	return db.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO businesses (`+businessColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.Slug, b.Name, b.Timezone, b.Currency, b.Email, b.Phone, b.LogoURL, b.OwnerID,
			string(b.Plan), b.CancellationWindowMinutes, b.BufferMinutes, b.CreatedAt, b.UpdatedAt)
		if err != nil {
			return wrapInsert("business", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO memberships (business_id, user_id, role, created_at) VALUES (?, ?, ?, ?)`,
			b.ID, b.OwnerID, string(models.RoleOwner), b.CreatedAt)
		return wrapInsert("membership", err)
	})
}

// GetBusiness loads a business by id.
func (db *DB) GetBusiness(ctx context.Context, id string) (*models.Business, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var b models.Business
	if err := db.x.GetContext(ctx, &b, `SELECT `+businessColumns+` FROM businesses WHERE id = ?`, id); err != nil {
		return nil, wrapGet("business", err)
	}
	return &b, nil
}

// GetBusinessBySlug loads a business by its public slug.
func (db *DB) GetBusinessBySlug(ctx context.Context, slug string) (*models.Business, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var b models.Business
	if err := db.x.GetContext(ctx, &b, `SELECT `+businessColumns+` FROM businesses WHERE slug = ?`, slug); err != nil {
		return nil, wrapGet("business", err)
	}
	return &b, nil
}

// UpdateBusiness writes the editable profile fields.
func (db *DB) UpdateBusiness(ctx context.Context, b *models.Business) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	b.UpdatedAt = time.Now().UTC()
	res, err := db.x.ExecContext(ctx, `
		UPDATE businesses SET name = ?, timezone = ?, currency = ?, email = ?, phone = ?,
			cancellation_window_minutes = ?, buffer_minutes = ?, updated_at = ?
		WHERE id = ?`,
		b.Name, b.Timezone, b.Currency, b.Email, b.Phone,
		b.CancellationWindowMinutes, b.BufferMinutes, b.UpdatedAt, b.ID)
	if err != nil {
		return fmt.Errorf("failed to update business: %w", err)
	}
	return requireOneRow(res, fmt.Errorf("business %s: %w", b.ID, ErrNotFound))
}

// SetBusinessPlan records the plan currently in effect.
func (db *DB) SetBusinessPlan(ctx context.Context, id string, plan models.Plan) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.x.ExecContext(ctx, `UPDATE businesses SET plan = ?, updated_at = ? WHERE id = ?`,
		string(plan), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set plan: %w", err)
	}
	return requireOneRow(res, fmt.Errorf("business %s: %w", id, ErrNotFound))
}

// SetBusinessLogo stores the public logo URL.
func (db *DB) SetBusinessLogo(ctx context.Context, id, url string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.x.ExecContext(ctx, `UPDATE businesses SET logo_url = ?, updated_at = ? WHERE id = ?`,
		url, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set logo: %w", err)
	}
	return requireOneRow(res, fmt.Errorf("business %s: %w", id, ErrNotFound))
}

// ListBusinessesForUser returns the businesses the user is a member of.
func (db *DB) ListBusinessesForUser(ctx context.Context, userID string) ([]models.Business, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var out []models.Business
	err := db.x.SelectContext(ctx, &out, `
		SELECT b.id, b.slug, b.name, b.timezone, b.currency, b.email, b.phone, b.logo_url, b.owner_id,
			b.plan, b.cancellation_window_minutes, b.buffer_minutes, b.created_at, b.updated_at
		FROM businesses b
		JOIN memberships m ON m.business_id = b.id
		WHERE m.user_id = ?
		ORDER BY b.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list businesses: %w", err)
	}
	return out, nil
}

// AddMembership links a user to a business. An existing link returns ErrDuplicate.
func (db *DB) AddMembership(ctx context.Context, m *models.Membership) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.CreatedAt = m.CreatedAt.UTC()
	_, err := db.x.ExecContext(ctx, `
		INSERT INTO memberships (business_id, user_id, role, created_at) VALUES (?, ?, ?, ?)`,
		m.BusinessID, m.UserID, string(m.Role), m.CreatedAt)
	return wrapInsert("membership", err)
}

// GetMembership returns the user's membership in a business.
func (db *DB) GetMembership(ctx context.Context, businessID, userID string) (*models.Membership, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var m models.Membership
	err := db.x.GetContext(ctx, &m, `
		SELECT business_id, user_id, role, created_at FROM memberships
		WHERE business_id = ? AND user_id = ?`, businessID, userID)
	if err != nil {
		return nil, wrapGet("membership", err)
	}
	return &m, nil
}

// ListMemberships returns every member of a business.
func (db *DB) ListMemberships(ctx context.Context, businessID string) ([]models.Membership, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var out []models.Membership
	err := db.x.SelectContext(ctx, &out, `
		SELECT business_id, user_id, role, created_at FROM memberships
		WHERE business_id = ? ORDER BY created_at`, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return out, nil
}

// CountStaff counts staff members of a business. The owner is not counted.
func (db *DB) CountStaff(ctx context.Context, businessID string) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int
	err := db.x.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM memberships WHERE business_id = ? AND role = ?`,
		businessID, string(models.RoleStaff))
	if err != nil {
		return 0, fmt.Errorf("failed to count staff: %w", err)
	}
	return n, nil
}
