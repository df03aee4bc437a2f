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

// InsertAuditEvent appends to the audit trail.
func (db *DB) InsertAuditEvent(ctx context.Context, e *models.AuditEvent) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	e.CreatedAt = e.CreatedAt.UTC()
	_, err := db.x.NamedExecContext(ctx, `
		INSERT INTO audit_events (id, business_id, actor_id, action, resource_type, resource_id, details, created_at)
		VALUES (:id, :business_id, :actor_id, :action, :resource_type, :resource_id, :details, :created_at)`, e)
	return wrapInsert("audit event", err)
}

// ListAuditEvents returns the newest entries for a business.
func (db *DB) ListAuditEvents(ctx context.Context, businessID string, limit int) ([]models.AuditEvent, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var out []models.AuditEvent
	err := db.x.SelectContext(ctx, &out, `
		SELECT id, business_id, actor_id, action, resource_type, resource_id, details, created_at
		FROM audit_events WHERE business_id = ? ORDER BY created_at DESC, id LIMIT ?`, businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	return out, nil
}

// DeleteAuditEventsBefore removes entries older than cutoff and returns how many went.
func (db *DB) DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.x.ExecContext(ctx, `DELETE FROM audit_events WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted audit events: %w", err)
	}
	return n, nil
}
