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

// InsertStripeEvent claims an event id with status processing. The primary key on
// event_id makes this the idempotency gate: a replayed event returns ErrDuplicate.
func (db *DB) InsertStripeEvent(ctx context.Context, e *models.StripeEvent) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now()
	}
	e.ReceivedAt = e.ReceivedAt.UTC()
	if e.Status == "" {
		e.Status = models.StripeEventProcessing
	}

	_, err := db.x.ExecContext(ctx, `
		INSERT INTO stripe_events (event_id, type, status, received_at, processed_at, error)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.EventID, e.Type, string(e.Status), e.ReceivedAt, utcPtr(e.ProcessedAt), e.Error)
	return wrapInsert("stripe event", err)
}

// MarkStripeEventProcessed records successful handling.
func (db *DB) MarkStripeEventProcessed(ctx context.Context, eventID string, at time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.x.ExecContext(ctx, `
		UPDATE stripe_events SET status = ?, processed_at = ?, error = '' WHERE event_id = ?`,
		string(models.StripeEventProcessed), at.UTC(), eventID)
	if err != nil {
		return fmt.Errorf("failed to mark stripe event: %w", err)
	}
	return requireOneRow(res, fmt.Errorf("stripe event %s: %w", eventID, ErrNotFound))
}

// DeleteStripeEvent releases the claim so a retried delivery is processed again.
func (db *DB) DeleteStripeEvent(ctx context.Context, eventID string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if _, err := db.x.ExecContext(ctx, `DELETE FROM stripe_events WHERE event_id = ?`, eventID); err != nil {
		return fmt.Errorf("failed to delete stripe event: %w", err)
	}
	return nil
}

// GetStripeEvent loads one ledger row.
func (db *DB) GetStripeEvent(ctx context.Context, eventID string) (*models.StripeEvent, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var e models.StripeEvent
	err := db.x.GetContext(ctx, &e, `
		SELECT event_id, type, status, received_at, processed_at, error FROM stripe_events WHERE event_id = ?`, eventID)
	if err != nil {
		return nil, wrapGet("stripe event", err)
	}
	return &e, nil
}

// ListStripeEvents returns the most recent ledger rows.
func (db *DB) ListStripeEvents(ctx context.Context, limit int) ([]models.StripeEvent, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var out []models.StripeEvent
	err := db.x.SelectContext(ctx, &out, `
		SELECT event_id, type, status, received_at, processed_at, error FROM stripe_events
		ORDER BY received_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stripe events: %w", err)
	}
	return out, nil
}
