// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/bookpro/internal/models"
)

const bookingColumns = `id, business_id, service_id, client_id, client_name, client_email, client_phone, notes,
	start_at, end_at, status, price_cents, amount_due_cents, currency, payment_status,
	checkout_session_id, payment_intent_id, hold_expires_at, reminder_sent_at, cancelled_at,
	cancel_reason, created_at, updated_at`

// maxBookingPage caps List page sizes.
const maxBookingPage = 500

// CreateBooking inserts a booking.
func (db *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.CreatedAt

	_, err := db.x.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.BusinessID, b.ServiceID, b.ClientID, b.ClientName, b.ClientEmail, b.ClientPhone, b.Notes,
		b.StartAt.UTC(), b.EndAt.UTC(), string(b.Status), b.PriceCents, b.AmountDueCents, b.Currency,
		string(b.PaymentStatus), b.CheckoutSessionID, b.PaymentIntentID,
		utcPtr(b.HoldExpiresAt), utcPtr(b.ReminderSentAt), utcPtr(b.CancelledAt),
		b.CancelReason, b.CreatedAt, b.UpdatedAt)
	return wrapInsert("booking", err)
}

// GetBooking loads a booking by id.
func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var b models.Booking
	if err := db.x.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id); err != nil {
		return nil, wrapGet("booking", err)
	}
	return &b, nil
}

// GetBookingByPaymentIntent finds the booking paid by a Stripe payment intent.
func (db *DB) GetBookingByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Booking, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var b models.Booking
	err := db.x.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE payment_intent_id = ? LIMIT 1`,
		paymentIntentID)
	if err != nil {
		return nil, wrapGet("booking", err)
	}
	return &b, nil
}

// UpdateBooking writes every mutable field, but only if the stored status still
// equals expected. A concurrent change returns ErrConflict.
func (db *DB) UpdateBooking(ctx context.Context, b *models.Booking, expected models.BookingStatus) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	b.UpdatedAt = time.Now().UTC()
	res, err := db.x.ExecContext(ctx, `
		UPDATE bookings SET
			start_at = ?, end_at = ?, status = ?, payment_status = ?,
			checkout_session_id = ?, payment_intent_id = ?, hold_expires_at = ?,
			reminder_sent_at = ?, cancelled_at = ?, cancel_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		b.StartAt.UTC(), b.EndAt.UTC(), string(b.Status), string(b.PaymentStatus),
		b.CheckoutSessionID, b.PaymentIntentID, utcPtr(b.HoldExpiresAt),
		utcPtr(b.ReminderSentAt), utcPtr(b.CancelledAt), b.CancelReason, b.UpdatedAt,
		b.ID, string(expected))
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	return requireOneRow(res, fmt.Errorf("booking %s no longer %s: %w", b.ID, expected, ErrConflict))
}

// SetBookingPaymentStatus updates only the payment status.
func (db *DB) SetBookingPaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.x.ExecContext(ctx, `UPDATE bookings SET payment_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return requireOneRow(res, fmt.Errorf("booking %s: %w", id, ErrNotFound))
}

// ListBookings returns bookings matching the filter ordered by start.
func (db *DB) ListBookings(ctx context.Context, f models.BookingFilter) ([]models.Booking, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		where []string
		args  []interface{}
	)
	if f.BusinessID != "" {
		where = append(where, "business_id = ?")
		args = append(args, f.BusinessID)
	}
	if f.ClientID != "" {
		where = append(where, "client_id = ?")
		args = append(args, f.ClientID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if !f.From.IsZero() {
		where = append(where, "start_at >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		where = append(where, "start_at < ?")
		args = append(args, f.To.UTC())
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	limit := f.Limit
	if limit <= 0 || limit > maxBookingPage {
		limit = maxBookingPage
	}
	query += ` ORDER BY start_at, id LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	var out []models.Booking
	if err := db.x.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return out, nil
}

// ListBlockingBookings returns bookings that occupy the calendar between from and
// to at instant now: confirmed ones and unexpired payment holds. excludeID skips
// one booking, used when rescheduling it.
func (db *DB) ListBlockingBookings(ctx context.Context, businessID string, from, to, now time.Time, excludeID string) ([]models.Booking, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var out []models.Booking
	err := db.x.SelectContext(ctx, &out, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE business_id = ? AND start_at < ? AND end_at > ? AND id <> ?
			AND (status = ? OR (status = ? AND (hold_expires_at IS NULL OR hold_expires_at > ?)))
		ORDER BY start_at`,
		businessID, to.UTC(), from.UTC(), excludeID,
		string(models.BookingConfirmed), string(models.BookingPendingPayment), now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list blocking bookings: %w", err)
	}
	return out, nil
}

// CountBookingsCreated counts bookings created in [from, to), ignoring lapsed
// payment holds. Used for the monthly plan limit.
func (db *DB) CountBookingsCreated(ctx context.Context, businessID string, from, to time.Time) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int
	err := db.x.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM bookings
		WHERE business_id = ? AND created_at >= ? AND created_at < ? AND status <> ?`,
		businessID, from.UTC(), to.UTC(), string(models.BookingExpired))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return n, nil
}

// ListExpiredHolds returns pending_payment bookings whose hold ended before now.
func (db *DB) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.Booking, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var out []models.Booking
	err := db.x.SelectContext(ctx, &out, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = ? AND hold_expires_at IS NOT NULL AND hold_expires_at <= ?
		ORDER BY hold_expires_at LIMIT ?`,
		string(models.BookingPendingPayment), now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired holds: %w", err)
	}
	return out, nil
}

// ListReminderDue returns confirmed bookings starting in (now, until] that have
// not been reminded yet.
func (db *DB) ListReminderDue(ctx context.Context, now, until time.Time, limit int) ([]models.Booking, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var out []models.Booking
	err := db.x.SelectContext(ctx, &out, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = ? AND reminder_sent_at IS NULL AND start_at > ? AND start_at <= ?
		ORDER BY start_at LIMIT ?`,
		string(models.BookingConfirmed), now.UTC(), until.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return out, nil
}

// MarkReminderSent stamps reminder_sent_at once. It reports false if another
// worker stamped it first.
func (db *DB) MarkReminderSent(ctx context.Context, id string, at time.Time) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.x.ExecContext(ctx, `
		UPDATE bookings SET reminder_sent_at = ?, updated_at = ? WHERE id = ? AND reminder_sent_at IS NULL`,
		at.UTC(), at.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}
