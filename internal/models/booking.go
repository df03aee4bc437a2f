// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package models

import (
	"time"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPendingPayment BookingStatus = "pending_payment"
	BookingConfirmed      BookingStatus = "confirmed"
	BookingCompleted      BookingStatus = "completed"
	BookingNoShow         BookingStatus = "no_show"
	BookingCancelled      BookingStatus = "cancelled"
	BookingExpired        BookingStatus = "expired"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPendingPayment: {BookingConfirmed, BookingExpired, BookingCancelled},
	BookingConfirmed:      {BookingCompleted, BookingNoShow, BookingCancelled},
}

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPendingPayment, BookingConfirmed, BookingCompleted,
		BookingNoShow, BookingCancelled, BookingExpired:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s BookingStatus) Terminal() bool {
	return len(bookingTransitions[s]) == 0
}

// Reschedulable reports whether the booking can still be moved.
func (s BookingStatus) Reschedulable() bool {
	return s == BookingPendingPayment || s == BookingConfirmed
}

// PaymentStatus tracks online payment for a booking.
type PaymentStatus string

const (
	PaymentNotRequired PaymentStatus = "not_required"
	PaymentPending     PaymentStatus = "pending"
	PaymentPaid        PaymentStatus = "paid"
	PaymentRefunded    PaymentStatus = "refunded"
	PaymentFailed      PaymentStatus = "failed"
)

// Booking is a client's appointment with a business.
type Booking struct {
	ID                string        `json:"id" db:"id"`
	BusinessID        string        `json:"business_id" db:"business_id"`
	ServiceID         string        `json:"service_id" db:"service_id"`
	ClientID          string        `json:"client_id,omitempty" db:"client_id"`
	ClientName        string        `json:"client_name" db:"client_name"`
	ClientEmail       string        `json:"client_email" db:"client_email"`
	ClientPhone       string        `json:"client_phone,omitempty" db:"client_phone"`
	Notes             string        `json:"notes,omitempty" db:"notes"`
	StartAt           time.Time     `json:"start_at" db:"start_at"`
	EndAt             time.Time     `json:"end_at" db:"end_at"`
	Status            BookingStatus `json:"status" db:"status"`
	PriceCents        int64         `json:"price_cents" db:"price_cents"`
	AmountDueCents    int64         `json:"amount_due_cents" db:"amount_due_cents"`
	Currency          string        `json:"currency" db:"currency"`
	PaymentStatus     PaymentStatus `json:"payment_status" db:"payment_status"`
	CheckoutSessionID string        `json:"checkout_session_id,omitempty" db:"checkout_session_id"`
	PaymentIntentID   string        `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	HoldExpiresAt     *time.Time    `json:"hold_expires_at,omitempty" db:"hold_expires_at"`
	ReminderSentAt    *time.Time    `json:"reminder_sent_at,omitempty" db:"reminder_sent_at"`
	CancelledAt       *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancelReason      string        `json:"cancel_reason,omitempty" db:"cancel_reason"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`

	// CheckoutURL is set only on the create response when payment is due.
	CheckoutURL string `json:"checkout_url,omitempty" db:"-"`
}

// BlocksCalendar reports whether the booking occupies its time at instant now.
// Unpaid holds stop blocking once they expire even before the expiry job runs.
func (b *Booking) BlocksCalendar(now time.Time) bool {
	switch b.Status {
	case BookingConfirmed:
		return true
	case BookingPendingPayment:
		return b.HoldExpiresAt == nil || b.HoldExpiresAt.After(now)
	}
	return false
}

// BookingFilter narrows List queries. Zero values mean "any".
type BookingFilter struct {
	BusinessID string
	ClientID   string
	Status     BookingStatus
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// BookingRequest is the public create payload.
type BookingRequest struct {
	ServiceID   string    `json:"service_id" validate:"required"`
	StartAt     time.Time `json:"start_at" validate:"required"`
	ClientName  string    `json:"client_name" validate:"required,min=2,max=120"`
	ClientEmail string    `json:"client_email" validate:"required,email"`
	ClientPhone string    `json:"client_phone" validate:"omitempty,max=32"`
	Notes       string    `json:"notes" validate:"max=1000"`
}

// TimeRangeUTC is a half-open [Start, End) interval of instants.
type TimeRangeUTC struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether the two half-open intervals intersect.
func (r TimeRangeUTC) Overlaps(other TimeRangeUTC) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}
