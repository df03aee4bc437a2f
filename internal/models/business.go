// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package models

import (
	"time"
)

// Business is a tenant: one calendar, one currency, one subscription.
type Business struct {
	ID       string `json:"id" db:"id"`
	Slug     string `json:"slug" db:"slug"`
	Name     string `json:"name" db:"name"`
	Timezone string `json:"timezone" db:"timezone"`
	Currency string `json:"currency" db:"currency"`
	Email    string `json:"email,omitempty" db:"email"`
	Phone    string `json:"phone,omitempty" db:"phone"`
	LogoURL  string `json:"logo_url,omitempty" db:"logo_url"`
	OwnerID  string `json:"owner_id" db:"owner_id"`
	Plan     Plan   `json:"plan" db:"plan"`

	// CancellationWindowMinutes is how long before the start a client can
	// still cancel and be refunded.
	CancellationWindowMinutes int `json:"cancellation_window_minutes" db:"cancellation_window_minutes"`

	// BufferMinutes is kept free after every booking.
	BufferMinutes int `json:"buffer_minutes" db:"buffer_minutes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CancellationWindow returns the window as a duration.
func (b *Business) CancellationWindow() time.Duration {
	return time.Duration(b.CancellationWindowMinutes) * time.Minute
}

// Buffer returns the post-booking buffer as a duration.
func (b *Business) Buffer() time.Duration {
	return time.Duration(b.BufferMinutes) * time.Minute
}

// Location loads the business time zone.
func (b *Business) Location() (*time.Location, error) {
	return time.LoadLocation(b.Timezone)
}

// Membership links an owner or staff user to a business.
type Membership struct {
	BusinessID string    `json:"business_id" db:"business_id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Role       Role      `json:"role" db:"role"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// BusinessUpdate holds the editable fields of a business. Nil fields are left unchanged.
type BusinessUpdate struct {
	Name                      *string `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	Timezone                  *string `json:"timezone,omitempty" validate:"omitempty,timezone"`
	Currency                  *string `json:"currency,omitempty" validate:"omitempty,iso4217"`
	Email                     *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone                     *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	CancellationWindowMinutes *int    `json:"cancellation_window_minutes,omitempty" validate:"omitempty,min=0,max=20160"`
	BufferMinutes             *int    `json:"buffer_minutes,omitempty" validate:"omitempty,min=0,max=240"`
}

// Apply copies the non-nil fields onto b.
func (u *BusinessUpdate) Apply(b *Business) {
	if u.Name != nil {
		b.Name = *u.Name
	}
	if u.Timezone != nil {
		b.Timezone = *u.Timezone
	}
	if u.Currency != nil {
		b.Currency = *u.Currency
	}
	if u.Email != nil {
		b.Email = *u.Email
	}
	if u.Phone != nil {
		b.Phone = *u.Phone
	}
	if u.CancellationWindowMinutes != nil {
		b.CancellationWindowMinutes = *u.CancellationWindowMinutes
	}
	if u.BufferMinutes != nil {
		b.BufferMinutes = *u.BufferMinutes
	}
}
