// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package models

import (
	"time"
)

// PaymentMode controls how much of the price is collected online at booking time.
type PaymentMode string

const (
	PaymentModeNone    PaymentMode = "none"
	PaymentModeDeposit PaymentMode = "deposit"
	PaymentModeFull    PaymentMode = "full"
)

// Valid reports whether m is a known payment mode.
func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentModeNone, PaymentModeDeposit, PaymentModeFull:
		return true
	}
	return false
}

// Service is a bookable offering of a business.
type Service struct {
	ID              string      `json:"id" db:"id"`
	BusinessID      string      `json:"business_id" db:"business_id"`
	Name            string      `json:"name" db:"name"`
	Description     string      `json:"description,omitempty" db:"description"`
	DurationMinutes int         `json:"duration_minutes" db:"duration_minutes"`
	PriceCents      int64       `json:"price_cents" db:"price_cents"`
	Currency        string      `json:"currency" db:"currency"`
	PaymentMode     PaymentMode `json:"payment_mode" db:"payment_mode"`
	DepositPercent  int         `json:"deposit_percent,omitempty" db:"deposit_percent"`
	Active          bool        `json:"active" db:"active"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// Duration returns the appointment length.
func (s *Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// ServiceInput is the create/update payload for a service.
type ServiceInput struct {
	Name            string      `json:"name" validate:"required,min=2,max=120"`
	Description     string      `json:"description" validate:"max=2000"`
	DurationMinutes int         `json:"duration_minutes" validate:"required,min=5,max=1440"`
	PriceCents      int64       `json:"price_cents" validate:"min=0"`
	PaymentMode     PaymentMode `json:"payment_mode" validate:"required,oneof=none deposit full"`
	DepositPercent  int         `json:"deposit_percent" validate:"required_if=PaymentMode deposit,omitempty,min=1,max=100"`
	Active          *bool       `json:"active,omitempty"`
}
