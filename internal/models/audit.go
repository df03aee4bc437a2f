// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package models

import (
	"time"
)

// AuditEvent is one entry of a business's audit trail. Details is a JSON object.
type AuditEvent struct {
	ID           string    `json:"id" db:"id"`
	BusinessID   string    `json:"business_id" db:"business_id"`
	ActorID      string    `json:"actor_id,omitempty" db:"actor_id"`
	Action       string    `json:"action" db:"action"`
	ResourceType string    `json:"resource_type" db:"resource_type"`
	ResourceID   string    `json:"resource_id" db:"resource_id"`
	Details      string    `json:"details,omitempty" db:"details"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
