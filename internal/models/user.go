// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package models

import (
	"time"
)

// Role is a platform role. Casbin policies are written against these names.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
	RoleStaff  Role = "staff"
	RoleClient Role = "client"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOwner, RoleStaff, RoleClient:
		return true
	}
	return false
}

// IsOperator reports whether the role runs a business (owner or staff).
func (r Role) IsOperator() bool {
	return r == RoleOwner || r == RoleStaff
}

// User is an account. PasswordHash is never encoded to JSON.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID string
	Role   Role
}

// SystemActor performs background transitions (webhooks, jobs).
var SystemActor = Actor{UserID: "system", Role: RoleAdmin}

// IsAdmin reports whether the actor has platform-wide access.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
