// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/bookpro/internal/models"
)

const userColumns = `id, email, name, password_hash, role, created_at`

// CreateUser inserts a user. Email is stored lowercased; a taken email returns ErrDuplicate.
func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = u.CreatedAt.UTC()

	_, err := db.x.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :email, :name, :password_hash, :role, :created_at)`, u)
	return wrapInsert("user", err)
}

// GetUser loads a user by id.
func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var u models.User
	err := db.x.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		return nil, wrapGet("user", err)
	}
	return &u, nil
}

// GetUserByEmail loads a user by (case-insensitive) email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var u models.User
	err := db.x.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, wrapGet("user", err)
	}
	return &u, nil
}

// UpdateUserPassword replaces the password hash.
func (db *DB) UpdateUserPassword(ctx context.Context, id, hash string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.x.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return requireOneRow(res, fmt.Errorf("user %s: %w", id, ErrNotFound))
}

// CountUsersByRole counts accounts with the given role.
func (db *DB) CountUsersByRole(ctx context.Context, role models.Role) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int
	if err := db.x.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE role = ?`, string(role)); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
