// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"github.com/tomtom215/bookpro/internal/models"
)

// ReplaceWeeklyRules swaps the whole weekly template of a business atomically.
func (db *DB) ReplaceWeeklyRules(ctx context.Context, businessID string, rules []models.WeeklyRule) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	return db.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM weekly_rules WHERE business_id = ?`, businessID); err != nil {
			return fmt.Errorf("failed to clear weekly rules: %w", err)
		}
		for _, r := range rules {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO weekly_rules (business_id, weekday, start_minute, end_minute) VALUES (?, ?, ?, ?)`,
				businessID, r.Weekday, r.StartMinute, r.EndMinute)
			if err != nil {
				return fmt.Errorf("failed to insert weekly rule: %w", err)
			}
		}
		return nil
	})
}

// ListWeeklyRules returns the template ordered by weekday and start.
func (db *DB) ListWeeklyRules(ctx context.Context, businessID string) ([]models.WeeklyRule, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var out []models.WeeklyRule
	err := db.x.SelectContext(ctx, &out, `
		SELECT business_id, weekday, start_minute, end_minute FROM weekly_rules
		WHERE business_id = ? ORDER BY weekday, start_minute`, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list weekly rules: %w", err)
	}
	return out, nil
}

// UpsertWeekOverride creates or replaces the override for (business, week_start).
func (db *DB) UpsertWeekOverride(ctx context.Context, o *models.WeekOverride) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	days, err := json.Marshal(o.Days)
	if err != nil {
		return fmt.Errorf("failed to encode override days: %w", err)
	}
	o.DaysJSON = string(days)
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now

	_, err = db.x.ExecContext(ctx, `
		INSERT INTO week_overrides (id, business_id, week_start, days, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (business_id, week_start) DO UPDATE SET
			days = excluded.days, note = excluded.note, updated_at = excluded.updated_at`,
		o.ID, o.BusinessID, o.WeekStart, o.DaysJSON, o.Note, o.CreatedAt.UTC(), o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert week override: %w", err)
	}
	return nil
}

// DeleteWeekOverride removes the override for a week.
func (db *DB) DeleteWeekOverride(ctx context.Context, businessID, weekStart string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.x.ExecContext(ctx, `DELETE FROM week_overrides WHERE business_id = ? AND week_start = ?`,
		businessID, weekStart)
	if err != nil {
		return fmt.Errorf("failed to delete week override: %w", err)
	}
	return requireOneRow(res, fmt.Errorf("override %s: %w", weekStart, ErrNotFound))
}

// ListWeekOverrides returns overrides whose week_start falls in [fromWeek, toWeek].
// Both bounds are YYYY-MM-DD strings, which sort chronologically. Empty bounds are open.
func (db *DB) ListWeekOverrides(ctx context.Context, businessID, fromWeek, toWeek string) ([]models.WeekOverride, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, business_id, week_start, days, note, created_at, updated_at
		FROM week_overrides WHERE business_id = ?`
	args := []interface{}{businessID}
	if fromWeek != "" {
		query += ` AND week_start >= ?`
		args = append(args, fromWeek)
	}
	if toWeek != "" {
		query += ` AND week_start <= ?`
		args = append(args, toWeek)
	}
	query += ` ORDER BY week_start`

	var out []models.WeekOverride
	if err := db.x.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list week overrides: %w", err)
	}
	for i := range out {
		if err := json.Unmarshal([]byte(out[i].DaysJSON), &out[i].Days); err != nil {
			return nil, fmt.Errorf("failed to decode override %s: %w", out[i].WeekStart, err)
		}
	}
	return out, nil
}
