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

const subscriptionColumns = `business_id, stripe_customer_id, stripe_subscription_id, plan, status,
	current_period_end, cancel_at_period_end, grace_until, last_synced_at, updated_at`

// GetSubscription loads the subscription of a business.
func (db *DB) GetSubscription(ctx context.Context, businessID string) (*models.Subscription, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var s models.Subscription
	err := db.x.GetContext(ctx, &s, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE business_id = ?`, businessID)
	if err != nil {
		return nil, wrapGet("subscription", err)
	}
	return &s, nil
}

// GetSubscriptionByStripeID finds the subscription row for a Stripe subscription id.
func (db *DB) GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var s models.Subscription
	err := db.x.GetContext(ctx, &s, `
		SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_subscription_id = ? LIMIT 1`,
		stripeSubscriptionID)
	if err != nil {
		return nil, wrapGet("subscription", err)
	}
	return &s, nil
}

// GetSubscriptionByCustomer finds the subscription row for a Stripe customer id.
func (db *DB) GetSubscriptionByCustomer(ctx context.Context, customerID string) (*models.Subscription, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var s models.Subscription
	err := db.x.GetContext(ctx, &s, `
		SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_customer_id = ? LIMIT 1`, customerID)
	if err != nil {
		return nil, wrapGet("subscription", err)
	}
	return &s, nil
}

// UpsertSubscription inserts or fully replaces the row for s.BusinessID.
func (db *DB) UpsertSubscription(ctx context.Context, s *models.Subscription) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	s.UpdatedAt = time.Now().UTC()
	_, err := db.x.ExecContext(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (business_id) DO UPDATE SET
			stripe_customer_id = excluded.stripe_customer_id,
			stripe_subscription_id = excluded.stripe_subscription_id,
			plan = excluded.plan,
			status = excluded.status,
			current_period_end = excluded.current_period_end,
			cancel_at_period_end = excluded.cancel_at_period_end,
			grace_until = excluded.grace_until,
			last_synced_at = excluded.last_synced_at,
			updated_at = excluded.updated_at`,
		s.BusinessID, s.StripeCustomerID, s.StripeSubscriptionID, string(s.Plan), string(s.Status),
		utcPtr(s.CurrentPeriodEnd), s.CancelAtPeriodEnd, utcPtr(s.GraceUntil), utcPtr(s.LastSyncedAt),
		s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// ListSyncableSubscriptions returns live subscriptions that have a Stripe subscription id.
func (db *DB) ListSyncableSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var out []models.Subscription
	err := db.x.SelectContext(ctx, &out, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE stripe_subscription_id <> '' AND status <> 'canceled' ORDER BY business_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return out, nil
}
