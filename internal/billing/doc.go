// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

/*
Package billing connects businesses to Stripe.

It covers three concerns:

  - Subscriptions: hosted checkout for the starter and pro plans, the billing
    portal, cancel and resume at period end. Plan changes are persisted on the
    local subscription row and mirrored onto the business.
  - Entitlements: CheckLimit enforces the caps of the effective plan. A
    past_due subscription keeps its plan until GraceUntil, then counts as free.
  - Booking payments: one-off checkout sessions, refunds and checkout expiry,
    consumed by package booking through its Payments interface.

Webhooks are idempotent per Stripe event id via the stripe_events ledger.
SyncSubscriptions reconciles every live subscription with Stripe on a
schedule, with bounded concurrency, rate limiting and exponential backoff.

All Stripe calls go through a Gateway. BreakerGateway adds a circuit breaker
in front of StripeGateway.
*/
package billing
