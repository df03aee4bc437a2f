// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

/*
Package api serves the BookPro HTTP API under /api/v1 using the chi router.

Every response uses one JSON envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "...", "duration_ms": 3}}
	{"success": false, "error": {"code": "CONFLICT", "message": "...", "request_id": "..."}, "meta": {...}}

Service errors are mapped to HTTP statuses in errors.go: validation failures
are 400 with per-field details, exhausted plan limits are 402, slot and
lifecycle conflicts are 409, and payment provider failures are 502.

Route groups:

  - /health, /health/ready: probes, lightly rate limited
  - /auth/register, /auth/login: strict per-IP limits
  - /public/businesses/{slug}/...: anonymous booking flow, stricter limits
  - /webhooks/stripe: signature-verified Stripe events
  - /me, /businesses/{id}/..., /bookings/{id}/...: authenticated; business
    routes check the caller's membership role with casbin
  - /admin/...: platform administrators only

Prometheus metrics are exposed at /metrics, outside the versioned prefix.
*/
package api
