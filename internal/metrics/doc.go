// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered on the default registry through promauto and
exposed at /metrics in Prometheus text format:

	curl http://localhost:8080/metrics

# Available Metrics

HTTP Metrics:
  - api_requests_total: Total API requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
  - api_active_requests: In-flight requests (gauge)
  - api_rate_limit_hits_total: Rate limit rejections (counter)

Database Metrics:
  - duckdb_query_duration_seconds: Query execution time (histogram)
  - duckdb_query_errors_total: Failed queries (counter)

Availability Metrics:
  - slot_generation_duration_seconds: Slot expansion time (histogram)
  - slot_cache_results_total: Slot cache lookups (counter)
    Labels: result (hit, miss)

Booking Metrics:
  - bookings_created_total: New bookings by payment_mode (counter)
  - booking_transitions_total: Status changes (counter)
    Labels: from, to
  - booking_holds_expired_total: Released payment holds (counter)
  - booking_refunds_total: Refunds by outcome (counter)
  - entitlement_rejections_total: Plan limits reached (counter)
    Labels: plan, limit

Billing Metrics:
  - stripe_webhook_events_total: Webhook deliveries (counter)
    Labels: type, outcome
  - stripe_api_requests_total: Outbound Stripe calls (counter)
  - subscription_sync_runs_total: Reconciliation runs (counter)
  - subscription_sync_duration_seconds: Reconciliation time (histogram)
  - subscription_sync_retries_total: Per-subscription retries (counter)
  - subscription_sync_last_success_timestamp: Last good run (gauge)

Messaging Metrics:
  - events_published_total, events_consumed_total (counter)
    Labels: topic, outcome
  - event_processing_duration_seconds (histogram)
  - notifications_sent_total: Labels kind, outcome (counter)

Resilience Metrics:
  - circuit_breaker_state: 0=closed, 1=half-open, 2=open (gauge)
  - circuit_breaker_requests_total, circuit_breaker_state_transitions_total (counter)

# Usage

	start := time.Now()
	err := db.CreateBooking(ctx, b)
	metrics.RecordDBQuery("INSERT", "bookings", time.Since(start), err)

# Thread Safety

All collectors are safe for concurrent use.
*/
package metrics
