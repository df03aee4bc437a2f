// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values shared by several counters.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Availability Metrics
	SlotGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slot_generation_duration_seconds",
			Help:    "Time spent expanding availability into slots",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	SlotCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slot_cache_results_total",
			Help: "Slot grid cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss"
	)

	// Booking Metrics
	BookingsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_created_total",
			Help: "Total number of bookings created",
		},
		[]string{"payment_mode"},
	)

	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_transitions_total",
			Help: "Booking status transitions",
		},
		[]string{"from", "to"},
	)

	BookingHoldsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_holds_expired_total",
			Help: "Payment holds released because checkout was not completed in time",
		},
	)

	BookingRefunds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_refunds_total",
			Help: "Refunds issued for cancelled bookings",
		},
		[]string{"outcome"},
	)

	EntitlementRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_rejections_total",
			Help: "Operations refused because the plan limit was reached",
		},
		[]string{"plan", "limit"},
	)

	// Billing Metrics
	StripeWebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stripe_webhook_events_total",
			Help: "Stripe webhook deliveries by event type and outcome",
		},
		[]string{"type", "outcome"}, // outcome: "processed", "duplicate", "ignored", "failed", "invalid_signature"
	)

	StripeAPIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stripe_api_requests_total",
			Help: "Outbound Stripe API calls",
		},
		[]string{"operation", "outcome"},
	)

	SubscriptionSyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_sync_runs_total",
			Help: "Subscription reconciliation runs",
		},
		[]string{"outcome"},
	)

	SubscriptionSyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "subscription_sync_duration_seconds",
			Help:    "Duration of subscription reconciliation runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	SubscriptionSyncRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subscription_sync_retries_total",
			Help: "Retries of individual subscription fetches",
		},
	)

	SubscriptionSyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "subscription_sync_last_success_timestamp",
			Help: "Unix timestamp of the last successful reconciliation",
		},
	)

	// Notification Metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Notifications delivered by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// Event Bus Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Domain events published to the message bus",
		},
		[]string{"topic", "outcome"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Domain events handled by consumers",
		},
		[]string{"topic", "outcome"},
	)

	EventProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "event_processing_duration_seconds",
			Help:    "Time spent handling one domain event",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"topic"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Auth Metrics
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Login attempts by result",
		},
		[]string{"result"}, // "success", "invalid_credentials", "locked_out"
	)

	TokensRevoked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_tokens_revoked_total",
			Help: "Access tokens revoked by logout",
		},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordBookingTransition counts one status change.
func RecordBookingTransition(from, to string) {
	BookingTransitions.WithLabelValues(from, to).Inc()
}

// RecordSubscriptionSync records the outcome of one reconciliation run.
func RecordSubscriptionSync(duration time.Duration, err error) {
	SubscriptionSyncDuration.Observe(duration.Seconds())
	if err != nil {
		SubscriptionSyncRuns.WithLabelValues(OutcomeFailure).Inc()
		return
	}
	SubscriptionSyncRuns.WithLabelValues(OutcomeSuccess).Inc()
	SubscriptionSyncLastSuccess.Set(float64(time.Now().Unix()))
}

// RecordStripeCall records an outbound Stripe API call.
func RecordStripeCall(operation string, err error) {
	StripeAPIRequests.WithLabelValues(operation, outcome(err)).Inc()
}

// RecordNotification records a delivery attempt.
func RecordNotification(kind string, err error) {
	NotificationsSent.WithLabelValues(kind, outcome(err)).Inc()
}

// RecordEventPublish records a publish to the message bus.
func RecordEventPublish(topic string, err error) {
	EventsPublished.WithLabelValues(topic, outcome(err)).Inc()
}

// RecordEventConsumed records one handled message.
func RecordEventConsumed(topic string, duration time.Duration, err error) {
	EventsConsumed.WithLabelValues(topic, outcome(err)).Inc()
	EventProcessingDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

// RecordCircuitBreakerTransition records a state change and updates the state gauge.
// state values: 0=closed, 1=half-open, 2=open.
func RecordCircuitBreakerTransition(name, from, to string, state float64) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(state)
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
