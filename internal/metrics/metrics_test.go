// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDBQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		table     string
		err       error
		wantType  string
	}{
		{
			name:      "successful select",
			operation: "SELECT",
			table:     "bookings",
		},
		{
			name:      "short error",
			operation: "UPDATE",
			table:     "services",
			err:       errors.New("connection refused"),
			wantType:  "connection refused",
		},
		{
			name:      "long error is truncated",
			operation: "INSERT",
			table:     "stripe_events",
			err:       errors.New(strings.Repeat("x", 80)),
			wantType:  strings.Repeat("x", 50),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var before float64
			if tt.err != nil {
				before = testutil.ToFloat64(DBQueryErrors.WithLabelValues(tt.operation, tt.table, tt.wantType))
			}

			RecordDBQuery(tt.operation, tt.table, 5*time.Millisecond, tt.err)

			if tt.err != nil {
				after := testutil.ToFloat64(DBQueryErrors.WithLabelValues(tt.operation, tt.table, tt.wantType))
				if after != before+1 {
					t.Errorf("error counter = %v, want %v", after, before+1)
				}
			}
		})
	}
}

func TestRecordAPIRequest(t *testing.T) {
	c := APIRequestsTotal.WithLabelValues("GET", "/api/v1/public/{slug}/slots", "200")
	before := testutil.ToFloat64(c)

	RecordAPIRequest("GET", "/api/v1/public/{slug}/slots", "200", 20*time.Millisecond)

	if got := testutil.ToFloat64(c); got != before+1 {
		t.Errorf("api_requests_total = %v, want %v", got, before+1)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("after inc = %v, want %v", got, before+1)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("after dec = %v, want %v", got, before)
	}
}

func TestOutcomeLabels(t *testing.T) {
	ok := NotificationsSent.WithLabelValues("reminder", OutcomeSuccess)
	failed := NotificationsSent.WithLabelValues("reminder", OutcomeFailure)
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	RecordNotification("reminder", nil)
	RecordNotification("reminder", errors.New("smtp down"))
	RecordNotification("reminder", errors.New("smtp down"))

	if got := testutil.ToFloat64(ok); got != okBefore+1 {
		t.Errorf("success = %v, want %v", got, okBefore+1)
	}
	if got := testutil.ToFloat64(failed); got != failedBefore+2 {
		t.Errorf("failure = %v, want %v", got, failedBefore+2)
	}
}

func TestRecordSubscriptionSync(t *testing.T) {
	success := SubscriptionSyncRuns.WithLabelValues(OutcomeSuccess)
	before := testutil.ToFloat64(success)

	RecordSubscriptionSync(time.Second, nil)

	if got := testutil.ToFloat64(success); got != before+1 {
		t.Errorf("sync runs = %v, want %v", got, before+1)
	}
	if ts := testutil.ToFloat64(SubscriptionSyncLastSuccess); ts <= 0 {
		t.Errorf("last success timestamp not set: %v", ts)
	}
}

func TestRecordCircuitBreakerTransition(t *testing.T) {
	RecordCircuitBreakerTransition("stripe", "closed", "open", 2)

	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("stripe")); got != 2 {
		t.Errorf("state gauge = %v, want 2", got)
	}
	if got := testutil.ToFloat64(CircuitBreakerTransitions.WithLabelValues("stripe", "closed", "open")); got < 1 {
		t.Errorf("transitions = %v, want >= 1", got)
	}
}

func TestRecordEventConsumed(t *testing.T) {
	c := EventsConsumed.WithLabelValues("bookings.confirmed", OutcomeFailure)
	before := testutil.ToFloat64(c)

	RecordEventConsumed("bookings.confirmed", time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(c); got != before+1 {
		t.Errorf("consumed failures = %v, want %v", got, before+1)
	}
}
