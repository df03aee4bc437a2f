// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v79"

	"github.com/tomtom215/bookpro/internal/metrics"
	"github.com/tomtom215/bookpro/internal/models"
)

func TestBreakerGateway_OpensAfterConsecutiveFailures(t *testing.T) {
	fake := newFakeGateway()
	fake.err = &stripe.Error{HTTPStatusCode: 503}
	gw := NewBreakerGateway(fake, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := gw.RefundPayment(ctx, "pi_1"); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if gw.State() != gobreaker.StateOpen {
		t.Fatalf("state = %s, want open", gw.State())
	}
	if got := testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues(BreakerName)); got != 2 {
		t.Errorf("state gauge = %v, want 2", got)
	}

	err := gw.RefundPayment(ctx, "pi_1")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want ErrOpenState", err)
	}
	if len(fake.refunds) != 5 {
		t.Errorf("gateway reached %d times, want 5", len(fake.refunds))
	}
	if Retryable(err) {
		t.Error("open breaker reported as retryable")
	}
}

func TestBreakerGateway_ClientErrorsDoNotTrip(t *testing.T) {
	fake := newFakeGateway()
	fake.err = &stripe.Error{HTTPStatusCode: 400}
	gw := NewBreakerGateway(fake, time.Minute)

	for i := 0; i < 10; i++ {
		_ = gw.RefundPayment(context.Background(), "pi_1")
	}
	if gw.State() != gobreaker.StateClosed {
		t.Errorf("state = %s, want closed", gw.State())
	}
}

func TestBreakerGateway_PassesResults(t *testing.T) {
	fake := newFakeGateway()
	fake.remote["sub_1"] = &RemoteSubscription{ID: "sub_1", Status: "active"}
	gw := NewBreakerGateway(fake, 0)
	ctx := context.Background()

	id, err := gw.CreateCustomer(ctx, "a@b.test", "A", "biz1")
	if err != nil || id != "cus_1" {
		t.Errorf("CreateCustomer = %q, %v", id, err)
	}
	sess, err := gw.CreateBookingCheckout(ctx, BookingCheckout{PaymentCheckout: models.PaymentCheckout{BookingID: "bk1"}})
	if err != nil || sess.ID != "cs_pay" {
		t.Errorf("CreateBookingCheckout = %+v, %v", sess, err)
	}
	sub, err := gw.GetSubscription(ctx, "sub_1")
	if err != nil || sub.Status != "active" {
		t.Errorf("GetSubscription = %+v, %v", sub, err)
	}
	url, err := gw.CreatePortalSession(ctx, "cus_1", "https://x.test")
	if err != nil || url == "" {
		t.Errorf("CreatePortalSession = %q, %v", url, err)
	}
	if _, err := gw.GetSubscription(ctx, "missing"); err == nil {
		t.Error("expected not found error")
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &stripe.Error{HTTPStatusCode: 429}, true},
		{"server error", fmt.Errorf("wrapped: %w", &stripe.Error{HTTPStatusCode: 502}), true},
		{"bad request", &stripe.Error{HTTPStatusCode: 400}, false},
		{"not found", &stripe.Error{HTTPStatusCode: 404}, false},
		{"network", errors.New("connection reset by peer"), true},
		{"open breaker", gobreaker.ErrOpenState, false},
		{"cancelled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
