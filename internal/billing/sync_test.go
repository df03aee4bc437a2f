// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v79"
	"go.uber.org/goleak"

	"github.com/tomtom215/bookpro/internal/models"
)

func TestSyncSubscriptions(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t)
	for _, id := range []string{"biz2", "biz3", "biz4"} {
		h.store.businesses[id] = &models.Business{ID: id, Timezone: "UTC", Plan: models.PlanStarter}
	}
	graceOver := testNow.Add(-time.Hour)

	h.store.subscriptions = map[string]models.Subscription{
		// Cancellation scheduled in the Stripe dashboard.
		"biz1": {BusinessID: "biz1", StripeCustomerID: "cus_1", StripeSubscriptionID: "sub_1",
			Plan: models.PlanStarter, Status: models.SubscriptionActive},
		// Unchanged, but Stripe fails once first.
		"biz2": {BusinessID: "biz2", StripeCustomerID: "cus_2", StripeSubscriptionID: "sub_2",
			Plan: models.PlanStarter, Status: models.SubscriptionActive},
		// Deleted in Stripe: 404 is not retried.
		"biz3": {BusinessID: "biz3", StripeCustomerID: "cus_3", StripeSubscriptionID: "sub_3",
			Plan: models.PlanStarter, Status: models.SubscriptionActive},
		// Still past due after the grace period.
		"biz4": {BusinessID: "biz4", StripeCustomerID: "cus_4", StripeSubscriptionID: "sub_4",
			Plan: models.PlanStarter, Status: models.SubscriptionPastDue, GraceUntil: &graceOver},
	}
	h.gateway.remote["sub_1"] = &RemoteSubscription{ID: "sub_1", CustomerID: "cus_1", Status: "active",
		PriceID: "price_starter", CancelAtPeriodEnd: true}
	h.gateway.remote["sub_2"] = &RemoteSubscription{ID: "sub_2", CustomerID: "cus_2", Status: "active",
		PriceID: "price_starter"}
	h.gateway.getErrs["sub_2"] = []error{&stripe.Error{HTTPStatusCode: 503}}
	h.gateway.remote["sub_4"] = &RemoteSubscription{ID: "sub_4", CustomerID: "cus_4", Status: "past_due",
		PriceID: "price_starter"}

	report, err := h.svc.SyncSubscriptions(context.Background())
	if err != nil {
		t.Fatalf("SyncSubscriptions: %v", err)
	}
	report.Duration = 0
	want := SyncReport{Checked: 4, Updated: 1, Downgraded: 1, Failed: 1}
	if report != want {
		t.Errorf("report = %+v, want %+v", report, want)
	}

	if n := h.gateway.calls("sub_2"); n != 2 {
		t.Errorf("sub_2 fetched %d times, want 2", n)
	}
	if n := h.gateway.calls("sub_3"); n != 1 {
		t.Errorf("sub_3 fetched %d times, want 1", n)
	}
	if !h.store.sub("biz1").CancelAtPeriodEnd {
		t.Error("biz1 cancel flag not synced")
	}
	if got := h.store.sub("biz4"); got.Status != models.SubscriptionUnpaid {
		t.Errorf("biz4 status = %s, want unpaid", got.Status)
	}
	if h.store.plan("biz4") != models.PlanFree {
		t.Errorf("biz4 plan = %s, want free", h.store.plan("biz4"))
	}
	if got := h.store.sub("biz2").LastSyncedAt; got == nil || !got.Equal(testNow) {
		t.Errorf("biz2 LastSyncedAt = %v, want %v", got, testNow)
	}
}

func TestSyncSubscriptions_DowngradesWhenStripeUnreachable(t *testing.T) {
	h := newHarness(t)
	graceOver := testNow.Add(-time.Minute)
	h.store.subscriptions["biz1"] = models.Subscription{
		BusinessID: "biz1", StripeSubscriptionID: "sub_1",
		Plan: models.PlanPro, Status: models.SubscriptionPastDue, GraceUntil: &graceOver,
	}
	h.gateway.getErrs["sub_1"] = []error{
		&stripe.Error{HTTPStatusCode: 500},
		&stripe.Error{HTTPStatusCode: 502},
		&stripe.Error{HTTPStatusCode: 503},
	}

	report, err := h.svc.SyncSubscriptions(context.Background())
	if err != nil {
		t.Fatalf("SyncSubscriptions: %v", err)
	}
	if report.Failed != 1 || report.Downgraded != 1 {
		t.Errorf("report = %+v", report)
	}
	if n := h.gateway.calls("sub_1"); n != 3 {
		t.Errorf("fetched %d times, want 3 (max attempts)", n)
	}
	if h.store.plan("biz1") != models.PlanFree {
		t.Errorf("plan = %s, want free", h.store.plan("biz1"))
	}
}

func TestSyncSubscriptions_DowngradesOnce(t *testing.T) {
	h := newHarness(t)
	graceOver := testNow.Add(-time.Hour)
	h.store.subscriptions["biz1"] = models.Subscription{
		BusinessID: "biz1", StripeCustomerID: "cus_1", StripeSubscriptionID: "sub_1",
		Plan: models.PlanStarter, Status: models.SubscriptionPastDue, GraceUntil: &graceOver,
	}
	// Stripe keeps retrying the invoice for longer than our grace period.
	h.gateway.remote["sub_1"] = &RemoteSubscription{ID: "sub_1", CustomerID: "cus_1", Status: "past_due",
		PriceID: "price_starter"}

	wantDowngraded := []int{1, 0, 0}
	for run, want := range wantDowngraded {
		report, err := h.svc.SyncSubscriptions(context.Background())
		if err != nil {
			t.Fatalf("run %d: SyncSubscriptions: %v", run+1, err)
		}
		if report.Downgraded != want || report.Updated != 0 || report.Failed != 0 {
			t.Errorf("run %d: report = %+v, want %d downgraded", run+1, report, want)
		}
		if got := h.store.sub("biz1").Status; got != models.SubscriptionUnpaid {
			t.Errorf("run %d: status = %s, want unpaid", run+1, got)
		}
		if h.store.plan("biz1") != models.PlanFree {
			t.Errorf("run %d: plan = %s, want free", run+1, h.store.plan("biz1"))
		}
	}
	if n := h.publisher.count(); n != 1 {
		t.Errorf("published %d subscription events, want 1", n)
	}
	if got := h.store.sub("biz1").LastSyncedAt; got == nil || !got.Equal(testNow) {
		t.Errorf("LastSyncedAt = %v, want %v", got, testNow)
	}
}

func TestSyncSubscriptions_UnchangedPublishesNothing(t *testing.T) {
	h := newHarness(t)
	h.store.subscriptions["biz1"] = models.Subscription{
		BusinessID: "biz1", StripeCustomerID: "cus_1", StripeSubscriptionID: "sub_1",
		Plan: models.PlanStarter, Status: models.SubscriptionActive,
	}
	h.gateway.remote["sub_1"] = &RemoteSubscription{ID: "sub_1", CustomerID: "cus_1", Status: "active",
		PriceID: "price_starter"}

	report, err := h.svc.SyncSubscriptions(context.Background())
	if err != nil {
		t.Fatalf("SyncSubscriptions: %v", err)
	}
	if report.Checked != 1 || report.Updated != 0 {
		t.Errorf("report = %+v", report)
	}
	if n := h.publisher.count(); n != 0 {
		t.Errorf("published %d events for an unchanged subscription", n)
	}
	if h.store.sub("biz1").LastSyncedAt == nil {
		t.Error("LastSyncedAt not recorded")
	}
}

func TestSyncSubscriptions_Cancelled(t *testing.T) {
	h := newHarness(t)
	h.store.subscriptions["biz1"] = models.Subscription{
		BusinessID: "biz1", StripeSubscriptionID: "sub_1", Plan: models.PlanPro, Status: models.SubscriptionActive,
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.svc.SyncSubscriptions(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestBackoff(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Millisecond},
		{1, 2 * time.Millisecond},
		{2, 4 * time.Millisecond},
		{8, 4 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := h.svc.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestSyncJob(t *testing.T) {
	h := newHarness(t)
	job := NewSyncJob(h.svc, time.Hour)
	if job.Name() != "subscription-sync" {
		t.Errorf("Name() = %q", job.Name())
	}
	if err := job.RunOnce(context.Background()); err != nil {
		t.Errorf("RunOnce: %v", err)
	}
}
