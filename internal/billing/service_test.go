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

	"github.com/google/go-cmp/cmp"
	"github.com/stripe/stripe-go/v79"

	"github.com/tomtom215/bookpro/internal/models"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type harness struct {
	store     *fakeStore
	gateway   *fakeGateway
	bookings  *fakeBookings
	publisher *fakePublisher
	svc       *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     newFakeStore(),
		gateway:   newFakeGateway(),
		bookings:  &fakeBookings{},
		publisher: &fakePublisher{},
	}
	h.store.businesses["biz1"] = &models.Business{
		ID: "biz1", Name: "Studio", Email: "owner@studio.test", Timezone: "UTC", Currency: "EUR",
		Plan: models.PlanFree,
	}
	h.svc = NewService(h.store, h.gateway, h.publisher, Config{
		StarterPriceID:  "price_starter",
		ProPriceID:      "price_pro",
		PublicURL:       "https://book.example.test/",
		GracePeriod:     72 * time.Hour,
		SyncConcurrency: 2,
		SyncRatePerSec:  1000,
		SyncMaxAttempts: 3,
		SyncBaseBackoff: time.Millisecond,
		SyncMaxBackoff:  4 * time.Millisecond,
	})
	h.svc.SetClock(func() time.Time { return testNow })
	h.svc.SetBookings(h.bookings)
	return h
}

func TestStartSubscription(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sess, err := h.svc.StartSubscription(ctx, "biz1", models.PlanStarter)
	if err != nil {
		t.Fatalf("StartSubscription: %v", err)
	}
	if sess.URL == "" {
		t.Error("expected a checkout URL")
	}
	want := SubscriptionCheckout{
		BusinessID: "biz1",
		CustomerID: "cus_1",
		PriceID:    "price_starter",
		Plan:       models.PlanStarter,
		SuccessURL: "https://book.example.test/businesses/biz1/billing?checkout=success",
		CancelURL:  "https://book.example.test/businesses/biz1/billing?checkout=cancelled",
	}
	if diff := cmp.Diff(want, h.gateway.subCheckouts[0]); diff != "" {
		t.Errorf("checkout mismatch (-want +got):\n%s", diff)
	}
	if got := h.store.sub("biz1"); got.StripeCustomerID != "cus_1" || got.Status != models.SubscriptionIncomplete {
		t.Errorf("stored subscription = %+v", got)
	}

	// The customer is reused on the next checkout.
	if _, err := h.svc.StartSubscription(ctx, "biz1", models.PlanPro); err != nil {
		t.Fatalf("second StartSubscription: %v", err)
	}
	if h.gateway.customers != 1 {
		t.Errorf("customers created = %d, want 1", h.gateway.customers)
	}
	if got := h.gateway.subCheckouts[1].PriceID; got != "price_pro" {
		t.Errorf("PriceID = %q, want price_pro", got)
	}
}

func TestStartSubscription_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		plan  models.Plan
		setup func(h *harness)
		want  error
	}{
		{name: "free plan", plan: models.PlanFree, want: ErrInvalidPlan},
		{name: "unknown plan", plan: "enterprise", want: ErrInvalidPlan},
		{
			name:  "no price configured",
			plan:  models.PlanPro,
			setup: func(h *harness) { h.svc.cfg.ProPriceID = "" },
			want:  ErrInvalidPlan,
		},
		{
			name:  "billing disabled",
			plan:  models.PlanStarter,
			setup: func(h *harness) { h.svc.gateway = nil },
			want:  ErrBillingDisabled,
		},
		{
			name:  "stripe failure",
			plan:  models.PlanStarter,
			setup: func(h *harness) { h.gateway.err = &stripe.Error{HTTPStatusCode: 500} },
			want:  ErrGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.setup != nil {
				tt.setup(h)
			}
			_, err := h.svc.StartSubscription(context.Background(), "biz1", tt.plan)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCancelAndResumeSubscription(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.svc.CancelSubscription(ctx, "biz1"); !errors.Is(err, ErrNoSubscription) {
		t.Fatalf("cancel without subscription: err = %v", err)
	}

	h.store.subscriptions["biz1"] = models.Subscription{
		BusinessID: "biz1", StripeCustomerID: "cus_1", StripeSubscriptionID: "sub_1",
		Plan: models.PlanStarter, Status: models.SubscriptionActive,
	}
	h.gateway.remote["sub_1"] = &RemoteSubscription{
		ID: "sub_1", CustomerID: "cus_1", Status: "active", PriceID: "price_starter",
		CurrentPeriodEnd: testNow.Add(20 * 24 * time.Hour),
	}

	sub, err := h.svc.CancelSubscription(ctx, "biz1")
	if err != nil {
		t.Fatalf("CancelSubscription: %v", err)
	}
	if !sub.CancelAtPeriodEnd || !h.store.sub("biz1").CancelAtPeriodEnd {
		t.Error("expected cancel_at_period_end to be stored")
	}
	if h.store.plan("biz1") != models.PlanStarter {
		t.Errorf("plan = %s, want starter until period end", h.store.plan("biz1"))
	}

	sub, err = h.svc.ResumeSubscription(ctx, "biz1")
	if err != nil {
		t.Fatalf("ResumeSubscription: %v", err)
	}
	if sub.CancelAtPeriodEnd {
		t.Error("expected resume to clear cancel_at_period_end")
	}
	if diff := cmp.Diff([]bool{true, false}, h.gateway.cancelFlags); diff != "" {
		t.Errorf("cancel flags (-want +got):\n%s", diff)
	}
}

func TestPortalURL(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.svc.PortalURL(ctx, "biz1"); !errors.Is(err, ErrNoSubscription) {
		t.Fatalf("err = %v, want ErrNoSubscription", err)
	}
	h.store.subscriptions["biz1"] = models.Subscription{BusinessID: "biz1", StripeCustomerID: "cus_9"}
	url, err := h.svc.PortalURL(ctx, "biz1")
	if err != nil {
		t.Fatalf("PortalURL: %v", err)
	}
	if url != "https://billing.stripe.test/p/cus_9" {
		t.Errorf("url = %q", url)
	}
}

func TestCheckLimit(t *testing.T) {
	graceLeft := testNow.Add(time.Hour)
	graceOver := testNow.Add(-time.Hour)

	tests := []struct {
		name     string
		sub      *models.Subscription
		kind     models.LimitKind
		services int
		staff    int
		bookings int
		wantErr  bool
	}{
		{name: "free under service cap", kind: models.LimitServices, services: 2},
		{name: "free at service cap", kind: models.LimitServices, services: 3, wantErr: true},
		{name: "free at staff cap", kind: models.LimitStaff, staff: 1, wantErr: true},
		{name: "free at booking cap", kind: models.LimitBookings, bookings: 50, wantErr: true},
		{
			name:     "starter allows more services",
			sub:      &models.Subscription{Plan: models.PlanStarter, Status: models.SubscriptionActive},
			kind:     models.LimitServices,
			services: 10,
		},
		{
			name:     "pro is unlimited",
			sub:      &models.Subscription{Plan: models.PlanPro, Status: models.SubscriptionActive},
			kind:     models.LimitBookings,
			bookings: 100000,
		},
		{
			name:     "past due within grace keeps plan",
			sub:      &models.Subscription{Plan: models.PlanStarter, Status: models.SubscriptionPastDue, GraceUntil: &graceLeft},
			kind:     models.LimitServices,
			services: 10,
		},
		{
			name:     "past due after grace falls to free",
			sub:      &models.Subscription{Plan: models.PlanStarter, Status: models.SubscriptionPastDue, GraceUntil: &graceOver},
			kind:     models.LimitServices,
			services: 10,
			wantErr:  true,
		},
		{
			name:     "canceled falls to free",
			sub:      &models.Subscription{Plan: models.PlanPro, Status: models.SubscriptionCanceled},
			kind:     models.LimitServices,
			services: 3,
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.sub != nil {
				tt.sub.BusinessID = "biz1"
				h.store.subscriptions["biz1"] = *tt.sub
			}
			h.store.services, h.store.staff, h.store.bookings = tt.services, tt.staff, tt.bookings

			err := h.svc.CheckLimit(context.Background(), "biz1", tt.kind)
			if tt.wantErr != errors.Is(err, ErrPlanLimitReached) {
				t.Errorf("CheckLimit err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckLimit_BookingMonthUsesBusinessZone(t *testing.T) {
	h := newHarness(t)
	h.store.businesses["biz1"].Timezone = "Pacific/Auckland"
	// 12:00 UTC on 28 Feb is already 1 March in Auckland (UTC+13).
	h.svc.SetClock(func() time.Time { return time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC) })

	if err := h.svc.CheckLimit(context.Background(), "biz1", models.LimitBookings); err != nil {
		t.Fatalf("CheckLimit: %v", err)
	}
	wantFrom := time.Date(2026, 2, 28, 11, 0, 0, 0, time.UTC)
	wantTo := time.Date(2026, 3, 31, 11, 0, 0, 0, time.UTC)
	if !h.store.countFrom.Equal(wantFrom) || !h.store.countTo.Equal(wantTo) {
		t.Errorf("window = [%v, %v), want [%v, %v)", h.store.countFrom, h.store.countTo, wantFrom, wantTo)
	}
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	h.store.subscriptions["biz1"] = models.Subscription{
		BusinessID: "biz1", Plan: models.PlanStarter, Status: models.SubscriptionActive,
	}
	h.store.services, h.store.staff, h.store.bookings = 4, 2, 17

	st, err := h.svc.Status(context.Background(), "biz1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Plan != models.PlanStarter || st.Entitlements.MaxServices != 15 {
		t.Errorf("plan = %s, entitlements = %+v", st.Plan, st.Entitlements)
	}
	if diff := cmp.Diff(Usage{Services: 4, Staff: 2, BookingsThisMonth: 17}, st.Usage); diff != "" {
		t.Errorf("usage (-want +got):\n%s", diff)
	}
}

func TestCreateBookingCheckout_ClampsExpiry(t *testing.T) {
	tests := []struct {
		name   string
		expiry time.Time
		want   time.Time
	}{
		{name: "short hold", expiry: testNow.Add(15 * time.Minute), want: testNow.Add(31 * time.Minute)},
		{name: "within range", expiry: testNow.Add(2 * time.Hour), want: testNow.Add(2 * time.Hour)},
		{name: "too long", expiry: testNow.Add(48 * time.Hour), want: testNow.Add(24 * time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.svc.CreateBookingCheckout(context.Background(), models.PaymentCheckout{
				BookingID: "bk1", BusinessID: "biz1", AmountCents: 2500, Currency: "EUR",
				ExpiresAt: tt.expiry,
			})
			if err != nil {
				t.Fatalf("CreateBookingCheckout: %v", err)
			}
			got := h.gateway.bookingCheckouts[0]
			if !got.ExpiresAt.Equal(tt.want) {
				t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, tt.want)
			}
			if got.SuccessURL != "https://book.example.test/bookings/bk1?payment=success&session_id={CHECKOUT_SESSION_ID}" {
				t.Errorf("SuccessURL = %q", got.SuccessURL)
			}
		})
	}
}

func TestPaymentsDisabled(t *testing.T) {
	svc := NewService(newFakeStore(), nil, nil, Config{})
	ctx := context.Background()

	if _, err := svc.CreateBookingCheckout(ctx, models.PaymentCheckout{}); !errors.Is(err, ErrBillingDisabled) {
		t.Errorf("CreateBookingCheckout err = %v", err)
	}
	if err := svc.RefundPayment(ctx, "pi_1"); !errors.Is(err, ErrBillingDisabled) {
		t.Errorf("RefundPayment err = %v", err)
	}
	if err := svc.ExpireCheckout(ctx, "cs_1"); !errors.Is(err, ErrBillingDisabled) {
		t.Errorf("ExpireCheckout err = %v", err)
	}
	if svc.Enabled() {
		t.Error("Enabled() = true without a gateway")
	}
}

func TestRefundAndExpireDelegate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.svc.RefundPayment(ctx, "pi_7"); err != nil {
		t.Fatalf("RefundPayment: %v", err)
	}
	if err := h.svc.ExpireCheckout(ctx, "cs_7"); err != nil {
		t.Fatalf("ExpireCheckout: %v", err)
	}
	if diff := cmp.Diff([]string{"pi_7"}, h.gateway.refunds); diff != "" {
		t.Errorf("refunds (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"cs_7"}, h.gateway.expired); diff != "" {
		t.Errorf("expired (-want +got):\n%s", diff)
	}
}

func TestPlanPriceMapping(t *testing.T) {
	h := newHarness(t)
	if p, ok := h.svc.PlanForPrice("price_pro"); !ok || p != models.PlanPro {
		t.Errorf("PlanForPrice(price_pro) = %s, %v", p, ok)
	}
	if _, ok := h.svc.PlanForPrice("price_other"); ok {
		t.Error("unknown price mapped to a plan")
	}
	if _, ok := h.svc.PlanForPrice(""); ok {
		t.Error("empty price mapped to a plan")
	}
	if id, ok := h.svc.PriceForPlan(models.PlanFree); ok {
		t.Errorf("free plan has price %q", id)
	}
}

func TestMapStatus(t *testing.T) {
	tests := map[string]models.SubscriptionStatus{
		"active":             models.SubscriptionActive,
		"trialing":           models.SubscriptionTrialing,
		"past_due":           models.SubscriptionPastDue,
		"unpaid":             models.SubscriptionUnpaid,
		"canceled":           models.SubscriptionCanceled,
		"incomplete_expired": models.SubscriptionCanceled,
		"paused":             models.SubscriptionUnpaid,
		"something_new":      models.SubscriptionIncomplete,
	}
	for in, want := range tests {
		if got := mapStatus(in); got != want {
			t.Errorf("mapStatus(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestMerge_GracePeriod(t *testing.T) {
	h := newHarness(t)
	sub := &models.Subscription{BusinessID: "biz1", Plan: models.PlanStarter, Status: models.SubscriptionActive}

	changed := h.svc.merge(sub, &RemoteSubscription{ID: "sub_1", Status: "past_due", PriceID: "price_starter"}, testNow)
	if !changed || sub.GraceUntil == nil || !sub.GraceUntil.Equal(testNow.Add(72*time.Hour)) {
		t.Fatalf("entering past_due: changed=%v grace=%v", changed, sub.GraceUntil)
	}

	later := testNow.Add(24 * time.Hour)
	h.svc.merge(sub, &RemoteSubscription{ID: "sub_1", Status: "past_due", PriceID: "price_starter"}, later)
	if !sub.GraceUntil.Equal(testNow.Add(72 * time.Hour)) {
		t.Errorf("grace moved to %v on repeated past_due", sub.GraceUntil)
	}

	h.svc.merge(sub, &RemoteSubscription{ID: "sub_1", Status: "active", PriceID: "price_starter"}, later)
	if sub.GraceUntil != nil {
		t.Errorf("grace = %v after recovery, want nil", sub.GraceUntil)
	}

	if h.svc.merge(sub, &RemoteSubscription{ID: "sub_1", Status: "active", PriceID: "price_starter"}, later) {
		t.Error("merge reported a change for identical state")
	}
}

func TestMerge_KeepsUnpaidAfterGrace(t *testing.T) {
	h := newHarness(t)
	graceOver := testNow.Add(-time.Hour)
	sub := &models.Subscription{BusinessID: "biz1", Plan: models.PlanStarter,
		Status: models.SubscriptionUnpaid, GraceUntil: &graceOver}

	if h.svc.merge(sub, &RemoteSubscription{ID: "sub_1", Status: "past_due", PriceID: "price_starter"}, testNow) {
		t.Error("merge reported a change for a still past_due subscription")
	}
	if sub.Status != models.SubscriptionUnpaid {
		t.Errorf("status = %s, want unpaid", sub.Status)
	}

	h.svc.merge(sub, &RemoteSubscription{ID: "sub_1", Status: "active", PriceID: "price_starter"}, testNow)
	if sub.Status != models.SubscriptionActive || sub.GraceUntil != nil {
		t.Errorf("after payment: status = %s grace = %v", sub.Status, sub.GraceUntil)
	}
}
