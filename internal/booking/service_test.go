// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/bookpro/internal/events"
	"github.com/tomtom215/bookpro/internal/models"
	"github.com/tomtom215/bookpro/internal/validation"
)

var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type harness struct {
	svc   *Service
	store *fakeStore
	slots *fakeAvailability
	plans *fakePlans
	pay   *fakePayments
	pub   *fakePublisher
}

func newHarness(t *testing.T, plan models.Plan) *harness {
	t.Helper()
	store := newFakeStore()
	store.businesses["biz1"] = &models.Business{
		ID: "biz1", Name: "Studio", Timezone: "UTC", Currency: "eur",
		CancellationWindowMinutes: 24 * 60,
	}
	store.services["svc-free"] = &models.Service{
		ID: "svc-free", BusinessID: "biz1", Name: "Consult", DurationMinutes: 60,
		PriceCents: 3000, Currency: "EUR", PaymentMode: models.PaymentModeNone, Active: true,
	}
	store.services["svc-full"] = &models.Service{
		ID: "svc-full", BusinessID: "biz1", Name: "Massage", DurationMinutes: 60,
		PriceCents: 5000, Currency: "EUR", PaymentMode: models.PaymentModeFull, Active: true,
	}
	store.services["svc-off"] = &models.Service{
		ID: "svc-off", BusinessID: "biz1", Name: "Retired", DurationMinutes: 30, Active: false,
	}
	store.memberships["biz1/owner1"] = models.RoleOwner
	store.memberships["biz1/staff1"] = models.RoleStaff

	clock := func() time.Time { return testNow }
	h := &harness{
		store: store,
		slots: &fakeAvailability{store: store, now: clock, closed: map[time.Time]bool{}},
		plans: &fakePlans{ent: plan.Entitlements()},
		pay:   &fakePayments{},
		pub:   &fakePublisher{},
	}
	h.svc = NewService(store, h.slots, h.plans, h.pay, h.pub, Config{PaymentHold: 15 * time.Minute})
	h.svc.SetClock(clock)
	return h
}

func request(serviceID string, start time.Time) models.BookingRequest {
	return models.BookingRequest{
		ServiceID:   serviceID,
		StartAt:     start,
		ClientName:  "Ada Lovelace",
		ClientEmail: "Ada@Example.com",
	}
}

var (
	owner    = models.Actor{UserID: "owner1", Role: models.RoleOwner}
	staff    = models.Actor{UserID: "staff1", Role: models.RoleStaff}
	client   = models.Actor{UserID: "client1", Role: models.RoleClient}
	stranger = models.Actor{UserID: "client2", Role: models.RoleClient}
	outsider = models.Actor{UserID: "owner9", Role: models.RoleOwner}
)

func TestQuote(t *testing.T) {
	tests := []struct {
		name   string
		svc    models.Service
		online bool
		want   int64
	}{
		{"none", models.Service{PriceCents: 5000, PaymentMode: models.PaymentModeNone}, true, 0},
		{"full", models.Service{PriceCents: 5000, PaymentMode: models.PaymentModeFull}, true, 5000},
		{"deposit", models.Service{PriceCents: 5000, PaymentMode: models.PaymentModeDeposit, DepositPercent: 30}, true, 1500},
		{"deposit rounds half up", models.Service{PriceCents: 1005, PaymentMode: models.PaymentModeDeposit, DepositPercent: 10}, true, 101},
		{"deposit rounds down", models.Service{PriceCents: 1004, PaymentMode: models.PaymentModeDeposit, DepositPercent: 10}, true, 100},
		{"deposit 100", models.Service{PriceCents: 999, PaymentMode: models.PaymentModeDeposit, DepositPercent: 100}, true, 999},
		{"plan without payments", models.Service{PriceCents: 5000, PaymentMode: models.PaymentModeFull}, false, 0},
		{"free service", models.Service{PriceCents: 0, PaymentMode: models.PaymentModeFull}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Quote(&tt.svc, tt.online); got != tt.want {
				t.Errorf("Quote = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDisplayPrice(t *testing.T) {
	svc := &models.Service{PriceCents: 1250, Currency: "EUR"}
	if got := DisplayPrice(svc); got != "€ 12.50" {
		t.Errorf("DisplayPrice = %q", got)
	}
}

func TestCreate_NoPaymentConfirmsImmediately(t *testing.T) {
	h := newHarness(t, models.PlanFree)
	start := testNow.Add(26 * time.Hour)

	b, err := h.svc.Create(context.Background(), "biz1", "client1", request("svc-full", start))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Status != models.BookingConfirmed || b.PaymentStatus != models.PaymentNotRequired {
		t.Errorf("status = %s/%s, want confirmed/not_required", b.Status, b.PaymentStatus)
	}
	if b.AmountDueCents != 0 || b.HoldExpiresAt != nil || b.CheckoutURL != "" {
		t.Errorf("free plan booking should not collect payment: %+v", b)
	}
	if b.ClientEmail != "ada@example.com" || b.Currency != "EUR" {
		t.Errorf("normalization: email=%q currency=%q", b.ClientEmail, b.Currency)
	}
	if !b.EndAt.Equal(start.Add(time.Hour)) {
		t.Errorf("EndAt = %v", b.EndAt)
	}
	if diff := cmp.Diff([]string{events.TopicBookingCreated}, h.pub.published()); diff != "" {
		t.Errorf("published (-want +got):\n%s", diff)
	}
	if len(h.slots.invalidated) == 0 {
		t.Error("slot cache not invalidated")
	}
	ev, ok := h.pub.last.(*events.BookingEvent)
	if !ok || ev.BusinessName != "Studio" || ev.ServiceName != "Massage" || ev.ActorID != "client1" {
		t.Errorf("event = %+v", h.pub.last)
	}
}

func TestCreate_PaymentHoldAndCheckout(t *testing.T) {
	h := newHarness(t, models.PlanStarter)
	start := testNow.Add(26 * time.Hour)

	b, err := h.svc.Create(context.Background(), "biz1", "", request("svc-full", start))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Status != models.BookingPendingPayment || b.PaymentStatus != models.PaymentPending {
		t.Errorf("status = %s/%s", b.Status, b.PaymentStatus)
	}
	if b.HoldExpiresAt == nil || !b.HoldExpiresAt.Equal(testNow.Add(15*time.Minute)) {
		t.Errorf("HoldExpiresAt = %v", b.HoldExpiresAt)
	}
	if b.CheckoutURL == "" || b.CheckoutSessionID == "" {
		t.Errorf("checkout not attached: %+v", b)
	}
	stored := h.store.booking(b.ID)
	if stored.CheckoutSessionID != b.CheckoutSessionID {
		t.Errorf("stored session = %q", stored.CheckoutSessionID)
	}

	want := models.PaymentCheckout{
		BookingID:     b.ID,
		BusinessID:    "biz1",
		Description:   "Massage at Studio",
		AmountCents:   5000,
		Currency:      "EUR",
		CustomerEmail: "ada@example.com",
		ExpiresAt:     testNow.Add(15 * time.Minute),
	}
	if diff := cmp.Diff([]models.PaymentCheckout{want}, h.pay.checkouts); diff != "" {
		t.Errorf("checkout request (-want +got):\n%s", diff)
	}
}

func TestCreate_CheckoutFailureReleasesHold(t *testing.T) {
	h := newHarness(t, models.PlanPro)
	h.pay.checkoutErr = errors.New("stripe down")
	start := testNow.Add(26 * time.Hour)

	if _, err := h.svc.Create(context.Background(), "biz1", "", request("svc-full", start)); err == nil {
		t.Fatal("expected checkout error")
	}
	all, _ := h.store.ListBookings(context.Background(), models.BookingFilter{})
	if len(all) != 1 || all[0].Status != models.BookingCancelled {
		t.Fatalf("bookings = %+v, want one cancelled", all)
	}
	if len(h.pub.published()) != 0 {
		t.Errorf("nothing should be published, got %v", h.pub.published())
	}

	// The slot is free again.
	if _, err := h.svc.Create(context.Background(), "biz1", "", request("svc-free", start)); err != nil {
		t.Errorf("rebooking released slot: %v", err)
	}
}

func TestCreate_Rejections(t *testing.T) {
	start := testNow.Add(26 * time.Hour)
	limitErr := errors.New("plan limit reached")

	tests := []struct {
		name    string
		req     models.BookingRequest
		setup   func(h *harness)
		wantErr error
	}{
		{"slot closed", request("svc-free", start), func(h *harness) { h.slots.closed[start] = true }, ErrSlotUnavailable},
		{"inactive service", request("svc-off", start), nil, ErrServiceInactive},
		{"unknown service", request("nope", start), nil, errNotFound},
		{"plan limit", request("svc-free", start), func(h *harness) { h.plans.limitErr = limitErr }, limitErr},
		{"missing email", models.BookingRequest{ServiceID: "svc-free", StartAt: start, ClientName: "Ada"}, nil, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, models.PlanFree)
			if tt.setup != nil {
				tt.setup(h)
			}
			_, err := h.svc.Create(context.Background(), "biz1", "", tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if all, _ := h.store.ListBookings(context.Background(), models.BookingFilter{}); len(all) != 0 {
				t.Errorf("rejected request stored %d bookings", len(all))
			}
		})
	}
}

func TestCreate_ValidationDetailsSurvive(t *testing.T) {
	h := newHarness(t, models.PlanFree)
	_, err := h.svc.Create(context.Background(), "biz1", "", models.BookingRequest{ServiceID: "svc-free"})
	var verr *validation.RequestValidationError
	if !errors.As(err, &verr) || len(verr.Errors()) == 0 {
		t.Fatalf("err = %v, want field errors", err)
	}
}

func TestCreate_ConcurrentRequestsForOneSlot(t *testing.T) {
	h := newHarness(t, models.PlanPro)
	start := testNow.Add(30 * time.Hour)

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		taken   int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Create(context.Background(), "biz1", "", request("svc-free", start))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, ErrSlotUnavailable):
				taken++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if success != 1 || taken != n-1 {
		t.Errorf("success=%d taken=%d, want 1 and %d", success, taken, n-1)
	}
}

func seedBooking(h *harness, id string, mutate func(b *models.Booking)) models.Booking {
	start := testNow.Add(48 * time.Hour)
	b := models.Booking{
		ID: id, BusinessID: "biz1", ServiceID: "svc-full", ClientID: "client1",
		ClientName: "Ada", ClientEmail: "ada@example.com",
		StartAt: start, EndAt: start.Add(time.Hour),
		Status: models.BookingConfirmed, PaymentStatus: models.PaymentPaid,
		PriceCents: 5000, AmountDueCents: 5000, Currency: "EUR",
		PaymentIntentID: "pi_" + id, CreatedAt: testNow.Add(-time.Hour),
	}
	if mutate != nil {
		mutate(&b)
	}
	h.store.put(b)
	return b
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name         string
		actor        models.Actor
		mutate       func(b *models.Booking)
		wantErr      error
		wantRefunded bool
	}{
		{"client before window is refunded", client, nil, nil, true},
		{"client inside window keeps no refund", client, func(b *models.Booking) {
			b.StartAt = testNow.Add(3 * time.Hour)
			b.EndAt = b.StartAt.Add(time.Hour)
		}, nil, false},
		{"business inside window refunds", staff, func(b *models.Booking) {
			b.StartAt = testNow.Add(3 * time.Hour)
			b.EndAt = b.StartAt.Add(time.Hour)
		}, nil, true},
		{"unpaid booking has nothing to refund", owner, func(b *models.Booking) {
			b.PaymentStatus = models.PaymentNotRequired
			b.PaymentIntentID = ""
		}, nil, false},
		{"other client", stranger, nil, ErrForbidden, false},
		{"owner of another business", outsider, nil, ErrForbidden, false},
		{"client after start", client, func(b *models.Booking) {
			b.StartAt = testNow.Add(-10 * time.Minute)
			b.EndAt = b.StartAt.Add(time.Hour)
		}, ErrInvalidTransition, false},
		{"completed booking", owner, func(b *models.Booking) { b.Status = models.BookingCompleted }, ErrInvalidTransition, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, models.PlanPro)
			seeded := seedBooking(h, "bk1", tt.mutate)

			got, err := h.svc.Cancel(context.Background(), tt.actor, "bk1", "changed plans")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if h.store.booking("bk1").Status != seeded.Status {
					t.Error("rejected cancel changed the booking")
				}
				return
			}
			if got.Status != models.BookingCancelled || got.CancelReason != "changed plans" || got.CancelledAt == nil {
				t.Errorf("booking = %+v", got)
			}
			refunded := len(h.pay.refunds) == 1
			if refunded != tt.wantRefunded {
				t.Errorf("refunded = %v, want %v", refunded, tt.wantRefunded)
			}
			if tt.wantRefunded && h.store.booking("bk1").PaymentStatus != models.PaymentRefunded {
				t.Error("refund not recorded")
			}
			ev := h.pub.last.(*events.BookingEvent)
			if ev.Type != events.TopicBookingCancelled || ev.Refunded != tt.wantRefunded {
				t.Errorf("event = %+v", ev)
			}
		})
	}
}

func TestCancel_PendingHoldExpiresCheckout(t *testing.T) {
	h := newHarness(t, models.PlanPro)
	hold := testNow.Add(10 * time.Minute)
	seedBooking(h, "bk1", func(b *models.Booking) {
		b.Status = models.BookingPendingPayment
		b.PaymentStatus = models.PaymentPending
		b.PaymentIntentID = ""
		b.CheckoutSessionID = "cs_1"
		b.HoldExpiresAt = &hold
	})

	got, err := h.svc.Cancel(context.Background(), client, "bk1", "")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.PaymentStatus != models.PaymentFailed {
		t.Errorf("payment status = %s", got.PaymentStatus)
	}
	if diff := cmp.Diff([]string{"cs_1"}, h.pay.expired); diff != "" {
		t.Errorf("expired sessions (-want +got):\n%s", diff)
	}
}

func TestCancel_RefundFailureStillCancels(t *testing.T) {
	h := newHarness(t, models.PlanPro)
	h.pay.refundErr = errors.New("card_declined")
	seedBooking(h, "bk1", nil)

	got, err := h.svc.Cancel(context.Background(), owner, "bk1", "")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != models.BookingCancelled || got.PaymentStatus != models.PaymentPaid {
		t.Errorf("booking = %s/%s, want cancelled/paid", got.Status, got.PaymentStatus)
	}
}

func TestReschedule(t *testing.T) {
	h := newHarness(t, models.PlanPro)
	sent := testNow
	seedBooking(h, "bk1", func(b *models.Booking) {
		b.EndAt = b.StartAt.Add(90 * time.Minute)
		b.ReminderSentAt = &sent
	})
	// The booking's own time would block a move by 30 minutes without exclusion.
	newStart := testNow.Add(48*time.Hour + 30*time.Minute)

	got, err := h.svc.Reschedule(context.Background(), client, "bk1", newStart)
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if !got.StartAt.Equal(newStart) || !got.EndAt.Equal(newStart.Add(90*time.Minute)) {
		t.Errorf("times = %v - %v", got.StartAt, got.EndAt)
	}
	if got.ReminderSentAt != nil {
		t.Error("reminder stamp should reset")
	}
	if h.slots.excluded[len(h.slots.excluded)-1] != "bk1" {
		t.Errorf("excluded = %v", h.slots.excluded)
	}
	ev := h.pub.last.(*events.BookingEvent)
	if ev.Type != events.TopicBookingRescheduled || ev.PreviousStartAt == nil || !ev.PreviousStartAt.Equal(testNow.Add(48*time.Hour)) {
		t.Errorf("event = %+v", ev)
	}
}

func TestReschedule_Rejections(t *testing.T) {
	lapsed := testNow.Add(-time.Minute)
	tests := []struct {
		name    string
		actor   models.Actor
		mutate  func(b *models.Booking)
		closed  bool
		wantErr error
	}{
		{"slot taken", owner, nil, true, ErrSlotUnavailable},
		{"cancelled", owner, func(b *models.Booking) { b.Status = models.BookingCancelled }, false, ErrInvalidTransition},
		{"lapsed hold", client, func(b *models.Booking) {
			b.Status = models.BookingPendingPayment
			b.HoldExpiresAt = &lapsed
		}, false, ErrInvalidTransition},
		{"stranger", stranger, nil, false, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, models.PlanPro)
			seedBooking(h, "bk1", tt.mutate)
			target := testNow.Add(72 * time.Hour)
			if tt.closed {
				h.slots.closed[target] = true
			}
			if _, err := h.svc.Reschedule(context.Background(), tt.actor, "bk1", target); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got := h.store.booking("bk1"); got.StartAt.Equal(target) {
				t.Error("rejected reschedule moved the booking")
			}
		})
	}
}

func TestMarkOutcome(t *testing.T) {
	h := newHarness(t, models.PlanPro)
	seedBooking(h, "future", nil)
	seedBooking(h, "past", func(b *models.Booking) {
		b.StartAt = testNow.Add(-2 * time.Hour)
		b.EndAt = testNow.Add(-time.Hour)
	})
	ctx := context.Background()

	if _, err := h.svc.MarkCompleted(ctx, client, "past"); !errors.Is(err, ErrForbidden) {
		t.Errorf("client MarkCompleted = %v, want ErrForbidden", err)
	}
	if _, err := h.svc.MarkNoShow(ctx, staff, "future"); !errors.Is(err, ErrNotStarted) {
		t.Errorf("future MarkNoShow = %v, want ErrNotStarted", err)
	}
	got, err := h.svc.MarkNoShow(ctx, staff, "past")
	if err != nil || got.Status != models.BookingNoShow {
		t.Fatalf("MarkNoShow = %+v, %v", got, err)
	}
	if _, err := h.svc.MarkCompleted(ctx, owner, "past"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("completing a no-show = %v, want ErrInvalidTransition", err)
	}
	if topics := h.pub.published(); topics[len(topics)-1] != events.TopicBookingNoShow {
		t.Errorf("published = %v", topics)
	}
}

func pendingBooking(h *harness, id string, hold time.Time) {
	seedBooking(h, id, func(b *models.Booking) {
		b.Status = models.BookingPendingPayment
		b.PaymentStatus = models.PaymentPending
		b.PaymentIntentID = ""
		b.CheckoutSessionID = "cs_" + id
		b.HoldExpiresAt = &hold
	})
}

func TestConfirmPayment(t *testing.T) {
	h := newHarness(t, models.PlanPro)
	pendingBooking(h, "bk1", testNow.Add(5*time.Minute))
	ctx := context.Background()

	got, err := h.svc.ConfirmPayment(ctx, "bk1", "cs_bk1", "pi_123")
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if got.Status != models.BookingConfirmed || got.PaymentStatus != models.PaymentPaid ||
		got.PaymentIntentID != "pi_123" || got.HoldExpiresAt != nil {
		t.Errorf("booking = %+v", got)
	}

	// Stripe redelivers; nothing changes and nothing is published twice.
	if _, err := h.svc.ConfirmPayment(ctx, "bk1", "cs_bk1", "pi_123"); err != nil {
		t.Fatalf("second ConfirmPayment: %v", err)
	}
	if diff := cmp.Diff([]string{events.TopicBookingConfirmed}, h.pub.published()); diff != "" {
		t.Errorf("published (-want +got):\n%s", diff)
	}
	if len(h.pay.refunds) != 0 {
		t.Errorf("refunds = %v", h.pay.refunds)
	}
}

func TestConfirmPayment_LatePaymentIsRefunded(t *testing.T) {
	t.Run("expired booking", func(t *testing.T) {
		h := newHarness(t, models.PlanPro)
		pendingBooking(h, "bk1", testNow.Add(-time.Minute))
		if _, err := h.svc.ExpirePayment(context.Background(), "bk1"); err != nil {
			t.Fatalf("ExpirePayment: %v", err)
		}

		got, err := h.svc.ConfirmPayment(context.Background(), "bk1", "cs_bk1", "pi_late")
		if err != nil {
			t.Fatalf("ConfirmPayment: %v", err)
		}
		if got.Status != models.BookingExpired || got.PaymentStatus != models.PaymentRefunded {
			t.Errorf("booking = %s/%s", got.Status, got.PaymentStatus)
		}
		if diff := cmp.Diff([]string{"pi_late"}, h.pay.refunds); diff != "" {
			t.Errorf("refunds (-want +got):\n%s", diff)
		}
	})

	t.Run("lapsed hold, slot taken", func(t *testing.T) {
		h := newHarness(t, models.PlanPro)
		pendingBooking(h, "bk1", testNow.Add(-time.Minute))
		seedBooking(h, "bk2", func(b *models.Booking) { b.ClientID = "client2" })

		got, err := h.svc.ConfirmPayment(context.Background(), "bk1", "cs_bk1", "pi_late")
		if err != nil {
			t.Fatalf("ConfirmPayment: %v", err)
		}
		if got.Status != models.BookingExpired {
			t.Errorf("status = %s, want expired", got.Status)
		}
		if len(h.pay.refunds) != 1 {
			t.Errorf("refunds = %v", h.pay.refunds)
		}
	})

	t.Run("lapsed hold, slot still free", func(t *testing.T) {
		h := newHarness(t, models.PlanPro)
		pendingBooking(h, "bk1", testNow.Add(-time.Minute))

		got, err := h.svc.ConfirmPayment(context.Background(), "bk1", "cs_bk1", "pi_ok")
		if err != nil {
			t.Fatalf("ConfirmPayment: %v", err)
		}
		if got.Status != models.BookingConfirmed || len(h.pay.refunds) != 0 {
			t.Errorf("booking = %s, refunds = %v", got.Status, h.pay.refunds)
		}
	})
}

func TestExpireHolds(t *testing.T) {
	h := newHarness(t, models.PlanPro)
	pendingBooking(h, "lapsed", testNow.Add(-time.Minute))
	pendingBooking(h, "fresh", testNow.Add(10*time.Minute))
	seedBooking(h, "paid", nil)

	n, err := h.svc.ExpireHolds(context.Background())
	if err != nil {
		t.Fatalf("ExpireHolds: %v", err)
	}
	if n != 1 {
		t.Errorf("released = %d, want 1", n)
	}
	if got := h.store.booking("lapsed"); got.Status != models.BookingExpired || got.PaymentStatus != models.PaymentFailed {
		t.Errorf("lapsed = %s/%s", got.Status, got.PaymentStatus)
	}
	if h.store.booking("fresh").Status != models.BookingPendingPayment {
		t.Error("fresh hold expired early")
	}
	if diff := cmp.Diff([]string{"cs_lapsed"}, h.pay.expired); diff != "" {
		t.Errorf("expired sessions (-want +got):\n%s", diff)
	}

	// ExpirePayment on a confirmed booking is a no-op.
	got, err := h.svc.ExpirePayment(context.Background(), "paid")
	if err != nil || got.Status != models.BookingConfirmed {
		t.Errorf("ExpirePayment(paid) = %+v, %v", got, err)
	}
}

func TestMarkRefunded(t *testing.T) {
	h := newHarness(t, models.PlanPro)
	seedBooking(h, "bk1", nil)

	got, err := h.svc.MarkRefunded(context.Background(), "pi_bk1")
	if err != nil || got.PaymentStatus != models.PaymentRefunded {
		t.Fatalf("MarkRefunded = %+v, %v", got, err)
	}
	if _, err := h.svc.MarkRefunded(context.Background(), "pi_unknown"); !errors.Is(err, errNotFound) {
		t.Errorf("unknown intent = %v", err)
	}
}

func TestGetAndList(t *testing.T) {
	h := newHarness(t, models.PlanPro)
	seedBooking(h, "bk1", nil)
	ctx := context.Background()

	if _, err := h.svc.Get(ctx, client, "bk1"); err != nil {
		t.Errorf("owner client Get: %v", err)
	}
	if _, err := h.svc.Get(ctx, stranger, "bk1"); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger Get = %v", err)
	}
	if _, err := h.svc.Get(ctx, models.SystemActor, "bk1"); err != nil {
		t.Errorf("admin Get: %v", err)
	}

	out, err := h.svc.List(ctx, models.BookingFilter{BusinessID: "nobody"})
	if err != nil || out == nil || len(out) != 0 {
		t.Errorf("empty List = %v, %v", out, err)
	}
	if _, err := h.svc.List(ctx, models.BookingFilter{Status: "bogus"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad status = %v", err)
	}
}

func TestHoldExpiryJob(t *testing.T) {
	h := newHarness(t, models.PlanPro)
	pendingBooking(h, "lapsed", testNow.Add(-time.Minute))

	job := NewHoldExpiryJob(h.svc, time.Minute)
	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if h.store.booking("lapsed").Status != models.BookingExpired {
		t.Error("job did not expire hold")
	}
}
