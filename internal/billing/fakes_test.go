// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v79"

	"github.com/tomtom215/bookpro/internal/database"
	"github.com/tomtom215/bookpro/internal/models"
)

const testWebhookSecret = "whsec_test_secret"

type fakeStore struct {
	mu            sync.Mutex
	businesses    map[string]*models.Business
	subscriptions map[string]models.Subscription
	events        map[string]models.StripeEvent
	services      int
	staff         int
	bookings      int
	countFrom     time.Time
	countTo       time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		businesses:    map[string]*models.Business{},
		subscriptions: map[string]models.Subscription{},
		events:        map[string]models.StripeEvent{},
	}
}

func (f *fakeStore) GetBusiness(_ context.Context, id string) (*models.Business, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.businesses[id]
	if !ok {
		return nil, fmt.Errorf("business %s: %w", id, database.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) SetBusinessPlan(_ context.Context, id string, plan models.Plan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.businesses[id]
	if !ok {
		return database.ErrNotFound
	}
	b.Plan = plan
	return nil
}

func (f *fakeStore) CountServices(context.Context, string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.services, nil
}

func (f *fakeStore) CountStaff(context.Context, string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.staff, nil
}

func (f *fakeStore) CountBookingsCreated(_ context.Context, _ string, from, to time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countFrom, f.countTo = from, to
	return f.bookings, nil
}

func (f *fakeStore) GetSubscription(_ context.Context, businessID string) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subscriptions[businessID]
	if !ok {
		return nil, fmt.Errorf("subscription: %w", database.ErrNotFound)
	}
	return &s, nil
}

func (f *fakeStore) findBy(match func(models.Subscription) bool) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subscriptions {
		if match(s) {
			return &s, nil
		}
	}
	return nil, fmt.Errorf("subscription: %w", database.ErrNotFound)
}

func (f *fakeStore) GetSubscriptionByStripeID(_ context.Context, id string) (*models.Subscription, error) {
	return f.findBy(func(s models.Subscription) bool { return s.StripeSubscriptionID == id })
}

func (f *fakeStore) GetSubscriptionByCustomer(_ context.Context, id string) (*models.Subscription, error) {
	return f.findBy(func(s models.Subscription) bool { return s.StripeCustomerID == id })
}

func (f *fakeStore) UpsertSubscription(_ context.Context, s *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriptions[s.BusinessID] = *s
	return nil
}

func (f *fakeStore) ListSyncableSubscriptions(context.Context) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Subscription
	for _, s := range f.subscriptions {
		if s.StripeSubscriptionID != "" && s.Status != models.SubscriptionCanceled {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertStripeEvent(_ context.Context, e *models.StripeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[e.EventID]; ok {
		return fmt.Errorf("stripe event: %w", database.ErrDuplicate)
	}
	f.events[e.EventID] = *e
	return nil
}

func (f *fakeStore) MarkStripeEventProcessed(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return database.ErrNotFound
	}
	e.Status = models.StripeEventProcessed
	e.ProcessedAt = &at
	f.events[id] = e
	return nil
}

func (f *fakeStore) DeleteStripeEvent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.events, id)
	return nil
}

func (f *fakeStore) sub(businessID string) models.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscriptions[businessID]
}

func (f *fakeStore) plan(businessID string) models.Plan {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.businesses[businessID].Plan
}

func (f *fakeStore) event(id string) (models.StripeEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	return e, ok
}

// fakeGateway records calls. getErrs are returned, in order, by successive
// GetSubscription calls for the same id before remote is served.
type fakeGateway struct {
	mu sync.Mutex

	customers        int
	subCheckouts     []SubscriptionCheckout
	bookingCheckouts []BookingCheckout
	portalCustomers  []string
	cancelFlags      []bool
	refunds          []string
	expired          []string

	remote   map[string]*RemoteSubscription
	getErrs  map[string][]error
	getCalls map[string]int
	err      error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		remote:   map[string]*RemoteSubscription{},
		getErrs:  map[string][]error{},
		getCalls: map[string]int{},
	}
}

func (g *fakeGateway) CreateCustomer(context.Context, string, string, string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.customers++
	return fmt.Sprintf("cus_%d", g.customers), nil
}

func (g *fakeGateway) CreateSubscriptionCheckout(_ context.Context, req SubscriptionCheckout) (*models.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.subCheckouts = append(g.subCheckouts, req)
	return &models.CheckoutSession{ID: "cs_sub", URL: "https://checkout.stripe.test/cs_sub"}, nil
}

func (g *fakeGateway) CreateBookingCheckout(_ context.Context, req BookingCheckout) (*models.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.bookingCheckouts = append(g.bookingCheckouts, req)
	return &models.CheckoutSession{ID: "cs_pay", URL: "https://checkout.stripe.test/cs_pay"}, nil
}

func (g *fakeGateway) ExpireCheckout(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expired = append(g.expired, id)
	return g.err
}

func (g *fakeGateway) CreatePortalSession(_ context.Context, customerID, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.portalCustomers = append(g.portalCustomers, customerID)
	return "https://billing.stripe.test/p/" + customerID, g.err
}

func (g *fakeGateway) GetSubscription(_ context.Context, id string) (*RemoteSubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.getCalls[id]
	g.getCalls[id]++
	if errs := g.getErrs[id]; n < len(errs) {
		return nil, errs[n]
	}
	r, ok := g.remote[id]
	if !ok {
		return nil, &stripe.Error{HTTPStatusCode: 404, Msg: "No such subscription"}
	}
	cp := *r
	return &cp, nil
}

func (g *fakeGateway) SetCancelAtPeriodEnd(_ context.Context, id string, cancel bool) (*RemoteSubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelFlags = append(g.cancelFlags, cancel)
	r, ok := g.remote[id]
	if !ok {
		return nil, &stripe.Error{HTTPStatusCode: 404}
	}
	r.CancelAtPeriodEnd = cancel
	cp := *r
	return &cp, nil
}

func (g *fakeGateway) RefundPayment(_ context.Context, intent string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, intent)
	return g.err
}

func (g *fakeGateway) ConstructEvent(payload []byte, header string) (stripe.Event, error) {
	return VerifyEvent(payload, header, testWebhookSecret)
}

func (g *fakeGateway) calls(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.getCalls[id]
}

type confirmCall struct {
	BookingID, SessionID, IntentID string
}

type fakeBookings struct {
	mu        sync.Mutex
	confirmed []confirmCall
	expired   []string
	refunded  []string
	err       error
}

func (f *fakeBookings) ConfirmPayment(_ context.Context, id, sessionID, intentID string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.confirmed = append(f.confirmed, confirmCall{id, sessionID, intentID})
	return &models.Booking{ID: id, Status: models.BookingConfirmed}, nil
}

func (f *fakeBookings) ExpirePayment(_ context.Context, id string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.expired = append(f.expired, id)
	return &models.Booking{ID: id, Status: models.BookingExpired}, nil
}

func (f *fakeBookings) MarkRefunded(_ context.Context, intent string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if intent == "pi_unknown" {
		return nil, fmt.Errorf("booking: %w", database.ErrNotFound)
	}
	f.refunded = append(f.refunded, intent)
	return &models.Booking{PaymentIntentID: intent, PaymentStatus: models.PaymentRefunded}, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []any
}

func (f *fakePublisher) Publish(_ context.Context, _ string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, payload)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}
