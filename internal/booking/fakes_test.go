// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/bookpro/internal/models"
)

var errNotFound = errors.New("not found")

type fakeStore struct {
	mu          sync.Mutex
	businesses  map[string]*models.Business
	services    map[string]*models.Service
	memberships map[string]models.Role
	bookings    map[string]models.Booking
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		businesses:  map[string]*models.Business{},
		services:    map[string]*models.Service{},
		memberships: map[string]models.Role{},
		bookings:    map[string]models.Booking{},
	}
}

func (f *fakeStore) GetBusiness(_ context.Context, id string) (*models.Business, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.businesses[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) GetService(_ context.Context, businessID, id string) (*models.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.services[id]
	if !ok || s.BusinessID != businessID {
		return nil, errNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) GetMembership(_ context.Context, businessID, userID string) (*models.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.memberships[businessID+"/"+userID]
	if !ok {
		return nil, errNotFound
	}
	return &models.Membership{BusinessID: businessID, UserID: userID, Role: role}, nil
}

func (f *fakeStore) CreateBooking(_ context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bookings[b.ID]; ok {
		return fmt.Errorf("booking %s exists", b.ID)
	}
	f.bookings[b.ID] = *b
	return nil
}

func (f *fakeStore) GetBooking(_ context.Context, id string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, errNotFound
	}
	return &b, nil
}

func (f *fakeStore) GetBookingByPaymentIntent(_ context.Context, intent string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.PaymentIntentID == intent {
			return &b, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeStore) UpdateBooking(_ context.Context, b *models.Booking, expected models.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.bookings[b.ID]
	if !ok || cur.Status != expected {
		return fmt.Errorf("booking %s no longer %s", b.ID, expected)
	}
	f.bookings[b.ID] = *b
	return nil
}

func (f *fakeStore) SetBookingPaymentStatus(_ context.Context, id string, status models.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return errNotFound
	}
	b.PaymentStatus = status
	f.bookings[id] = b
	return nil
}

func (f *fakeStore) ListBookings(_ context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Booking
	for _, b := range f.bookings {
		if filter.BusinessID != "" && b.BusinessID != filter.BusinessID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeStore) ListExpiredHolds(_ context.Context, now time.Time, limit int) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Booking
	for _, b := range f.bookings {
		if b.Status == models.BookingPendingPayment && b.HoldExpiresAt != nil && !b.HoldExpiresAt.After(now) {
			out = append(out, b)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) booking(id string) models.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bookings[id]
}

func (f *fakeStore) put(b models.Booking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookings[b.ID] = b
}

// fakeAvailability treats every start as open unless it is listed in closed or
// overlaps a booking that still blocks the calendar.
type fakeAvailability struct {
	store  *fakeStore
	now    func() time.Time
	mu     sync.Mutex
	closed map[time.Time]bool

	invalidated []string
	excluded    []string
}

func (f *fakeAvailability) IsSlotOpen(_ context.Context, biz *models.Business, svc *models.Service, start time.Time, exclude string) (bool, error) {
	f.mu.Lock()
	f.excluded = append(f.excluded, exclude)
	closed := f.closed[start.UTC()]
	f.mu.Unlock()
	if closed {
		return false, nil
	}

	want := models.TimeRangeUTC{Start: start, End: start.Add(svc.Duration())}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, b := range f.store.bookings {
		if b.BusinessID != biz.ID || b.ID == exclude || !b.BlocksCalendar(f.now()) {
			continue
		}
		if want.Overlaps(models.TimeRangeUTC{Start: b.StartAt, End: b.EndAt}) {
			return false, nil
		}
	}
	return true, nil
}

func (f *fakeAvailability) Invalidate(businessID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, businessID)
}

type fakePlans struct {
	ent      models.Entitlements
	limitErr error
}

func (f *fakePlans) CheckLimit(context.Context, string, models.LimitKind) error {
	return f.limitErr
}

func (f *fakePlans) EffectiveEntitlements(context.Context, string) (models.Entitlements, error) {
	return f.ent, nil
}

type fakePayments struct {
	mu          sync.Mutex
	checkouts   []models.PaymentCheckout
	refunds     []string
	expired     []string
	checkoutErr error
	refundErr   error
}

func (f *fakePayments) CreateBookingCheckout(_ context.Context, req models.PaymentCheckout) (*models.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	f.checkouts = append(f.checkouts, req)
	id := fmt.Sprintf("cs_test_%d", len(f.checkouts))
	return &models.CheckoutSession{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

func (f *fakePayments) RefundPayment(_ context.Context, intent string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refundErr != nil {
		return f.refundErr
	}
	f.refunds = append(f.refunds, intent)
	return nil
}

func (f *fakePayments) ExpireCheckout(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = append(f.expired, sessionID)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
	last   any
}

func (f *fakePublisher) Publish(_ context.Context, topic string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	f.last = payload
	return nil
}

func (f *fakePublisher) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.topics...)
}
