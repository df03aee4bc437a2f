// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/bookpro/internal/events"
	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/metrics"
	"github.com/tomtom215/bookpro/internal/models"
	"github.com/tomtom215/bookpro/internal/validation"
)

var (
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid booking input")

	// ErrSlotUnavailable is returned when the requested start is not an open slot.
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrInvalidTransition is returned when the lifecycle forbids the change.
	ErrInvalidTransition = errors.New("invalid booking transition")

	// ErrForbidden is returned when the actor may not act on the booking.
	ErrForbidden = errors.New("not allowed to act on this booking")

	// ErrServiceInactive is returned when booking a deactivated service.
	ErrServiceInactive = errors.New("service is not bookable")

	// ErrNotStarted is returned when marking the outcome of a future booking.
	ErrNotStarted = errors.New("booking has not started")
)

// Store is the persistence the booking service needs. *database.DB implements it.
type Store interface {
	GetBusiness(ctx context.Context, id string) (*models.Business, error)
	GetService(ctx context.Context, businessID, id string) (*models.Service, error)
	GetMembership(ctx context.Context, businessID, userID string) (*models.Membership, error)
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	GetBookingByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Booking, error)
	UpdateBooking(ctx context.Context, b *models.Booking, expected models.BookingStatus) error
	SetBookingPaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error
	ListBookings(ctx context.Context, f models.BookingFilter) ([]models.Booking, error)
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.Booking, error)
}

// Availability checks slots and drops cached grids. *availability.Service implements it.
type Availability interface {
	IsSlotOpen(ctx context.Context, biz *models.Business, svc *models.Service, start time.Time, excludeBookingID string) (bool, error)
	Invalidate(businessID string)
}

// Entitlements enforces plan limits. The billing service implements it.
type Entitlements interface {
	CheckLimit(ctx context.Context, businessID string, kind models.LimitKind) error
	EffectiveEntitlements(ctx context.Context, businessID string) (models.Entitlements, error)
}

// Payments collects and refunds booking payments. The billing service implements it.
type Payments interface {
	CreateBookingCheckout(ctx context.Context, req models.PaymentCheckout) (*models.CheckoutSession, error)
	RefundPayment(ctx context.Context, paymentIntentID string) error
	ExpireCheckout(ctx context.Context, sessionID string) error
}

// Publisher emits domain events. *events.Bus implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Config holds booking settings.
type Config struct {
	// PaymentHold is how long an unpaid booking keeps its slot.
	PaymentHold time.Duration

	// ExpiryBatch bounds the holds released per expiry run.
	ExpiryBatch int
}

// Service owns the booking lifecycle.
type Service struct {
	store     Store
	slots     Availability
	plans     Entitlements
	payments  Payments
	publisher Publisher
	cfg       Config
	now       func() time.Time

	// locks serializes slot checks and inserts per business calendar.
	locks sync.Map
}

// NewService wires the booking service. payments may be nil, in which case no
// booking ever requires online payment.
func NewService(store Store, slots Availability, plans Entitlements, payments Payments, publisher Publisher, cfg Config) *Service {
	if cfg.PaymentHold <= 0 {
		cfg.PaymentHold = 15 * time.Minute
	}
	if cfg.ExpiryBatch <= 0 {
		cfg.ExpiryBatch = 100
	}
	return &Service{
		store:     store,
		slots:     slots,
		plans:     plans,
		payments:  payments,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetClock replaces the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) lockBusiness(businessID string) func() {
	v, _ := s.locks.LoadOrStore(businessID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Create books a slot for a client. clientID links the booking to a signed-in
// client account and may be empty for guest bookings.
func (s *Service) Create(ctx context.Context, businessID, clientID string, req models.BookingRequest) (*models.Booking, error) {
	if err := validation.Err(&req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	biz, err := s.store.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to load business: %w", err)
	}
	svc, err := s.store.GetService(ctx, businessID, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load service: %w", err)
	}
	if !svc.Active {
		return nil, ErrServiceInactive
	}

	if err := s.plans.CheckLimit(ctx, businessID, models.LimitBookings); err != nil {
		return nil, err
	}
	ent, err := s.plans.EffectiveEntitlements(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entitlements: %w", err)
	}

	due := Quote(svc, ent.OnlinePayments && s.payments != nil)
	start := req.StartAt.UTC()
	now := s.now().UTC()

	b := &models.Booking{
		ID:             uuid.NewString(),
		BusinessID:     biz.ID,
		ServiceID:      svc.ID,
		ClientID:       clientID,
		ClientName:     strings.TrimSpace(req.ClientName),
		ClientEmail:    strings.ToLower(strings.TrimSpace(req.ClientEmail)),
		ClientPhone:    req.ClientPhone,
		Notes:          req.Notes,
		StartAt:        start,
		EndAt:          start.Add(svc.Duration()),
		PriceCents:     svc.PriceCents,
		AmountDueCents: due,
		Currency:       currencyOf(biz, svc),
		CreatedAt:      now,
	}
	if due > 0 {
		hold := now.Add(s.cfg.PaymentHold)
		b.Status = models.BookingPendingPayment
		b.PaymentStatus = models.PaymentPending
		b.HoldExpiresAt = &hold
	} else {
		b.Status = models.BookingConfirmed
		b.PaymentStatus = models.PaymentNotRequired
	}

	if err := s.reserve(ctx, biz, svc, b); err != nil {
		return nil, err
	}
	metrics.BookingsCreated.WithLabelValues(string(svc.PaymentMode)).Inc()

	if due > 0 {
		if err := s.attachCheckout(ctx, biz, svc, b); err != nil {
			return nil, err
		}
	}

	s.slots.Invalidate(biz.ID)
	s.publish(ctx, events.TopicBookingCreated, biz, svc, b, clientID, nil)

	logging.Ctx(ctx).Info().
		Str("booking_id", b.ID).
		Str("business_id", biz.ID).
		Str("status", string(b.Status)).
		Time("start_at", b.StartAt).
		Msg("Booking created")
	return b, nil
}

// reserve checks the slot and inserts the booking while holding the business lock.
func (s *Service) reserve(ctx context.Context, biz *models.Business, svc *models.Service, b *models.Booking) error {
	unlock := s.lockBusiness(biz.ID)
	defer unlock()

	open, err := s.slots.IsSlotOpen(ctx, biz, svc, b.StartAt, "")
	if err != nil {
		return fmt.Errorf("failed to check slot: %w", err)
	}
	if !open {
		return ErrSlotUnavailable
	}
	if err := s.store.CreateBooking(ctx, b); err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// attachCheckout opens the hosted payment page. If that fails the hold is
// released so the slot does not stay blocked.
func (s *Service) attachCheckout(ctx context.Context, biz *models.Business, svc *models.Service, b *models.Booking) error {
	session, err := s.payments.CreateBookingCheckout(ctx, models.PaymentCheckout{
		BookingID:     b.ID,
		BusinessID:    biz.ID,
		Description:   fmt.Sprintf("%s at %s", svc.Name, biz.Name),
		AmountCents:   b.AmountDueCents,
		Currency:      b.Currency,
		CustomerEmail: b.ClientEmail,
		ExpiresAt:     *b.HoldExpiresAt,
	})
	if err != nil {
		now := s.now().UTC()
		b.Status = models.BookingCancelled
		b.PaymentStatus = models.PaymentFailed
		b.CancelledAt = &now
		b.CancelReason = "payment checkout unavailable"
		if uerr := s.store.UpdateBooking(ctx, b, models.BookingPendingPayment); uerr != nil {
			logging.Ctx(ctx).Error().Err(uerr).Str("booking_id", b.ID).Msg("Failed to release hold after checkout error")
		}
		s.slots.Invalidate(biz.ID)
		return fmt.Errorf("failed to create checkout: %w", err)
	}

	b.CheckoutSessionID = session.ID
	if err := s.store.UpdateBooking(ctx, b, models.BookingPendingPayment); err != nil {
		return fmt.Errorf("failed to save checkout session: %w", err)
	}
	b.CheckoutURL = session.URL
	return nil
}

// Get returns a booking the actor may see.
func (s *Service) Get(ctx context.Context, actor models.Actor, id string) (*models.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, actor, b, false); err != nil {
		return nil, err
	}
	return b, nil
}

// List returns bookings matching the filter. Callers scope the filter to what
// the actor may see.
func (s *Service) List(ctx context.Context, f models.BookingFilter) ([]models.Booking, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return nil, fmt.Errorf("%w: from is after to", ErrInvalidInput)
	}
	if f.Offset < 0 {
		return nil, fmt.Errorf("%w: negative offset", ErrInvalidInput)
	}
	out, err := s.store.ListBookings(ctx, f)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Booking{}
	}
	return out, nil
}

// authorize reports whether actor acts as an operator of the booking's business.
// Clients may only touch their own bookings; operatorOnly rejects them outright.
func (s *Service) authorize(ctx context.Context, actor models.Actor, b *models.Booking, operatorOnly bool) (bool, error) {
	if actor.IsAdmin() {
		return true, nil
	}
	// Operator rights come from the membership, so a client account added
	// as staff acts as staff in that business only.
	if m, err := s.store.GetMembership(ctx, b.BusinessID, actor.UserID); err == nil && m.Role.IsOperator() {
		return true, nil
	}
	if operatorOnly {
		return false, ErrForbidden
	}
	if b.ClientID != "" && b.ClientID == actor.UserID {
		return false, nil
	}
	return false, ErrForbidden
}

// publish emits a booking event. Failures are logged, never returned: the
// booking is already committed.
func (s *Service) publish(ctx context.Context, topic string, biz *models.Business, svc *models.Service, b *models.Booking, actorID string, mutate func(*events.BookingEvent)) {
	if s.publisher == nil {
		return
	}
	ev := events.FromBooking(b, biz, svc)
	ev.ActorID = actorID
	if mutate != nil {
		mutate(&ev)
	}
	if err := s.publisher.Publish(ctx, topic, events.NewBookingEvent(topic, ev)); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("topic", topic).Str("booking_id", b.ID).Msg("Failed to publish booking event")
	}
}

// describe loads the business and service of a booking for events. The service
// may be gone for old bookings; that is not an error.
func (s *Service) describe(ctx context.Context, b *models.Booking) (*models.Business, *models.Service, error) {
	biz, err := s.store.GetBusiness(ctx, b.BusinessID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load business: %w", err)
	}
	svc, err := s.store.GetService(ctx, b.BusinessID, b.ServiceID)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("service_id", b.ServiceID).Msg("Service of booking not loaded")
		svc = nil
	}
	return biz, svc, nil
}

func currencyOf(biz *models.Business, svc *models.Service) string {
	if biz.Currency != "" {
		return strings.ToUpper(biz.Currency)
	}
	return strings.ToUpper(svc.Currency)
}
