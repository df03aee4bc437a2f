// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/bookpro/internal/database"
	"github.com/tomtom215/bookpro/internal/events"
	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/metrics"
	"github.com/tomtom215/bookpro/internal/models"
)

var (
	// ErrBillingDisabled is returned when no Stripe gateway is configured.
	ErrBillingDisabled = errors.New("billing is not configured")

	// ErrInvalidPlan is returned for unknown plans, the free plan in a
	// checkout, or a plan without a configured price.
	ErrInvalidPlan = errors.New("invalid plan")

	// ErrNoSubscription is returned when the business has no Stripe subscription.
	ErrNoSubscription = errors.New("no subscription")

	// ErrPlanLimitReached is returned when an entitlement cap is hit.
	ErrPlanLimitReached = errors.New("plan limit reached")

	// ErrGateway wraps Stripe failures.
	ErrGateway = errors.New("payment provider error")

	// ErrInvalidSignature is returned for webhooks that fail verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrDuplicateEvent is returned for webhook events already in the ledger.
	ErrDuplicateEvent = errors.New("duplicate webhook event")

	// ErrWebhookFailed wraps a handler failure after the event was accepted.
	// The event is released so Stripe's retry processes it again.
	ErrWebhookFailed = errors.New("webhook processing failed")
)

// Store is the persistence the billing service needs.
type Store interface {
	GetBusiness(ctx context.Context, id string) (*models.Business, error)
	SetBusinessPlan(ctx context.Context, id string, plan models.Plan) error
	CountServices(ctx context.Context, businessID string) (int, error)
	CountStaff(ctx context.Context, businessID string) (int, error)
	CountBookingsCreated(ctx context.Context, businessID string, from, to time.Time) (int, error)

	GetSubscription(ctx context.Context, businessID string) (*models.Subscription, error)
	GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	GetSubscriptionByCustomer(ctx context.Context, customerID string) (*models.Subscription, error)
	UpsertSubscription(ctx context.Context, s *models.Subscription) error
	ListSyncableSubscriptions(ctx context.Context) ([]models.Subscription, error)

	InsertStripeEvent(ctx context.Context, e *models.StripeEvent) error
	MarkStripeEventProcessed(ctx context.Context, eventID string, at time.Time) error
	DeleteStripeEvent(ctx context.Context, eventID string) error
}

// Bookings receives booking payment outcomes from webhooks.
type Bookings interface {
	ConfirmPayment(ctx context.Context, id, sessionID, paymentIntentID string) (*models.Booking, error)
	ExpirePayment(ctx context.Context, id string) (*models.Booking, error)
	MarkRefunded(ctx context.Context, paymentIntentID string) (*models.Booking, error)
}

// Publisher publishes domain events.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Config holds plan prices, return URLs and sync settings.
type Config struct {
	StarterPriceID string
	ProPriceID     string
	PublicURL      string
	GracePeriod    time.Duration

	SyncConcurrency int
	SyncRatePerSec  float64
	SyncMaxAttempts int
	SyncBaseBackoff time.Duration
	SyncMaxBackoff  time.Duration
}

func (c *Config) applyDefaults() {
	if c.GracePeriod <= 0 {
		c.GracePeriod = 7 * 24 * time.Hour
	}
	if c.SyncConcurrency <= 0 {
		c.SyncConcurrency = 4
	}
	if c.SyncRatePerSec <= 0 {
		c.SyncRatePerSec = 10
	}
	if c.SyncMaxAttempts <= 0 {
		c.SyncMaxAttempts = 3
	}
	if c.SyncBaseBackoff <= 0 {
		c.SyncBaseBackoff = 500 * time.Millisecond
	}
	if c.SyncMaxBackoff <= 0 {
		c.SyncMaxBackoff = 10 * time.Second
	}
	c.PublicURL = strings.TrimRight(c.PublicURL, "/")
}

// Minimum lifetime Stripe accepts for a checkout session.
const minCheckoutLifetime = 31 * time.Minute

// Service implements subscriptions, plan entitlements and booking payments.
type Service struct {
	store     Store
	gateway   Gateway
	bookings  Bookings
	publisher Publisher
	cfg       Config
	now       func() time.Time
}

// NewService creates the billing service. gateway may be nil when Stripe is
// not configured: entitlements still work, payments return ErrBillingDisabled.
func NewService(store Store, gateway Gateway, publisher Publisher, cfg Config) *Service {
	cfg.applyDefaults()
	return &Service{
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetBookings wires the booking service that webhooks drive.
func (s *Service) SetBookings(b Bookings) {
	s.bookings = b
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Enabled reports whether a Stripe gateway is configured.
func (s *Service) Enabled() bool {
	return s.gateway != nil
}

// PriceForPlan returns the configured Stripe price of a paid plan.
func (s *Service) PriceForPlan(plan models.Plan) (string, bool) {
	var id string
	switch plan {
	case models.PlanStarter:
		id = s.cfg.StarterPriceID
	case models.PlanPro:
		id = s.cfg.ProPriceID
	}
	return id, id != ""
}

// PlanForPrice maps a Stripe price back to a plan.
func (s *Service) PlanForPrice(priceID string) (models.Plan, bool) {
	switch {
	case priceID == "":
		return "", false
	case priceID == s.cfg.StarterPriceID:
		return models.PlanStarter, true
	case priceID == s.cfg.ProPriceID:
		return models.PlanPro, true
	}
	return "", false
}

// Status is a business's billing overview.
type Status struct {
	Plan         models.Plan          `json:"plan"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
	Entitlements models.Entitlements  `json:"entitlements"`
	Usage        Usage                `json:"usage"`
}

// Usage counts what a business consumes against its entitlements.
type Usage struct {
	Services          int `json:"services"`
	Staff             int `json:"staff"`
	BookingsThisMonth int `json:"bookings_this_month"`
}

// Status returns the effective plan, subscription and current usage.
func (s *Service) Status(ctx context.Context, businessID string) (*Status, error) {
	sub, err := s.subscription(ctx, businessID)
	if err != nil {
		return nil, err
	}
	plan := sub.EffectivePlan(s.now())
	out := &Status{Plan: plan, Entitlements: plan.Entitlements()}
	if sub.BusinessID != "" {
		out.Subscription = sub
	}
	for _, kind := range []models.LimitKind{models.LimitServices, models.LimitStaff, models.LimitBookings} {
		n, err := s.usage(ctx, businessID, kind)
		if err != nil {
			return nil, err
		}
		switch kind {
		case models.LimitServices:
			out.Usage.Services = n
		case models.LimitStaff:
			out.Usage.Staff = n
		case models.LimitBookings:
			out.Usage.BookingsThisMonth = n
		}
	}
	return out, nil
}

// StartSubscription returns a hosted checkout for a paid plan, creating the
// Stripe customer on first use.
func (s *Service) StartSubscription(ctx context.Context, businessID string, plan models.Plan) (*models.CheckoutSession, error) {
	if s.gateway == nil {
		return nil, ErrBillingDisabled
	}
	if !plan.Valid() || plan == models.PlanFree {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlan, plan)
	}
	priceID, ok := s.PriceForPlan(plan)
	if !ok {
		return nil, fmt.Errorf("%w: no price configured for %s", ErrInvalidPlan, plan)
	}

	biz, err := s.store.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("load business: %w", err)
	}
	sub, err := s.subscription(ctx, businessID)
	if err != nil {
		return nil, err
	}

	if sub.StripeCustomerID == "" {
		customerID, err := s.gateway.CreateCustomer(ctx, biz.Email, biz.Name, biz.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrGateway, err)
		}
		sub.BusinessID = biz.ID
		sub.StripeCustomerID = customerID
		if sub.Status == "" {
			sub.Status = models.SubscriptionIncomplete
		}
		if sub.Plan == "" {
			sub.Plan = models.PlanFree
		}
		sub.UpdatedAt = s.now().UTC()
		if err := s.store.UpsertSubscription(ctx, sub); err != nil {
			return nil, fmt.Errorf("save subscription: %w", err)
		}
	}

	session, err := s.gateway.CreateSubscriptionCheckout(ctx, SubscriptionCheckout{
		BusinessID: biz.ID,
		CustomerID: sub.StripeCustomerID,
		PriceID:    priceID,
		Plan:       plan,
		SuccessURL: s.billingURL(biz.ID, "success"),
		CancelURL:  s.billingURL(biz.ID, "cancelled"),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}
	logging.Ctx(ctx).Info().Str("business_id", biz.ID).Str("plan", string(plan)).
		Msg("Subscription checkout created")
	return session, nil
}

// PortalURL returns a Stripe billing portal link.
func (s *Service) PortalURL(ctx context.Context, businessID string) (string, error) {
	if s.gateway == nil {
		return "", ErrBillingDisabled
	}
	sub, err := s.subscription(ctx, businessID)
	if err != nil {
		return "", err
	}
	if sub.StripeCustomerID == "" {
		return "", ErrNoSubscription
	}
	url, err := s.gateway.CreatePortalSession(ctx, sub.StripeCustomerID, s.billingURL(businessID, ""))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGateway, err)
	}
	return url, nil
}

// CancelSubscription cancels at the end of the current period.
func (s *Service) CancelSubscription(ctx context.Context, businessID string) (*models.Subscription, error) {
	return s.setCancelAtPeriodEnd(ctx, businessID, true)
}

// ResumeSubscription withdraws a scheduled cancellation.
func (s *Service) ResumeSubscription(ctx context.Context, businessID string) (*models.Subscription, error) {
	return s.setCancelAtPeriodEnd(ctx, businessID, false)
}

func (s *Service) setCancelAtPeriodEnd(ctx context.Context, businessID string, cancel bool) (*models.Subscription, error) {
	if s.gateway == nil {
		return nil, ErrBillingDisabled
	}
	sub, err := s.subscription(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if sub.StripeSubscriptionID == "" || sub.Status == models.SubscriptionCanceled {
		return nil, ErrNoSubscription
	}
	remote, err := s.gateway.SetCancelAtPeriodEnd(ctx, sub.StripeSubscriptionID, cancel)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}
	if err := s.applyRemote(ctx, sub, remote, "api"); err != nil {
		return nil, err
	}
	return sub, nil
}

// EffectiveEntitlements returns the limits of the business's effective plan.
func (s *Service) EffectiveEntitlements(ctx context.Context, businessID string) (models.Entitlements, error) {
	sub, err := s.subscription(ctx, businessID)
	if err != nil {
		return models.Entitlements{}, err
	}
	return sub.EffectivePlan(s.now()).Entitlements(), nil
}

// CheckLimit returns ErrPlanLimitReached when one more item of kind would
// exceed the plan. Bookings count per calendar month in the business's zone.
func (s *Service) CheckLimit(ctx context.Context, businessID string, kind models.LimitKind) error {
	ent, err := s.EffectiveEntitlements(ctx, businessID)
	if err != nil {
		return err
	}
	if ent.Max(kind) == models.Unlimited {
		return nil
	}
	used, err := s.usage(ctx, businessID, kind)
	if err != nil {
		return err
	}
	if ent.Allows(kind, used) {
		return nil
	}
	metrics.EntitlementRejections.WithLabelValues(string(ent.Plan), string(kind)).Inc()
	return fmt.Errorf("%w: the %s plan allows %d %s", ErrPlanLimitReached, ent.Plan, ent.Max(kind), kind)
}

func (s *Service) usage(ctx context.Context, businessID string, kind models.LimitKind) (int, error) {
	switch kind {
	case models.LimitServices:
		return s.store.CountServices(ctx, businessID)
	case models.LimitStaff:
		return s.store.CountStaff(ctx, businessID)
	case models.LimitBookings:
		biz, err := s.store.GetBusiness(ctx, businessID)
		if err != nil {
			return 0, fmt.Errorf("load business: %w", err)
		}
		from, to := monthWindow(s.now(), biz)
		return s.store.CountBookingsCreated(ctx, businessID, from, to)
	}
	return 0, fmt.Errorf("unknown limit %q", kind)
}

// monthWindow is the current calendar month in the business's zone, as UTC.
func monthWindow(now time.Time, biz *models.Business) (time.Time, time.Time) {
	loc, err := biz.Location()
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	from := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return from.UTC(), from.AddDate(0, 1, 0).UTC()
}

// CreateBookingCheckout opens a payment checkout for a booking hold.
func (s *Service) CreateBookingCheckout(ctx context.Context, req models.PaymentCheckout) (*models.CheckoutSession, error) {
	if s.gateway == nil {
		return nil, ErrBillingDisabled
	}
	now := s.now()
	if minExpiry := now.Add(minCheckoutLifetime); req.ExpiresAt.Before(minExpiry) {
		req.ExpiresAt = minExpiry
	}
	if maxExpiry := now.Add(24 * time.Hour); req.ExpiresAt.After(maxExpiry) {
		req.ExpiresAt = maxExpiry
	}
	session, err := s.gateway.CreateBookingCheckout(ctx, BookingCheckout{
		PaymentCheckout: req,
		SuccessURL:      s.cfg.PublicURL + "/bookings/" + req.BookingID + "?payment=success&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:       s.cfg.PublicURL + "/bookings/" + req.BookingID + "?payment=cancelled",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}
	return session, nil
}

// RefundPayment refunds a booking payment in full.
func (s *Service) RefundPayment(ctx context.Context, paymentIntentID string) error {
	if s.gateway == nil {
		return ErrBillingDisabled
	}
	if err := s.gateway.RefundPayment(ctx, paymentIntentID); err != nil {
		return fmt.Errorf("%w: %w", ErrGateway, err)
	}
	return nil
}

// ExpireCheckout closes an open booking checkout.
func (s *Service) ExpireCheckout(ctx context.Context, sessionID string) error {
	if s.gateway == nil {
		return ErrBillingDisabled
	}
	if err := s.gateway.ExpireCheckout(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: %w", ErrGateway, err)
	}
	return nil
}

func (s *Service) billingURL(businessID, result string) string {
	u := s.cfg.PublicURL + "/businesses/" + businessID + "/billing"
	if result != "" {
		u += "?checkout=" + result
	}
	return u
}

// subscription loads the local subscription. A business that never
// subscribed gets a zero value on the free plan.
func (s *Service) subscription(ctx context.Context, businessID string) (*models.Subscription, error) {
	sub, err := s.store.GetSubscription(ctx, businessID)
	if errors.Is(err, database.ErrNotFound) {
		return &models.Subscription{Plan: models.PlanFree}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	return sub, nil
}

// applyRemote copies Stripe state onto sub, saves it and updates the
// business plan. source labels the published event.
func (s *Service) applyRemote(ctx context.Context, sub *models.Subscription, remote *RemoteSubscription, source string) error {
	now := s.now().UTC()
	s.merge(sub, remote, now)
	sub.LastSyncedAt = &now
	return s.save(ctx, sub, source)
}

// merge copies remote onto sub and reports whether any tracked field changed.
func (s *Service) merge(sub *models.Subscription, remote *RemoteSubscription, now time.Time) bool {
	before := *sub
	if remote.ID != "" {
		sub.StripeSubscriptionID = remote.ID
	}
	if remote.CustomerID != "" {
		sub.StripeCustomerID = remote.CustomerID
	}
	if plan, ok := s.PlanForPrice(remote.PriceID); ok {
		sub.Plan = plan
	} else if p := models.Plan(remote.Metadata[MetaPlan]); p.Valid() && sub.Plan == models.PlanFree {
		sub.Plan = p
	}
	sub.Status = mapStatus(remote.Status)
	if before.Status == models.SubscriptionUnpaid && sub.Status == models.SubscriptionPastDue && graceElapsed(sub, now) {
		// Stripe keeps dunning after our grace period ran out.
		sub.Status = models.SubscriptionUnpaid
	}
	sub.CancelAtPeriodEnd = remote.CancelAtPeriodEnd
	if !remote.CurrentPeriodEnd.IsZero() {
		end := remote.CurrentPeriodEnd.UTC()
		sub.CurrentPeriodEnd = &end
	}
	s.adjustGrace(sub, now)

	return before.StripeSubscriptionID != sub.StripeSubscriptionID ||
		before.StripeCustomerID != sub.StripeCustomerID ||
		before.Plan != sub.Plan ||
		before.Status != sub.Status ||
		before.CancelAtPeriodEnd != sub.CancelAtPeriodEnd ||
		!timePtrEqual(before.CurrentPeriodEnd, sub.CurrentPeriodEnd) ||
		!timePtrEqual(before.GraceUntil, sub.GraceUntil)
}

// adjustGrace starts the grace period on entering past_due and clears it once
// the subscription is healthy again.
func (s *Service) adjustGrace(sub *models.Subscription, now time.Time) {
	switch sub.Status {
	case models.SubscriptionPastDue:
		if sub.GraceUntil == nil {
			until := now.Add(s.cfg.GracePeriod)
			sub.GraceUntil = &until
		}
	case models.SubscriptionActive, models.SubscriptionTrialing:
		sub.GraceUntil = nil
	}
}

func (s *Service) save(ctx context.Context, sub *models.Subscription, source string) error {
	sub.UpdatedAt = s.now().UTC()
	if err := s.store.UpsertSubscription(ctx, sub); err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	plan := sub.EffectivePlan(s.now())
	if err := s.store.SetBusinessPlan(ctx, sub.BusinessID, plan); err != nil {
		return fmt.Errorf("set business plan: %w", err)
	}
	if s.publisher != nil {
		ev := events.NewSubscriptionEvent(events.SubscriptionEvent{
			BusinessID: sub.BusinessID,
			Plan:       string(plan),
			Status:     string(sub.Status),
			Source:     source,
		})
		if err := s.publisher.Publish(ctx, events.TopicSubscriptionChanged, ev); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("business_id", sub.BusinessID).
				Msg("Failed to publish subscription event")
		}
	}
	return nil
}

// mapStatus folds Stripe statuses we do not model onto the nearest one.
func mapStatus(status string) models.SubscriptionStatus {
	switch models.SubscriptionStatus(status) {
	case models.SubscriptionActive, models.SubscriptionTrialing, models.SubscriptionPastDue,
		models.SubscriptionCanceled, models.SubscriptionUnpaid, models.SubscriptionIncomplete:
		return models.SubscriptionStatus(status)
	}
	switch status {
	case "incomplete_expired":
		return models.SubscriptionCanceled
	case "paused":
		return models.SubscriptionUnpaid
	}
	return models.SubscriptionIncomplete
}

func graceElapsed(sub *models.Subscription, now time.Time) bool {
	return sub.GraceUntil != nil && !now.Before(*sub.GraceUntil)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
