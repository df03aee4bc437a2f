// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/stripe/stripe-go/v79"

	"github.com/tomtom215/bookpro/internal/database"
	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/metrics"
	"github.com/tomtom215/bookpro/internal/models"
)

// Webhook event types we act on.
const (
	EventCheckoutCompleted    = "checkout.session.completed"
	EventCheckoutExpired      = "checkout.session.expired"
	EventSubscriptionCreated  = "customer.subscription.created"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventInvoicePaid          = "invoice.paid"
	EventInvoicePaymentFailed = "invoice.payment_failed"
	EventChargeRefunded       = "charge.refunded"
)

// WebhookResult describes how one delivery was handled.
type WebhookResult struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Ignored   bool   `json:"ignored,omitempty"`
}

// HandleWebhook verifies, records and dispatches one Stripe event.
//
// Each event id is processed at most once: the ledger row is inserted before
// dispatch and a second delivery returns ErrDuplicateEvent. A failed dispatch
// deletes the row so Stripe's retry runs it again.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (*WebhookResult, error) {
	if s.gateway == nil {
		return nil, ErrBillingDisabled
	}
	ev, err := s.gateway.ConstructEvent(payload, signatureHeader)
	if err != nil {
		metrics.StripeWebhookEvents.WithLabelValues("unknown", "invalid_signature").Inc()
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	eventType := string(ev.Type)
	res := &WebhookResult{EventID: ev.ID, Type: eventType}
	ctx = logging.ContextWithLogger(ctx, logging.CtxWith(ctx).
		Str("stripe_event_id", ev.ID).Str("stripe_event_type", eventType).Logger())

	err = s.store.InsertStripeEvent(ctx, &models.StripeEvent{
		EventID:    ev.ID,
		Type:       eventType,
		Status:     models.StripeEventProcessing,
		ReceivedAt: s.now().UTC(),
	})
	if errors.Is(err, database.ErrDuplicate) {
		metrics.StripeWebhookEvents.WithLabelValues(eventType, "duplicate").Inc()
		res.Duplicate = true
		return res, ErrDuplicateEvent
	}
	if err != nil {
		metrics.StripeWebhookEvents.WithLabelValues(eventType, "failed").Inc()
		return nil, fmt.Errorf("record webhook event: %w", err)
	}

	handled, err := s.dispatch(ctx, &ev)
	if err != nil {
		metrics.StripeWebhookEvents.WithLabelValues(eventType, "failed").Inc()
		if derr := s.store.DeleteStripeEvent(ctx, ev.ID); derr != nil {
			logging.Ctx(ctx).Error().Err(derr).Msg("Failed to release webhook event for retry")
		}
		logging.Ctx(ctx).Error().Err(err).Msg("Webhook processing failed")
		return nil, fmt.Errorf("%w: %w", ErrWebhookFailed, err)
	}

	if err := s.store.MarkStripeEventProcessed(ctx, ev.ID, s.now().UTC()); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to mark webhook event processed")
	}
	res.Ignored = !handled
	outcome := "processed"
	if !handled {
		outcome = "ignored"
	}
	metrics.StripeWebhookEvents.WithLabelValues(eventType, outcome).Inc()
	logging.Ctx(ctx).Debug().Bool("handled", handled).Msg("Webhook event processed")
	return res, nil
}

// dispatch reports false for events that need no action.
func (s *Service) dispatch(ctx context.Context, ev *stripe.Event) (bool, error) {
	switch string(ev.Type) {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := decodeObject(ev, &sess); err != nil {
			return false, err
		}
		return s.onCheckoutCompleted(ctx, &sess)

	case EventCheckoutExpired:
		var sess stripe.CheckoutSession
		if err := decodeObject(ev, &sess); err != nil {
			return false, err
		}
		bookingID := sess.Metadata[MetaBookingID]
		if bookingID == "" || s.bookings == nil {
			return false, nil
		}
		_, err := s.bookings.ExpirePayment(ctx, bookingID)
		return ignoreNotFound(err)

	case EventSubscriptionCreated, EventSubscriptionUpdated:
		var sub stripe.Subscription
		if err := decodeObject(ev, &sub); err != nil {
			return false, err
		}
		return s.onSubscriptionChanged(ctx, FromStripeSubscription(&sub))

	case EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := decodeObject(ev, &sub); err != nil {
			return false, err
		}
		return s.onSubscriptionDeleted(ctx, FromStripeSubscription(&sub))

	case EventInvoicePaid, EventInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := decodeObject(ev, &inv); err != nil {
			return false, err
		}
		return s.onInvoice(ctx, &inv, string(ev.Type) == EventInvoicePaid)

	case EventChargeRefunded:
		var ch stripe.Charge
		if err := decodeObject(ev, &ch); err != nil {
			return false, err
		}
		if ch.PaymentIntent == nil || ch.PaymentIntent.ID == "" || s.bookings == nil {
			return false, nil
		}
		_, err := s.bookings.MarkRefunded(ctx, ch.PaymentIntent.ID)
		return ignoreNotFound(err)
	}
	return false, nil
}

func (s *Service) onCheckoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) (bool, error) {
	switch sess.Mode {
	case stripe.CheckoutSessionModeSubscription:
		businessID := sess.ClientReferenceID
		if businessID == "" {
			businessID = sess.Metadata[MetaBusinessID]
		}
		if businessID == "" || sess.Subscription == nil || sess.Subscription.ID == "" {
			logging.Ctx(ctx).Warn().Str("session_id", sess.ID).Msg("Subscription checkout without business reference")
			return false, nil
		}
		sub, err := s.subscription(ctx, businessID)
		if err != nil {
			return false, err
		}
		sub.BusinessID = businessID
		if sess.Customer != nil && sess.Customer.ID != "" {
			sub.StripeCustomerID = sess.Customer.ID
		}
		sub.StripeSubscriptionID = sess.Subscription.ID

		remote, err := s.gateway.GetSubscription(ctx, sess.Subscription.ID)
		if err != nil {
			return false, fmt.Errorf("%w: %w", ErrGateway, err)
		}
		if err := s.applyRemote(ctx, sub, remote, "checkout"); err != nil {
			return false, err
		}
		logging.Ctx(ctx).Info().Str("business_id", businessID).Str("plan", string(sub.Plan)).
			Msg("Subscription activated")
		return true, nil

	case stripe.CheckoutSessionModePayment:
		bookingID := sess.Metadata[MetaBookingID]
		if bookingID == "" || s.bookings == nil {
			return false, nil
		}
		var intentID string
		if sess.PaymentIntent != nil {
			intentID = sess.PaymentIntent.ID
		}
		_, err := s.bookings.ConfirmPayment(ctx, bookingID, sess.ID, intentID)
		return ignoreNotFound(err)
	}
	return false, nil
}

func (s *Service) onSubscriptionChanged(ctx context.Context, remote *RemoteSubscription) (bool, error) {
	sub, err := s.findSubscription(ctx, remote)
	if err != nil || sub == nil {
		return false, err
	}
	if err := s.applyRemote(ctx, sub, remote, "webhook"); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) onSubscriptionDeleted(ctx context.Context, remote *RemoteSubscription) (bool, error) {
	sub, err := s.findSubscription(ctx, remote)
	if err != nil || sub == nil {
		return false, err
	}
	remote.Status = string(models.SubscriptionCanceled)
	if err := s.applyRemote(ctx, sub, remote, "webhook"); err != nil {
		return false, err
	}
	logging.Ctx(ctx).Info().Str("business_id", sub.BusinessID).Msg("Subscription ended, business moved to free plan")
	return true, nil
}

func (s *Service) onInvoice(ctx context.Context, inv *stripe.Invoice, paid bool) (bool, error) {
	if inv.Subscription == nil || inv.Subscription.ID == "" {
		return false, nil
	}
	remote := &RemoteSubscription{ID: inv.Subscription.ID}
	if inv.Customer != nil {
		remote.CustomerID = inv.Customer.ID
	}
	sub, err := s.findSubscription(ctx, remote)
	if err != nil || sub == nil {
		return false, err
	}

	now := s.now().UTC()
	if paid {
		sub.Status = models.SubscriptionActive
	} else {
		sub.Status = models.SubscriptionPastDue
	}
	s.adjustGrace(sub, now)
	if err := s.save(ctx, sub, "webhook"); err != nil {
		return false, err
	}
	if !paid {
		logging.Ctx(ctx).Warn().Str("business_id", sub.BusinessID).Time("grace_until", *sub.GraceUntil).
			Msg("Subscription payment failed")
	}
	return true, nil
}

// findSubscription matches a Stripe subscription to a local one by
// subscription id, then customer, then the business_id metadata. It returns
// nil when nothing matches.
func (s *Service) findSubscription(ctx context.Context, remote *RemoteSubscription) (*models.Subscription, error) {
	if remote.ID != "" {
		sub, err := s.store.GetSubscriptionByStripeID(ctx, remote.ID)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("find subscription: %w", err)
		}
	}
	if remote.CustomerID != "" {
		sub, err := s.store.GetSubscriptionByCustomer(ctx, remote.CustomerID)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("find subscription: %w", err)
		}
	}

	if businessID := remote.Metadata[MetaBusinessID]; businessID != "" {
		sub, err := s.subscription(ctx, businessID)
		if err != nil {
			return nil, err
		}
		sub.BusinessID = businessID
		return sub, nil
	}

	logging.Ctx(ctx).Warn().Str("subscription_id", remote.ID).Str("customer_id", remote.CustomerID).
		Msg("Webhook references an unknown subscription")
	return nil, nil
}

func decodeObject(ev *stripe.Event, v any) error {
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return fmt.Errorf("event %s has no data object", ev.ID)
	}
	if err := json.Unmarshal(ev.Data.Raw, v); err != nil {
		return fmt.Errorf("decode %s object: %w", ev.Type, err)
	}
	return nil
}

// ignoreNotFound treats events for unknown bookings as handled no-ops.
func ignoreNotFound(err error) (bool, error) {
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
