// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package billing

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/tomtom215/bookpro/internal/models"
)

// Metadata keys set on Stripe objects we create.
const (
	MetaBusinessID = "business_id"
	MetaBookingID  = "booking_id"
	MetaPlan       = "plan"
)

// RemoteSubscription is the part of a Stripe subscription we mirror locally.
type RemoteSubscription struct {
	ID                string
	CustomerID        string
	Status            string
	PriceID           string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
	Metadata          map[string]string
}

// SubscriptionCheckout asks for a hosted subscription checkout.
type SubscriptionCheckout struct {
	BusinessID string
	CustomerID string
	PriceID    string
	Plan       models.Plan
	SuccessURL string
	CancelURL  string
}

// BookingCheckout is a one-off payment checkout for a booking.
type BookingCheckout struct {
	models.PaymentCheckout
	SuccessURL string
	CancelURL  string
}

// Gateway is the Stripe surface the billing service uses.
type Gateway interface {
	CreateCustomer(ctx context.Context, email, name, businessID string) (string, error)
	CreateSubscriptionCheckout(ctx context.Context, req SubscriptionCheckout) (*models.CheckoutSession, error)
	CreateBookingCheckout(ctx context.Context, req BookingCheckout) (*models.CheckoutSession, error)
	ExpireCheckout(ctx context.Context, sessionID string) error
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*RemoteSubscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*RemoteSubscription, error)
	RefundPayment(ctx context.Context, paymentIntentID string) error
	ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error)
}

// StripeGateway calls the Stripe API.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway creates a gateway with its own API client, so the global
// stripe.Key is never touched.
func NewStripeGateway(secretKey, webhookSecret string, timeout time.Duration) *StripeGateway {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	backends := stripe.NewBackends(&http.Client{Timeout: timeout})
	return &StripeGateway{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
	}
}

// CreateCustomer creates a Stripe customer for a business.
func (g *StripeGateway) CreateCustomer(ctx context.Context, email, name, businessID string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata(MetaBusinessID, businessID)
	params.SetIdempotencyKey("customer-" + businessID)

	c, err := g.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return c.ID, nil
}

// CreateSubscriptionCheckout opens a subscription-mode checkout.
func (g *StripeGateway) CreateSubscriptionCheckout(ctx context.Context, req SubscriptionCheckout) (*models.CheckoutSession, error) {
	meta := map[string]string{MetaBusinessID: req.BusinessID, MetaPlan: string(req.Plan)}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(req.CustomerID),
		ClientReferenceID: stripe.String(req.BusinessID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		Metadata:   meta,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: meta,
		},
	}
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create checkout session: %w", err)
	}
	return &models.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// CreateBookingCheckout opens a payment-mode checkout for a booking.
func (g *StripeGateway) CreateBookingCheckout(ctx context.Context, req BookingCheckout) (*models.CheckoutSession, error) {
	meta := map[string]string{MetaBusinessID: req.BusinessID, MetaBookingID: req.BookingID}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.BookingID),
		CustomerEmail:     stripe.String(req.CustomerEmail),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(req.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		ExpiresAt:  stripe.Int64(req.ExpiresAt.Unix()),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		Metadata:   meta,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: meta,
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("booking-checkout-" + req.BookingID)

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create booking checkout: %w", err)
	}
	return &models.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ExpireCheckout closes an open checkout session.
func (g *StripeGateway) ExpireCheckout(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := g.api.CheckoutSessions.Expire(sessionID, params); err != nil {
		return fmt.Errorf("stripe expire checkout session: %w", err)
	}
	return nil
}

// CreatePortalSession returns a billing portal URL for the customer.
func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	sess, err := g.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create portal session: %w", err)
	}
	return sess.URL, nil
}

// GetSubscription fetches a subscription.
func (g *StripeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*RemoteSubscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := g.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe get subscription: %w", err)
	}
	return FromStripeSubscription(sub), nil
}

// SetCancelAtPeriodEnd schedules or withdraws cancellation at period end.
func (g *StripeGateway) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*RemoteSubscription, error) {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(cancel),
	}
	params.Context = ctx
	sub, err := g.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe update subscription: %w", err)
	}
	return FromStripeSubscription(sub), nil
}

// RefundPayment refunds a payment intent in full.
func (g *StripeGateway) RefundPayment(ctx context.Context, paymentIntentID string) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + paymentIntentID)
	if _, err := g.api.Refunds.New(params); err != nil {
		return fmt.Errorf("stripe refund: %w", err)
	}
	return nil
}

// ConstructEvent verifies the Stripe-Signature header and parses the event.
func (g *StripeGateway) ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	return VerifyEvent(payload, signatureHeader, g.webhookSecret)
}

// VerifyEvent checks a webhook signature against secret. Events from other API
// versions are accepted; only stable fields are read.
func VerifyEvent(payload []byte, signatureHeader, secret string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// FromStripeSubscription copies the fields we track.
func FromStripeSubscription(sub *stripe.Subscription) *RemoteSubscription {
	if sub == nil {
		return nil
	}
	r := &RemoteSubscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Metadata:          sub.Metadata,
	}
	if sub.Customer != nil {
		r.CustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		r.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item != nil && item.Price != nil {
				r.PriceID = item.Price.ID
				break
			}
		}
	}
	return r
}
