// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v79"

	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/metrics"
	"github.com/tomtom215/bookpro/internal/models"
)

// BreakerName labels the Stripe circuit breaker in metrics.
const BreakerName = "stripe-api"

// BreakerGateway wraps a Gateway with a circuit breaker. Client errors (4xx
// other than 429) do not count as failures: Stripe answered.
type BreakerGateway struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker[any]
}

// NewBreakerGateway wraps next. The circuit opens after five consecutive
// failures and probes again after timeout.
func NewBreakerGateway(next Gateway, timeout time.Duration) *BreakerGateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	metrics.CircuitBreakerState.WithLabelValues(BreakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        BreakerName,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !Retryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String(), stateToFloat(to))
		},
	})
	return &BreakerGateway{next: next, cb: cb}
}

// State reports the breaker state.
func (g *BreakerGateway) State() gobreaker.State {
	return g.cb.State()
}

func (g *BreakerGateway) execute(op string, fn func() (any, error)) (any, error) {
	result, err := g.cb.Execute(fn)
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(BreakerName, "rejected").Inc()
	case err != nil:
		metrics.CircuitBreakerRequests.WithLabelValues(BreakerName, "failure").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(BreakerName, "success").Inc()
	}
	metrics.RecordStripeCall(op, err)
	return result, err
}

func castResult[T any](result any, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Retryable reports whether a Stripe call may succeed if repeated: network
// errors, rate limits and 5xx responses. An open breaker is not retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var serr *stripe.Error
	if errors.As(err, &serr) {
		return serr.HTTPStatusCode == 429 || serr.HTTPStatusCode >= 500 || serr.HTTPStatusCode == 0
	}
	return true
}

func (g *BreakerGateway) CreateCustomer(ctx context.Context, email, name, businessID string) (string, error) {
	id, err := castResult[string](g.execute("create_customer", func() (any, error) {
		id, err := g.next.CreateCustomer(ctx, email, name, businessID)
		return &id, err
	}))
	if err != nil {
		return "", err
	}
	return *id, nil
}

func (g *BreakerGateway) CreateSubscriptionCheckout(ctx context.Context, req SubscriptionCheckout) (*models.CheckoutSession, error) {
	return castResult[models.CheckoutSession](g.execute("subscription_checkout", func() (any, error) {
		return g.next.CreateSubscriptionCheckout(ctx, req)
	}))
}

func (g *BreakerGateway) CreateBookingCheckout(ctx context.Context, req BookingCheckout) (*models.CheckoutSession, error) {
	return castResult[models.CheckoutSession](g.execute("booking_checkout", func() (any, error) {
		return g.next.CreateBookingCheckout(ctx, req)
	}))
}

func (g *BreakerGateway) ExpireCheckout(ctx context.Context, sessionID string) error {
	_, err := g.execute("expire_checkout", func() (any, error) {
		return nil, g.next.ExpireCheckout(ctx, sessionID)
	})
	return err
}

func (g *BreakerGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	url, err := castResult[string](g.execute("portal_session", func() (any, error) {
		url, err := g.next.CreatePortalSession(ctx, customerID, returnURL)
		return &url, err
	}))
	if err != nil {
		return "", err
	}
	return *url, nil
}

func (g *BreakerGateway) GetSubscription(ctx context.Context, subscriptionID string) (*RemoteSubscription, error) {
	return castResult[RemoteSubscription](g.execute("get_subscription", func() (any, error) {
		return g.next.GetSubscription(ctx, subscriptionID)
	}))
}

func (g *BreakerGateway) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*RemoteSubscription, error) {
	return castResult[RemoteSubscription](g.execute("update_subscription", func() (any, error) {
		return g.next.SetCancelAtPeriodEnd(ctx, subscriptionID, cancel)
	}))
}

func (g *BreakerGateway) RefundPayment(ctx context.Context, paymentIntentID string) error {
	_, err := g.execute("refund", func() (any, error) {
		return nil, g.next.RefundPayment(ctx, paymentIntentID)
	})
	return err
}

// ConstructEvent is local signature verification and bypasses the breaker.
func (g *BreakerGateway) ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	return g.next.ConstructEvent(payload, signatureHeader)
}
