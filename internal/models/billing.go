// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package models

import (
	"time"
)

// Plan is a subscription tier.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanStarter Plan = "starter"
	PlanPro     Plan = "pro"
)

// Unlimited marks an entitlement without a cap.
const Unlimited = -1

// Entitlements are the limits attached to a plan.
type Entitlements struct {
	Plan            Plan `json:"plan"`
	MaxServices     int  `json:"max_services"`
	MaxStaff        int  `json:"max_staff"`
	MonthlyBookings int  `json:"monthly_bookings"`
	OnlinePayments  bool `json:"online_payments"`
}

var planEntitlements = map[Plan]Entitlements{
	PlanFree:    {Plan: PlanFree, MaxServices: 3, MaxStaff: 1, MonthlyBookings: 50, OnlinePayments: false},
	PlanStarter: {Plan: PlanStarter, MaxServices: 15, MaxStaff: 5, MonthlyBookings: 500, OnlinePayments: true},
	PlanPro:     {Plan: PlanPro, MaxServices: Unlimited, MaxStaff: Unlimited, MonthlyBookings: Unlimited, OnlinePayments: true},
}

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	_, ok := planEntitlements[p]
	return ok
}

// Entitlements returns the limits for p. Unknown plans get the free tier.
func (p Plan) Entitlements() Entitlements {
	if e, ok := planEntitlements[p]; ok {
		return e
	}
	return planEntitlements[PlanFree]
}

// Limit kinds accepted by CheckLimit.
type LimitKind string

const (
	LimitServices LimitKind = "services"
	LimitStaff    LimitKind = "staff"
	LimitBookings LimitKind = "bookings"
)

// Max returns the cap for kind, or Unlimited.
func (e Entitlements) Max(kind LimitKind) int {
	switch kind {
	case LimitServices:
		return e.MaxServices
	case LimitStaff:
		return e.MaxStaff
	case LimitBookings:
		return e.MonthlyBookings
	}
	return Unlimited
}

// Allows reports whether one more item fits when used items already exist.
func (e Entitlements) Allows(kind LimitKind, used int) bool {
	limit := e.Max(kind)
	return limit == Unlimited || used < limit
}

// SubscriptionStatus mirrors the Stripe subscription status values we act on.
type SubscriptionStatus string

const (
	SubscriptionIncomplete SubscriptionStatus = "incomplete"
	SubscriptionTrialing   SubscriptionStatus = "trialing"
	SubscriptionActive     SubscriptionStatus = "active"
	SubscriptionPastDue    SubscriptionStatus = "past_due"
	SubscriptionCanceled   SubscriptionStatus = "canceled"
	SubscriptionUnpaid     SubscriptionStatus = "unpaid"
)

// Subscription is the local copy of a business's Stripe subscription.
type Subscription struct {
	BusinessID           string             `json:"business_id" db:"business_id"`
	StripeCustomerID     string             `json:"stripe_customer_id,omitempty" db:"stripe_customer_id"`
	StripeSubscriptionID string             `json:"stripe_subscription_id,omitempty" db:"stripe_subscription_id"`
	Plan                 Plan               `json:"plan" db:"plan"`
	Status               SubscriptionStatus `json:"status" db:"status"`
	CurrentPeriodEnd     *time.Time         `json:"current_period_end,omitempty" db:"current_period_end"`
	CancelAtPeriodEnd    bool               `json:"cancel_at_period_end" db:"cancel_at_period_end"`
	GraceUntil           *time.Time         `json:"grace_until,omitempty" db:"grace_until"`
	LastSyncedAt         *time.Time         `json:"last_synced_at,omitempty" db:"last_synced_at"`
	UpdatedAt            time.Time          `json:"updated_at" db:"updated_at"`
}

// EffectivePlan is the plan whose entitlements apply at instant now.
// A past_due subscription keeps its plan until the grace period ends.
func (s *Subscription) EffectivePlan(now time.Time) Plan {
	if s == nil {
		return PlanFree
	}
	switch s.Status {
	case SubscriptionActive, SubscriptionTrialing:
		return s.Plan
	case SubscriptionPastDue:
		if s.GraceUntil != nil && now.Before(*s.GraceUntil) {
			return s.Plan
		}
	}
	return PlanFree
}

// StripeEventStatus tracks webhook processing.
type StripeEventStatus string

const (
	StripeEventProcessing StripeEventStatus = "processing"
	StripeEventProcessed  StripeEventStatus = "processed"
	StripeEventFailed     StripeEventStatus = "failed"
)

// StripeEvent is one row of the webhook idempotency ledger. EventID is unique.
type StripeEvent struct {
	EventID     string            `json:"event_id" db:"event_id"`
	Type        string            `json:"type" db:"type"`
	Status      StripeEventStatus `json:"status" db:"status"`
	ReceivedAt  time.Time         `json:"received_at" db:"received_at"`
	ProcessedAt *time.Time        `json:"processed_at,omitempty" db:"processed_at"`
	Error       string            `json:"error,omitempty" db:"error"`
}

// PaymentCheckout asks the payment provider for a one-off checkout of a booking.
type PaymentCheckout struct {
	BookingID     string
	BusinessID    string
	Description   string
	AmountCents   int64
	Currency      string
	CustomerEmail string
	ExpiresAt     time.Time
}

// CheckoutSession is a hosted payment page.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
