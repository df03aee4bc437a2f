// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/bookpro/internal/models"
)

// Topics published on the bus.
const (
	TopicBookingCreated     = "booking.created"
	TopicBookingConfirmed   = "booking.confirmed"
	TopicBookingCancelled   = "booking.cancelled"
	TopicBookingRescheduled = "booking.rescheduled"
	TopicBookingCompleted   = "booking.completed"
	TopicBookingNoShow      = "booking.no_show"
	TopicBookingExpired     = "booking.expired"
	TopicBookingReminder    = "booking.reminder"

	TopicSubscriptionChanged = "subscription.changed"
)

// BookingTopics lists every booking topic.
var BookingTopics = []string{
	TopicBookingCreated,
	TopicBookingConfirmed,
	TopicBookingCancelled,
	TopicBookingRescheduled,
	TopicBookingCompleted,
	TopicBookingNoShow,
	TopicBookingExpired,
	TopicBookingReminder,
}

// AllTopics lists every topic the bus carries.
func AllTopics() []string {
	return append(append([]string(nil), BookingTopics...), TopicSubscriptionChanged)
}

// BookingEvent describes a booking lifecycle change. It carries enough display
// data for consumers to act without reading the database.
type BookingEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	ActorID    string    `json:"actor_id,omitempty"`

	BookingID        string `json:"booking_id"`
	BusinessID       string `json:"business_id"`
	BusinessName     string `json:"business_name"`
	BusinessTimezone string `json:"business_timezone"`
	ServiceID        string `json:"service_id"`
	ServiceName      string `json:"service_name"`

	ClientID    string `json:"client_id,omitempty"`
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email"`

	Status          string     `json:"status"`
	PaymentStatus   string     `json:"payment_status"`
	StartAt         time.Time  `json:"start_at"`
	EndAt           time.Time  `json:"end_at"`
	PreviousStartAt *time.Time `json:"previous_start_at,omitempty"`
	AmountDueCents  int64      `json:"amount_due_cents"`
	Currency        string     `json:"currency"`
	Refunded        bool       `json:"refunded,omitempty"`
	Reason          string     `json:"reason,omitempty"`
}

// SubscriptionEvent describes a change of a business's plan or subscription status.
type SubscriptionEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	BusinessID string    `json:"business_id"`
	Plan       string    `json:"plan"`
	Status     string    `json:"status"`
	Source     string    `json:"source"`
}

// Keyed is implemented by payloads that belong to one business.
type Keyed interface {
	Business() string
}

// Business implements Keyed.
func (e *BookingEvent) Business() string { return e.BusinessID }

// Business implements Keyed.
func (e *SubscriptionEvent) Business() string { return e.BusinessID }

// FromBooking copies the display fields of a booking, its business and its
// service. biz and svc may be nil.
func FromBooking(b *models.Booking, biz *models.Business, svc *models.Service) BookingEvent {
	ev := BookingEvent{
		BookingID:      b.ID,
		BusinessID:     b.BusinessID,
		ServiceID:      b.ServiceID,
		ClientID:       b.ClientID,
		ClientName:     b.ClientName,
		ClientEmail:    b.ClientEmail,
		Status:         string(b.Status),
		PaymentStatus:  string(b.PaymentStatus),
		StartAt:        b.StartAt,
		EndAt:          b.EndAt,
		AmountDueCents: b.AmountDueCents,
		Currency:       b.Currency,
		Reason:         b.CancelReason,
	}
	if biz != nil {
		ev.BusinessName = biz.Name
		ev.BusinessTimezone = biz.Timezone
	}
	if svc != nil {
		ev.ServiceName = svc.Name
	}
	return ev
}

// NewBookingEvent stamps id, type and time on a booking event.
func NewBookingEvent(topic string, ev BookingEvent) *BookingEvent {
	ev.EventID = uuid.NewString()
	ev.Type = topic
	ev.OccurredAt = time.Now().UTC()
	return &ev
}

// NewSubscriptionEvent stamps id, type and time on a subscription event.
func NewSubscriptionEvent(ev SubscriptionEvent) *SubscriptionEvent {
	ev.EventID = uuid.NewString()
	ev.Type = TopicSubscriptionChanged
	ev.OccurredAt = time.Now().UTC()
	return &ev
}

// DecodeBooking parses a booking event payload.
func DecodeBooking(payload []byte) (*BookingEvent, error) {
	var ev BookingEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode booking event: %w", err)
	}
	if ev.BookingID == "" || ev.BusinessID == "" {
		return nil, fmt.Errorf("decode booking event: missing booking or business id")
	}
	return &ev, nil
}

// DecodeSubscription parses a subscription event payload.
func DecodeSubscription(payload []byte) (*SubscriptionEvent, error) {
	var ev SubscriptionEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode subscription event: %w", err)
	}
	if ev.BusinessID == "" {
		return nil, fmt.Errorf("decode subscription event: missing business id")
	}
	return &ev, nil
}
