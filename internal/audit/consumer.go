// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package audit

import (
	"context"
	"time"

	"github.com/tomtom215/bookpro/internal/events"
	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/models"
)

// Consumer turns bus events into audit entries.
type Consumer struct {
	recorder *Recorder
}

// NewConsumer creates the audit bus consumer.
func NewConsumer(recorder *Recorder) *Consumer {
	return &Consumer{recorder: recorder}
}

// Name implements events.Consumer.
func (c *Consumer) Name() string { return "audit" }

// Topics implements events.Consumer. Reminders are notifications, not changes.
func (c *Consumer) Topics() []string {
	topics := make([]string, 0, len(events.BookingTopics))
	for _, t := range events.AllTopics() {
		if t != events.TopicBookingReminder {
			topics = append(topics, t)
		}
	}
	return topics
}

type bookingDetails struct {
	Status          string     `json:"status"`
	PaymentStatus   string     `json:"payment_status,omitempty"`
	StartAt         time.Time  `json:"start_at"`
	PreviousStartAt *time.Time `json:"previous_start_at,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	Refunded        bool       `json:"refunded,omitempty"`
}

type subscriptionDetails struct {
	Plan   string `json:"plan"`
	Status string `json:"status"`
	Source string `json:"source,omitempty"`
}

// Handle implements events.Consumer. Malformed payloads are dropped; store
// errors are returned so the router retries.
func (c *Consumer) Handle(ctx context.Context, topic string, payload []byte) error {
	var e *models.AuditEvent
	if topic == events.TopicSubscriptionChanged {
		ev, err := events.DecodeSubscription(payload)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Dropping malformed subscription event")
			return nil
		}
		e = &models.AuditEvent{
			ID:           ev.EventID,
			BusinessID:   ev.BusinessID,
			Action:       topic,
			ResourceType: ResourceSubscription,
			ResourceID:   ev.BusinessID,
			Details:      encodeDetails(ctx, subscriptionDetails{Plan: ev.Plan, Status: ev.Status, Source: ev.Source}),
			CreatedAt:    ev.OccurredAt,
		}
	} else {
		ev, err := events.DecodeBooking(payload)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("topic", topic).Msg("Dropping malformed booking event")
			return nil
		}
		e = &models.AuditEvent{
			ID:           ev.EventID,
			BusinessID:   ev.BusinessID,
			ActorID:      ev.ActorID,
			Action:       topic,
			ResourceType: ResourceBooking,
			ResourceID:   ev.BookingID,
			Details: encodeDetails(ctx, bookingDetails{
				Status:          ev.Status,
				PaymentStatus:   ev.PaymentStatus,
				StartAt:         ev.StartAt,
				PreviousStartAt: ev.PreviousStartAt,
				Reason:          ev.Reason,
				Refunded:        ev.Refunded,
			}),
			CreatedAt: ev.OccurredAt,
		}
	}
	return c.recorder.Record(ctx, e)
}
