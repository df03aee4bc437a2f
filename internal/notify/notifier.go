// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/bookpro/internal/events"
	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/metrics"
)

// Notifier is an events.Consumer that emails clients about their bookings.
type Notifier struct {
	channel  Channel
	renderer *Renderer
}

// NewNotifier creates a notifier that delivers through channel.
func NewNotifier(channel Channel) (*Notifier, error) {
	r, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	return &Notifier{channel: channel, renderer: r}, nil
}

// Name implements events.Consumer.
func (n *Notifier) Name() string { return "notifier" }

// Topics implements events.Consumer.
func (n *Notifier) Topics() []string {
	return []string{
		events.TopicBookingCreated,
		events.TopicBookingConfirmed,
		events.TopicBookingCancelled,
		events.TopicBookingRescheduled,
		events.TopicBookingReminder,
		events.TopicBookingExpired,
	}
}

// Handle implements events.Consumer. Undeliverable addresses are dropped;
// transport errors are returned so the router retries.
func (n *Notifier) Handle(ctx context.Context, topic string, payload []byte) error {
	ev, err := events.DecodeBooking(payload)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("topic", topic).Msg("Dropping malformed booking event")
		return nil
	}
	if ev.Type == "" {
		ev.Type = topic
	}
	if !n.renderer.Supports(ev.Type) {
		return nil
	}
	if ev.ClientEmail == "" {
		metrics.NotificationsSent.WithLabelValues(ev.Type, metrics.OutcomeSkipped).Inc()
		return nil
	}

	msg, err := n.renderer.Render(ev)
	if err != nil {
		return fmt.Errorf("render notification: %w", err)
	}

	err = n.channel.Send(ctx, msg)
	metrics.RecordNotification(ev.Type, err)
	if errors.Is(err, ErrInvalidRecipient) {
		logging.Ctx(ctx).Warn().Err(err).Str("booking_id", ev.BookingID).Msg("Notification recipient rejected")
		return nil
	}
	if err != nil {
		return fmt.Errorf("send %s notification via %s: %w", ev.Type, n.channel.Name(), err)
	}
	logging.Ctx(ctx).Debug().Str("booking_id", ev.BookingID).Str("kind", ev.Type).Msg("Notification sent")
	return nil
}
