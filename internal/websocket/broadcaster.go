// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package websocket

import (
	"context"

	"github.com/tomtom215/bookpro/internal/events"
	"github.com/tomtom215/bookpro/internal/logging"
)

// Broadcaster forwards bus events to the dashboards of the affected business.
type Broadcaster struct {
	hub  *Hub
	name string
}

// NewBroadcaster creates a consumer feeding hub. instance distinguishes
// server processes so that each one receives every event.
func NewBroadcaster(hub *Hub, instance string) *Broadcaster {
	name := "websocket"
	if instance != "" {
		name += "-" + instance
	}
	return &Broadcaster{hub: hub, name: name}
}

// Name implements events.Consumer.
func (b *Broadcaster) Name() string { return b.name }

// Topics implements events.Consumer.
func (b *Broadcaster) Topics() []string { return events.AllTopics() }

// Handle implements events.Consumer. Broadcasting never fails the message;
// dashboards that miss an update refresh on reconnect.
func (b *Broadcaster) Handle(ctx context.Context, topic string, payload []byte) error {
	var (
		businessID string
		data       any
	)
	if topic == events.TopicSubscriptionChanged {
		ev, err := events.DecodeSubscription(payload)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Dropping malformed subscription event")
			return nil
		}
		businessID, data = ev.BusinessID, ev
	} else {
		ev, err := events.DecodeBooking(payload)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("topic", topic).Msg("Dropping malformed booking event")
			return nil
		}
		businessID, data = ev.BusinessID, ev
	}

	if businessID == "" || b.hub.BusinessClientCount(businessID) == 0 {
		return nil
	}
	b.hub.BroadcastToBusiness(businessID, Message{Type: topic, Data: data})
	return nil
}
