// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

/*
Package events carries domain events between BookPro components using Watermill.

# Backends

  - memory: the Watermill gochannel pub/sub, in-process only
  - nats: watermill-nats against events.nats_url, or against an embedded
    nats-server when events.embedded is set (optionally with JetStream)

# Topics

Booking lifecycle events are published on booking.created, booking.confirmed,
booking.cancelled, booking.rescheduled, booking.completed, booking.no_show,
booking.expired and booking.reminder. Plan changes go to subscription.changed.
Payloads are JSON encoded BookingEvent or SubscriptionEvent values.

# Consumers

A Consumer names its topics and handles raw payloads. Router wraps the
Watermill router with Recoverer and Retry middleware, restores the correlation
id into the handler context, and records per-topic metrics:

	router, _ := events.NewRouter(bus, events.RouterConfig{RetryMaxRetries: 3})
	_ = router.Register(notifier)
	_ = router.Register(broadcaster)
	go router.Run(ctx)
*/
package events
