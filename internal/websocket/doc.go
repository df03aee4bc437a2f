// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

/*
Package websocket pushes live booking activity to business dashboards.

The hub keeps connected clients grouped by business. Every client belongs to
exactly one business and only receives that business's messages:

	                 ┌──────────┐
	 events.Router → │   Hub    │
	                 └────┬─────┘
	          ┌───────────┴───────────┐
	       biz-a                    biz-b
	   ┌─────┴─────┐             ┌────┴────┐
	 Client1   Client2         Client3

Each client runs two goroutines. readPump answers application-level pings and
extends the read deadline on pong frames. writePump drains the client's send
buffer and pings the peer every pingPeriod. A client whose buffer is full when
a broadcast arrives is dropped.

Broadcaster is an events.Consumer that forwards booking and subscription
events to the hub, so every server instance subscribed to the bus feeds its
own connected dashboards.

Message format:

	{"type": "booking.confirmed", "data": {...BookingEvent...}}
	{"type": "subscription.changed", "data": {...SubscriptionEvent...}}
	{"type": "pong", "data": null}
*/
package websocket
