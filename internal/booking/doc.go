// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

/*
Package booking owns the booking lifecycle.

	pending_payment -> confirmed | expired | cancelled
	confirmed       -> completed | no_show | cancelled

A booking that needs no online payment is confirmed on creation. Otherwise it
holds its slot for the configured payment hold while the client completes a
Stripe checkout. ConfirmPayment and ExpirePayment are driven by the Stripe
webhook; the hold-expiry job releases holds nobody paid for.

Slot checks and inserts for one business run under a per-business mutex, so two
clients racing for the same start cannot both succeed within one process.

Every transition publishes an event (see package events) and drops the
business's cached slot grids.
*/
package booking
