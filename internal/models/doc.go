// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

/*
Package models defines the domain types shared by the BookPro packages.

The structs carry both `db` tags (scanned by sqlx in internal/database) and `json`
tags (encoded by the API with goccy/go-json). Behaviour that belongs to the type
itself lives here too: booking status transitions, plan entitlements, clock and
weekday parsing for availability schedules.

Key types:

  - Business, Membership: a tenant and the users that operate it
  - User, Role: accounts and their platform role
  - Service: a bookable offering with its payment mode
  - WeeklyRule, WeekOverride, WeekSchedule: availability template and per-week overrides
  - Slot: one candidate start time produced by slot generation
  - Booking, BookingStatus, PaymentStatus: the booking lifecycle
  - Subscription, Plan, Entitlements: Stripe-backed plan state
  - StripeEvent: webhook idempotency ledger
  - AuditEvent: audit trail entry

All timestamps are stored and exchanged in UTC. Local times only appear in display
fields (Slot.LocalTime, Slot.LocalDate) and in availability minutes, which are
relative to the business's local midnight.
*/
package models
