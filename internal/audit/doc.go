// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

// Package audit keeps the per-business audit trail.
//
// # Overview
//
// Every change an owner may later want to account for is written to the
// audit_events table in DuckDB:
//   - booking lifecycle transitions, taken from the event bus
//   - subscription and plan changes, taken from the event bus
//   - settings, services, availability and logo changes, recorded by the
//     HTTP handlers that make them
//
// # Architecture
//
// Two write paths share one store:
//
//	Recorder.Log()    -> buffer (chan) -> Serve() -> Store
//	Consumer.Handle() -> Recorder.Record() -----------^
//
// Log never blocks a request: entries are buffered and written by the
// goroutine running Serve. A full buffer falls back to a direct write.
// The bus consumer writes synchronously so a failed insert is retried by
// the router. Bus entries reuse the event ID, so redelivery is idempotent.
//
// # Retention
//
// Recorder.Job returns a periodic job that deletes entries older than
// AuditConfig.RetentionDays.
//
// # Querying
//
// Recorder.List returns the newest entries of one business; the API
// exposes it to owners as GET /businesses/{id}/audit.
package audit
