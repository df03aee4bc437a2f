// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

/*
Package middleware provides HTTP instrumentation shared by the API router.

PrometheusMetrics records request counts, latencies and in-flight requests.
Requests are labelled with the chi route pattern rather than the raw path so
business, booking and service IDs do not explode label cardinality.
*/
package middleware
