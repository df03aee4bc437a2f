// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

/*
Package availability turns a business's opening hours into bookable slots.

GenerateSlots is a pure function. For each local date it picks the week
override if one exists for that Monday-based week, otherwise the weekly
template. It normalizes the intervals, steps through candidate starts in the
business zone and marks each slot open or closed (past, min_notice,
beyond_horizon, booked). Wall times that do not exist because of a DST
spring-forward are skipped; ambiguous fall-back times yield a single slot.

Service wraps GenerateSlots with storage, a short-lived per-business cache and
the schedule editing operations. Any write through Service, and any booking
change reported via Invalidate, drops the business's cached grids.
*/
package availability
