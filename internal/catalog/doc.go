// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

/*
Package catalog manages what a business offers: the business profile, its
staff memberships and its bookable services.

Creating services and adding staff are subject to the plan entitlements
enforced by internal/billing. Changes that alter the slot grid (timezone,
buffer, service duration) drop the availability cache of the business.
*/
package catalog
