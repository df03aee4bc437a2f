// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

/*
Package authz decides what a caller may do inside a business.

Two checks run for every business-scoped request:

 1. Membership: the caller must belong to the business. Platform admins
    are exempt.
 2. Role policy: the membership role (owner or staff) must allow the
    action on the object. The policy is a Casbin RBAC model with the
    hierarchy admin > owner > staff:

    staff   read/write services, availability and bookings
    owner   everything staff can, plus business settings, billing,
    logo uploads, audit log and deletions
    client  read businesses and services, read/write own bookings

Both the model and the policy are embedded; SecurityConfig.CasbinModelPath
and CasbinPolicyPath override them. Decisions for every known role, object
and action are computed when the policy loads.

A caller that is not a member gets 404 rather than 403 so business IDs
cannot be probed.
*/
package authz
