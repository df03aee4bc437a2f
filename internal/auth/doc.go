// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

/*
Package auth authenticates BookPro users.

Accounts sign in with email and a bcrypt-hashed password and receive an HS256
JWT. Every token carries a unique jti so that logout can revoke it: the jti is
written to a RevocationStore (BadgerDB in production) with a TTL equal to the
token's remaining lifetime, after which the entry disappears on its own.

Components:

  - JWTManager: issues and validates tokens
  - RevocationStore: BadgerRevocationStore and MemoryRevocationStore
  - RateLimiter: per-IP token bucket for login attempts
  - Service: register, login, logout, token authentication, admin bootstrap
  - Middleware: chi-compatible Authenticate and RequireRole

Tokens are read from the Authorization header ("Bearer <token>"), then the
"token" cookie, and for websocket upgrades from the access_token query
parameter, since browsers cannot set headers on a websocket handshake.
*/
package auth
