// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package logging

import (
	"strings"
)

// Security events are written at warn or info with event_type so they can be
// alerted on without parsing messages.
const (
	SecurityLoginSuccess     = "login_success"
	SecurityLoginFailure     = "login_failure"
	SecurityLogout           = "logout"
	SecurityTokenRevoked     = "token_revoked"
	SecurityWebhookSignature = "webhook_signature_invalid"
	SecurityAccessDenied     = "access_denied"
	SecurityPasswordReset    = "password_reset"
)

// LogLoginSuccess records a successful password login.
func LogLoginSuccess(userID, email, ip string) {
	Info().
		Str("event_type", SecurityLoginSuccess).
		Str("user_id", userID).
		Str("email", SanitizeEmail(email)).
		Str("ip", ip).
		Msg("login succeeded")
}

// LogLoginFailure records a rejected login attempt.
func LogLoginFailure(email, ip, reason string) {
	Warn().
		Str("event_type", SecurityLoginFailure).
		Str("email", SanitizeEmail(email)).
		Str("ip", ip).
		Str("reason", reason).
		Msg("login failed")
}

// LogSecurityEvent records any other security-relevant event.
func LogSecurityEvent(eventType, userID, ip, detail string) {
	Warn().
		Str("event_type", eventType).
		Str("user_id", userID).
		Str("ip", ip).
		Str("detail", detail).
		Msg("security event")
}

// SanitizeEmail keeps the domain and the first character of the local part.
//
//	SanitizeEmail("maria@example.com") == "m***@example.com"
func SanitizeEmail(email string) string {
	local, domain, found := strings.Cut(email, "@")
	if !found || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}

// SanitizeToken keeps the first 8 characters of a bearer token.
func SanitizeToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "..."
}
