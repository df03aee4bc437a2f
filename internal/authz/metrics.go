// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package authz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthzDecisionsTotal counts authorization decisions by role, object, action, and outcome.
	AuthzDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"role", "object", "action", "decision"},
	)

	// AuthzMembershipDenied counts operators turned away from a business they do not belong to.
	AuthzMembershipDenied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authz_membership_denied_total",
			Help: "Authorization denials caused by a missing business membership",
		},
	)
)

// RecordAuthzDecision records an allow or deny.
func RecordAuthzDecision(role, object, action string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	AuthzDecisionsTotal.WithLabelValues(role, object, action, decision).Inc()
}
