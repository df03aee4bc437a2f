// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus is the liveness payload.
type HealthStatus struct {
	Status         string  `json:"status"`
	Environment    string  `json:"environment,omitempty"`
	BillingEnabled bool    `json:"billing_enabled"`
	MediaEnabled   bool    `json:"media_enabled"`
	Uptime         float64 `json:"uptime_seconds"`
}

// ReadinessStatus reports each dependency checked by the readiness probe.
type ReadinessStatus struct {
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks"`
}

// readinessTimeout bounds each dependency probe.
const readinessTimeout = 2 * time.Second

// Health handles liveness probes. It answers 200 whenever the process serves HTTP.
//
// @Summary Liveness probe
// @Tags Health
// @Produce json
// @Success 200 {object} APIResponse{data=HealthStatus}
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:         "ok",
		BillingEnabled: h.billing != nil && h.billing.Enabled(),
		MediaEnabled:   h.media != nil && h.media.Enabled(),
		Uptime:         time.Since(h.startTime).Seconds(),
	}
	if h.cfg != nil {
		status.Environment = h.cfg.Server.Environment
	}
	NewResponseWriter(w, r).Success(status)
}

// HealthReady handles readiness probes. It answers 503 while any registered
// dependency fails its check.
//
// @Summary Readiness probe
// @Tags Health
// @Produce json
// @Success 200 {object} APIResponse{data=ReadinessStatus}
// @Failure 503 {object} APIResponse
// @Router /health/ready [get]
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	out := ReadinessStatus{Ready: true, Checks: map[string]string{}}
	for _, name := range h.readinessChecks() {
		check := h.readinessCheck(name)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		err := check(ctx)
		cancel()
		if err != nil {
			out.Ready = false
			out.Checks[name] = err.Error()
			continue
		}
		out.Checks[name] = "ok"
	}

	rw := NewResponseWriter(w, r)
	if !out.Ready {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "service not ready", out)
		return
	}
	rw.Success(out)
}
