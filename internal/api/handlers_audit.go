// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ListAuditEvents returns the newest audit entries of a business.
//
// @Summary Audit trail
// @Tags Audit
// @Security BearerAuth
// @Param id path string true "Business ID"
// @Param limit query int false "Rows (max 1000, default 100)"
// @Success 200 {object} APIResponse{data=[]models.AuditEvent}
// @Router /businesses/{id}/audit [get]
func (h *Handler) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			NewResponseWriter(w, r).BadRequest("limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	events, err := h.audit.List(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(events)
}
