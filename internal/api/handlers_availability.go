// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/bookpro/internal/models"
)

// WeeklyScheduleRequest replaces the weekly template.
type WeeklyScheduleRequest struct {
	Days models.WeekSchedule `json:"days"`
}

// WeekOverrideRequest replaces the hours of one week.
type WeekOverrideRequest struct {
	Days models.WeekSchedule `json:"days"`
	Note string              `json:"note" validate:"max=500"`
}

// GetWeeklySchedule returns the weekly opening template.
//
// @Summary Weekly schedule
// @Tags Availability
// @Security BearerAuth
// @Param id path string true "Business ID"
// @Success 200 {object} APIResponse{data=models.WeekSchedule}
// @Router /businesses/{id}/availability/weekly [get]
func (h *Handler) GetWeeklySchedule(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.availability.GetWeeklySchedule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(schedule)
}

// PutWeeklySchedule replaces the weekly opening template.
//
// @Summary Replace weekly schedule
// @Tags Availability
// @Security BearerAuth
// @Param id path string true "Business ID"
// @Param body body WeeklyScheduleRequest true "Opening hours per weekday"
// @Success 200 {object} APIResponse{data=models.WeekSchedule}
// @Router /businesses/{id}/availability/weekly [put]
func (h *Handler) PutWeeklySchedule(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	businessID := chi.URLParam(r, "id")
	var req WeeklyScheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rules, err := h.availability.SetWeeklyRules(r.Context(), businessID, req.Days)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if h.audit != nil {
		h.audit.Log(r.Context(), businessID, actor.UserID, "availability.weekly_replaced", "availability", businessID, req.Days)
	}
	NewResponseWriter(w, r).Success(models.ScheduleFromRules(rules))
}

// ListWeekOverrides lists week overrides, optionally bounded by week start.
//
// @Summary List week overrides
// @Tags Availability
// @Security BearerAuth
// @Param id path string true "Business ID"
// @Param from query string false "Earliest week start (YYYY-MM-DD)"
// @Param to query string false "Latest week start (YYYY-MM-DD)"
// @Success 200 {object} APIResponse{data=[]models.WeekOverride}
// @Router /businesses/{id}/availability/overrides [get]
func (h *Handler) ListWeekOverrides(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	overrides, err := h.availability.ListWeekOverrides(r.Context(), chi.URLParam(r, "id"), q.Get("from"), q.Get("to"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if overrides == nil {
		overrides = []models.WeekOverride{}
	}
	NewResponseWriter(w, r).Success(overrides)
}

// PutWeekOverride replaces the hours of the week starting on {weekStart}.
// Days left out of the body are closed that week.
//
// @Summary Override a week
// @Tags Availability
// @Security BearerAuth
// @Param id path string true "Business ID"
// @Param weekStart path string true "Monday of the week (YYYY-MM-DD)"
// @Param body body WeekOverrideRequest true "Hours for the week"
// @Success 200 {object} APIResponse{data=models.WeekOverride}
// @Router /businesses/{id}/availability/overrides/{weekStart} [put]
func (h *Handler) PutWeekOverride(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	businessID := chi.URLParam(r, "id")
	var req WeekOverrideRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	o := &models.WeekOverride{
		BusinessID: businessID,
		WeekStart:  chi.URLParam(r, "weekStart"),
		Days:       req.Days,
		Note:       req.Note,
	}
	if err := h.availability.PutWeekOverride(r.Context(), o); err != nil {
		respondServiceError(w, r, err)
		return
	}
	if h.audit != nil {
		h.audit.Log(r.Context(), businessID, actor.UserID, "availability.override_saved", "week_override", o.WeekStart, req)
	}
	NewResponseWriter(w, r).Success(o)
}

// DeleteWeekOverride restores the weekly template for one week.
//
// @Summary Remove a week override
// @Tags Availability
// @Security BearerAuth
// @Param id path string true "Business ID"
// @Param weekStart path string true "Monday of the week (YYYY-MM-DD)"
// @Success 204
// @Router /businesses/{id}/availability/overrides/{weekStart} [delete]
func (h *Handler) DeleteWeekOverride(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	businessID := chi.URLParam(r, "id")
	weekStart := chi.URLParam(r, "weekStart")
	if err := h.availability.DeleteWeekOverride(r.Context(), businessID, weekStart); err != nil {
		respondServiceError(w, r, err)
		return
	}
	if h.audit != nil {
		h.audit.Log(r.Context(), businessID, actor.UserID, "availability.override_deleted", "week_override", weekStart, nil)
	}
	NewResponseWriter(w, r).NoContent()
}
