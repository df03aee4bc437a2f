// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/bookpro/internal/models"
)

// CancelRequest optionally explains a cancellation.
type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// RescheduleRequest moves a booking to a new start.
type RescheduleRequest struct {
	StartAt time.Time `json:"start_at" validate:"required"`
}

// ListBusinessBookings lists a business's bookings.
//
// @Summary Business bookings
// @Tags Bookings
// @Security BearerAuth
// @Param id path string true "Business ID"
// @Param status query string false "Booking status"
// @Param from query string false "Earliest start (RFC 3339 or YYYY-MM-DD)"
// @Param to query string false "Latest start, exclusive"
// @Param limit query int false "Page size (max 200)"
// @Param offset query int false "Page offset"
// @Success 200 {object} APIResponse{data=[]models.Booking}
// @Router /businesses/{id}/bookings [get]
func (h *Handler) ListBusinessBookings(w http.ResponseWriter, r *http.Request) {
	f, err := bookingFilter(r)
	if err != nil {
		badRequest(w, r, err)
		return
	}
	f.BusinessID = chi.URLParam(r, "id")
	h.listBookings(w, r, f)
}

// listBookings fetches one row beyond the page to report has_more.
func (h *Handler) listBookings(w http.ResponseWriter, r *http.Request, f models.BookingFilter) {
	limit := f.Limit
	f.Limit = limit + 1
	list, err := h.bookings.List(r.Context(), f)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	page, meta := pageMeta(list, limit, f.Offset)
	NewResponseWriter(w, r).SuccessWithPagination(page, meta)
}

// GetBooking returns one booking to its client or the business's operators.
//
// @Summary Get booking
// @Tags Bookings
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} APIResponse{data=models.Booking}
// @Router /bookings/{id} [get]
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	b, err := h.bookings.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(b)
}

// CancelBooking cancels a booking. Paid bookings cancelled within the policy
// are refunded.
//
// @Summary Cancel booking
// @Tags Bookings
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Param body body CancelRequest false "Reason"
// @Success 200 {object} APIResponse{data=models.Booking}
// @Failure 409 {object} APIResponse
// @Router /bookings/{id}/cancel [post]
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	var req CancelRequest
	if r.ContentLength != 0 && !decodeAndValidate(w, r, &req) {
		return
	}
	b, err := h.bookings.Cancel(r.Context(), actor, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(b)
}

// RescheduleBooking moves a booking to another open slot.
//
// @Summary Reschedule booking
// @Tags Bookings
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Param body body RescheduleRequest true "New start"
// @Success 200 {object} APIResponse{data=models.Booking}
// @Failure 409 {object} APIResponse
// @Router /bookings/{id}/reschedule [post]
func (h *Handler) RescheduleBooking(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	var req RescheduleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	b, err := h.bookings.Reschedule(r.Context(), actor, chi.URLParam(r, "id"), req.StartAt)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(b)
}

// CompleteBooking marks a past booking as attended.
//
// @Summary Mark completed
// @Tags Bookings
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} APIResponse{data=models.Booking}
// @Router /bookings/{id}/complete [post]
func (h *Handler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	b, err := h.bookings.MarkCompleted(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(b)
}

// NoShowBooking marks a past booking as missed.
//
// @Summary Mark no-show
// @Tags Bookings
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} APIResponse{data=models.Booking}
// @Router /bookings/{id}/no-show [post]
func (h *Handler) NoShowBooking(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	b, err := h.bookings.MarkNoShow(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(b)
}
