// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/bookpro/internal/booking"
	"github.com/tomtom215/bookpro/internal/models"
)

// PublicBusiness is the page a client sees before booking.
type PublicBusiness struct {
	ID                        string `json:"id"`
	Slug                      string `json:"slug"`
	Name                      string `json:"name"`
	Timezone                  string `json:"timezone"`
	Currency                  string `json:"currency"`
	LogoURL                   string `json:"logo_url,omitempty"`
	CancellationWindowMinutes int    `json:"cancellation_window_minutes"`
}

// PublicService is a bookable service with its display price and the amount
// collected online at booking time.
type PublicService struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Description     string             `json:"description,omitempty"`
	DurationMinutes int                `json:"duration_minutes"`
	PriceCents      int64              `json:"price_cents"`
	Currency        string             `json:"currency"`
	DisplayPrice    string             `json:"display_price"`
	PaymentMode     models.PaymentMode `json:"payment_mode"`
	DueOnlineCents  int64              `json:"due_online_cents"`
}

func toPublicBusiness(b *models.Business) PublicBusiness {
	return PublicBusiness{
		ID:                        b.ID,
		Slug:                      b.Slug,
		Name:                      b.Name,
		Timezone:                  b.Timezone,
		Currency:                  b.Currency,
		LogoURL:                   b.LogoURL,
		CancellationWindowMinutes: b.CancellationWindowMinutes,
	}
}

// publicBusiness resolves the {slug} parameter, writing 404 when unknown.
func (h *Handler) publicBusiness(w http.ResponseWriter, r *http.Request) (*models.Business, bool) {
	biz, err := h.catalog.BusinessBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondServiceError(w, r, err)
		return nil, false
	}
	return biz, true
}

// PublicGetBusiness returns a business's public page.
//
// @Summary Public business page
// @Tags Public
// @Param slug path string true "Business slug"
// @Success 200 {object} APIResponse{data=PublicBusiness}
// @Failure 404 {object} APIResponse
// @Router /public/businesses/{slug} [get]
func (h *Handler) PublicGetBusiness(w http.ResponseWriter, r *http.Request) {
	biz, ok := h.publicBusiness(w, r)
	if !ok {
		return
	}
	NewResponseWriter(w, r).Success(toPublicBusiness(biz))
}

// PublicListServices lists the active services of a business.
//
// @Summary Public service list
// @Tags Public
// @Param slug path string true "Business slug"
// @Success 200 {object} APIResponse{data=[]PublicService}
// @Router /public/businesses/{slug}/services [get]
func (h *Handler) PublicListServices(w http.ResponseWriter, r *http.Request) {
	biz, ok := h.publicBusiness(w, r)
	if !ok {
		return
	}
	services, err := h.catalog.ListServices(r.Context(), biz.ID, true)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	online := false
	if h.billing != nil && h.billing.Enabled() {
		ent, err := h.billing.EffectiveEntitlements(r.Context(), biz.ID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		online = ent.OnlinePayments
	}

	out := make([]PublicService, 0, len(services))
	for i := range services {
		svc := &services[i]
		out = append(out, PublicService{
			ID:              svc.ID,
			Name:            svc.Name,
			Description:     svc.Description,
			DurationMinutes: svc.DurationMinutes,
			PriceCents:      svc.PriceCents,
			Currency:        svc.Currency,
			DisplayPrice:    booking.DisplayPrice(svc),
			PaymentMode:     svc.PaymentMode,
			DueOnlineCents:  booking.Quote(svc, online),
		})
	}
	NewResponseWriter(w, r).Success(out)
}

// PublicSlots returns the slot grid of one service for a date range.
//
// @Summary Available slots
// @Tags Public
// @Param slug path string true "Business slug"
// @Param service_id query string true "Service ID"
// @Param from query string true "First day (YYYY-MM-DD, business time)"
// @Param to query string true "Last day (YYYY-MM-DD, business time)"
// @Param tz query string false "Client IANA time zone for local labels"
// @Success 200 {object} APIResponse{data=[]models.Slot}
// @Failure 400 {object} APIResponse
// @Router /public/businesses/{slug}/slots [get]
func (h *Handler) PublicSlots(w http.ResponseWriter, r *http.Request) {
	biz, ok := h.publicBusiness(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	serviceID := q.Get("service_id")
	if serviceID == "" {
		NewResponseWriter(w, r).ValidationError("service_id is required", map[string]interface{}{"field": "service_id", "tag": "required"})
		return
	}

	slots, err := h.availability.GetSlots(r.Context(), biz.ID, serviceID, q.Get("from"), q.Get("to"), q.Get("tz"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(slots)
}

// PublicCreateBooking books a slot. Signed-in clients get the booking linked
// to their account; guests are identified by email. The response carries a
// checkout URL when the service collects payment online.
//
// @Summary Book a slot
// @Tags Public
// @Accept json
// @Param slug path string true "Business slug"
// @Param body body models.BookingRequest true "Booking"
// @Success 201 {object} APIResponse{data=models.Booking}
// @Failure 402 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /public/businesses/{slug}/bookings [post]
func (h *Handler) PublicCreateBooking(w http.ResponseWriter, r *http.Request) {
	biz, ok := h.publicBusiness(w, r)
	if !ok {
		return
	}
	var req models.BookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	clientID := h.optionalUserID(r)
	b, err := h.bookings.Create(r.Context(), biz.ID, clientID, req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(b)
}

// optionalUserID returns the caller's user ID when the request carries a
// valid token, and "" for guests.
func (h *Handler) optionalUserID(r *http.Request) string {
	if actor, claims := actorFrom(r); claims != nil {
		return actor.UserID
	}
	token := bearerToken(r)
	if token == "" || h.auth == nil {
		return ""
	}
	claims, err := h.auth.Authenticate(r.Context(), token)
	if err != nil {
		return ""
	}
	return claims.UserID()
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	if cookie, err := r.Cookie(tokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}
