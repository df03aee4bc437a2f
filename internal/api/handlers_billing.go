// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/bookpro/internal/billing"
	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/models"
)

// maxWebhookBody bounds Stripe event payloads.
const maxWebhookBody = 512 << 10

// CheckoutRequest selects the plan to subscribe to.
type CheckoutRequest struct {
	Plan models.Plan `json:"plan" validate:"required,oneof=starter pro"`
}

// PortalResponse carries the Stripe billing portal link.
type PortalResponse struct {
	URL string `json:"url"`
}

// GetBilling returns the plan, subscription and usage of a business.
//
// @Summary Billing status
// @Tags Billing
// @Security BearerAuth
// @Param id path string true "Business ID"
// @Success 200 {object} APIResponse{data=billing.Status}
// @Router /businesses/{id}/billing [get]
func (h *Handler) GetBilling(w http.ResponseWriter, r *http.Request) {
	status, err := h.billing.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(status)
}

// StartCheckout opens a hosted checkout for a paid plan.
//
// @Summary Subscribe to a plan
// @Tags Billing
// @Security BearerAuth
// @Param id path string true "Business ID"
// @Param body body CheckoutRequest true "Plan"
// @Success 200 {object} APIResponse{data=models.CheckoutSession}
// @Failure 502 {object} APIResponse
// @Failure 503 {object} APIResponse
// @Router /businesses/{id}/billing/checkout [post]
func (h *Handler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	businessID := chi.URLParam(r, "id")
	var req CheckoutRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	session, err := h.billing.StartSubscription(r.Context(), businessID, req.Plan)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if h.audit != nil {
		h.audit.Log(r.Context(), businessID, actor.UserID, "billing.checkout_started", "subscription", session.ID,
			map[string]string{"plan": string(req.Plan)})
	}
	NewResponseWriter(w, r).Success(session)
}

// BillingPortal returns a Stripe billing portal link.
//
// @Summary Billing portal
// @Tags Billing
// @Security BearerAuth
// @Param id path string true "Business ID"
// @Success 200 {object} APIResponse{data=PortalResponse}
// @Failure 402 {object} APIResponse
// @Router /businesses/{id}/billing/portal [post]
func (h *Handler) BillingPortal(w http.ResponseWriter, r *http.Request) {
	url, err := h.billing.PortalURL(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(PortalResponse{URL: url})
}

// CancelSubscription schedules cancellation at the end of the paid period.
//
// @Summary Cancel subscription
// @Tags Billing
// @Security BearerAuth
// @Param id path string true "Business ID"
// @Success 200 {object} APIResponse{data=models.Subscription}
// @Router /businesses/{id}/billing/cancel [post]
func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	h.changeCancellation(w, r, true)
}

// ResumeSubscription withdraws a scheduled cancellation.
//
// @Summary Resume subscription
// @Tags Billing
// @Security BearerAuth
// @Param id path string true "Business ID"
// @Success 200 {object} APIResponse{data=models.Subscription}
// @Router /businesses/{id}/billing/resume [post]
func (h *Handler) ResumeSubscription(w http.ResponseWriter, r *http.Request) {
	h.changeCancellation(w, r, false)
}

func (h *Handler) changeCancellation(w http.ResponseWriter, r *http.Request, cancel bool) {
	actor, _ := actorFrom(r)
	businessID := chi.URLParam(r, "id")

	var (
		sub    *models.Subscription
		err    error
		action = "billing.resumed"
	)
	if cancel {
		sub, err = h.billing.CancelSubscription(r.Context(), businessID)
		action = "billing.cancel_scheduled"
	} else {
		sub, err = h.billing.ResumeSubscription(r.Context(), businessID)
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if h.audit != nil {
		h.audit.Log(r.Context(), businessID, actor.UserID, action, "subscription", sub.StripeSubscriptionID, nil)
	}
	NewResponseWriter(w, r).Success(sub)
}

// StripeWebhook receives Stripe events. Redeliveries of a processed event
// answer 200 with duplicate set; processing failures answer 500 so Stripe
// retries.
//
// @Summary Stripe webhook
// @Tags Billing
// @Accept json
// @Param Stripe-Signature header string true "Signature"
// @Success 200 {object} APIResponse{data=billing.WebhookResult}
// @Failure 400 {object} APIResponse
// @Router /webhooks/stripe [post]
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		NewResponseWriter(w, r).Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "webhook payload too large")
		return
	}

	res, err := h.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if errors.Is(err, billing.ErrDuplicateEvent) {
		NewResponseWriter(w, r).Success(res)
		return
	}
	if err != nil {
		respondWebhookError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(res)
}

// respondWebhookError answers a failed dispatch with 500 whatever the cause,
// so a gateway or conflict error still reads as a plain retryable failure.
func respondWebhookError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, billing.ErrWebhookFailed) {
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Webhook failed")
		NewResponseWriter(w, r).Error(http.StatusInternalServerError, ErrCodeInternalError, "webhook processing failed")
		return
	}
	respondServiceError(w, r, err)
}

// AdminSyncSubscriptions reconciles every subscription with Stripe now.
// Per-subscription failures are counted in the report.
//
// @Summary Sync subscriptions
// @Tags Admin
// @Security BearerAuth
// @Success 200 {object} APIResponse{data=billing.SyncReport}
// @Router /admin/billing/sync [post]
func (h *Handler) AdminSyncSubscriptions(w http.ResponseWriter, r *http.Request) {
	report, err := h.billing.SyncSubscriptions(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(report)
}

// AdminStripeEvents lists recently received webhook events.
//
// @Summary Stripe event ledger
// @Tags Admin
// @Security BearerAuth
// @Param limit query int false "Rows (max 1000)"
// @Success 200 {object} APIResponse{data=[]models.StripeEvent}
// @Router /admin/stripe-events [get]
func (h *Handler) AdminStripeEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			NewResponseWriter(w, r).BadRequest("limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	list, err := h.db.ListStripeEvents(r.Context(), limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []models.StripeEvent{}
	}
	NewResponseWriter(w, r).Success(list)
}
