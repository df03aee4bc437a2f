// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/bookpro/internal/auth"
	"github.com/tomtom215/bookpro/internal/catalog"
	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/models"
)

// tokenCookie mirrors the cookie auth.Middleware reads.
const tokenCookie = "token"

// RegisterRequest is a signup. Owners may create their first business in the
// same call.
type RegisterRequest struct {
	auth.RegisterInput
	Business *catalog.BusinessInput `json:"business,omitempty"`
}

// RegisterResponse is the created account with a session and optional business.
type RegisterResponse struct {
	*auth.Session
	Business *models.Business `json:"business,omitempty"`
}

// LoginRequest holds credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// MeResponse is the caller's profile with the businesses they operate.
type MeResponse struct {
	User       *models.User      `json:"user"`
	Businesses []models.Business `json:"businesses"`
}

// Register creates a client or owner account and signs it in.
//
// @Summary Sign up
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body RegisterRequest true "Account"
// @Success 201 {object} APIResponse{data=RegisterResponse}
// @Failure 400 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Business != nil && req.Role != models.RoleOwner {
		NewResponseWriter(w, r).ValidationError("only owner accounts can create a business", map[string]interface{}{"field": "business"})
		return
	}

	user, err := h.auth.Register(r.Context(), req.RegisterInput)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	resp := RegisterResponse{}
	if req.Business != nil {
		biz, err := h.catalog.CreateBusiness(r.Context(), user.ID, *req.Business)
		if err != nil {
			// The account exists; the business can be created later.
			logging.Ctx(r.Context()).Warn().Err(err).Str("user_id", user.ID).Msg("Signup business creation failed")
			respondServiceError(w, r, err)
			return
		}
		resp.Business = biz
	}

	session, err := h.auth.IssueSession(user)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	resp.Session = session
	h.setTokenCookie(w, session.Token, session.ExpiresAt)
	NewResponseWriter(w, r).Created(resp)
}

// Login exchanges credentials for a session token.
//
// @Summary Log in
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Credentials"
// @Success 200 {object} APIResponse{data=auth.Session}
// @Failure 401 {object} APIResponse
// @Failure 429 {object} APIResponse
// @Router /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session, err := h.auth.Login(r.Context(), req.Email, req.Password, auth.ClientIP(r, h.trustedProxies))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.setTokenCookie(w, session.Token, session.ExpiresAt)
	NewResponseWriter(w, r).Success(session)
}

// Logout revokes the caller's token.
//
// @Summary Log out
// @Tags Auth
// @Security BearerAuth
// @Success 204
// @Router /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	_, claims := actorFrom(r)
	if claims == nil {
		NewResponseWriter(w, r).Unauthorized("authentication required")
		return
	}
	if err := h.auth.Logout(r.Context(), claims); err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.setTokenCookie(w, "", time.Unix(0, 0))
	NewResponseWriter(w, r).NoContent()
}

// Me returns the caller's account and businesses.
//
// @Summary Current user
// @Tags Auth
// @Security BearerAuth
// @Success 200 {object} APIResponse{data=MeResponse}
// @Router /me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	_, claims := actorFrom(r)
	user, err := h.auth.User(r.Context(), claims)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	businesses, err := h.catalog.BusinessesForUser(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if businesses == nil {
		businesses = []models.Business{}
	}
	NewResponseWriter(w, r).Success(MeResponse{User: user, Businesses: businesses})
}

// MyBookings lists bookings the caller made as a client.
//
// @Summary My bookings
// @Tags Bookings
// @Security BearerAuth
// @Param status query string false "Booking status"
// @Param from query string false "Earliest start"
// @Param to query string false "Latest start (exclusive)"
// @Success 200 {object} APIResponse{data=[]models.Booking}
// @Router /me/bookings [get]
func (h *Handler) MyBookings(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	f, err := bookingFilter(r)
	if err != nil {
		badRequest(w, r, err)
		return
	}
	f.ClientID = actor.UserID
	h.listBookings(w, r, f)
}

func (h *Handler) setTokenCookie(w http.ResponseWriter, token string, expires time.Time) {
	secure := h.cfg != nil && h.cfg.IsProduction()
	cookie := &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		cookie.MaxAge = -1
	}
	http.SetCookie(w, cookie)
}
