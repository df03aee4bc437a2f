// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package api

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/bookpro/internal/catalog"
	"github.com/tomtom215/bookpro/internal/media"
	"github.com/tomtom215/bookpro/internal/models"
)

// logoFormField names the multipart part carrying the image.
const logoFormField = "logo"

// StaffRequest adds an existing account as staff.
type StaffRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// CreateBusiness creates a business owned by the caller.
//
// @Summary Create business
// @Tags Businesses
// @Security BearerAuth
// @Param body body catalog.BusinessInput true "Business"
// @Success 201 {object} APIResponse{data=models.Business}
// @Failure 409 {object} APIResponse
// @Router /businesses [post]
func (h *Handler) CreateBusiness(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	var in catalog.BusinessInput
	if !decodeJSON(w, r, &in) {
		return
	}
	biz, err := h.catalog.CreateBusiness(r.Context(), actor.UserID, in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(biz)
}

// GetBusiness returns the full business record to its members.
//
// @Summary Get business
// @Tags Businesses
// @Security BearerAuth
// @Param id path string true "Business ID"
// @Success 200 {object} APIResponse{data=models.Business}
// @Router /businesses/{id} [get]
func (h *Handler) GetBusiness(w http.ResponseWriter, r *http.Request) {
	biz, err := h.catalog.GetBusiness(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(biz)
}

// UpdateBusiness applies a partial profile update.
//
// @Summary Update business
// @Tags Businesses
// @Security BearerAuth
// @Param id path string true "Business ID"
// @Param body body models.BusinessUpdate true "Changed fields"
// @Success 200 {object} APIResponse{data=models.Business}
// @Router /businesses/{id} [put]
func (h *Handler) UpdateBusiness(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	var upd models.BusinessUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	biz, err := h.catalog.UpdateBusiness(r.Context(), actor.UserID, chi.URLParam(r, "id"), upd)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(biz)
}

// UploadLogo stores a business logo. The image is sent either as the raw body
// or as the "logo" part of a multipart form.
//
// @Summary Upload logo
// @Tags Businesses
// @Security BearerAuth
// @Accept image/png,image/jpeg,image/webp,image/svg+xml,multipart/form-data
// @Param id path string true "Business ID"
// @Success 200 {object} APIResponse{data=media.Logo}
// @Failure 413 {object} APIResponse
// @Failure 415 {object} APIResponse
// @Router /businesses/{id}/logo [post]
func (h *Handler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		respondServiceError(w, r, media.ErrDisabled)
		return
	}
	actor, _ := actorFrom(r)
	businessID := chi.URLParam(r, "id")

	// Multipart framing needs a little room beyond the image itself.
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxLogoBytes+64<<10)
	body, err := logoReader(r)
	if err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}

	logo, err := h.media.UploadLogo(r.Context(), businessID, body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			err = media.ErrTooLarge
		}
		respondServiceError(w, r, err)
		return
	}
	if h.audit != nil {
		h.audit.Log(r.Context(), businessID, actor.UserID, "business.logo_uploaded", "business", businessID,
			map[string]interface{}{"content_type": logo.ContentType, "size": logo.Size})
	}
	NewResponseWriter(w, r).Success(logo)
}

func logoReader(r *http.Request) (io.Reader, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, nil
	}
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("multipart form has no logo part")
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == logoFormField {
			return part, nil
		}
	}
}

// ListStaff lists the business's members.
//
// @Summary List members
// @Tags Businesses
// @Security BearerAuth
// @Param id path string true "Business ID"
// @Success 200 {object} APIResponse{data=[]models.Membership}
// @Router /businesses/{id}/staff [get]
func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	members, err := h.catalog.Members(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if members == nil {
		members = []models.Membership{}
	}
	NewResponseWriter(w, r).Success(members)
}

// AddStaff links an existing account to the business as staff.
//
// @Summary Add staff
// @Tags Businesses
// @Security BearerAuth
// @Param id path string true "Business ID"
// @Param body body StaffRequest true "Account email"
// @Success 201 {object} APIResponse{data=models.Membership}
// @Failure 402 {object} APIResponse
// @Router /businesses/{id}/staff [post]
func (h *Handler) AddStaff(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	var req StaffRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	m, err := h.catalog.AddStaff(r.Context(), actor.UserID, chi.URLParam(r, "id"), req.Email)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(m)
}

// ListServices lists all services of a business, including inactive ones.
//
// @Summary List services
// @Tags Services
// @Security BearerAuth
// @Param id path string true "Business ID"
// @Success 200 {object} APIResponse{data=[]models.Service}
// @Router /businesses/{id}/services [get]
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.catalog.ListServices(r.Context(), chi.URLParam(r, "id"), false)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if services == nil {
		services = []models.Service{}
	}
	NewResponseWriter(w, r).Success(services)
}

// CreateService adds a bookable service.
//
// @Summary Create service
// @Tags Services
// @Security BearerAuth
// @Param id path string true "Business ID"
// @Param body body models.ServiceInput true "Service"
// @Success 201 {object} APIResponse{data=models.Service}
// @Failure 402 {object} APIResponse
// @Router /businesses/{id}/services [post]
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	var in models.ServiceInput
	if !decodeJSON(w, r, &in) {
		return
	}
	svc, err := h.catalog.CreateService(r.Context(), actor.UserID, chi.URLParam(r, "id"), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(svc)
}

// UpdateService replaces a service's editable fields.
//
// @Summary Update service
// @Tags Services
// @Security BearerAuth
// @Param id path string true "Business ID"
// @Param serviceID path string true "Service ID"
// @Param body body models.ServiceInput true "Service"
// @Success 200 {object} APIResponse{data=models.Service}
// @Router /businesses/{id}/services/{serviceID} [put]
func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	var in models.ServiceInput
	if !decodeJSON(w, r, &in) {
		return
	}
	svc, err := h.catalog.UpdateService(r.Context(), actor.UserID, chi.URLParam(r, "id"), chi.URLParam(r, "serviceID"), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(svc)
}

// DeleteService removes a service without upcoming bookings.
//
// @Summary Delete service
// @Tags Services
// @Security BearerAuth
// @Param id path string true "Business ID"
// @Param serviceID path string true "Service ID"
// @Success 204
// @Failure 409 {object} APIResponse
// @Router /businesses/{id}/services/{serviceID} [delete]
func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	if err := h.catalog.DeleteService(r.Context(), actor.UserID, chi.URLParam(r, "id"), chi.URLParam(r, "serviceID")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).NoContent()
}
