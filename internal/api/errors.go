// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/bookpro/internal/auth"
	"github.com/tomtom215/bookpro/internal/availability"
	"github.com/tomtom215/bookpro/internal/billing"
	"github.com/tomtom215/bookpro/internal/booking"
	"github.com/tomtom215/bookpro/internal/catalog"
	"github.com/tomtom215/bookpro/internal/database"
	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/media"
	"github.com/tomtom215/bookpro/internal/validation"
)

// errorMapping binds a sentinel to the status and code it surfaces as.
type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order; the first errors.Is match wins.
var errorMappings = []errorMapping{
	{catalog.ErrInvalidInput, http.StatusBadRequest, ErrCodeValidation},
	{booking.ErrInvalidInput, http.StatusBadRequest, ErrCodeValidation},
	{availability.ErrInvalidInput, http.StatusBadRequest, ErrCodeValidation},
	{auth.ErrInvalidInput, http.StatusBadRequest, ErrCodeValidation},
	{auth.ErrWeakPassword, http.StatusBadRequest, ErrCodeValidation},
	{billing.ErrInvalidPlan, http.StatusBadRequest, ErrCodeValidation},
	{billing.ErrInvalidSignature, http.StatusBadRequest, ErrCodeBadRequest},
	{booking.ErrServiceInactive, http.StatusBadRequest, ErrCodeBadRequest},
	{booking.ErrNotStarted, http.StatusConflict, ErrCodeConflict},

	{auth.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeUnauthorized},

	{billing.ErrPlanLimitReached, http.StatusPaymentRequired, ErrCodePaymentRequired},
	{billing.ErrNoSubscription, http.StatusPaymentRequired, ErrCodePaymentRequired},

	{booking.ErrForbidden, http.StatusForbidden, ErrCodeForbidden},

	{database.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},

	{booking.ErrSlotUnavailable, http.StatusConflict, ErrCodeConflict},
	{booking.ErrInvalidTransition, http.StatusConflict, ErrCodeConflict},
	{catalog.ErrSlugTaken, http.StatusConflict, ErrCodeConflict},
	{catalog.ErrServiceInUse, http.StatusConflict, ErrCodeConflict},
	{catalog.ErrAlreadyMember, http.StatusConflict, ErrCodeConflict},
	{auth.ErrEmailTaken, http.StatusConflict, ErrCodeConflict},
	{database.ErrDuplicate, http.StatusConflict, ErrCodeConflict},
	{database.ErrConflict, http.StatusConflict, ErrCodeConflict},

	{media.ErrTooLarge, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge},
	{media.ErrUnsupportedType, http.StatusUnsupportedMediaType, ErrCodeUnsupportedMediaType},

	{auth.ErrRateLimited, http.StatusTooManyRequests, ErrCodeTooManyRequests},

	{billing.ErrGateway, http.StatusBadGateway, ErrCodeBadGateway},

	{billing.ErrBillingDisabled, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
	{media.ErrDisabled, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
}

// statusForError resolves err to an HTTP status and error code. Unknown
// errors are 500.
func statusForError(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, ErrCodeInternalError
}

// respondServiceError writes err in the envelope. Validation errors carry
// per-field details; server errors are logged and their text withheld.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)

	var verr *validation.RequestValidationError
	if errors.As(err, &verr) {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	status, code := statusForError(err)
	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).
			Str("path", r.URL.Path).
			Int("status", status).
			Msg("Request failed")
		if status == http.StatusInternalServerError {
			rw.InternalError("An internal error occurred")
			return
		}
	}
	rw.Error(status, code, err.Error())
}
