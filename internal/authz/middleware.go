// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package authz

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/bookpro/internal/auth"
	"github.com/tomtom215/bookpro/internal/logging"
)

// BusinessParam is the chi URL parameter holding the business ID.
const BusinessParam = "id"

// Middleware enforces business-scoped permissions on chi routes.
type Middleware struct {
	authorizer *Authorizer
	respond    auth.ErrorResponder
}

// NewMiddleware creates the middleware. A nil respond falls back to http.Error.
func NewMiddleware(authorizer *Authorizer, respond auth.ErrorResponder) *Middleware {
	if respond == nil {
		respond = func(w http.ResponseWriter, _ *http.Request, status int, _, message string) {
			http.Error(w, message, status)
		}
	}
	return &Middleware{authorizer: authorizer, respond: respond}
}

// RequireBusiness allows the request only when the caller may perform action
// on object in the business named by the {id} URL parameter. It must run
// after auth.Middleware.Authenticate.
func (m *Middleware) RequireBusiness(object, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				m.respond(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}
			businessID := chi.URLParam(r, BusinessParam)
			if businessID == "" {
				m.respond(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "business id is required")
				return
			}

			err := m.authorizer.AuthorizeBusiness(r.Context(), claims.Actor(), businessID, object, action)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, ErrNotMember):
				// Hide businesses the caller cannot see.
				m.respond(w, r, http.StatusNotFound, "NOT_FOUND", "business not found")
			case errors.Is(err, ErrForbidden):
				m.respond(w, r, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
			default:
				logging.Ctx(r.Context()).Error().Err(err).Msg("Authorization error")
				m.respond(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "authorization unavailable")
			}
		})
	}
}

// RequireMethod is RequireBusiness with the action derived from the HTTP method.
func (m *Middleware) RequireMethod(object string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.RequireBusiness(object, methodToAction(r.Method))(next).ServeHTTP(w, r)
		})
	}
}

func methodToAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ActionRead
	case http.MethodDelete:
		return ActionDelete
	default:
		return ActionWrite
	}
}
