// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/models"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext returns the authenticated caller's claims.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok && claims != nil
}

// Authenticator resolves a raw token to claims.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Claims, error)
}

// ErrorResponder writes an error response. The API package supplies one that
// renders its JSON envelope.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, status int, code, message string)

func plainError(w http.ResponseWriter, _ *http.Request, status int, _, message string) {
	http.Error(w, message, status)
}

// Middleware provides chi-compatible authentication middleware.
type Middleware struct {
	auth    Authenticator
	respond ErrorResponder
}

// NewMiddleware creates the middleware. A nil respond falls back to http.Error.
func NewMiddleware(auth Authenticator, respond ErrorResponder) *Middleware {
	if respond == nil {
		respond = plainError
	}
	return &Middleware{auth: auth, respond: respond}
}

// Authenticate rejects requests without a valid, unrevoked token.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := extractToken(r)
		if !ok {
			m.respond(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}

		claims, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, ErrTokenRevoked) || errors.Is(err, ErrInvalidToken) {
				logging.Ctx(r.Context()).Debug().Err(err).Msg("Token rejected")
				m.respond(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
				return
			}
			logging.Ctx(r.Context()).Error().Err(err).Msg("Token check failed")
			m.respond(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "authentication unavailable")
			return
		}

		ctx := WithClaims(r.Context(), claims)
		ctx = logging.ContextWithLogger(ctx, logging.CtxWith(ctx).Str("user_id", claims.Subject).Logger())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole allows only callers with one of roles. Admins always pass.
// It must run after Authenticate.
func (m *Middleware) RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				m.respond(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}
			if claims.Role == models.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			m.respond(w, r, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
		})
	}
}

// extractToken reads the bearer header, then the token cookie, then the
// access_token query parameter on websocket upgrades.
func extractToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", false
		}
		return strings.TrimSpace(token), true
	}
	if cookie, err := r.Cookie("token"); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		if token := r.URL.Query().Get("access_token"); token != "" {
			return token, true
		}
	}
	return "", false
}
