// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/bookpro/internal/auth"
	"github.com/tomtom215/bookpro/internal/authz"
	"github.com/tomtom215/bookpro/internal/middleware"
	"github.com/tomtom215/bookpro/internal/models"
)

// Router wires handlers to routes and middleware.
type Router struct {
	handler       *Handler
	authn         *auth.Middleware
	authz         *authz.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. Authentication and authorization errors are
// written in the API envelope.
func NewRouter(handler *Handler, chiMW *ChiMiddleware) *Router {
	return &Router{
		handler:       handler,
		authn:         auth.NewMiddleware(handler.auth, WriteError),
		authz:         authz.NewMiddleware(handler.authorizer, WriteError),
		chiMiddleware: chiMW,
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()
	h := router.handler
	limits := router.chiMiddleware

	// Global middleware, applied to all routes in order
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.Recoverer)
	r.Use(limits.CORS()) // CORS must be global to handle OPTIONS preflight
	r.Use(AccessLog())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		// Health
		r.Group(func(r chi.Router) {
			r.Use(limits.RateLimitHealth())
			r.Get("/health", h.Health)
			r.Get("/health/ready", h.HealthReady)
		})

		// Signup and login
		r.Group(func(r chi.Router) {
			r.Use(limits.RateLimitAuth())
			r.Post("/auth/register", h.Register)
			r.Post("/auth/login", h.Login)
		})

		// Stripe retries bursts; signatures authenticate it.
		r.With(limits.RateLimitWebhook()).Post("/webhooks/stripe", h.StripeWebhook)

		// Anonymous booking pages
		r.Route("/public/businesses/{slug}", func(r chi.Router) {
			r.Use(limits.RateLimitPublic())
			r.Get("/", h.PublicGetBusiness)
			r.Get("/services", h.PublicListServices)
			r.Get("/slots", h.PublicSlots)
			r.Post("/bookings", h.PublicCreateBooking)
		})

		// Authenticated API
		r.Group(func(r chi.Router) {
			r.Use(limits.RateLimit())
			r.Use(router.authn.Authenticate)

			r.Post("/auth/logout", h.Logout)
			r.Get("/me", h.Me)
			r.Get("/me/bookings", h.MyBookings)

			r.With(router.authn.RequireRole(models.RoleOwner)).Post("/businesses", h.CreateBusiness)
			r.Route("/businesses/{id}", router.businessRoutes)

			r.Route("/bookings/{id}", func(r chi.Router) {
				r.Get("/", h.GetBooking)
				r.Post("/cancel", h.CancelBooking)
				r.Post("/reschedule", h.RescheduleBooking)
				r.Post("/complete", h.CompleteBooking)
				r.Post("/no-show", h.NoShowBooking)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(router.authn.RequireRole(models.RoleAdmin))
				r.Post("/billing/sync", h.AdminSyncSubscriptions)
				r.Get("/stripe-events", h.AdminStripeEvents)
			})
		})
	})

	return r
}

// businessRoutes registers routes scoped to /businesses/{id}. Every route
// checks the caller's membership role through casbin.
func (router *Router) businessRoutes(r chi.Router) {
	h := router.handler
	can := router.authz.RequireBusiness

	r.With(can(authz.ObjectBusiness, authz.ActionRead)).Get("/", h.GetBusiness)
	r.With(can(authz.ObjectBusiness, authz.ActionWrite)).Put("/", h.UpdateBusiness)
	r.With(can(authz.ObjectMedia, authz.ActionWrite)).Post("/logo", h.UploadLogo)

	r.With(can(authz.ObjectBusiness, authz.ActionRead)).Get("/staff", h.ListStaff)
	r.With(can(authz.ObjectBusiness, authz.ActionWrite)).Post("/staff", h.AddStaff)

	r.Route("/services", func(r chi.Router) {
		r.Use(router.authz.RequireMethod(authz.ObjectService))
		r.Get("/", h.ListServices)
		r.Post("/", h.CreateService)
		r.Put("/{serviceID}", h.UpdateService)
		r.Delete("/{serviceID}", h.DeleteService)
	})

	r.Route("/availability", func(r chi.Router) {
		r.Use(router.authz.RequireMethod(authz.ObjectAvailability))
		r.Get("/weekly", h.GetWeeklySchedule)
		r.Put("/weekly", h.PutWeeklySchedule)
		r.Get("/overrides", h.ListWeekOverrides)
		r.Put("/overrides/{weekStart}", h.PutWeekOverride)
		r.Delete("/overrides/{weekStart}", h.DeleteWeekOverride)
	})

	r.With(can(authz.ObjectBooking, authz.ActionRead)).Get("/bookings", h.ListBusinessBookings)

	r.Route("/billing", func(r chi.Router) {
		r.With(can(authz.ObjectBilling, authz.ActionRead)).Get("/", h.GetBilling)
		r.Group(func(r chi.Router) {
			r.Use(can(authz.ObjectBilling, authz.ActionWrite))
			r.Post("/checkout", h.StartCheckout)
			r.Post("/portal", h.BillingPortal)
			r.Post("/cancel", h.CancelSubscription)
			r.Post("/resume", h.ResumeSubscription)
		})
	})

	r.With(can(authz.ObjectAudit, authz.ActionRead)).Get("/audit", h.ListAuditEvents)

	r.With(
		router.chiMiddleware.RateLimitWebSocket(),
		can(authz.ObjectBooking, authz.ActionRead),
	).Get("/live", h.LiveFeed)
}
