// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package api

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/bookpro/internal/audit"
	"github.com/tomtom215/bookpro/internal/auth"
	"github.com/tomtom215/bookpro/internal/authz"
	"github.com/tomtom215/bookpro/internal/availability"
	"github.com/tomtom215/bookpro/internal/billing"
	"github.com/tomtom215/bookpro/internal/booking"
	"github.com/tomtom215/bookpro/internal/catalog"
	"github.com/tomtom215/bookpro/internal/config"
	"github.com/tomtom215/bookpro/internal/database"
	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/media"
	ws "github.com/tomtom215/bookpro/internal/websocket"
)

// Dependencies bundles the services the handlers call. Media and Hub may be
// nil; the affected endpoints then answer 503.
type Dependencies struct {
	Config       *config.Config
	DB           *database.DB
	Auth         *auth.Service
	Authorizer   *authz.Authorizer
	Catalog      *catalog.Service
	Availability *availability.Service
	Bookings     *booking.Service
	Billing      *billing.Service
	Audit        *audit.Recorder
	Media        *media.Service
	Hub          *ws.Hub
}

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Handler contains dependencies for API handlers
//
// Handler methods are split across files by resource:
//   - handlers_health.go: liveness and readiness
//   - handlers_auth.go: signup, login, logout and the caller's profile
//   - handlers_public.go: anonymous business pages, slots and booking
//   - handlers_business.go: business profile, logo, staff and services
//   - handlers_availability.go: weekly template and week overrides
//   - handlers_bookings.go: booking lists and lifecycle actions
//   - handlers_billing.go: plans, Stripe webhook and admin billing
//   - handlers_audit.go: audit trail
//   - handlers_websocket.go: live dashboard feed
type Handler struct {
	cfg          *config.Config
	db           *database.DB
	auth         *auth.Service
	authorizer   *authz.Authorizer
	catalog      *catalog.Service
	availability *availability.Service
	bookings     *booking.Service
	billing      *billing.Service
	audit        *audit.Recorder
	media        *media.Service
	hub          *ws.Hub

	trustedProxies map[string]bool
	startTime      time.Time

	checksMu sync.RWMutex
	checks   map[string]ReadinessCheck
}

// NewHandler creates the API handler.
func NewHandler(deps Dependencies) *Handler {
	h := &Handler{
		cfg:          deps.Config,
		db:           deps.DB,
		auth:         deps.Auth,
		authorizer:   deps.Authorizer,
		catalog:      deps.Catalog,
		availability: deps.Availability,
		bookings:     deps.Bookings,
		billing:      deps.Billing,
		audit:        deps.Audit,
		media:        deps.Media,
		hub:          deps.Hub,
		startTime:    time.Now(),
		checks:       make(map[string]ReadinessCheck),
	}
	if deps.Config != nil {
		h.trustedProxies = auth.ProxySet(deps.Config.Security.TrustedProxies)
	}
	if deps.DB != nil {
		h.checks["database"] = deps.DB.Ping
	}
	return h
}

// AddReadinessCheck registers a dependency consulted by /health/ready.
//
// Thread Safety: Safe for concurrent access.
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checksMu.Lock()
	defer h.checksMu.Unlock()
	h.checks[name] = check
}

func (h *Handler) readinessChecks() []string {
	h.checksMu.RLock()
	defer h.checksMu.RUnlock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *Handler) readinessCheck(name string) ReadinessCheck {
	h.checksMu.RLock()
	defer h.checksMu.RUnlock()
	return h.checks[name]
}

// getUpgrader creates a WebSocket upgrader with origin checking and a handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins against CORS_ORIGINS.
// Browsers always send Origin, so its absence is rejected.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	if h.cfg == nil {
		return true
	}

	for _, allowedOrigin := range h.cfg.Security.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
