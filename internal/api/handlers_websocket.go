// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/bookpro/internal/logging"
	ws "github.com/tomtom215/bookpro/internal/websocket"
)

// LiveFeed upgrades to a websocket that streams the business's booking and
// subscription events. Browsers pass the token as access_token since they
// cannot set headers on upgrades.
//
// @Summary Live dashboard feed
// @Tags Realtime
// @Security BearerAuth
// @Param id path string true "Business ID"
// @Success 101
// @Router /businesses/{id}/live [get]
func (h *Handler) LiveFeed(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		NewResponseWriter(w, r).Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "live feed unavailable")
		return
	}
	actor, _ := actorFrom(r)
	businessID := chi.URLParam(r, "id")

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logging.Ctx(r.Context()).Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn, businessID, actor.UserID)
	h.hub.Register <- client
	client.Start()

	logging.Ctx(r.Context()).Debug().
		Str("business_id", businessID).
		Uint64("client_id", client.ID()).
		Msg("WebSocket client connected")
}
