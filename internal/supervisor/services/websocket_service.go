// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package services

import (
	"context"
	"errors"

	"github.com/tomtom215/bookpro/internal/logging"
)

// LiveFeedHub is satisfied by *websocket.Hub.
type LiveFeedHub interface {
	RunWithContext(ctx context.Context) error
	ClientCount() int
}

// WebSocketHubService runs the hub behind GET /api/v1/businesses/{id}/live,
// which pushes booking changes to the owner and staff dashboards of a
// business. Clients are closed on shutdown and reconnect after a restart.
type WebSocketHubService struct {
	hub  LiveFeedHub
	name string
}

// NewWebSocketHubService wraps hub.
func NewWebSocketHubService(hub LiveFeedHub) *WebSocketHubService {
	return &WebSocketHubService{
		hub:  hub,
		name: "websocket-hub",
	}
}

// Serve implements suture.Service.
func (w *WebSocketHubService) Serve(ctx context.Context) error {
	err := w.hub.RunWithContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		logging.Warn().Err(err).Int("dashboards", w.hub.ClientCount()).
			Msg("Live booking feed stopped, dashboards will reconnect")
	}
	return err
}

// String names the service in supervisor logs.
func (w *WebSocketHubService) String() string {
	return w.name
}
