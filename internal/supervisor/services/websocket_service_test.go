// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/bookpro/internal/websocket"
)

var _ suture.Service = (*WebSocketHubService)(nil)

func TestWebSocketHubService_StopsWithContext(t *testing.T) {
	svc := NewWebSocketHubService(websocket.NewHub())
	if svc.String() != "websocket-hub" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
}

type failingHub struct {
	err     error
	clients int
}

func (f failingHub) RunWithContext(context.Context) error { return f.err }
func (f failingHub) ClientCount() int                     { return f.clients }

func TestWebSocketHubService_PropagatesHubError(t *testing.T) {
	want := errors.New("hub crashed")
	if err := NewWebSocketHubService(failingHub{err: want, clients: 3}).Serve(context.Background()); !errors.Is(err, want) {
		t.Errorf("Serve = %v, want %v", err, want)
	}
}
