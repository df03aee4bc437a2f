// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package services

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"
)

// EventRouter is satisfied by *events.Router.
type EventRouter interface {
	Run(ctx context.Context) error
	Close() error
}

// EventRouterService runs the watermill router that feeds the notifier,
// the audit consumer and the live feed broadcaster.
//
// A watermill router cannot be started twice, so an unexpected stop is
// reported with suture.ErrDoNotRestart and the readiness check goes red
// instead of the supervisor spinning on a dead router.
type EventRouterService struct {
	router EventRouter
	name   string
}

// NewEventRouterService wraps router.
func NewEventRouterService(router EventRouter) *EventRouterService {
	return &EventRouterService{
		router: router,
		name:   "event-router",
	}
}

// Serve implements suture.Service.
func (s *EventRouterService) Serve(ctx context.Context) error {
	err := s.router.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	_ = s.router.Close()
	if err != nil {
		return fmt.Errorf("%w: event router stopped: %v", suture.ErrDoNotRestart, err)
	}
	return fmt.Errorf("%w: event router stopped", suture.ErrDoNotRestart)
}

// String names the service in supervisor logs.
func (s *EventRouterService) String() string {
	return s.name
}
