// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/thejerf/suture/v4"
)

var _ suture.Service = (*EventRouterService)(nil)

type fakeRouter struct {
	runErr error
	stop   bool
	closed bool
}

func (f *fakeRouter) Run(ctx context.Context) error {
	if f.stop {
		return f.runErr
	}
	<-ctx.Done()
	return nil
}

func (f *fakeRouter) Close() error {
	f.closed = true
	return nil
}

func TestEventRouterService(t *testing.T) {
	t.Run("context cancellation", func(t *testing.T) {
		r := &fakeRouter{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := NewEventRouterService(r).Serve(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v, want context.Canceled", err)
		}
		if r.closed {
			t.Error("router closed on normal shutdown")
		}
	})

	t.Run("unexpected stop is not restarted", func(t *testing.T) {
		for _, runErr := range []error{nil, errors.New("subscribe: nats: connection closed")} {
			r := &fakeRouter{stop: true, runErr: runErr}
			err := NewEventRouterService(r).Serve(context.Background())
			if !errors.Is(err, suture.ErrDoNotRestart) {
				t.Errorf("runErr %v: Serve = %v, want ErrDoNotRestart", runErr, err)
			}
			if !r.closed {
				t.Errorf("runErr %v: router not closed", runErr)
			}
		}
	})
}
