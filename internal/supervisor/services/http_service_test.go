// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var _ suture.Service = (*HTTPServerService)(nil)

// stubServer blocks in ListenAndServe until Shutdown, unless listenErr is set.
type stubServer struct {
	listenErr   error
	shutdownErr error
	listening   chan struct{}
	stopCh      chan struct{}
	shutdowns   atomic.Int32
}

func newStubServer() *stubServer {
	return &stubServer{listening: make(chan struct{}, 1), stopCh: make(chan struct{})}
}

func (s *stubServer) ListenAndServe() error {
	s.listening <- struct{}{}
	if s.listenErr != nil {
		return s.listenErr
	}
	<-s.stopCh
	return http.ErrServerClosed
}

func (s *stubServer) Shutdown(context.Context) error {
	s.shutdowns.Add(1)
	close(s.stopCh)
	return s.shutdownErr
}

func TestNewHTTPServerService_DefaultTimeout(t *testing.T) {
	for _, timeout := range []time.Duration{0, -time.Second} {
		if svc := NewHTTPServerService(newStubServer(), timeout); svc.shutdownTimeout != 10*time.Second {
			t.Errorf("timeout %v: shutdownTimeout = %v, want 10s", timeout, svc.shutdownTimeout)
		}
	}
}

func TestHTTPServerService_Serve(t *testing.T) {
	t.Run("graceful shutdown", func(t *testing.T) {
		srv := newStubServer()
		svc := NewHTTPServerService(srv, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()

		<-srv.listening
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return")
		}
		if n := srv.shutdowns.Load(); n != 1 {
			t.Errorf("Shutdown called %d times, want 1", n)
		}
	})

	t.Run("listen failure", func(t *testing.T) {
		srv := newStubServer()
		srv.listenErr = errors.New("bind: address already in use")
		err := NewHTTPServerService(srv, time.Second).Serve(context.Background())
		if !errors.Is(err, srv.listenErr) {
			t.Errorf("Serve = %v, want %v", err, srv.listenErr)
		}
	})

	t.Run("shutdown failure", func(t *testing.T) {
		srv := newStubServer()
		srv.shutdownErr = errors.New("connections still open")
		svc := NewHTTPServerService(srv, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()
		<-srv.listening
		cancel()

		if err := <-errCh; !errors.Is(err, srv.shutdownErr) {
			t.Errorf("Serve = %v, want %v", err, srv.shutdownErr)
		}
	})
}

func TestHTTPServerService_RealServer(t *testing.T) {
	srv := &http.Server{
		Addr:              "127.0.0.1:0",
		Handler:           http.NotFoundHandler(),
		ReadHeaderTimeout: time.Second,
	}
	sup := suture.New("test-api", suture.Spec{FailureBackoff: 10 * time.Millisecond, Timeout: 2 * time.Second})
	sup.Add(NewHTTPServerService(srv, time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve = %v", err)
	}
}
