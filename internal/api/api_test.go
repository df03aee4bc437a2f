// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/bookpro/internal/audit"
	"github.com/tomtom215/bookpro/internal/auth"
	"github.com/tomtom215/bookpro/internal/authz"
	"github.com/tomtom215/bookpro/internal/availability"
	"github.com/tomtom215/bookpro/internal/billing"
	"github.com/tomtom215/bookpro/internal/booking"
	"github.com/tomtom215/bookpro/internal/catalog"
	"github.com/tomtom215/bookpro/internal/config"
	"github.com/tomtom215/bookpro/internal/database"
)

// testDBSemaphore serializes DuckDB usage across tests.
var testDBSemaphore = make(chan struct{}, 1)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	type result struct {
		db  *database.DB
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "512MB", Threads: 1})
		resultCh <- result{db: db, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("Failed to create test database: %v", res.err)
		}
		t.Cleanup(func() {
			if err := res.db.Close(); err != nil {
				t.Errorf("Close: %v", err)
			}
		})
		return res.db
	case <-time.After(120 * time.Second):
		t.Fatalf("Timeout: database creation took longer than 120s")
		return nil
	}
}

// testServer runs the full router over real services and an in-memory
// database. Billing has no gateway, so it behaves as disabled.
type testServer struct {
	t       *testing.T
	db      *database.DB
	handler *Handler
	http    http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := setupTestDB(t)

	cfg := &config.Config{
		Server: config.ServerConfig{Environment: "test"},
		Security: config.SecurityConfig{
			JWTSecret:      "test-secret-with-at-least-32-characters!",
			SessionTimeout: time.Hour,
			CORSOrigins:    []string{"http://localhost:3000"},
		},
	}

	tokens, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	authSvc, err := auth.NewService(db, tokens, auth.NewMemoryRevocationStore(), auth.Config{BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("auth.NewService: %v", err)
	}
	enforcer, err := authz.NewEnforcer(authz.EnforcerConfig{})
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}

	slots := availability.NewService(db, availability.Config{
		SlotStep:     30 * time.Minute,
		MinNotice:    time.Hour,
		MaxAdvance:   90 * 24 * time.Hour,
		MaxRangeDays: 31,
		CacheTTL:     time.Minute,
	})
	t.Cleanup(slots.Close)

	billingSvc := billing.NewService(db, nil, nil, billing.Config{PublicURL: "http://localhost:3000"})
	bookings := booking.NewService(db, slots, billingSvc, nil, nil, booking.Config{PaymentHold: 15 * time.Minute})
	billingSvc.SetBookings(bookings)

	recorder := audit.NewRecorder(db, config.AuditConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = recorder.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	cat := catalog.NewService(db, billingSvc, slots, recorder, catalog.Config{DefaultTimezone: "UTC", DefaultCurrency: "EUR"})

	h := NewHandler(Dependencies{
		Config:       cfg,
		DB:           db,
		Auth:         authSvc,
		Authorizer:   authz.NewAuthorizer(enforcer, db),
		Catalog:      cat,
		Availability: slots,
		Bookings:     bookings,
		Billing:      billingSvc,
		Audit:        recorder,
	})
	mwCfg := DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mwCfg.RateLimitDisabled = true
	chiMW := NewChiMiddleware(mwCfg)

	return &testServer{t: t, db: db, handler: h, http: NewRouter(h, chiMW).SetupChi()}
}

// envelope mirrors APIResponse with the payload left raw.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func (s *testServer) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			s.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.http.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			s.t.Fatalf("%s %s: decode envelope: %v (body %q)", method, path, err, rec.Body.String())
		}
	}
	return rec, env
}

// expect fails the test unless the response has the wanted status.
func (s *testServer) expect(method, path, token string, body interface{}, want int) envelope {
	s.t.Helper()
	rec, env := s.do(method, path, token, body)
	if rec.Code != want {
		s.t.Fatalf("%s %s: status = %d, want %d (body %s)", method, path, rec.Code, want, rec.Body.String())
	}
	return env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data: %v (data %s)", err, env.Data)
	}
}

// register signs up an account and returns its token and user ID.
func (s *testServer) register(email, role string) (token, userID string) {
	s.t.Helper()
	env := s.expect(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    email,
		"name":     "Test User",
		"password": "Sup3rSecret!",
		"role":     role,
	}, http.StatusCreated)

	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decodeData(s.t, env, &resp)
	if resp.Token == "" || resp.User.ID == "" {
		s.t.Fatalf("register %s: missing token or user in %s", email, env.Data)
	}
	return resp.Token, resp.User.ID
}

// createBusiness creates a business as the owner behind token.
func (s *testServer) createBusiness(token, name, slug string) string {
	s.t.Helper()
	env := s.expect(http.MethodPost, "/api/v1/businesses", token, map[string]interface{}{
		"name":     name,
		"slug":     slug,
		"timezone": "UTC",
		"currency": "EUR",
	}, http.StatusCreated)
	var biz struct {
		ID string `json:"id"`
	}
	decodeData(s.t, env, &biz)
	return biz.ID
}

// nextMonday returns a Monday at least three days after now, at midnight UTC.
func nextMonday(now time.Time) time.Time {
	d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 3)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
