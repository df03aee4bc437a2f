// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/bookpro/internal/config"
	"github.com/tomtom215/bookpro/internal/database"
	"github.com/tomtom215/bookpro/internal/models"
)

const testSecret = "test-secret-that-is-at-least-32-characters"

type memoryUsers struct {
	mu   sync.Mutex
	byID map[string]*models.User
	fail error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: make(map[string]*models.User)}
}

func (m *memoryUsers) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return fmt.Errorf("user: %w", database.ErrDuplicate)
		}
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memoryUsers) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, database.ErrNotFound
}

func (m *memoryUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	for _, u := range m.byID {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *memoryUsers) UpdateUserPassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return database.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func newTestJWT(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(&config.SecurityConfig{JWTSecret: testSecret, SessionTimeout: time.Hour})
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	return m
}

func newTestService(t *testing.T, loginPerMinute int) (*Service, *memoryUsers) {
	t.Helper()
	users := newMemoryUsers()
	svc, err := NewService(users, newTestJWT(t), NewMemoryRevocationStore(), Config{
		BcryptCost:     bcrypt.MinCost,
		LoginPerMinute: loginPerMinute,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, users
}

func TestJWTManager(t *testing.T) {
	m := newTestJWT(t)
	user := &models.User{ID: "u1", Email: "ada@example.test", Role: models.RoleOwner}

	token, issued, err := m.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID() != "u1" || claims.Role != models.RoleOwner || claims.ID != issued.ID || claims.ID == "" {
		t.Errorf("claims = %+v", claims)
	}
	if got := claims.Actor(); got.UserID != "u1" || got.Role != models.RoleOwner {
		t.Errorf("Actor = %+v", got)
	}

	_, second, _ := m.GenerateToken(user)
	if second.ID == issued.ID {
		t.Error("every token needs its own jti")
	}

	t.Run("expired", func(t *testing.T) {
		m := newTestJWT(t)
		m.SetClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
		old, _, err := m.GenerateToken(user)
		if err != nil {
			t.Fatal(err)
		}
		m.SetClock(time.Now)
		if _, err := m.ValidateToken(old); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ValidateToken(expired) = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, _ := NewJWTManager(&config.SecurityConfig{JWTSecret: strings.Repeat("x", 40)})
		if _, err := other.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ValidateToken = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("none algorithm", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, issued).SignedString(jwt.UnsafeAllowNoneSignatureType)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := m.ValidateToken(unsigned); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ValidateToken(none) = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("missing jti", func(t *testing.T) {
		c := *issued
		c.ID = ""
		raw, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &c).SignedString([]byte(testSecret))
		if _, err := m.ValidateToken(raw); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ValidateToken = %v, want ErrInvalidToken", err)
		}
	})

	if _, err := NewJWTManager(&config.SecurityConfig{}); err == nil {
		t.Error("empty secret should be rejected")
	}
}

func TestRevocationStores(t *testing.T) {
	badgerStore, err := OpenBadgerRevocationStore("")
	if err != nil {
		t.Fatalf("OpenBadgerRevocationStore: %v", err)
	}
	stores := map[string]RevocationStore{
		"memory": NewMemoryRevocationStore(),
		"badger": badgerStore,
	}
	ctx := context.Background()

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			if err := store.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
				t.Fatalf("Revoke: %v", err)
			}
			if err := store.Revoke(ctx, "jti-old", time.Now().Add(-time.Minute)); err != nil {
				t.Fatalf("Revoke(past): %v", err)
			}

			for jti, want := range map[string]bool{"jti-1": true, "jti-old": false, "jti-2": false} {
				got, err := store.IsRevoked(ctx, jti)
				if err != nil {
					t.Fatalf("IsRevoked(%s): %v", jti, err)
				}
				if got != want {
					t.Errorf("IsRevoked(%s) = %v, want %v", jti, got, want)
				}
			}

			if err := store.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if _, err := store.IsRevoked(ctx, "jti-1"); !errors.Is(err, ErrStoreClosed) {
				t.Errorf("IsRevoked after Close = %v, want ErrStoreClosed", err)
			}
		})
	}
}

func TestMemoryRevocationStore_Expiry(t *testing.T) {
	store := NewMemoryRevocationStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_ = store.Revoke(ctx, "a", now.Add(time.Minute))
	now = now.Add(2 * time.Minute)
	if revoked, _ := store.IsRevoked(ctx, "a"); revoked {
		t.Error("revocation should lapse with the token")
	}
	_ = store.Revoke(ctx, "b", now.Add(time.Minute))
	if _, ok := store.entries["a"]; ok {
		t.Error("expired entries should be swept on write")
	}
}

func TestNewRevocationStore(t *testing.T) {
	for _, tt := range []struct {
		store   string
		wantErr bool
	}{
		{"memory", false},
		{"badger", false},
		{"redis", true},
	} {
		s, err := NewRevocationStore(config.SessionsConfig{Store: tt.store})
		if (err != nil) != tt.wantErr {
			t.Errorf("NewRevocationStore(%s) err = %v", tt.store, err)
		}
		if s != nil {
			_ = s.Close()
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("attempt %d rejected", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("fourth attempt should be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("other IPs have their own bucket")
	}

	now = now.Add(20 * time.Second)
	if !rl.Allow("10.0.0.1") {
		t.Error("a token should refill after window/burst")
	}

	now = now.Add(2 * time.Hour)
	rl.Allow("10.0.0.3")
	if _, ok := rl.limiters["10.0.0.2"]; ok {
		t.Error("idle buckets should be swept")
	}
}

func TestClientIP(t *testing.T) {
	trusted := ProxySet([]string{"10.0.0.1", " "})
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct", "203.0.113.9:5000", "", "", "203.0.113.9"},
		{"untrusted proxy header ignored", "203.0.113.9:5000", "198.51.100.1", "", "203.0.113.9"},
		{"trusted proxy xff", "10.0.0.1:443", "198.51.100.1, 10.0.0.1", "", "198.51.100.1"},
		{"trusted proxy x-real-ip", "10.0.0.1:443", "", "198.51.100.2", "198.51.100.2"},
		{"trusted proxy garbage", "10.0.0.1:443", "not-an-ip", "", "10.0.0.1"},
		{"ipv6", "[2001:db8::1]:443", "", "", "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := ClientIP(r, trusted); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
