// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/bookpro/internal/config"
	"github.com/tomtom215/bookpro/internal/logging"
)

// ErrStoreClosed is returned after Close.
var ErrStoreClosed = errors.New("revocation store is closed")

// RevocationStore remembers revoked token IDs until the tokens expire.
type RevocationStore interface {
	// Revoke marks jti revoked until the given time. Past times are a no-op.
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Close() error
}

// NewRevocationStore opens the store selected by cfg.Store ("badger" or
// "memory"). An empty badger path keeps the data in memory.
func NewRevocationStore(cfg config.SessionsConfig) (RevocationStore, error) {
	switch cfg.Store {
	case "", "badger":
		return OpenBadgerRevocationStore(cfg.Path)
	case "memory":
		return NewMemoryRevocationStore(), nil
	default:
		return nil, fmt.Errorf("unknown sessions store %q", cfg.Store)
	}
}

// MemoryRevocationStore keeps revocations in a map. Entries are lost on
// restart; use it for tests and single-process development.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	closed  bool
	now     func() time.Time
}

// NewMemoryRevocationStore creates an empty in-memory store.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{entries: make(map[string]time.Time), now: time.Now}
}

// Revoke implements RevocationStore.
func (s *MemoryRevocationStore) Revoke(_ context.Context, jti string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	now := s.now()
	if !until.After(now) {
		return nil
	}
	for id, exp := range s.entries {
		if !exp.After(now) {
			delete(s.entries, id)
		}
	}
	s.entries[jti] = until
	return nil
}

// IsRevoked implements RevocationStore.
func (s *MemoryRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrStoreClosed
	}
	until, ok := s.entries[jti]
	return ok && until.After(s.now()), nil
}

// Close implements RevocationStore.
func (s *MemoryRevocationStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = nil
	return nil
}

const revokedKeyPrefix = "revoked:"

// BadgerRevocationStore persists revocations in BadgerDB. Entries carry a TTL,
// so expired tokens are purged by Badger itself.
type BadgerRevocationStore struct {
	db     *badger.DB
	ownsDB bool
	mu     sync.RWMutex
	closed bool
}

// OpenBadgerRevocationStore opens (or creates) a Badger database at path.
// An empty path opens an in-memory database.
func OpenBadgerRevocationStore(path string) (*BadgerRevocationStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open revocation store: %w", err)
	}
	logging.Info().Str("path", path).Bool("in_memory", path == "").Msg("Token revocation store opened")
	return &BadgerRevocationStore{db: db, ownsDB: true}, nil
}

// NewBadgerRevocationStore uses an already open database. Close leaves it open.
func NewBadgerRevocationStore(db *badger.DB) *BadgerRevocationStore {
	return &BadgerRevocationStore{db: db}
}

// Revoke implements RevocationStore.
func (s *BadgerRevocationStore) Revoke(_ context.Context, jti string, until time.Time) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}

	entry := badger.NewEntry([]byte(revokedKeyPrefix+jti), []byte(until.UTC().Format(time.RFC3339))).WithTTL(ttl)
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	}); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked implements RevocationStore.
func (s *BadgerRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrStoreClosed
	}

	revoked := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(revokedKeyPrefix + jti))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		revoked = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return revoked, nil
}

// Close implements RevocationStore.
func (s *BadgerRevocationStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
