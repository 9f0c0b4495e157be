// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package auth

import (
	"context"
	"sync"

	"github.com/freightmesh/stevedore/internal/metrics"
)

// Canonical storage keys for the persisted session. The legacy keys mirror
// the access token for call sites that predate the auth_ prefix.
const (
	KeyAccessToken  = "auth_token"
	KeyRefreshToken = "auth_refresh_token"
	KeyUser         = "auth_user"
	KeyExpiresAt    = "auth_expires_at"

	KeyLegacyToken      = "token"
	KeyLegacyAdminToken = "adminToken"

	// SessionKeyPrefix namespaces the non-persistent degraded-mode keys
	// written by StateRecovery when the primary store is unusable.
	SessionKeyPrefix = "session_auth_"

	KeySessionUser     = SessionKeyPrefix + "user"
	KeySessionToken    = SessionKeyPrefix + "token"
	KeySessionDegraded = SessionKeyPrefix + "degraded"
)

// CanonicalKeys lists every key the Manager writes, in persist order.
var CanonicalKeys = []string{
	KeyAccessToken,
	KeyLegacyToken,
	KeyLegacyAdminToken,
	KeyRefreshToken,
	KeyUser,
	KeyExpiresAt,
}

// Store persists session values by key. Get returns ErrKeyNotFound for an
// absent key; Delete of an absent key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error

	// Name identifies the backend ("badger" or "memory") for logs and
	// metrics.
	Name() string

	Close() error
}

// MemoryStore is the in-memory Store. It backs tests, the factory's
// degraded fallback, and the session-only recovery mode.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]string),
	}
}

// Get retrieves a value by key.
func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		metrics.RecordStoreOperation(s.Name(), "get", ErrKeyNotFound)
		return "", ErrKeyNotFound
	}
	metrics.RecordStoreOperation(s.Name(), "get", nil)
	return value, nil
}

// Set stores a value under key, replacing any previous value.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	metrics.RecordStoreOperation(s.Name(), "set", nil)
	return nil
}

// Delete removes a key. Deleting an absent key succeeds.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	metrics.RecordStoreOperation(s.Name(), "delete", nil)
	return nil
}

// Name identifies the backend.
func (s *MemoryStore) Name() string {
	return "memory"
}

// Close releases nothing for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
