// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package auth

import (
	"github.com/freightmesh/stevedore/internal/logging"
)

// StoreBackend names a store factory backend.
const (
	StoreBackendBadger = "badger"
	StoreBackendMemory = "memory"
)

// NewStore builds the session store for the configured backend. The store
// hierarchy degrades rather than fails: when the persistent backend cannot
// be opened the session falls back to a memory store and survives only for
// the process lifetime.
func NewStore(backend, path string) Store {
	log := logging.WithComponent("token_store")

	switch backend {
	case StoreBackendBadger:
		store, err := NewBadgerStore(path)
		if err != nil {
			log.Warn().
				Err(err).
				Str("path", path).
				Msg("Persistent store unavailable, falling back to memory store")
			return NewMemoryStore()
		}
		log.Info().Str("path", path).Msg("Session store opened")
		return store
	case StoreBackendMemory, "":
		return NewMemoryStore()
	default:
		log.Warn().Str("backend", backend).Msg("Unknown store backend, using memory store")
		return NewMemoryStore()
	}
}
