// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package recovery

import (
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/freightmesh/stevedore/internal/cache"
	"github.com/freightmesh/stevedore/internal/logging"
	"github.com/freightmesh/stevedore/internal/metrics"
)

// Fallback sources in lookup priority order.
const (
	SourceCached     = "cached"
	SourceMock       = "mock"
	SourceEmptyState = "empty_state"
	SourceDefault    = "default"
)

// defaultPayload is the last rung of the chain: a bare object every consumer
// can render as "nothing here".
var defaultPayload = json.RawMessage(`{}`)

// FallbackProvider holds the degradation data for read endpoints. Cached
// entries age out with the LRU's TTL; mocks and empty states are static
// registrations made at wiring time.
type FallbackProvider struct {
	cache *cache.LRU[json.RawMessage]
	log   zerolog.Logger

	mu      sync.RWMutex
	mocks   map[string]json.RawMessage
	empties map[string]json.RawMessage
}

// NewFallbackProvider sizes the response cache. Non-positive arguments fall
// back to the cache package defaults.
func NewFallbackProvider(capacity int, ttl time.Duration) *FallbackProvider {
	return &FallbackProvider{
		cache:   cache.NewLRU[json.RawMessage](capacity, ttl),
		log:     logging.WithComponent("fallback"),
		mocks:   make(map[string]json.RawMessage),
		empties: make(map[string]json.RawMessage),
	}
}

func fallbackKey(method, endpoint string) string {
	return method + " " + endpoint
}

// CacheResponse stores a good response payload for later degradation.
func (p *FallbackProvider) CacheResponse(method, endpoint string, payload json.RawMessage) {
	if len(payload) == 0 {
		return
	}
	p.cache.Add(fallbackKey(method, endpoint), payload)
}

// RegisterMock installs demo data for an endpoint, served when no cached
// response exists.
func (p *FallbackProvider) RegisterMock(method, endpoint string, payload json.RawMessage) {
	p.mu.Lock()
	p.mocks[fallbackKey(method, endpoint)] = payload
	p.mu.Unlock()
}

// RegisterEmptyState installs the shape-correct empty payload for an
// endpoint, typically an empty list envelope.
func (p *FallbackProvider) RegisterEmptyState(method, endpoint string, payload json.RawMessage) {
	p.mu.Lock()
	p.empties[fallbackKey(method, endpoint)] = payload
	p.mu.Unlock()
}

// Lookup walks the chain and always returns something servable together
// with the source it came from.
func (p *FallbackProvider) Lookup(method, endpoint string) (json.RawMessage, string) {
	key := fallbackKey(method, endpoint)

	if payload, ok := p.cache.Get(key); ok {
		p.serve(key, SourceCached)
		return payload, SourceCached
	}

	p.mu.RLock()
	mock, hasMock := p.mocks[key]
	empty, hasEmpty := p.empties[key]
	p.mu.RUnlock()

	if hasMock {
		p.serve(key, SourceMock)
		return mock, SourceMock
	}
	if hasEmpty {
		p.serve(key, SourceEmptyState)
		return empty, SourceEmptyState
	}

	p.serve(key, SourceDefault)
	return defaultPayload, SourceDefault
}

// CacheStats exposes hit counters for the ops surface.
func (p *FallbackProvider) CacheStats() (hits, misses int64, size int) {
	return p.cache.Stats()
}

func (p *FallbackProvider) serve(key, source string) {
	metrics.FallbacksServed.WithLabelValues(source).Inc()
	p.log.Debug().Str("key", key).Str("source", source).Msg("Serving fallback data")
}
