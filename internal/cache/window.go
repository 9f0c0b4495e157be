// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package cache

import (
	"sync"
	"time"
)

// WindowCounter counts events over a sliding time window. The window is
// split into buckets held in a circular buffer; Count sums the live buckets.
//
// Increment is O(1), Count is O(buckets), memory is O(buckets).
type WindowCounter struct {
	mu         sync.Mutex
	buckets    []int64
	bucketSize time.Duration
	windowSize time.Duration
	numBuckets int
	current    int
	lastUpdate time.Time
}

// NewWindowCounter creates a counter over windowSize split into numBuckets
// buckets. Non-positive arguments fall back to 15 minutes and 15 buckets.
func NewWindowCounter(windowSize time.Duration, numBuckets int) *WindowCounter {
	if numBuckets <= 0 {
		numBuckets = 15
	}
	if windowSize <= 0 {
		windowSize = 15 * time.Minute
	}

	return &WindowCounter{
		buckets:    make([]int64, numBuckets),
		bucketSize: windowSize / time.Duration(numBuckets),
		windowSize: windowSize,
		numBuckets: numBuckets,
		lastUpdate: time.Now(),
	}
}

// Increment adds delta to the current bucket.
func (w *WindowCounter) Increment(delta int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.advance()
	w.buckets[w.current] += delta
}

// Count returns the total across the live window.
func (w *WindowCounter) Count() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.advance()

	var total int64
	for _, count := range w.buckets {
		total += count
	}
	return total
}

// Reset clears all buckets.
func (w *WindowCounter) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.buckets {
		w.buckets[i] = 0
	}
	w.current = 0
	w.lastUpdate = time.Now()
}

// advance rotates the circular buffer past expired buckets.
// Requires w.mu held.
func (w *WindowCounter) advance() {
	now := time.Now()
	elapsed := now.Sub(w.lastUpdate)

	bucketsElapsed := int(elapsed / w.bucketSize)
	if bucketsElapsed <= 0 {
		return
	}

	if bucketsElapsed >= w.numBuckets {
		for i := range w.buckets {
			w.buckets[i] = 0
		}
		w.current = 0
	} else {
		for i := 0; i < bucketsElapsed; i++ {
			w.current = (w.current + 1) % w.numBuckets
			w.buckets[w.current] = 0
		}
	}

	w.lastUpdate = now
}

// WindowStore keys WindowCounters by string, for per-endpoint or
// per-error-type tracking.
type WindowStore struct {
	mu         sync.RWMutex
	counters   map[string]*WindowCounter
	windowSize time.Duration
	numBuckets int
	maxKeys    int // 0 = unlimited
}

// NewWindowStore creates a store of sliding-window counters.
func NewWindowStore(windowSize time.Duration, numBuckets, maxKeys int) *WindowStore {
	return &WindowStore{
		counters:   make(map[string]*WindowCounter),
		windowSize: windowSize,
		numBuckets: numBuckets,
		maxKeys:    maxKeys,
	}
}

// Increment adds 1 to the counter for key, creating it on first use.
func (s *WindowStore) Increment(key string) {
	s.IncrementBy(key, 1)
}

// IncrementBy adds delta to the counter for key.
func (s *WindowStore) IncrementBy(key string, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counter, exists := s.counters[key]
	if !exists {
		if s.maxKeys > 0 && len(s.counters) >= s.maxKeys {
			s.evictAny()
		}
		counter = NewWindowCounter(s.windowSize, s.numBuckets)
		s.counters[key] = counter
	}

	counter.Increment(delta)
}

// Count returns the live-window count for key, 0 if unknown.
func (s *WindowStore) Count(key string) int64 {
	s.mu.RLock()
	counter, exists := s.counters[key]
	s.mu.RUnlock()

	if !exists {
		return 0
	}
	return counter.Count()
}

// Counts snapshots all keys with a non-zero live count.
func (s *WindowStore) Counts() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64, len(s.counters))
	for key, counter := range s.counters {
		if n := counter.Count(); n > 0 {
			out[key] = n
		}
	}
	return out
}

// Keys returns all tracked keys.
func (s *WindowStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.counters))
	for key := range s.counters {
		keys = append(keys, key)
	}
	return keys
}

// Len returns the number of tracked keys.
func (s *WindowStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.counters)
}

// Clear drops all counters.
func (s *WindowStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = make(map[string]*WindowCounter)
}

// CleanupInactive drops counters whose window count has decayed to zero.
// Returns how many were removed.
func (s *WindowStore) CleanupInactive() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, counter := range s.counters {
		if counter.Count() == 0 {
			delete(s.counters, key)
			removed++
		}
	}
	return removed
}

// evictAny drops one arbitrary counter. Requires s.mu held.
func (s *WindowStore) evictAny() {
	for key := range s.counters {
		delete(s.counters, key)
		return
	}
}
