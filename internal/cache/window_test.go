// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package cache

import (
	"testing"
	"time"
)

func TestWindowCounterCounts(t *testing.T) {
	t.Parallel()

	w := NewWindowCounter(time.Minute, 6)
	w.Increment(1)
	w.Increment(1)
	w.Increment(3)

	if got := w.Count(); got != 5 {
		t.Errorf("Count = %d, want 5", got)
	}
}

func TestWindowCounterExpiresOldBuckets(t *testing.T) {
	t.Parallel()

	w := NewWindowCounter(50*time.Millisecond, 5)
	w.Increment(10)

	if got := w.Count(); got != 10 {
		t.Fatalf("Count = %d, want 10", got)
	}

	time.Sleep(70 * time.Millisecond)

	if got := w.Count(); got != 0 {
		t.Errorf("Count after window elapsed = %d, want 0", got)
	}
}

func TestWindowCounterPartialExpiry(t *testing.T) {
	t.Parallel()

	// 100ms window, 20ms buckets. Counts from the first bucket should
	// drop out while later counts remain.
	w := NewWindowCounter(100*time.Millisecond, 5)
	w.Increment(5)

	time.Sleep(60 * time.Millisecond)
	w.Increment(2)

	time.Sleep(60 * time.Millisecond)

	got := w.Count()
	if got != 2 {
		t.Errorf("Count = %d, want 2 (early bucket expired)", got)
	}
}

func TestWindowCounterReset(t *testing.T) {
	t.Parallel()

	w := NewWindowCounter(time.Minute, 6)
	w.Increment(7)
	w.Reset()

	if got := w.Count(); got != 0 {
		t.Errorf("Count after Reset = %d, want 0", got)
	}
}

func TestWindowStorePerKey(t *testing.T) {
	t.Parallel()

	s := NewWindowStore(time.Minute, 6, 0)
	s.Increment("endpoint:/api/v1/bookings")
	s.Increment("endpoint:/api/v1/bookings")
	s.Increment("endpoint:/api/v1/disputes")

	if got := s.Count("endpoint:/api/v1/bookings"); got != 2 {
		t.Errorf("bookings count = %d, want 2", got)
	}
	if got := s.Count("endpoint:/api/v1/disputes"); got != 1 {
		t.Errorf("disputes count = %d, want 1", got)
	}
	if got := s.Count("endpoint:/api/v1/unknown"); got != 0 {
		t.Errorf("unknown count = %d, want 0", got)
	}
}

func TestWindowStoreCountsSnapshot(t *testing.T) {
	t.Parallel()

	s := NewWindowStore(time.Minute, 6, 0)
	s.IncrementBy("type:network", 3)
	s.IncrementBy("type:auth", 1)

	counts := s.Counts()
	if len(counts) != 2 {
		t.Fatalf("len(Counts) = %d, want 2", len(counts))
	}
	if counts["type:network"] != 3 {
		t.Errorf("network = %d, want 3", counts["type:network"])
	}
}

func TestWindowStoreMaxKeys(t *testing.T) {
	t.Parallel()

	s := NewWindowStore(time.Minute, 6, 2)
	s.Increment("a")
	s.Increment("b")
	s.Increment("c")

	if got := s.Len(); got != 2 {
		t.Errorf("Len = %d, want 2 (one key evicted)", got)
	}
}

func TestWindowStoreCleanupInactive(t *testing.T) {
	t.Parallel()

	s := NewWindowStore(40*time.Millisecond, 4, 0)
	s.Increment("stale")

	time.Sleep(60 * time.Millisecond)
	s.Increment("fresh")

	if removed := s.CleanupInactive(); removed != 1 {
		t.Errorf("CleanupInactive = %d, want 1", removed)
	}
	if got := s.Count("fresh"); got != 1 {
		t.Errorf("fresh count = %d, want 1", got)
	}
}
