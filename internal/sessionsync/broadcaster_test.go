// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package sessionsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/freightmesh/stevedore/internal/auth"
)

func newSyncedManager(t *testing.T) *auth.Manager {
	t.Helper()
	mgr := auth.NewManager(auth.NewMemoryStore(), nil, nil, auth.DefaultManagerConfig())
	t.Cleanup(mgr.Close)
	return mgr
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// startBroadcaster runs the loop and gives the in-process subscription a
// moment to register before the test publishes anything.
func startBroadcaster(ctx context.Context, b *Broadcaster) {
	go func() { _ = b.Run(ctx) }()
}

func TestBroadcastConvergence(t *testing.T) {
	t.Parallel()

	transport := NewGoChannelTransport("")
	t.Cleanup(func() { _ = transport.Close() })

	mgrA := newSyncedManager(t)
	mgrB := newSyncedManager(t)
	ctx := t.Context()

	startBroadcaster(ctx, NewBroadcaster(mgrA, transport))
	startBroadcaster(ctx, NewBroadcaster(mgrB, transport))
	time.Sleep(100 * time.Millisecond)

	// A logs in; B picks it up.
	mgrA.SetTokens(ctx, "shared-token", "shared-refresh", time.Hour)
	waitFor(t, 3*time.Second, "token to reach the peer", func() bool {
		return mgrB.State().AccessToken == "shared-token"
	})
	if got := mgrB.State().RefreshToken; got != "shared-refresh" {
		t.Errorf("peer refresh token = %q", got)
	}

	// B logs out; A follows.
	mgrB.ClearTokens(ctx)
	waitFor(t, 3*time.Second, "logout to reach the peer", func() bool {
		return mgrA.State().IsEmpty()
	})
}

func TestOwnBroadcastNotReapplied(t *testing.T) {
	t.Parallel()

	transport := NewGoChannelTransport("")
	t.Cleanup(func() { _ = transport.Close() })

	mgr := newSyncedManager(t)
	ctx := t.Context()

	var mu sync.Mutex
	var changes int
	mgr.OnChange(func(auth.TokenState, time.Time) {
		mu.Lock()
		changes++
		mu.Unlock()
	})

	startBroadcaster(ctx, NewBroadcaster(mgr, transport))
	time.Sleep(100 * time.Millisecond)

	mgr.SetTokens(ctx, "solo", "r1", time.Hour)
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if changes != 1 {
		t.Errorf("observed %d changes, the echo of our own broadcast must not reapply", changes)
	}
}

func TestStaleEnvelopeDropped(t *testing.T) {
	t.Parallel()

	transport := NewGoChannelTransport("")
	t.Cleanup(func() { _ = transport.Close() })

	mgr := newSyncedManager(t)
	ctx := t.Context()

	startBroadcaster(ctx, NewBroadcaster(mgr, transport))
	time.Sleep(100 * time.Millisecond)

	mgr.SetTokens(ctx, "local", "r-local", time.Hour)

	stale := time.Now().Add(-time.Minute)
	publishEnvelope(t, ctx, transport, Envelope{
		Origin:    "peer-x",
		State:     auth.TokenState{AccessToken: "outdated", LastRefresh: &stale},
		ChangedAt: stale,
	})

	time.Sleep(200 * time.Millisecond)
	if got := mgr.State().AccessToken; got != "local" {
		t.Errorf("AccessToken = %q, a stale envelope must not win", got)
	}
}

func TestNewerEnvelopeApplied(t *testing.T) {
	t.Parallel()

	transport := NewGoChannelTransport("")
	t.Cleanup(func() { _ = transport.Close() })

	mgr := newSyncedManager(t)
	ctx := t.Context()

	startBroadcaster(ctx, NewBroadcaster(mgr, transport))
	time.Sleep(100 * time.Millisecond)

	mgr.SetTokens(ctx, "local", "r-local", time.Hour)

	newer := time.Now().Add(time.Minute)
	publishEnvelope(t, ctx, transport, Envelope{
		Origin:    "peer-x",
		State:     auth.TokenState{AccessToken: "remote", RefreshToken: "r-remote", LastRefresh: &newer},
		ChangedAt: newer,
	})

	waitFor(t, 3*time.Second, "newer envelope to apply", func() bool {
		return mgr.State().AccessToken == "remote"
	})
}

func TestMalformedEnvelopeDoesNotStallLoop(t *testing.T) {
	t.Parallel()

	transport := NewGoChannelTransport("")
	t.Cleanup(func() { _ = transport.Close() })

	mgr := newSyncedManager(t)
	ctx := t.Context()

	startBroadcaster(ctx, NewBroadcaster(mgr, transport))
	time.Sleep(100 * time.Millisecond)

	if err := transport.Publish(ctx, message.NewMessage(watermill.NewUUID(), []byte("{broken"))); err != nil {
		t.Fatalf("publish garbage: %v", err)
	}

	// A valid envelope after the garbage still lands.
	newer := time.Now().Add(time.Minute)
	publishEnvelope(t, ctx, transport, Envelope{
		Origin:    "peer-x",
		State:     auth.TokenState{AccessToken: "survivor", LastRefresh: &newer},
		ChangedAt: newer,
	})

	waitFor(t, 3*time.Second, "envelope after garbage to apply", func() bool {
		return mgr.State().AccessToken == "survivor"
	})
}

func publishEnvelope(t *testing.T, ctx context.Context, transport Transport, env Envelope) {
	t.Helper()
	data, err := encodeEnvelope(env)
	if err != nil {
		t.Fatalf("encode envelope: %v", err)
	}
	if err := transport.Publish(ctx, message.NewMessage(watermill.NewUUID(), data)); err != nil {
		t.Fatalf("publish envelope: %v", err)
	}
}
