// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package sessionsync

import (
	"testing"
	"time"

	"github.com/freightmesh/stevedore/internal/auth"
)

func TestStoreWatcherRehydratesOnExternalWrite(t *testing.T) {
	t.Parallel()

	// Two managers over one Badger DB stand in for two processes sharing
	// a session store.
	primary, err := auth.NewBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = primary.Close() })
	secondary := auth.NewBadgerStoreWithDB(primary.DB())

	writer := auth.NewManager(primary, nil, nil, auth.DefaultManagerConfig())
	t.Cleanup(writer.Close)
	reader := auth.NewManager(secondary, nil, nil, auth.DefaultManagerConfig())
	t.Cleanup(reader.Close)

	ctx := t.Context()
	watcher := NewStoreWatcher(reader, secondary)
	go func() { _ = watcher.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	writer.SetTokens(ctx, "written-elsewhere", "rt", time.Hour)

	waitFor(t, 5*time.Second, "watcher to rehydrate the reader", func() bool {
		return reader.State().AccessToken == "written-elsewhere"
	})
	if got := reader.State().RefreshToken; got != "rt" {
		t.Errorf("reader refresh token = %q", got)
	}
}

func TestStoreWatcherPicksUpLogout(t *testing.T) {
	t.Parallel()

	primary, err := auth.NewBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = primary.Close() })
	secondary := auth.NewBadgerStoreWithDB(primary.DB())

	writer := auth.NewManager(primary, nil, nil, auth.DefaultManagerConfig())
	t.Cleanup(writer.Close)
	reader := auth.NewManager(secondary, nil, nil, auth.DefaultManagerConfig())
	t.Cleanup(reader.Close)

	ctx := t.Context()
	writer.SetTokens(ctx, "soon-gone", "rt", time.Hour)
	if err := reader.Hydrate(ctx); err != nil {
		t.Fatalf("seed reader: %v", err)
	}
	if reader.State().AccessToken != "soon-gone" {
		t.Fatal("reader should start with the written session")
	}

	watcher := NewStoreWatcher(reader, secondary)
	go func() { _ = watcher.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	writer.ClearTokens(ctx)

	waitFor(t, 5*time.Second, "watcher to pick up the logout", func() bool {
		return reader.State().IsEmpty()
	})
}
