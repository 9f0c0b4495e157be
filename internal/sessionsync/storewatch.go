// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package sessionsync

import (
	"context"
	"errors"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/pb"
	"github.com/rs/zerolog"

	"github.com/freightmesh/stevedore/internal/auth"
	"github.com/freightmesh/stevedore/internal/logging"
	"github.com/freightmesh/stevedore/internal/metrics"
)

// storeWatchDebounce collapses write bursts (a refresh touches four keys)
// into one rehydration.
const storeWatchDebounce = 250 * time.Millisecond

// StoreWatcher rehydrates the session manager when the shared Badger store
// changes underneath it. This covers instances on the same host without a
// broker: writes by this process trigger a redundant but harmless
// rehydration, since hydrating never re-broadcasts.
type StoreWatcher struct {
	mgr      *auth.Manager
	db       *badger.DB
	log      zerolog.Logger
	debounce time.Duration
}

// NewStoreWatcher watches the session keys of the given Badger-backed store.
func NewStoreWatcher(mgr *auth.Manager, store *auth.BadgerStore) *StoreWatcher {
	return &StoreWatcher{
		mgr:      mgr,
		db:       store.DB(),
		log:      logging.WithComponent("store_watcher"),
		debounce: storeWatchDebounce,
	}
}

// Run blocks on the store subscription until the context ends.
func (w *StoreWatcher) Run(ctx context.Context) error {
	kicks := make(chan struct{}, 1)
	go w.rehydrateLoop(ctx, kicks)

	w.log.Info().Msg("Watching session store for external changes")
	err := w.db.Subscribe(ctx, func(_ *badger.KVList) error {
		select {
		case kicks <- struct{}{}:
		default:
		}
		return nil
	}, []pb.Match{{Prefix: []byte("auth_")}})

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}

func (w *StoreWatcher) rehydrateLoop(ctx context.Context, kicks <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-kicks:
		}

		timer := time.NewTimer(w.debounce)
	settle:
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-kicks:
				// Still writing, keep collapsing.
			case <-timer.C:
				break settle
			}
		}

		metrics.SyncRehydrations.Inc()
		if err := w.mgr.Hydrate(ctx); err != nil {
			w.log.Warn().Err(err).Msg("Rehydration after store change failed")
		}
	}
}
