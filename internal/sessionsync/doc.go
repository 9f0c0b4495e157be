// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

// Package sessionsync propagates authentication state between stevedore
// instances so a token refreshed (or a session cleared) on one is picked up
// by the others.
//
// The primary path is a broadcast transport: every local state change is
// published as an Envelope and every received envelope is offered to the
// session manager, which applies it only when its change stamp is newer
// than the local one. Envelopes carry the origin instance ID so an instance
// ignores its own broadcasts; applied state is persisted but never
// re-broadcast, which keeps the exchange loop-free.
//
// Instances sharing one Badger store can additionally run a StoreWatcher,
// which rehydrates the manager when another process writes the session
// keys. That path needs no broker but only covers co-located instances.
package sessionsync
