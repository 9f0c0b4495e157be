// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

//go:build !nats

package main

import (
	"context"

	"github.com/freightmesh/stevedore/internal/config"
	"github.com/freightmesh/stevedore/internal/logging"
	"github.com/freightmesh/stevedore/internal/sessionsync"
)

// initSyncTransport builds the session sync transport for non-NATS builds.
// SYNC_TRANSPORT=nats logs a warning and falls back to the in-process
// transport; build with -tags nats for cross-process sync.
func initSyncTransport(cfg *config.Config) (sessionsync.Transport, func(context.Context), error) {
	if cfg.Sync.Transport == "nats" {
		logging.Warn().Msg("SYNC_TRANSPORT=nats but NATS support not compiled (build with -tags nats), using gochannel")
	}

	transport := sessionsync.NewGoChannelTransport(cfg.Sync.Topic)
	cleanup := func(context.Context) {
		if err := transport.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing sync transport")
		}
	}
	return transport, cleanup, nil
}
