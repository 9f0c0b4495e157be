// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

//go:build nats

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/freightmesh/stevedore/internal/config"
	"github.com/freightmesh/stevedore/internal/logging"
	"github.com/freightmesh/stevedore/internal/sessionsync"
)

// initSyncTransport builds the session sync transport. With
// SYNC_TRANSPORT=nats it connects to the configured broker, optionally
// hosting an embedded one first; any other value uses the in-process
// transport. The returned cleanup closes the transport and, if one was
// started, shuts the embedded broker down after it.
func initSyncTransport(cfg *config.Config) (sessionsync.Transport, func(context.Context), error) {
	if cfg.Sync.Transport != "nats" {
		transport := sessionsync.NewGoChannelTransport(cfg.Sync.Topic)
		cleanup := func(context.Context) {
			if err := transport.Close(); err != nil {
				logging.Warn().Err(err).Msg("Error closing sync transport")
			}
		}
		return transport, cleanup, nil
	}

	natsURL := cfg.Sync.NATSURL

	var embedded *sessionsync.EmbeddedServer
	if cfg.Sync.EmbeddedServer {
		embeddedCfg, err := sessionsync.EmbeddedConfigFromURL(cfg.Sync.NATSURL, cfg.Sync.StoreDir)
		if err != nil {
			return nil, nil, fmt.Errorf("embedded NATS config: %w", err)
		}
		embedded, err = sessionsync.NewEmbeddedServer(embeddedCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded NATS server: %w", err)
		}
		natsURL = embedded.ClientURL()
		logging.Info().
			Str("client_url", natsURL).
			Str("store_dir", cfg.Sync.StoreDir).
			Msg("Embedded NATS server started")
	}

	transport, err := sessionsync.NewNATSTransport(sessionsync.NATSConfig{
		URL:   natsURL,
		Topic: cfg.Sync.Topic,
	})
	if err != nil {
		if embedded != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = embedded.Shutdown(shutdownCtx)
			cancel()
		}
		return nil, nil, fmt.Errorf("connect NATS sync transport: %w", err)
	}

	cleanup := func(ctx context.Context) {
		if err := transport.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing sync transport")
		}
		if embedded != nil {
			if err := embedded.Shutdown(ctx); err != nil {
				logging.Warn().Err(err).Msg("Error shutting down embedded NATS server")
			}
		}
	}
	return transport, cleanup, nil
}
