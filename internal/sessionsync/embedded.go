// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

//go:build nats

package sessionsync

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedConfig configures the in-process NATS server used when a
// deployment wants cross-process session sync without operating a broker.
type EmbeddedConfig struct {
	// Host and Port of the listener. Defaults: 127.0.0.1:4222.
	Host string
	Port int

	// StoreDir holds JetStream state on disk.
	StoreDir string
}

// EmbeddedConfigFromURL derives the listen address from a nats:// URL so
// the embedded broker comes up exactly where sibling daemons expect to
// find it.
func EmbeddedConfigFromURL(rawURL, storeDir string) (EmbeddedConfig, error) {
	cfg := EmbeddedConfig{StoreDir: storeDir}

	u, err := url.Parse(rawURL)
	if err != nil {
		return cfg, fmt.Errorf("parse NATS URL %q: %w", rawURL, err)
	}
	cfg.Host = u.Hostname()

	if portStr := u.Port(); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return cfg, fmt.Errorf("parse NATS URL port %q: %w", portStr, err)
		}
		cfg.Port = port
	}

	return cfg, nil
}

// EmbeddedServer wraps an in-process NATS server with lifecycle management.
// JetStream is on so the sync stream survives a restart of the daemon that
// happens to host the broker.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer creates and starts an embedded NATS server. Returns an
// error if the listener is not accepting connections within 30 seconds.
func NewEmbeddedServer(cfg EmbeddedConfig) (*EmbeddedServer, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 4222
	}

	opts := &server.Options{
		ServerName: "stevedore-sync",
		Host:       cfg.Host,
		Port:       cfg.Port,
		JetStream:  true,
		StoreDir:   cfg.StoreDir,
		// Session snapshots are small; keep the stream footprint far
		// below the NATS defaults.
		JetStreamMaxMemory: 32 * 1024 * 1024,
		JetStreamMaxStore:  256 * 1024 * 1024,
		MaxPayload:         1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	ns.ConfigureLogger()

	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}

	return &EmbeddedServer{
		server:    ns,
		clientURL: ns.ClientURL(),
	}, nil
}

// ClientURL returns the connection URL for transports.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown stops the server and waits for in-flight work to finish or the
// context to end, whichever comes first.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.WaitForShutdown()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// IsRunning reports whether the server is accepting connections.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}
