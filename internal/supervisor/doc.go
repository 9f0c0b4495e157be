// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

/*
Package supervisor provides process supervision for the stevedore daemon
using suture v4.

This package implements a hierarchical supervisor tree that manages the
lifecycle of every long-running component in the daemon. It provides
Erlang/OTP-style supervision with automatic restart, failure isolation,
and graceful shutdown.

# Overview

The supervisor tree organizes services into three layers for failure
isolation:

	RootSupervisor ("stevedore")
	├── SessionSupervisor ("session-layer")
	│   ├── StoreWatchService (shared-store change feed)
	│   └── SweepService (periodic state validation and repair)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── EventHubService (WebSocket fan-out)
	│   ├── BroadcastService (cross-instance session sync)
	│   └── MonitorService (error aggregation and escalation)
	└── APISupervisor ("api-layer")
	    └── HTTPService (operational HTTP server)

This hierarchy ensures that:
  - A crashing sync transport restarts without dropping WebSocket clients
  - A wedged HTTP listener never takes the session keepers with it
  - Each layer carries its own failure counter and backoff state

# Key Features

Automatic restart:
  - Crashed services restart with exponential backoff
  - Configurable failure threshold and decay rate
  - suture.ErrDoNotRestart stops a service permanently

Graceful shutdown:
  - Context cancellation triggers orderly teardown
  - Per-service shutdown timeout
  - UnstoppedServiceReport for debugging hangs

Structured logging:
  - Supervision events flow through sutureslog into slog
  - logging.NewSlogLogger bridges the daemon's zerolog pipeline

# Usage

Setup in the daemon entry point:

	logger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	if err != nil {
		return err
	}

	tree.AddSessionService(services.NewStoreWatchService(watcher))
	tree.AddSessionService(services.NewSweepService(validator, recovery, interval))
	tree.AddMessagingService(services.NewEventHubService(hub))
	tree.AddMessagingService(services.NewMonitorService(mon))
	tree.AddAPIService(services.NewHTTPService(srv, shutdownTimeout))

	return tree.Serve(ctx)

# Configuration

TreeConfig controls restart behavior. The zero value of each field falls
back to suture's production defaults:

	FailureThreshold: 5.0   // failures before backoff
	FailureDecay:     30.0  // seconds for failures to decay
	FailureBackoff:   15s   // wait when threshold exceeded
	ShutdownTimeout:  10s   // per-service shutdown budget

# Service Interface

All services implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Return nil for a clean permanent stop, an error to request a restart, and
ctx.Err() when the context ends. The wrappers in the services subpackage
adapt stevedore's Run-style components to this contract.

# What Is Not Supervised

The token manager's refresh scheduler is not a tree service: it lives
inside auth.Manager, restarts with every schedule update, and stops via
Manager.Close. The Badger session store is an embedded library, not a
process; its lifecycle belongs to the daemon's shutdown path.

# Debugging Shutdown Issues

When a service outlives the shutdown timeout:

	report, _ := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    log.Printf("service did not stop: %v", svc)
	}

The usual causes are goroutines that ignore context cancellation and
network reads without deadlines.
*/
package supervisor
