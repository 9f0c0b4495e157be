// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

/*
Package services adapts stevedore's long-running components to suture's
Service interface so the supervisor tree can own their lifecycles.

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Two lifecycle shapes exist in the daemon and each gets a wrapper:

  - Run-style components (event hub, session broadcaster, store watcher,
    error monitor) already block on Run(ctx) until the context ends.
    RunService delegates Serve straight through; the named constructors
    pin the names the supervision log identifies each service by.

  - The operational HTTP server blocks on ListenAndServe and needs an
    explicit Shutdown call. HTTPService bridges that to the context-based
    contract with a bounded graceful shutdown.

SweepService is the one service implemented here rather than wrapped: on
a fixed interval it validates persisted session state and hands invalid
reports to the recovery machine, so drift introduced by crashed writes or
outside edits is repaired without waiting for a request to trip over it.

Wrappers accept narrow interfaces instead of concrete types so tests can
substitute controllable fakes.
*/
package services
