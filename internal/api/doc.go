// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

/*
Package api implements the operational HTTP surface of the stevedore daemon.

The surface is deliberately small: it exposes the session layer for
inspection and manual intervention, the error monitor for triage, and a
live event stream. It never emits token material; session payloads are
redacted to fingerprints and metadata.

Key Components:

  - Router: chi route configuration and middleware stack
  - Handler: request handlers over the session manager, state validator,
    recovery machine and error monitor
  - ResponseWriter: standardized JSON envelope with request IDs and timing
  - ChiMiddleware: CORS, rate limiting and request-ID middleware factories

Endpoints:

 1. Health (/healthz, /readyz):
    liveness and readiness probes; readiness checks token storage.

 2. Session (/api/v1/session):
    redacted session snapshot, manual refresh, logout, and a combined
    validate-and-recover pass.

 3. Error monitor (/api/v1/errors, /api/v1/escalations):
    sliding-window error summary, detected endpoint patterns, and the
    escalation audit trail with acknowledge/resolve transitions.

 4. Event stream (/api/v1/events):
    websocket stream of session-state changes and escalation lifecycle
    events, backed by internal/websocket.

 5. Observability (/metrics):
    Prometheus exposition via promhttp.

All responses share the APIResponse envelope. Every request carries an
X-Request-ID header (inbound value respected, otherwise generated) that is
echoed in response metadata and attached to the logging context.
*/
package api
