// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

/*
Package websocket implements the live event stream of the ops surface.

A Hub fans redacted session-state changes and escalation lifecycle events
out to connected observers over gorilla/websocket connections.

Architecture:

	┌──────────┐
	│   Hub    │ ← Broadcasts to all observers
	└────┬─────┘
	     │
	┌────┴─────┬─────────┬─────────┐
	│          │         │         │
	│ Client1  │ Client2 │ Client3 │
	│          │         │         │
	└──────────┴─────────┴─────────┘

Each client has two goroutines:
  - readPump: reads from the connection, answers application pings
  - writePump: writes hub messages and protocol pings

Message Types:

  - session_state: redacted token/session snapshot after every change
  - escalation: escalation lifecycle, narrowed by the event field
    (escalation_created, escalation_acknowledged, escalation_resolved)
  - ping/pong: application-level keepalive initiated by observers

The hub is a supervised service: Run returns ctx.Err() on cancellation so
the supervisor can tell shutdown from a crash. Producers never block; slow
or stalled observers are disconnected rather than allowed to back-pressure
the session layer.

Connection Lifecycle:

 1. Observer connects via HTTP upgrade on the ops server
 2. Hub registers the client
 3. Client starts read/write goroutines
 4. Hub broadcasts messages to all clients in client-ID order
 5. Client disconnects (network error or explicit close)
 6. Hub unregisters the client and cleans up

See Also:

  - github.com/gorilla/websocket: underlying WebSocket library
  - internal/api: upgrade endpoint and origin checks
  - internal/monitor: escalation event source
*/
package websocket
