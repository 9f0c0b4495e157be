// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

/*
Package main is the entry point for stevedored, the Stevedore sidecar daemon.

stevedored hosts one session manager for the Freightmesh admin gateway: it
keeps the access token fresh, persists session state across restarts,
synchronizes it with sibling instances, and exposes a small operational HTTP
surface for inspection and control. Applications that can embed the SDK
directly use the packages under internal/ instead; the daemon exists for
everything that cannot.

# Application Architecture

The daemon runs under Suture v4 process supervision:

	RootSupervisor ("stevedore")
	├── SessionSupervisor ("session-layer")
	│   ├── Store Watcher (shared-store change detection)
	│   ├── State Sweep (periodic validation and repair)
	│   └── Config Watch (file hot-reload)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── Event Hub (WebSocket fan-out)
	│   ├── Session Broadcast (cross-instance sync)
	│   └── Error Monitor (windows, patterns, escalations)
	└── APISupervisor ("api-layer")
	    └── Ops HTTP Server (session, errors, events, metrics)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Session store: BadgerDB with memory fallback
 4. Token manager: hydration, scheduled refresh, cooldown
 5. Boot validation: repair persisted state before anything consumes it
 6. Error monitor: escalation rules and optional webhook
 7. Session sync: gochannel or NATS transport, optional embedded broker
 8. Supervisor tree: Suture v4 process supervision
 9. Ops HTTP server: chi router with middleware stack

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest priority
wins):

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	# Gateway
	GATEWAY_URL=https://admin.freightmesh.io   # Admin gateway origin (required)
	GATEWAY_TIMEOUT=30s                        # Per-attempt request timeout

	# Session
	AUTH_STORE=badger                          # badger or memory
	AUTH_STORE_PATH=/data/stevedore/session    # BadgerDB directory
	AUTH_ENCRYPTION_KEY=...                    # 32+ chars, encrypts the stored refresh token

	# Sync
	SYNC_ENABLED=true                          # Cross-instance session sync
	SYNC_TRANSPORT=gochannel                   # gochannel or nats
	NATS_URL=nats://127.0.0.1:4222             # Broker URL (transport=nats)
	NATS_EMBEDDED=false                        # Host the broker in-process
	NATS_STORE_DIR=/data/stevedore/nats        # JetStream state (embedded)

	# Ops server
	HTTP_HOST=127.0.0.1                        # Listen address
	HTTP_PORT=9180                             # Listen port

	# Monitoring
	MONITOR_WEBHOOK_ENABLED=false              # POST escalations to a webhook
	MONITOR_WEBHOOK_URL=...                    # Webhook endpoint

	# Logging
	LOG_LEVEL=info                             # trace..panic
	LOG_FORMAT=json                            # json or console

The config file is looked up at config.yaml, config.yml,
/etc/stevedore/config.yaml, /etc/stevedore/config.yml, or the path in
CONFIG_PATH. Changes to the file are picked up at runtime for settings that
can take effect without re-wiring, such as the log level.

# Build Tags

NATS support is optional and adds roughly 10 MB to the binary:

	go build ./cmd/stevedored              # gochannel sync only
	go build -tags nats ./cmd/stevedored   # NATS JetStream + embedded broker

Without the tag, SYNC_TRANSPORT=nats logs a warning and falls back to the
in-process transport.

# Signal Handling

The daemon shuts down gracefully on SIGINT and SIGTERM:
  - Supervised services stop in reverse dependency order
  - The ops server drains in-flight requests (10s timeout)
  - The sync transport and embedded broker close after the broadcaster stops
  - The session store closes last

# Example Usage

Single instance with persistent session:

	export GATEWAY_URL=https://admin.freightmesh.io
	export AUTH_STORE_PATH=/data/stevedore/session
	./stevedored

Fleet of daemons sharing one session via an embedded broker (first host):

	export GATEWAY_URL=https://admin.freightmesh.io
	export SYNC_TRANSPORT=nats
	export NATS_EMBEDDED=true
	export NATS_URL=nats://0.0.0.0:4222
	./stevedored   # built with -tags nats

# Port 9180

The default ops port 9180 sits in the unassigned range above the common
9100-series exporter ports, so the daemon can run next to standard
Prometheus exporters without clashing.
*/
package main
