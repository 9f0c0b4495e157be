// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/freightmesh/stevedore/internal/auth"
	"github.com/freightmesh/stevedore/internal/config"
	"github.com/freightmesh/stevedore/internal/logging"
	"github.com/freightmesh/stevedore/internal/monitor"
	ws "github.com/freightmesh/stevedore/internal/websocket"
)

// Handler holds the dependencies for all ops endpoints.
//
// Every field may be nil in tests; handlers that depend on a missing
// component answer 503 rather than panic.
type Handler struct {
	manager   *auth.Manager
	validator *auth.StateValidator
	recovery  *auth.StateRecovery
	monitor   *monitor.Monitor
	hub       *ws.Hub
	config    *config.Config
	startTime time.Time
	version   string
}

// NewHandler creates the ops handler with all dependencies injected.
//
// Parameters:
//   - manager: session token manager (snapshot, refresh, logout)
//   - validator: invalid-state detector
//   - recovery: invalid-state recovery executor
//   - mon: error monitor (summaries, patterns, escalations)
//   - hub: event hub for the WebSocket stream (may be nil)
//   - cfg: daemon configuration
//   - version: daemon version string reported by health endpoints
func NewHandler(manager *auth.Manager, validator *auth.StateValidator, recovery *auth.StateRecovery, mon *monitor.Monitor, hub *ws.Hub, cfg *config.Config, version string) *Handler {
	return &Handler{
		manager:   manager,
		validator: validator,
		recovery:  recovery,
		monitor:   mon,
		hub:       hub,
		config:    cfg,
		startTime: time.Now(),
		version:   version,
	}
}

// BroadcastSessionChange publishes a redacted session snapshot to event
// stream subscribers. Wired to the token manager's change hook so every
// refresh, logout, and synced update reaches connected observers.
func (h *Handler) BroadcastSessionChange(state auth.TokenState, at time.Time) {
	if h.hub == nil {
		return
	}
	info := h.sessionInfoFrom(state)
	info.ChangedAt = &at
	h.hub.BroadcastSessionState(info)
}

// BroadcastEscalation publishes an escalation lifecycle event to event
// stream subscribers. Wired to the monitor's escalation hook.
func (h *Handler) BroadcastEscalation(kind string, event monitor.EscalationEvent) {
	if h.hub == nil {
		return
	}
	h.hub.BroadcastEscalation(kind, event)
}

// getUpgrader creates a WebSocket upgrader with proper origin checking and timeouts.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// If no origin header, REJECT - legitimate browser WebSockets ALWAYS include Origin
	// Only non-browser clients (curl, scripts) omit Origin header
	// Allowing empty Origin bypasses CORS entirely
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	// If config is nil, allow by default (fail open for tests/development)
	if h.config == nil {
		return true
	}

	// Check against allowed origins from config
	for _, allowedOrigin := range h.config.Server.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	// Origin not in allowed list - sanitize origin to prevent log injection
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// sanitizeLogValue removes control characters from strings to prevent log injection attacks.
// This includes newlines, carriage returns, tabs, and other control characters that could
// allow attackers to forge log entries or corrupt log files.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		// Replace control characters (0x00-0x1F and 0x7F) with a safe representation
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
