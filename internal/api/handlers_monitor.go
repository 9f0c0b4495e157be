// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/freightmesh/stevedore/internal/logging"
	"github.com/freightmesh/stevedore/internal/monitor"
	ws "github.com/freightmesh/stevedore/internal/websocket"
)

// maxEscalationLimit caps the list page size.
const maxEscalationLimit = 500

// ErrorSummary handles GET /api/v1/errors/summary.
// Returns the aggregate error view: totals, breakdowns by type, severity
// and endpoint, detected patterns, and escalation counts.
func (h *Handler) ErrorSummary(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.monitor == nil {
		rw.ServiceUnavailable("Error monitor not available")
		return
	}

	rw.Success(h.monitor.Summary())
}

// ErrorPatterns handles GET /api/v1/errors/patterns.
// Returns the endpoints whose error counts crossed the pattern threshold
// inside the sliding window.
func (h *Handler) ErrorPatterns(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.monitor == nil {
		rw.ServiceUnavailable("Error monitor not available")
		return
	}

	patterns := h.monitor.DetectErrorPatterns()
	rw.Success(map[string]interface{}{
		"patterns": patterns,
		"count":    len(patterns),
	})
}

// ListEscalations handles GET /api/v1/escalations.
//
// Query parameters:
//   - status: filter by lifecycle state (pending, acknowledged, resolved)
//   - rule: filter by the rule that fired
//   - limit: max results (default 100, max 500)
func (h *Handler) ListEscalations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.monitor == nil {
		rw.ServiceUnavailable("Error monitor not available")
		return
	}

	filter := monitor.EventFilter{Limit: 100}

	if status := r.URL.Query().Get("status"); status != "" {
		switch monitor.EscalationStatus(status) {
		case monitor.StatusPending, monitor.StatusAcknowledged, monitor.StatusResolved:
			filter.Status = monitor.EscalationStatus(status)
		default:
			rw.BadRequest("Invalid status filter: must be pending, acknowledged, or resolved")
			return
		}
	}

	filter.Rule = r.URL.Query().Get("rule")

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			rw.BadRequest("Invalid limit parameter")
			return
		}
		if limit > maxEscalationLimit {
			limit = maxEscalationLimit
		}
		filter.Limit = limit
	}

	events := h.monitor.Escalations(filter)

	rw.SuccessWithPagination(events, &PaginationMeta{
		Count:   len(events),
		Limit:   filter.Limit,
		HasMore: len(events) == filter.Limit,
	})
}

// GetEscalation handles GET /api/v1/escalations/{id}.
func (h *Handler) GetEscalation(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.monitor == nil {
		rw.ServiceUnavailable("Error monitor not available")
		return
	}

	id := chi.URLParam(r, "id")
	event, ok := h.monitor.Escalation(id)
	if !ok {
		rw.NotFound("Escalation not found")
		return
	}

	rw.Success(event)
}

// acknowledgeRequest is the optional body for escalation acknowledgement.
type acknowledgeRequest struct {
	AssignedTo string `json:"assignedTo"`
}

// AcknowledgeEscalation handles POST /api/v1/escalations/{id}/acknowledge.
// Only pending escalations can be acknowledged; anything else is a 409.
func (h *Handler) AcknowledgeEscalation(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.monitor == nil {
		rw.ServiceUnavailable("Error monitor not available")
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := h.monitor.Escalation(id); !ok {
		rw.NotFound("Escalation not found")
		return
	}

	// Body is optional; a missing or malformed assignee defaults to "operator".
	var req acknowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.AssignedTo = ""
	}
	assignee := req.AssignedTo
	if assignee == "" {
		assignee = "operator"
	}

	if !h.monitor.Acknowledge(id, assignee) {
		rw.Conflict("Escalation is not pending")
		return
	}

	event, _ := h.monitor.Escalation(id)
	rw.Success(event)
}

// ResolveEscalation handles POST /api/v1/escalations/{id}/resolve.
// Pending and acknowledged escalations can be resolved; resolving twice
// is a 409.
func (h *Handler) ResolveEscalation(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.monitor == nil {
		rw.ServiceUnavailable("Error monitor not available")
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := h.monitor.Escalation(id); !ok {
		rw.NotFound("Escalation not found")
		return
	}

	if !h.monitor.Resolve(id) {
		rw.Conflict("Escalation already resolved")
		return
	}

	event, _ := h.monitor.Escalation(id)
	rw.Success(event)
}

// Events handles GET /api/v1/events: the WebSocket upgrade for the live
// event stream (session state changes and escalation lifecycle events).
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		WriteError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"Event stream not available")
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error to the client
		logging.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()

	logging.Debug().
		Uint64("client_id", client.ID()).
		Str("remote_addr", r.RemoteAddr).
		Msg("Event stream client connected")
}
