// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package api

import (
	"net/http"
	"time"
)

// Healthz handles liveness probe requests (Kubernetes-style).
// Returns 200 OK if the process is alive, regardless of dependencies.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	rw.Success(map[string]interface{}{
		"alive":   true,
		"uptime":  time.Since(h.startTime).Seconds(),
		"version": h.version,
	})
}

// Readyz handles readiness probe requests (Kubernetes-style).
// Ready means the session manager is wired and the token store answers a
// live read. A daemon with an unreachable store still serves traffic from
// memory, but operators should know before pointing siblings at it.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.manager == nil || h.validator == nil {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"Service not ready", map[string]interface{}{
				"ready":  false,
				"uptime": time.Since(h.startTime).Seconds(),
			})
		return
	}

	snap := h.validator.Snapshot(r.Context())
	if snap.StoreErr != nil {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"Service not ready", map[string]interface{}{
				"ready":            false,
				"storageAvailable": false,
				"uptime":           time.Since(h.startTime).Seconds(),
			})
		return
	}

	rw.Success(map[string]interface{}{
		"ready":            true,
		"storageAvailable": true,
		"uptime":           time.Since(h.startTime).Seconds(),
	})
}
