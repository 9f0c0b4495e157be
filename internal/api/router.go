// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

// HTTP routing for the ops surface using Chi router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router sets up the ops HTTP routes using Chi.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a new router. A nil middleware factory gets the
// secure defaults.
func NewRouter(handler *Handler, chiMw *ChiMiddleware) *Router {
	if chiMw == nil {
		chiMw = NewChiMiddleware(nil)
	}
	return &Router{
		handler:       handler,
		chiMiddleware: chiMw,
	}
}

// Setup configures all ops routes and returns the root handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	// Applied to ALL routes in order
	r.Use(RequestIDWithLogging())      // Add X-Request-ID header with logging context
	r.Use(RequestLogging())            // Debug-level access log
	r.Use(chimiddleware.RealIP)        // Extract real IP from X-Forwarded-For
	r.Use(chimiddleware.Recoverer)     // Recover from panics
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight

	// ========================
	// Health Endpoints
	// ========================
	// Permissive rate limiting so monitoring tools can poll freely
	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/healthz", router.handler.Healthz)
		r.Get("/readyz", router.handler.Readyz)
	})

	// ========================
	// Session Endpoints
	// ========================
	// Tighter rate limiting: a forced refresh is a gateway round-trip
	r.Route("/api/v1/session", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitSession())
		r.Use(APISecurityHeaders())
		r.Get("/", router.handler.Session)
		r.Post("/refresh", router.handler.SessionRefresh)
		r.Post("/logout", router.handler.SessionLogout)
		r.Get("/validate", router.handler.SessionValidate)
	})

	// ========================
	// Error Monitor Endpoints
	// ========================
	r.Route("/api/v1/errors", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Get("/summary", router.handler.ErrorSummary)
		r.Get("/patterns", router.handler.ErrorPatterns)
	})

	r.Route("/api/v1/escalations", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Get("/", router.handler.ListEscalations)
		r.Get("/{id}", router.handler.GetEscalation)
		r.Post("/{id}/acknowledge", router.handler.AcknowledgeEscalation)
		r.Post("/{id}/resolve", router.handler.ResolveEscalation)
	})

	// ========================
	// Event Stream
	// ========================
	// Per-IP upgrade rate limiting; message throughput is unmetered
	r.Route("/api/v1/events", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitEvents())
		r.Get("/", router.handler.Events)
	})

	// ========================
	// Observability
	// ========================
	r.Handle("/metrics", promhttp.Handler())

	return r
}
