// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPServer matches the *http.Server lifecycle methods the wrapper needs,
// so tests can substitute a controllable fake.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService runs the operational HTTP server under supervision. It
// translates the blocking ListenAndServe pattern into suture's
// context-aware Serve contract:
//
//  1. Starts ListenAndServe in a goroutine
//  2. Waits for either context cancellation or a server error
//  3. On cancellation, drains connections via Shutdown with a fresh
//     bounded context
//
// Example:
//
//	srv := &http.Server{Addr: "127.0.0.1:9180", Handler: router}
//	tree.AddAPIService(services.NewHTTPService(srv, cfg.Server.Timeout))
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	name            string
}

// NewHTTPService creates the ops server wrapper. shutdownTimeout bounds
// the connection drain on shutdown; zero or less falls back to 10s.
func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            "ops-http",
	}
}

// Serve implements suture.Service. It returns nil only if the server
// stopped on its own without error; http.ErrServerClosed counts as a
// clean stop since Shutdown triggers it.
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		// Failed to bind, or crashed while serving.
		if err != nil {
			return fmt.Errorf("ops http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// The serve context is already canceled, so the drain needs its
		// own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ops http server shutdown failed: %w", err)
		}

		// Wait for the ListenAndServe goroutine to unwind.
		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer for supervision events.
func (h *HTTPService) String() string {
	return h.name
}
