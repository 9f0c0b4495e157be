// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

//go:build !nats

package sessionsync

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
)

// NATSTransport is a stub when NATS support is not compiled in.
// Build with -tags=nats to enable the JetStream transport.
type NATSTransport struct{}

// NewNATSTransport returns an error when NATS support is not compiled in.
// Build with -tags=nats to enable the JetStream transport.
func NewNATSTransport(_ NATSConfig) (*NATSTransport, error) {
	return nil, fmt.Errorf("NATS sync transport not available: build with -tags=nats")
}

// Publish is a stub that returns an error.
func (t *NATSTransport) Publish(_ context.Context, _ *message.Message) error {
	return fmt.Errorf("NATS sync transport not available: build with -tags=nats")
}

// Subscribe is a stub that returns an error.
func (t *NATSTransport) Subscribe(_ context.Context) (<-chan *message.Message, error) {
	return nil, fmt.Errorf("NATS sync transport not available: build with -tags=nats")
}

// Name identifies the stub transport.
func (t *NATSTransport) Name() string { return "nats" }

// Close is a no-op stub.
func (t *NATSTransport) Close() error { return nil }
