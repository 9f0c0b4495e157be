// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package sessionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/freightmesh/stevedore/internal/auth"
	"github.com/freightmesh/stevedore/internal/logging"
	"github.com/freightmesh/stevedore/internal/metrics"
)

// outboxSize bounds the queue between the manager's change callback and the
// publish loop. Overflow drops the oldest pending change; the next change
// or a storage-watch rehydration converges the peers again.
const outboxSize = 64

// Broadcaster ties a session manager to a transport: local changes go out,
// remote envelopes are offered to the manager under its last-writer-wins
// rule. Construct it before any state changes you want propagated, then run
// it under the supervision tree.
type Broadcaster struct {
	mgr       *auth.Manager
	transport Transport
	origin    string
	log       zerolog.Logger

	outbox chan Envelope
}

// NewBroadcaster registers the change hook on the manager. The origin is a
// fresh instance ID used to ignore our own broadcasts.
func NewBroadcaster(mgr *auth.Manager, transport Transport) *Broadcaster {
	b := &Broadcaster{
		mgr:       mgr,
		transport: transport,
		origin:    uuid.NewString(),
		log:       logging.WithComponent("session_sync"),
		outbox:    make(chan Envelope, outboxSize),
	}
	mgr.OnChange(b.enqueue)
	return b
}

// Origin returns this instance's broadcast identity.
func (b *Broadcaster) Origin() string { return b.origin }

// enqueue hands a local change to the publish loop. The manager calls this
// synchronously on its commit path, so it must never block.
func (b *Broadcaster) enqueue(state auth.TokenState, at time.Time) {
	env := Envelope{Origin: b.origin, State: state, ChangedAt: at}
	for {
		select {
		case b.outbox <- env:
			return
		default:
		}
		// Full queue: drop the oldest pending change, it is superseded
		// by the one we are holding.
		select {
		case <-b.outbox:
			metrics.RecordSyncMessage(b.transport.Name(), "dropped_overflow")
		default:
		}
	}
}

// Run pumps the outbox and the subscription until the context ends.
func (b *Broadcaster) Run(ctx context.Context) error {
	messages, err := b.transport.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe session sync: %w", err)
	}
	b.log.Info().
		Str("transport", b.transport.Name()).
		Str("origin", b.origin).
		Msg("Session sync running")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-b.outbox:
			b.publish(ctx, env)
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			b.receive(ctx, msg)
		}
	}
}

func (b *Broadcaster) publish(ctx context.Context, env Envelope) {
	data, err := encodeEnvelope(env)
	if err != nil {
		b.log.Error().Err(err).Msg("Failed to encode sync envelope")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("origin", env.Origin)

	if err := b.transport.Publish(ctx, msg); err != nil {
		b.log.Warn().Err(err).Msg("Session sync publish failed")
		return
	}
	metrics.RecordSyncMessage(b.transport.Name(), "published")
}

func (b *Broadcaster) receive(ctx context.Context, msg *message.Message) {
	// Always ack: a session envelope that cannot be applied now has no
	// redelivery value, the next change supersedes it.
	defer msg.Ack()

	env, err := decodeEnvelope(msg.Payload)
	if err != nil {
		b.log.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed sync envelope")
		return
	}
	if env.Origin == b.origin {
		metrics.RecordSyncMessage(b.transport.Name(), "dropped_own")
		return
	}

	if b.mgr.ApplySynced(ctx, env.State, env.ChangedAt) {
		metrics.RecordSyncMessage(b.transport.Name(), "applied")
		b.log.Debug().
			Str("origin", env.Origin).
			Time("changed_at", env.ChangedAt).
			Msg("Applied synced session state")
		return
	}
	metrics.RecordSyncMessage(b.transport.Name(), "dropped_stale")
}
