// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package sessionsync

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/freightmesh/stevedore/internal/logging"
)

// Transport carries session-state envelopes between instances. The topic is
// fixed at construction; the broadcaster neither knows nor cares which
// backend moves the bytes.
type Transport interface {
	Publish(ctx context.Context, msg *message.Message) error
	Subscribe(ctx context.Context) (<-chan *message.Message, error)
	Name() string
	Close() error
}

// NATSConfig configures the NATS JetStream transport. The transport itself
// is only compiled in with the nats build tag.
type NATSConfig struct {
	URL   string
	Topic string
}

// GoChannelTransport is the in-process transport: broadcasts reach every
// subscriber within the same binary. It is the default backend and the one
// the tests run against; multi-process deployments use NATS instead.
type GoChannelTransport struct {
	pubSub *gochannel.GoChannel
	topic  string
}

var _ Transport = (*GoChannelTransport)(nil)

// NewGoChannelTransport creates an in-process pub/sub on the given topic.
func NewGoChannelTransport(topic string) *GoChannelTransport {
	if topic == "" {
		topic = DefaultTopic
	}
	return &GoChannelTransport{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			newWatermillLogger(logging.WithComponent("session_sync")),
		),
		topic: topic,
	}
}

func (t *GoChannelTransport) Publish(_ context.Context, msg *message.Message) error {
	return t.pubSub.Publish(t.topic, msg)
}

func (t *GoChannelTransport) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return t.pubSub.Subscribe(ctx, t.topic)
}

func (t *GoChannelTransport) Name() string { return "gochannel" }

func (t *GoChannelTransport) Close() error { return t.pubSub.Close() }
