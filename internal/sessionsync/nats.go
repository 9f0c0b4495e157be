// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

//go:build nats

package sessionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/freightmesh/stevedore/internal/logging"
)

// NATSTransport broadcasts envelopes over NATS JetStream. Every instance
// gets its own ephemeral consumer (no queue group): session sync is a
// fan-out, not a work queue, and replaying old state after a reconnect is
// pointless because stale stamps are dropped anyway.
type NATSTransport struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string
}

var _ Transport = (*NATSTransport)(nil)

// NewNATSTransport connects to the broker at cfg.URL. The connection
// retries forever; session sync is best-effort while the broker is away.
func NewNATSTransport(cfg NATSConfig) (*NATSTransport, error) {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	logger := newWatermillLogger(logging.WithComponent("session_sync"))

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create sync publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Unmarshaler: &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			AckAsync:      false,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.DeliverNew(),
			},
		},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create sync subscriber: %w", err)
	}

	return &NATSTransport{publisher: pub, subscriber: sub, topic: topic}, nil
}

func (t *NATSTransport) Publish(_ context.Context, msg *message.Message) error {
	if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}
	return t.publisher.Publish(t.topic, msg)
}

func (t *NATSTransport) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return t.subscriber.Subscribe(ctx, t.topic)
}

func (t *NATSTransport) Name() string { return "nats" }

func (t *NATSTransport) Close() error {
	pubErr := t.publisher.Close()
	subErr := t.subscriber.Close()
	if pubErr != nil {
		return pubErr
	}
	return subErr
}
