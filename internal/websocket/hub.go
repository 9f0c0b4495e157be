// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/freightmesh/stevedore/internal/logging"
)

// ShutdownReason identifies why the hub stopped, for log filtering.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the shutdown deadline fired.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types pushed to observers.
const (
	MessageTypeSession    = "session_state"
	MessageTypeEscalation = "escalation"
	MessageTypePing       = "ping"
	MessageTypePong       = "pong"
)

// Message is the wire envelope of the event stream.
type Message struct {
	Type string `json:"type"`

	// Event narrows the type for escalation messages: escalation_created,
	// escalation_acknowledged or escalation_resolved.
	Event string `json:"event,omitempty"`

	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub fans session and escalation events out to connected observers. It
// never blocks producers: when the broadcast buffer or a client buffer is
// full the message is dropped for that consumer.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates an event hub. Call Run (under supervision) before
// registering clients.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Run drives the hub until the context is canceled, then closes every
// connected client and returns ctx.Err() so a supervisor can tell shutdown
// from a crash.
//
// Channel readiness is checked in priority order (shutdown, then client
// lifecycle, then broadcast) so client state is consistent before any
// message is delivered, instead of relying on select's random choice.
func (h *Hub) Run(ctx context.Context) error {
	for {
		// Priority 1: shutdown.
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: client lifecycle.
		select {
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		// Priority 3: wait for anything.
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	logging.Info().Int("total_clients", total).Msg("event stream client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	logging.Info().Int("total_clients", total).Msg("event stream client disconnected")
}

// deliver sends a message to all connected clients in client-ID order so
// delivery order is reproducible across runs. Clients with a full send
// buffer are dropped rather than slowing the rest down.
func (h *Hub) deliver(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- msg:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	reason := ShutdownReasonContextCanceled
	if ctx.Err() == context.DeadlineExceeded {
		reason = ShutdownReasonContextDeadline
	}

	// Cancellation is expected behavior, not an error.
	logging.Info().
		Str("component", "event_hub").
		Str("reason", string(reason)).
		Int("clients_closed", len(clients)).
		Msg("event hub stopped")
}

// BroadcastSessionState pushes a redacted session snapshot to all observers.
func (h *Hub) BroadcastSessionState(data interface{}) {
	h.enqueue(Message{Type: MessageTypeSession, Data: data, Timestamp: time.Now().UTC()})
}

// BroadcastEscalation pushes an escalation lifecycle event. kind is one of
// the monitor's escalation_* event names.
func (h *Hub) BroadcastEscalation(kind string, data interface{}) {
	h.enqueue(Message{Type: MessageTypeEscalation, Event: kind, Data: data, Timestamp: time.Now().UTC()})
}

func (h *Hub) enqueue(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		logging.Warn().Str("message_type", msg.Type).Msg("broadcast channel full, dropping message")
	}
}

// ClientCount returns the number of connected observers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// String names the hub in supervisor logs.
func (h *Hub) String() string {
	return "event_hub"
}
