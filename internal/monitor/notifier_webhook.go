// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// ErrRateLimited is returned by Send when a notification is dropped because
// the previous one was too recent. The escalation itself is unaffected.
var ErrRateLimited = errors.New("webhook notification rate limited")

// WebhookNotifier POSTs escalation events to a generic webhook endpoint.
// Deliveries closer together than the rate limit are dropped, not queued;
// the event store keeps the full history regardless.
type WebhookNotifier struct {
	webhookURL string
	headers    map[string]string
	client     *http.Client
	enabled    bool

	mu        sync.Mutex
	lastSent  time.Time
	rateLimit time.Duration
}

// WebhookConfig configures the webhook notifier.
type WebhookConfig struct {
	WebhookURL string            `json:"webhook_url"`
	Headers    map[string]string `json:"headers,omitempty"`
	Enabled    bool              `json:"enabled"`
	RateLimit  time.Duration     `json:"rate_limit"`
}

// WebhookPayload is the JSON body sent to the webhook endpoint.
type WebhookPayload struct {
	Event     *EscalationEvent `json:"event"`
	EventType string           `json:"event_type"` // escalation_created
	Timestamp time.Time        `json:"timestamp"`
	Source    string           `json:"source"` // stevedore
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(config WebhookConfig) *WebhookNotifier {
	rateLimit := config.RateLimit
	if rateLimit <= 0 {
		rateLimit = time.Minute
	}

	headers := make(map[string]string)
	for k, v := range config.Headers {
		headers[k] = v
	}

	return &WebhookNotifier{
		webhookURL: config.WebhookURL,
		headers:    headers,
		enabled:    config.Enabled,
		rateLimit:  rateLimit,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the notifier name.
func (n *WebhookNotifier) Name() string {
	return "webhook"
}

// Enabled reports whether the notifier is configured and switched on.
func (n *WebhookNotifier) Enabled() bool {
	return n.enabled && n.webhookURL != ""
}

// Send delivers an escalation event to the webhook endpoint. Returns
// ErrRateLimited when dropped by the rate limit, and an error for any
// non-2xx response.
func (n *WebhookNotifier) Send(ctx context.Context, event *EscalationEvent) error {
	if !n.Enabled() {
		return nil
	}

	// Claim the send slot before doing any work, so concurrent sends
	// cannot both pass the rate check.
	n.mu.Lock()
	if time.Since(n.lastSent) < n.rateLimit {
		n.mu.Unlock()
		return ErrRateLimited
	}
	n.lastSent = time.Now()
	n.mu.Unlock()

	payload := WebhookPayload{
		Event:     event,
		EventType: "escalation_created",
		Timestamp: time.Now(),
		Source:    "stevedore",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range n.headers {
		req.Header.Set(key, value)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
