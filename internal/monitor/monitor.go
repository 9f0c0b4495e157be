// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/freightmesh/stevedore/internal/apierror"
	"github.com/freightmesh/stevedore/internal/cache"
	"github.com/freightmesh/stevedore/internal/logging"
	"github.com/freightmesh/stevedore/internal/metrics"
)

// Event stream kinds published to escalation listeners.
const (
	EventCreated      = "escalation_created"
	EventAcknowledged = "escalation_acknowledged"
	EventResolved     = "escalation_resolved"
)

// severityPolicyRule names the built-in escalation path for errors that
// qualify under Eligible, independent of any configured rule.
const severityPolicyRule = "severity_policy"

const (
	defaultWindow    = 15 * time.Minute
	defaultThreshold = 5
	numBuckets       = 15
	maxEndpointKeys  = 512
	notifyTimeout    = 15 * time.Second
)

// Config tunes the monitor's windows and pattern detection.
type Config struct {
	// Window is the sliding window for error counts.
	Window time.Duration

	// PatternThreshold flags an endpoint after this many errors in the
	// window.
	PatternThreshold int64
}

// EventFunc receives escalation lifecycle notifications. kind is one of the
// Event* constants; the event is a copy taken at transition time.
type EventFunc func(kind string, event EscalationEvent)

// Monitor counts classified errors over sliding windows, detects repeated
// failures per endpoint, and raises escalation events when rules fire.
type Monitor struct {
	window    time.Duration
	threshold int64

	byType     *cache.WindowStore
	bySeverity *cache.WindowStore
	byEndpoint *cache.WindowStore
	total      *cache.WindowCounter

	mu        sync.Mutex
	rules     []*ruleState
	notifiers []Notifier
	listeners []EventFunc
	flagged   map[string]bool // endpoints past the pattern threshold

	events *EventStore
	log    zerolog.Logger
}

// ruleState pairs a rule with its private window counter. The counter resets
// when the rule fires, so each event represents a full batch of matching
// errors.
type ruleState struct {
	rule    EscalationRule
	counter *cache.WindowCounter
}

// NewMonitor creates a monitor with no rules or notifiers registered.
func NewMonitor(cfg Config) *Monitor {
	window := cfg.Window
	if window <= 0 {
		window = defaultWindow
	}
	threshold := cfg.PatternThreshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}

	return &Monitor{
		window:     window,
		threshold:  threshold,
		byType:     cache.NewWindowStore(window, numBuckets, 0),
		bySeverity: cache.NewWindowStore(window, numBuckets, 0),
		byEndpoint: cache.NewWindowStore(window, numBuckets, maxEndpointKeys),
		total:      cache.NewWindowCounter(window, numBuckets),
		flagged:    make(map[string]bool),
		events:     NewEventStore(),
		log:        logging.WithComponent("error_monitor"),
	}
}

// AddRule registers an escalation rule. Rules are evaluated in registration
// order on every recorded error.
func (m *Monitor) AddRule(rule EscalationRule) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rules = append(m.rules, &ruleState{
		rule:    rule,
		counter: cache.NewWindowCounter(rule.Condition.Window(), numBuckets),
	})
	m.log.Info().Str("rule", rule.Name).Msg("Registered escalation rule")
}

// RegisterNotifier adds a notifier for new escalation events.
func (m *Monitor) RegisterNotifier(notifier Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.notifiers = append(m.notifiers, notifier)
	m.log.Info().Str("notifier", notifier.Name()).Msg("Registered notifier")
}

// OnEscalation registers a listener for escalation lifecycle events.
// Listeners run synchronously on the recording goroutine and must not block.
func (m *Monitor) OnEscalation(fn EventFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Record counts one classified error and evaluates the escalation rules.
// Safe for concurrent use.
func (m *Monitor) Record(ctx context.Context, cerr *apierror.ClassifiedError) {
	if cerr == nil {
		return
	}

	endpoint := cerr.Context.Endpoint
	if endpoint == "" {
		endpoint = "unknown"
	}

	m.byType.Increment(string(cerr.Type))
	m.bySeverity.Increment(string(cerr.Severity))
	m.byEndpoint.Increment(endpoint)
	m.total.Increment(1)
	metrics.ErrorsRecorded.WithLabelValues(string(cerr.Type), string(cerr.Severity)).Inc()

	endpointCount := m.byEndpoint.Count(endpoint)

	var fired []*EscalationEvent

	m.mu.Lock()
	if endpointCount >= m.threshold && !m.flagged[endpoint] {
		m.flagged[endpoint] = true
		metrics.PatternsDetected.Inc()
		m.log.Warn().
			Str("endpoint", endpoint).
			Int64("count", endpointCount).
			Int64("threshold", m.threshold).
			Msg("Repeated-failure pattern detected")
	}

	if Eligible(cerr) {
		if event := m.raise(severityPolicyRule, "notify", cerr, endpoint, endpointCount); event != nil {
			fired = append(fired, event)
		}
	}

	for _, state := range m.rules {
		if !state.rule.Condition.Matches(cerr) {
			continue
		}
		state.counter.Increment(1)
		if state.counter.Count() < state.rule.Condition.Count {
			continue
		}
		state.counter.Reset()
		if event := m.raise(state.rule.Name, state.rule.Action, cerr, endpoint, state.rule.Condition.Count); event != nil {
			fired = append(fired, event)
		}
	}
	notifiers := m.enabledNotifiersLocked()
	listeners := append([]EventFunc(nil), m.listeners...)
	m.mu.Unlock()

	for _, event := range fired {
		m.dispatch(notifiers, listeners, event)
	}
}

// raise opens an escalation event unless an unresolved one already covers
// the same rule and endpoint. Requires m.mu held.
func (m *Monitor) raise(rule, action string, cerr *apierror.ClassifiedError, endpoint string, count int64) *EscalationEvent {
	if m.events.HasOpen(rule, endpoint) {
		return nil
	}

	event := &EscalationEvent{
		ID:        ulid.Make().String(),
		Rule:      rule,
		Status:    StatusPending,
		Message:   fmt.Sprintf("%d %s error(s) on %s within window", count, cerr.Severity, endpoint),
		Endpoint:  endpoint,
		ErrorType: cerr.Type,
		Severity:  cerr.Severity,
		Count:     count,
		CreatedAt: time.Now(),
	}
	m.events.Append(event)
	metrics.EscalationsCreated.WithLabelValues(rule).Inc()

	m.log.Warn().
		Str("escalation_id", event.ID).
		Str("rule", rule).
		Str("action", action).
		Str("endpoint", endpoint).
		Int64("count", count).
		Msg("Escalation raised")
	return event
}

// dispatch fans one new event out to notifiers and listeners.
func (m *Monitor) dispatch(notifiers []Notifier, listeners []EventFunc, event *EscalationEvent) {
	for _, notifier := range notifiers {
		go m.deliver(notifier, *event)
	}
	for _, fn := range listeners {
		fn(EventCreated, *event)
	}
}

// deliver sends one event to one notifier with its own timeout, detached
// from the request that triggered the escalation.
func (m *Monitor) deliver(notifier Notifier, event EscalationEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	err := notifier.Send(ctx, &event)
	switch {
	case err == nil:
		metrics.WebhookNotifications.WithLabelValues("sent").Inc()
	case errors.Is(err, ErrRateLimited):
		metrics.WebhookNotifications.WithLabelValues("rate_limited").Inc()
		m.log.Debug().
			Str("notifier", notifier.Name()).
			Str("escalation_id", event.ID).
			Msg("Notification dropped by rate limit")
	default:
		metrics.WebhookNotifications.WithLabelValues("failed").Inc()
		m.log.Error().Err(err).
			Str("notifier", notifier.Name()).
			Str("escalation_id", event.ID).
			Msg("Failed to send escalation notification")
	}
}

// enabledNotifiersLocked snapshots the enabled notifiers. Requires m.mu held.
func (m *Monitor) enabledNotifiersLocked() []Notifier {
	out := make([]Notifier, 0, len(m.notifiers))
	for _, n := range m.notifiers {
		if n.Enabled() {
			out = append(out, n)
		}
	}
	return out
}

// DetectErrorPatterns returns endpoints whose error count in the current
// window is at or past the repeated-failure threshold, worst first.
func (m *Monitor) DetectErrorPatterns() []Pattern {
	counts := m.byEndpoint.Counts()

	patterns := make([]Pattern, 0, len(counts))
	for endpoint, count := range counts {
		if count >= m.threshold {
			patterns = append(patterns, Pattern{
				Endpoint:  endpoint,
				Count:     count,
				Threshold: m.threshold,
			})
		}
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Count != patterns[j].Count {
			return patterns[i].Count > patterns[j].Count
		}
		return patterns[i].Endpoint < patterns[j].Endpoint
	})
	return patterns
}

// Summary aggregates the live window for the ops API.
func (m *Monitor) Summary() Summary {
	return Summary{
		Window:      m.window.String(),
		Total:       m.total.Count(),
		ByType:      m.byType.Counts(),
		BySeverity:  m.bySeverity.Counts(),
		ByEndpoint:  m.byEndpoint.Counts(),
		Patterns:    m.DetectErrorPatterns(),
		Escalations: m.events.Counts(),
		GeneratedAt: time.Now(),
	}
}

// Escalations lists stored events, newest first.
func (m *Monitor) Escalations(filter EventFilter) []EscalationEvent {
	return m.events.List(filter)
}

// Escalation returns one event by ID.
func (m *Monitor) Escalation(id string) (EscalationEvent, bool) {
	return m.events.Get(id)
}

// Acknowledge moves a pending escalation to acknowledged and records the
// assignee. Returns false when the event is unknown or already past pending.
func (m *Monitor) Acknowledge(id, assignee string) bool {
	event, ok := m.events.Acknowledge(id, assignee)
	if !ok {
		return false
	}
	metrics.EscalationTransitions.WithLabelValues(string(StatusAcknowledged)).Inc()
	m.log.Info().
		Str("escalation_id", id).
		Str("assignee", assignee).
		Msg("Escalation acknowledged")
	m.publish(EventAcknowledged, event)
	return true
}

// Resolve closes an escalation. Returns false when the event is unknown or
// already resolved.
func (m *Monitor) Resolve(id string) bool {
	event, ok := m.events.Resolve(id)
	if !ok {
		return false
	}
	metrics.EscalationTransitions.WithLabelValues(string(StatusResolved)).Inc()
	m.log.Info().Str("escalation_id", id).Msg("Escalation resolved")
	m.publish(EventResolved, event)
	return true
}

// publish fans a lifecycle transition out to listeners.
func (m *Monitor) publish(kind string, event EscalationEvent) {
	m.mu.Lock()
	listeners := append([]EventFunc(nil), m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(kind, event)
	}
}

// Run keeps the monitor's windows tidy until the context is cancelled.
// Designed to run under supervision.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info().
		Dur("window", m.window).
		Int64("pattern_threshold", m.threshold).
		Msg("Error monitor started")

	interval := m.window / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("Error monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep drops decayed counters and clears pattern flags for endpoints that
// fell back below the threshold.
func (m *Monitor) sweep() {
	removed := m.byType.CleanupInactive()
	removed += m.bySeverity.CleanupInactive()
	removed += m.byEndpoint.CleanupInactive()

	m.mu.Lock()
	for endpoint := range m.flagged {
		if m.byEndpoint.Count(endpoint) < m.threshold {
			delete(m.flagged, endpoint)
		}
	}
	m.mu.Unlock()

	if removed > 0 {
		m.log.Debug().Int("removed", removed).Msg("Swept inactive error counters")
	}
}

// String names the monitor for supervision logs.
func (m *Monitor) String() string {
	return "error_monitor"
}
