// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package monitor

import (
	"sync"
	"time"
)

// EventFilter narrows List results. Zero values match everything.
type EventFilter struct {
	Status EscalationStatus
	Rule   string
	Limit  int
}

// EventStore keeps escalation events in memory. Events are mutated in place
// by acknowledge and resolve but never removed; the history is the audit
// trail the ops API serves.
type EventStore struct {
	mu     sync.RWMutex
	events []*EscalationEvent
	byID   map[string]*EscalationEvent
}

// NewEventStore creates an empty store.
func NewEventStore() *EventStore {
	return &EventStore{
		byID: make(map[string]*EscalationEvent),
	}
}

// Append adds a new event. The caller owns the ID's uniqueness; a duplicate
// ID replaces nothing and is dropped.
func (s *EventStore) Append(event *EscalationEvent) {
	if event == nil || event.ID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[event.ID]; exists {
		return
	}
	s.events = append(s.events, event)
	s.byID[event.ID] = event
}

// Get returns a copy of the event, or false when unknown.
func (s *EventStore) Get(id string) (EscalationEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.byID[id]
	if !ok {
		return EscalationEvent{}, false
	}
	return *event, true
}

// List returns matching events, newest first.
func (s *EventStore) List(filter EventFilter) []EscalationEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]EscalationEvent, 0, len(s.events))
	for i := len(s.events) - 1; i >= 0; i-- {
		event := s.events[i]
		if filter.Status != "" && event.Status != filter.Status {
			continue
		}
		if filter.Rule != "" && event.Rule != filter.Rule {
			continue
		}
		out = append(out, *event)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// Len returns the total number of stored events.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Counts tallies events by lifecycle state.
func (s *EventStore) Counts() EscalationCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var counts EscalationCounts
	for _, event := range s.events {
		switch event.Status {
		case StatusPending:
			counts.Pending++
		case StatusAcknowledged:
			counts.Acknowledged++
		case StatusResolved:
			counts.Resolved++
		}
	}
	return counts
}

// HasOpen reports whether an unresolved event exists for rule and endpoint.
// Used to collapse repeated firings into one open event.
func (s *EventStore) HasOpen(rule, endpoint string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, event := range s.events {
		if event.Rule == rule && event.Endpoint == endpoint && event.Open() {
			return true
		}
	}
	return false
}

// Acknowledge moves a pending event to acknowledged and records the
// assignee. Returns false without error when the event is unknown or
// already past pending.
func (s *EventStore) Acknowledge(id, assignee string) (EscalationEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.byID[id]
	if !ok || event.Status != StatusPending {
		return EscalationEvent{}, false
	}

	now := time.Now()
	event.Status = StatusAcknowledged
	event.AssignedTo = assignee
	event.AcknowledgedAt = &now
	return *event, true
}

// Resolve closes an event and records the resolution time. Pending events
// may resolve directly. Returns false without error when the event is
// unknown or already resolved.
func (s *EventStore) Resolve(id string) (EscalationEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.byID[id]
	if !ok || event.Status == StatusResolved {
		return EscalationEvent{}, false
	}

	now := time.Now()
	event.Status = StatusResolved
	event.ResolvedAt = &now
	return *event, true
}
