// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package monitor

import (
	"fmt"
	"testing"
	"time"
)

func newTestEvent(id, rule, endpoint string) *EscalationEvent {
	return &EscalationEvent{
		ID:        id,
		Rule:      rule,
		Status:    StatusPending,
		Endpoint:  endpoint,
		CreatedAt: time.Now(),
	}
}

func TestEventStoreAppendAndGet(t *testing.T) {
	t.Parallel()

	store := NewEventStore()
	store.Append(newTestEvent("01A", "critical_error", "/api/v1/bookings"))

	event, ok := store.Get("01A")
	if !ok {
		t.Fatal("Get(01A) not found")
	}
	if event.Rule != "critical_error" {
		t.Errorf("Rule = %q, want %q", event.Rule, "critical_error")
	}
	if event.Status != StatusPending {
		t.Errorf("Status = %q, want %q", event.Status, StatusPending)
	}

	if _, ok := store.Get("missing"); ok {
		t.Error("Get(missing) should report not found")
	}
}

func TestEventStoreIgnoresDuplicatesAndEmptyIDs(t *testing.T) {
	t.Parallel()

	store := NewEventStore()
	store.Append(newTestEvent("01A", "first", "/a"))
	store.Append(newTestEvent("01A", "second", "/b"))
	store.Append(newTestEvent("", "empty", "/c"))
	store.Append(nil)

	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", store.Len())
	}
	event, _ := store.Get("01A")
	if event.Rule != "first" {
		t.Errorf("duplicate append replaced event: rule = %q", event.Rule)
	}
}

func TestEventStoreListNewestFirst(t *testing.T) {
	t.Parallel()

	store := NewEventStore()
	for i := 0; i < 5; i++ {
		store.Append(newTestEvent(fmt.Sprintf("%02d", i), "burst", "/api/v1/disputes"))
	}

	events := store.List(EventFilter{})
	if len(events) != 5 {
		t.Fatalf("List returned %d events, want 5", len(events))
	}
	if events[0].ID != "04" || events[4].ID != "00" {
		t.Errorf("List order = [%s ... %s], want newest first", events[0].ID, events[4].ID)
	}

	limited := store.List(EventFilter{Limit: 2})
	if len(limited) != 2 || limited[0].ID != "04" {
		t.Errorf("List(Limit:2) = %v", limited)
	}
}

func TestEventStoreListFilters(t *testing.T) {
	t.Parallel()

	store := NewEventStore()
	store.Append(newTestEvent("a", "critical_error", "/x"))
	store.Append(newTestEvent("b", "high_severity_burst", "/y"))
	store.Append(newTestEvent("c", "critical_error", "/z"))
	store.Resolve("c")

	tests := []struct {
		name   string
		filter EventFilter
		want   []string
	}{
		{"by rule", EventFilter{Rule: "critical_error"}, []string{"c", "a"}},
		{"by status pending", EventFilter{Status: StatusPending}, []string{"b", "a"}},
		{"by status resolved", EventFilter{Status: StatusResolved}, []string{"c"}},
		{"rule and status", EventFilter{Rule: "critical_error", Status: StatusPending}, []string{"a"}},
		{"no match", EventFilter{Rule: "nothing"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := store.List(tt.filter)
			if len(events) != len(tt.want) {
				t.Fatalf("List(%+v) returned %d events, want %d", tt.filter, len(events), len(tt.want))
			}
			for i, id := range tt.want {
				if events[i].ID != id {
					t.Errorf("events[%d].ID = %q, want %q", i, events[i].ID, id)
				}
			}
		})
	}
}

func TestEventStoreAcknowledgeLifecycle(t *testing.T) {
	t.Parallel()

	store := NewEventStore()
	store.Append(newTestEvent("ev1", "burst", "/api/v1/bookings"))

	event, ok := store.Acknowledge("ev1", "oncall")
	if !ok {
		t.Fatal("Acknowledge on pending event should succeed")
	}
	if event.Status != StatusAcknowledged {
		t.Errorf("Status = %q, want %q", event.Status, StatusAcknowledged)
	}
	if event.AssignedTo != "oncall" {
		t.Errorf("AssignedTo = %q, want %q", event.AssignedTo, "oncall")
	}
	if event.AcknowledgedAt == nil {
		t.Error("AcknowledgedAt should be set")
	}

	// Second acknowledge is a no-op, not an error.
	if _, ok := store.Acknowledge("ev1", "someone-else"); ok {
		t.Error("Acknowledge on acknowledged event should return false")
	}
	stored, _ := store.Get("ev1")
	if stored.AssignedTo != "oncall" {
		t.Errorf("AssignedTo changed to %q on repeat acknowledge", stored.AssignedTo)
	}

	if _, ok := store.Acknowledge("unknown", "oncall"); ok {
		t.Error("Acknowledge on unknown event should return false")
	}
}

func TestEventStoreResolveLifecycle(t *testing.T) {
	t.Parallel()

	store := NewEventStore()
	store.Append(newTestEvent("pend", "burst", "/a"))
	store.Append(newTestEvent("ackd", "burst", "/b"))
	store.Acknowledge("ackd", "oncall")

	// Pending events may resolve directly.
	event, ok := store.Resolve("pend")
	if !ok {
		t.Fatal("Resolve on pending event should succeed")
	}
	if event.Status != StatusResolved || event.ResolvedAt == nil {
		t.Errorf("resolved event = %+v", event)
	}

	if _, ok := store.Resolve("ackd"); !ok {
		t.Error("Resolve on acknowledged event should succeed")
	}

	if _, ok := store.Resolve("pend"); ok {
		t.Error("Resolve on resolved event should return false")
	}
	if _, ok := store.Resolve("unknown"); ok {
		t.Error("Resolve on unknown event should return false")
	}

	// Acknowledge after resolve stays a no-op.
	if _, ok := store.Acknowledge("pend", "late"); ok {
		t.Error("Acknowledge on resolved event should return false")
	}
}

func TestEventStoreCounts(t *testing.T) {
	t.Parallel()

	store := NewEventStore()
	store.Append(newTestEvent("1", "r", "/a"))
	store.Append(newTestEvent("2", "r", "/b"))
	store.Append(newTestEvent("3", "r", "/c"))
	store.Acknowledge("2", "oncall")
	store.Resolve("3")

	counts := store.Counts()
	if counts.Pending != 1 || counts.Acknowledged != 1 || counts.Resolved != 1 {
		t.Errorf("Counts() = %+v, want one of each", counts)
	}
}

func TestEventStoreHasOpen(t *testing.T) {
	t.Parallel()

	store := NewEventStore()
	store.Append(newTestEvent("1", "burst", "/api/v1/bookings"))

	if !store.HasOpen("burst", "/api/v1/bookings") {
		t.Error("HasOpen should see the pending event")
	}
	if store.HasOpen("burst", "/api/v1/disputes") {
		t.Error("HasOpen should not match a different endpoint")
	}
	if store.HasOpen("other", "/api/v1/bookings") {
		t.Error("HasOpen should not match a different rule")
	}

	store.Acknowledge("1", "oncall")
	if !store.HasOpen("burst", "/api/v1/bookings") {
		t.Error("acknowledged events are still open")
	}

	store.Resolve("1")
	if store.HasOpen("burst", "/api/v1/bookings") {
		t.Error("resolved events are not open")
	}
}
