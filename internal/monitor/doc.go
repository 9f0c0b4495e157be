// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

// Package monitor aggregates classified request errors and raises escalation
// events when failure patterns cross configured thresholds.
//
// Monitoring Architecture:
//
//	ClassifiedError -> Monitor -> EscalationEvent -> Notifiers
//	                    |              |
//	                    v              v
//	             Sliding Windows   Webhook/Event Stream
//
// Every error reaching the monitor is counted in sliding windows keyed by
// error type, severity, and endpoint. Endpoints that fail repeatedly within
// one window are flagged as patterns. Escalation rules are evaluated on
// every recorded error: each rule keeps its own window counter, and when the
// count crosses the rule's threshold the monitor opens an EscalationEvent.
//
// Escalation events carry a ULID, start in pending state, and move through
// acknowledged to resolved. Both transitions are idempotent and report
// whether they changed anything; events are never deleted, so the full
// escalation history stays queryable through the ops API.
package monitor
