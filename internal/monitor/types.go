// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package monitor

import (
	"context"
	"time"

	"github.com/freightmesh/stevedore/internal/apierror"
)

// EscalationStatus tracks where an escalation event is in its lifecycle.
type EscalationStatus string

const (
	StatusPending      EscalationStatus = "pending"
	StatusAcknowledged EscalationStatus = "acknowledged"
	StatusResolved     EscalationStatus = "resolved"
)

// Condition describes when an escalation rule fires: Count matching errors
// within TimeWindowMinutes. Severity and ErrorType are optional filters; an
// empty value matches everything.
type Condition struct {
	Severity          apierror.Severity `json:"severity,omitempty"`
	ErrorType         apierror.Type     `json:"errorType,omitempty"`
	Count             int64             `json:"count"`
	TimeWindowMinutes int               `json:"timeWindowMinutes"`
}

// Matches reports whether a classified error falls under this condition's
// filters. It says nothing about counts; that is the monitor's job.
func (c Condition) Matches(cerr *apierror.ClassifiedError) bool {
	if c.Severity != "" && cerr.Severity != c.Severity {
		return false
	}
	if c.ErrorType != "" && cerr.Type != c.ErrorType {
		return false
	}
	return true
}

// Window returns the condition's evaluation window as a duration.
func (c Condition) Window() time.Duration {
	if c.TimeWindowMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.TimeWindowMinutes) * time.Minute
}

// EscalationRule pairs a threshold condition with the action taken when it
// fires. Name doubles as the rule identifier on events and metrics.
type EscalationRule struct {
	Name      string    `json:"name"`
	Condition Condition `json:"condition"`
	Action    string    `json:"action"`
}

// DefaultRules returns the standing escalation policy: any critical error
// escalates immediately, sustained high-severity errors escalate in bursts,
// and repeated auth failures escalate before the cooldown window closes.
func DefaultRules() []EscalationRule {
	return []EscalationRule{
		{
			Name:      "critical_error",
			Condition: Condition{Severity: apierror.SeverityCritical, Count: 1, TimeWindowMinutes: 15},
			Action:    "notify",
		},
		{
			Name:      "high_severity_burst",
			Condition: Condition{Severity: apierror.SeverityHigh, Count: 5, TimeWindowMinutes: 5},
			Action:    "notify",
		},
		{
			Name:      "repeated_auth_failures",
			Condition: Condition{ErrorType: apierror.TypeAuth, Count: 3, TimeWindowMinutes: 10},
			Action:    "notify",
		},
	}
}

// EscalationEvent is one raised escalation. Events are append-only: they are
// acknowledged and resolved in place but never deleted.
type EscalationEvent struct {
	ID             string            `json:"id"`
	Rule           string            `json:"rule"`
	Status         EscalationStatus  `json:"status"`
	Message        string            `json:"message"`
	Endpoint       string            `json:"endpoint,omitempty"`
	ErrorType      apierror.Type     `json:"errorType,omitempty"`
	Severity       apierror.Severity `json:"severity,omitempty"`
	Count          int64             `json:"count"`
	CreatedAt      time.Time         `json:"createdAt"`
	AssignedTo     string            `json:"assignedTo,omitempty"`
	AcknowledgedAt *time.Time        `json:"acknowledgedAt,omitempty"`
	ResolvedAt     *time.Time        `json:"resolvedAt,omitempty"`
}

// Open reports whether the event still needs attention.
func (e *EscalationEvent) Open() bool {
	return e.Status != StatusResolved
}

// Notifier delivers new escalation events to an external channel.
type Notifier interface {
	// Send delivers the event. Implementations may refuse for rate
	// limiting; the monitor records the outcome either way.
	Send(ctx context.Context, event *EscalationEvent) error

	// Name identifies the notifier in logs and metrics.
	Name() string

	// Enabled reports whether this notifier should receive events.
	Enabled() bool
}

// Pattern flags an endpoint whose error count crossed the repeated-failure
// threshold within the monitor's window.
type Pattern struct {
	Endpoint  string `json:"endpoint"`
	Count     int64  `json:"count"`
	Threshold int64  `json:"threshold"`
}

// EscalationCounts breaks open events down by lifecycle state.
type EscalationCounts struct {
	Pending      int `json:"pending"`
	Acknowledged int `json:"acknowledged"`
	Resolved     int `json:"resolved"`
}

// Summary is the aggregate view served by the ops API.
type Summary struct {
	Window      string           `json:"window"`
	Total       int64            `json:"total"`
	ByType      map[string]int64 `json:"byType"`
	BySeverity  map[string]int64 `json:"bySeverity"`
	ByEndpoint  map[string]int64 `json:"byEndpoint"`
	Patterns    []Pattern        `json:"patterns"`
	Escalations EscalationCounts `json:"escalations"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// Eligible reports whether an error qualifies for escalation tracking under
// the standing severity policy: high severity after more than two retries,
// or any critical error.
func Eligible(cerr *apierror.ClassifiedError) bool {
	if cerr == nil {
		return false
	}
	switch cerr.Severity {
	case apierror.SeverityCritical:
		return true
	case apierror.SeverityHigh:
		return cerr.Context.RetryCount > 2
	default:
		return false
	}
}
