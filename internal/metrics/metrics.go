// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

// Package metrics exposes Prometheus instrumentation for the session core:
// token refresh outcomes, request pipeline latency and retries, recovery
// strategy results, cross-instance sync traffic, and escalation activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Token lifecycle metrics
	RefreshAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_refresh_attempts_total",
			Help: "Total token refresh attempts by outcome",
		},
		[]string{"outcome"}, // "success", "failure", "cooldown_rejected", "invalid_token"
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "session_refresh_duration_seconds",
			Help:    "Duration of token refresh round trips in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RefreshRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_refresh_retries_total",
			Help: "Total internal retries inside refresh attempts",
		},
	)

	ScheduledRefreshFires = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_scheduled_refresh_fires_total",
			Help: "Total pre-expiry refresh timer fires",
		},
	)

	TokenExpirySeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_token_expiry_seconds",
			Help: "Seconds until the current access token expires (0 when no token)",
		},
	)

	CooldownActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_refresh_cooldown_active",
			Help: "Whether the refresh cooldown is currently rejecting attempts (0 or 1)",
		},
	)

	// Request pipeline metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total gateway requests by method, endpoint and status code",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Gateway request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_request_retries_total",
			Help: "Total pipeline retry attempts by endpoint",
		},
		[]string{"endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of in-flight gateway requests",
		},
	)

	FallbacksServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_fallbacks_served_total",
			Help: "Total responses served from fallback data by source",
		},
		[]string{"source"}, // "cached", "mock", "empty_state", "default"
	)

	ErrorClassifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_error_classifications_total",
			Help: "Total classified request failures by type and severity",
		},
		[]string{"type", "severity"},
	)

	// Recovery metrics
	RecoveryOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recovery_outcomes_total",
			Help: "Total recovery strategy invocations by strategy and outcome",
		},
		[]string{"strategy", "outcome"}, // outcome: "retry", "fallback", "user_action", "unhandled"
	)

	StateValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_state_validations_total",
			Help: "Total auth state validations by detected level",
		},
		[]string{"level"}, // "valid", "minor", "major", "critical"
	)

	StateRecoveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_state_recoveries_total",
			Help: "Total auth state recovery runs by strategy and result",
		},
		[]string{"strategy", "result"}, // result: "success", "failure"
	)

	// Cross-instance session sync metrics
	SyncMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_sync_messages_total",
			Help: "Total session sync envelopes by transport and disposition",
		},
		[]string{"transport", "disposition"}, // "published", "applied", "dropped_own", "dropped_stale", "dropped_overflow"
	)

	SyncRehydrations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_sync_rehydrations_total",
			Help: "Total storage-watch triggered state rehydrations",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Error monitor metrics
	ErrorsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_errors_recorded_total",
			Help: "Total errors recorded by the monitor by type and severity",
		},
		[]string{"type", "severity"},
	)

	PatternsDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monitor_patterns_detected_total",
			Help: "Total repeated-failure patterns flagged by the monitor",
		},
	)

	EscalationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_escalations_created_total",
			Help: "Total escalation events created by rule",
		},
		[]string{"rule"},
	)

	EscalationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_escalation_transitions_total",
			Help: "Total escalation lifecycle transitions",
		},
		[]string{"to_status"}, // "acknowledged", "resolved"
	)

	WebhookNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_webhook_notifications_total",
			Help: "Total webhook notification attempts by outcome",
		},
		[]string{"outcome"}, // "sent", "failed", "rate_limited"
	)

	// Session store metrics
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_store_operations_total",
			Help: "Total session store operations by backend, operation and outcome",
		},
		[]string{"backend", "operation", "outcome"},
	)

	// System metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordRefreshAttempt records one refresh round trip.
func RecordRefreshAttempt(outcome string, duration time.Duration) {
	RefreshAttempts.WithLabelValues(outcome).Inc()
	if outcome == "success" || outcome == "failure" {
		RefreshDuration.Observe(duration.Seconds())
	}
}

// RecordAPIRequest records a completed gateway request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordClassification counts a classified failure.
func RecordClassification(errType, severity string) {
	ErrorClassifications.WithLabelValues(errType, severity).Inc()
}

// RecordRecovery counts a recovery strategy invocation.
func RecordRecovery(strategy, outcome string) {
	RecoveryOutcomes.WithLabelValues(strategy, outcome).Inc()
}

// RecordSyncMessage counts a session sync envelope.
func RecordSyncMessage(transport, disposition string) {
	SyncMessages.WithLabelValues(transport, disposition).Inc()
}

// RecordStoreOperation counts a session store operation.
func RecordStoreOperation(backend, operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	StoreOperations.WithLabelValues(backend, operation, outcome).Inc()
}

// UpdateBreakerState sets the state gauge for a named breaker.
func UpdateBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
