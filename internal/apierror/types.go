// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

// Package apierror classifies raw request failures into typed errors with
// severity and recoverability. Classification is a pure function: identical
// inputs always produce identical results, which the recovery layer and the
// error monitor both rely on.
package apierror

import "time"

// Type identifies the failure class of a request.
type Type string

const (
	// TypeNetwork covers connection-level failures: refused, reset, DNS.
	TypeNetwork Type = "network"

	// TypeTimeout covers deadline expiry and cancelled requests.
	TypeTimeout Type = "timeout"

	// TypeAuth covers 401 and 403 responses.
	TypeAuth Type = "auth"

	// TypeParsing covers malformed response bodies.
	TypeParsing Type = "parsing"

	// TypeServer covers 5xx responses.
	TypeServer Type = "server"

	// TypeValidation covers the remaining 4xx responses.
	TypeValidation Type = "validation"

	// TypeUnknown is the fallback for anything unclassified.
	TypeUnknown Type = "unknown"
)

// Severity grades how bad a classified error is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RequestContext travels with a single request attempt chain. RetryCount
// increments per internal retry; the rest is fixed at request start.
type RequestContext struct {
	Endpoint   string    `json:"endpoint"`
	Method     string    `json:"method"`
	Component  string    `json:"component"`
	Timestamp  time.Time `json:"timestamp"`
	RetryCount int       `json:"retryCount"`
	UserID     string    `json:"userId,omitempty"`
	SessionID  string    `json:"sessionId,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
}

// WithRetry returns a copy of the context with the retry counter set.
func (c RequestContext) WithRetry(count int) RequestContext {
	c.RetryCount = count
	return c
}
