// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package apierror

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"

	json "github.com/goccy/go-json"
)

// Classify maps a raw failure to a ClassifiedError. Rules are evaluated in a
// fixed order: connection-level checks, then timeout, then status-code rules,
// with parsing checked before the generic status buckets. statusCode is 0
// when no HTTP response was received.
func Classify(err error, reqCtx RequestContext, statusCode int) *ClassifiedError {
	cerr := &ClassifiedError{
		StatusCode: statusCode,
		Context:    reqCtx,
		cause:      err,
	}
	if err != nil {
		cerr.Message = err.Error()
	} else {
		cerr.Message = "request failed"
	}

	switch {
	case err != nil && isNetworkError(err):
		cerr.Type = TypeNetwork
		cerr.Severity = SeverityMedium
		cerr.Recoverable = true

	case err != nil && isTimeoutError(err):
		cerr.Type = TypeTimeout
		cerr.Severity = SeverityMedium
		cerr.Recoverable = true

	case statusCode == 401 || statusCode == 403:
		cerr.Type = TypeAuth
		cerr.Severity = SeverityHigh
		cerr.Recoverable = statusCode == 401

	case err != nil && isParseError(err):
		cerr.Type = TypeParsing
		cerr.Severity = SeverityMedium
		cerr.Recoverable = false

	case statusCode >= 500:
		cerr.Type = TypeServer
		if statusCode == 500 {
			cerr.Severity = SeverityCritical
		} else {
			cerr.Severity = SeverityHigh
		}
		cerr.Recoverable = true

	case statusCode >= 400:
		cerr.Type = TypeValidation
		cerr.Severity = SeverityLow
		cerr.Recoverable = false

	default:
		cerr.Type = TypeUnknown
		cerr.Severity = SeverityMedium
		cerr.Recoverable = false
	}

	return cerr
}

// isTimeoutError reports deadline expiry or cancellation. Checked before the
// status rules and excluded from isNetworkError so a timed-out connection
// classifies as timeout, not network.
func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return containsAny(err.Error(), "timeout", "timed out", "deadline exceeded")
}

// isNetworkError reports connection-level failures: refused, reset, DNS,
// or a transport error from the HTTP client.
func isNetworkError(err error) bool {
	if isTimeoutError(err) {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return containsAny(err.Error(), "connection refused", "connection reset",
		"no such host", "network is unreachable", "broken pipe")
}

// isParseError reports malformed response bodies.
func isParseError(err error) bool {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return true
	}
	return containsAny(err.Error(), "json", "parse", "unmarshal", "unexpected end of")
}

// containsAny checks if the string contains any of the substrings,
// case-insensitively.
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
