// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package apierror

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

// timeoutNetError satisfies net.Error with Timeout() true.
type timeoutNetError struct{}

func (timeoutNetError) Error() string   { return "i/o wait expired" }
func (timeoutNetError) Timeout() bool   { return true }
func (timeoutNetError) Temporary() bool { return false }

func testContext() RequestContext {
	return RequestContext{
		Endpoint:  "/api/v1/bookings",
		Method:    "GET",
		Component: "admin-client",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func jsonSyntaxError(t *testing.T) error {
	t.Helper()
	var v map[string]any
	err := json.Unmarshal([]byte("{bad"), &v)
	if err == nil {
		t.Fatal("expected a syntax error from malformed JSON")
	}
	return err
}

func TestClassifyTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		statusCode  int
		wantType    Type
		wantSev     Severity
		wantRecover bool
	}{
		{
			name:        "connection refused",
			err:         fmt.Errorf("dial tcp 127.0.0.1:443: %w", syscall.ECONNREFUSED),
			wantType:    TypeNetwork,
			wantSev:     SeverityMedium,
			wantRecover: true,
		},
		{
			name:        "dns failure",
			err:         &net.DNSError{Err: "no such host", Name: "gateway.freightmesh.io"},
			wantType:    TypeNetwork,
			wantSev:     SeverityMedium,
			wantRecover: true,
		},
		{
			name:        "transport error",
			err:         &url.Error{Op: "Get", URL: "https://gateway.freightmesh.io", Err: errors.New("connection reset by peer")},
			wantType:    TypeNetwork,
			wantSev:     SeverityMedium,
			wantRecover: true,
		},
		{
			name:        "deadline exceeded",
			err:         context.DeadlineExceeded,
			wantType:    TypeTimeout,
			wantSev:     SeverityMedium,
			wantRecover: true,
		},
		{
			name:        "cancelled request",
			err:         context.Canceled,
			wantType:    TypeTimeout,
			wantSev:     SeverityMedium,
			wantRecover: true,
		},
		{
			name:        "net error reporting timeout",
			err:         timeoutNetError{},
			wantType:    TypeTimeout,
			wantSev:     SeverityMedium,
			wantRecover: true,
		},
		{
			name:        "timeout mentioned in message",
			err:         errors.New("request timed out waiting for response"),
			wantType:    TypeTimeout,
			wantSev:     SeverityMedium,
			wantRecover: true,
		},
		{
			name:        "unauthorized",
			statusCode:  401,
			wantType:    TypeAuth,
			wantSev:     SeverityHigh,
			wantRecover: true,
		},
		{
			name:        "forbidden",
			statusCode:  403,
			wantType:    TypeAuth,
			wantSev:     SeverityHigh,
			wantRecover: false,
		},
		{
			name:        "parse mentioned in message",
			err:         errors.New("failed to parse response body"),
			wantType:    TypeParsing,
			wantSev:     SeverityMedium,
			wantRecover: false,
		},
		{
			name:        "internal server error",
			statusCode:  500,
			wantType:    TypeServer,
			wantSev:     SeverityCritical,
			wantRecover: true,
		},
		{
			name:        "bad gateway",
			statusCode:  502,
			wantType:    TypeServer,
			wantSev:     SeverityHigh,
			wantRecover: true,
		},
		{
			name:        "service unavailable",
			statusCode:  503,
			wantType:    TypeServer,
			wantSev:     SeverityHigh,
			wantRecover: true,
		},
		{
			name:        "not found",
			statusCode:  404,
			wantType:    TypeValidation,
			wantSev:     SeverityLow,
			wantRecover: false,
		},
		{
			name:        "bad request",
			statusCode:  400,
			wantType:    TypeValidation,
			wantSev:     SeverityLow,
			wantRecover: false,
		},
		{
			name:        "unclassifiable error",
			err:         errors.New("something odd happened"),
			wantType:    TypeUnknown,
			wantSev:     SeverityMedium,
			wantRecover: false,
		},
		{
			name:        "no error no status",
			wantType:    TypeUnknown,
			wantSev:     SeverityMedium,
			wantRecover: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Classify(tt.err, testContext(), tt.statusCode)
			if got.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", got.Type, tt.wantType)
			}
			if got.Severity != tt.wantSev {
				t.Errorf("Severity = %q, want %q", got.Severity, tt.wantSev)
			}
			if got.Recoverable != tt.wantRecover {
				t.Errorf("Recoverable = %v, want %v", got.Recoverable, tt.wantRecover)
			}
			if got.StatusCode != tt.statusCode {
				t.Errorf("StatusCode = %d, want %d", got.StatusCode, tt.statusCode)
			}
		})
	}
}

func TestClassifyJSONErrors(t *testing.T) {
	t.Parallel()

	syntaxErr := jsonSyntaxError(t)
	got := Classify(syntaxErr, testContext(), 0)
	if got.Type != TypeParsing {
		t.Errorf("syntax error Type = %q, want %q", got.Type, TypeParsing)
	}
	if got.Recoverable {
		t.Error("parsing errors must not be recoverable")
	}

	var n int
	typeErr := json.Unmarshal([]byte(`"text"`), &n)
	if typeErr == nil {
		t.Fatal("expected an unmarshal type error")
	}
	got = Classify(typeErr, testContext(), 0)
	if got.Type != TypeParsing {
		t.Errorf("type error Type = %q, want %q", got.Type, TypeParsing)
	}
}

func TestClassifyPrecedence(t *testing.T) {
	t.Parallel()

	// A timed-out transport error is a timeout, not a network failure.
	timedOut := &url.Error{Op: "Get", URL: "https://gateway.freightmesh.io", Err: context.DeadlineExceeded}
	if got := Classify(timedOut, testContext(), 0); got.Type != TypeTimeout {
		t.Errorf("timed-out transport Type = %q, want %q", got.Type, TypeTimeout)
	}

	// A connection error wins over any status code that arrived with it.
	netErr := &url.Error{Op: "Get", URL: "https://gateway.freightmesh.io", Err: errors.New("connection refused")}
	if got := Classify(netErr, testContext(), 500); got.Type != TypeNetwork {
		t.Errorf("network error with status Type = %q, want %q", got.Type, TypeNetwork)
	}

	// A parse failure on a 5xx body classifies as parsing, not server.
	if got := Classify(errors.New("unmarshal response: unexpected end of input"), testContext(), 502); got.Type != TypeParsing {
		t.Errorf("parse error with 5xx Type = %q, want %q", got.Type, TypeParsing)
	}
}

func TestClassifyDeterminism(t *testing.T) {
	t.Parallel()

	reqCtx := testContext()
	err := fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED)

	first := Classify(err, reqCtx, 0)
	for i := 0; i < 100; i++ {
		got := Classify(err, reqCtx, 0)
		if got.Type != first.Type || got.Severity != first.Severity ||
			got.Recoverable != first.Recoverable || got.Message != first.Message {
			t.Fatalf("classification diverged on iteration %d: %+v vs %+v", i, got, first)
		}
	}
}

func TestClassifyRetainsContext(t *testing.T) {
	t.Parallel()

	reqCtx := testContext().WithRetry(2)
	got := Classify(errors.New("boom"), reqCtx, 0)
	if got.Context.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", got.Context.RetryCount)
	}
	if got.Context.Endpoint != "/api/v1/bookings" {
		t.Errorf("Endpoint = %q", got.Context.Endpoint)
	}
}

func TestWithRetryCopies(t *testing.T) {
	t.Parallel()

	orig := testContext()
	bumped := orig.WithRetry(3)
	if orig.RetryCount != 0 {
		t.Errorf("original mutated: RetryCount = %d", orig.RetryCount)
	}
	if bumped.RetryCount != 3 {
		t.Errorf("copy RetryCount = %d, want 3", bumped.RetryCount)
	}
}
