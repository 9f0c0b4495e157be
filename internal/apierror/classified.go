// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package apierror

import (
	"errors"
	"fmt"
)

// ClassifiedError is a typed request failure. It wraps the underlying cause
// so errors.Is and errors.As keep working through it.
type ClassifiedError struct {
	Type        Type           `json:"type"`
	Severity    Severity       `json:"severity"`
	StatusCode  int            `json:"statusCode,omitempty"`
	Recoverable bool           `json:"recoverable"`
	Context     RequestContext `json:"context"`
	Message     string         `json:"message"`

	cause error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ClassifiedError) Unwrap() error {
	return e.cause
}

// UserMessage returns a message safe to show an operator. It is derived from
// the type, never from the technical Message, so internals do not leak.
func (e *ClassifiedError) UserMessage() string {
	switch e.Type {
	case TypeNetwork:
		return "Connection problem. Check your network and try again."
	case TypeTimeout:
		return "The request timed out. Please try again."
	case TypeAuth:
		if e.StatusCode == 403 {
			return "You do not have permission to perform this action."
		}
		return "Your session has expired. Please sign in again."
	case TypeParsing:
		return "Received an unexpected response from the platform."
	case TypeServer:
		return "The platform is temporarily unavailable. Please try again shortly."
	case TypeValidation:
		return "The request was rejected. Please review it and try again."
	default:
		return "Something went wrong. Please try again."
	}
}

// As extracts a ClassifiedError from an error chain.
func As(err error) (*ClassifiedError, bool) {
	var cerr *ClassifiedError
	ok := errors.As(err, &cerr)
	return cerr, ok
}

// IsRecoverable reports whether the error chain contains a classified error
// marked recoverable. Unclassified errors are not recoverable.
func IsRecoverable(err error) bool {
	cerr, ok := As(err)
	return ok && cerr.Recoverable
}
