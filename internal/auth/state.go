// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package auth

import "time"

// TokenState is the token quadruple owned by the Manager. Other components
// only ever see snapshot copies. Invariant: an empty AccessToken implies an
// empty RefreshToken; a dangling refresh token is a corruption signal picked
// up by the StateValidator.
type TokenState struct {
	AccessToken  string     `json:"accessToken,omitempty"`
	RefreshToken string     `json:"refreshToken,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	LastRefresh  *time.Time `json:"lastRefresh,omitempty"`
	IsRefreshing bool       `json:"isRefreshing,omitempty"`
}

// IsEmpty reports whether the state holds no tokens at all.
func (s TokenState) IsEmpty() bool {
	return s.AccessToken == "" && s.RefreshToken == ""
}

// Clone returns a deep copy so callers cannot mutate the Manager's state
// through the shared time pointers.
func (s TokenState) Clone() TokenState {
	out := s
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		out.ExpiresAt = &t
	}
	if s.LastRefresh != nil {
		t := *s.LastRefresh
		out.LastRefresh = &t
	}
	return out
}

// TokenValid is the validity predicate for an access token: the token must
// be non-empty and, when an expiry is known, now must still be earlier than
// expiry minus the buffer. A token with no known expiry is treated as valid;
// the gateway is the final arbiter.
func TokenValid(token string, expiresAt *time.Time, buffer time.Duration, now time.Time) bool {
	if token == "" {
		return false
	}
	if expiresAt == nil {
		return true
	}
	return now.Before(expiresAt.Add(-buffer))
}
