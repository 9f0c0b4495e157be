// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoToken indicates there is no access token and no refresh token
	// to obtain one with.
	ErrNoToken = errors.New("no authentication token available")

	// ErrRefreshFailed indicates the refresh protocol exhausted its
	// attempt budget without obtaining a new token.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrInvalidRefreshToken indicates the gateway rejected the refresh
	// token itself (HTTP 401/403 from the refresh endpoint).
	ErrInvalidRefreshToken = errors.New("refresh token rejected by gateway")

	// ErrRefreshCooldown matches any cooldown rejection via errors.Is.
	ErrRefreshCooldown = errors.New("token refresh in cooldown")

	// ErrReauthRequired indicates the session cannot be repaired without
	// the user signing in again.
	ErrReauthRequired = errors.New("reauthentication required")

	// ErrManagerClosed is returned by all Manager operations after Close.
	ErrManagerClosed = errors.New("token manager closed")

	// ErrKeyNotFound is returned by Store.Get for an absent key.
	ErrKeyNotFound = errors.New("storage key not found")
)

// CooldownError is returned while the refresh cooldown is active. It carries
// the time remaining until refresh attempts are permitted again.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("token refresh in cooldown, retry in %ds", int(e.Remaining.Seconds()))
}

// Unwrap lets errors.Is(err, ErrRefreshCooldown) match.
func (e *CooldownError) Unwrap() error {
	return ErrRefreshCooldown
}
