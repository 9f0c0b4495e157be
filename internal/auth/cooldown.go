// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package auth

import (
	"time"

	"github.com/freightmesh/stevedore/internal/metrics"
)

// refreshCooldown tracks consecutive refresh failures and rejects further
// attempts for a window once the threshold is reached. Not safe for
// concurrent use on its own; the Manager guards it with its mutex.
type refreshCooldown struct {
	maxFailures int
	window      time.Duration

	failures    int
	lastFailure time.Time
}

func newRefreshCooldown(maxFailures int, window time.Duration) *refreshCooldown {
	return &refreshCooldown{
		maxFailures: maxFailures,
		window:      window,
	}
}

// Active reports whether refresh attempts are currently rejected and, if
// so, how long until the window reopens.
func (c *refreshCooldown) Active() (bool, time.Duration) {
	if c.failures < c.maxFailures {
		return false, 0
	}
	elapsed := time.Since(c.lastFailure)
	if elapsed >= c.window {
		metrics.CooldownActive.Set(0)
		return false, 0
	}
	return true, c.window - elapsed
}

// RecordFailure counts one failed refresh attempt.
func (c *refreshCooldown) RecordFailure() {
	c.failures++
	c.lastFailure = time.Now()
	if c.failures >= c.maxFailures {
		metrics.CooldownActive.Set(1)
	}
}

// Reset clears the failure history. Called on any successful refresh and on
// an explicit SetTokens or ClearTokens.
func (c *refreshCooldown) Reset() {
	c.failures = 0
	c.lastFailure = time.Time{}
	metrics.CooldownActive.Set(0)
}

// CooldownStatus is the externally visible cooldown state.
type CooldownStatus struct {
	ConsecutiveFailures int  `json:"consecutiveFailures"`
	Active              bool `json:"active"`
	RetryInSeconds      int  `json:"retryInSeconds,omitempty"`
}
