// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCooldownActivatesAtThreshold(t *testing.T) {
	t.Parallel()

	c := newRefreshCooldown(3, time.Minute)

	for i := 0; i < 2; i++ {
		c.RecordFailure()
		if active, _ := c.Active(); active {
			t.Fatalf("cooldown active after %d failures, threshold is 3", i+1)
		}
	}

	c.RecordFailure()
	active, remaining := c.Active()
	if !active {
		t.Fatal("cooldown should be active after 3 failures")
	}
	if remaining <= 0 || remaining > time.Minute {
		t.Errorf("remaining = %v, want within (0, 1m]", remaining)
	}
}

func TestCooldownWindowElapses(t *testing.T) {
	t.Parallel()

	c := newRefreshCooldown(2, 40*time.Millisecond)
	c.RecordFailure()
	c.RecordFailure()

	if active, _ := c.Active(); !active {
		t.Fatal("cooldown should be active")
	}

	time.Sleep(60 * time.Millisecond)
	if active, _ := c.Active(); active {
		t.Error("cooldown still active after the window elapsed")
	}
}

func TestCooldownReset(t *testing.T) {
	t.Parallel()

	c := newRefreshCooldown(2, time.Minute)
	c.RecordFailure()
	c.RecordFailure()
	c.Reset()

	if active, _ := c.Active(); active {
		t.Error("cooldown active after reset")
	}
	if c.failures != 0 {
		t.Errorf("failures = %d after reset, want 0", c.failures)
	}
}

func TestCooldownErrorCarriesRemaining(t *testing.T) {
	t.Parallel()

	err := &CooldownError{Remaining: 272 * time.Second}

	if !errors.Is(err, ErrRefreshCooldown) {
		t.Error("CooldownError should match ErrRefreshCooldown")
	}
	if !strings.Contains(err.Error(), "272s") {
		t.Errorf("error message %q should include the remaining seconds", err.Error())
	}

	var ce *CooldownError
	if !errors.As(err, &ce) || ce.Remaining != 272*time.Second {
		t.Error("errors.As should recover the remaining duration")
	}
}
