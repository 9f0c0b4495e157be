// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package client

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// RetryPolicy shapes the pipeline's outer retry loop: how many attempts a
// request gets and how long to wait between them. It is a value object; the
// pipeline owns the loop.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget, first try included.
	MaxAttempts int

	// BaseDelay, Multiplier and Cap shape the exponential backoff.
	BaseDelay  time.Duration
	Multiplier float64
	Cap        time.Duration

	// JitterFraction spreads each delay by ±fraction to avoid retry
	// alignment across instances.
	JitterFraction float64

	rngMu sync.Mutex
	rng   *rand.Rand
}

// DefaultRetryPolicy matches the gateway contract: 3 attempts, 1s base,
// doubling, capped at 10s, with 10% jitter.
func DefaultRetryPolicy() *RetryPolicy {
	return NewRetryPolicyWithSeed(0)
}

// NewRetryPolicyWithSeed builds the default policy with a fixed jitter seed.
// A zero seed uses the clock; tests pass a non-zero seed for reproducible
// delays.
func NewRetryPolicyWithSeed(seed int64) *RetryPolicy {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		Multiplier:     2.0,
		Cap:            10 * time.Second,
		JitterFraction: 0.1,
		//nolint:gosec // G404: weak random is fine for backoff jitter
		rng: rand.New(rand.NewSource(seed)),
	}
}

// NextDelay returns the backoff before retry number retryCount (zero-based:
// the delay after the first failure is NextDelay(0)).
func (p *RetryPolicy) NextDelay(retryCount int) time.Duration {
	backoff := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(retryCount))
	if p.Cap > 0 && backoff > float64(p.Cap) {
		backoff = float64(p.Cap)
	}

	if p.JitterFraction > 0 && p.rng != nil {
		p.rngMu.Lock()
		backoff += backoff * p.JitterFraction * (p.rng.Float64()*2 - 1)
		p.rngMu.Unlock()
	}
	return time.Duration(backoff)
}

// withDefaults fills zero fields so a partially specified policy behaves.
func (p *RetryPolicy) withDefaults() *RetryPolicy {
	if p == nil {
		return DefaultRetryPolicy()
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	if p.Cap <= 0 {
		p.Cap = 10 * time.Second
	}
	if p.rng == nil {
		//nolint:gosec // G404: weak random is fine for backoff jitter
		p.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return p
}
