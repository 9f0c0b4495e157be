// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

// Package client executes gateway requests through the resilience pipeline:
// token acquisition, rate limiting, per-endpoint circuit breaking, a hard
// per-attempt timeout, safe response decoding, classification of every
// failure, and recovery-driven retries or degradation to fallback data.
//
// AdminClient layers the platform's typed admin resources on top of the
// pipeline; callers that need degradation detail (was this served from
// cache?) use the pipeline's Response directly.
package client
