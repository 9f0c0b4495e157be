// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

// Package auth owns the token lifecycle for a Freightmesh admin session.
//
// The Manager holds the authoritative in-memory TokenState and coordinates
// everything that mutates it: login (SetTokens), logout (ClearTokens),
// single-flight refresh against the gateway, a proactive pre-expiry refresh
// timer, and a failure cooldown that stops refresh storms when the gateway
// rejects every attempt. Tokens are persisted through a Store so sessions
// survive restarts, with the refresh token optionally encrypted at rest.
//
// StateValidator and StateRecovery sit beside the Manager: the validator
// detects drift between the in-memory session, the persisted keys, and the
// token contents; the recovery machine repairs what it can (cleanup,
// degraded session-only mode) and forces a full reset when it cannot.
package auth
