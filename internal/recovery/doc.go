// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

// Package recovery turns classified request failures into actions: retry,
// degrade to fallback data, or hand control back to the operator.
//
// Each error type maps to exactly one strategy in a fixed table. Auth
// failures are delegated to the session manager, which decides between a
// silent refresh and forced reauthentication. Network, server and timeout
// failures burn a retry budget before degrading. Parsing failures never
// retry: a malformed response does not get better on the second read.
//
// Degradation serves data from a fixed priority chain: the last good
// response for the endpoint, a registered mock, a registered empty state,
// and finally a bare object. The admin surface stays rendered, visibly
// stale rather than blank.
package recovery
