// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package models

// Pagination describes the page window the gateway returned.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// BookingList is the gateway envelope for booking listings.
type BookingList struct {
	Items      []Booking  `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// DisputeList is the gateway envelope for dispute listings.
type DisputeList struct {
	Items      []Dispute  `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// TransactionList is the gateway envelope for transaction listings.
type TransactionList struct {
	Items      []Transaction `json:"items"`
	Pagination Pagination    `json:"pagination"`
}

// FeatureFlagList is the gateway envelope for feature flag listings. Flags
// are not paginated; the gateway returns the full set.
type FeatureFlagList struct {
	Items []FeatureFlag `json:"items"`
}

// AuditLogList is the gateway envelope for audit log listings.
type AuditLogList struct {
	Items      []AuditLogEntry `json:"items"`
	Pagination Pagination      `json:"pagination"`
}
