// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package models

import "time"

// Role constants define the standard roles on the admin platform.
const (
	// RoleSupport is the default role with read-only access.
	RoleSupport = "support"

	// RoleOperator can act on bookings and disputes.
	RoleOperator = "operator"

	// RoleAdmin has full platform access including feature flags.
	RoleAdmin = "admin"
)

// ValidRoles contains all valid role names for validation.
var ValidRoles = []string{RoleSupport, RoleOperator, RoleAdmin}

// IsValidRole checks if a role name is valid.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// AdminUser is the authenticated platform operator. The gateway returns it
// in camelCase JSON; the session layer persists it alongside the tokens and
// the state validator cross-checks it against them.
type AdminUser struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

// Clone returns a deep copy so callers can hold a snapshot without racing
// the session layer.
func (u *AdminUser) Clone() *AdminUser {
	if u == nil {
		return nil
	}
	clone := *u
	if u.LastLogin != nil {
		t := *u.LastLogin
		clone.LastLogin = &t
	}
	return &clone
}
