// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package models

import "time"

// Booking statuses as reported by the gateway.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusInTransit = "in_transit"
	BookingStatusDelivered = "delivered"
	BookingStatusCancelled = "cancelled"
)

// Dispute statuses.
const (
	DisputeStatusOpen     = "open"
	DisputeStatusReview   = "under_review"
	DisputeStatusResolved = "resolved"
	DisputeStatusRejected = "rejected"
)

// Booking is a shipment booking between a shipper and a carrier.
type Booking struct {
	ID          string     `json:"id"`
	Reference   string     `json:"reference"`
	ShipperID   string     `json:"shipperId"`
	CarrierID   string     `json:"carrierId"`
	Status      string     `json:"status"`
	Origin      string     `json:"origin"`
	Destination string     `json:"destination"`
	CargoType   string     `json:"cargoType,omitempty"`
	WeightKg    float64    `json:"weightKg,omitempty"`
	PriceCents  int64      `json:"priceCents"`
	Currency    string     `json:"currency"`
	PickupAt    *time.Time `json:"pickupAt,omitempty"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Dispute is a disagreement raised against a booking, usually over damage,
// delay, or payment.
type Dispute struct {
	ID         string     `json:"id"`
	BookingID  string     `json:"bookingId"`
	RaisedBy   string     `json:"raisedBy"`
	Status     string     `json:"status"`
	Reason     string     `json:"reason"`
	Details    string     `json:"details,omitempty"`
	AssignedTo string     `json:"assignedTo,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Transaction is a ledger entry tied to a booking: charge, payout, or refund.
type Transaction struct {
	ID          string    `json:"id"`
	BookingID   string    `json:"bookingId"`
	Kind        string    `json:"kind"` // charge, payout, refund
	AmountCents int64     `json:"amountCents"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	Reference   string    `json:"reference,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FeatureFlag is a platform feature toggle. Admins read these to know what
// the marketplace currently exposes; writes go through a separate service.
type FeatureFlag struct {
	Key         string    `json:"key"`
	Enabled     bool      `json:"enabled"`
	Description string    `json:"description,omitempty"`
	Rollout     int       `json:"rollout"` // percentage 0-100
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AuditLogEntry records an admin action on the platform.
type AuditLogEntry struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actorId"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	Detail    string    `json:"detail,omitempty"`
	IP        string    `json:"ip,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
