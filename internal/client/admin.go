// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/freightmesh/stevedore/internal/models"
)

// AdminClient exposes the platform's admin resources as typed calls over
// the pipeline. Every method inherits the full resilience stack; a call
// answered from fallback data decodes like a live one. Callers that need
// to distinguish degraded answers use Pipeline.Do directly.
type AdminClient struct {
	pipeline *Pipeline
}

// NewAdminClient wraps an existing pipeline.
func NewAdminClient(p *Pipeline) *AdminClient {
	return &AdminClient{pipeline: p}
}

// ListOptions narrows list calls. Zero values are omitted from the query.
type ListOptions struct {
	Page    int
	PerPage int
	Status  string
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PerPage > 0 {
		q.Set("perPage", strconv.Itoa(o.PerPage))
	}
	if o.Status != "" {
		q.Set("status", o.Status)
	}
	return q
}

// get runs a GET through the pipeline and decodes the payload into out.
func (c *AdminClient) get(ctx context.Context, path string, query url.Values, component string, out any) error {
	resp, err := c.pipeline.Do(ctx, Request{
		Method:    http.MethodGet,
		Path:      path,
		Query:     query,
		Component: component,
	})
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// ListBookings returns a page of shipment bookings.
func (c *AdminClient) ListBookings(ctx context.Context, opts ListOptions) (*models.BookingList, error) {
	var list models.BookingList
	if err := c.get(ctx, "/admin/bookings", opts.query(), "bookings", &list); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return &list, nil
}

// GetBooking returns one booking by ID.
func (c *AdminClient) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	if id == "" {
		return nil, fmt.Errorf("booking id required")
	}
	var booking models.Booking
	if err := c.get(ctx, "/admin/bookings/"+url.PathEscape(id), nil, "bookings", &booking); err != nil {
		return nil, fmt.Errorf("get booking %s: %w", id, err)
	}
	return &booking, nil
}

// ListDisputes returns a page of disputes.
func (c *AdminClient) ListDisputes(ctx context.Context, opts ListOptions) (*models.DisputeList, error) {
	var list models.DisputeList
	if err := c.get(ctx, "/admin/disputes", opts.query(), "disputes", &list); err != nil {
		return nil, fmt.Errorf("list disputes: %w", err)
	}
	return &list, nil
}

// GetDispute returns one dispute by ID.
func (c *AdminClient) GetDispute(ctx context.Context, id string) (*models.Dispute, error) {
	if id == "" {
		return nil, fmt.Errorf("dispute id required")
	}
	var dispute models.Dispute
	if err := c.get(ctx, "/admin/disputes/"+url.PathEscape(id), nil, "disputes", &dispute); err != nil {
		return nil, fmt.Errorf("get dispute %s: %w", id, err)
	}
	return &dispute, nil
}

// ListTransactions returns a page of ledger transactions.
func (c *AdminClient) ListTransactions(ctx context.Context, opts ListOptions) (*models.TransactionList, error) {
	var list models.TransactionList
	if err := c.get(ctx, "/admin/transactions", opts.query(), "transactions", &list); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return &list, nil
}

// ListFeatureFlags returns the full feature flag set. Flags are not
// paginated.
func (c *AdminClient) ListFeatureFlags(ctx context.Context) (*models.FeatureFlagList, error) {
	var list models.FeatureFlagList
	if err := c.get(ctx, "/admin/feature-flags", nil, "feature_flags", &list); err != nil {
		return nil, fmt.Errorf("list feature flags: %w", err)
	}
	return &list, nil
}

// ListAuditLog returns a page of admin audit log entries.
func (c *AdminClient) ListAuditLog(ctx context.Context, opts ListOptions) (*models.AuditLogList, error) {
	var list models.AuditLogList
	if err := c.get(ctx, "/admin/audit-log", opts.query(), "audit_log", &list); err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	return &list, nil
}
