// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package auth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// maxRefreshBodyBytes bounds how much of a refresh response is read.
const maxRefreshBodyBytes = 1 << 20

// RefreshRequest is the body sent to the gateway refresh endpoint.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse is the gateway's reply. RefreshToken and ExpiresIn are
// optional; an absent RefreshToken means the old one stays valid.
type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn,omitempty"`
}

// Refresher exchanges a refresh token for a new access token. The Manager
// owns retries and cooldown; a Refresher performs exactly one exchange.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error)
}

// HTTPRefresher calls the Freightmesh gateway refresh endpoint.
type HTTPRefresher struct {
	endpoint string
	client   *http.Client
}

var _ Refresher = (*HTTPRefresher)(nil)

// NewHTTPRefresher builds a refresher for the gateway at baseURL. Path
// defaults to /auth/refresh.
func NewHTTPRefresher(baseURL, path string, timeout time.Duration) *HTTPRefresher {
	if path == "" {
		path = "/auth/refresh"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPRefresher{
		endpoint: strings.TrimRight(baseURL, "/") + path,
		client:   &http.Client{Timeout: timeout},
	}
}

// Refresh performs a single token exchange. A 401 or 403 from the endpoint
// means the refresh token itself was rejected and maps to
// ErrInvalidRefreshToken.
func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	body, err := json.Marshal(RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, fmt.Errorf("failed to encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRefreshBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read refresh response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrInvalidRefreshToken, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("refresh endpoint returned status %d", resp.StatusCode)
	}

	var parsed RefreshResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse refresh response: %w", err)
	}
	if parsed.AccessToken == "" {
		return nil, fmt.Errorf("refresh response missing accessToken")
	}
	return &parsed, nil
}
