// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/freightmesh/stevedore/internal/auth"
	"github.com/freightmesh/stevedore/internal/logging"
	"github.com/freightmesh/stevedore/internal/models"
)

// SessionInfo is the redacted session snapshot served to operators.
// Raw token material never appears here: the access token is reduced to a
// fingerprint and the refresh token to a presence flag.
type SessionInfo struct {
	// Authenticated reports whether the current access token passes the
	// validity predicate (non-empty and outside the expiry buffer).
	Authenticated bool `json:"authenticated"`

	// User is the authenticated admin account, if known.
	User *models.AdminUser `json:"user,omitempty"`

	// TokenFingerprint identifies the access token without revealing it.
	TokenFingerprint string `json:"tokenFingerprint,omitempty"`

	// HasRefreshToken reports whether a refresh credential is held.
	HasRefreshToken bool `json:"hasRefreshToken"`

	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	LastRefresh *time.Time `json:"lastRefresh,omitempty"`

	// IsRefreshing reports whether a refresh is in flight right now.
	IsRefreshing bool `json:"isRefreshing"`

	// Cooldown reports the refresh failure backoff state.
	Cooldown auth.CooldownStatus `json:"cooldown"`

	// ChangedAt is set on event stream messages only: the instant the
	// session state changed.
	ChangedAt *time.Time `json:"changedAt,omitempty"`
}

// sessionInfo builds the redacted snapshot from the manager's current state.
func (h *Handler) sessionInfo() SessionInfo {
	return h.sessionInfoFrom(h.manager.State())
}

// sessionInfoFrom builds the redacted snapshot from an already-taken state,
// used by the change hook where the state arrives with the notification.
func (h *Handler) sessionInfoFrom(state auth.TokenState) SessionInfo {
	return SessionInfo{
		Authenticated:    h.manager.IsTokenValid(state.AccessToken),
		User:             h.manager.User(),
		TokenFingerprint: logging.SanitizeToken(state.AccessToken),
		HasRefreshToken:  state.RefreshToken != "",
		ExpiresAt:        state.ExpiresAt,
		LastRefresh:      state.LastRefresh,
		IsRefreshing:     state.IsRefreshing,
		Cooldown:         h.manager.CooldownStatus(),
	}
}

// Session handles GET /api/v1/session.
// Returns the redacted session snapshot.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.manager == nil {
		rw.ServiceUnavailable("Session manager not available")
		return
	}

	rw.Success(h.sessionInfo())
}

// SessionRefresh handles POST /api/v1/session/refresh.
// Forces a refresh through the token manager. The new access token is NOT
// returned; callers observe the outcome through the updated snapshot.
//
// Error mapping:
//   - cooldown active: 429 with retry_in_seconds detail
//   - no refresh credential or reauth required: 401
//   - gateway failure: 502
func (h *Handler) SessionRefresh(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.manager == nil {
		rw.ServiceUnavailable("Session manager not available")
		return
	}

	_, err := h.manager.Refresh(r.Context())
	if err == nil {
		rw.Success(h.sessionInfo())
		return
	}

	switch {
	case errors.Is(err, auth.ErrRefreshCooldown):
		details := map[string]interface{}{}
		var ce *auth.CooldownError
		if errors.As(err, &ce) {
			details["retryInSeconds"] = int(ce.Remaining.Seconds())
		}
		rw.ErrorWithDetails(http.StatusTooManyRequests, ErrCodeTooManyRequests,
			"Refresh cooldown active", details)
	case errors.Is(err, auth.ErrNoToken),
		errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrReauthRequired):
		rw.Unauthorized("Session cannot be refreshed: " + err.Error())
	default:
		rw.ExternalServiceError("gateway", err)
	}
}

// SessionLogout handles POST /api/v1/session/logout.
// Clears the session everywhere: memory, storage, sibling instances.
func (h *Handler) SessionLogout(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.manager == nil {
		rw.ServiceUnavailable("Session manager not available")
		return
	}

	h.manager.ClearTokens(r.Context())
	rw.Success(map[string]bool{"loggedOut": true})
}

// SessionValidate handles GET /api/v1/session/validate.
// Runs the invalid-state validator and immediately applies recovery. On a
// clean report recovery is a no-op, so the endpoint always answers with
// both the findings and what was done about them.
func (h *Handler) SessionValidate(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.validator == nil || h.recovery == nil {
		rw.ServiceUnavailable("Session validation not available")
		return
	}

	report := h.validator.Validate(r.Context())
	result := h.recovery.RecoverFrom(r.Context(), report)

	rw.Success(map[string]interface{}{
		"validation": report,
		"recovery":   result,
	})
}
