// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/freightmesh/stevedore/internal/logging"
	"github.com/freightmesh/stevedore/internal/metrics"
	"github.com/freightmesh/stevedore/internal/models"
)

// RecoveryStrategy names one of the repair strategies.
type RecoveryStrategy string

const (
	// StrategyCleanup removes only the damaged storage keys.
	StrategyCleanup RecoveryStrategy = "cleanup"
	// StrategySessionOnly moves surviving user data into a non-persistent
	// store and marks the session degraded.
	StrategySessionOnly RecoveryStrategy = "session_only"
	// StrategyFullReset clears everything and requires reauthentication.
	StrategyFullReset RecoveryStrategy = "full_reset"
)

// sessionTokenTTL bounds a degraded session.
const sessionTokenTTL = time.Hour

// RecoveryResult is what the state machine hands back to the caller, which
// decides the user flow: silent continue or forced login. Corruption is
// never surfaced as an error.
type RecoveryResult struct {
	Success        bool              `json:"success"`
	Strategy       RecoveryStrategy  `json:"strategy,omitempty"`
	RequiresReauth bool              `json:"requiresReauth"`
	Message        string            `json:"message"`
	PreservedUser  *models.AdminUser `json:"preservedUser,omitempty"`
}

// StateRecovery repairs invalid authentication state with a bounded attempt
// budget. Once the budget is exceeded every call forces a full reset until
// a successful reauthentication (or a fully valid pass) resets the count.
type StateRecovery struct {
	mgr       *Manager
	store     Store
	session   *MemoryStore
	validator *StateValidator
	log       zerolog.Logger

	maxAttempts int

	mu         sync.Mutex
	attempts   int
	recovering bool
}

// NewStateRecovery wires the recovery machine. maxAttempts of zero or less
// means the default budget of 3.
func NewStateRecovery(mgr *Manager, store Store, validator *StateValidator, maxAttempts int) *StateRecovery {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	r := &StateRecovery{
		mgr:         mgr,
		store:       store,
		session:     NewMemoryStore(),
		validator:   validator,
		maxAttempts: maxAttempts,
		log:         logging.WithComponent("state_recovery"),
	}
	// A successful reauthentication restores the attempt budget. Token
	// changes made by the recovery strategies themselves do not count.
	mgr.OnChange(func(state TokenState, _ time.Time) {
		r.mu.Lock()
		if state.AccessToken != "" && !r.recovering {
			r.attempts = 0
		}
		r.mu.Unlock()
	})
	return r
}

// Recover validates the current state and repairs it if needed.
func (r *StateRecovery) Recover(ctx context.Context) RecoveryResult {
	return r.RecoverFrom(ctx, r.validator.Validate(ctx))
}

// RecoverFrom runs the state machine against an existing report.
func (r *StateRecovery) RecoverFrom(ctx context.Context, report ValidationReport) RecoveryResult {
	if report.Valid {
		r.resetAttempts()
		return RecoveryResult{Success: true, Message: "authentication state valid"}
	}

	r.mu.Lock()
	r.attempts++
	attempt := r.attempts
	r.recovering = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.recovering = false
		r.mu.Unlock()
	}()

	if attempt > r.maxAttempts {
		r.fullReset(ctx)
		metrics.StateRecoveries.WithLabelValues(string(StrategyFullReset), "forced").Inc()
		r.log.Warn().Int("attempts", attempt).Msg("Recovery budget exceeded, forcing session reset")
		return RecoveryResult{
			Success:        false,
			Strategy:       StrategyFullReset,
			RequiresReauth: true,
			Message:        fmt.Sprintf("maximum recovery attempts (%d) exceeded, session reset", r.maxAttempts),
		}
	}

	var result RecoveryResult
	switch {
	case report.StorageUnavailable:
		result = r.sessionOnly(ctx)
	case report.Level >= CorruptionCritical:
		result = r.fullResetResult(ctx, "critical corruption, session reset")
	default:
		result = r.cleanup(ctx, report)
	}

	outcome := "success"
	if !result.Success {
		outcome = "failed"
	}
	metrics.StateRecoveries.WithLabelValues(string(result.Strategy), outcome).Inc()
	r.log.Info().
		Str("strategy", string(result.Strategy)).
		Bool("success", result.Success).
		Bool("requires_reauth", result.RequiresReauth).
		Int("attempt", attempt).
		Msg("State recovery finished")
	return result
}

// Attempts returns the consumed recovery budget.
func (r *StateRecovery) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// Degraded reports whether the session is running in session-only mode.
func (r *StateRecovery) Degraded(ctx context.Context) bool {
	value, err := r.session.Get(ctx, KeySessionDegraded)
	return err == nil && value == "true"
}

// SessionStore exposes the non-persistent degraded-mode store.
func (r *StateRecovery) SessionStore() *MemoryStore {
	return r.session
}

func (r *StateRecovery) resetAttempts() {
	r.mu.Lock()
	r.attempts = 0
	r.mu.Unlock()
}

// cleanup removes the damaged keys and nothing else. Token findings clear
// the token state (keeping the cooldown history); a stale or mismatched
// user is dropped. If the state is still invalid afterwards, cleanup was
// not enough and the reset path takes over.
func (r *StateRecovery) cleanup(ctx context.Context, report ValidationReport) RecoveryResult {
	tokensImplicated := false
	for _, f := range report.Findings {
		switch f.Key {
		case KeyAccessToken, KeyRefreshToken:
			tokensImplicated = true
		case KeyExpiresAt:
			if err := r.store.Delete(ctx, KeyExpiresAt); err != nil {
				r.log.Error().Err(err).Msg("Failed to remove stored expiry")
			}
		case KeyUser:
			r.mgr.SetUser(ctx, nil)
		}
	}
	if tokensImplicated {
		r.mgr.clearTokenState(ctx, false)
	}

	check := r.validator.Validate(ctx)
	if !check.Valid {
		return r.fullResetResult(ctx, "cleanup insufficient, session reset")
	}
	return RecoveryResult{
		Success:       true,
		Strategy:      StrategyCleanup,
		Message:       "removed damaged session data",
		PreservedUser: r.mgr.User(),
	}
}

// sessionOnly moves whatever user data survived into the non-persistent
// session store and installs a synthetic token so the session keeps its
// shape. The token is signed with an ephemeral key the gateway has never
// seen: a degraded session can render, not act.
func (r *StateRecovery) sessionOnly(ctx context.Context) RecoveryResult {
	user := r.mgr.User()
	if user == nil {
		return r.fullResetResult(ctx, "storage unavailable and no user data to preserve")
	}

	token, err := syntheticSessionToken(user, sessionTokenTTL)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to mint session-only token")
		return r.fullResetResult(ctx, "could not establish degraded session")
	}

	raw, err := json.Marshal(user)
	if err != nil {
		return r.fullResetResult(ctx, "could not preserve user data")
	}
	_ = r.session.Set(ctx, KeySessionUser, string(raw))
	_ = r.session.Set(ctx, KeySessionToken, token)
	_ = r.session.Set(ctx, KeySessionDegraded, "true")

	r.mgr.SetTokens(ctx, token, "", sessionTokenTTL)
	r.log.Warn().
		Str("user_id", logging.SanitizeUserID(user.ID)).
		Msg("Session degraded to non-persistent storage")
	return RecoveryResult{
		Success:       true,
		Strategy:      StrategySessionOnly,
		Message:       "session degraded to non-persistent storage",
		PreservedUser: user,
	}
}

func (r *StateRecovery) fullResetResult(ctx context.Context, message string) RecoveryResult {
	r.fullReset(ctx)
	return RecoveryResult{
		Success:        true,
		Strategy:       StrategyFullReset,
		RequiresReauth: true,
		Message:        message,
	}
}

func (r *StateRecovery) fullReset(ctx context.Context) {
	r.mgr.ClearTokens(ctx)
	for _, key := range []string{KeySessionUser, KeySessionToken, KeySessionDegraded} {
		_ = r.session.Delete(ctx, key)
	}
}

// syntheticSessionToken mints a short-lived HS256 token carrying the
// surviving identity and a degraded marker.
func syntheticSessionToken(user *models.AdminUser, ttl time.Duration) (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      user.ID,
		"email":    user.Email,
		"role":     user.Role,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
		"degraded": true,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}
