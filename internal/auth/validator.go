// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/freightmesh/stevedore/internal/logging"
	"github.com/freightmesh/stevedore/internal/metrics"
	"github.com/freightmesh/stevedore/internal/models"
)

// CorruptionLevel grades how damaged the authentication state is. Levels
// are ordered; recovery strategies dispatch on the highest finding.
type CorruptionLevel int

const (
	CorruptionNone CorruptionLevel = iota
	CorruptionMinor
	CorruptionMajor
	CorruptionCritical
)

func (l CorruptionLevel) String() string {
	switch l {
	case CorruptionNone:
		return "valid"
	case CorruptionMinor:
		return "minor"
	case CorruptionMajor:
		return "major"
	case CorruptionCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the level as its name for the ops surface.
func (l CorruptionLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// Finding is one detected inconsistency. Key names the storage key
// implicated so recovery can remove exactly the damaged data.
type Finding struct {
	Key    string          `json:"key,omitempty"`
	Level  CorruptionLevel `json:"level"`
	Reason string          `json:"reason"`
}

// Snapshot is the ephemeral view the validator inspects: the in-memory
// session next to the raw stored values. Constructed on demand, never
// persisted.
type Snapshot struct {
	User         *models.AdminUser
	ManagerState TokenState
	Stored       map[string]string
	StoreErr     error
	TakenAt      time.Time
}

// ValidationReport is the outcome of one validation pass.
type ValidationReport struct {
	Valid              bool            `json:"valid"`
	Level              CorruptionLevel `json:"level"`
	Findings           []Finding       `json:"findings,omitempty"`
	StorageUnavailable bool            `json:"storageUnavailable,omitempty"`
	CheckedAt          time.Time       `json:"checkedAt"`
}

// Mismatch reasons, also matched by MismatchReason.
const (
	reasonUserWithoutToken = "user present without access token"
	reasonTokenWithoutUser = "access token present without user"
)

// MismatchReason returns the reason of the user/token mismatch finding, or
// empty when the session owner and token agree.
func (r ValidationReport) MismatchReason() string {
	for _, f := range r.Findings {
		if f.Reason == reasonUserWithoutToken || f.Reason == reasonTokenWithoutUser {
			return f.Reason
		}
	}
	return ""
}

// StateValidator detects drift between the in-memory session, the persisted
// keys, and the token contents.
type StateValidator struct {
	mgr   *Manager
	store Store
	log   zerolog.Logger
}

// NewStateValidator wires a validator over the manager and its store.
func NewStateValidator(mgr *Manager, store Store) *StateValidator {
	return &StateValidator{
		mgr:   mgr,
		store: store,
		log:   logging.WithComponent("state_validator"),
	}
}

// Snapshot gathers the current session view. A store read error marks the
// snapshot rather than failing it, so validation can still grade whatever
// was readable.
func (v *StateValidator) Snapshot(ctx context.Context) Snapshot {
	snap := Snapshot{
		User:         v.mgr.User(),
		ManagerState: v.mgr.State(),
		Stored:       make(map[string]string),
		TakenAt:      time.Now(),
	}

	for _, key := range []string{KeyAccessToken, KeyRefreshToken, KeyUser, KeyExpiresAt} {
		value, err := v.store.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, ErrKeyNotFound) && snap.StoreErr == nil {
				snap.StoreErr = err
			}
			continue
		}
		snap.Stored[key] = value
	}
	return snap
}

// Validate takes a snapshot and grades it.
func (v *StateValidator) Validate(ctx context.Context) ValidationReport {
	report := v.Inspect(v.Snapshot(ctx))
	metrics.StateValidations.WithLabelValues(report.Level.String()).Inc()
	if !report.Valid {
		v.log.Warn().
			Str("level", report.Level.String()).
			Int("findings", len(report.Findings)).
			Msg("Authentication state invalid")
	}
	return report
}

// Inspect applies the detection rules to a snapshot. Pure: same snapshot,
// same report (modulo CheckedAt).
func (v *StateValidator) Inspect(snap Snapshot) ValidationReport {
	report := ValidationReport{CheckedAt: snap.TakenAt}
	add := func(key string, level CorruptionLevel, reason string) {
		report.Findings = append(report.Findings, Finding{Key: key, Level: level, Reason: reason})
		if level > report.Level {
			report.Level = level
		}
	}

	if snap.StoreErr != nil {
		report.StorageUnavailable = true
		add("", CorruptionMajor, "session storage unavailable")
	}

	token := snap.ManagerState.AccessToken
	if token == "" {
		token = snap.Stored[KeyAccessToken]
	}
	hasUser := snap.User != nil || snap.Stored[KeyUser] != ""

	switch {
	case hasUser && token == "":
		add(KeyUser, CorruptionMajor, reasonUserWithoutToken)
	case !hasUser && token != "":
		add(KeyAccessToken, CorruptionMajor, reasonTokenWithoutUser)
	}

	if token != "" {
		if err := jwtStructuralError(token); err != nil {
			add(KeyAccessToken, CorruptionMajor, fmt.Sprintf("access token malformed: %v", err))
		}
	}

	if raw, ok := snap.Stored[KeyUser]; ok && raw != "" {
		var u models.AdminUser
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			add(KeyUser, CorruptionCritical, "stored user object unparsable")
		}
	}

	if snap.ManagerState.AccessToken == "" && snap.ManagerState.RefreshToken != "" {
		add(KeyRefreshToken, CorruptionMinor, "refresh token without access token")
	}

	if raw, ok := snap.Stored[KeyExpiresAt]; ok && raw != "" {
		if _, err := time.Parse(time.RFC3339, raw); err != nil {
			add(KeyExpiresAt, CorruptionMinor, "stored expiry unparsable")
		}
	}

	if stored, ok := snap.Stored[KeyAccessToken]; ok &&
		stored != "" && snap.ManagerState.AccessToken != "" &&
		stored != snap.ManagerState.AccessToken {
		add(KeyAccessToken, CorruptionMinor, "stored access token differs from session state")
	}

	report.Valid = report.Level == CorruptionNone
	return report
}

// jwtStructuralError checks the shape of an access token without verifying
// its signature: three decodable segments and the exp and iat claims. The
// gateway holds the signing key; structure is all a client can check.
func jwtStructuralError(token string) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("not a decodable JWT: %w", err)
	}
	if _, ok := claims["exp"]; !ok {
		return errors.New("missing exp claim")
	}
	if _, ok := claims["iat"]; !ok {
		return errors.New("missing iat claim")
	}
	return nil
}
