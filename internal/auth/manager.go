// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package auth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/freightmesh/stevedore/internal/apierror"
	"github.com/freightmesh/stevedore/internal/logging"
	"github.com/freightmesh/stevedore/internal/metrics"
	"github.com/freightmesh/stevedore/internal/models"
)

// scheduledRefreshTimeout bounds a proactive background refresh cycle.
const scheduledRefreshTimeout = time.Minute

// tokenKeys are the storage keys cleared on refresh exhaustion. The user
// key survives so the validator can flag (and recovery can repair) the
// resulting mismatch instead of silently losing the session owner.
var tokenKeys = []string{
	KeyAccessToken,
	KeyLegacyToken,
	KeyLegacyAdminToken,
	KeyRefreshToken,
	KeyExpiresAt,
}

// ManagerConfig shapes the token lifecycle. Zero fields fall back to the
// defaults below.
type ManagerConfig struct {
	// ExpiryBuffer is subtracted from the expiry when judging validity.
	ExpiryBuffer time.Duration

	// RefreshAhead schedules the proactive refresh this long before
	// expiry; MinRefreshDelay is the floor for that schedule.
	RefreshAhead    time.Duration
	MinRefreshDelay time.Duration

	// Refresh retry shape.
	RefreshMaxAttempts int
	RefreshBaseDelay   time.Duration
	RefreshMultiplier  float64
	RefreshMaxDelay    time.Duration

	// Cooldown after consecutive refresh failures.
	CooldownMaxFailures int
	CooldownWindow      time.Duration
}

// DefaultManagerConfig returns the production defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ExpiryBuffer:        5 * time.Minute,
		RefreshAhead:        10 * time.Minute,
		MinRefreshDelay:     time.Minute,
		RefreshMaxAttempts:  3,
		RefreshBaseDelay:    time.Second,
		RefreshMultiplier:   2.0,
		RefreshMaxDelay:     10 * time.Second,
		CooldownMaxFailures: 3,
		CooldownWindow:      5 * time.Minute,
	}
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	def := DefaultManagerConfig()
	if c.ExpiryBuffer <= 0 {
		c.ExpiryBuffer = def.ExpiryBuffer
	}
	if c.RefreshAhead <= 0 {
		c.RefreshAhead = def.RefreshAhead
	}
	if c.MinRefreshDelay <= 0 {
		c.MinRefreshDelay = def.MinRefreshDelay
	}
	if c.RefreshMaxAttempts <= 0 {
		c.RefreshMaxAttempts = def.RefreshMaxAttempts
	}
	if c.RefreshBaseDelay <= 0 {
		c.RefreshBaseDelay = def.RefreshBaseDelay
	}
	if c.RefreshMultiplier <= 1 {
		c.RefreshMultiplier = def.RefreshMultiplier
	}
	if c.RefreshMaxDelay <= 0 {
		c.RefreshMaxDelay = def.RefreshMaxDelay
	}
	if c.CooldownMaxFailures <= 0 {
		c.CooldownMaxFailures = def.CooldownMaxFailures
	}
	if c.CooldownWindow <= 0 {
		c.CooldownWindow = def.CooldownWindow
	}
	return c
}

// ChangeFunc observes local state changes for cross-instance broadcast and
// the ops event stream. Called synchronously after the change commits, in
// commit order, with a snapshot copy; it must not block.
type ChangeFunc func(state TokenState, at time.Time)

// ReauthFunc is notified when the session is beyond repair and a human has
// to sign in again.
type ReauthFunc func(reason string)

// refreshCall is the shared outcome of one in-flight refresh. token and err
// are written before done is closed and read only after it is closed.
type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

// Manager owns the TokenState for one logical session. Construct with
// NewManager, release with Close. All methods are safe for concurrent use.
type Manager struct {
	cfg       ManagerConfig
	store     Store
	cipher    *TokenCipher
	refresher Refresher
	log       zerolog.Logger

	mu       sync.Mutex
	state    TokenState
	user     *models.AdminUser
	cooldown *refreshCooldown
	inflight *refreshCall

	// changedAt stamps the most recent local change or applied sync; an
	// incoming synced state is applied only if strictly newer.
	changedAt time.Time

	timer    *time.Timer
	timerGen uint64

	onChange []ChangeFunc
	onReauth ReauthFunc

	closed bool
}

// NewManager wires a Manager from its dependencies. cipher may be nil
// (refresh token stored in plaintext); refresher may be nil only if Refresh
// is never reachable, such as in read-only tooling.
func NewManager(store Store, refresher Refresher, cipher *TokenCipher, cfg ManagerConfig) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		cfg:       cfg,
		store:     store,
		cipher:    cipher,
		refresher: refresher,
		cooldown:  newRefreshCooldown(cfg.CooldownMaxFailures, cfg.CooldownWindow),
		log:       logging.WithComponent("token_manager"),
	}
}

// Hydrate loads persisted session state from the store. Missing keys leave
// the state empty; unreadable values are logged and skipped so a corrupt
// store never blocks startup (the validator reports it instead).
func (m *Manager) Hydrate(ctx context.Context) error {
	get := func(key string) (string, error) {
		value, err := m.store.Get(ctx, key)
		if errors.Is(err, ErrKeyNotFound) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("hydrating %s: %w", key, err)
		}
		return value, nil
	}

	access, err := get(KeyAccessToken)
	if err != nil {
		return err
	}
	if access == "" {
		if access, err = get(KeyLegacyToken); err != nil {
			return err
		}
	}

	storedRefresh, err := get(KeyRefreshToken)
	if err != nil {
		return err
	}
	refresh, decErr := m.cipher.Decrypt(storedRefresh)
	if decErr != nil {
		m.log.Warn().Err(decErr).Msg("Stored refresh token unreadable, dropping it")
		refresh = ""
	}

	var expiresAt *time.Time
	if raw, err := get(KeyExpiresAt); err != nil {
		return err
	} else if raw != "" {
		t, parseErr := time.Parse(time.RFC3339, raw)
		if parseErr != nil {
			m.log.Warn().Str("value", raw).Msg("Stored expiry unparsable, ignoring it")
		} else {
			expiresAt = &t
		}
	}

	var user *models.AdminUser
	if raw, err := get(KeyUser); err != nil {
		return err
	} else if raw != "" {
		var u models.AdminUser
		if jsonErr := json.Unmarshal([]byte(raw), &u); jsonErr != nil {
			m.log.Warn().Err(jsonErr).Msg("Stored user unparsable, leaving session owner unset")
		} else {
			user = &u
		}
	}

	m.mu.Lock()
	m.state = TokenState{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}
	if user != nil {
		m.user = user
	}
	m.scheduleLocked(expiresAt)
	m.mu.Unlock()

	updateExpiryGauge(expiresAt)
	m.log.Info().
		Bool("has_token", access != "").
		Bool("has_refresh_token", refresh != "").
		Str("backend", m.store.Name()).
		Msg("Session state hydrated")
	return nil
}

// GetValidToken returns the current access token if it is still valid, and
// otherwise runs the refresh protocol. Concurrent callers during a refresh
// all receive the same outcome from a single network exchange.
func (m *Manager) GetValidToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrManagerClosed
	}
	if TokenValid(m.state.AccessToken, m.state.ExpiresAt, m.cfg.ExpiryBuffer, time.Now()) {
		token := m.state.AccessToken
		m.mu.Unlock()
		return token, nil
	}
	m.mu.Unlock()

	return m.Refresh(ctx)
}

// Refresh exchanges the refresh token for a new access token. Re-entrant
// safe: a refresh already in flight is joined, not duplicated. The cooldown
// is checked before anything else and fails fast with the time remaining.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrManagerClosed
	}
	if call := m.inflight; call != nil {
		m.mu.Unlock()
		m.log.Debug().Msg("Joining in-flight token refresh")
		return awaitRefresh(ctx, call)
	}
	if active, remaining := m.cooldown.Active(); active {
		m.mu.Unlock()
		metrics.RecordRefreshAttempt("cooldown_rejected", 0)
		return "", &CooldownError{Remaining: remaining}
	}
	refreshToken := m.state.RefreshToken
	if refreshToken == "" {
		m.mu.Unlock()
		return "", ErrNoToken
	}

	call := &refreshCall{done: make(chan struct{})}
	m.inflight = call
	m.state.IsRefreshing = true
	m.mu.Unlock()

	token, err := m.executeRefresh(ctx, refreshToken)

	m.mu.Lock()
	m.inflight = nil
	m.state.IsRefreshing = false
	m.mu.Unlock()

	call.token, call.err = token, err
	close(call.done)
	return token, err
}

func awaitRefresh(ctx context.Context, call *refreshCall) (string, error) {
	select {
	case <-call.done:
		return call.token, call.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// executeRefresh runs the bounded retry loop against the refresh endpoint.
// Every failed attempt counts toward the cooldown, so one fully exhausted
// cycle activates it. A rejected refresh token is retried like any other
// failure: the gateway occasionally 401s during credential rollover, and
// the attempt budget already bounds the damage.
func (m *Manager) executeRefresh(ctx context.Context, refreshToken string) (string, error) {
	if m.refresher == nil {
		return "", fmt.Errorf("%w: no refresher configured", ErrRefreshFailed)
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= m.cfg.RefreshMaxAttempts; attempt++ {
		if attempt > 1 {
			delay := nextRefreshDelay(m.cfg, attempt-2)
			m.log.Debug().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Retrying token refresh")
			metrics.RefreshRetries.Inc()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, err := m.refresher.Refresh(ctx, refreshToken)
		if err == nil {
			m.applyRefresh(ctx, resp)
			metrics.RecordRefreshAttempt("success", time.Since(start))
			return resp.AccessToken, nil
		}

		lastErr = err
		m.mu.Lock()
		m.cooldown.RecordFailure()
		m.mu.Unlock()
		m.log.Warn().Err(err).Int("attempt", attempt).Msg("Token refresh attempt failed")

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	// Exhausted: the tokens are presumed dead. Clear them, keep the
	// cooldown history, tell the other instances.
	m.clearTokenState(ctx, false)

	outcome := "failure"
	if errors.Is(lastErr, ErrInvalidRefreshToken) {
		outcome = "invalid_token"
	}
	metrics.RecordRefreshAttempt(outcome, time.Since(start))
	return "", fmt.Errorf("%w after %d attempts: %w", ErrRefreshFailed, m.cfg.RefreshMaxAttempts, lastErr)
}

// applyRefresh commits a successful exchange: new state, cooldown reset,
// persistence, expiry gauge, reschedule, broadcast.
func (m *Manager) applyRefresh(ctx context.Context, resp *RefreshResponse) {
	now := time.Now()

	m.mu.Lock()
	m.state.AccessToken = resp.AccessToken
	if resp.RefreshToken != "" {
		m.state.RefreshToken = resp.RefreshToken
	}
	if resp.ExpiresIn > 0 {
		t := now.Add(time.Duration(resp.ExpiresIn) * time.Second)
		m.state.ExpiresAt = &t
	} else {
		m.state.ExpiresAt = nil
	}
	m.state.LastRefresh = &now
	m.changedAt = now
	m.cooldown.Reset()
	m.scheduleLocked(m.state.ExpiresAt)
	state := m.state.Clone()
	m.mu.Unlock()

	m.persist(ctx, state)
	updateExpiryGauge(state.ExpiresAt)
	m.notifyChange(state, now)
	m.log.Info().
		Str("token", logging.SanitizeToken(state.AccessToken)).
		Msg("Token refreshed")
}

// SetTokens establishes a fresh authenticated session, normally right after
// login. expiresIn of zero means the expiry is unknown.
func (m *Manager) SetTokens(ctx context.Context, access, refresh string, expiresIn time.Duration) {
	now := time.Now()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.state = TokenState{
		AccessToken:  access,
		RefreshToken: refresh,
		LastRefresh:  &now,
	}
	if expiresIn > 0 {
		t := now.Add(expiresIn)
		m.state.ExpiresAt = &t
	}
	m.changedAt = now
	m.cooldown.Reset()
	m.scheduleLocked(m.state.ExpiresAt)
	state := m.state.Clone()
	m.mu.Unlock()

	m.persist(ctx, state)
	updateExpiryGauge(state.ExpiresAt)
	m.notifyChange(state, now)
	m.log.Info().
		Str("token", logging.SanitizeToken(access)).
		Msg("Session tokens set")
}

// SetUser records the session owner in memory and in the store.
func (m *Manager) SetUser(ctx context.Context, user *models.AdminUser) {
	m.mu.Lock()
	m.user = user.Clone()
	m.mu.Unlock()

	if user == nil {
		if err := m.store.Delete(ctx, KeyUser); err != nil {
			m.log.Error().Err(err).Msg("Failed to delete stored user")
		}
		return
	}
	raw, err := json.Marshal(user)
	if err != nil {
		m.log.Error().Err(err).Msg("Failed to encode user")
		return
	}
	if err := m.store.Set(ctx, KeyUser, string(raw)); err != nil {
		m.log.Error().Err(err).Msg("Failed to persist user")
	}
}

// ClearTokens wipes the session: in-memory state, cooldown history, every
// storage key, the scheduled refresh. The clear is broadcast to siblings.
func (m *Manager) ClearTokens(ctx context.Context) {
	m.clearTokenState(ctx, true)
	m.log.Info().Msg("Session cleared")
}

// clearTokenState implements both flavors of clear. A full clear (logout)
// also resets the cooldown and drops the stored user; the exhaustion clear
// keeps both so the failure history survives and the validator can see the
// orphaned user.
func (m *Manager) clearTokenState(ctx context.Context, full bool) {
	now := time.Now()

	m.mu.Lock()
	m.state = TokenState{}
	m.changedAt = now
	if full {
		m.user = nil
		m.cooldown.Reset()
	}
	m.scheduleLocked(nil)
	m.mu.Unlock()

	keys := tokenKeys
	if full {
		keys = append([]string{KeyUser, KeySessionUser, KeySessionToken, KeySessionDegraded}, tokenKeys...)
	}
	for _, key := range keys {
		if err := m.store.Delete(ctx, key); err != nil {
			m.log.Error().Err(err).Str("key", key).Msg("Failed to clear storage key")
		}
	}

	updateExpiryGauge(nil)
	m.notifyChange(TokenState{}, now)
}

// HandleTokenError reacts to an AUTH-classified request failure. A 401 with
// a refresh token available gets one refresh cycle; a 403, a missing
// refresh token, or an active cooldown ends the session immediately. A nil
// return means the caller may retry its request.
func (m *Manager) HandleTokenError(ctx context.Context, cerr *apierror.ClassifiedError) error {
	if cerr == nil || cerr.Type != apierror.TypeAuth {
		return nil
	}

	m.mu.Lock()
	hasRefresh := m.state.RefreshToken != ""
	cooldownActive, _ := m.cooldown.Active()
	m.mu.Unlock()

	if cerr.StatusCode == http.StatusUnauthorized && hasRefresh && !cooldownActive {
		if _, err := m.Refresh(ctx); err != nil {
			// Refresh exhaustion already cleared the tokens.
			m.requireReauth("token refresh failed")
			return fmt.Errorf("%w: %w", ErrReauthRequired, err)
		}
		return nil
	}

	reason := "access forbidden"
	switch {
	case cerr.StatusCode == http.StatusUnauthorized && !hasRefresh:
		reason = "no refresh token"
	case cerr.StatusCode == http.StatusUnauthorized && cooldownActive:
		reason = "refresh cooldown active"
	}
	m.clearTokenState(ctx, true)
	m.requireReauth(reason)
	return fmt.Errorf("%w: %s", ErrReauthRequired, reason)
}

// ApplySynced installs a state broadcast by another instance. The incoming
// stamp must be strictly newer than the last local change or applied sync,
// otherwise the state is stale and dropped. Applied states are never
// re-broadcast. Returns true when applied.
func (m *Manager) ApplySynced(ctx context.Context, state TokenState, at time.Time) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	if !at.After(m.changedAt) {
		m.mu.Unlock()
		return false
	}
	m.state = state.Clone()
	m.state.IsRefreshing = false
	m.changedAt = at
	m.scheduleLocked(m.state.ExpiresAt)
	applied := m.state.Clone()
	m.mu.Unlock()

	m.persist(ctx, applied)
	updateExpiryGauge(applied.ExpiresAt)
	m.log.Debug().
		Time("stamp", at).
		Bool("cleared", applied.IsEmpty()).
		Msg("Applied synced session state")
	return true
}

// State returns a snapshot copy of the current token state.
func (m *Manager) State() TokenState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// User returns a copy of the session owner, or nil when unknown.
func (m *Manager) User() *models.AdminUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user.Clone()
}

// IsTokenValid applies the validity predicate to the given token using the
// session's known expiry.
func (m *Manager) IsTokenValid(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return TokenValid(token, m.state.ExpiresAt, m.cfg.ExpiryBuffer, time.Now())
}

// CooldownStatus reports the refresh cooldown for the ops surface.
func (m *Manager) CooldownStatus() CooldownStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	active, remaining := m.cooldown.Active()
	return CooldownStatus{
		ConsecutiveFailures: m.cooldown.failures,
		Active:              active,
		RetryInSeconds:      int(remaining.Seconds()),
	}
}

// OnChange registers an observer for local state changes.
func (m *Manager) OnChange(fn ChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// OnReauthRequired registers the callback fired when the session is dead
// and a human must sign in again.
func (m *Manager) OnReauthRequired(fn ReauthFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReauth = fn
}

// Close cancels the scheduled refresh and rejects further operations. The
// store is owned by the caller and stays open.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.timerGen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// persist writes the token state to the store. Storage failures degrade the
// session to memory-only rather than failing the operation; they are logged
// and counted, and the in-memory state stays authoritative.
func (m *Manager) persist(ctx context.Context, state TokenState) {
	set := func(key, value string) {
		if value == "" {
			if err := m.store.Delete(ctx, key); err != nil {
				m.log.Error().Err(err).Str("key", key).Msg("Failed to clear storage key")
			}
			return
		}
		if err := m.store.Set(ctx, key, value); err != nil {
			m.log.Error().Err(err).Str("key", key).Msg("Failed to persist storage key")
		}
	}

	set(KeyAccessToken, state.AccessToken)
	set(KeyLegacyToken, state.AccessToken)
	set(KeyLegacyAdminToken, state.AccessToken)

	refresh := state.RefreshToken
	if refresh != "" {
		encrypted, err := m.cipher.Encrypt(refresh)
		if err != nil {
			m.log.Error().Err(err).Msg("Failed to encrypt refresh token, not persisting it")
			refresh = ""
		} else {
			refresh = encrypted
		}
	}
	set(KeyRefreshToken, refresh)

	if state.ExpiresAt != nil {
		set(KeyExpiresAt, state.ExpiresAt.UTC().Format(time.RFC3339))
	} else {
		set(KeyExpiresAt, "")
	}
}

// scheduleLocked cancels any pending proactive refresh and, when an expiry
// is known, arms the timer at max(untilExpiry - RefreshAhead,
// MinRefreshDelay). Callers hold m.mu.
func (m *Manager) scheduleLocked(expiresAt *time.Time) {
	m.timerGen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.closed || expiresAt == nil {
		return
	}

	delay := time.Until(*expiresAt) - m.cfg.RefreshAhead
	if delay < m.cfg.MinRefreshDelay {
		delay = m.cfg.MinRefreshDelay
	}
	gen := m.timerGen
	m.timer = time.AfterFunc(delay, func() {
		m.scheduledRefresh(gen)
	})
	m.log.Debug().Dur("delay", delay).Msg("Scheduled proactive token refresh")
}

// scheduledRefresh is the timer callback. A generation mismatch means the
// state changed after arming and this fire is stale.
func (m *Manager) scheduledRefresh(gen uint64) {
	m.mu.Lock()
	stale := gen != m.timerGen || m.closed
	m.mu.Unlock()
	if stale {
		return
	}

	metrics.ScheduledRefreshFires.Inc()
	ctx, cancel := context.WithTimeout(context.Background(), scheduledRefreshTimeout)
	defer cancel()
	if _, err := m.Refresh(ctx); err != nil {
		m.log.Warn().Err(err).Msg("Scheduled token refresh failed")
	}
}

func (m *Manager) notifyChange(state TokenState, at time.Time) {
	m.mu.Lock()
	observers := make([]ChangeFunc, len(m.onChange))
	copy(observers, m.onChange)
	m.mu.Unlock()

	state.IsRefreshing = false
	for _, fn := range observers {
		fn(state, at)
	}
}

func (m *Manager) requireReauth(reason string) {
	m.mu.Lock()
	fn := m.onReauth
	m.mu.Unlock()

	m.log.Info().Str("reason", reason).Msg("Reauthentication required")
	if fn != nil {
		go fn(reason)
	}
}

func updateExpiryGauge(expiresAt *time.Time) {
	if expiresAt == nil {
		metrics.TokenExpirySeconds.Set(0)
		return
	}
	metrics.TokenExpirySeconds.Set(time.Until(*expiresAt).Seconds())
}

// nextRefreshDelay is the pure backoff schedule for refresh retries:
// attempt 0 waits the base delay, doubling up to the cap.
func nextRefreshDelay(cfg ManagerConfig, attempt int) time.Duration {
	delay := float64(cfg.RefreshBaseDelay) * math.Pow(cfg.RefreshMultiplier, float64(attempt))
	if delay > float64(cfg.RefreshMaxDelay) {
		delay = float64(cfg.RefreshMaxDelay)
	}
	return time.Duration(delay)
}
