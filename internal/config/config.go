// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

// Package config provides configuration management for Stevedore.
//
// Configuration is loaded in three layers with Koanf v2:
//  1. Defaults: built-in values for every setting
//  2. Config file: optional YAML file (config.yaml)
//  3. Environment variables: override any setting
//
// Sections cover the Freightmesh gateway connection, the token lifecycle,
// session-state synchronization between instances, recovery and fallback
// behavior, error monitoring, the operational HTTP surface, and logging.
package config

import "time"

// Config holds all Stevedore configuration.
type Config struct {
	Gateway  GatewayConfig  `koanf:"gateway"`
	Auth     AuthConfig     `koanf:"auth"`
	Sync     SyncConfig     `koanf:"sync"`
	Recovery RecoveryConfig `koanf:"recovery"`
	Monitor  MonitorConfig  `koanf:"monitor"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// GatewayConfig describes the Freightmesh admin gateway every API request
// goes through.
type GatewayConfig struct {
	// BaseURL is the gateway origin, scheme and host only (required).
	BaseURL string `koanf:"base_url"`

	// Timeout is the hard per-attempt timeout for outbound requests.
	Timeout time.Duration `koanf:"timeout"`

	// MaxAttempts bounds the request retry loop, first attempt included.
	MaxAttempts int `koanf:"max_attempts"`

	// RetryBaseDelay, RetryMultiplier and RetryMaxDelay shape the
	// exponential backoff between attempts.
	RetryBaseDelay  time.Duration `koanf:"retry_base_delay"`
	RetryMultiplier float64       `koanf:"retry_multiplier"`
	RetryMaxDelay   time.Duration `koanf:"retry_max_delay"`

	// RateLimitRPS throttles outbound requests client-side. 0 disables.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// BreakerEnabled guards each endpoint with a circuit breaker.
	BreakerEnabled bool `koanf:"breaker_enabled"`
}

// AuthConfig describes the token lifecycle.
type AuthConfig struct {
	// RefreshPath is the gateway path of the token refresh endpoint.
	RefreshPath string `koanf:"refresh_path"`

	// ExpiryBuffer is subtracted from the token expiry when judging
	// validity, so tokens are renewed before they actually lapse.
	ExpiryBuffer time.Duration `koanf:"expiry_buffer"`

	// RefreshAhead schedules the proactive refresh this long before expiry.
	// MinRefreshDelay is the floor for that schedule.
	RefreshAhead    time.Duration `koanf:"refresh_ahead"`
	MinRefreshDelay time.Duration `koanf:"min_refresh_delay"`

	// Refresh retry shape.
	RefreshMaxAttempts int           `koanf:"refresh_max_attempts"`
	RefreshBaseDelay   time.Duration `koanf:"refresh_base_delay"`
	RefreshMultiplier  float64       `koanf:"refresh_multiplier"`
	RefreshMaxDelay    time.Duration `koanf:"refresh_max_delay"`

	// Cooldown after consecutive refresh failures.
	CooldownMaxFailures int           `koanf:"cooldown_max_failures"`
	CooldownWindow      time.Duration `koanf:"cooldown_window"`

	// Store selects the persistent token store backend: badger or memory.
	Store     string `koanf:"store"`
	StorePath string `koanf:"store_path"`

	// EncryptionKey enables at-rest encryption of the stored refresh token
	// when set. Minimum 32 characters.
	EncryptionKey string `koanf:"encryption_key"`
}

// SyncConfig describes session-state synchronization between SDK instances.
type SyncConfig struct {
	Enabled bool `koanf:"enabled"`

	// Transport selects the broadcast mechanism: gochannel or nats.
	Transport string `koanf:"transport"`

	// Topic is the broadcast subject for session-state envelopes.
	Topic string `koanf:"topic"`

	// StorageWatch enables the fallback sync path that watches the
	// persistent store for changes made by other instances.
	StorageWatch bool `koanf:"storage_watch"`

	// NATS settings (transport = nats).
	NATSURL        string `koanf:"nats_url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
}

// RecoveryConfig bounds the invalid-state recovery machine and sizes the
// fallback data cache.
type RecoveryConfig struct {
	MaxAttempts       int           `koanf:"max_attempts"`
	FallbackCacheSize int           `koanf:"fallback_cache_size"`
	FallbackCacheTTL  time.Duration `koanf:"fallback_cache_ttl"`

	// SweepInterval is how often the daemon validates persisted session
	// state in the background. 0 disables the sweep.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// MonitorConfig shapes error aggregation and escalation.
type MonitorConfig struct {
	// Window is the sliding window for error counts.
	Window time.Duration `koanf:"window"`

	// PatternThreshold flags an endpoint after this many errors in the window.
	PatternThreshold int `koanf:"pattern_threshold"`

	// Webhook notification for new escalations.
	WebhookEnabled   bool          `koanf:"webhook_enabled"`
	WebhookURL       string        `koanf:"webhook_url"`
	WebhookRateLimit time.Duration `koanf:"webhook_rate_limit"`
}

// ServerConfig describes the operational HTTP surface of the daemon.
type ServerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`

	Timeout time.Duration `koanf:"timeout"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			BaseURL:         "",
			Timeout:         30 * time.Second,
			MaxAttempts:     3,
			RetryBaseDelay:  1 * time.Second,
			RetryMultiplier: 2.0,
			RetryMaxDelay:   10 * time.Second,
			RateLimitRPS:    0, // Unlimited
			RateLimitBurst:  10,
			BreakerEnabled:  true,
		},
		Auth: AuthConfig{
			RefreshPath:         "/auth/refresh",
			ExpiryBuffer:        5 * time.Minute,
			RefreshAhead:        10 * time.Minute,
			MinRefreshDelay:     1 * time.Minute,
			RefreshMaxAttempts:  3,
			RefreshBaseDelay:    1 * time.Second,
			RefreshMultiplier:   2.0,
			RefreshMaxDelay:     10 * time.Second,
			CooldownMaxFailures: 3,
			CooldownWindow:      5 * time.Minute,
			// Persistent by default so sessions survive restarts
			Store:         "badger",
			StorePath:     "/data/stevedore/session",
			EncryptionKey: "",
		},
		Sync: SyncConfig{
			Enabled:        true,
			Transport:      "gochannel",
			Topic:          "session.state",
			StorageWatch:   true,
			NATSURL:        "nats://127.0.0.1:4222",
			EmbeddedServer: false,
			StoreDir:       "/data/stevedore/nats",
		},
		Recovery: RecoveryConfig{
			MaxAttempts:       3,
			FallbackCacheSize: 256,
			FallbackCacheTTL:  5 * time.Minute,
			SweepInterval:     10 * time.Minute,
		},
		Monitor: MonitorConfig{
			Window:           15 * time.Minute,
			PatternThreshold: 5,
			WebhookEnabled:   false,
			WebhookURL:       "",
			WebhookRateLimit: time.Minute,
		},
		Server: ServerConfig{
			Enabled:           true,
			Host:              "127.0.0.1",
			Port:              9180,
			Timeout:           30 * time.Second,
			RateLimitReqs:     100,
			RateLimitWindow:   1 * time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
