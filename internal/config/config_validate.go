// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package config

import (
	"fmt"
	"strings"
)

// minEncryptionKeyLength is the minimum length for the at-rest encryption key.
const minEncryptionKeyLength = 32

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateGateway,
		c.validateAuth,
		c.validateSync,
		c.validateRecovery,
		c.validateMonitor,
		c.validateServer,
		c.validateLogging,
	}

	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validateGateway() error {
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("GATEWAY_URL is required")
	}
	if err := validateHTTPURL(c.Gateway.BaseURL, "GATEWAY_URL"); err != nil {
		return fmt.Errorf("GATEWAY_URL is invalid: %w", err)
	}

	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive, got: %v", c.Gateway.Timeout)
	}
	if c.Gateway.MaxAttempts < 1 {
		return fmt.Errorf("GATEWAY_MAX_ATTEMPTS must be at least 1, got: %d", c.Gateway.MaxAttempts)
	}
	if c.Gateway.RetryBaseDelay <= 0 {
		return fmt.Errorf("GATEWAY_RETRY_BASE_DELAY must be positive, got: %v", c.Gateway.RetryBaseDelay)
	}
	if c.Gateway.RetryMultiplier < 1 {
		return fmt.Errorf("GATEWAY_RETRY_MULTIPLIER must be at least 1, got: %v", c.Gateway.RetryMultiplier)
	}
	if c.Gateway.RetryMaxDelay < c.Gateway.RetryBaseDelay {
		return fmt.Errorf("GATEWAY_RETRY_MAX_DELAY must not be below the base delay")
	}
	if c.Gateway.RateLimitRPS < 0 {
		return fmt.Errorf("GATEWAY_RATE_LIMIT_RPS must not be negative, got: %v", c.Gateway.RateLimitRPS)
	}

	return nil
}

func (c *Config) validateAuth() error {
	if c.Auth.RefreshPath == "" || !strings.HasPrefix(c.Auth.RefreshPath, "/") {
		return fmt.Errorf("AUTH_REFRESH_PATH must be an absolute path, got: %q", c.Auth.RefreshPath)
	}

	if c.Auth.ExpiryBuffer < 0 {
		return fmt.Errorf("AUTH_EXPIRY_BUFFER must not be negative, got: %v", c.Auth.ExpiryBuffer)
	}
	if c.Auth.RefreshAhead <= 0 {
		return fmt.Errorf("AUTH_REFRESH_AHEAD must be positive, got: %v", c.Auth.RefreshAhead)
	}
	if c.Auth.MinRefreshDelay <= 0 {
		return fmt.Errorf("AUTH_MIN_REFRESH_DELAY must be positive, got: %v", c.Auth.MinRefreshDelay)
	}

	if c.Auth.RefreshMaxAttempts < 1 {
		return fmt.Errorf("AUTH_REFRESH_MAX_ATTEMPTS must be at least 1, got: %d", c.Auth.RefreshMaxAttempts)
	}
	if c.Auth.RefreshBaseDelay <= 0 {
		return fmt.Errorf("AUTH_REFRESH_BASE_DELAY must be positive, got: %v", c.Auth.RefreshBaseDelay)
	}
	if c.Auth.RefreshMultiplier < 1 {
		return fmt.Errorf("AUTH_REFRESH_MULTIPLIER must be at least 1, got: %v", c.Auth.RefreshMultiplier)
	}

	if c.Auth.CooldownMaxFailures < 1 {
		return fmt.Errorf("AUTH_COOLDOWN_MAX_FAILURES must be at least 1, got: %d", c.Auth.CooldownMaxFailures)
	}
	if c.Auth.CooldownWindow <= 0 {
		return fmt.Errorf("AUTH_COOLDOWN_WINDOW must be positive, got: %v", c.Auth.CooldownWindow)
	}

	switch c.Auth.Store {
	case "badger":
		if c.Auth.StorePath == "" {
			return fmt.Errorf("AUTH_STORE_PATH is required when AUTH_STORE=badger")
		}
	case "memory":
		// No path needed
	default:
		return fmt.Errorf("AUTH_STORE must be 'badger' or 'memory', got: %q", c.Auth.Store)
	}

	if c.Auth.EncryptionKey != "" && len(c.Auth.EncryptionKey) < minEncryptionKeyLength {
		return fmt.Errorf("AUTH_ENCRYPTION_KEY must be at least %d characters, got %d",
			minEncryptionKeyLength, len(c.Auth.EncryptionKey))
	}

	return nil
}

func (c *Config) validateSync() error {
	if !c.Sync.Enabled {
		return nil
	}

	switch c.Sync.Transport {
	case "gochannel":
		// In-process, nothing more to check
	case "nats":
		if c.Sync.NATSURL == "" {
			return fmt.Errorf("NATS_URL is required when SYNC_TRANSPORT=nats")
		}
		if !strings.HasPrefix(c.Sync.NATSURL, "nats://") && !strings.HasPrefix(c.Sync.NATSURL, "tls://") {
			return fmt.Errorf("NATS_URL must use nats:// or tls:// scheme, got: %q", c.Sync.NATSURL)
		}
		if c.Sync.EmbeddedServer && c.Sync.StoreDir == "" {
			return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
		}
	default:
		return fmt.Errorf("SYNC_TRANSPORT must be 'gochannel' or 'nats', got: %q", c.Sync.Transport)
	}

	if c.Sync.Topic == "" {
		return fmt.Errorf("SYNC_TOPIC must not be empty")
	}

	return nil
}

func (c *Config) validateRecovery() error {
	if c.Recovery.MaxAttempts < 1 {
		return fmt.Errorf("RECOVERY_MAX_ATTEMPTS must be at least 1, got: %d", c.Recovery.MaxAttempts)
	}
	if c.Recovery.FallbackCacheSize < 0 {
		return fmt.Errorf("RECOVERY_FALLBACK_CACHE_SIZE must not be negative, got: %d", c.Recovery.FallbackCacheSize)
	}
	if c.Recovery.SweepInterval < 0 {
		return fmt.Errorf("RECOVERY_SWEEP_INTERVAL must not be negative, got: %v", c.Recovery.SweepInterval)
	}
	return nil
}

func (c *Config) validateMonitor() error {
	if c.Monitor.Window <= 0 {
		return fmt.Errorf("MONITOR_WINDOW must be positive, got: %v", c.Monitor.Window)
	}
	if c.Monitor.PatternThreshold < 1 {
		return fmt.Errorf("MONITOR_PATTERN_THRESHOLD must be at least 1, got: %d", c.Monitor.PatternThreshold)
	}
	if c.Monitor.WebhookEnabled {
		if c.Monitor.WebhookURL == "" {
			return fmt.Errorf("MONITOR_WEBHOOK_URL is required when MONITOR_WEBHOOK_ENABLED=true")
		}
		if err := validateHTTPURL(c.Monitor.WebhookURL, "MONITOR_WEBHOOK_URL"); err != nil {
			// Webhooks commonly carry a path, so only require scheme and host
			if !strings.HasPrefix(c.Monitor.WebhookURL, "http://") && !strings.HasPrefix(c.Monitor.WebhookURL, "https://") {
				return fmt.Errorf("MONITOR_WEBHOOK_URL is invalid: %w", err)
			}
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if !c.Server.Enabled {
		return nil
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got: %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got: %v", c.Server.Timeout)
	}
	if !c.Server.RateLimitDisabled {
		if c.Server.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got: %d", c.Server.RateLimitReqs)
		}
		if c.Server.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got: %v", c.Server.RateLimitWindow)
		}
	}

	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled", "":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, panic, got: %q", c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console", "":
	default:
		return fmt.Errorf("LOG_FORMAT must be 'json' or 'console', got: %q", c.Logging.Format)
	}

	return nil
}
