// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/stevedore/config.yaml",
	"/etc/stevedore/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values
//  2. Config file: optional YAML file (if it exists)
//  3. Environment variables: override any setting
//
// Precedence: ENV > file > defaults. The resulting config is validated
// before being returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	configPath := FindConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Comma-separated env values for known slice fields
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// FindConfigFile returns the config file Load would use: the CONFIG_PATH
// override when set, otherwise the first DefaultConfigPaths entry that
// exists. Returns "" when no file is present and Load runs on defaults
// and environment alone.
func FindConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated
// slices when they arrive as env strings.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings, the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables return "" and are skipped, so arbitrary environment
// noise never pollutes the configuration.
//
// Examples:
//   - GATEWAY_URL -> gateway.base_url
//   - AUTH_STORE_PATH -> auth.store_path
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Gateway mappings
		"gateway_url":              "gateway.base_url",
		"gateway_timeout":          "gateway.timeout",
		"gateway_max_attempts":     "gateway.max_attempts",
		"gateway_retry_base_delay": "gateway.retry_base_delay",
		"gateway_retry_multiplier": "gateway.retry_multiplier",
		"gateway_retry_max_delay":  "gateway.retry_max_delay",
		"gateway_rate_limit_rps":   "gateway.rate_limit_rps",
		"gateway_rate_limit_burst": "gateway.rate_limit_burst",
		"gateway_breaker_enabled":  "gateway.breaker_enabled",

		// Auth mappings
		"auth_refresh_path":          "auth.refresh_path",
		"auth_expiry_buffer":         "auth.expiry_buffer",
		"auth_refresh_ahead":         "auth.refresh_ahead",
		"auth_min_refresh_delay":     "auth.min_refresh_delay",
		"auth_refresh_max_attempts":  "auth.refresh_max_attempts",
		"auth_refresh_base_delay":    "auth.refresh_base_delay",
		"auth_refresh_multiplier":    "auth.refresh_multiplier",
		"auth_refresh_max_delay":     "auth.refresh_max_delay",
		"auth_cooldown_max_failures": "auth.cooldown_max_failures",
		"auth_cooldown_window":       "auth.cooldown_window",
		"auth_store":                 "auth.store",
		"auth_store_path":            "auth.store_path",
		"auth_encryption_key":        "auth.encryption_key",

		// Sync mappings
		"sync_enabled":       "sync.enabled",
		"sync_transport":     "sync.transport",
		"sync_topic":         "sync.topic",
		"sync_storage_watch": "sync.storage_watch",
		"nats_url":           "sync.nats_url",
		"nats_embedded":      "sync.embedded_server",
		"nats_store_dir":     "sync.store_dir",

		// Recovery mappings
		"recovery_max_attempts":        "recovery.max_attempts",
		"recovery_fallback_cache_size": "recovery.fallback_cache_size",
		"recovery_fallback_cache_ttl":  "recovery.fallback_cache_ttl",
		"recovery_sweep_interval":      "recovery.sweep_interval",

		// Monitor mappings
		"monitor_window":             "monitor.window",
		"monitor_pattern_threshold":  "monitor.pattern_threshold",
		"monitor_webhook_enabled":    "monitor.webhook_enabled",
		"monitor_webhook_url":        "monitor.webhook_url",
		"monitor_webhook_rate_limit": "monitor.webhook_rate_limit",

		// Server mappings
		"server_enabled":      "server.enabled",
		"http_host":           "server.host",
		"http_port":           "server.port",
		"http_timeout":        "server.timeout",
		"rate_limit_requests": "server.rate_limit_reqs",
		"rate_limit_window":   "server.rate_limit_window",
		"disable_rate_limit":  "server.rate_limit_disabled",
		"cors_origins":        "server.cors_origins",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Skip unmapped keys
	return ""
}

// WatchConfigFile sets up a file watcher for hot-reload and returns a stop
// function that removes the watch. The callback runs on the provider's
// goroutine; the caller is responsible for serializing access to any
// configuration it replaces.
//
//	stop, err := config.WatchConfigFile(path, func() {
//	    newCfg, err := config.Load()
//	    if err != nil {
//	        logging.Err(err).Msg("config reload failed")
//	        return
//	    }
//	    logging.SetLevelString(newCfg.Logging.Level)
//	})
func WatchConfigFile(path string, callback func()) (func() error, error) {
	provider := file.Provider(path)

	err := provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
	if err != nil {
		return nil, err
	}

	return provider.Unwatch, nil
}
