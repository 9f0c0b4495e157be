// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithRequiredEnv(t *testing.T) {
	t.Setenv("GATEWAY_URL", "https://admin.freightmesh.io")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Gateway.BaseURL != "https://admin.freightmesh.io" {
		t.Errorf("unexpected gateway URL: %s", cfg.Gateway.BaseURL)
	}
	if cfg.Auth.RefreshPath != "/auth/refresh" {
		t.Errorf("expected default refresh path, got %s", cfg.Auth.RefreshPath)
	}
	if cfg.Server.Port != 9180 {
		t.Errorf("expected default port 9180, got %d", cfg.Server.Port)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GATEWAY_URL", "http://localhost:8080")
	t.Setenv("GATEWAY_MAX_ATTEMPTS", "5")
	t.Setenv("AUTH_STORE", "memory")
	t.Setenv("AUTH_COOLDOWN_WINDOW", "10m")
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Gateway.MaxAttempts != 5 {
		t.Errorf("expected 5 max attempts from env, got %d", cfg.Gateway.MaxAttempts)
	}
	if cfg.Auth.Store != "memory" {
		t.Errorf("expected memory store from env, got %s", cfg.Auth.Store)
	}
	if cfg.Auth.CooldownWindow != 10*time.Minute {
		t.Errorf("expected 10m cooldown window from env, got %v", cfg.Auth.CooldownWindow)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999 from env, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level from env, got %s", cfg.Logging.Level)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
gateway:
  base_url: https://staging.freightmesh.io
  max_attempts: 4
auth:
  store: memory
sync:
  transport: gochannel
  topic: staging.session
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Gateway.BaseURL != "https://staging.freightmesh.io" {
		t.Errorf("expected file gateway URL, got %s", cfg.Gateway.BaseURL)
	}
	if cfg.Gateway.MaxAttempts != 4 {
		t.Errorf("expected 4 attempts from file, got %d", cfg.Gateway.MaxAttempts)
	}
	if cfg.Sync.Topic != "staging.session" {
		t.Errorf("expected staging topic from file, got %s", cfg.Sync.Topic)
	}
	// Untouched values keep defaults
	if cfg.Auth.RefreshPath != "/auth/refresh" {
		t.Errorf("expected default refresh path, got %s", cfg.Auth.RefreshPath)
	}
}

func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
gateway:
  base_url: https://file.freightmesh.io
auth:
  store: memory
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("GATEWAY_URL", "https://env.freightmesh.io")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Gateway.BaseURL != "https://env.freightmesh.io" {
		t.Errorf("expected env to override file, got %s", cfg.Gateway.BaseURL)
	}
}

func TestCORSOriginsFromEnv(t *testing.T) {
	t.Setenv("GATEWAY_URL", "https://admin.freightmesh.io")
	t.Setenv("CORS_ORIGINS", "https://a.freightmesh.io, https://b.freightmesh.io")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	origins := cfg.Server.CORSOrigins
	if len(origins) != 2 {
		t.Fatalf("expected 2 origins, got %d: %v", len(origins), origins)
	}
	if origins[0] != "https://a.freightmesh.io" || origins[1] != "https://b.freightmesh.io" {
		t.Errorf("unexpected origins: %v", origins)
	}
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	t.Setenv("GATEWAY_URL", "https://admin.freightmesh.io")
	t.Setenv("AUTH_STORE", "redis")

	if _, err := Load(); err == nil {
		t.Fatal("expected Load to fail validation for unknown store")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"GATEWAY_URL", "gateway.base_url"},
		{"AUTH_STORE_PATH", "auth.store_path"},
		{"NATS_URL", "sync.nats_url"},
		{"HTTP_PORT", "server.port"},
		{"LOG_LEVEL", "logging.level"},
		{"RANDOM_UNRELATED_VAR", ""},
		{"PATH", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.in); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
