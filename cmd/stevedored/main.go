// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freightmesh/stevedore/internal/api"
	"github.com/freightmesh/stevedore/internal/auth"
	"github.com/freightmesh/stevedore/internal/config"
	"github.com/freightmesh/stevedore/internal/logging"
	"github.com/freightmesh/stevedore/internal/monitor"
	"github.com/freightmesh/stevedore/internal/sessionsync"
	"github.com/freightmesh/stevedore/internal/supervisor"
	"github.com/freightmesh/stevedore/internal/supervisor/services"
	ws "github.com/freightmesh/stevedore/internal/websocket"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Str("version", version).Msg("Starting stevedored with supervisor tree")
	logging.Info().
		Str("gateway_url", cfg.Gateway.BaseURL).
		Str("store", cfg.Auth.Store).
		Str("sync_transport", cfg.Sync.Transport).
		Msg("Configuration loaded")

	// Session store: badger with memory fallback, so a bad disk degrades
	// the session to process lifetime instead of refusing to start
	store := auth.NewStore(cfg.Auth.Store, cfg.Auth.StorePath)
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session store")
		}
	}()

	cipher, err := auth.NewTokenCipher(cfg.Auth.EncryptionKey)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid session encryption key")
	}
	if cipher != nil {
		logging.Info().Msg("Refresh token encryption at rest enabled")
	}

	refresher := auth.NewHTTPRefresher(cfg.Gateway.BaseURL, cfg.Auth.RefreshPath, cfg.Gateway.Timeout)

	manager := auth.NewManager(store, refresher, cipher, auth.ManagerConfig{
		ExpiryBuffer:        cfg.Auth.ExpiryBuffer,
		RefreshAhead:        cfg.Auth.RefreshAhead,
		MinRefreshDelay:     cfg.Auth.MinRefreshDelay,
		RefreshMaxAttempts:  cfg.Auth.RefreshMaxAttempts,
		RefreshBaseDelay:    cfg.Auth.RefreshBaseDelay,
		RefreshMultiplier:   cfg.Auth.RefreshMultiplier,
		RefreshMaxDelay:     cfg.Auth.RefreshMaxDelay,
		CooldownMaxFailures: cfg.Auth.CooldownMaxFailures,
		CooldownWindow:      cfg.Auth.CooldownWindow,
	})
	defer manager.Close()

	manager.OnReauthRequired(func(reason string) {
		logging.Warn().Str("reason", reason).Msg("Session requires reauthentication")
	})

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.Hydrate(ctx); err != nil {
		logging.Warn().Err(err).Msg("Session hydration incomplete, starting with what was readable")
	}

	// Boot validation: repair persisted state before anything consumes it.
	// The periodic sweep and the validate endpoint run the same pair later.
	validator := auth.NewStateValidator(manager, store)
	stateRecovery := auth.NewStateRecovery(manager, store, validator, cfg.Recovery.MaxAttempts)
	if report := validator.Validate(ctx); !report.Valid {
		result := stateRecovery.RecoverFrom(ctx, report)
		logging.Warn().
			Str("level", report.Level.String()).
			Str("strategy", string(result.Strategy)).
			Bool("success", result.Success).
			Bool("requires_reauth", result.RequiresReauth).
			Msg("Persisted session state was invalid at boot")
	}

	// Error monitor: escalation rules and optional webhook
	mon := monitor.NewMonitor(monitor.Config{
		Window:           cfg.Monitor.Window,
		PatternThreshold: int64(cfg.Monitor.PatternThreshold),
	})
	if cfg.Monitor.WebhookEnabled && cfg.Monitor.WebhookURL != "" {
		mon.RegisterNotifier(monitor.NewWebhookNotifier(monitor.WebhookConfig{
			WebhookURL: cfg.Monitor.WebhookURL,
			Enabled:    true,
			RateLimit:  cfg.Monitor.WebhookRateLimit,
		}))
		logging.Info().Str("url", cfg.Monitor.WebhookURL).Msg("Escalation webhook notifier registered")
	}

	// Event hub for the ops WebSocket stream
	hub := ws.NewHub()

	handler := api.NewHandler(manager, validator, stateRecovery, mon, hub, cfg, version)

	// Session changes and escalations reach connected observers
	manager.OnChange(handler.BroadcastSessionChange)
	mon.OnEscalation(handler.BroadcastEscalation)

	// Session sync: gochannel or NATS transport, optional embedded broker.
	// The transport is picked by initSyncTransport, which has a build-tag
	// pair: without -tags nats, transport=nats falls back to gochannel.
	var broadcaster *sessionsync.Broadcaster
	syncCleanup := func(context.Context) {}
	if cfg.Sync.Enabled {
		transport, cleanup, err := initSyncTransport(cfg)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize session sync transport")
		}
		syncCleanup = cleanup
		broadcaster = sessionsync.NewBroadcaster(manager, transport)
		logging.Info().
			Str("transport", transport.Name()).
			Str("origin", broadcaster.Origin()).
			Msg("Session sync enabled")
	} else {
		logging.Info().Msg("Session sync disabled (SYNC_ENABLED=false)")
	}

	// Create structured logger for supervisor using our slog adapter
	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	// Session layer services
	if cfg.Sync.StorageWatch {
		if badgerStore, ok := store.(*auth.BadgerStore); ok {
			watcher := sessionsync.NewStoreWatcher(manager, badgerStore)
			tree.AddSessionService(services.NewStoreWatchService(watcher))
			logging.Info().Msg("Store watcher added to supervisor tree")
		} else {
			logging.Debug().Msg("Store watch skipped: store is not persistent")
		}
	}
	if cfg.Recovery.SweepInterval > 0 {
		tree.AddSessionService(services.NewSweepService(validator, stateRecovery, cfg.Recovery.SweepInterval))
		logging.Info().Dur("interval", cfg.Recovery.SweepInterval).Msg("State sweep added to supervisor tree")
	}
	if configPath := config.FindConfigFile(); configPath != "" {
		tree.AddSessionService(services.NewConfigWatchService(configPath, func() {
			reloaded, err := config.Load()
			if err != nil {
				logging.Warn().Err(err).Msg("Config file changed but reload failed, keeping current settings")
				return
			}
			logging.SetLevelString(reloaded.Logging.Level)
			logging.Info().Str("level", reloaded.Logging.Level).Msg("Configuration reloaded")
		}))
	}

	// Messaging layer services
	tree.AddMessagingService(services.NewEventHubService(hub))
	if broadcaster != nil {
		tree.AddMessagingService(services.NewBroadcastService(broadcaster))
	}
	tree.AddMessagingService(services.NewMonitorService(mon))

	// API layer services
	if cfg.Server.Enabled {
		router := api.NewRouter(handler, api.NewChiMiddlewareFromConfig(cfg.Server))
		server := &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      router.Setup(),
			ReadTimeout:  cfg.Server.Timeout,
			WriteTimeout: cfg.Server.Timeout,
			IdleTimeout:  60 * time.Second,
		}
		tree.AddAPIService(services.NewHTTPService(server, 10*time.Second))
		logging.Info().Str("addr", server.Addr).Msg("Ops HTTP server added to supervisor tree")
	} else {
		logging.Info().Msg("Ops HTTP server disabled (HTTP_ENABLED=false)")
	}

	// === START SUPERVISOR TREE ===

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	// The transport and embedded broker close after the broadcaster stopped
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	syncCleanup(shutdownCtx)
	shutdownCancel()

	logging.Info().Msg("Application stopped gracefully")
}
