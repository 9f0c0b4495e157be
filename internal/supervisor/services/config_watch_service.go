// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/freightmesh/stevedore/internal/config"
	"github.com/freightmesh/stevedore/internal/logging"
)

// ConfigWatchService reacts to config file changes on disk. The onChange
// callback reloads the file and applies whatever can change at runtime;
// settings wired into running components keep their boot-time values until
// the daemon restarts. The callback runs on the watch provider's goroutine.
type ConfigWatchService struct {
	path     string
	onChange func()
	log      zerolog.Logger
	name     string
}

// NewConfigWatchService watches path and invokes onChange after each change.
func NewConfigWatchService(path string, onChange func()) *ConfigWatchService {
	return &ConfigWatchService{
		path:     path,
		onChange: onChange,
		log:      logging.WithComponent("config_watch"),
		name:     "config-watch",
	}
}

// Serve implements suture.Service. The watch lives on the provider's own
// goroutine; Serve parks until shutdown and then removes the watch so a
// supervisor restart never stacks a second watcher on the same file.
func (s *ConfigWatchService) Serve(ctx context.Context) error {
	stop, err := config.WatchConfigFile(s.path, s.onChange)
	if err != nil {
		return fmt.Errorf("watch config file %s: %w", s.path, err)
	}

	s.log.Info().Str("path", s.path).Msg("Watching config file")

	<-ctx.Done()

	if err := stop(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to remove config file watch")
	}

	return ctx.Err()
}

// String implements fmt.Stringer for supervision events.
func (s *ConfigWatchService) String() string {
	return s.name
}
