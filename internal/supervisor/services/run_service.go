// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package services

import (
	"context"
)

// Runner is the lifecycle contract shared by the daemon's long-running
// components: block until the context ends, then return the terminal
// error. ctx.Err() means a clean shutdown; anything else asks the
// supervisor for a restart.
//
// Satisfied by *websocket.Hub, *sessionsync.Broadcaster,
// *sessionsync.StoreWatcher, and *monitor.Monitor.
type Runner interface {
	Run(ctx context.Context) error
}

// RunService adapts a Runner to suture.Service. The delegation is direct
// since the contracts already agree; the wrapper only contributes the
// stable name supervision events are logged under.
type RunService struct {
	runner Runner
	name   string
}

// NewRunService wraps an arbitrary Runner under the given service name.
func NewRunService(name string, runner Runner) *RunService {
	return &RunService{runner: runner, name: name}
}

// NewEventHubService wraps the WebSocket event hub.
func NewEventHubService(hub Runner) *RunService {
	return NewRunService("event-hub", hub)
}

// NewBroadcastService wraps the cross-instance session broadcaster.
func NewBroadcastService(broadcaster Runner) *RunService {
	return NewRunService("session-broadcast", broadcaster)
}

// NewStoreWatchService wraps the shared-store change watcher.
func NewStoreWatchService(watcher Runner) *RunService {
	return NewRunService("store-watcher", watcher)
}

// NewMonitorService wraps the error monitor's pruning loop.
func NewMonitorService(mon Runner) *RunService {
	return NewRunService("error-monitor", mon)
}

// Serve implements suture.Service.
func (s *RunService) Serve(ctx context.Context) error {
	return s.runner.Run(ctx)
}

// String implements fmt.Stringer for supervision events.
func (s *RunService) String() string {
	return s.name
}
