// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/freightmesh/stevedore/internal/monitor"
	"github.com/freightmesh/stevedore/internal/sessionsync"
	"github.com/freightmesh/stevedore/internal/websocket"
)

// The wrappers only work if the real components keep the Run contract.
var (
	_ Runner = (*websocket.Hub)(nil)
	_ Runner = (*sessionsync.Broadcaster)(nil)
	_ Runner = (*sessionsync.StoreWatcher)(nil)
	_ Runner = (*monitor.Monitor)(nil)

	_ suture.Service = (*RunService)(nil)
)

type fakeRunner struct {
	runCalls atomic.Int32
	result   error
	block    bool
}

func (f *fakeRunner) Run(ctx context.Context) error {
	f.runCalls.Add(1)
	if !f.block {
		return f.result
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunServiceDelegation(t *testing.T) {
	runner := &fakeRunner{block: true}
	svc := NewRunService("blocking", runner)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Serve(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	if got := runner.runCalls.Load(); got != 1 {
		t.Errorf("expected 1 Run call, got %d", got)
	}
}

func TestRunServicePropagatesFailure(t *testing.T) {
	failure := errors.New("subscribe session sync: broker gone")
	runner := &fakeRunner{result: failure}
	svc := NewRunService("failing", runner)

	if err := svc.Serve(context.Background()); !errors.Is(err, failure) {
		t.Errorf("expected wrapped component error, got %v", err)
	}
}

func TestRunServiceNames(t *testing.T) {
	runner := &fakeRunner{}

	cases := []struct {
		svc  *RunService
		want string
	}{
		{NewEventHubService(runner), "event-hub"},
		{NewBroadcastService(runner), "session-broadcast"},
		{NewStoreWatchService(runner), "store-watcher"},
		{NewMonitorService(runner), "error-monitor"},
		{NewRunService("custom", runner), "custom"},
	}

	for _, tc := range cases {
		if got := tc.svc.String(); got != tc.want {
			t.Errorf("expected service name %q, got %q", tc.want, got)
		}
	}
}

func TestRunServiceRestartUnderSupervisor(t *testing.T) {
	// A component that fails twice and then holds should be restarted by
	// the supervisor until it settles.
	var calls atomic.Int32
	runner := &countingRunner{calls: &calls, failUntil: 2}

	sup := suture.New("restart-test", suture.Spec{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          time.Second,
	})
	sup.Add(NewRunService("flapper", runner))

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()

	errCh := sup.ServeBackground(ctx)

	deadline := time.After(300 * time.Millisecond)
	for calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 Run calls, got %d", calls.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}

// countingRunner fails its first failUntil runs, then blocks until canceled.
type countingRunner struct {
	calls     *atomic.Int32
	failUntil int32
}

func (c *countingRunner) Run(ctx context.Context) error {
	n := c.calls.Add(1)
	if n <= c.failUntil {
		return errors.New("simulated component crash")
	}
	<-ctx.Done()
	return ctx.Err()
}
