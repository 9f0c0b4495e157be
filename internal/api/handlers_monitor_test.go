// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/freightmesh/stevedore/internal/apierror"
	"github.com/freightmesh/stevedore/internal/monitor"
	ws "github.com/freightmesh/stevedore/internal/websocket"
)

func authFailure(endpoint string) *apierror.ClassifiedError {
	return apierror.Classify(nil, apierror.RequestContext{
		Endpoint:  endpoint,
		Method:    http.MethodGet,
		Timestamp: time.Now(),
	}, http.StatusUnauthorized)
}

// seedEscalation raises exactly one pending escalation and returns its ID.
func seedEscalation(ctx context.Context, t *testing.T, mon *monitor.Monitor) string {
	t.Helper()

	mon.AddRule(monitor.EscalationRule{
		Name:      "repeated_auth_failures",
		Condition: monitor.Condition{ErrorType: apierror.TypeAuth, Count: 3, TimeWindowMinutes: 10},
		Action:    "notify",
	})
	for i := 0; i < 3; i++ {
		mon.Record(ctx, authFailure("/api/v1/bookings"))
	}

	events := mon.Escalations(monitor.EventFilter{})
	if len(events) != 1 {
		t.Fatalf("seeded %d escalations, want exactly 1", len(events))
	}
	return events[0].ID
}

func TestErrorSummaryEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &fakeRefresher{})
	ctx := t.Context()
	env.monitor.Record(ctx, authFailure("/api/v1/bookings"))
	env.monitor.Record(ctx, authFailure("/api/v1/manifests"))

	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/errors/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/errors/summary = %d, want 200", rec.Code)
	}

	data := dataMap(t, decodeEnvelope(t, rec))
	if got, _ := data["total"].(float64); got != 2 {
		t.Errorf("total = %v, want 2", data["total"])
	}
	byType, ok := data["byType"].(map[string]interface{})
	if !ok {
		t.Fatalf("byType = %T, want an object", data["byType"])
	}
	if got, _ := byType["auth"].(float64); got != 2 {
		t.Errorf("byType.auth = %v, want 2", byType["auth"])
	}
	byEndpoint, ok := data["byEndpoint"].(map[string]interface{})
	if !ok {
		t.Fatalf("byEndpoint = %T, want an object", data["byEndpoint"])
	}
	if got, _ := byEndpoint["/api/v1/bookings"].(float64); got != 1 {
		t.Errorf("byEndpoint[/api/v1/bookings] = %v, want 1", byEndpoint["/api/v1/bookings"])
	}
	if data["generatedAt"] == nil {
		t.Error("generatedAt should be set")
	}
}

func TestErrorPatternsEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &fakeRefresher{})
	ctx := t.Context()

	// The pattern threshold in the test monitor is 100.
	for i := 0; i < 100; i++ {
		env.monitor.Record(ctx, authFailure("/api/v1/bookings"))
	}

	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/errors/patterns", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/errors/patterns = %d, want 200", rec.Code)
	}

	data := dataMap(t, decodeEnvelope(t, rec))
	if got, _ := data["count"].(float64); got != 1 {
		t.Fatalf("count = %v, want 1 flagged endpoint", data["count"])
	}
	patterns, ok := data["patterns"].([]interface{})
	if !ok || len(patterns) != 1 {
		t.Fatalf("patterns = %v, want one entry", data["patterns"])
	}
	pattern := patterns[0].(map[string]interface{})
	if pattern["endpoint"] != "/api/v1/bookings" {
		t.Errorf("pattern.endpoint = %v, want /api/v1/bookings", pattern["endpoint"])
	}
	if got, _ := pattern["count"].(float64); got < 100 {
		t.Errorf("pattern.count = %v, want at least 100", pattern["count"])
	}
}

func TestErrorPatternsEndpointQuiet(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &fakeRefresher{})

	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/errors/patterns", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/errors/patterns = %d, want 200", rec.Code)
	}
	data := dataMap(t, decodeEnvelope(t, rec))
	if got, _ := data["count"].(float64); got != 0 {
		t.Errorf("count = %v, want 0 on a quiet monitor", data["count"])
	}
}

func TestListEscalations(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &fakeRefresher{})
	id := seedEscalation(t.Context(), t, env.monitor)

	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/escalations", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/escalations = %d, want 200", rec.Code)
	}

	resp := decodeEnvelope(t, rec)
	events, ok := resp.Data.([]interface{})
	if !ok {
		t.Fatalf("Data = %T, want an array", resp.Data)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	event := events[0].(map[string]interface{})
	if event["id"] != id {
		t.Errorf("event.id = %v, want %s", event["id"], id)
	}
	if event["rule"] != "repeated_auth_failures" {
		t.Errorf("event.rule = %v, want repeated_auth_failures", event["rule"])
	}
	if event["status"] != string(monitor.StatusPending) {
		t.Errorf("event.status = %v, want pending", event["status"])
	}

	if resp.Meta == nil || resp.Meta.Pagination == nil {
		t.Fatal("pagination meta should be present on list responses")
	}
	p := resp.Meta.Pagination
	if p.Count != 1 || p.Limit != 100 || p.HasMore {
		t.Errorf("pagination = %+v, want count 1, limit 100, no more", p)
	}
}

func TestListEscalationsStatusFilter(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &fakeRefresher{})
	seedEscalation(t.Context(), t, env.monitor)

	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/escalations?status=resolved", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("filtered list = %d, want 200", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	events, ok := resp.Data.([]interface{})
	if !ok || len(events) != 0 {
		t.Errorf("Data = %v, want an empty array for status=resolved", resp.Data)
	}

	rec = doRequest(t, env.router, http.MethodGet, "/api/v1/escalations?status=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=bogus = %d, want 400", rec.Code)
	}
	if resp := decodeEnvelope(t, rec); resp.Error == nil || resp.Error.Code != ErrCodeBadRequest {
		t.Errorf("Error = %+v, want code %s", resp.Error, ErrCodeBadRequest)
	}
}

func TestListEscalationsLimitValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &fakeRefresher{})

	for _, limit := range []string{"abc", "0", "-5"} {
		rec := doRequest(t, env.router, http.MethodGet, "/api/v1/escalations?limit="+limit, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s = %d, want 400", limit, rec.Code)
		}
	}

	// Oversized limits are capped, not rejected.
	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/escalations?limit=9000", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("limit=9000 = %d, want 200", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Meta == nil || resp.Meta.Pagination == nil || resp.Meta.Pagination.Limit != maxEscalationLimit {
		t.Errorf("pagination = %+v, want limit capped at %d", resp.Meta.Pagination, maxEscalationLimit)
	}
}

func TestGetEscalation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &fakeRefresher{})
	id := seedEscalation(t.Context(), t, env.monitor)

	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/escalations/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/escalations/%s = %d, want 200", id, rec.Code)
	}
	data := dataMap(t, decodeEnvelope(t, rec))
	if data["id"] != id {
		t.Errorf("id = %v, want %s", data["id"], id)
	}

	rec = doRequest(t, env.router, http.MethodGet, "/api/v1/escalations/esc-unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown escalation = %d, want 404", rec.Code)
	}
	if resp := decodeEnvelope(t, rec); resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Errorf("Error = %+v, want code %s", resp.Error, ErrCodeNotFound)
	}
}

func TestAcknowledgeEscalation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &fakeRefresher{})
	id := seedEscalation(t.Context(), t, env.monitor)

	body := strings.NewReader(`{"assignedTo": "oncall"}`)
	rec := doRequest(t, env.router, http.MethodPost, "/api/v1/escalations/"+id+"/acknowledge", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("acknowledge = %d, body %s", rec.Code, rec.Body.String())
	}
	data := dataMap(t, decodeEnvelope(t, rec))
	if data["status"] != string(monitor.StatusAcknowledged) {
		t.Errorf("status = %v, want acknowledged", data["status"])
	}
	if data["assignedTo"] != "oncall" {
		t.Errorf("assignedTo = %v, want oncall", data["assignedTo"])
	}
	if data["acknowledgedAt"] == nil {
		t.Error("acknowledgedAt should be set")
	}

	// Only pending escalations can be acknowledged.
	rec = doRequest(t, env.router, http.MethodPost, "/api/v1/escalations/"+id+"/acknowledge", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second acknowledge = %d, want 409", rec.Code)
	}
	if resp := decodeEnvelope(t, rec); resp.Error == nil || resp.Error.Code != ErrCodeConflict {
		t.Errorf("Error = %+v, want code %s", resp.Error, ErrCodeConflict)
	}
}

func TestAcknowledgeEscalationDefaultAssignee(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &fakeRefresher{})
	id := seedEscalation(t.Context(), t, env.monitor)

	rec := doRequest(t, env.router, http.MethodPost, "/api/v1/escalations/"+id+"/acknowledge", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("acknowledge without a body = %d, want 200", rec.Code)
	}
	data := dataMap(t, decodeEnvelope(t, rec))
	if data["assignedTo"] != "operator" {
		t.Errorf("assignedTo = %v, want the operator default", data["assignedTo"])
	}
}

func TestAcknowledgeEscalationNotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &fakeRefresher{})

	rec := doRequest(t, env.router, http.MethodPost, "/api/v1/escalations/esc-unknown/acknowledge", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("acknowledge unknown = %d, want 404", rec.Code)
	}
}

func TestResolveEscalation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &fakeRefresher{})
	id := seedEscalation(t.Context(), t, env.monitor)

	rec := doRequest(t, env.router, http.MethodPost, "/api/v1/escalations/"+id+"/resolve", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve = %d, body %s", rec.Code, rec.Body.String())
	}
	data := dataMap(t, decodeEnvelope(t, rec))
	if data["status"] != string(monitor.StatusResolved) {
		t.Errorf("status = %v, want resolved", data["status"])
	}
	if data["resolvedAt"] == nil {
		t.Error("resolvedAt should be set")
	}

	rec = doRequest(t, env.router, http.MethodPost, "/api/v1/escalations/"+id+"/resolve", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second resolve = %d, want 409", rec.Code)
	}
}

func TestMonitorEndpointsWithoutMonitor(t *testing.T) {
	t.Parallel()

	handler := NewHandler(nil, nil, nil, nil, nil, nil, "test")
	router := NewRouter(handler, nil).Setup()

	paths := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/api/v1/errors/summary"},
		{http.MethodGet, "/api/v1/errors/patterns"},
		{http.MethodGet, "/api/v1/escalations"},
		{http.MethodGet, "/api/v1/escalations/esc-1"},
		{http.MethodPost, "/api/v1/escalations/esc-1/acknowledge"},
		{http.MethodPost, "/api/v1/escalations/esc-1/resolve"},
	}
	for _, p := range paths {
		rec := doRequest(t, router, p.method, p.target, nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s = %d, want 503 when the monitor is absent", p.method, p.target, rec.Code)
		}
	}
}

// ========================================================================
// Event stream
// ========================================================================

func dialEvents(t *testing.T, server *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/events"
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func readMessage(t *testing.T, conn *websocket.Conn) ws.Message {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("setting read deadline: %v", err)
	}
	var msg ws.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading event stream message: %v", err)
	}
	return msg
}

func TestEventsStreamEscalationLifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnvWithHub(t)

	conn, resp, err := dialEvents(t, env.server, allowedOrigin)
	if err != nil {
		t.Fatalf("dialing event stream: %v (resp %+v)", err, resp)
	}
	defer conn.Close()
	waitFor(t, 2*time.Second, "client registration", func() bool {
		return env.hub.ClientCount() == 1
	})

	id := seedEscalation(t.Context(), t, env.monitor)

	msg := readMessage(t, conn)
	if msg.Type != ws.MessageTypeEscalation {
		t.Fatalf("msg.Type = %q, want %q", msg.Type, ws.MessageTypeEscalation)
	}
	if msg.Event != monitor.EventCreated {
		t.Fatalf("msg.Event = %q, want %q", msg.Event, monitor.EventCreated)
	}
	event, ok := msg.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("msg.Data = %T, want an object", msg.Data)
	}
	if event["id"] != id {
		t.Errorf("event.id = %v, want %s", event["id"], id)
	}

	// Acknowledging over HTTP is pushed to the same stream.
	rec := doRequest(t, env.router, http.MethodPost, "/api/v1/escalations/"+id+"/acknowledge", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("acknowledge = %d, want 200", rec.Code)
	}
	msg = readMessage(t, conn)
	if msg.Event != monitor.EventAcknowledged {
		t.Fatalf("msg.Event = %q, want %q", msg.Event, monitor.EventAcknowledged)
	}
}

func TestEventsStreamSessionState(t *testing.T) {
	t.Parallel()

	env := newTestEnvWithHub(t)

	conn, _, err := dialEvents(t, env.server, allowedOrigin)
	if err != nil {
		t.Fatalf("dialing event stream: %v", err)
	}
	defer conn.Close()
	waitFor(t, 2*time.Second, "client registration", func() bool {
		return env.hub.ClientCount() == 1
	})

	token := signIn(t.Context(), t, env)

	msg := readMessage(t, conn)
	if msg.Type != ws.MessageTypeSession {
		t.Fatalf("msg.Type = %q, want %q", msg.Type, ws.MessageTypeSession)
	}
	info, ok := msg.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("msg.Data = %T, want an object", msg.Data)
	}
	if info["authenticated"] != true {
		t.Errorf("authenticated = %v, want true", info["authenticated"])
	}
	if info["changedAt"] == nil {
		t.Error("changedAt should be set on pushed session state")
	}
	fingerprint, _ := info["tokenFingerprint"].(string)
	if fingerprint == "" || fingerprint == token || strings.Contains(fingerprint, token) {
		t.Errorf("tokenFingerprint = %q, want a redacted value", fingerprint)
	}
}

func TestEventsRejectsUnknownOrigin(t *testing.T) {
	t.Parallel()

	env := newTestEnvWithHub(t)

	for _, origin := range []string{"https://evil.example.com", ""} {
		conn, resp, err := dialEvents(t, env.server, origin)
		if err == nil {
			conn.Close()
			t.Fatalf("dial with origin %q succeeded, want handshake rejection", origin)
		}
		if resp == nil || resp.StatusCode != http.StatusForbidden {
			t.Errorf("origin %q: handshake status = %+v, want 403", origin, resp)
		}
	}
}

func TestEventsWithoutHub(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &fakeRefresher{})

	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/events", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /api/v1/events without a hub = %d, want 503", rec.Code)
	}
}
