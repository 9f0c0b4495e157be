// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/freightmesh/stevedore/internal/apierror"
	"github.com/freightmesh/stevedore/internal/logging"
	"github.com/freightmesh/stevedore/internal/recovery"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

// scriptedTokens hands out tokens in order, repeating the last one. A set
// error makes every call fail, simulating a session with no usable token.
type scriptedTokens struct {
	mu     sync.Mutex
	tokens []string
	err    error
}

func (s *scriptedTokens) GetValidToken(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if len(s.tokens) == 0 {
		return "test-token", nil
	}
	tok := s.tokens[0]
	if len(s.tokens) > 1 {
		s.tokens = s.tokens[1:]
	}
	return tok, nil
}

// stubTokenHandler stands in for the session manager's token error path.
type stubTokenHandler struct {
	err   error
	calls int
}

func (h *stubTokenHandler) HandleTokenError(context.Context, *apierror.ClassifiedError) error {
	h.calls++
	return h.err
}

// fastRetry keeps test retries in the millisecond range with no jitter.
func fastRetry() *RetryPolicy {
	return &RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2, Cap: 5 * time.Millisecond}
}

func newTestPipeline(t *testing.T, cfg Config, tokens TokenSource, handler recovery.TokenErrorHandler) (*Pipeline, *recovery.FallbackProvider) {
	t.Helper()
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Retry == nil {
		cfg.Retry = fastRetry()
	}
	fallbacks := recovery.NewFallbackProvider(16, time.Minute)
	rec := recovery.NewManager(handler, fallbacks, 3)
	p, err := NewPipeline(cfg, tokens, rec, fallbacks)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	return p, fallbacks
}

func jsonOK(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

func TestPipelineSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Request-ID"); got != "req-42" {
			t.Errorf("X-Request-ID = %q", got)
		}
		jsonOK(w, `{"status":"operational"}`)
	}))
	defer server.Close()

	p, _ := newTestPipeline(t, Config{BaseURL: server.URL}, &scriptedTokens{}, &stubTokenHandler{})

	ctx := logging.ContextWithRequestID(t.Context(), "req-42")
	resp, err := p.Do(ctx, Request{Method: http.MethodGet, Path: "/admin/status", Component: "status"})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	if resp.FromCache {
		t.Error("live response marked as degraded")
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := resp.Decode(&body); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if body.Status != "operational" {
		t.Errorf("status = %q", body.Status)
	}
}

func TestPipelineEncodesRequestBody(t *testing.T) {
	t.Parallel()

	type patch struct {
		Enabled bool `json:"enabled"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		payload, _ := io.ReadAll(r.Body)
		if string(payload) != `{"enabled":true}` {
			t.Errorf("body = %s", payload)
		}
		jsonOK(w, `{"ok":true}`)
	}))
	defer server.Close()

	p, _ := newTestPipeline(t, Config{BaseURL: server.URL}, &scriptedTokens{}, &stubTokenHandler{})

	req := Request{Method: http.MethodPost, Path: "/admin/feature-flags/new-dispatch-board", Body: patch{Enabled: true}}
	if _, err := p.Do(t.Context(), req); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
}

func TestPipelineProceedsWithoutToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("Authorization = %q, want none", got)
		}
		jsonOK(w, `{"public":true}`)
	}))
	defer server.Close()

	tokens := &scriptedTokens{err: errors.New("no active session")}
	p, _ := newTestPipeline(t, Config{BaseURL: server.URL}, tokens, &stubTokenHandler{})

	if _, err := p.Do(t.Context(), Request{Method: http.MethodGet, Path: "/health"}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
}

func TestPipelineRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) <= 2 {
			http.Error(w, "backend unavailable", http.StatusBadGateway)
			return
		}
		jsonOK(w, `{"recovered":true}`)
	}))
	defer server.Close()

	p, _ := newTestPipeline(t, Config{BaseURL: server.URL}, &scriptedTokens{}, &stubTokenHandler{})

	resp, err := p.Do(t.Context(), Request{Method: http.MethodGet, Path: "/admin/bookings"})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.FromCache {
		t.Error("third attempt succeeded, response should be live")
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("gateway hits = %d, want 3", got)
	}
}

func TestPipelineDegradesReadsWhenRetriesExhaust(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	p, fallbacks := newTestPipeline(t, Config{BaseURL: server.URL}, &scriptedTokens{}, &stubTokenHandler{})
	mock := json.RawMessage(`{"items":[],"pagination":{"page":1,"perPage":25,"totalItems":0,"totalPages":0}}`)
	fallbacks.RegisterMock(http.MethodGet, "/admin/bookings", mock)

	resp, err := p.Do(t.Context(), Request{Method: http.MethodGet, Path: "/admin/bookings"})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !resp.FromCache {
		t.Fatal("exhausted read should be served from the degradation chain")
	}
	if resp.FallbackSource != "mock" {
		t.Errorf("FallbackSource = %q, want mock", resp.FallbackSource)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	if string(resp.Data) != string(mock) {
		t.Errorf("Data = %s", resp.Data)
	}
	if resp.UserMessage == "" {
		t.Error("degraded response carries no user message")
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("gateway hits = %d, want 3", got)
	}
}

func TestPipelineSurfacesWriteFailures(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	p, _ := newTestPipeline(t, Config{BaseURL: server.URL}, &scriptedTokens{}, &stubTokenHandler{})

	req := Request{
		Method: http.MethodPost,
		Path:   "/admin/disputes/dp_1/resolve",
		Body:   map[string]string{"resolution": "refund"},
	}
	resp, err := p.Do(t.Context(), req)
	if err == nil {
		t.Fatal("exhausted write returned nil error")
	}
	if resp != nil {
		t.Errorf("resp = %+v, want nil", resp)
	}
	cerr, ok := apierror.As(err)
	if !ok {
		t.Fatalf("error chain has no classified error: %v", err)
	}
	if cerr.Type != apierror.TypeServer {
		t.Errorf("Type = %s, want %s", cerr.Type, apierror.TypeServer)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("gateway hits = %d, want 3", got)
	}
}

func TestPipelineRefreshesSessionOn401(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			if got := r.Header.Get("Authorization"); got != "Bearer stale" {
				t.Errorf("first attempt Authorization = %q", got)
			}
			http.Error(w, "token expired", http.StatusUnauthorized)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer fresh" {
			t.Errorf("retry Authorization = %q", got)
		}
		jsonOK(w, `{"ok":true}`)
	}))
	defer server.Close()

	tokens := &scriptedTokens{tokens: []string{"stale", "fresh"}}
	handler := &stubTokenHandler{}
	p, _ := newTestPipeline(t, Config{BaseURL: server.URL}, tokens, handler)

	resp, err := p.Do(t.Context(), Request{Method: http.MethodGet, Path: "/admin/transactions"})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.FromCache {
		t.Error("renewed session should produce a live response")
	}
	if handler.calls != 1 {
		t.Errorf("token handler calls = %d, want 1", handler.calls)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("gateway hits = %d, want 2", got)
	}
}

func TestPipelineSurfacesReauthRequired(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer server.Close()

	handler := &stubTokenHandler{err: errors.New("no refresh token")}
	p, _ := newTestPipeline(t, Config{BaseURL: server.URL}, &scriptedTokens{}, handler)

	_, err := p.Do(t.Context(), Request{Method: http.MethodGet, Path: "/admin/bookings"})
	if err == nil {
		t.Fatal("expected the reauth failure to surface")
	}
	cerr, ok := apierror.As(err)
	if !ok || cerr.Type != apierror.TypeAuth {
		t.Fatalf("err = %v, want classified auth error", err)
	}
	if !strings.Contains(err.Error(), "sign in again") {
		t.Errorf("error lacks operator guidance: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("gateway hits = %d, want 1", got)
	}
}

func TestPipelineNonJSONPassthrough(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "pong")
	}))
	defer server.Close()

	p, _ := newTestPipeline(t, Config{BaseURL: server.URL}, &scriptedTokens{}, &stubTokenHandler{})

	resp, err := p.Do(t.Context(), Request{Method: http.MethodGet, Path: "/ping"})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.RawText != "pong" {
		t.Errorf("RawText = %q", resp.RawText)
	}
	if resp.Data != nil {
		t.Errorf("Data = %s, want none", resp.Data)
	}
	var v any
	if err := resp.Decode(&v); err == nil {
		t.Error("Decode() on a text response should fail")
	}
}

func TestPipelineParseFailureServesEmptyState(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"items": [truncated`)
	}))
	defer server.Close()

	p, fallbacks := newTestPipeline(t, Config{BaseURL: server.URL}, &scriptedTokens{}, &stubTokenHandler{})
	fallbacks.RegisterEmptyState(http.MethodGet, "/admin/audit-log", json.RawMessage(`{"items":[]}`))

	resp, err := p.Do(t.Context(), Request{Method: http.MethodGet, Path: "/admin/audit-log"})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !resp.FromCache || resp.FallbackSource != "empty_state" {
		t.Errorf("FromCache = %v, FallbackSource = %q", resp.FromCache, resp.FallbackSource)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("gateway hits = %d, parse failures must not retry", got)
	}
}

func TestPipelineCachesSuccessfulReads(t *testing.T) {
	t.Parallel()

	payload := `{"items":[{"key":"new-dispatch-board","enabled":true,"rollout":100}]}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonOK(w, payload)
	}))
	defer server.Close()

	p, fallbacks := newTestPipeline(t, Config{BaseURL: server.URL}, &scriptedTokens{}, &stubTokenHandler{})

	if _, err := p.Do(t.Context(), Request{Method: http.MethodGet, Path: "/admin/feature-flags"}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	data, source := fallbacks.Lookup(http.MethodGet, "/admin/feature-flags")
	if source != "cached" {
		t.Errorf("source = %q, want cached", source)
	}
	if string(data) != payload {
		t.Errorf("cached payload = %s", data)
	}
}

func TestPipelineSurfacesUnhandledErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	p, _ := newTestPipeline(t, Config{BaseURL: server.URL}, &scriptedTokens{}, &stubTokenHandler{})

	_, err := p.Do(t.Context(), Request{Method: http.MethodGet, Path: "/admin/bookings/bk_missing"})
	if err == nil {
		t.Fatal("404 should surface")
	}
	cerr, ok := apierror.As(err)
	if !ok {
		t.Fatalf("error chain has no classified error: %v", err)
	}
	if cerr.Type != apierror.TypeValidation || cerr.StatusCode != http.StatusNotFound {
		t.Errorf("Type = %s, StatusCode = %d", cerr.Type, cerr.StatusCode)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("gateway hits = %d, validation errors must not retry", got)
	}
}

func TestPipelineBreakerShortCircuits(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := Config{
		BaseURL:        server.URL,
		BreakerEnabled: true,
		Breaker: BreakerConfig{
			MaxRequests:  1,
			Interval:     time.Minute,
			Timeout:      time.Minute,
			FailureRatio: 0.5,
			MinRequests:  3,
		},
	}
	p, _ := newTestPipeline(t, cfg, &scriptedTokens{}, &stubTokenHandler{})

	// First call burns the attempt budget and trips the endpoint breaker.
	resp, err := p.Do(t.Context(), Request{Method: http.MethodGet, Path: "/admin/bookings"})
	if err != nil {
		t.Fatalf("first Do() error = %v", err)
	}
	if !resp.FromCache {
		t.Fatal("first call should degrade, not fail")
	}
	if got := hits.Load(); got != 3 {
		t.Fatalf("gateway hits = %d, want 3", got)
	}

	// Second call finds the breaker open: degraded again, no gateway traffic.
	resp, err = p.Do(t.Context(), Request{Method: http.MethodGet, Path: "/admin/bookings"})
	if err != nil {
		t.Fatalf("second Do() error = %v", err)
	}
	if !resp.FromCache {
		t.Error("open breaker should degrade the response")
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", resp.StatusCode)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("gateway hits = %d after open breaker, want 3", got)
	}
}

func TestPipelineHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonOK(w, `{"ok":true}`)
	}))
	defer server.Close()

	p, _ := newTestPipeline(t, Config{BaseURL: server.URL}, &scriptedTokens{}, &stubTokenHandler{})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := p.Do(ctx, Request{Method: http.MethodGet, Path: "/admin/bookings"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestNewPipelineValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"valid origin", "https://gateway.freightmesh.io", false},
		{"empty", "", true},
		{"missing scheme", "gateway.freightmesh.io", true},
		{"scheme only", "https://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewPipeline(Config{BaseURL: tt.baseURL}, nil, nil, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewPipeline(%q) error = %v, wantErr %v", tt.baseURL, err, tt.wantErr)
			}
		})
	}

	t.Run("default timeout", func(t *testing.T) {
		t.Parallel()
		p, err := NewPipeline(Config{BaseURL: "https://gateway.freightmesh.io"}, nil, nil, nil)
		if err != nil {
			t.Fatalf("NewPipeline() error = %v", err)
		}
		if p.timeout != 30*time.Second {
			t.Errorf("timeout = %v, want 30s", p.timeout)
		}
	})
}
