// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/freightmesh/stevedore/internal/apierror"
	"github.com/freightmesh/stevedore/internal/logging"
	"github.com/freightmesh/stevedore/internal/metrics"
	"github.com/freightmesh/stevedore/internal/recovery"
)

// maxResponseBytes bounds how much of a gateway response is read.
const maxResponseBytes = 10 << 20

// errServerStatus marks a 5xx response inside the circuit breaker so it
// counts as a failure without discarding the response.
var errServerStatus = errors.New("upstream server error")

// TokenSource supplies the bearer token for outbound requests, refreshing
// it first when needed.
type TokenSource interface {
	GetValidToken(ctx context.Context) (string, error)
}

// ErrorObserver receives every classified failure the pipeline produces,
// including ones later absorbed by retries or fallbacks.
type ErrorObserver interface {
	Record(ctx context.Context, cerr *apierror.ClassifiedError)
}

// Request describes one gateway call.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Body      any
	Component string
}

// Response is the pipeline's outcome. Exactly one of Data and RawText is
// set; FromCache marks payloads served by the degradation chain instead of
// the gateway.
type Response struct {
	StatusCode     int
	Data           json.RawMessage
	RawText        string
	FromCache      bool
	FallbackSource string
	UserMessage    string
}

// Decode unmarshals the JSON payload into v.
func (r *Response) Decode(v any) error {
	if r.Data == nil {
		return fmt.Errorf("response is not JSON (content %q)", truncate(r.RawText, 64))
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Config wires a Pipeline.
type Config struct {
	// BaseURL is the gateway origin (required).
	BaseURL string

	// Timeout is the hard per-attempt deadline. Defaults to 30s.
	Timeout time.Duration

	// Retry shapes the outer retry loop. Nil means defaults.
	Retry *RetryPolicy

	// RateLimitRPS throttles outbound attempts. 0 disables.
	RateLimitRPS   float64
	RateLimitBurst int

	// BreakerEnabled guards each endpoint with a circuit breaker.
	BreakerEnabled bool
	Breaker        BreakerConfig

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Pipeline executes requests with the full resilience stack. Construct one
// per gateway and share it; all state is safe for concurrent use.
type Pipeline struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration

	tokens    TokenSource
	recovery  *recovery.Manager
	fallbacks *recovery.FallbackProvider
	retry     *RetryPolicy
	limiter   *rate.Limiter
	breakers  *breakerSet
	observer  ErrorObserver

	log zerolog.Logger
}

// NewPipeline validates the configuration and builds the pipeline.
func NewPipeline(cfg Config, tokens TokenSource, rec *recovery.Manager, fallbacks *recovery.FallbackProvider) (*Pipeline, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid gateway base URL %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	p := &Pipeline{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		timeout:    cfg.Timeout,
		tokens:     tokens,
		recovery:   rec,
		fallbacks:  fallbacks,
		retry:      cfg.Retry.withDefaults(),
		log:        logging.WithComponent("pipeline"),
	}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	if cfg.BreakerEnabled {
		p.breakers = newBreakerSet(cfg.Breaker)
	}
	return p, nil
}

// SetErrorObserver attaches an observer for classified failures. Call before
// the first request; the pipeline does not guard against mid-flight swaps.
func (p *Pipeline) SetErrorObserver(obs ErrorObserver) {
	p.observer = obs
}

// Do runs one request through the pipeline. A non-nil Response with
// FromCache set means the gateway call failed but the degradation chain
// supplied data; a nil Response with an error means the failure surfaced.
func (p *Pipeline) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	requestID := logging.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = logging.GenerateRequestID()
	}
	reqCtx := apierror.RequestContext{
		Endpoint:  req.Path,
		Method:    req.Method,
		Component: req.Component,
		Timestamp: time.Now(),
		RequestID: requestID,
	}

	var body []byte
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = encoded
	}

	metrics.TrackActiveRequest(true)
	defer metrics.TrackActiveRequest(false)

	for attempt := 0; ; attempt++ {
		reqCtx = reqCtx.WithRetry(attempt)

		resp, cerr := p.attempt(ctx, req, body, reqCtx)
		if cerr == nil {
			return resp, nil
		}
		metrics.RecordClassification(string(cerr.Type), string(cerr.Severity))
		if p.observer != nil {
			p.observer.Record(ctx, cerr)
		}

		outcome := p.recovery.Recover(ctx, cerr)
		if outcome == nil {
			return nil, cerr
		}

		if outcome.ShouldRetry && attempt+1 < p.retry.MaxAttempts {
			metrics.APIRetries.WithLabelValues(req.Path).Inc()
			delay := p.retry.NextDelay(attempt)
			p.log.Debug().
				Str("endpoint", req.Path).
				Int("attempt", attempt+1).
				Dur("delay", delay).
				Msg("Retrying request")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		// The attempt budget ran out before the strategy gave up. Reads
		// degrade to fallback data; anything else surfaces the failure
		// rather than faking a result.
		if outcome.ShouldRetry && req.Method == http.MethodGet && p.fallbacks != nil {
			outcome.FallbackData, outcome.FallbackSource = p.fallbacks.Lookup(req.Method, req.Path)
		}

		if outcome.FallbackData != nil {
			p.log.Info().
				Str("endpoint", req.Path).
				Str("source", outcome.FallbackSource).
				Msg("Serving degraded response")
			return &Response{
				StatusCode:     cerr.StatusCode,
				Data:           outcome.FallbackData,
				FromCache:      true,
				FallbackSource: outcome.FallbackSource,
				UserMessage:    outcome.UserMessage,
			}, nil
		}

		return nil, fmt.Errorf("%s: %w", outcome.UserMessage, cerr)
	}
}

// attempt performs one gateway round trip and classifies any failure.
func (p *Pipeline) attempt(ctx context.Context, req Request, body []byte, reqCtx apierror.RequestContext) (*Response, *apierror.ClassifiedError) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, apierror.Classify(err, reqCtx, 0)
		}
	}

	// A missing token is not fatal here: the request goes out without
	// authorization and the gateway's 401 drives the recovery path.
	token := ""
	if p.tokens != nil {
		t, err := p.tokens.GetValidToken(ctx)
		if err != nil {
			p.log.Debug().Err(err).Str("endpoint", req.Path).Msg("Proceeding without bearer token")
		} else {
			token = t
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, p.buildURL(req), bytes.NewReader(body))
	if err != nil {
		return nil, apierror.Classify(err, reqCtx, 0)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", reqCtx.RequestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	httpResp, err := p.execute(httpReq, req.Path)
	duration := time.Since(started)

	if err != nil && !errors.Is(err, errServerStatus) {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// An open breaker reads as the service being unavailable.
			return nil, apierror.Classify(err, reqCtx, http.StatusServiceUnavailable)
		}
		return nil, apierror.Classify(err, reqCtx, 0)
	}
	defer func() { _ = httpResp.Body.Close() }()

	metrics.RecordAPIRequest(req.Method, req.Path, strconv.Itoa(httpResp.StatusCode), duration)

	payload, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, apierror.Classify(fmt.Errorf("read response: %w", err), reqCtx, httpResp.StatusCode)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		statusErr := fmt.Errorf("gateway returned status %d: %s", httpResp.StatusCode, truncate(string(payload), 200))
		return nil, apierror.Classify(statusErr, reqCtx, httpResp.StatusCode)
	}

	contentType := httpResp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		// Non-JSON bodies pass through untouched, never parsed.
		return &Response{StatusCode: httpResp.StatusCode, RawText: string(payload)}, nil
	}

	if !json.Valid(payload) {
		parseErr := fmt.Errorf("unmarshal response: invalid JSON body (%s)", truncate(string(payload), 64))
		return nil, apierror.Classify(parseErr, reqCtx, httpResp.StatusCode)
	}

	if p.fallbacks != nil {
		p.fallbacks.CacheResponse(req.Method, req.Path, json.RawMessage(payload))
	}
	return &Response{StatusCode: httpResp.StatusCode, Data: payload}, nil
}

func (p *Pipeline) execute(req *http.Request, endpoint string) (*http.Response, error) {
	if p.breakers == nil {
		return p.httpClient.Do(req)
	}

	cb := p.breakers.get(endpoint)
	return cb.Execute(func() (*http.Response, error) {
		resp, err := p.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return resp, errServerStatus
		}
		return resp, nil
	})
}

func (p *Pipeline) buildURL(req Request) string {
	u := p.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	return u
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
