// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package recovery

import (
	"context"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/freightmesh/stevedore/internal/apierror"
	"github.com/freightmesh/stevedore/internal/logging"
	"github.com/freightmesh/stevedore/internal/metrics"
)

// Outcome tells the request pipeline what to do with a classified failure.
// Exactly one of ShouldRetry, FallbackData or RequiresUserAction carries the
// decision; UserMessage is always set on a handled outcome.
type Outcome struct {
	Handled            bool            `json:"handled"`
	ShouldRetry        bool            `json:"shouldRetry"`
	FallbackData       json.RawMessage `json:"fallbackData,omitempty"`
	FallbackSource     string          `json:"fallbackSource,omitempty"`
	UserMessage        string          `json:"userMessage"`
	RequiresUserAction bool            `json:"requiresUserAction"`
}

// TokenErrorHandler is the slice of the session manager the auth strategy
// needs: decide whether an auth failure is survivable. A nil return means
// the token was refreshed and the request may be retried.
type TokenErrorHandler interface {
	HandleTokenError(ctx context.Context, cerr *apierror.ClassifiedError) error
}

// Strategy handles one class of failure. Returning an error means the
// strategy itself failed; the manager then degrades generically.
type Strategy interface {
	Recover(ctx context.Context, cerr *apierror.ClassifiedError) (*Outcome, error)
}

// Manager routes classified errors to their strategy. The table is fixed at
// construction: AUTH, NETWORK, SERVER and TIMEOUT, PARSING. Types without
// an entry (validation, unknown) are surfaced to the caller untouched.
type Manager struct {
	strategies map[apierror.Type]Strategy
	fallbacks  *FallbackProvider
	log        zerolog.Logger
}

// NewManager builds the strategy table. maxRetries bounds the per-request
// retry budget the transient strategies consult; zero or less means 3.
func NewManager(tokens TokenErrorHandler, fallbacks *FallbackProvider, maxRetries int) *Manager {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	transient := &transientStrategy{fallbacks: fallbacks, maxRetries: maxRetries}
	return &Manager{
		strategies: map[apierror.Type]Strategy{
			apierror.TypeAuth:    &authStrategy{tokens: tokens},
			apierror.TypeNetwork: transient,
			apierror.TypeServer:  transient,
			apierror.TypeTimeout: transient,
			apierror.TypeParsing: &parsingStrategy{fallbacks: fallbacks},
		},
		fallbacks: fallbacks,
		log:       logging.WithComponent("recovery"),
	}
}

// Register replaces the strategy for a type. Registering nil removes the
// entry, leaving that type unhandled.
func (m *Manager) Register(t apierror.Type, s Strategy) {
	if s == nil {
		delete(m.strategies, t)
		return
	}
	m.strategies[t] = s
}

// Recover runs the strategy for the error's type. A nil outcome means no
// strategy covers this error and the caller must surface it.
func (m *Manager) Recover(ctx context.Context, cerr *apierror.ClassifiedError) *Outcome {
	if cerr == nil {
		return nil
	}

	strategy, ok := m.strategies[cerr.Type]
	if !ok {
		metrics.RecordRecovery(string(cerr.Type), "unhandled")
		return nil
	}

	outcome, err := strategy.Recover(ctx, cerr)
	if err != nil {
		// The strategy itself broke; degrade rather than give up.
		m.log.Error().Err(err).
			Str("type", string(cerr.Type)).
			Str("endpoint", cerr.Context.Endpoint).
			Msg("Recovery strategy failed, degrading to fallback data")
		outcome = m.genericFallback(cerr)
	}

	metrics.RecordRecovery(string(cerr.Type), outcomeLabel(outcome))
	if outcome != nil {
		m.log.Debug().
			Str("type", string(cerr.Type)).
			Str("endpoint", cerr.Context.Endpoint).
			Bool("retry", outcome.ShouldRetry).
			Str("fallback_source", outcome.FallbackSource).
			Bool("user_action", outcome.RequiresUserAction).
			Msg("Recovery outcome")
	}
	return outcome
}

func (m *Manager) genericFallback(cerr *apierror.ClassifiedError) *Outcome {
	data, source := m.fallbacks.Lookup(cerr.Context.Method, cerr.Context.Endpoint)
	return &Outcome{
		Handled:        true,
		FallbackData:   data,
		FallbackSource: source,
		UserMessage:    cerr.UserMessage(),
	}
}

func outcomeLabel(o *Outcome) string {
	switch {
	case o == nil:
		return "unhandled"
	case o.ShouldRetry:
		return "retry"
	case o.RequiresUserAction:
		return "user_action"
	default:
		return "fallback"
	}
}

// authStrategy delegates to the session manager. The manager refreshes,
// clears or keeps the session; this strategy only translates the result.
type authStrategy struct {
	tokens TokenErrorHandler
}

func (s *authStrategy) Recover(ctx context.Context, cerr *apierror.ClassifiedError) (*Outcome, error) {
	if err := s.tokens.HandleTokenError(ctx, cerr); err != nil {
		return &Outcome{
			Handled:            true,
			RequiresUserAction: true,
			UserMessage:        cerr.UserMessage(),
		}, nil
	}
	return &Outcome{
		Handled:     true,
		ShouldRetry: true,
		UserMessage: "Session renewed, retrying.",
	}, nil
}

// transientStrategy covers network, server and timeout failures: retry
// while the budget lasts, then serve fallback data.
type transientStrategy struct {
	fallbacks  *FallbackProvider
	maxRetries int
}

func (s *transientStrategy) Recover(_ context.Context, cerr *apierror.ClassifiedError) (*Outcome, error) {
	if cerr.Context.RetryCount < s.maxRetries {
		return &Outcome{
			Handled:     true,
			ShouldRetry: true,
			UserMessage: cerr.UserMessage(),
		}, nil
	}

	data, source := s.fallbacks.Lookup(cerr.Context.Method, cerr.Context.Endpoint)
	return &Outcome{
		Handled:        true,
		FallbackData:   data,
		FallbackSource: source,
		UserMessage:    cerr.UserMessage(),
	}, nil
}

// parsingStrategy never retries: a response that did not parse will not
// parse better next time.
type parsingStrategy struct {
	fallbacks *FallbackProvider
}

func (s *parsingStrategy) Recover(_ context.Context, cerr *apierror.ClassifiedError) (*Outcome, error) {
	data, source := s.fallbacks.Lookup(cerr.Context.Method, cerr.Context.Endpoint)
	return &Outcome{
		Handled:        true,
		FallbackData:   data,
		FallbackSource: source,
		UserMessage:    cerr.UserMessage(),
	}, nil
}
