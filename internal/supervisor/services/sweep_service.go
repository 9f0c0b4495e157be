// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/freightmesh/stevedore/internal/auth"
	"github.com/freightmesh/stevedore/internal/logging"
)

// StateValidator inspects persisted session state for corruption.
// Satisfied by *auth.StateValidator.
type StateValidator interface {
	Validate(ctx context.Context) auth.ValidationReport
}

// StateRecoverer repairs the state described by a validation report.
// Satisfied by *auth.StateRecovery.
type StateRecoverer interface {
	RecoverFrom(ctx context.Context, report auth.ValidationReport) auth.RecoveryResult
}

// SweepService periodically validates the persisted session state and
// feeds invalid reports to the recovery machine. Corruption introduced
// between requests, by a crashed write or an outside edit of the store,
// gets repaired here instead of surfacing as a failed API call later.
//
// The validate endpoint of the ops API runs the same pair on demand; the
// sweep is the unattended counterpart.
type SweepService struct {
	validator StateValidator
	recovery  StateRecoverer
	interval  time.Duration
	log       zerolog.Logger
	name      string
}

// NewSweepService builds the sweep. interval of zero or less falls back
// to 10 minutes.
func NewSweepService(validator StateValidator, recovery StateRecoverer, interval time.Duration) *SweepService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &SweepService{
		validator: validator,
		recovery:  recovery,
		interval:  interval,
		log:       logging.WithComponent("state_sweep"),
		name:      "state-sweep",
	}
}

// Serve implements suture.Service. The first sweep fires one full
// interval after start; boot-time validation is the daemon's job.
func (s *SweepService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("State sweep started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("State sweep stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *SweepService) sweep(ctx context.Context) {
	report := s.validator.Validate(ctx)
	if report.Valid {
		s.log.Debug().Msg("Session state verified")
		return
	}

	s.log.Warn().
		Str("level", report.Level.String()).
		Int("findings", len(report.Findings)).
		Bool("storage_unavailable", report.StorageUnavailable).
		Msg("Sweep found invalid session state")

	result := s.recovery.RecoverFrom(ctx, report)
	if !result.Success || result.RequiresReauth {
		s.log.Warn().
			Str("strategy", string(result.Strategy)).
			Bool("requires_reauth", result.RequiresReauth).
			Str("message", result.Message).
			Msg("Sweep recovery left session degraded")
	}
}

// String implements fmt.Stringer for supervision events.
func (s *SweepService) String() string {
	return s.name
}
