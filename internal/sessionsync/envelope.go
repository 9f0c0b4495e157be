// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package sessionsync

import (
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/freightmesh/stevedore/internal/auth"
)

// DefaultTopic is the broadcast subject for session-state envelopes.
const DefaultTopic = "session.state"

// Envelope is one broadcast session-state change. ChangedAt is the
// last-writer-wins stamp; receivers drop envelopes that are not strictly
// newer than their local state.
type Envelope struct {
	Origin    string          `json:"origin"`
	State     auth.TokenState `json:"state"`
	ChangedAt time.Time       `json:"changedAt"`
}

// Validate checks the fields a receiver depends on.
func (e Envelope) Validate() error {
	if e.Origin == "" {
		return errors.New("envelope missing origin")
	}
	if e.ChangedAt.IsZero() {
		return errors.New("envelope missing change stamp")
	}
	return nil
}

func encodeEnvelope(env Envelope) ([]byte, error) {
	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("validate envelope: %w", err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
