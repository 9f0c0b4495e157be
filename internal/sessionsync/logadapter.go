// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package sessionsync

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// watermillLogger bridges Watermill's logging into zerolog. Watermill's
// trace level maps to debug; zerolog has nothing lower.
type watermillLogger struct {
	log zerolog.Logger
}

func newWatermillLogger(log zerolog.Logger) watermill.LoggerAdapter {
	return watermillLogger{log: log}
}

func (l watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.emit(l.log.Error().Err(err), fields, msg)
}

func (l watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.emit(l.log.Info(), fields, msg)
}

func (l watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.emit(l.log.Debug(), fields, msg)
}

func (l watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.emit(l.log.Debug(), fields, msg)
}

func (l watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := l.log.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return watermillLogger{log: ctx.Logger()}
}

func (l watermillLogger) emit(ev *zerolog.Event, fields watermill.LogFields, msg string) {
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}
