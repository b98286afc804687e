// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	drainIDKey   contextKey = "drain_id"
)

// NewRequestID returns a fresh uuid for an inbound HTTP request.
func NewRequestID() string {
	return uuid.New().String()
}

// NewDrainID returns a short id that tags every log line of one drain pass.
func NewDrainID() string {
	return uuid.New().String()[:8]
}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns "" when no request id is set.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func ContextWithDrainID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, drainIDKey, id)
}

// DrainIDFromContext returns "" outside a drain pass.
func DrainIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(drainIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns the global logger enriched with the request and drain ids
// carried by ctx.
//
//	logging.Ctx(ctx).Info().Str("type", "create-chamber").Msg("mutation replayed")
func Ctx(ctx context.Context) *zerolog.Logger {
	lc := With()
	if id := RequestIDFromContext(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}
	if id := DrainIDFromContext(ctx); id != "" {
		lc = lc.Str("drain_id", id)
	}
	l := lc.Logger()
	return &l
}
