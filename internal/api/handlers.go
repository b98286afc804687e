// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/fieldsync/internal/auth"
	"github.com/tomtom215/fieldsync/internal/blobstage"
	"github.com/tomtom215/fieldsync/internal/models"
	"github.com/tomtom215/fieldsync/internal/mutationlog"
	"github.com/tomtom215/fieldsync/internal/replay"
	"github.com/tomtom215/fieldsync/internal/syncstatus"
)

// StatusService is the part of syncstatus.Reporter the API drives.
type StatusService interface {
	Snapshot() syncstatus.Status
	SyncNow(ctx context.Context) (replay.Result, error)
	Refresh(ctx context.Context) (int, error)
	SetOnline(online bool)
}

// Permissions answers role questions for handlers that cannot be gated by
// route alone.
type Permissions interface {
	CanEnqueue(role auth.Role, t models.MutationType) (bool, error)
	Permissions(role auth.Role) (map[string][]string, error)
}

// ReadinessCheck reports one dependency's health for /health/ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps are the collaborators behind the API.
type Deps struct {
	Queue       mutationlog.Log
	Blobs       blobstage.Stager
	Status      StatusService
	Permissions Permissions

	// QueueEnabled is false when the Disabled log is in use.
	QueueEnabled bool

	// MaxUploadBytes bounds POST /blobs bodies.
	MaxUploadBytes int64

	// WebSocket serves GET /api/v1/ws. Nil disables the route.
	WebSocket http.HandlerFunc

	Readiness []ReadinessCheck
}

// Handler holds the HTTP handlers.
type Handler struct {
	deps      Deps
	startTime time.Time
}

func NewHandler(deps Deps) *Handler {
	if deps.Blobs == nil {
		deps.Blobs = blobstage.Disabled{}
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 25 << 20
	}
	return &Handler{deps: deps, startTime: time.Now()}
}

// subject returns the caller attached by the auth middleware.
func subject(r *http.Request) *auth.Subject {
	if s := auth.SubjectFromContext(r.Context()); s != nil {
		return s
	}
	local := auth.LocalSubject
	return &local
}
