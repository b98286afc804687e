// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/replay"
	"github.com/tomtom215/fieldsync/internal/validation"
)

// SyncNow handles POST /api/v1/sync. It runs a drain pass to completion and
// returns its counts; a pass already in flight yields 409.
func (h *Handler) SyncNow(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	res, err := h.deps.Status.SyncNow(r.Context())
	switch {
	case errors.Is(err, replay.ErrDrainInProgress):
		rw.Conflict("A sync is already running")
		return
	case err != nil:
		rw.StorageError(err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("drain_id", res.DrainID).
		Int("success", res.Success).
		Int("failed", res.Failed).
		Msg("manual sync finished")
	rw.Success(res)
}

// Status handles GET /api/v1/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.deps.Status.Snapshot())
}

// RefreshStatus handles POST /api/v1/status/refresh, sent by the UI when it
// regains focus. A failed read returns the last known depth.
func (h *Handler) RefreshStatus(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.Status.Refresh(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("depth refresh missed")
	}
	WriteSuccess(w, r, DepthResponse{Depth: n})
}

// SetOnline handles PUT /api/v1/status/online with {"online": bool}.
func (h *Handler) SetOnline(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req OnlineRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		rw.BadRequest(`Request body must be {"online": true|false}`)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.Validation(verr)
		return
	}

	h.deps.Status.SetOnline(*req.Online)
	rw.Success(h.deps.Status.Snapshot())
}

// MyPermissions handles GET /api/v1/permissions so the UI can hide actions
// the caller's role cannot perform.
func (h *Handler) MyPermissions(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	sub := subject(r)

	perms := map[string][]string{}
	if h.deps.Permissions != nil {
		p, err := h.deps.Permissions.Permissions(sub.Role)
		if err != nil {
			rw.Error(http.StatusInternalServerError, ErrCodeInternalError, "Could not load permissions")
			return
		}
		perms = p
	}
	rw.Success(PermissionsResponse{Subject: sub.ID, Role: sub.Role.String(), Permissions: perms})
}
