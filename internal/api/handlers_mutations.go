// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/models"
	"github.com/tomtom215/fieldsync/internal/validation"
)

const maxMutationBody = 1 << 20

// EnqueueMutation handles POST /api/v1/mutations.
//
// The body names a mutation type and carries its payload. The payload is
// validated and the caller's role must allow the write before it is queued.
func (h *Handler) EnqueueMutation(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req EnqueueRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMutationBody))
	if err := dec.Decode(&req); err != nil {
		rw.BadRequest("Request body must be JSON with type and payload")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.Validation(verr)
		return
	}

	t, err := models.ParseMutationType(req.Type)
	if err != nil {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidationFailed,
			"type must be one of: "+mutationTypeNames(),
			map[string]interface{}{"field": "type", "tag": "oneof"})
		return
	}
	p, err := models.DecodePayload(t, req.Payload)
	if err != nil {
		rw.BadRequest("Payload does not match the " + t.String() + " shape")
		return
	}
	if verr := validation.ValidatePayload(t, p); verr != nil {
		rw.Validation(verr)
		return
	}

	sub := subject(r)
	if h.deps.Permissions != nil {
		ok, err := h.deps.Permissions.CanEnqueue(sub.Role, t)
		if err != nil {
			rw.Error(http.StatusInternalServerError, ErrCodeInternalError, "Authorization failed")
			return
		}
		if !ok {
			rw.Forbidden("Role " + sub.Role.String() + " may not queue " + t.String())
			return
		}
	}

	id, err := h.deps.Queue.Enqueue(r.Context(), t, p)
	if err != nil {
		rw.StorageError(err)
		return
	}
	if id == "" {
		logging.Ctx(r.Context()).Warn().Str("type", t.String()).Msg("mutation not queued: local storage unavailable")
	}
	rw.Created(EnqueueResponse{ID: id, Type: t, Queued: id != ""})
}

// ListMutations handles GET /api/v1/mutations, oldest first.
func (h *Handler) ListMutations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	entries, err := h.deps.Queue.List(r.Context())
	if err != nil {
		rw.StorageError(err)
		return
	}
	if entries == nil {
		entries = []models.QueuedMutation{}
	}
	rw.SuccessList(entries, len(entries))
}

// QueueDepth handles GET /api/v1/mutations/depth.
func (h *Handler) QueueDepth(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	n, err := h.deps.Queue.Len(r.Context())
	if err != nil {
		rw.StorageError(err)
		return
	}
	rw.Success(DepthResponse{Depth: n})
}

// RemoveMutation handles DELETE /api/v1/mutations/{id}. Unknown ids succeed.
func (h *Handler) RemoveMutation(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")
	if id == "" {
		rw.BadRequest("Mutation id is required")
		return
	}
	if err := h.deps.Queue.Remove(r.Context(), id); err != nil {
		rw.StorageError(err)
		return
	}
	logging.Ctx(r.Context()).Info().
		Str("mutation_id", id).
		Str("subject", subject(r).ID).
		Msg("mutation discarded")
	rw.NoContent()
}

// ClearMutations handles DELETE /api/v1/mutations.
func (h *Handler) ClearMutations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if err := h.deps.Queue.Clear(r.Context()); err != nil {
		rw.StorageError(err)
		return
	}
	logging.Ctx(r.Context()).Warn().Str("subject", subject(r).ID).Msg("mutation queue cleared")
	rw.NoContent()
}

func mutationTypeNames() string {
	names := make([]string, len(models.MutationTypes))
	for i, t := range models.MutationTypes {
		names[i] = t.String()
	}
	return strings.Join(names, ", ")
}
