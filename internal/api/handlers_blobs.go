// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/fieldsync/internal/blobstage"
)

// StageBlob handles POST /api/v1/blobs with a multipart "file" part. The
// returned key goes into a chamber payload's photo reference.
func (h *Handler) StageBlob(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	// Headroom for multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, h.deps.MaxUploadBytes+64<<10)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "Upload exceeds size limit")
			return
		}
		rw.BadRequest(ErrMissingFile.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.deps.MaxUploadBytes+1))
	if err != nil {
		rw.BadRequest("Could not read upload")
		return
	}
	if int64(len(data)) > h.deps.MaxUploadBytes {
		rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "Upload exceeds size limit")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	filename := filepath.Base(header.Filename)

	key, err := h.deps.Blobs.Stage(r.Context(), data, mimeType, filename)
	switch {
	case errors.Is(err, blobstage.ErrEmptyBlob):
		rw.BadRequest("Upload is empty")
		return
	case err != nil:
		rw.StorageError(err)
		return
	case key == "":
		rw.ServiceUnavailable("Photo staging is unavailable on this device")
		return
	}

	rw.Created(StagedResponse{Key: key, MimeType: mimeType, Filename: filename, Size: len(data)})
}

// GetBlob handles GET /api/v1/blobs/{key} and returns the raw bytes.
func (h *Handler) GetBlob(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	blob, ok, err := h.deps.Blobs.Retrieve(r.Context(), key)
	if err != nil {
		NewResponseWriter(w, r).StorageError(err)
		return
	}
	if !ok {
		NewResponseWriter(w, r).NotFound("No staged blob with that key")
		return
	}

	w.Header().Set("Content-Type", blob.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Cache-Control", "no-store")
	if blob.Filename != "" {
		if cd := mime.FormatMediaType("inline", map[string]string{"filename": blob.Filename}); cd != "" {
			w.Header().Set("Content-Disposition", cd)
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Data)
}

// DeleteBlob handles DELETE /api/v1/blobs/{key}. Unknown keys succeed.
func (h *Handler) DeleteBlob(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if err := h.deps.Blobs.Remove(r.Context(), chi.URLParam(r, "key")); err != nil {
		rw.StorageError(err)
		return
	}
	rw.NoContent()
}
