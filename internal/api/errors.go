// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/fieldsync/internal/auth"
	"github.com/tomtom215/fieldsync/internal/authz"
)

var (
	// ErrQueueUnavailable is reported when local storage could not be opened.
	ErrQueueUnavailable = errors.New("local storage unavailable; changes are not being queued")

	// ErrMissingFile is returned when a blob upload has no "file" part.
	ErrMissingFile = errors.New(`multipart field "file" is required`)
)

// writeAuthError renders auth and authz middleware failures in the
// response envelope. It satisfies auth.ErrorWriter.
func writeAuthError(w http.ResponseWriter, r *http.Request, status int, err error) {
	rw := NewResponseWriter(w, r)
	switch {
	case status == http.StatusUnauthorized:
		msg := "Authentication required"
		if errors.Is(err, auth.ErrExpiredCredentials) {
			msg = "Token expired"
		} else if errors.Is(err, auth.ErrInvalidCredentials) {
			msg = "Invalid token"
		}
		w.Header().Set("WWW-Authenticate", `Bearer realm="fieldsync"`)
		rw.Error(status, ErrCodeUnauthorized, msg)
	case errors.Is(err, authz.ErrForbidden), errors.Is(err, authz.ErrNoSubject):
		rw.Forbidden("Insufficient permissions")
	default:
		rw.Error(http.StatusInternalServerError, ErrCodeInternalError, "Authorization failed")
	}
}

var _ auth.ErrorWriter = writeAuthError
