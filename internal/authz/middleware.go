// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package authz

import (
	"errors"
	"net/http"

	"github.com/tomtom215/fieldsync/internal/auth"
	"github.com/tomtom215/fieldsync/internal/logging"
)

// ErrForbidden is reported when the subject's role lacks a permission.
var ErrForbidden = errors.New("insufficient permissions")

// ErrNoSubject is reported when no authentication middleware ran.
var ErrNoSubject = errors.New("no authentication context")

// Middleware guards routes with an Enforcer.
type Middleware struct {
	enforcer *Enforcer
	onError  auth.ErrorWriter
}

// NewMiddleware returns route guards backed by enforcer. onError renders
// 403 and 500 responses; nil uses http.Error.
func NewMiddleware(enforcer *Enforcer, onError auth.ErrorWriter) *Middleware {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, status int, err error) {
			http.Error(w, err.Error(), status)
		}
	}
	return &Middleware{enforcer: enforcer, onError: onError}
}

// Enforcer returns the underlying enforcer for handler-level checks.
func (m *Middleware) Enforcer() *Enforcer {
	return m.enforcer
}

// Authorize requires the request subject to hold (object, action).
func (m *Middleware) Authorize(object, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := auth.SubjectFromContext(r.Context())
			if subject == nil {
				m.onError(w, r, http.StatusForbidden, ErrNoSubject)
				return
			}

			allowed, err := m.enforcer.Enforce(subject.Role, object, action)
			if err != nil {
				logging.Ctx(r.Context()).Error().Err(err).Msg("authorization error")
				m.onError(w, r, http.StatusInternalServerError, err)
				return
			}
			if !allowed {
				logging.Ctx(r.Context()).Info().
					Str("subject", subject.ID).
					Str("role", subject.Role.String()).
					Str("object", object).
					Str("action", action).
					Msg("authorization denied")
				m.onError(w, r, http.StatusForbidden, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
