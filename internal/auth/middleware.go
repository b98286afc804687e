// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/fieldsync/internal/logging"
)

// ErrorWriter renders an authentication failure. The API package supplies
// one that writes its response envelope.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, err error)

// Middleware authenticates requests with a bearer JWT.
type Middleware struct {
	jwt     *JWTManager
	onError ErrorWriter
}

// NewMiddleware returns middleware validating tokens with m. A nil m
// disables authentication and every request runs as LocalSubject.
func NewMiddleware(m *JWTManager, onError ErrorWriter) *Middleware {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, status int, err error) {
			http.Error(w, "Unauthorized: "+err.Error(), status)
		}
	}
	return &Middleware{jwt: m, onError: onError}
}

// Enabled reports whether tokens are checked.
func (m *Middleware) Enabled() bool {
	return m.jwt != nil
}

// Authenticate attaches the request Subject to the context or rejects the
// request with 401.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.jwt == nil {
			local := LocalSubject
			next.ServeHTTP(w, r.WithContext(ContextWithSubject(r.Context(), &local)))
			return
		}

		subject, err := m.authenticate(r)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("authentication failed")
			m.onError(w, r, http.StatusUnauthorized, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSubject(r.Context(), subject)))
	})
}

func (m *Middleware) authenticate(r *http.Request) (*Subject, error) {
	token := bearerToken(r)
	if token == "" {
		authAttempts.WithLabelValues("missing").Inc()
		return nil, ErrNoCredentials
	}

	claims, err := m.jwt.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			authAttempts.WithLabelValues("expired").Inc()
			return nil, ErrExpiredCredentials
		}
		authAttempts.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidCredentials
	}

	subject := SubjectFromClaims(claims)
	authAttempts.WithLabelValues("success").Inc()
	rolesDerived.WithLabelValues(subject.Role.String()).Inc()
	return subject, nil
}

// bearerToken reads the Authorization header, falling back to the
// access_token query parameter that browsers must use for websockets.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}
