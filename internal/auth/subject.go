// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package auth

import (
	"context"
	"errors"
)

// Authentication errors.
var (
	ErrNoCredentials      = errors.New("no credentials provided")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrExpiredCredentials = errors.New("credentials expired")
)

// AuthMethod records how a subject was established.
type AuthMethod string

const (
	// AuthMethodNone is used when authentication is disabled. The device is
	// treated as single-user and the subject is LocalSubject.
	AuthMethodNone AuthMethod = "none"
	AuthMethodJWT  AuthMethod = "jwt"
)

// Subject is the caller of a request.
type Subject struct {
	ID         string     `json:"id"`
	Email      string     `json:"email,omitempty"`
	Role       Role       `json:"role"`
	AuthMethod AuthMethod `json:"auth_method"`
	ExpiresAt  int64      `json:"expires_at,omitempty"`
}

// LocalSubject is the subject used when authentication is disabled.
var LocalSubject = Subject{ID: "local", Role: RoleAdmin, AuthMethod: AuthMethodNone}

// SubjectFromClaims derives a Subject from validated token claims.
func SubjectFromClaims(c *Claims) *Subject {
	if c == nil {
		return nil
	}
	s := &Subject{
		ID:         c.Subject,
		Email:      c.Email,
		Role:       DeriveRole(c.RoleClaims()),
		AuthMethod: AuthMethodJWT,
	}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Unix()
	}
	return s
}

type contextKey string

const subjectContextKey contextKey = "auth_subject"

// ContextWithSubject attaches s to ctx.
func ContextWithSubject(ctx context.Context, s *Subject) context.Context {
	return context.WithValue(ctx, subjectContextKey, s)
}

// SubjectFromContext returns the request subject, or nil.
func SubjectFromContext(ctx context.Context) *Subject {
	s, _ := ctx.Value(subjectContextKey).(*Subject)
	return s
}
