// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package backend is the client side of the hosted records/storage service
// that queued mutations are replayed against.
//
// Two implementations ship with FieldSync:
//
//   - REST talks to a PostgREST-style records API and its object storage
//     endpoint, wrapped in a rate limiter.
//   - SQLite is a local development backend with real foreign keys, used to
//     exercise replay end to end without network access.
//
// Either can be wrapped in a CircuitBreaker.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// Backend is the capability set the reconciler needs.
type Backend interface {
	// Insert creates a row and returns its server-assigned id.
	Insert(ctx context.Context, table string, row map[string]interface{}) (string, error)

	// Update applies patch to the row with id.
	Update(ctx context.Context, table, id string, patch map[string]interface{}) error

	// Query returns the first row whose columns equal filters.
	Query(ctx context.Context, table string, filters map[string]string) (row map[string]interface{}, found bool, err error)

	// UploadBlob stores data at bucket/path and returns its public URL.
	UploadBlob(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error)

	// Ping checks reachability.
	Ping(ctx context.Context) error
}

// Error classes. Use errors.Is against these.
var (
	// ErrConstraint is a rejected write: missing referenced row, duplicate
	// key, malformed id.
	ErrConstraint = errors.New("constraint violation")

	// ErrNotFound means the target row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized means the bearer token was missing, expired or lacked
	// permission for the row.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnavailable covers network failures, timeouts and 5xx/429 responses.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrInvalidRequest means the request could not be built (unknown
	// table or column, empty row).
	ErrInvalidRequest = errors.New("invalid request")
)

// Error carries the details of a failed backend call.
type Error struct {
	Op      string // insert, update, query, upload, ping
	Table   string
	Status  int    // HTTP status, 0 for non-HTTP backends
	Code    string // backend error code, e.g. 23503
	Message string
	Err     error // one of the class sentinels
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	target := e.Op
	if e.Table != "" {
		target += " " + e.Table
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code %s)", target, msg, e.Code)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", target, msg, e.Status)
	}
	return fmt.Sprintf("%s: %s", target, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify returns a short label for err suitable for metrics.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrConstraint):
		return "constraint"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid"
	default:
		return "other"
	}
}

// IsTransient reports whether err says nothing about the request itself:
// the same call may succeed later.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded)
}

// IDString renders a row id decoded from JSON or SQL. Numeric ids keep their
// integer form: 1234567, not 1.234567e+06.
func IDString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
