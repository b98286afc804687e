// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package api

import (
	"github.com/goccy/go-json"

	"github.com/tomtom215/fieldsync/internal/models"
)

// EnqueueRequest is the body of POST /api/v1/mutations. Payload is decoded
// into the variant named by Type.
type EnqueueRequest struct {
	Type    string          `json:"type" validate:"required"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// EnqueueResponse reports the queued id. Queued is false when local storage
// is unavailable and the change was not recorded.
type EnqueueResponse struct {
	ID     string              `json:"id"`
	Type   models.MutationType `json:"type"`
	Queued bool                `json:"queued"`
}

// OnlineRequest is the body of PUT /api/v1/status/online.
type OnlineRequest struct {
	Online *bool `json:"online" validate:"required"`
}

// DepthResponse is returned by GET /api/v1/mutations/depth and
// POST /api/v1/status/refresh.
type DepthResponse struct {
	Depth int `json:"depth"`
}

// StagedResponse is returned by POST /api/v1/blobs.
type StagedResponse struct {
	Key      string `json:"key"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename"`
	Size     int    `json:"size"`
}

// PermissionsResponse is returned by GET /api/v1/permissions.
type PermissionsResponse struct {
	Subject     string              `json:"subject"`
	Role        string              `json:"role"`
	Permissions map[string][]string `json:"permissions"`
}
