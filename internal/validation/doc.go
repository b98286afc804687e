// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package validation checks mutation payloads and API requests with
// go-playground/validator v10.
//
// A single validator instance is shared process-wide; it caches struct
// metadata on first use. Error field names are taken from json tags.
//
// Custom rules:
//   - tempid: the value carries the tmp- prefix of a device-minted id
//   - photo_source (struct level on models.PhotoRef): a staged key or inline
//     data must be present
//
// Usage in a handler:
//
//	if verr := validation.ValidatePayload(t, payload); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	    return
//	}
package validation
