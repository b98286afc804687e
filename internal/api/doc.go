// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package api is the local HTTP surface the field UI talks to.

Routes (chi):

	POST   /api/v1/mutations          queue a mutation {type, payload}
	GET    /api/v1/mutations          pending mutations, oldest first
	GET    /api/v1/mutations/depth    pending count
	DELETE /api/v1/mutations/{id}     discard one (idempotent)
	DELETE /api/v1/mutations          discard all (admin)
	POST   /api/v1/blobs              stage a photo (multipart "file")
	GET    /api/v1/blobs/{key}        staged bytes
	DELETE /api/v1/blobs/{key}        drop a staged photo
	POST   /api/v1/sync               drain now
	GET    /api/v1/status             sync status snapshot
	POST   /api/v1/status/refresh     re-read queue depth
	PUT    /api/v1/status/online      {online: bool} from the runtime
	GET    /api/v1/permissions        caller's role and permissions
	GET    /api/v1/ws                 status stream
	GET    /health/live, /health/ready, /metrics

Every JSON response uses the envelope

	{"success": true, "data": ..., "meta": {"request_id": "...", "timestamp": "..."}}
	{"success": false, "error": {"code": "VALIDATION_FAILED", "message": "...", "details": ...}}

Authentication is a bearer JWT when configured; otherwise every request
runs as the local device user. Roles are checked with the authz enforcer
per route, and per mutation type on enqueue.
*/
package api
