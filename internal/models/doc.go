// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package models defines the records FieldSync queues while offline.

Domain Records:

  - Project: a survey job identified by project number, name and client
  - Chamber: a manhole/inspection chamber belonging to a project

Queue Records:

  - QueuedMutation: one pending write, typed by MutationType
  - StagedBlob: a photo captured offline and held until upload

Mutation Payloads:

Each MutationType has exactly one payload shape. QueuedMutation stores the
payload as raw JSON and Decode returns the typed variant, so replay code never
reads a field that belongs to another kind:

	create-project  -> *CreateProjectPayload
	update-project  -> *UpdateProjectPayload
	create-chamber  -> *CreateChamberPayload
	update-chamber  -> *UpdateChamberPayload

Temporary Identifiers:

A project created offline gets a client-minted id with the "tmp-" prefix.
Chambers created in the same session reference that id and carry a
ProjectLookup (project number, name, client) so the real id can be found
again at replay time.
*/
package models
