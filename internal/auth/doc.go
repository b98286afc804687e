// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package auth identifies callers of the local API.

Tokens are HS256 JWTs issued by the backend's auth service. The role is not
trusted verbatim: DeriveRole reads every role hint in the claims (role,
roles, app_metadata.role, app_metadata.roles), normalizes each name and keeps
the most privileged match.

	admin      admin, administrator, superadmin
	inspector  inspector, surveyor, engineer, field
	viewer     viewer, and anything unrecognized

With authentication disabled every request runs as LocalSubject, an admin.
Permission checks on the derived role live in package authz.
*/
package auth
