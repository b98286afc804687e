// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package authz maps roles to permissions with a Casbin RBAC policy.

The model and default policy are embedded (model.conf, policy.csv). Requests
are (role, object, action) where object is one of projects, chambers, queue
or sync. Roles inherit: admin > inspector > viewer.

	viewer     read everything
	inspector  create and update records, queue and remove mutations, run sync
	admin      everything, including clearing the queue

Decisions are cached per (role, object, action) until the policy reloads.
*/
package authz
