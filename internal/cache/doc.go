// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package cache provides a bounded in-memory LRU with TTL expiry.
//
// The reconciler keeps temp project id to real id mappings in it between
// drain passes, so a chamber whose project synced in an earlier pass still
// resolves even without a natural-key lookup.
package cache
