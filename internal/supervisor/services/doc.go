// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package services adapts components whose lifecycle is not already
Serve(ctx) error to suture.Service.

  - HTTPServerService turns ListenAndServe/Shutdown into Serve.
  - WebSocketHubService names the hub's RunWithContext loop.

Components that already implement Serve and String (the sync status
reporter, the status relay, the local store GC loop) are added to the tree
directly.
*/
package services
