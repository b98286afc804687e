// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package supervisor runs the FieldSync daemon's long-lived services under a
suture v4 tree.

	fieldsync
	├── data-layer
	│   └── localstore-gc
	├── sync-layer
	│   ├── syncstatus-reporter
	│   └── syncstatus-relay
	└── api-layer
	    ├── websocket-hub
	    └── http-server

Each layer counts failures on its own, so a reporter that keeps crashing
backs off without taking the HTTP server down. Supervisor events go to slog
through sutureslog; cmd/fieldsync bridges that slog logger onto zerolog.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return err
	}
	tree.AddDataService(localstore.NewGCService(store, 5*time.Minute))
	tree.AddSyncService(reporter)
	tree.AddAPIService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(srv, addr, 10*time.Second))
	return tree.Serve(ctx)

See package services for the adapters.
*/
package supervisor
