// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Command fieldsync runs the offline-first sync daemon for drainage
// inspection field devices, and offers queue maintenance commands.
//
// # Commands
//
//	fieldsync serve                        local API, status stream, auto sync
//	fieldsync queue list|depth|clear       inspect or discard queued mutations
//	fieldsync queue remove <id>            discard one queued mutation
//	fieldsync enqueue <type> <payload>     queue a mutation from a JSON file ("-" for stdin)
//	fieldsync stage <file>                 stage a photo, print its key
//	fieldsync sync                         run one drain pass now
//
// # Configuration
//
// Koanf v2 layers, highest priority wins:
//   - Environment variables (DATA_DIR, BACKEND_KIND, BACKEND_URL, ...)
//   - Config file (CONFIG_PATH, ./config.yaml, /etc/fieldsync/config.yaml)
//   - Built-in defaults
//
// # Signal Handling
//
// serve stops on SIGINT and SIGTERM: the supervisor tree cancels every
// service, the HTTP server drains in-flight requests, and the local store is
// closed last.
//
// # Example Usage
//
// Development against a local SQLite stand-in:
//
//	export BACKEND_KIND=sqlite
//	export SQLITE_PATH=./data/backend.db
//	export LOG_FORMAT=console
//	fieldsync serve
//
// Field device against the hosted backend:
//
//	export BACKEND_URL=https://project.example.com
//	export BACKEND_API_KEY=...
//	export AUTH_ENABLED=true JWT_SECRET=...
//	fieldsync serve
package main

import (
	"os"

	"github.com/tomtom215/fieldsync/internal/logging"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logging.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
