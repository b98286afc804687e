// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package config loads FieldSync configuration.

Sources are layered with Koanf v2, lowest priority first: struct defaults, an
optional YAML file, then environment variables. Only variables listed in the
mapping table are read, so unrelated environment does not leak in.

# Sections

  - storage: device-local Badger store (DATA_DIR, STORAGE_ENABLED, BLOB_TTL)
  - backend: rest or sqlite backend, photo bucket, rate limit, circuit breaker
  - replay: per-call timeout, default photo extension
  - syncstatus: poll interval, automatic sync, probe timeout
  - server: local HTTP API (HTTP_HOST, HTTP_PORT, CORS_ORIGINS, rate limiting)
  - auth: bearer JWT verification (AUTH_ENABLED, JWT_SECRET)
  - logging: LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Example

	cfg, err := config.Load()
	if err != nil {
	    return err
	}
	logging.Init(cfg.Logging.Logger())

Config is immutable after Load and safe for concurrent reads.
*/
package config
