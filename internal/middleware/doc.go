// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package middleware provides the infrastructure middleware shared by every
route of the local API: request ids and Prometheus instrumentation.

Both are plain func(http.Handler) http.Handler and plug straight into chi:

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

RequestID must run first so the id reaches every log line written by later
handlers through logging.Ctx.
*/
package middleware
