// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// authAttempts counts bearer token checks.
	// Labels:
	//   - outcome: "success", "missing", "invalid", "expired"
	authAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_auth_attempts_total",
			Help: "Bearer token authentication attempts by outcome",
		},
		[]string{"outcome"},
	)

	// rolesDerived counts the role assigned to authenticated subjects.
	rolesDerived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_auth_roles_derived_total",
			Help: "Roles derived from token claims",
		},
		[]string{"role"},
	)
)
