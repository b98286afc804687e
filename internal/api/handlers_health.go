// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus is returned by the health endpoints.
type HealthStatus struct {
	Status       string            `json:"status"`
	Uptime       float64           `json:"uptime_seconds"`
	QueueEnabled bool              `json:"queue_enabled"`
	Checks       map[string]string `json:"checks,omitempty"`
}

// HealthLive reports that the process is up, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, HealthStatus{
		Status:       "alive",
		Uptime:       time.Since(h.startTime).Seconds(),
		QueueEnabled: h.deps.QueueEnabled,
	})
}

// HealthReady runs every readiness check. Any failure yields 503 with the
// per-check results in the error details. The backend is not checked here;
// being offline is a normal state.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.deps.Readiness))
	ready := true
	for _, c := range h.deps.Readiness {
		if err := c.Check(ctx); err != nil {
			checks[c.Name] = err.Error()
			ready = false
			continue
		}
		checks[c.Name] = "ok"
	}

	status := HealthStatus{
		Status:       "ready",
		Uptime:       time.Since(h.startTime).Seconds(),
		QueueEnabled: h.deps.QueueEnabled,
		Checks:       checks,
	}
	if !ready {
		status.Status = "not_ready"
		NewResponseWriter(w, r).ErrorWithDetails(http.StatusServiceUnavailable,
			ErrCodeServiceUnavailable, "Service not ready", status)
		return
	}
	WriteSuccess(w, r, status)
}
