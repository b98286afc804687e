// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/fieldsync/internal/auth"
	"github.com/tomtom215/fieldsync/internal/authz"
	"github.com/tomtom215/fieldsync/internal/middleware"
)

// RouterConfig wires security around the handlers.
type RouterConfig struct {
	Middleware *ChiMiddlewareConfig

	// JWT validates bearer tokens. Nil runs every request as
	// auth.LocalSubject.
	JWT *auth.JWTManager

	// Enforcer gates routes by role. Nil leaves routes ungated.
	Enforcer *authz.Enforcer
}

// NewRouter builds the chi router for the local API.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	chiMW := NewChiMiddleware(cfg.Middleware)
	authn := auth.NewMiddleware(cfg.JWT, writeAuthError)

	allow := func(object, action string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.Enforcer != nil {
		allow = authz.NewMiddleware(cfg.Enforcer, writeAuthError).Authorize
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chiMW.CORS())
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, ErrCodeNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chiMW.RateLimit())
		r.Use(authn.Authenticate)

		r.Route("/mutations", func(r chi.Router) {
			r.With(allow(authz.ObjectQueue, authz.ActionRead)).Get("/", h.ListMutations)
			r.With(allow(authz.ObjectQueue, authz.ActionRead)).Get("/depth", h.QueueDepth)
			// Per-type permission is checked in the handler.
			r.With(allow(authz.ObjectQueue, authz.ActionCreate)).Post("/", h.EnqueueMutation)
			r.With(allow(authz.ObjectQueue, authz.ActionClear)).Delete("/", h.ClearMutations)
			r.With(allow(authz.ObjectQueue, authz.ActionDelete)).Delete("/{id}", h.RemoveMutation)
		})

		r.Route("/blobs", func(r chi.Router) {
			r.With(allow(authz.ObjectQueue, authz.ActionCreate)).Post("/", h.StageBlob)
			r.With(allow(authz.ObjectQueue, authz.ActionRead)).Get("/{key}", h.GetBlob)
			r.With(allow(authz.ObjectQueue, authz.ActionDelete)).Delete("/{key}", h.DeleteBlob)
		})

		r.With(allow(authz.ObjectSync, authz.ActionRun)).Post("/sync", h.SyncNow)

		r.Route("/status", func(r chi.Router) {
			r.Use(allow(authz.ObjectSync, authz.ActionRead))
			r.Get("/", h.Status)
			r.Post("/refresh", h.RefreshStatus)
			r.Put("/online", h.SetOnline)
		})

		r.Get("/permissions", h.MyPermissions)

		if h.deps.WebSocket != nil {
			r.With(allow(authz.ObjectSync, authz.ActionRead)).Get("/ws", h.deps.WebSocket)
		}
	})

	return r
}
