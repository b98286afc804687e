// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/fieldsync/internal/api"
	"github.com/tomtom215/fieldsync/internal/auth"
	"github.com/tomtom215/fieldsync/internal/authz"
	"github.com/tomtom215/fieldsync/internal/config"
	"github.com/tomtom215/fieldsync/internal/localstore"
	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/metrics"
	"github.com/tomtom215/fieldsync/internal/supervisor"
	"github.com/tomtom215/fieldsync/internal/supervisor/services"
	"github.com/tomtom215/fieldsync/internal/syncstatus"
	ws "github.com/tomtom215/fieldsync/internal/websocket"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local API, status stream and automatic sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, root.cfg)
		},
	}
}

//nolint:gocyclo // sequential wiring
func runServe(ctx context.Context, cfg *config.Config) error {
	logging.Info().
		Str("backend", cfg.Backend.Kind).
		Bool("storage", cfg.Storage.Enabled).
		Bool("auth", cfg.Auth.Enabled).
		Str("addr", cfg.Server.Addr()).
		Msg("starting fieldsync")

	a := openApp(cfg)
	defer a.Close()

	rec, be, err := a.reconciler()
	if err != nil {
		return err
	}

	// Status fan-out: reporter -> watermill -> relay -> websocket hub.
	pubsub := syncstatus.NewPubSub()
	defer func() {
		if err := pubsub.Close(); err != nil {
			logging.Warn().Err(err).Msg("error closing status pub/sub")
		}
	}()
	reporter := syncstatus.New(a.log, rec, be, syncstatus.NewPublisher(pubsub), cfg.SyncStatus.Reporter())
	rec.OnStatus(reporter.Notify)

	hub := ws.NewHub(ws.HubOptions{
		AllowedOrigins: cfg.Server.CORSOrigins,
		Snapshot:       statusSnapshot(reporter),
	})
	relay := syncstatus.NewRelay(pubsub, hub)

	enforcer, err := authz.NewEnforcer(authz.EnforcerConfig{PolicyPath: cfg.Auth.PolicyPath})
	if err != nil {
		return fmt.Errorf("load authorization policy: %w", err)
	}

	var jwtManager *auth.JWTManager
	if cfg.Auth.Enabled {
		jwtManager, err = auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
		if err != nil {
			return fmt.Errorf("initialize JWT manager: %w", err)
		}
		logging.Info().Msg("JWT authentication enabled")
	} else {
		logging.Warn().Msg("authentication disabled (AUTH_ENABLED=false); every local request runs as the device administrator")
	}
	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS_ORIGINS=* with authentication enabled lets any website call the local API")
	}
	if cfg.Server.RateLimitDisabled {
		logging.Warn().Msg("rate limiting disabled (DISABLE_RATE_LIMIT=true)")
	}

	handler := api.NewHandler(api.Deps{
		Queue:          a.log,
		Blobs:          a.blobs,
		Status:         reporter,
		Permissions:    enforcer,
		QueueEnabled:   a.queueEnabled(),
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		WebSocket:      hub.ServeWS,
		Readiness:      readinessChecks(a),
	})

	mw := api.DefaultChiMiddlewareConfig()
	mw.CORSAllowedOrigins = cfg.Server.CORSOrigins
	mw.RateLimitRequests = cfg.Server.RateLimitReqs
	mw.RateLimitWindow = cfg.Server.RateLimitWindow
	mw.RateLimitDisabled = cfg.Server.RateLimitDisabled

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(handler, api.RouterConfig{Middleware: mw, JWT: jwtManager, Enforcer: enforcer}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}
	if a.store != nil && cfg.Storage.GCInterval > 0 {
		tree.AddDataService(localstore.NewGCService(a.store, cfg.Storage.GCInterval))
	}
	tree.AddSyncService(relay)
	tree.AddSyncService(reporter)
	tree.AddAPIService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(srv, srv.Addr, 10*time.Second))

	metrics.SetOnline(false)
	logging.Info().Msg("supervisor tree starting")

	err = tree.Serve(ctx)
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, u := range report {
			logging.Warn().Str("service", u.Name).Msg("service did not stop within the shutdown timeout")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}
	logging.Info().Msg("fieldsync stopped")
	return nil
}

// statusSnapshot encodes the reporter's current status as the same event the
// relay forwards, for clients that just connected.
func statusSnapshot(r *syncstatus.Reporter) ws.SnapshotFunc {
	return func() []byte {
		s := r.Snapshot()
		data, err := json.Marshal(syncstatus.Event{Kind: syncstatus.EventStatus, Status: &s, At: time.Now().UTC()})
		if err != nil {
			logging.Warn().Err(err).Msg("failed to encode status snapshot")
			return nil
		}
		return data
	}
}

func readinessChecks(a *app) []api.ReadinessCheck {
	checks := []api.ReadinessCheck{{
		Name: "mutation_log",
		Check: func(ctx context.Context) error {
			_, err := a.log.Len(ctx)
			return err
		},
	}}
	if a.store != nil {
		checks = append(checks, api.ReadinessCheck{
			Name: "local_store",
			Check: func(context.Context) error {
				if a.store.Closed() {
					return localstore.ErrStoreClosed
				}
				return nil
			},
		})
	}
	return checks
}
