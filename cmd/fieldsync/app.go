// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package main

import (
	"errors"
	"fmt"

	"github.com/tomtom215/fieldsync/internal/backend"
	"github.com/tomtom215/fieldsync/internal/blobstage"
	"github.com/tomtom215/fieldsync/internal/config"
	"github.com/tomtom215/fieldsync/internal/localstore"
	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/mutationlog"
	"github.com/tomtom215/fieldsync/internal/replay"
)

// app holds the components every command shares. Local storage failures
// degrade to the Disabled log and stager rather than failing the command.
type app struct {
	cfg   *config.Config
	store *localstore.Store // nil when local storage is off
	log   mutationlog.Log
	blobs blobstage.Stager

	closers []func() error
}

func openApp(cfg *config.Config) *app {
	a := &app{cfg: cfg}

	if !cfg.Storage.Enabled {
		reason := errors.New("STORAGE_ENABLED=false")
		a.log = mutationlog.NewDisabled(reason)
		a.blobs = blobstage.Disabled{}
		return a
	}

	lc := cfg.Storage.LocalStore()
	store, err := localstore.Open(&lc)
	if err != nil {
		logging.Warn().Err(err).Str("path", lc.Path).
			Msg("cannot open local store; is another fieldsync process using it?")
		a.log = mutationlog.NewDisabled(err)
		a.blobs = blobstage.Disabled{}
		return a
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	if log, err := mutationlog.Open(store); err != nil {
		a.log = mutationlog.NewDisabled(err)
	} else {
		a.log = log
		a.closers = append(a.closers, log.Close)
	}

	if blobs, err := blobstage.Open(store, cfg.Storage.Blobs()); err != nil {
		logging.Warn().Err(err).Msg("photo staging unavailable; photos must be sent inline")
		a.blobs = blobstage.Disabled{}
	} else {
		a.blobs = blobs
		a.closers = append(a.closers, blobs.Close)
	}

	logging.Info().Str("path", lc.Path).Msg("local store opened")
	return a
}

// queueEnabled reports whether mutations are actually persisted.
func (a *app) queueEnabled() bool {
	_, disabled := a.log.(mutationlog.Disabled)
	return !disabled
}

// openBackend builds the configured backend, wrapped in the circuit breaker
// when enabled.
func (a *app) openBackend() (backend.Backend, error) {
	var be backend.Backend
	switch a.cfg.Backend.Kind {
	case config.BackendREST:
		rest := backend.NewREST(a.cfg.Backend.REST())
		if a.cfg.Backend.Token != "" {
			rest.SetToken(a.cfg.Backend.Token)
		}
		be = rest
	case config.BackendSQLite:
		lite, err := backend.OpenSQLite(a.cfg.Backend.SQLite())
		if err != nil {
			return nil, fmt.Errorf("open sqlite backend: %w", err)
		}
		a.closers = append(a.closers, lite.Close)
		be = lite
	default:
		return nil, fmt.Errorf("unknown backend kind %q", a.cfg.Backend.Kind)
	}

	if a.cfg.Backend.Breaker.Enabled {
		be = backend.NewCircuitBreaker(be, a.cfg.Backend.BreakerSettings())
	}
	logging.Info().
		Str("kind", a.cfg.Backend.Kind).
		Bool("breaker", a.cfg.Backend.Breaker.Enabled).
		Msg("backend configured")
	return be, nil
}

// reconciler opens the backend and returns a reconciler over the app's log
// and stager.
func (a *app) reconciler() (*replay.Reconciler, backend.Backend, error) {
	be, err := a.openBackend()
	if err != nil {
		return nil, nil, err
	}
	return replay.New(a.log, a.blobs, be, a.cfg.Reconciler()), be, nil
}

// Close releases resources in reverse open order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logging.Error().Err(err).Msg("error during shutdown")
		}
	}
	a.closers = nil
}
