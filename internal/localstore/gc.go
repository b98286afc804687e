// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package localstore

import (
	"context"
	"time"

	"github.com/tomtom215/fieldsync/internal/logging"
)

// GCService runs value log GC on a ticker. It implements suture.Service.
type GCService struct {
	store    *Store
	interval time.Duration
}

// NewGCService returns a GC loop for store. A zero interval falls back to
// the store's configured GCInterval.
func NewGCService(store *Store, interval time.Duration) *GCService {
	if interval <= 0 {
		interval = store.Config().GCInterval
	}
	return &GCService{store: store, interval: interval}
}

// Serve blocks until ctx is canceled. With no interval it parks until then.
func (g *GCService) Serve(ctx context.Context) error {
	if g.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := g.store.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("local store GC failed")
			}
		}
	}
}

func (g *GCService) String() string {
	return "localstore-gc"
}
