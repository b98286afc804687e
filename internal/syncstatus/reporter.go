// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package syncstatus tracks queue depth and connectivity, runs automatic
// drains and publishes status changes for the UI.
package syncstatus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/metrics"
	"github.com/tomtom215/fieldsync/internal/replay"
)

// Status is the snapshot shown to the user.
type Status struct {
	Depth       int            `json:"depth"`
	Online      bool           `json:"online"`
	Syncing     bool           `json:"syncing"`
	LastResult  *replay.Result `json:"last_result,omitempty"`
	LastSyncAt  *time.Time     `json:"last_sync_at,omitempty"`
	LastError   string         `json:"last_error,omitempty"`
	LastMessage string         `json:"last_message,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Drainer runs drain passes.
type Drainer interface {
	DrainFor(ctx context.Context, trigger replay.Trigger) (replay.Result, error)
}

// DepthSource reports the number of queued mutations.
type DepthSource interface {
	Len(ctx context.Context) (int, error)
}

// Pinger probes backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config tunes a Reporter.
type Config struct {
	// PollInterval between depth refreshes and reachability probes.
	PollInterval time.Duration

	// ProbeTimeout bounds each Ping.
	ProbeTimeout time.Duration

	// AutoSync drains when online with a non-empty queue, and on every
	// offline to online transition.
	AutoSync bool
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval: 30 * time.Second,
		ProbeTimeout: 5 * time.Second,
		AutoSync:     true,
	}
}

// Reporter owns the Status snapshot. Its Serve method is a suture service.
type Reporter struct {
	depth   DepthSource
	drainer Drainer
	pinger  Pinger
	pub     *Publisher
	cfg     Config
	now     func() time.Time

	// kick wakes Serve for an immediate drain after reconnecting.
	kick chan struct{}

	// pubMu orders publishes the same way as the updates they carry.
	pubMu sync.Mutex

	mu     sync.RWMutex
	status Status
}

// New creates a Reporter. pinger may be nil, in which case online state only
// changes through SetOnline. pub may be nil.
func New(depth DepthSource, drainer Drainer, pinger Pinger, pub *Publisher, cfg Config) *Reporter {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultConfig().ProbeTimeout
	}
	return &Reporter{
		depth:   depth,
		drainer: drainer,
		pinger:  pinger,
		pub:     pub,
		cfg:     cfg,
		now:     time.Now,
		kick:    make(chan struct{}, 1),
	}
}

// Snapshot returns a copy of the current status.
func (r *Reporter) Snapshot() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.status
	if s.LastResult != nil {
		res := *s.LastResult
		res.Warnings = append([]string(nil), res.Warnings...)
		s.LastResult = &res
	}
	return s
}

// update applies fn under the lock and publishes the result. Publishes leave
// in update order, so the last one pushed is the current status.
func (r *Reporter) update(fn func(s *Status)) Status {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	r.mu.Lock()
	fn(&r.status)
	r.status.UpdatedAt = r.now().UTC()
	r.mu.Unlock()

	snap := r.Snapshot()
	r.pub.PublishStatus(snap)
	return snap
}

// Refresh re-reads the queue depth. Call it on visibility or focus regain.
// A failed read keeps the previous depth.
func (r *Reporter) Refresh(ctx context.Context) (int, error) {
	n, err := r.depth.Len(ctx)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("queue depth poll missed")
		return r.Snapshot().Depth, err
	}
	r.mu.RLock()
	changed := r.status.Depth != n
	r.mu.RUnlock()
	if changed {
		r.update(func(s *Status) { s.Depth = n })
	}
	return n, nil
}

// SetOnline records the runtime's connectivity signal. Going from offline to
// online schedules a drain when AutoSync is on.
func (r *Reporter) SetOnline(online bool) {
	if r.setOnline(online) && r.cfg.AutoSync {
		select {
		case r.kick <- struct{}{}:
		default:
		}
	}
}

// setOnline reports whether this was an offline to online transition.
func (r *Reporter) setOnline(online bool) bool {
	r.mu.RLock()
	prev := r.status.Online
	r.mu.RUnlock()
	if prev == online {
		return false
	}
	metrics.SetOnline(online)
	r.update(func(s *Status) { s.Online = online })
	logging.Info().Bool("online", online).Msg("connectivity changed")
	return online
}

// Notify records a drain status message. Register it with
// replay.Reconciler.OnStatus.
func (r *Reporter) Notify(msg string) {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	r.mu.Lock()
	r.status.LastMessage = msg
	r.mu.Unlock()
	r.pub.PublishMessage(msg)
}

// SyncNow runs a manual drain and returns its counts.
func (r *Reporter) SyncNow(ctx context.Context) (replay.Result, error) {
	return r.drain(ctx, replay.TriggerManual)
}

func (r *Reporter) drain(ctx context.Context, trigger replay.Trigger) (replay.Result, error) {
	r.update(func(s *Status) { s.Syncing = true })

	res, err := r.drainer.DrainFor(ctx, trigger)
	if errors.Is(err, replay.ErrDrainInProgress) {
		// The running pass owns the Syncing flag.
		return res, err
	}

	n, derr := r.depth.Len(ctx)
	r.update(func(s *Status) {
		s.Syncing = false
		if derr == nil {
			s.Depth = n
		}
		if err != nil {
			s.LastError = err.Error()
			return
		}
		at := r.now().UTC()
		s.LastResult = &res
		s.LastSyncAt = &at
		s.LastError = ""
	})
	return res, err
}

// poll refreshes depth and connectivity and drains when there is work.
func (r *Reporter) poll(ctx context.Context) {
	depth, _ := r.Refresh(ctx)

	reconnected := false
	if r.pinger != nil {
		pctx, cancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
		err := r.pinger.Ping(pctx)
		cancel()
		if err != nil {
			logging.Ctx(ctx).Debug().Err(err).Msg("backend unreachable")
		}
		reconnected = r.setOnline(err == nil)
	}

	if !r.cfg.AutoSync || depth == 0 || !r.Snapshot().Online {
		return
	}
	trigger := replay.TriggerAuto
	if reconnected {
		trigger = replay.TriggerReconnect
	}
	if _, err := r.drain(ctx, trigger); err != nil && !errors.Is(err, replay.ErrDrainInProgress) {
		logging.Ctx(ctx).Warn().Err(err).Msg("automatic drain failed")
	}
}

// Serve polls until ctx is canceled.
func (r *Reporter) Serve(ctx context.Context) error {
	logging.Info().
		Dur("interval", r.cfg.PollInterval).
		Bool("auto_sync", r.cfg.AutoSync).
		Msg("sync status reporter started")

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	r.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.poll(ctx)
		case <-r.kick:
			if _, err := r.Refresh(ctx); err != nil {
				continue
			}
			if r.Snapshot().Depth == 0 {
				continue
			}
			if _, err := r.drain(ctx, replay.TriggerReconnect); err != nil && !errors.Is(err, replay.ErrDrainInProgress) {
				logging.Ctx(ctx).Warn().Err(err).Msg("reconnect drain failed")
			}
		}
	}
}

func (r *Reporter) String() string {
	return "syncstatus-reporter"
}
