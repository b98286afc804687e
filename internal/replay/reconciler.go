// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package replay drains the mutation log against the backend.

A drain pass walks the log oldest first and finishes each entry's remote
work before starting the next one, because later entries may depend on ids
produced by earlier ones:

	create-project   insert; remember temp id -> real id
	update-project   update (temp ids resolved through the remembered ids)
	create-chamber   resolve temp project id, insert, promote staged photos
	update-chamber   update

Temp id mappings live for the pass and, bounded by size and age, across
passes: a chamber retried after its project synced earlier still resolves.

An entry that fails stays queued and the pass moves on. A photo that fails to
upload is reported as a warning; the chamber row already exists, so the entry
still counts as a success.

Delivery is at-least-once: a crash between a remote write and the local
removal replays that write on the next pass.
*/
package replay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/fieldsync/internal/backend"
	"github.com/tomtom215/fieldsync/internal/blobstage"
	"github.com/tomtom215/fieldsync/internal/cache"
	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/metrics"
	"github.com/tomtom215/fieldsync/internal/models"
	"github.com/tomtom215/fieldsync/internal/mutationlog"
)

// ErrDrainInProgress is returned when a pass is already running on the same
// Reconciler.
var ErrDrainInProgress = errors.New("drain already in progress")

// Trigger records what started a pass.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerAuto      Trigger = "auto"
	TriggerReconnect Trigger = "reconnect"
)

// StatusFunc receives one human-readable message per outcome.
type StatusFunc func(msg string)

// Result summarizes one drain pass.
type Result struct {
	DrainID  string        `json:"drain_id,omitempty"`
	Trigger  Trigger       `json:"trigger,omitempty"`
	Success  int           `json:"success"`
	Failed   int           `json:"failed"`
	Warnings []string      `json:"warnings,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Config tunes a Reconciler.
type Config struct {
	// CallTimeout bounds each backend call. Zero leaves calls bounded only by
	// the caller's context and the client's own timeout.
	CallTimeout time.Duration

	// Bucket receives promoted photos.
	Bucket string

	// DefaultPhotoExt is used when a photo's filename has no extension.
	DefaultPhotoExt string

	// ResolvedIDs and ResolvedIDTTL bound the temp id mappings kept between
	// passes.
	ResolvedIDs   int
	ResolvedIDTTL time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		CallTimeout:     30 * time.Second,
		Bucket:          "chamber-photos",
		DefaultPhotoExt: ".jpg",
		ResolvedIDs:     1024,
		ResolvedIDTTL:   24 * time.Hour,
	}
}

// Reconciler replays queued mutations. One pass runs at a time.
type Reconciler struct {
	log     mutationlog.Log
	blobs   blobstage.Stager
	backend backend.Backend
	cfg     Config

	// ids remembers temp project id -> real id across passes.
	ids *cache.LRUCache

	running atomic.Bool

	mu       sync.RWMutex
	onStatus []StatusFunc
}

// New creates a Reconciler. blobs may be nil when photo staging is off.
func New(log mutationlog.Log, blobs blobstage.Stager, be backend.Backend, cfg Config) *Reconciler {
	if blobs == nil {
		blobs = blobstage.Disabled{}
	}
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultConfig().Bucket
	}
	if cfg.DefaultPhotoExt == "" {
		cfg.DefaultPhotoExt = DefaultConfig().DefaultPhotoExt
	}
	return &Reconciler{
		log:     log,
		blobs:   blobs,
		backend: be,
		cfg:     cfg,
		ids:     cache.NewLRUCache(cfg.ResolvedIDs, cfg.ResolvedIDTTL),
	}
}

// OnStatus registers fn to receive status messages from every pass.
func (r *Reconciler) OnStatus(fn StatusFunc) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.onStatus = append(r.onStatus, fn)
	r.mu.Unlock()
}

// Running reports whether a pass is in flight.
func (r *Reconciler) Running() bool {
	return r.running.Load()
}

// Drain runs a manual pass.
func (r *Reconciler) Drain(ctx context.Context) (Result, error) {
	return r.DrainFor(ctx, TriggerManual)
}

// DrainFor runs one pass over every entry queued at its start. Per-entry
// failures are counted, never returned; the error is non-nil only when a pass
// is already running or the log cannot be read. A canceled ctx stops the pass
// before the next entry and returns what was done so far.
func (r *Reconciler) DrainFor(ctx context.Context, trigger Trigger) (Result, error) {
	if !r.running.CompareAndSwap(false, true) {
		metrics.DrainRejected.Inc()
		return Result{}, ErrDrainInProgress
	}
	defer r.running.Store(false)

	drainID := logging.NewDrainID()
	ctx = logging.ContextWithDrainID(ctx, drainID)
	start := time.Now()

	entries, err := r.log.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list pending mutations: %w", err)
	}

	p := &pass{
		r:        r,
		resolved: make(map[string]string),
		result:   Result{DrainID: drainID, Trigger: trigger},
	}

	if len(entries) > 0 {
		logging.Ctx(ctx).Info().
			Str("trigger", string(trigger)).
			Int("pending", len(entries)).
			Msg("drain started")
	}

	for i := range entries {
		if ctx.Err() != nil {
			logging.Ctx(ctx).Warn().
				Int("remaining", len(entries)-i).
				Msg("drain canceled; remaining entries stay queued")
			break
		}
		p.apply(ctx, &entries[i])
	}

	p.result.Duration = time.Since(start)
	metrics.RecordDrain(string(trigger), p.result.Duration)

	if len(entries) > 0 {
		logging.Ctx(ctx).Info().
			Int("success", p.result.Success).
			Int("failed", p.result.Failed).
			Int("warnings", len(p.result.Warnings)).
			Dur("duration", p.result.Duration).
			Msg("drain finished")
	}
	return p.result, nil
}

func (r *Reconciler) emit(msg string) {
	r.mu.RLock()
	fns := r.onStatus
	r.mu.RUnlock()
	for _, fn := range fns {
		fn(msg)
	}
}

// pass holds the state of one drain.
type pass struct {
	r *Reconciler

	// resolved maps temp project ids to the real ids assigned in this pass.
	resolved map[string]string

	result Result
}

func (p *pass) apply(ctx context.Context, m *models.QueuedMutation) {
	log := logging.Ctx(ctx).With().
		Str("mutation_id", m.ID).
		Str("type", m.Type.String()).
		Logger()

	err := p.dispatch(ctx, m)
	if err != nil {
		p.result.Failed++
		metrics.RecordReplay(m.Type.String(), false)
		log.Warn().Err(err).Str("class", backend.Classify(err)).Msg("mutation failed; left queued")
		p.r.emit(fmt.Sprintf("Failed to sync %s: %v", m.Type, err))
		return
	}

	if err := p.r.log.Remove(ctx, m.ID); err != nil {
		// The remote write happened; the entry will replay next pass.
		log.Error().Err(err).Msg("mutation synced but could not be removed from the log")
		p.warn(fmt.Sprintf("%s synced but is still queued: %v", m.Type, err))
	}
	p.result.Success++
	metrics.RecordReplay(m.Type.String(), true)
	log.Debug().Msg("mutation synced")
	p.r.emit(fmt.Sprintf("Synced %s", m.Type))
}

func (p *pass) dispatch(ctx context.Context, m *models.QueuedMutation) error {
	payload, err := m.Decode()
	if err != nil {
		return err
	}

	switch pl := payload.(type) {
	case *models.CreateProjectPayload:
		return p.createProject(ctx, pl)
	case *models.UpdateProjectPayload:
		id := pl.ID
		if models.IsTempID(id) {
			if realID, ok := p.known(id); ok {
				id = realID
			}
		}
		return p.update(ctx, models.TableProjects, id, pl.Patch)
	case *models.CreateChamberPayload:
		return p.createChamber(ctx, pl)
	case *models.UpdateChamberPayload:
		return p.update(ctx, models.TableChambers, pl.ID, pl.Patch)
	default:
		return fmt.Errorf("%w: %s", models.ErrUnknownMutationType, m.Type)
	}
}

// callCtx applies the per-call timeout.
func (p *pass) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.r.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, p.r.cfg.CallTimeout)
	}
	return context.WithCancel(ctx)
}

func (p *pass) insert(ctx context.Context, table string, row map[string]interface{}) (string, error) {
	cctx, cancel := p.callCtx(ctx)
	defer cancel()
	return p.r.backend.Insert(cctx, table, row)
}

func (p *pass) update(ctx context.Context, table, id string, patch map[string]interface{}) error {
	cctx, cancel := p.callCtx(ctx)
	defer cancel()
	return p.r.backend.Update(cctx, table, id, patch)
}

func (p *pass) createProject(ctx context.Context, pl *models.CreateProjectPayload) error {
	id, err := p.insert(ctx, models.TableProjects, pl.Project.Row())
	if err != nil {
		return err
	}
	if pl.TempID != "" {
		p.remember(pl.TempID, id)
		logging.Ctx(ctx).Debug().Str("temp_id", pl.TempID).Str("project_id", id).Msg("temp project id resolved")
	}
	return nil
}

// remember records a resolution for this pass and later ones.
func (p *pass) remember(tempID, realID string) {
	p.resolved[tempID] = realID
	p.r.ids.Add(tempID, realID)
}

// known looks a temp id up in this pass, then in earlier passes.
func (p *pass) known(tempID string) (string, bool) {
	if realID, ok := p.resolved[tempID]; ok {
		return realID, true
	}
	if realID, ok := p.r.ids.Get(tempID); ok {
		p.resolved[tempID] = realID
		return realID, true
	}
	return "", false
}

func (p *pass) createChamber(ctx context.Context, pl *models.CreateChamberPayload) error {
	ch := pl.Chamber
	if models.IsTempID(ch.ProjectID) {
		ch.ProjectID = p.resolveProject(ctx, ch.ProjectID, pl.ProjectLookup)
	}

	id, err := p.insert(ctx, models.TableChambers, ch.Row())
	if err != nil {
		return err
	}
	p.promote(ctx, id, pl)
	return nil
}

// resolveProject maps a temp project id to a real one: first from this pass,
// then from earlier passes, then by natural key. On a miss the temp id is
// returned unchanged and the insert is left to fail.
func (p *pass) resolveProject(ctx context.Context, tempID string, lookup *models.ProjectLookup) string {
	if realID, ok := p.resolved[tempID]; ok {
		metrics.RecordTempIDResolution("pass")
		return realID
	}
	if realID, ok := p.r.ids.Get(tempID); ok {
		p.resolved[tempID] = realID
		metrics.RecordTempIDResolution("cache")
		return realID
	}

	if !lookup.IsZero() {
		cctx, cancel := p.callCtx(ctx)
		row, found, err := p.r.backend.Query(cctx, models.TableProjects, lookup.Filters())
		cancel()
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("temp_id", tempID).Msg("project lookup failed")
		}
		if found {
			if realID := backend.IDString(row["id"]); realID != "" {
				p.remember(tempID, realID)
				metrics.RecordTempIDResolution("lookup")
				return realID
			}
		}
	}

	metrics.RecordTempIDResolution("miss")
	logging.Ctx(ctx).Debug().Str("temp_id", tempID).Msg("temp project id unresolved")
	return tempID
}

func (p *pass) warn(msg string) {
	p.result.Warnings = append(p.result.Warnings, msg)
	p.r.emit(msg)
}
