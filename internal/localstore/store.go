// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package localstore

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/tomtom215/fieldsync/internal/logging"
)

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("local store is closed")

// Store wraps a BadgerDB handle. Key prefixes partition it between the
// packages that share it, so each owner must use its own prefix.
type Store struct {
	db     *badger.DB
	config Config

	mu     sync.RWMutex
	closed bool
	lastGC time.Time
}

// Open opens (or creates) the store described by cfg.
func Open(cfg *Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return open(cfg)
}

// OpenForTesting skips validation and forces settings suitable for a
// t.TempDir() directory.
func OpenForTesting(path string) (*Store, error) {
	cfg := DefaultConfig()
	cfg.Path = path
	cfg.SyncWrites = false
	cfg.GCInterval = 0
	cfg.CloseTimeout = 5 * time.Second
	return open(&cfg)
}

func open(cfg *Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	if cfg.MemTableSize > 0 {
		opts.MemTableSize = cfg.MemTableSize
	}
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	if cfg.NumCompactors >= 2 {
		opts.NumCompactors = cfg.NumCompactors
	}
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("local store opened")

	return &Store{db: db, config: *cfg, lastGC: time.Now()}, nil
}

// DB exposes the Badger handle. Callers must check Closed or handle
// badger.ErrDBClosed themselves.
func (s *Store) DB() *badger.DB {
	return s.db
}

// Config returns the configuration the store was opened with.
func (s *Store) Config() Config {
	return s.config
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Size returns the LSM and value log sizes in bytes.
func (s *Store) Size() (lsm, vlog int64) {
	return s.db.Size()
}

// RunGC rewrites value log files until Badger reports nothing left to reclaim.
func (s *Store) RunGC() error {
	if s.Closed() {
		return ErrStoreClosed
	}
	if s.config.InMemory {
		return nil
	}

	ratio := s.config.GCRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.5
	}

	rewrites := 0
	for {
		err := s.db.RunValueLogGC(ratio)
		if errors.Is(err, badger.ErrNoRewrite) {
			break
		}
		if err != nil {
			return fmt.Errorf("value log GC: %w", err)
		}
		rewrites++
	}

	s.mu.Lock()
	s.lastGC = time.Now()
	s.mu.Unlock()

	lsm, vlog := s.db.Size()
	updateSizeMetrics(lsm, vlog)
	recordGCRun(rewrites)
	return nil
}

// LastGC returns the time of the last completed GC.
func (s *Store) LastGC() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastGC
}

// Close closes the database, giving up after CloseTimeout.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	timeout := s.config.CloseTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("local store closed")
		return nil
	case <-time.After(timeout):
		logging.Warn().Dur("timeout", timeout).Msg("local store close timed out")
		return fmt.Errorf("badger close timeout after %v", timeout)
	}
}
