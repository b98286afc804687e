// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package mutationlog is the durable, ordered record of writes made while
// offline. Entries survive restarts and come back from List in the order
// they were enqueued.
package mutationlog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/fieldsync/internal/localstore"
	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/models"
)

var (
	// ErrLogClosed is returned after Close.
	ErrLogClosed = errors.New("mutation log is closed")

	// ErrEntryNotFound is returned by Get for an unknown id.
	ErrEntryNotFound = errors.New("mutation not found")
)

// Log is the mutation log contract used by the reconciler, the status
// reporter and the HTTP API.
type Log interface {
	// Enqueue appends a mutation and returns its id. A disabled log returns "".
	Enqueue(ctx context.Context, t models.MutationType, p models.Payload) (string, error)

	// List returns every pending mutation, oldest first.
	List(ctx context.Context) ([]models.QueuedMutation, error)

	// Remove deletes one mutation. Unknown ids are a no-op.
	Remove(ctx context.Context, id string) error

	// Clear deletes every mutation.
	Clear(ctx context.Context) error

	// Len returns the number of pending mutations.
	Len(ctx context.Context) (int, error)
}

// Key layout:
//
//	mut:<20-digit sequence>  -> QueuedMutation JSON
//	mutidx:<id>              -> mut:<sequence>
//
// The sequence comes from a Badger Sequence, so lexical key order is
// enqueue order and survives restarts.
const (
	prefixEntry = "mut:"
	prefixIndex = "mutidx:"
	sequenceKey = "seq:mutations"

	sequenceBandwidth = 64
)

// BadgerLog implements Log on a shared local store.
type BadgerLog struct {
	store *localstore.Store
	seq   *badger.Sequence
	now   func() time.Time

	totalEnqueued atomic.Int64
	totalRemoved  atomic.Int64

	// appendMu spans leasing a sequence number and committing its entry, so
	// entries become visible in key order.
	appendMu sync.Mutex

	mu     sync.RWMutex
	closed bool
}

// Open attaches a mutation log to store.
func Open(store *localstore.Store) (*BadgerLog, error) {
	if store == nil || store.Closed() {
		return nil, localstore.ErrStoreClosed
	}
	seq, err := store.DB().GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("lease mutation sequence: %w", err)
	}

	l := &BadgerLog{store: store, seq: seq, now: time.Now}
	if n, err := l.Len(context.Background()); err == nil {
		updateDepth(n)
		logging.Info().Int("pending", n).Msg("mutation log opened")
	}
	return l, nil
}

func (l *BadgerLog) checkOpen() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed || l.store.Closed() {
		return ErrLogClosed
	}
	return nil
}

func entryKey(seq uint64) []byte {
	return []byte(prefixEntry + fmt.Sprintf("%020d", seq))
}

func indexKey(id string) []byte {
	return []byte(prefixIndex + id)
}

// Enqueue validates that p matches t, assigns an id and appends the entry.
func (l *BadgerLog) Enqueue(ctx context.Context, t models.MutationType, p models.Payload) (string, error) {
	start := time.Now()
	if err := l.checkOpen(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.New().String()
	entry, err := models.NewQueuedMutation(id, t, p, l.now())
	if err != nil {
		recordEnqueueFailure()
		return "", err
	}
	data, err := json.Marshal(&entry)
	if err != nil {
		recordEnqueueFailure()
		return "", fmt.Errorf("marshal mutation: %w", err)
	}

	l.appendMu.Lock()
	seq, err := l.seq.Next()
	if err != nil {
		l.appendMu.Unlock()
		recordEnqueueFailure()
		return "", fmt.Errorf("next mutation sequence: %w", err)
	}
	err = l.store.DB().Update(func(txn *badger.Txn) error {
		key := entryKey(seq)
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(indexKey(id), key)
	})
	l.appendMu.Unlock()
	if err != nil {
		recordEnqueueFailure()
		return "", fmt.Errorf("write mutation: %w", err)
	}

	l.totalEnqueued.Add(1)
	recordEnqueue(t, time.Since(start))
	depthInc()

	logging.Ctx(ctx).Debug().
		Str("mutation_id", id).
		Str("type", t.String()).
		Uint64("seq", seq).
		Msg("mutation enqueued")
	return id, nil
}

// List returns all entries in enqueue order. Entries that fail to decode are
// logged and skipped so one corrupt record cannot block the queue.
func (l *BadgerLog) List(ctx context.Context) ([]models.QueuedMutation, error) {
	if err := l.checkOpen(); err != nil {
		return nil, err
	}

	var out []models.QueuedMutation
	err := l.store.DB().View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixEntry)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var m models.QueuedMutation
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("skipping unreadable mutation")
				continue
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list mutations: %w", err)
	}
	return out, nil
}

// Get returns one entry by id.
func (l *BadgerLog) Get(ctx context.Context, id string) (*models.QueuedMutation, error) {
	if err := l.checkOpen(); err != nil {
		return nil, err
	}

	var m models.QueuedMutation
	err := l.store.DB().View(func(txn *badger.Txn) error {
		key, err := lookupKey(txn, id)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		})
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func lookupKey(txn *badger.Txn, id string) ([]byte, error) {
	item, err := txn.Get(indexKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// Remove deletes the entry with id. Removing an unknown id is not an error.
func (l *BadgerLog) Remove(ctx context.Context, id string) error {
	if err := l.checkOpen(); err != nil {
		return err
	}
	if id == "" {
		return nil
	}

	removed := false
	err := l.store.DB().Update(func(txn *badger.Txn) error {
		key, err := lookupKey(txn, id)
		if errors.Is(err, ErrEntryNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		removed = true
		return txn.Delete(indexKey(id))
	})
	if err != nil {
		return fmt.Errorf("remove mutation %s: %w", id, err)
	}

	if removed {
		l.totalRemoved.Add(1)
		recordRemove()
		depthDec()
		logging.Ctx(ctx).Debug().Str("mutation_id", id).Msg("mutation removed")
	}
	return nil
}

// Clear drops every entry and index key.
func (l *BadgerLog) Clear(ctx context.Context) error {
	if err := l.checkOpen(); err != nil {
		return err
	}
	n, _ := l.Len(ctx)
	if err := l.store.DB().DropPrefix([]byte(prefixEntry), []byte(prefixIndex)); err != nil {
		return fmt.Errorf("clear mutations: %w", err)
	}
	updateDepth(0)
	recordClear()
	logging.Ctx(ctx).Warn().Int("dropped", n).Msg("mutation log cleared")
	return nil
}

// Len counts entries without decoding values.
func (l *BadgerLog) Len(ctx context.Context) (int, error) {
	if err := l.checkOpen(); err != nil {
		return 0, err
	}

	n := 0
	err := l.store.DB().View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixEntry)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count mutations: %w", err)
	}
	return n, nil
}

// Stats is a point-in-time summary for diagnostics.
type Stats struct {
	Pending       int   `json:"pending"`
	TotalEnqueued int64 `json:"total_enqueued"`
	TotalRemoved  int64 `json:"total_removed"`
}

// Stats reports the current depth and lifetime counters. A failed depth
// read reports zero pending.
func (l *BadgerLog) Stats(ctx context.Context) Stats {
	n, _ := l.Len(ctx)
	return Stats{
		Pending:       n,
		TotalEnqueued: l.totalEnqueued.Load(),
		TotalRemoved:  l.totalRemoved.Load(),
	}
}

// Close releases the sequence lease. The underlying store stays open; its
// owner closes it.
func (l *BadgerLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.seq.Release(); err != nil && !l.store.Closed() {
		return fmt.Errorf("release mutation sequence: %w", err)
	}
	return nil
}

// parseSeq extracts the sequence number from an entry key. Used by tests
// and diagnostics.
func parseSeq(key []byte) (uint64, error) {
	return strconv.ParseUint(string(key[len(prefixEntry):]), 10, 64)
}
