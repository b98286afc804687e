// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package blobstage holds photos captured offline until the reconciler has
// uploaded them. Blobs are addressed by an opaque key that mutation payloads
// carry instead of the bytes themselves.
package blobstage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/fieldsync/internal/localstore"
	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/metrics"
	"github.com/tomtom215/fieldsync/internal/models"
)

// ErrStoreClosed is returned after Close.
var ErrStoreClosed = errors.New("blob staging store is closed")

// ErrEmptyBlob is returned by Stage for zero-length data.
var ErrEmptyBlob = errors.New("blob is empty")

const prefixBlob = "blob:"

// Stager is the contract the reconciler and the HTTP API depend on.
type Stager interface {
	// Stage stores data and returns its key. A disabled store returns "".
	Stage(ctx context.Context, data []byte, mimeType, filename string) (string, error)

	// Retrieve returns the blob for key; ok is false when it is absent.
	Retrieve(ctx context.Context, key string) (blob *models.StagedBlob, ok bool, err error)

	// Remove deletes keys. Absent keys are skipped.
	Remove(ctx context.Context, keys ...string) error
}

// Options tune a BadgerStore.
type Options struct {
	// TTL expires staged blobs that were never promoted. Zero keeps them
	// until removed.
	TTL time.Duration

	// MaxBytes rejects larger blobs. Zero means no limit.
	MaxBytes int64
}

// BadgerStore implements Stager on the shared local store.
type BadgerStore struct {
	store *localstore.Store
	opts  Options
	now   func() time.Time

	mu     sync.RWMutex
	closed bool
}

// Open attaches a staging store to store.
func Open(store *localstore.Store, opts Options) (*BadgerStore, error) {
	if store == nil || store.Closed() {
		return nil, localstore.ErrStoreClosed
	}
	return &BadgerStore{store: store, opts: opts, now: time.Now}, nil
}

func (s *BadgerStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.store.Closed() {
		return ErrStoreClosed
	}
	return nil
}

func blobKey(key string) []byte {
	return []byte(prefixBlob + key)
}

// Stage writes data under a new key.
func (s *BadgerStore) Stage(ctx context.Context, data []byte, mimeType, filename string) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", ErrEmptyBlob
	}
	if s.opts.MaxBytes > 0 && int64(len(data)) > s.opts.MaxBytes {
		return "", fmt.Errorf("blob of %d bytes exceeds limit of %d", len(data), s.opts.MaxBytes)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	blob := models.StagedBlob{
		Key:      uuid.New().String(),
		Data:     data,
		MimeType: mimeType,
		Filename: filename,
		StagedAt: s.now().UTC(),
	}
	val, err := json.Marshal(&blob)
	if err != nil {
		return "", fmt.Errorf("marshal blob: %w", err)
	}

	err = s.store.DB().Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(blobKey(blob.Key), val)
		if s.opts.TTL > 0 {
			e = e.WithTTL(s.opts.TTL)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return "", fmt.Errorf("stage blob: %w", err)
	}

	metrics.RecordBlobStaged(len(data))
	logging.Ctx(ctx).Debug().
		Str("blob_key", blob.Key).
		Str("mime_type", mimeType).
		Int("bytes", len(data)).
		Msg("blob staged")
	return blob.Key, nil
}

// Retrieve reads one blob.
func (s *BadgerStore) Retrieve(ctx context.Context, key string) (*models.StagedBlob, bool, error) {
	if err := s.checkOpen(); err != nil {
		return nil, false, err
	}
	if key == "" {
		return nil, false, nil
	}

	var blob models.StagedBlob
	found := false
	err := s.store.DB().View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &blob)
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("retrieve blob %s: %w", key, err)
	}
	if !found {
		return nil, false, nil
	}
	return &blob, true, nil
}

// Remove deletes every key in one transaction.
func (s *BadgerStore) Remove(ctx context.Context, keys ...string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	removed := 0
	err := s.store.DB().Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if k == "" {
				continue
			}
			_, err := txn.Get(blobKey(k))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := txn.Delete(blobKey(k)); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove blobs: %w", err)
	}
	if removed > 0 {
		metrics.RecordBlobsRemoved(removed)
		logging.Ctx(ctx).Debug().Int("removed", removed).Msg("staged blobs removed")
	}
	return nil
}

// Entry describes a staged blob without its bytes.
type Entry struct {
	Key      string    `json:"key"`
	MimeType string    `json:"mime_type"`
	Filename string    `json:"filename"`
	Size     int       `json:"size"`
	StagedAt time.Time `json:"staged_at"`
}

// List returns metadata for every staged blob. Orphans left by mutations
// that never replayed show up here for manual cleanup.
func (s *BadgerStore) List(ctx context.Context) ([]Entry, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var out []Entry
	err := s.store.DB().View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixBlob)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var b models.StagedBlob
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &b)
			}); err != nil {
				logging.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("skipping unreadable blob")
				continue
			}
			out = append(out, Entry{
				Key:      b.Key,
				MimeType: b.MimeType,
				Filename: b.Filename,
				Size:     len(b.Data),
				StagedAt: b.StagedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	return out, nil
}

// Keys returns the key of every staged blob.
func (s *BadgerStore) Keys(ctx context.Context) ([]string, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys, nil
}

// Stats summarizes what is staged.
type Stats struct {
	Count int   `json:"count"`
	Bytes int64 `json:"bytes"`
}

func (s *BadgerStore) Stats(ctx context.Context) (Stats, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Count: len(entries)}
	for _, e := range entries {
		st.Bytes += int64(e.Size)
	}
	return st, nil
}

// Close detaches the store. The shared local store is closed by its owner.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Disabled is used when local storage is unavailable. Stage returns an
// empty key so callers treat the photo as not capturable.
type Disabled struct{}

// Stage drops data and returns an empty key.
func (Disabled) Stage(context.Context, []byte, string, string) (string, error) { return "", nil }

// Retrieve never finds a blob.
func (Disabled) Retrieve(context.Context, string) (*models.StagedBlob, bool, error) {
	return nil, false, nil
}

// Remove is a no-op.
func (Disabled) Remove(context.Context, ...string) error { return nil }

var (
	_ Stager = (*BadgerStore)(nil)
	_ Stager = Disabled{}
)
