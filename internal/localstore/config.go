// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package localstore owns the device-local BadgerDB instance shared by the
// mutation log and the blob staging store.
package localstore

import (
	"fmt"
	"time"
)

// Config holds local storage settings.
//
// A disabled store is not an error: callers get the Disabled variants of the
// mutation log and blob staging store and run as if offline support were
// absent.
type Config struct {
	// Enabled turns local persistence on.
	Enabled bool

	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM. Used by tests and the CLI dry-run mode.
	InMemory bool

	// SyncWrites fsyncs on every commit. Off trades a small loss window
	// on power failure for faster enqueue on slow flash.
	SyncWrites bool

	// Compression enables Snappy for values. Photos are already compressed
	// so the gain is mostly on mutation payloads.
	Compression bool

	MemTableSize     int64
	ValueLogFileSize int64
	NumCompactors    int

	// GCInterval is how often value log GC runs. Zero disables the loop.
	GCInterval time.Duration

	// GCRatio is the discard ratio passed to RunValueLogGC.
	GCRatio float64

	// CloseTimeout bounds Close.
	CloseTimeout time.Duration
}

// DefaultConfig favours durability over throughput.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		Path:             "./data/local",
		SyncWrites:       true,
		Compression:      true,
		MemTableSize:     16 * 1024 * 1024,
		ValueLogFileSize: 64 * 1024 * 1024,
		NumCompactors:    2,
		GCInterval:       30 * time.Minute,
		GCRatio:          0.5,
		CloseTimeout:     30 * time.Second,
	}
}

// ConfigError reports an invalid field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("localstore config %s: %s", e.Field, e.Message)
}

// Validate checks c. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Path == "" && !c.InMemory {
		return &ConfigError{Field: "Path", Message: "required unless in-memory"}
	}
	if c.MemTableSize < 1024*1024 {
		return &ConfigError{Field: "MemTableSize", Message: "must be at least 1MB"}
	}
	if c.ValueLogFileSize < 1024*1024 {
		return &ConfigError{Field: "ValueLogFileSize", Message: "must be at least 1MB"}
	}
	if c.NumCompactors < 2 {
		return &ConfigError{Field: "NumCompactors", Message: "must be at least 2 (BadgerDB requirement)"}
	}
	if c.GCRatio <= 0 || c.GCRatio >= 1 {
		return &ConfigError{Field: "GCRatio", Message: "must be between 0 and 1"}
	}
	return nil
}
