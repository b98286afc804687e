// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package mutationlog

import (
	"context"

	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/models"
)

// Disabled is the log used when local storage cannot be opened. Writes are
// dropped and the queue always reads as empty.
type Disabled struct{}

// NewDisabled logs once that offline queueing is off.
func NewDisabled(reason error) Disabled {
	ev := logging.Warn()
	if reason != nil {
		ev = ev.Err(reason)
	}
	ev.Msg("local storage unavailable; offline mutation queue disabled")
	return Disabled{}
}

// Enqueue drops the mutation and returns an empty id, which callers report
// as not queued.
func (Disabled) Enqueue(context.Context, models.MutationType, models.Payload) (string, error) {
	return "", nil
}

// The queue of a Disabled log is always empty.

func (Disabled) List(context.Context) ([]models.QueuedMutation, error) { return nil, nil }
func (Disabled) Remove(context.Context, string) error                  { return nil }
func (Disabled) Clear(context.Context) error                           { return nil }
func (Disabled) Len(context.Context) (int, error)                      { return 0, nil }

var (
	_ Log = (*BadgerLog)(nil)
	_ Log = Disabled{}
)
