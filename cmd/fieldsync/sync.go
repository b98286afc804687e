// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/fieldsync/internal/replay"
)

func newSyncCommand(root *rootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replay queued mutations against the backend now",
		Long: `Run one drain pass. Entries that fail stay queued for the next pass; the
command only fails when the pass could not run at all.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := openApp(root.cfg)
			defer a.Close()
			if !a.queueEnabled() {
				return errors.New("local storage unavailable: queued mutations cannot be read")
			}

			rec, _, err := a.reconciler()
			if err != nil {
				return err
			}
			rec.OnStatus(func(msg string) {
				fmt.Fprintln(cmd.ErrOrStderr(), msg)
			})

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			res, err := rec.DrainFor(ctx, replay.TriggerManual)
			if err != nil {
				return fmt.Errorf("drain: %w", err)
			}
			return root.emit(cmd.OutOrStdout(), res, func(w io.Writer) error {
				fmt.Fprintf(w, "success: %d failed: %d\n", res.Success, res.Failed)
				for _, warn := range res.Warnings {
					fmt.Fprintf(w, "warning: %s\n", warn)
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "bound the whole pass (0 for none)")
	return cmd
}
