// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/fieldsync/internal/config"
	"github.com/tomtom215/fieldsync/internal/logging"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
)

var validFormats = []string{formatText, formatJSON}

// rootOptions holds global flags and the state loaded before every command.
type rootOptions struct {
	Format string

	cfg *config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "fieldsync",
		Short: "Offline-first field data sync for drainage inspections",
		Long: `fieldsync queues project and chamber edits made in the field, stages
their photos on the device and replays everything against the backend when
connectivity returns.

Configuration comes from config.yaml and the environment; see the README.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logging.Init(cfg.Logging.Logger())
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", formatText, "output format (text|json)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newQueueCommand(opts))
	cmd.AddCommand(newEnqueueCommand(opts))
	cmd.AddCommand(newStageCommand(opts))
	cmd.AddCommand(newSyncCommand(opts))

	return cmd
}

// emit writes v as indented JSON, or calls text for the text format.
func (o *rootOptions) emit(w io.Writer, v interface{}, text func(io.Writer) error) error {
	if o.Format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}
