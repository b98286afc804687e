// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/fieldsync/internal/models"
	"github.com/tomtom215/fieldsync/internal/validation"
)

func newQueueCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect or discard queued mutations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List pending mutations, oldest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a := openApp(root.cfg)
				defer a.Close()

				entries, err := a.log.List(cmd.Context())
				if err != nil {
					return fmt.Errorf("list queue: %w", err)
				}
				if entries == nil {
					entries = []models.QueuedMutation{}
				}
				return root.emit(cmd.OutOrStdout(), entries, func(w io.Writer) error {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tTYPE\tQUEUED AT")
					for _, e := range entries {
						fmt.Fprintf(tw, "%s\t%s\t%s\n", e.ID, e.Type, e.CreatedAt.Format(time.RFC3339))
					}
					return tw.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "depth",
			Short: "Print the number of pending mutations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a := openApp(root.cfg)
				defer a.Close()

				n, err := a.log.Len(cmd.Context())
				if err != nil {
					return fmt.Errorf("queue depth: %w", err)
				}
				return root.emit(cmd.OutOrStdout(), map[string]int{"depth": n}, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, n)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "remove <id>",
			Short: "Discard one queued mutation (no error if absent)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a := openApp(root.cfg)
				defer a.Close()

				if err := a.log.Remove(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("remove %s: %w", args[0], err)
				}
				return nil
			},
		},
		newQueueClearCommand(root),
	)
	return cmd
}

func newQueueClearCommand(root *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Discard every queued mutation",
		Long: `Discard every queued mutation. Unsynced field edits are lost; staged
photos are left for the blob TTL to expire.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear the queue without --yes")
			}
			a := openApp(root.cfg)
			defer a.Close()

			n, _ := a.log.Len(cmd.Context())
			if err := a.log.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear queue: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "discarded %d mutations\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm discarding all queued mutations")
	return cmd
}

func newEnqueueCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <type> <payload.json>",
		Short: "Queue a mutation from a JSON payload file",
		Long: `Queue a mutation. <type> is one of create-project, update-project,
create-chamber, update-chamber. <payload.json> is a file path, or "-" to
read standard input.`,
		Example: `  fieldsync enqueue create-project project.json
  echo '{"id":"c-1","patch":{"depth_m":2.4}}' | fieldsync enqueue update-chamber -`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := models.ParseMutationType(args[0])
			if err != nil {
				return err
			}
			raw, err := readInput(cmd, args[1])
			if err != nil {
				return err
			}
			p, err := models.DecodePayload(t, raw)
			if err != nil {
				return err
			}
			if verr := validation.ValidatePayload(t, p); verr != nil {
				return verr
			}

			a := openApp(root.cfg)
			defer a.Close()

			id, err := a.log.Enqueue(cmd.Context(), t, p)
			if err != nil {
				return fmt.Errorf("enqueue %s: %w", t, err)
			}
			out := map[string]interface{}{"id": id, "type": t, "queued": id != ""}
			return root.emit(cmd.OutOrStdout(), out, func(w io.Writer) error {
				if id == "" {
					_, err := fmt.Fprintln(w, "not queued: local storage unavailable")
					return err
				}
				_, err := fmt.Fprintln(w, id)
				return err
			})
		},
	}
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
