// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package main

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newStageCommand(root *rootOptions) *cobra.Command {
	var mimeType string
	cmd := &cobra.Command{
		Use:   "stage <file>",
		Short: "Stage a photo on the device and print its key",
		Long: `Stage a photo for a later create-chamber mutation. Reference the printed
key as {"staged_key": "<key>"} in the chamber payload.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			if mimeType == "" {
				mimeType = mime.TypeByExtension(filepath.Ext(args[0]))
			}
			if mimeType == "" {
				mimeType = http.DetectContentType(data)
			}

			a := openApp(root.cfg)
			defer a.Close()

			name := filepath.Base(args[0])
			key, err := a.blobs.Stage(cmd.Context(), data, mimeType, name)
			if err != nil {
				return fmt.Errorf("stage %s: %w", name, err)
			}
			if key == "" {
				return errors.New("photo not staged: local storage unavailable")
			}
			out := map[string]interface{}{"key": key, "mime_type": mimeType, "filename": name, "size": len(data)}
			return root.emit(cmd.OutOrStdout(), out, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, key)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&mimeType, "mime-type", "", "override the detected content type")
	return cmd
}
