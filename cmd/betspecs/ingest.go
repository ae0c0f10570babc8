// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/betspecs/betspecs/internal/ingest"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var publish bool

	cmd := &cobra.Command{
		Use:   "ingest FILE",
		Short: "Load an odds snapshot into the ground truth",
		Long: `Load a JSON odds snapshot into the local store. With --nats the document
is published to the configured NATS subject instead, for a running daemon to
pick up.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			out := cmd.OutOrStdout()

			if publish {
				if opts.cfg.Ingest.NATSURL == "" {
					return fmt.Errorf("--nats needs ingest.natsURL to be configured")
				}
				data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
				if err != nil {
					return fmt.Errorf("read snapshot: %w", err)
				}
				if err := ingest.Publish(cmd.Context(), opts.cfg.Ingest.NATSURL, opts.cfg.Ingest.NATSSubject, data); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "published %s to %s\n", path, opts.cfg.Ingest.NATSSubject)
				return nil
			}

			l, err := opts.openLocal(cmd.Context())
			if err != nil {
				return err
			}
			defer l.Close()

			stats, err := l.ingestor.LoadFile(cmd.Context(), path)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "applied %s: %d events, %d markets, %d lines (%d changed)\n",
				path, stats.Events, stats.Markets, stats.Lines, stats.Changed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&publish, "nats", false, "publish to NATS instead of writing the local store")
	return cmd
}
