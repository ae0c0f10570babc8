// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/renameio/v2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/betspecs/betspecs/internal/trust"
)

// summaryExport is the document written by summary --export.
type summaryExport struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Database    string        `json:"database"`
	Summary     trust.Summary `json:"summary"`
}

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	var export string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the verification summary from the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := opts.openLocal(cmd.Context())
			if err != nil {
				return err
			}
			defer l.Close()

			sum, err := l.store.VerificationCounts(cmd.Context())
			if err != nil {
				return err
			}
			renderSummary(cmd.OutOrStdout(), sum)

			if export == "" {
				return nil
			}
			data, err := json.MarshalIndent(summaryExport{
				GeneratedAt: time.Now().UTC(),
				Database:    l.store.Path(),
				Summary:     sum,
			}, "", "  ")
			if err != nil {
				return err
			}
			if err := renameio.WriteFile(export, append(data, '\n'), 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", export)
			return nil
		},
	}
	cmd.Flags().StringVar(&export, "export", "", "also write the summary as JSON to this file")
	return cmd
}

func renderSummary(w io.Writer, s trust.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Status", "Count"})
	t.AppendRows([]table.Row{
		{trust.StatusVerified, s.Verified},
		{trust.StatusFailed, s.Failed},
		{trust.StatusPartial, s.Partial},
		{trust.StatusStale, s.Stale},
		{trust.StatusSkipped, s.Skipped},
	})
	t.AppendFooter(table.Row{"Total", s.TotalChecks})
	t.Render()
	_, _ = fmt.Fprintf(w, "pass rate %.1f%%, rejection rate %.1f%%\n", s.PassRate*100, s.RejectionRate*100)
}
