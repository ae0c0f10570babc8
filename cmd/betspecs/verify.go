// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/betspecs/betspecs/internal/agent"
	"github.com/betspecs/betspecs/internal/trust"
)

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	var (
		p       trust.Prediction
		oddsArg string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify one prediction against the ground truth",
		Long: `Check a single claim (event, market type, selection, odds) against the
stored odds. Exits with status 1 when the claim is rejected.`,
		Example: `  betspecs verify --event evt_101 --type moneyline \
    --selection "Golden State Warriors" --odds -150 --confidence 0.72`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			claimed, err := decimal.NewFromString(oddsArg)
			if err != nil {
				return fmt.Errorf("invalid --odds %q: %w", oddsArg, err)
			}
			if p.Confidence < 0 || p.Confidence > 1 {
				return errors.New("--confidence must be between 0 and 1")
			}
			p.OddsClaimed = claimed

			l, err := opts.openLocal(cmd.Context())
			if err != nil {
				return err
			}
			defer l.Close()

			out, err := l.agent.Verify(cmd.Context(), p)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(out); err != nil {
					return err
				}
			} else {
				renderOutcome(cmd.OutOrStdout(), out)
			}
			if !out.Passed {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&p.EventID, "event", "", "event ID")
	f.StringVar(&p.PredictionType, "type", "moneyline", "market type (moneyline, spread, total)")
	f.StringVar(&p.Selection, "selection", "", "claimed selection, e.g. a team name or Over/Under")
	f.StringVar(&oddsArg, "odds", "", "claimed american odds or points line")
	f.Float64Var(&p.Confidence, "confidence", 0.5, "model confidence between 0 and 1")
	f.BoolVar(&asJSON, "json", false, "print the outcome as JSON")
	for _, name := range []string{"event", "selection", "odds"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func renderOutcome(w io.Writer, out agent.Outcome) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Check", "Claim", "Source", "Status", "Discrepancy"})
	for _, r := range out.Results {
		t.AppendRow(table.Row{r.ClaimType, r.Claim, r.SourceValue, r.Status, r.Discrepancy})
	}
	t.Render()

	verdict := "PASSED"
	if !out.Passed {
		verdict = "REJECTED"
	}
	_, _ = fmt.Fprintf(w, "%s %s / %s\n", verdict, out.EventID, out.Selection)
}
