// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/betspecs/betspecs/internal/ledger"
)

func newLedgerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ledger",
		Short: "Show placed bets and profit and loss",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := opts.openLocal(cmd.Context())
			if err != nil {
				return err
			}
			defer l.Close()

			bets, err := ledger.New(l.store).Bets(cmd.Context())
			if err != nil {
				return err
			}
			renderLedger(cmd.OutOrStdout(), bets, ledger.Summarize(bets))
			return nil
		},
	}
}

func renderLedger(w io.Writer, bets []ledger.Bet, sum ledger.Summary) {
	if len(bets) == 0 {
		_, _ = fmt.Fprintln(w, "(no bets)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Bet", "Event", "Selection", "Odds", "Stake", "Status", "Profit", "Placed"})
	for _, b := range bets {
		t.AppendRow(table.Row{
			b.ID, b.EventID, b.Selection,
			b.Odds.String(), b.Stake.StringFixed(2), b.Status, b.Profit.StringFixed(2),
			b.PlacedAt.Local().Format(time.DateTime),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", sum.Staked.StringFixed(2), "", sum.Profit.StringFixed(2), ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Odds", Align: text.AlignRight},
		{Name: "Stake", Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Name: "Profit", Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	t.Render()

	_, _ = fmt.Fprintf(w, "%d bets (%d pending): %d won, %d lost, %d push; ROI %s%%\n",
		sum.Bets, sum.Pending, sum.Wins, sum.Losses, sum.Pushes, sum.ROI.StringFixed(2))
}
