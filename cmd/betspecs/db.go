// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/betspecs/betspecs/internal/persistence/sqlite"
)

func newDBCmd(opts *rootOptions) *cobra.Command {
	db := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}

	var (
		path string
		full bool
	)
	check := &cobra.Command{
		Use:   "check",
		Short: "Check the SQLite database for corruption",
		Long: `Run PRAGMA quick_check (or integrity_check with --full) against the
database. Exits with status 1 when corruption is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				path = opts.cfg.DBPath()
			}
			mode := sqlite.ModeQuick
			if full {
				mode = sqlite.ModeFull
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "checking %s (mode: %s)\n", path, mode)
			issues, err := sqlite.VerifyIntegrity(path, mode)
			if err != nil {
				return err
			}
			if issues != nil {
				_, _ = fmt.Fprintln(out, "corruption detected:")
				for _, issue := range issues {
					_, _ = fmt.Fprintf(out, "  - %s\n", issue)
				}
				return &exitError{code: 1}
			}
			_, _ = fmt.Fprintln(out, "ok")
			return nil
		},
	}
	check.Flags().StringVar(&path, "path", "", "database file (default: <dataDir>/betspecs.db)")
	check.Flags().BoolVar(&full, "full", false, "run the full integrity_check")

	db.AddCommand(check)
	return db
}
