// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"github.com/spf13/cobra"

	"github.com/betspecs/betspecs/internal/config"
	"github.com/betspecs/betspecs/internal/daemon"
	xglog "github.com/betspecs/betspecs/internal/log"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the verification daemon",
		Long: `Run the HTTP API, the configured odds feeds and the config watcher until
SIGINT or SIGTERM. SIGHUP reloads the configuration file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			xglog.Configure(xglog.Config{
				Level:   cfg.LogLevel,
				Service: cfg.LogService,
				Version: cfg.Version,
			})

			logger := xglog.WithComponent("daemon")
			if path := opts.loader.ConfigPath(); path != "" {
				logger.Info().
					Str(xglog.FieldEvent, "config.loaded").
					Str("source", "file").
					Str(xglog.FieldPath, path).
					Msg("loaded configuration from file")
			} else {
				logger.Info().
					Str(xglog.FieldEvent, "config.loaded").
					Str("source", "env+defaults").
					Msg("loaded configuration from environment and defaults")
			}

			holder := config.NewConfigHolder(cfg, opts.loader)
			rt, err := daemon.Bootstrap(cmd.Context(), holder)
			if err != nil {
				return err
			}
			return rt.Run(cmd.Context())
		},
	}
}
