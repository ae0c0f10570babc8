// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/betspecs/betspecs/internal/agent"
	"github.com/betspecs/betspecs/internal/audit"
	"github.com/betspecs/betspecs/internal/config"
	"github.com/betspecs/betspecs/internal/daemon"
	"github.com/betspecs/betspecs/internal/ingest"
	xglog "github.com/betspecs/betspecs/internal/log"
	"github.com/betspecs/betspecs/internal/store"
	"github.com/betspecs/betspecs/internal/trust"
	"github.com/betspecs/betspecs/internal/version"
)

// rootOptions is shared by every subcommand.
type rootOptions struct {
	configPath string
	verbose    bool

	loader *config.Loader
	cfg    config.AppConfig
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "betspecs",
		Short: "Verify AI betting predictions against ground-truth odds",
		Long: `betspecs keeps a SQL ground truth of sportsbook odds and checks every
AI-generated claim (odds, team names, freshness) against it before the
claim reaches a user.`,
		Version: version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			return opts.load(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"config file (default: $"+config.EnvPrefix+"CONFIG or <dataDir>/config.yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at info level for one-shot commands")

	root.AddCommand(
		newServeCmd(opts),
		newIngestCmd(opts),
		newVerifyCmd(opts),
		newSummaryCmd(opts),
		newLedgerCmd(opts),
		newDBCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

// resolveConfigPath picks the explicit flag, then the environment, then an
// existing config.yaml in the data directory.
func (o *rootOptions) resolveConfigPath() string {
	if p := strings.TrimSpace(o.configPath); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(config.EnvPrefix + "CONFIG")); p != "" {
		return p
	}
	dataDir := strings.TrimSpace(os.Getenv(config.EnvPrefix + "DATA_DIR"))
	if dataDir == "" {
		dataDir = config.Defaults().DataDir
	}
	auto := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(auto); err == nil {
		return auto
	}
	return ""
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	o.loader = config.NewLoader(o.resolveConfigPath(), version.Version)
	cfg, err := o.loader.Load()
	if err != nil {
		return err
	}
	o.cfg = cfg

	// One-shot commands keep stdout for their own output.
	level := "warn"
	if o.verbose {
		level = "info"
	}
	xglog.Configure(xglog.Config{
		Level:   level,
		Output:  cmd.ErrOrStderr(),
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	return nil
}

// local bundles the components a one-shot command works with.
type local struct {
	store     *store.Store
	validator *trust.Validator
	ingestor  *ingest.Ingestor
	agent     *agent.Agent
}

func (l *local) Close() error { return l.store.Close() }

// openLocal opens the store in the configured data directory and builds the
// verification pipeline on top of it. No cache and no network feeds.
func (o *rootOptions) openLocal(ctx context.Context) (*local, error) {
	if err := os.MkdirAll(o.cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.Open(ctx, o.cfg.DBPath())
	if err != nil {
		return nil, err
	}
	aliases, err := trust.LoadAliasesFile(o.cfg.Trust.AliasesFile)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	validator := trust.New(daemon.TrustSettings(o.cfg.Trust), trust.WithAliases(aliases), trust.WithRecorder(st))
	return &local{
		store:     st,
		validator: validator,
		ingestor:  ingest.NewIngestor(st, nil, ingest.NewNormalizer(aliases), audit.NewLogger()),
		agent:     agent.New(st, nil, validator),
	}, nil
}
