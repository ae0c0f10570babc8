// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// effectiveConfig is the redacted view printed by config dump.
type effectiveConfig struct {
	ConfigFile string `yaml:"configFile,omitempty"`
	ListenAddr string `yaml:"listenAddr"`
	DataDir    string `yaml:"dataDir"`
	Database   string `yaml:"database"`
	LogLevel   string `yaml:"logLevel"`
	APIToken   string `yaml:"apiToken,omitempty"`
	Trust      struct {
		Tolerance    float64 `yaml:"tolerance"`
		MaxStaleness string  `yaml:"maxStaleness"`
		AliasesFile  string  `yaml:"aliasesFile,omitempty"`
		LogCapacity  int     `yaml:"logCapacity"`
	} `yaml:"trust"`
	Cache struct {
		Backend   string `yaml:"backend"`
		RedisAddr string `yaml:"redisAddr,omitempty"`
		TTL       string `yaml:"ttl"`
	} `yaml:"cache"`
	Ingest struct {
		PollURL     string `yaml:"pollURL,omitempty"`
		NATSURL     string `yaml:"natsURL,omitempty"`
		NATSSubject string `yaml:"natsSubject,omitempty"`
	} `yaml:"ingest"`
	AI struct {
		Model       string `yaml:"model"`
		APIKey      string `yaml:"apiKey,omitempty"`
		MaxAttempts int    `yaml:"maxAttempts"`
	} `yaml:"ai"`
}

const redacted = "***"

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved configuration",
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Loading already validated it.
			source := opts.loader.ConfigPath()
			if source == "" {
				source = "environment and defaults"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "configuration valid (%s)\n", source)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := opts.cfg
			var e effectiveConfig
			e.ConfigFile = opts.loader.ConfigPath()
			e.ListenAddr = c.ListenAddr
			e.DataDir = c.DataDir
			e.Database = c.DBPath()
			e.LogLevel = c.LogLevel
			if c.APIToken != "" {
				e.APIToken = redacted
			}
			e.Trust.Tolerance = c.Trust.Tolerance
			e.Trust.MaxStaleness = c.Trust.MaxStaleness.String()
			e.Trust.AliasesFile = c.Trust.AliasesFile
			e.Trust.LogCapacity = c.Trust.LogCapacity
			e.Cache.Backend = c.Cache.Backend
			e.Cache.RedisAddr = c.Cache.RedisAddr
			e.Cache.TTL = c.Cache.TTL.String()
			e.Ingest.PollURL = c.Ingest.PollURL
			e.Ingest.NATSURL = c.Ingest.NATSURL
			e.Ingest.NATSSubject = c.Ingest.NATSSubject
			e.AI.Model = c.AI.Model
			e.AI.MaxAttempts = c.AI.MaxAttempts
			if c.AI.APIKey != "" {
				e.AI.APIKey = redacted
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(e); err != nil {
				return err
			}
			return enc.Close()
		},
	})
	return cfgCmd
}
