// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/betspecs/betspecs/internal/config"
	"github.com/betspecs/betspecs/internal/log"
)

// PerformStartupChecks validates the environment before the daemon starts.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkDataDir(logger, cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	if err := checkOptionalFiles(logger, cfg); err != nil {
		return fmt.Errorf("configuration check failed: %w", err)
	}

	if cfg.AI.APIKey == "" {
		logger.Warn().Msg("ANTHROPIC_API_KEY not set; prediction generation disabled, verification only")
	}
	if cfg.APIToken == "" {
		logger.Warn().Msg("apiToken not set; /api/v1 is unauthenticated")
	}

	tempDir := filepath.Clean(os.TempDir())
	dataDir := filepath.Clean(cfg.DataDir)
	if tempDir != "." && (dataDir == tempDir || strings.HasPrefix(dataDir, tempDir+string(filepath.Separator))) {
		logger.Warn().
			Str("data_dir", cfg.DataDir).
			Msg("data directory is under temp; ground truth and ledger may be lost on reboot")
	}

	logger.Info().Msg("startup checks passed")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s: %w", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("data directory is writable")
	return nil
}

func checkOptionalFiles(logger zerolog.Logger, cfg config.AppConfig) error {
	if cfg.Trust.AliasesFile != "" {
		if err := checkFileReadable(cfg.Trust.AliasesFile); err != nil {
			return fmt.Errorf("aliases file: %w", err)
		}
		logger.Info().Str("path", cfg.Trust.AliasesFile).Msg("aliases file is readable")
	}
	return nil
}

func checkFileReadable(path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return err
	}
	return f.Close()
}
