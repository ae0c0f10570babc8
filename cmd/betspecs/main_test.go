// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betspecs/betspecs/internal/ledger"
	"github.com/betspecs/betspecs/internal/store"
)

func snapshotDoc(captured time.Time) string {
	return fmt.Sprintf(`{"provider":"pinnacle","captured_at":%q,"events":[{
  "event_id":"evt_101","sport":"basketball","league":"NBA",
  "home_team":"Golden State Warriors","away_team":"Los Angeles Lakers",
  "start_time":%q,
  "markets":[{"market_id":"mkt_101_ml","market_type":"moneyline","lines":[
    {"selection":"Golden State Warriors","odds":-150},
    {"selection":"Los Angeles Lakers","odds":130}]}]}]}`,
		captured.UTC().Format(time.RFC3339), captured.Add(14*time.Hour).UTC().Format(time.RFC3339))
}

// setupDataDir points the CLI at a fresh data directory.
func setupDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("BETSPECS_DATA_DIR", dir)
	t.Setenv("BETSPECS_CONFIG", "")
	t.Setenv("BETSPECS_API_TOKEN", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	return dir
}

func writeSnapshot(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(snapshotDoc(time.Now())), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestVersion(t *testing.T) {
	out, _, code := execute(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "betspecs v0.1.0")
}

func TestIngestVerifySummary(t *testing.T) {
	dir := setupDataDir(t)
	snap := writeSnapshot(t, dir)

	out, stderr, code := execute(t, "ingest", snap)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "1 events, 1 markets, 2 lines (2 changed)")

	out, stderr, code = execute(t, "verify", "--event", "evt_101",
		"--selection", "Golden State Warriors", "--odds", "-150", "--confidence", "0.7")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "PASSED evt_101")

	// A hallucinated price is rejected with exit status 1.
	out, _, code = execute(t, "verify", "--event", "evt_101",
		"--selection", "Warriors", "--odds", "-200")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "REJECTED")
	assert.Contains(t, out, "failed")

	// Unknown events fail closed.
	_, _, code = execute(t, "verify", "--event", "evt_999", "--selection", "Warriors", "--odds", "-150")
	assert.Equal(t, 1, code)

	export := filepath.Join(dir, "out", "summary.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(export), 0o750))
	out, stderr, code = execute(t, "summary", "--export", export)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "Total")

	data, err := os.ReadFile(export)
	require.NoError(t, err)
	var doc summaryExport
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, filepath.Join(dir, "betspecs.db"), doc.Database)
	assert.Positive(t, doc.Summary.Verified)
	assert.Positive(t, doc.Summary.Failed)
	assert.Equal(t, doc.Summary.TotalChecks,
		doc.Summary.Verified+doc.Summary.Failed+doc.Summary.Partial+doc.Summary.Stale+doc.Summary.Skipped)
}

func TestVerifyFlagErrors(t *testing.T) {
	setupDataDir(t)

	_, stderr, code := execute(t, "verify", "--event", "evt_101", "--selection", "Warriors")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "odds")

	_, stderr, code = execute(t, "verify", "--event", "evt_101", "--selection", "Warriors", "--odds", "minus")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid --odds")

	_, stderr, code = execute(t, "verify", "--event", "evt_101", "--selection", "Warriors",
		"--odds", "-150", "--confidence", "1.5")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "confidence")
}

func TestIngestRejectsMalformedSnapshot(t *testing.T) {
	dir := setupDataDir(t)
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"provider":"x","surprise":true}`), 0o600))

	_, stderr, code := execute(t, "ingest", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid snapshot")

	_, stderr, code = execute(t, "ingest", "--nats", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "natsURL")
}

func TestLedger(t *testing.T) {
	dir := setupDataDir(t)

	out, _, code := execute(t, "ledger")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "(no bets)")

	st, err := store.Open(context.Background(), filepath.Join(dir, "betspecs.db"))
	require.NoError(t, err)
	l := ledger.New(st)
	bet, err := l.Place(context.Background(), ledger.Bet{
		EventID:   "evt_101",
		Selection: "Golden State Warriors",
		Odds:      decimal.NewFromInt(-150),
		Stake:     decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	_, err = l.Settle(context.Background(), bet.ID, ledger.StatusWon)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, stderr, code := execute(t, "ledger")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, bet.ID)
	assert.Contains(t, out, "66.67")
	assert.Contains(t, out, "1 won, 0 lost")
}

func TestDBCheck(t *testing.T) {
	dir := setupDataDir(t)

	// Nothing ingested yet: the database does not exist.
	_, stderr, code := execute(t, "db", "check")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "not accessible")

	_, _, code = execute(t, "ingest", writeSnapshot(t, dir))
	require.Equal(t, 0, code)

	out, stderr, code := execute(t, "db", "check", "--full")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "mode: full")
	assert.Contains(t, out, "ok")
}

func TestConfigDumpRedactsSecrets(t *testing.T) {
	setupDataDir(t)
	t.Setenv("BETSPECS_API_TOKEN", "s3cret-token")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-secret")

	out, stderr, code := execute(t, "config", "dump")
	require.Equal(t, 0, code, stderr)
	assert.NotContains(t, out, "s3cret-token")
	assert.NotContains(t, out, "sk-ant-secret")
	assert.Regexp(t, `apiToken: ["']\*\*\*["']`, out)
	assert.Contains(t, out, "tolerance: 0.01")

	out, _, code = execute(t, "config", "validate")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "configuration valid")
}

func TestConfigFromFile(t *testing.T) {
	dir := setupDataDir(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataDir: "+dir+"\ntrust:\n  tolerance: 0.5\n"), 0o600))

	out, stderr, code := execute(t, "--config", path, "config", "dump")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "tolerance: 0.5")
	assert.Contains(t, out, "configFile: "+path)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("unknownKey: 1\n"), 0o600))
	_, stderr, code = execute(t, "--config", broken, "config", "validate")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "config")
}
