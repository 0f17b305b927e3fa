package cli

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prio-data/queries-benchmark/internal/config"
	"github.com/prio-data/queries-benchmark/internal/testutil"
	"github.com/prio-data/queries-benchmark/internal/trials"
)

// unsetConfigEnv keeps the caller's environment out of the test.
func unsetConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{config.EnvRemoteURL, config.EnvTimeout, config.EnvPollInterval, config.EnvDB, config.EnvPushgateway} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

// newTestRootOptions returns options with a temp ledger and no .env file.
func newTestRootOptions(t *testing.T) *RootOptions {
	t.Helper()
	unsetConfigEnv(t)
	return &RootOptions{
		Format: "text",
		DB:     filepath.Join(t.TempDir(), "ledger.db"),
		Logger: testutil.NewLogger(),
	}
}

// capturingLogger returns a logger writing text records to the buffer.
func capturingLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// catalogEngine serves passing datasets for every catalog trial but alpha,
// whose full grid is too large to build in a test.
func catalogEngine(t *testing.T) *testutil.FakeEngine {
	t.Helper()
	eng := testutil.NewFakeEngine(nil)
	eng.SetDefinitionDataset(trials.Baseline, testutil.Dataset(t, trials.Baseline,
		[]float64{500, 60, 1, 2},
		[]float64{501, 60, 27, 333},
	))
	eng.SetDefinitionDataset(trials.Beta, testutil.FilledDataset(t, trials.Beta, trials.BetaRows,
		[]float64{2002, 28, 5000, 73, 2268},
	))
	eng.SetDefinitionDataset(trials.Gamma, testutil.Dataset(t, trials.Gamma,
		[]float64{365, 59, 426, 440},
	))
	return eng
}

const customTrialYAML = `name: custom
queryset:
  name: custom_qs
  loa: country_month
  columns:
    - name: sb_count_cm
      from_table: ged2_cm
      from_column: ged_sb_best_count_nokgi
assertions:
  - type: columns
    columns: [sb_count_cm]
`

// writeTrialFile writes content to name in dir and returns the path.
func writeTrialFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
