package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prio-data/queries-benchmark/internal/dataset"
	"github.com/prio-data/queries-benchmark/internal/queryset"
)

// Dataset builds a dataset for q's level and columns. Each row is
// time, unit, then one value per column.
func Dataset(t testing.TB, q *queryset.Queryset, rows ...[]float64) *dataset.Dataset {
	t.Helper()

	idx, err := q.LevelOfAnalysis.IndexNames()
	require.NoError(t, err)
	b, err := dataset.NewBuilder(idx, q.ColumnNames())
	require.NoError(t, err)
	for _, r := range rows {
		require.NoError(t, b.Append(int64(r[0]), int64(r[1]), r[2:]))
	}
	return b.Build()
}

// FilledDataset builds a dataset for q with n rows of zeros on distinct
// keys, followed by rows. Row counts are checked exactly, so the filler
// keys start at a time value no literal row uses.
func FilledDataset(t testing.TB, q *queryset.Queryset, n int, rows ...[]float64) *dataset.Dataset {
	t.Helper()

	idx, err := q.LevelOfAnalysis.IndexNames()
	require.NoError(t, err)
	b, err := dataset.NewBuilder(idx, q.ColumnNames())
	require.NoError(t, err)

	zeros := make([]float64, len(q.Columns))
	for i := 0; i < n-len(rows); i++ {
		require.NoError(t, b.Append(100_000, int64(i), zeros))
	}
	for _, r := range rows {
		require.NoError(t, b.Append(int64(r[0]), int64(r[1]), r[2:]))
	}
	return b.Build()
}

// NewLogger returns a logger for tests. Output is suppressed unless DEBUG
// is set: DEBUG=1 shows info, DEBUG=2 shows debug.
func NewLogger() *slog.Logger {
	var level slog.Level
	switch os.Getenv("DEBUG") {
	case "2":
		level = slog.LevelDebug
	case "1":
		level = slog.LevelInfo
	default:
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
