package cli

import (
	"context"
	"log/slog"

	"github.com/prio-data/queries-benchmark/internal/harness"
	"github.com/prio-data/queries-benchmark/internal/store"
)

// ledgerRecorder writes every trial outcome to the run ledger. Before a
// passing trial is recorded its row count is compared with the last passing
// run of the same queryset definition; the engine is expected to return
// the same rows for the same definition every time.
type ledgerRecorder struct {
	store *store.Store
	runID string
	log   *slog.Logger
}

func (l *ledgerRecorder) ObserveTrial(ctx context.Context, o harness.TrialOutcome) error {
	if o.Passed && o.Fetched && o.QuerysetHash != "" {
		prev, ok, err := l.store.LastPassingRows(ctx, o.QuerysetHash, l.runID)
		if err != nil {
			l.log.Warn("ledger: row count lookup failed", "trial", o.Trial, "error", err)
		} else if ok && prev != int64(o.Rows) {
			l.log.Warn("ledger: row count changed since last passing run",
				"trial", o.Trial, "queryset", o.Queryset, "rows", o.Rows, "previous", prev)
		}
	}

	rec := store.TrialRecord{
		RunID:        l.runID,
		Seq:          o.Seq,
		Trial:        o.Trial,
		Queryset:     o.Queryset,
		QuerysetHash: o.QuerysetHash,
		Level:        string(o.Level),
		Fetched:      o.Fetched,
		Rows:         int64(o.Rows),
		Passed:       o.Passed,
		StartedAt:    o.Started,
		Duration:     o.Duration,
	}
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}
	return l.store.RecordTrial(ctx, rec)
}

var _ harness.Observer = (*ledgerRecorder)(nil)
