package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/prio-data/queries-benchmark/internal/dataset"
	"github.com/prio-data/queries-benchmark/internal/engine"
	"github.com/prio-data/queries-benchmark/internal/queryset"
)

// Trial pairs a queryset with the checks its dataset must pass.
type Trial struct {
	// Name identifies the trial in output, filters and the run ledger.
	Name string

	// Description explains what the trial exercises.
	Description string

	// Queryset is published and fetched. It is never modified.
	Queryset *queryset.Queryset

	// Check receives the dataset fetched for Queryset.
	Check CheckFunc

	// Message is printed when the trial passes.
	Message string
}

// Runner executes trials one at a time against an engine.
type Runner struct {
	Engine engine.Engine

	// Out receives the success messages. Defaults to io.Discard.
	Out io.Writer

	Logger *slog.Logger
	Clock  clockwork.Clock
	Seq    Sequencer

	Observers []Observer
}

func (r *Runner) validate() error {
	if r.Engine == nil {
		return errors.New("engine is required")
	}
	if r.Out == nil {
		r.Out = io.Discard
	}
	if r.Logger == nil {
		r.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if r.Clock == nil {
		r.Clock = clockwork.NewRealClock()
	}
	if r.Seq == nil {
		r.Seq = NewLogicalClock()
	}
	return nil
}

// Run executes trials in order. For each trial the queryset is published,
// its dataset fetched, and the check applied to exactly that dataset; on
// success the trial's message is written to Out.
//
// The first error stops the run: later trials never start. The returned
// Result is non-nil whenever the runner itself is configured correctly and
// carries the trace up to and including the failing step.
func (r *Runner) Run(ctx context.Context, trials []Trial) (*Result, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	result := NewResult()
	for i := range trials {
		t := &trials[i]
		outcome, err := r.runTrial(ctx, i+1, t, result)
		result.Outcomes = append(result.Outcomes, outcome)
		r.observe(ctx, outcome)

		if err != nil {
			result.Pass = false
			result.Failed = t.Name
			r.Logger.Error("trial failed", "trial", t.Name, "duration", outcome.Duration, "error", err)
			return result, err
		}
		r.Logger.Info("trial passed", "trial", t.Name, "rows", outcome.Rows, "duration", outcome.Duration)
	}
	return result, nil
}

func (r *Runner) runTrial(ctx context.Context, n int, t *Trial, result *Result) (TrialOutcome, error) {
	started := r.Clock.Now()
	outcome := TrialOutcome{
		Seq:     n,
		Trial:   t.Name,
		Started: started,
	}
	finish := func(err error) (TrialOutcome, error) {
		outcome.Duration = r.Clock.Since(started)
		outcome.Err = err
		outcome.Passed = err == nil
		return outcome, err
	}

	if t.Queryset == nil {
		return finish(fmt.Errorf("trial %s: no queryset", t.Name))
	}
	if t.Check == nil {
		return finish(fmt.Errorf("trial %s: no check", t.Name))
	}

	qs := t.Queryset
	outcome.Queryset = qs.Name
	outcome.Level = qs.LevelOfAnalysis
	if h, err := queryset.Hash(qs); err == nil {
		outcome.QuerysetHash = h
	}

	log := r.Logger.With("trial", t.Name, "queryset", qs.Name)
	log.Debug("publishing queryset", "level", qs.LevelOfAnalysis, "columns", len(qs.Columns), "hash", outcome.QuerysetHash)

	pub, err := r.Engine.Publish(ctx, qs)
	result.record(r.Seq.Next(), EventPublish, t, 0, err)
	if err != nil {
		return finish(fmt.Errorf("trial %s: publish: %w", t.Name, err))
	}

	log.Debug("fetching dataset")
	ds, err := pub.Fetch(ctx)
	if err == nil && ds == nil {
		err = errors.New("engine returned no dataset")
	}
	result.record(r.Seq.Next(), EventFetch, t, rowsOf(ds), err)
	if err != nil {
		return finish(fmt.Errorf("trial %s: fetch: %w", t.Name, err))
	}
	outcome.Rows = ds.Len()
	outcome.Fetched = true
	log.Debug("dataset fetched", "rows", ds.Len(), "index", ds.IndexNames(), "columns", ds.Columns())

	err = t.Check(ds)
	result.record(r.Seq.Next(), EventCheck, t, 0, err)
	if err != nil {
		var ae *AssertionError
		if errors.As(err, &ae) && ae.Trial == "" {
			ae.Trial = t.Name
		}
		return finish(fmt.Errorf("trial %s: %w", t.Name, err))
	}

	if t.Message != "" {
		if _, err := fmt.Fprintln(r.Out, t.Message); err != nil {
			return finish(fmt.Errorf("trial %s: write message: %w", t.Name, err))
		}
	}
	result.record(r.Seq.Next(), EventMessage, t, 0, nil)
	return finish(nil)
}

func (r *Runner) observe(ctx context.Context, outcome TrialOutcome) {
	for _, o := range r.Observers {
		if err := o.ObserveTrial(ctx, outcome); err != nil {
			r.Logger.Warn("trial observer failed", "trial", outcome.Trial, "error", err)
		}
	}
}

func rowsOf(ds *dataset.Dataset) int {
	if ds == nil {
		return 0
	}
	return ds.Len()
}
