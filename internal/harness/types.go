package harness

import (
	"context"
	"time"

	"github.com/prio-data/queries-benchmark/internal/queryset"
)

// Trace event types, in the order a passing trial emits them.
const (
	EventPublish = "publish"
	EventFetch   = "fetch"
	EventCheck   = "check"
	EventMessage = "message"
)

// TraceEvent is one step of a run.
type TraceEvent struct {
	Seq      int64  `json:"seq"`
	Type     string `json:"type"`
	Trial    string `json:"trial"`
	Queryset string `json:"queryset,omitempty"`

	// Rows is set on fetch events.
	Rows int `json:"rows,omitempty"`

	// Error is set when the step failed. A failed step is always the last
	// event of a run.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a run.
type Result struct {
	// Pass is true when every trial passed.
	Pass bool `json:"pass"`

	// Failed names the trial that stopped the run.
	Failed string `json:"failed,omitempty"`

	// Trace contains every step in order.
	Trace []TraceEvent `json:"trace"`

	// Outcomes has one entry per trial that ran, in order.
	Outcomes []TrialOutcome `json:"outcomes"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Outcomes: []TrialOutcome{},
	}
}

// Events returns the trace events of one trial.
func (r *Result) Events(trial string) []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Trial == trial {
			out = append(out, e)
		}
	}
	return out
}

func (r *Result) record(seq int64, typ string, t *Trial, rows int, err error) {
	e := TraceEvent{
		Seq:   seq,
		Type:  typ,
		Trial: t.Name,
		Rows:  rows,
	}
	if t.Queryset != nil {
		e.Queryset = t.Queryset.Name
	}
	if err != nil {
		e.Error = err.Error()
	}
	r.Trace = append(r.Trace, e)
}

// TrialOutcome summarizes one trial for observers.
type TrialOutcome struct {
	// Seq is the 1-based position of the trial in the run.
	Seq int `json:"seq"`

	Trial        string                   `json:"trial"`
	Queryset     string                   `json:"queryset"`
	QuerysetHash string                   `json:"queryset_hash"`
	Level        queryset.LevelOfAnalysis `json:"level"`

	// Rows is the fetched row count; only meaningful when Fetched is true.
	Rows    int  `json:"rows"`
	Fetched bool `json:"fetched"`

	Passed bool  `json:"passed"`
	Err    error `json:"-"`

	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// Observer is notified after every trial, passed or failed. Errors returned
// by an observer are logged and never fail the run.
type Observer interface {
	ObserveTrial(ctx context.Context, outcome TrialOutcome) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, outcome TrialOutcome) error

// ObserveTrial calls f.
func (f ObserverFunc) ObserveTrial(ctx context.Context, outcome TrialOutcome) error {
	return f(ctx, outcome)
}
