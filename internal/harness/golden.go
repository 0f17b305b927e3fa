package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/prio-data/queries-benchmark/internal/canonical"
	"github.com/prio-data/queries-benchmark/internal/queryset"
)

// TraceSnapshot captures the trace of a run for golden comparison.
type TraceSnapshot struct {
	Name  string       `json:"name"`
	Pass  bool         `json:"pass"`
	Trace []TraceEvent `json:"trace"`
}

// toCanonicalMap converts the snapshot for canonical.Marshal, which only
// handles plain maps, slices and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, e := range s.Trace {
		m := map[string]any{
			"seq":   e.Seq,
			"type":  e.Type,
			"trial": e.Trial,
		}
		if e.Queryset != "" {
			m["queryset"] = e.Queryset
		}
		if e.Rows != 0 {
			m["rows"] = e.Rows
		}
		if e.Error != "" {
			m["error"] = e.Error
		}
		trace[i] = m
	}
	return map[string]any{
		"name":  s.Name,
		"pass":  s.Pass,
		"trace": trace,
	}
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// AssertTraceGolden compares the result's trace against
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run the test with -update.
func AssertTraceGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	snapshot := TraceSnapshot{Name: name, Pass: result.Pass, Trace: result.Trace}
	data, err := canonical.Marshal(snapshot.toCanonicalMap())
	if err != nil {
		t.Fatalf("marshal trace snapshot: %v", err)
	}
	newGoldie(t).Assert(t, name, data)
}

// AssertPayloadGolden compares the canonical publish payload of q against
// testdata/golden/{name}.golden.
func AssertPayloadGolden(t *testing.T, name string, q *queryset.Queryset) {
	t.Helper()

	data, err := queryset.MarshalCanonical(q)
	if err != nil {
		t.Fatalf("marshal queryset %s: %v", name, err)
	}
	newGoldie(t).Assert(t, name, data)
}
