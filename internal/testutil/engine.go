package testutil

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prio-data/queries-benchmark/internal/dataset"
	"github.com/prio-data/queries-benchmark/internal/engine"
	"github.com/prio-data/queries-benchmark/internal/queryset"
)

// Engine call operations.
const (
	OpPublish = "publish"
	OpFetch   = "fetch"
)

// Call is one request received by a FakeEngine.
type Call struct {
	Seq      int64
	Op       string
	Queryset string

	// Dataset is the dataset returned by a fetch.
	Dataset *dataset.Dataset
}

// FakeEngine is an in-memory engine.Engine. Datasets are registered per
// queryset name; fetching a name that was never published fails the same
// way the remote engine does.
type FakeEngine struct {
	mu    sync.Mutex
	clock *DeterministicClock

	datasets   map[string]*dataset.Dataset
	byHash     map[string]*dataset.Dataset
	publishErr map[string]error
	fetchErr   map[string]error
	published  map[string]*queryset.Queryset
	calls      []Call
}

// NewFakeEngine creates an empty engine stamping calls with clock. A nil
// clock gets a fresh one.
func NewFakeEngine(clock *DeterministicClock) *FakeEngine {
	if clock == nil {
		clock = NewDeterministicClock()
	}
	return &FakeEngine{
		clock:      clock,
		datasets:   make(map[string]*dataset.Dataset),
		byHash:     make(map[string]*dataset.Dataset),
		publishErr: make(map[string]error),
		fetchErr:   make(map[string]error),
		published:  make(map[string]*queryset.Queryset),
	}
}

// SetDataset registers the dataset returned for queryset name.
func (e *FakeEngine) SetDataset(name string, ds *dataset.Dataset) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.datasets[name] = ds
}

// SetDefinitionDataset registers the dataset returned while q's exact
// definition is the one published under its name. It takes precedence over
// SetDataset, which lets two definitions share a name the way the engine
// replaces a definition on republish.
func (e *FakeEngine) SetDefinitionDataset(q *queryset.Queryset, ds *dataset.Dataset) {
	h := queryset.MustHash(q)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.byHash[h] = ds
}

// FailPublish makes publishing queryset name return err.
func (e *FakeEngine) FailPublish(name string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.publishErr[name] = err
}

// FailFetch makes fetching queryset name return err.
func (e *FakeEngine) FailFetch(name string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fetchErr[name] = err
}

// Calls returns every call received, in order.
func (e *FakeEngine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.calls))
	copy(out, e.calls)
	return out
}

// Published returns the last definition published under name.
func (e *FakeEngine) Published(name string) (*queryset.Queryset, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	q, ok := e.published[name]
	return q, ok
}

// Publish implements engine.Engine.
func (e *FakeEngine) Publish(ctx context.Context, q *queryset.Queryset) (engine.Published, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Seq: e.clock.Next(), Op: OpPublish, Queryset: q.Name})
	if err := e.publishErr[q.Name]; err != nil {
		return nil, err
	}
	e.published[q.Name] = q
	return &fakePublished{engine: e, name: q.Name}, nil
}

func (e *FakeEngine) fetch(ctx context.Context, name string) (*dataset.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	ds := e.datasets[name]
	if q, ok := e.published[name]; ok {
		if h, err := queryset.Hash(q); err == nil && e.byHash[h] != nil {
			ds = e.byHash[h]
		}
	}
	e.calls = append(e.calls, Call{Seq: e.clock.Next(), Op: OpFetch, Queryset: name, Dataset: ds})
	if err := e.fetchErr[name]; err != nil {
		return nil, err
	}
	if _, ok := e.published[name]; !ok || ds == nil {
		return nil, &engine.HTTPError{
			Op:         OpFetch,
			Method:     http.MethodGet,
			URL:        fmt.Sprintf("fake:///data/%s", name),
			StatusCode: http.StatusNotFound,
		}
	}
	return ds, nil
}

type fakePublished struct {
	engine *FakeEngine
	name   string
}

func (p *fakePublished) Name() string { return p.name }

func (p *fakePublished) Fetch(ctx context.Context) (*dataset.Dataset, error) {
	return p.engine.fetch(ctx, p.name)
}
