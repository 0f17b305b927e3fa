package engine

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prio-data/queries-benchmark/internal/dataset"
	"github.com/prio-data/queries-benchmark/internal/queryset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baselineStream = `{"index":["month_id","country_id"],"columns":["sb_count_cm","sb_acled_cm"]}
[501,60,27,333]
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func baseline() *queryset.Queryset {
	return queryset.New("mihai_simple_sys_up", queryset.CountryMonth).
		WithColumn(queryset.NewColumn("sb_count_cm", "ged2_cm", "ged_sb_best_count_nokgi")).
		WithColumn(queryset.NewColumn("sb_acled_cm", "acled2_cm", "acled_sb_count"))
}

func newTestClient(t *testing.T, srv *httptest.Server, clock clockwork.Clock) *Client {
	t.Helper()
	c, err := NewClient(Config{
		Logger:       discardLogger(),
		Clock:        clock,
		BaseURL:      srv.URL,
		HTTPClient:   srv.Client(),
		PollInterval: time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestConfig_Validate(t *testing.T) {
	t.Run("missing logger", func(t *testing.T) {
		cfg := Config{BaseURL: "http://localhost:4000"}
		assert.ErrorContains(t, cfg.Validate(), "logger is required")
	})

	t.Run("missing base url", func(t *testing.T) {
		cfg := Config{Logger: discardLogger()}
		assert.ErrorContains(t, cfg.Validate(), "base url is required")
	})

	t.Run("bad scheme", func(t *testing.T) {
		cfg := Config{Logger: discardLogger(), BaseURL: "ftp://engine"}
		assert.ErrorContains(t, cfg.Validate(), "scheme must be http or https")
	})

	t.Run("negative poll interval", func(t *testing.T) {
		cfg := Config{Logger: discardLogger(), BaseURL: "http://engine", PollInterval: -time.Second}
		assert.Error(t, cfg.Validate())
	})

	t.Run("defaults", func(t *testing.T) {
		cfg := Config{Logger: discardLogger(), BaseURL: "http://engine", Timeout: time.Minute}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
		assert.NotNil(t, cfg.Clock)
		assert.Equal(t, time.Minute, cfg.HTTPClient.Timeout)
		assert.Equal(t, "queries-benchmark", cfg.UserAgent)
	})
}

func TestClient_Publish(t *testing.T) {
	qs := baseline()
	want, err := queryset.MarshalCanonical(qs)
	require.NoError(t, err)

	var gotBody []byte
	var gotPath, gotMethod, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotType = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	pub, err := newTestClient(t, srv, nil).Publish(context.Background(), qs)
	require.NoError(t, err)

	assert.Equal(t, "mihai_simple_sys_up", pub.Name())
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/querysets/mihai_simple_sys_up", gotPath)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, string(want), string(gotBody))
}

func TestClient_Publish_InvalidQuerysetNeverSent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).Publish(context.Background(), queryset.New("empty", queryset.CountryMonth))
	require.Error(t, err)

	var verr *queryset.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Zero(t, hits.Load())
}

func TestClient_Publish_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown table ged2_cm", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).Publish(context.Background(), baseline())
	require.Error(t, err)

	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "publish", herr.Op)
	assert.Equal(t, http.StatusUnprocessableEntity, herr.StatusCode)
	assert.Equal(t, "unknown table ged2_cm", herr.Body)
	assert.Contains(t, err.Error(), "422 Unprocessable Entity")
	assert.False(t, IsNotFound(err))
}

func TestClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/data/mihai_simple_sys_up", r.URL.Path)
		assert.Equal(t, DatasetMediaType, r.Header.Get("Accept"))
		w.Header().Set("Content-Type", DatasetMediaType)
		io.WriteString(w, baselineStream)
	}))
	defer srv.Close()

	ds, err := newTestClient(t, srv, nil).Fetch(context.Background(), "mihai_simple_sys_up")
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())

	row, err := ds.Loc(501, 60)
	require.NoError(t, err)
	v, err := row.Value("sb_acled_cm")
	require.NoError(t, err)
	assert.Equal(t, 333.0, v)
}

func TestClient_PublishThenFetch(t *testing.T) {
	var published atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			published.Store(true)
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			if !published.Load() {
				http.NotFound(w, r)
				return
			}
			io.WriteString(w, baselineStream)
		}
	}))
	defer srv.Close()

	pub, err := newTestClient(t, srv, nil).Publish(context.Background(), baseline())
	require.NoError(t, err)

	ds, err := pub.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sb_count_cm", "sb_acled_cm"}, ds.Columns())
}

func TestClient_Fetch_PollsWhileMaterializing(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		io.WriteString(w, baselineStream)
	}))
	defer srv.Close()

	clock := clockwork.NewFakeClock()
	c := newTestClient(t, srv, clock)

	type result struct {
		ds  *dataset.Dataset
		err error
	}
	done := make(chan result, 1)
	go func() {
		ds, err := c.Fetch(context.Background(), "mihai_simple_sys_up")
		done <- result{ds, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for range 2 {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(time.Second)
	}

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, 1, r.ds.Len())
	case <-ctx.Done():
		t.Fatal("fetch did not finish")
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Fetch_CancelWhileWaiting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	clock := clockwork.NewFakeClock()
	c := newTestClient(t, srv, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctx, "slow")
		done <- err
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Contains(t, err.Error(), "waiting for dataset")
	case <-waitCtx.Done():
		t.Fatal("fetch did not return after cancel")
	}
}

func TestClient_Fetch_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).Fetch(context.Background(), "never_published")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "fetch", herr.Op)
	assert.Equal(t, http.MethodGet, herr.Method)
	assert.Contains(t, herr.URL, "/data/never_published")
}

func TestClient_Fetch_BadStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"index":["month_id"],"columns":[]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).Fetch(context.Background(), "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch broken")
	assert.Contains(t, err.Error(), "want 2 index levels")
}
