package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prio-data/queries-benchmark/internal/dataset"
	"github.com/prio-data/queries-benchmark/internal/queryset"
)

// DatasetMediaType is the content type of a dataset stream.
const DatasetMediaType = "application/x-ndjson"

// DefaultPollInterval is how long Fetch waits before asking again for a
// dataset that is still being materialized.
const DefaultPollInterval = 2 * time.Second

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock

	// BaseURL is the engine's root, e.g. "http://localhost:4000".
	BaseURL string

	// HTTPClient defaults to a client with Timeout.
	HTTPClient *http.Client

	// Timeout bounds a single request when HTTPClient is nil. Zero means
	// no limit; grid-month datasets take a long time to stream.
	Timeout time.Duration

	PollInterval time.Duration
	UserAgent    string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.BaseURL == "" {
		return errors.New("base url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base url %q: scheme must be http or https", cfg.BaseURL)
	}
	if cfg.PollInterval < 0 {
		return errors.New("poll interval must not be negative")
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "queries-benchmark"
	}
	return nil
}

// Client talks to the engine over HTTP.
//
//	PUT {base}/querysets/{name}   canonical queryset JSON
//	GET {base}/data/{name}        dataset stream, 202 while materializing
//
// Failures are returned as they occur. The client never retries a request.
type Client struct {
	log  *slog.Logger
	cfg  Config
	base *url.URL
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		log:  cfg.Logger,
		cfg:  cfg,
		base: base,
	}, nil
}

// Publish validates q and commits its canonical definition.
func (c *Client) Publish(ctx context.Context, q *queryset.Queryset) (Published, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	body, err := queryset.MarshalCanonical(q)
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, c.base.JoinPath("querysets", q.Name), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", q.Name, err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return &published{client: c, name: q.Name}, nil
	default:
		return nil, newHTTPError("publish", resp)
	}
}

// Fetch materializes the dataset of an already published queryset.
func (c *Client) Fetch(ctx context.Context, name string) (*dataset.Dataset, error) {
	u := c.base.JoinPath("data", name)

	for attempt := 1; ; attempt++ {
		req, err := c.newRequest(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("fetch: %w", err)
		}
		req.Header.Set("Accept", DatasetMediaType)

		resp, err := c.do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", name, err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			start := c.cfg.Clock.Now()
			ds, err := dataset.Decode(resp.Body)
			drain(resp)
			if err != nil {
				return nil, fmt.Errorf("fetch %s: %w", name, err)
			}
			c.log.Debug("engine: dataset received", "queryset", name, "rows", ds.Len(), "columns", len(ds.Columns()), "decode", c.cfg.Clock.Since(start))
			return ds, nil

		case http.StatusAccepted:
			drain(resp)
			c.log.Debug("engine: dataset not ready", "queryset", name, "attempt", attempt, "retry_in", c.cfg.PollInterval)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch %s: waiting for dataset: %w", name, ctx.Err())
			case <-c.cfg.Clock.After(c.cfg.PollInterval):
			}

		default:
			herr := newHTTPError("fetch", resp)
			drain(resp)
			return nil, herr
		}
	}
}

func (c *Client) newRequest(ctx context.Context, method string, u *url.URL, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := c.cfg.Clock.Now()
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		c.log.Debug("engine: request failed", "method", req.Method, "url", req.URL.String(), "error", err, "duration", c.cfg.Clock.Since(start))
		return nil, err
	}
	c.log.Debug("engine: request", "method", req.Method, "url", req.URL.String(), "status", resp.StatusCode, "duration", c.cfg.Clock.Since(start))
	return resp, nil
}

// drain discards the rest of the body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

type published struct {
	client *Client
	name   string
}

func (p *published) Name() string { return p.name }

func (p *published) Fetch(ctx context.Context) (*dataset.Dataset, error) {
	return p.client.Fetch(ctx, p.name)
}
