// Package metrics exposes trial outcomes as Prometheus metrics.
//
// A benchmark run is a short-lived process, so metrics live on a private
// registry and are pushed to a Pushgateway when the run ends.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/prio-data/queries-benchmark/internal/harness"
)

const namespace = "queries_benchmark"

// Outcome label values.
const (
	OutcomePassed = "passed"
	OutcomeFailed = "failed"
)

// Metrics holds the collectors for one run.
type Metrics struct {
	reg *prometheus.Registry

	TrialsTotal   *prometheus.CounterVec
	TrialDuration *prometheus.HistogramVec
	DatasetRows   *prometheus.GaugeVec
}

// New registers the run collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		reg: reg,
		TrialsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trials_total",
				Help:      "Total number of trials by outcome",
			},
			[]string{"trial", "outcome"},
		),
		TrialDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "trial_duration_seconds",
				Help:      "Duration of trials from publish to check",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17 minutes
			},
			[]string{"trial"},
		),
		DatasetRows: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dataset_rows",
				Help:      "Row count of the last fetched dataset",
			},
			[]string{"trial"},
		),
	}
}

// ObserveTrial implements harness.Observer.
func (m *Metrics) ObserveTrial(_ context.Context, o harness.TrialOutcome) error {
	outcome := OutcomeFailed
	if o.Passed {
		outcome = OutcomePassed
	}
	m.TrialsTotal.WithLabelValues(o.Trial, outcome).Inc()
	m.TrialDuration.WithLabelValues(o.Trial).Observe(o.Duration.Seconds())
	if o.Fetched {
		m.DatasetRows.WithLabelValues(o.Trial).Set(float64(o.Rows))
	}
	return nil
}

// Push sends every collected metric to the Pushgateway at url, replacing
// the metrics previously pushed for job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

var _ harness.Observer = (*Metrics)(nil)
