// Package metrics records scrape run outcomes. Runs are short lived, so the
// Prometheus collector is meant to be dumped to a node_exporter textfile at
// exit rather than scraped.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector receives run events.
type Collector interface {
	RecordLogin()
	// RecordRecovered counts an error the run worked around, such as an
	// unreadable stored session.
	RecordRecovered(kind string)
	RecordSuccess(duration time.Duration, transactions int, at time.Time)
	RecordFailure(kind string, duration time.Duration)
}

// NoOpCollector is used when no metrics file is requested.
type NoOpCollector struct{}

func (NoOpCollector) RecordLogin() {}

func (NoOpCollector) RecordRecovered(string) {}

func (NoOpCollector) RecordSuccess(time.Duration, int, time.Time) {}

func (NoOpCollector) RecordFailure(string, time.Duration) {}

// PrometheusCollector keeps run metrics on its own registry so a textfile
// holds nothing but this run.
type PrometheusCollector struct {
	registry *prometheus.Registry

	duration     *prometheus.HistogramVec
	transactions prometheus.Gauge
	logins       prometheus.Counter
	lastSuccess  prometheus.Gauge
	failures     *prometheus.CounterVec
	recovered    *prometheus.CounterVec
}

// NewPrometheusCollector creates the run metrics on a private registry.
func NewPrometheusCollector(namespace string) (*PrometheusCollector, error) {
	pc := &PrometheusCollector{
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scrape_duration_seconds",
				Help:      "Wall time of a scrape run by outcome",
				Buckets:   []float64{5, 10, 20, 30, 60, 120, 300},
			},
			[]string{"outcome"},
		),
		transactions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transactions",
			Help:      "Transactions extracted by the last successful run",
		}),
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Credential submissions, zero when the stored session was valid",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failures_total",
				Help:      "Failed runs by error kind",
			},
			[]string{"kind"},
		),
		recovered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recovered_errors_total",
				Help:      "Non-fatal errors by kind",
			},
			[]string{"kind"},
		),
	}

	for _, c := range []prometheus.Collector{pc.duration, pc.transactions, pc.logins, pc.lastSuccess, pc.failures, pc.recovered} {
		if err := pc.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return pc, nil
}

func (pc *PrometheusCollector) RecordLogin() {
	pc.logins.Inc()
}

func (pc *PrometheusCollector) RecordRecovered(kind string) {
	pc.recovered.WithLabelValues(kind).Inc()
}

func (pc *PrometheusCollector) RecordSuccess(duration time.Duration, transactions int, at time.Time) {
	pc.duration.WithLabelValues("success").Observe(duration.Seconds())
	pc.transactions.Set(float64(transactions))
	pc.lastSuccess.Set(float64(at.Unix()))
}

// RecordFailure counts a failed run under its error kind.
func (pc *PrometheusCollector) RecordFailure(kind string, duration time.Duration) {
	pc.duration.WithLabelValues("failure").Observe(duration.Seconds())
	pc.failures.WithLabelValues(kind).Inc()
}

// Registry exposes the underlying registry, mostly for tests.
func (pc *PrometheusCollector) Registry() *prometheus.Registry {
	return pc.registry
}

// WriteTextfile atomically writes every metric in the text exposition format.
func (pc *PrometheusCollector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, pc.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
