// Package metrics records crawl outcomes in a Prometheus registry. Crawls
// are short-lived, so the registry is written to a node_exporter textfile
// instead of being scraped.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ibeckermayer/commentcrawl/internal/types"
)

const namespace = "commentcrawl"

// Metrics holds the crawl collectors
type Metrics struct {
	registry *prometheus.Registry

	runs       *prometheus.CounterVec
	comments   *prometheus.GaugeVec
	expansion  *prometheus.GaugeVec
	duration   prometheus.Histogram
	lastRunUTC prometheus.Gauge
}

// New registers the collectors in a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Crawl runs by outcome.",
		}, []string{"outcome"}),
		comments: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "comments",
			Help:      "Comments extracted by the last run.",
		}, []string{"kind"}),
		expansion: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "expansion",
			Help:      "Expansion loop counters of the last run.",
		}, []string{"counter"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of crawl runs.",
			Buckets:   []float64{30, 60, 120, 180, 300, 450, 600},
		}),
		lastRunUTC: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}

	m.registry.MustRegister(m.runs, m.comments, m.expansion, m.duration, m.lastRunUTC)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Outcome labels a run for runs_total
func Outcome(c *types.Crawl) string {
	switch {
	case c.Error == "":
		return "ok"
	case len(c.Comments) > 0:
		return "partial"
	default:
		return "failed"
	}
}

// ObserveCrawl records one finished run
func (m *Metrics) ObserveCrawl(c *types.Crawl) {
	m.runs.WithLabelValues(Outcome(c)).Inc()

	m.comments.WithLabelValues("root").Set(float64(c.Roots()))
	m.comments.WithLabelValues("reply").Set(float64(c.Replies()))
	m.comments.WithLabelValues("visited").Set(float64(c.Visited))

	m.expansion.WithLabelValues("attempts").Set(float64(c.Expansion.Attempts))
	m.expansion.WithLabelValues("idle_rounds").Set(float64(c.Expansion.IdleRounds))
	m.expansion.WithLabelValues("clicks").Set(float64(c.Expansion.Clicks))

	if !c.FinishedAt.IsZero() {
		m.duration.Observe(c.FinishedAt.Sub(c.StartedAt).Seconds())
		m.lastRunUTC.Set(float64(c.FinishedAt.Unix()))
	}
}

// ObserveLaunchFailure records a run that never got a browser
func (m *Metrics) ObserveLaunchFailure() {
	m.runs.WithLabelValues("failed").Inc()
}

// WriteTextfile writes the registry in the text exposition format
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
