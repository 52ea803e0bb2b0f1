// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics records search-run counters in a private Prometheus
// registry. A CLI run has no scrape endpoint, so the registry is written in
// the node-exporter textfile format after the run.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RunMetrics counts IDs and articles per project. It implements the
// ingest Recorder.
type RunMetrics struct {
	registry *prometheus.Registry

	// Runs counts completed search runs.
	Runs *prometheus.CounterVec

	// Found counts IDs returned by search.
	Found *prometheus.CounterVec

	// New counts IDs not previously linked to the project.
	New *prometheus.CounterVec

	// Fetched counts articles parsed from fetch responses.
	Fetched *prometheus.CounterVec

	// Stored counts articles written to both stores.
	Stored *prometheus.CounterVec

	// LastRun holds the Unix time of the project's last run.
	LastRun *prometheus.GaugeVec
}

// New creates and registers the run metrics.
func New() *RunMetrics {
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pms",
			Name:      name,
			Help:      help,
		}, []string{"project"})
	}

	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		Runs:     counter("search_runs_total", "Completed search runs."),
		Found:    counter("search_found_total", "PMIDs returned by search."),
		New:      counter("search_new_total", "PMIDs not yet linked to the project."),
		Fetched:  counter("articles_fetched_total", "Articles parsed from fetch responses."),
		Stored:   counter("articles_stored_total", "Articles written to the project."),
		LastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pms",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed search run.",
		}, []string{"project"}),
	}
	m.registry.MustRegister(m.Runs, m.Found, m.New, m.Fetched, m.Stored, m.LastRun)
	return m
}

// RecordRun adds one run's counts.
func (m *RunMetrics) RecordRun(projectID string, found, newIDs, fetched, stored int, at time.Time) {
	m.Runs.WithLabelValues(projectID).Inc()
	m.Found.WithLabelValues(projectID).Add(float64(found))
	m.New.WithLabelValues(projectID).Add(float64(newIDs))
	m.Fetched.WithLabelValues(projectID).Add(float64(fetched))
	m.Stored.WithLabelValues(projectID).Add(float64(stored))
	m.LastRun.WithLabelValues(projectID).Set(float64(at.Unix()))
}

// WriteTextfile writes the registry to path in the Prometheus text format.
// The write is atomic.
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
