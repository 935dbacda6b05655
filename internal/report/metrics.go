package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsReporter counts outcomes in a private registry and, on Close,
// writes them in the node_exporter textfile format.
type MetricsReporter struct {
	path     string
	registry *prometheus.Registry

	files    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetricsReporter creates the collectors. path may be empty to only
// count in memory.
func NewMetricsReporter(path string) *MetricsReporter {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &MetricsReporter{
		path:     path,
		registry: reg,
		files: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hz432_files_total",
			Help: "Files processed, by outcome.",
		}, []string{"outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hz432_file_duration_seconds",
			Help:    "Wall time spent per file, by outcome.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),
	}
}

// Registry exposes the collectors for tests and custom exporters.
func (m *MetricsReporter) Registry() *prometheus.Registry { return m.registry }

func (m *MetricsReporter) Report(e Event) {
	label := e.Kind.String()
	m.files.WithLabelValues(label).Inc()
	m.duration.WithLabelValues(label).Observe(e.Outcome.Duration.Seconds())
}

func (m *MetricsReporter) Close() error {
	if m.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(m.path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
