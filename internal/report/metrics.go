package report

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/TFIssues/internal/core"
)

// Metrics collects run counters on a private registry and writes them in the
// node-exporter textfile format. A nil *Metrics ignores every call.
type Metrics struct {
	registry *prometheus.Registry

	rows        *prometheus.CounterVec
	verdicts    *prometheus.CounterVec
	files       *prometheus.CounterVec
	rowsFailed  prometheus.Counter
	duration    *prometheus.GaugeVec
	lastSuccess prometheus.Gauge
}

// NewMetrics registers the run collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tfissues",
			Name:      "rows_total",
			Help:      "Rows written per output category.",
		}, []string{"category"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tfissues",
			Name:      "verdicts_total",
			Help:      "Backing-store check outcomes of classified rows.",
		}, []string{"check", "verdict"}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tfissues",
			Name:      "files_total",
			Help:      "Input files processed, by outcome.",
		}, []string{"mode", "outcome"}),
		rowsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tfissues",
			Name:      "rows_failed_total",
			Help:      "Rows dropped because classification failed.",
		}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tfissues",
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run per mode.",
		}, []string{"mode"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tfissues",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
	m.registry.MustRegister(m.rows, m.verdicts, m.files, m.rowsFailed, m.duration, m.lastSuccess)
	return m
}

// Registry exposes the collectors, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveSections counts rows per category and, for classified rows, the
// verdicts of both checks.
func (m *Metrics) ObserveSections(sections []core.Section) {
	if m == nil {
		return
	}
	for _, s := range sections {
		m.rows.WithLabelValues(string(s.Category)).Add(float64(len(s.Rows)))
		for _, r := range s.Rows {
			if r.Comment == "" {
				continue
			}
			m.verdicts.WithLabelValues("rule_match", r.InputToStore.String()).Inc()
			if s.Category == core.CategoryOT {
				m.verdicts.WithLabelValues("candidate_presence", r.CandidatesPresent.String()).Inc()
			}
		}
	}
}

// ObserveRun records file outcomes, failed rows and duration of one mode.
func (m *Metrics) ObserveRun(mode string, files, filesFailed, rowsFailed int, seconds float64) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(mode, "ok").Add(float64(files - filesFailed))
	m.files.WithLabelValues(mode, "failed").Add(float64(filesFailed))
	m.rowsFailed.Add(float64(rowsFailed))
	m.duration.WithLabelValues(mode).Set(seconds)
	m.lastSuccess.SetToCurrentTime()
}

// WriteTextfile writes every metric to path atomically. An empty path or a
// nil receiver does nothing.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "write metrics to %s", path)
	}
	return nil
}
