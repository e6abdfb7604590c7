// Package metrics counts generation-loop events on a private Prometheus
// registry and writes them as a node_exporter textfile after each run.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"utgen/cli/internal/collector"
	"utgen/cli/internal/coverage"
)

// TextfileName is written in the state directory.
const TextfileName = "metrics.prom"

const namespace = "utgen"

// Recorder implements engine.Observer. Safe for concurrent use.
type Recorder struct {
	reg         *prometheus.Registry
	prompts     *prometheus.CounterVec
	candidates  prometheus.Counter
	attempts    *prometheus.CounterVec
	functions   *prometheus.CounterVec
	coveragePct *prometheus.GaugeVec
	duration    prometheus.Gauge
	lastRun     prometheus.Gauge
}

// NewRecorder returns a Recorder with its own registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		prompts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompts_total",
			Help:      "Prompts sent to the completion provider.",
		}, []string{"kind"}),
		candidates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Candidate completions received.",
		}),
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "test_attempts_total",
			Help:      "Candidate tests validated, by outcome.",
		}, []string{"outcome"}),
		functions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "functions_total",
			Help:      "Functions searched, by result.",
		}, []string{"result"}),
		coveragePct: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coverage_percent",
			Help:      "Aggregated coverage of the last run, by metric.",
		}, []string{"metric"}),
		duration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
}

// ObservePrompt counts one issued prompt and its candidates.
func (r *Recorder) ObservePrompt(refinement bool, candidates int) {
	kind := "initial"
	if refinement {
		kind = "refinement"
	}
	r.prompts.WithLabelValues(kind).Inc()
	r.candidates.Add(float64(candidates))
}

// ObserveAttempt counts one validated candidate.
func (r *Recorder) ObserveAttempt(status collector.Status) {
	outcome := "failed"
	if status == collector.StatusPassed {
		outcome = "passed"
	}
	r.attempts.WithLabelValues(outcome).Inc()
}

// ObserveFunction counts one finished function search.
func (r *Recorder) ObserveFunction(passed bool) {
	result := "failed"
	if passed {
		result = "passed"
	}
	r.functions.WithLabelValues(result).Inc()
}

// ObserveRun sets the run-level gauges.
func (r *Recorder) ObserveRun(total coverage.Summary, took time.Duration, finished time.Time) {
	r.coveragePct.WithLabelValues("statements").Set(total.Statements.Pct)
	r.coveragePct.WithLabelValues("branches").Set(total.Branches.Pct)
	r.coveragePct.WithLabelValues("functions").Set(total.Functions.Pct)
	r.coveragePct.WithLabelValues("lines").Set(total.Lines.Pct)
	r.duration.Set(took.Seconds())
	r.lastRun.Set(float64(finished.Unix()))
}

// Registry exposes the registry for tests and custom exporters.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// WriteTextfile writes all metrics to <dir>/metrics.prom atomically.
func (r *Recorder) WriteTextfile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create metrics dir: %w", err)
	}
	path := filepath.Join(dir, TextfileName)
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return "", fmt.Errorf("write metrics: %w", err)
	}
	return path, nil
}
