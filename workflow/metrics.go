package workflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects pipeline execution metrics, all namespaced
// "paperflow_":
//
//   - stage_latency_ms (histogram): per-stage duration. Labels: stage, status.
//   - runs_total (counter): completed runs. Labels: status (success/error).
//   - iterations_total (counter): search iterations executed.
//   - checkpoint_decisions_total (counter): decider verdicts. Labels: kind, action.
//   - inflight_runs (gauge): runs currently executing.
//
// Register against a private registry in tests; the default registerer
// otherwise. All methods are nil-safe so the engine can carry a nil
// *PrometheusMetrics when metrics are disabled.
type PrometheusMetrics struct {
	stageLatency        *prometheus.HistogramVec
	runs                *prometheus.CounterVec
	iterations          prometheus.Counter
	checkpointDecisions *prometheus.CounterVec
	inflightRuns        prometheus.Gauge
}

// NewPrometheusMetrics creates and registers the pipeline metrics with
// registry. A nil registry uses the default registerer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		stageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "paperflow",
			Name:      "stage_latency_ms",
			Help:      "Pipeline stage duration in milliseconds.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000},
		}, []string{"stage", "status"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paperflow",
			Name:      "runs_total",
			Help:      "Completed pipeline runs by outcome.",
		}, []string{"status"}),
		iterations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "paperflow",
			Name:      "iterations_total",
			Help:      "Search iterations executed across all runs.",
		}),
		checkpointDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paperflow",
			Name:      "checkpoint_decisions_total",
			Help:      "Decider verdicts by checkpoint kind and action.",
		}, []string{"kind", "action"}),
		inflightRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "paperflow",
			Name:      "inflight_runs",
			Help:      "Pipeline runs currently executing.",
		}),
	}
}

func (m *PrometheusMetrics) observeStage(stage, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageLatency.WithLabelValues(stage, status).Observe(float64(d.Milliseconds()))
}

func (m *PrometheusMetrics) runStarted() {
	if m == nil {
		return
	}
	m.inflightRuns.Inc()
}

func (m *PrometheusMetrics) runFinished(status string) {
	if m == nil {
		return
	}
	m.inflightRuns.Dec()
	m.runs.WithLabelValues(status).Inc()
}

func (m *PrometheusMetrics) iterationDone() {
	if m == nil {
		return
	}
	m.iterations.Inc()
}

func (m *PrometheusMetrics) decisionMade(kind Kind, action Action) {
	if m == nil {
		return
	}
	m.checkpointDecisions.WithLabelValues(string(kind), string(action)).Inc()
}
