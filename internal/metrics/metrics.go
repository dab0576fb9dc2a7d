package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects pipeline counters on its own registry. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	registry      *prometheus.Registry
	stageOutcomes *prometheus.CounterVec
	providerFails *prometheus.CounterVec
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
}

// NewRecorder creates a recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketbrief",
			Name:      "stage_outcomes_total",
			Help:      "Stage completions by stage and payload status.",
		}, []string{"stage", "status"}),
		providerFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketbrief",
			Name:      "provider_failures_total",
			Help:      "Failed provider attempts by capability and provider.",
		}, []string{"capability", "provider"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketbrief",
			Name:      "runs_total",
			Help:      "Pipeline runs by final status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "marketbrief",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a pipeline run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}),
	}
	r.registry.MustRegister(r.stageOutcomes, r.providerFails, r.runs, r.runDuration)
	return r
}

// StageOutcome counts one stage completion.
func (r *Recorder) StageOutcome(stage, status string) {
	if r == nil {
		return
	}
	r.stageOutcomes.WithLabelValues(stage, status).Inc()
}

// ProviderFailed counts one failed provider attempt. Its signature matches
// fallback.Observer.
func (r *Recorder) ProviderFailed(capability, provider string, _ error) {
	if r == nil {
		return
	}
	r.providerFails.WithLabelValues(capability, provider).Inc()
}

// RunFinished records the final status and duration of a run.
func (r *Recorder) RunFinished(status string, seconds float64) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(status).Inc()
	r.runDuration.Observe(seconds)
}

// Registry exposes the underlying registry for tests and custom exporters.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
