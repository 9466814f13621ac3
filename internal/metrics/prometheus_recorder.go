package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	stageDuration    *prom.HistogramVec
	runDuration      prom.Histogram
	stageOutcomes    *prom.CounterVec
	runResults       *prom.CounterVec
	retries          *prom.CounterVec
	retriesExhausted *prom.CounterVec
	gateWait         *prom.HistogramVec
	hookFailures     *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "buildpipe",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "buildpipe",
			Name:      "run_duration_seconds",
			Help:      "Total pipeline run duration",
			Buckets:   prom.DefBuckets,
		})
		pr.stageOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "buildpipe",
			Name:      "stage_outcomes_total",
			Help:      "Stage outcome counts by stage and outcome",
		}, []string{"stage", "outcome"})
		pr.runResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "buildpipe",
			Name:      "run_results_total",
			Help:      "Run results by final aggregated outcome",
		}, []string{"result"})
		pr.retries = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "buildpipe",
			Name:      "stage_retries_total",
			Help:      "Total stage attempt retries",
		}, []string{"stage"})
		pr.retriesExhausted = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "buildpipe",
			Name:      "stage_retry_exhausted_total",
			Help:      "Count of stages where retries were exhausted",
		}, []string{"stage"})
		pr.gateWait = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "buildpipe",
			Name:      "quality_gate_wait_seconds",
			Help:      "Quality gate wait durations by verdict",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"status"})
		pr.hookFailures = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "buildpipe",
			Name:      "hook_failures_total",
			Help:      "Post-condition hook action failures by class",
		}, []string{"class"})
		reg.MustRegister(pr.stageDuration, pr.runDuration, pr.stageOutcomes, pr.runResults,
			pr.retries, pr.retriesExhausted, pr.gateWait, pr.hookFailures)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageOutcome(stage, outcome string) {
	if p == nil || p.stageOutcomes == nil {
		return
	}
	p.stageOutcomes.WithLabelValues(stage, outcome).Inc()
}

func (p *PrometheusRecorder) IncRunResult(result string) {
	if p == nil || p.runResults == nil {
		return
	}
	p.runResults.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) IncStageRetry(stage string) {
	if p == nil || p.retries == nil {
		return
	}
	p.retries.WithLabelValues(stage).Inc()
}

func (p *PrometheusRecorder) IncStageRetryExhausted(stage string) {
	if p == nil || p.retriesExhausted == nil {
		return
	}
	p.retriesExhausted.WithLabelValues(stage).Inc()
}

func (p *PrometheusRecorder) ObserveGateWait(status string, d time.Duration) {
	if p == nil || p.gateWait == nil {
		return
	}
	p.gateWait.WithLabelValues(status).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncHookFailure(class string) {
	if p == nil || p.hookFailures == nil {
		return
	}
	p.hookFailures.WithLabelValues(class).Inc()
}
