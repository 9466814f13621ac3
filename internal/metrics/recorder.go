package metrics

import "time"

// Recorder defines observability hooks for run and stage metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods
// must be safe on the NoopRecorder so injection stays optional.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncStageOutcome(stage, outcome string)
	IncRunResult(result string)
	IncStageRetry(stage string)
	IncStageRetryExhausted(stage string)
	ObserveGateWait(status string, d time.Duration)
	IncHookFailure(class string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncStageOutcome(string, string)             {}
func (NoopRecorder) IncRunResult(string)                        {}
func (NoopRecorder) IncStageRetry(string)                       {}
func (NoopRecorder) IncStageRetryExhausted(string)              {}
func (NoopRecorder) ObserveGateWait(string, time.Duration)      {}
func (NoopRecorder) IncHookFailure(string)                      {}
