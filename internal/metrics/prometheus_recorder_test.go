package metrics

import (
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorderCounters(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewPrometheusRecorder(reg)

	r.IncStageOutcome("build", "success")
	r.IncStageOutcome("build", "success")
	r.IncStageOutcome("test", "failure")
	r.IncRunResult("unstable")
	r.IncStageRetry("build")
	r.IncStageRetryExhausted("build")
	r.IncHookFailure("always")
	r.ObserveStageDuration("build", 2*time.Second)
	r.ObserveRunDuration(5 * time.Second)
	r.ObserveGateWait("TIMEOUT", 300*time.Second)

	expected := `
# HELP buildpipe_stage_outcomes_total Stage outcome counts by stage and outcome
# TYPE buildpipe_stage_outcomes_total counter
buildpipe_stage_outcomes_total{outcome="success",stage="build"} 2
buildpipe_stage_outcomes_total{outcome="failure",stage="test"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "buildpipe_stage_outcomes_total"))

	assert.Equal(t, float64(1), testutil.ToFloat64(r.runResults.WithLabelValues("unstable")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.retries.WithLabelValues("build")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.retriesExhausted.WithLabelValues("build")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.hookFailures.WithLabelValues("always")))
}

func TestNilRecorderSafe(t *testing.T) {
	var r *PrometheusRecorder
	r.IncStageOutcome("build", "success")
	r.ObserveRunDuration(time.Second)
	r.IncHookFailure("always")
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncStageOutcome("x", "success")
	r.ObserveGateWait("OK", time.Second)
}
