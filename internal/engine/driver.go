package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/buildpipe/internal/artifact"
	"git.home.luguber.info/inful/buildpipe/internal/env"
	"git.home.luguber.info/inful/buildpipe/internal/logfields"
	"git.home.luguber.info/inful/buildpipe/internal/metrics"
	"git.home.luguber.info/inful/buildpipe/internal/result"
	"git.home.luguber.info/inful/buildpipe/internal/runstore"
	"git.home.luguber.info/inful/buildpipe/internal/step"
)

// runState tracks the driver's lifecycle for one run.
type runState string

const (
	statePending    runState = "pending"
	stateRunning    runState = "running"
	stateFinalizing runState = "finalizing"
	stateTerminal   runState = "terminal"
)

// runLocks serializes concurrent runs per pipeline identity when the
// definition asks for it. Process-wide: two Runners for the same pipeline
// name share a lock.
var runLocks sync.Map // string -> *sync.Mutex

func lockFor(pipeline string) *sync.Mutex {
	mu, _ := runLocks.LoadOrStore(pipeline, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Runner drives a compiled pipeline through one or more runs.
type Runner struct {
	pipeline   *Pipeline
	store      *runstore.Store
	artifacts  *artifact.Collector
	gate       *step.GateClient
	publisher  step.RunPublisher
	rec        metrics.Recorder
	executor   *Executor
	dispatcher *Dispatcher

	// fallback build counter when no store is configured
	counter atomic.Int64
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStore persists runs and events and enables changed-from-previous hooks.
func WithStore(s *runstore.Store) RunnerOption { return func(r *Runner) { r.store = s } }

// WithArtifacts wires the artifact collector used by archive steps.
func WithArtifacts(c *artifact.Collector) RunnerOption { return func(r *Runner) { r.artifacts = c } }

// WithGate wires the quality-gate client used by qualityGate steps.
func WithGate(g *step.GateClient) RunnerOption { return func(r *Runner) { r.gate = g } }

// WithPublisher wires the event publisher used by publish steps.
func WithPublisher(p step.RunPublisher) RunnerOption { return func(r *Runner) { r.publisher = p } }

// WithMetrics wires a metrics recorder.
func WithMetrics(rec metrics.Recorder) RunnerOption { return func(r *Runner) { r.rec = rec } }

// NewRunner creates a runner for a compiled pipeline.
func NewRunner(p *Pipeline, opts ...RunnerOption) *Runner {
	r := &Runner{pipeline: p, rec: metrics.NoopRecorder{}}
	for _, opt := range opts {
		opt(r)
	}
	r.executor = NewExecutor(r.rec)
	r.dispatcher = NewDispatcher(r.rec)
	return r
}

// Options returns the compiled pipeline-global options.
func (r *Runner) Options() Options { return r.pipeline.Options }

// RunReport is the driver's terminal report for one run.
type RunReport struct {
	Pipeline    string
	RunID       string
	BuildNumber int64
	Result      result.Outcome
	Cause       string
	Stages      []StageReport
	Started     time.Time
	Finished    time.Time
}

// ExitCode maps the report onto the process exit code per pipeline options.
func (rep *RunReport) ExitCode(opts Options) int {
	return result.ExitCode(rep.Result, opts.UnstableExitCode)
}

// Run executes the pipeline once. Stage and hook failures never surface as
// an error; they are folded into the report's result. The returned error is
// reserved for infrastructure failures before any stage executed (run ledger
// unavailable).
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	if r.pipeline.Options.DisableConcurrentRuns {
		mu := lockFor(r.pipeline.Name)
		mu.Lock()
		defer mu.Unlock()
	}

	state := statePending
	rep := &RunReport{
		Pipeline: r.pipeline.Name,
		RunID:    uuid.NewString(),
		Started:  time.Now(),
	}

	var err error
	rep.BuildNumber, err = r.beginRun(ctx, rep)
	if err != nil {
		return nil, err
	}

	runCtx := ctx
	if r.pipeline.Options.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.pipeline.Options.Timeout)
		defer cancel()
	}

	state = stateRunning
	slog.Info("Run started",
		logfields.Pipeline(rep.Pipeline),
		logfields.RunID(rep.RunID),
		logfields.BuildNumber(rep.BuildNumber))

	agg := result.NewAggregator()
	rc := &step.RunContext{
		Pipeline:    r.pipeline.Name,
		RunID:       rep.RunID,
		BuildNumber: rep.BuildNumber,
		Env:         env.New(r.pipeline.Env),
		Results:     agg,
		Artifacts:   r.artifacts,
		KeepLast:    r.pipeline.Options.KeepLast,
		Gate:        r.gate,
		Publisher:   r.publisher,
	}

	cause := ""
	for _, st := range r.pipeline.Stages {
		if runCtx.Err() != nil {
			agg.Record(result.Aborted)
			if cause == "" {
				cause = "run cancelled"
			}
			break
		}

		stageRep := r.executor.Run(runCtx, st, rc)
		rep.Stages = append(rep.Stages, stageRep)
		if stageRep.Outcome == result.Skipped {
			continue
		}
		agg.Record(stageRep.Outcome)
		r.appendStageEvent(rep.RunID, stageRep)

		if stageRep.Outcome.Worse(result.Unstable) && !st.ContinueOnError {
			// Remaining stages are never attempted; that is distinct from
			// skipped, so nothing is recorded for them.
			cause = fmt.Sprintf("stage %s %s: %s", stageRep.Stage, stageRep.Outcome, stageRep.Cause)
			break
		}
		if cause == "" && stageRep.Outcome != result.Success {
			cause = fmt.Sprintf("stage %s %s: %s", stageRep.Stage, stageRep.Outcome, stageRep.Cause)
		}
	}

	state = stateFinalizing
	slog.Debug("Run finalizing", logfields.RunID(rep.RunID))

	rep.Result = agg.Final()
	rep.Cause = r.finalCause(rep.Result, cause)

	previous, prevKnown := r.previousResult(rep)
	// Hooks run under a context that survives cancellation so cleanup
	// happens even for aborted runs.
	r.dispatcher.Dispatch(context.WithoutCancel(ctx), rep.Result, previous, prevKnown, r.pipeline.Post, rc)

	state = stateTerminal
	rep.Finished = time.Now()
	r.finishRun(rep)

	r.rec.ObserveRunDuration(rep.Finished.Sub(rep.Started))
	r.rec.IncRunResult(rep.Result.String())
	slog.Info("Run finished",
		logfields.Pipeline(rep.Pipeline),
		logfields.RunID(rep.RunID),
		logfields.BuildNumber(rep.BuildNumber),
		logfields.Result(rep.Result.String()),
		slog.String("cause", rep.Cause),
		slog.String("state", string(state)))
	return rep, nil
}

func (r *Runner) beginRun(ctx context.Context, rep *RunReport) (int64, error) {
	if r.store == nil {
		return r.counter.Add(1), nil
	}
	n, err := r.store.BeginRun(ctx, rep.RunID, rep.Pipeline, rep.Started)
	if err != nil {
		return 0, fmt.Errorf("begin run: %w", err)
	}
	return n, nil
}

func (r *Runner) previousResult(rep *RunReport) (result.Outcome, bool) {
	if r.store == nil {
		return result.Success, false
	}
	prev, err := r.store.LastResult(context.Background(), rep.Pipeline, rep.RunID)
	if errors.Is(err, runstore.ErrNoRuns) {
		return result.Success, false
	}
	if err != nil {
		slog.Warn("Could not load previous result", logfields.Error(err))
		return result.Success, false
	}
	return prev, true
}

func (r *Runner) appendStageEvent(runID string, stageRep StageReport) {
	if r.store == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"stage":       stageRep.Stage,
		"outcome":     stageRep.Outcome.String(),
		"cause":       stageRep.Cause,
		"attempts":    stageRep.Attempts,
		"duration_ms": stageRep.Duration.Milliseconds(),
	})
	if err := r.store.AppendEvent(context.Background(), runID, "stage.finished", payload); err != nil {
		slog.Warn("Could not append stage event", logfields.Error(err))
	}
}

func (r *Runner) finishRun(rep *RunReport) {
	if r.store == nil {
		return
	}
	if err := r.store.FinishRun(context.Background(), rep.RunID, rep.Result, rep.Cause, rep.Finished); err != nil {
		slog.Warn("Could not persist run result", logfields.Error(err))
	}
}

// finalCause derives the human-readable cause when no stage supplied one
// (e.g. the quality gate recorded directly into the aggregator).
func (r *Runner) finalCause(final result.Outcome, cause string) string {
	if final == result.Success {
		return "completed successfully"
	}
	if cause != "" {
		return cause
	}
	return fmt.Sprintf("run %s", final)
}
