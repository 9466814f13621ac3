package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/buildpipe/internal/config"
	"git.home.luguber.info/inful/buildpipe/internal/logfields"
	"git.home.luguber.info/inful/buildpipe/internal/metrics"
	"git.home.luguber.info/inful/buildpipe/internal/result"
	"git.home.luguber.info/inful/buildpipe/internal/step"
)

// Executor runs one stage: guard, scoped environment overlay, retried and
// time-bounded body, and local post-hooks. It never propagates a failure to
// the caller; everything ends up in the returned StageReport.
type Executor struct {
	rec metrics.Recorder
}

// NewExecutor creates an executor. A nil recorder gets the noop one.
func NewExecutor(rec metrics.Recorder) *Executor {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Executor{rec: rec}
}

// StageReport is the executor's result for one stage.
type StageReport struct {
	Stage    string
	Outcome  result.Outcome
	Cause    string
	Attempts int
	Duration time.Duration
}

// Run executes the stage against the run context's environment. A false
// guard returns Skipped with no side effects. On every other path the
// environment overlay is popped and the matching local post-hooks have run
// exactly once before Run returns.
func (e *Executor) Run(ctx context.Context, st *Stage, rc *step.RunContext) StageReport {
	rep := StageReport{Stage: st.Name, Outcome: result.Success}

	if !st.Guard.Eval(rc.Env.Get) {
		slog.Info("Stage skipped by guard", logfields.Stage(st.Name))
		rep.Outcome = result.Skipped
		return rep
	}

	start := time.Now()
	rc.Env.Push(st.Env)
	defer rc.Env.Pop()

	rep.Outcome, rep.Cause, rep.Attempts = e.runBody(ctx, st, rc)
	rep.Duration = time.Since(start)

	// Local hooks run on every non-skipped exit path, exactly once, under a
	// context that survives run cancellation so cleanup still happens.
	e.runLocalHooks(context.WithoutCancel(ctx), st, rep.Outcome, rc)

	e.rec.ObserveStageDuration(st.Name, rep.Duration)
	e.rec.IncStageOutcome(st.Name, rep.Outcome.String())
	slog.Info("Stage finished",
		logfields.Stage(st.Name),
		logfields.Outcome(rep.Outcome.String()),
		logfields.Attempt(rep.Attempts),
		logfields.DurationMS(float64(rep.Duration.Milliseconds())))
	return rep
}

// runBody executes the attempt loop under the stage's retry and timeout
// policies and converts every failure mode into an outcome.
func (e *Executor) runBody(ctx context.Context, st *Stage, rc *step.RunContext) (result.Outcome, string, int) {
	stageCtx := ctx
	if st.Timeout != nil {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, st.Timeout.Duration)
		defer cancel()
	}

	type bodyResult struct {
		err      error
		attempts int
	}
	done := make(chan bodyResult, 1)
	go func() {
		attempts := 0
		err := st.Retry.Run(stageCtx, func(attempt int) error {
			attempts = attempt
			if attempt > 1 {
				e.rec.IncStageRetry(st.Name)
				slog.Warn("Retrying stage", logfields.Stage(st.Name), logfields.Attempt(attempt))
			}
			return e.runSteps(stageCtx, st, rc)
		})
		done <- bodyResult{err: err, attempts: attempts}
	}()

	select {
	case res := <-done:
		return e.classify(ctx, stageCtx, st, res.err, res.attempts)
	case <-stageCtx.Done():
		// The in-flight attempt was cancelled; ctx-aware steps unwind on
		// their own, and we do not wait for steps that ignore the context.
		if ctx.Err() != nil {
			return result.Aborted, "stage cancelled", 0
		}
		return timeoutOutcome(st), fmt.Sprintf("stage timed out after %s", st.Timeout.Duration), 0
	}
}

// classify maps the attempt loop's final error onto a stage outcome.
func (e *Executor) classify(ctx, stageCtx context.Context, st *Stage, err error, attempts int) (result.Outcome, string, int) {
	if err == nil {
		return result.Success, "", attempts
	}
	if st.Timeout != nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return timeoutOutcome(st), fmt.Sprintf("stage timed out after %s", st.Timeout.Duration), attempts
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return result.Aborted, "stage cancelled", attempts
	}
	if errors.Is(err, step.ErrAbortRun) {
		return result.Aborted, err.Error(), attempts
	}
	if st.Retry.MaxAttempts > 1 {
		e.rec.IncStageRetryExhausted(st.Name)
	}
	if st.ContinueOnError {
		return result.Unstable, err.Error(), attempts
	}
	return result.Failure, err.Error(), attempts
}

// runSteps runs the stage's steps in order; the first failure aborts the
// remaining steps of the attempt. A panic out of step code is captured as an
// attempt failure instead of unwinding past the executor.
func (e *Executor) runSteps(ctx context.Context, st *Stage, rc *step.RunContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step panicked: %v", r)
		}
	}()
	for _, s := range st.Steps {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if serr := s.Run(ctx, rc); serr != nil {
			return fmt.Errorf("step %s: %w", s.Kind(), serr)
		}
	}
	return nil
}

// runLocalHooks runs the stage's hooks whose class matches the outcome, plus
// always-hooks last. Action failures are logged and never alter the outcome.
func (e *Executor) runLocalHooks(ctx context.Context, st *Stage, outcome result.Outcome, rc *step.RunContext) {
	for _, h := range st.Post {
		if h.Class == config.HookAlways {
			continue
		}
		if hookMatchesOutcome(h.Class, outcome) {
			e.runHookActions(ctx, st.Name, h, rc)
		}
	}
	for _, h := range st.Post {
		if h.Class == config.HookAlways {
			e.runHookActions(ctx, st.Name, h, rc)
		}
	}
}

func (e *Executor) runHookActions(ctx context.Context, stageName string, h Hook, rc *step.RunContext) {
	for _, action := range h.Actions {
		runHookAction(ctx, e.rec, string(h.Class), action, rc,
			slog.String("stage", stageName))
	}
}

// runHookAction executes one hook action with full failure containment.
func runHookAction(ctx context.Context, rec metrics.Recorder, class string, action step.Step, rc *step.RunContext, attrs ...any) {
	defer func() {
		if r := recover(); r != nil {
			rec.IncHookFailure(class)
			slog.Error("Post hook panicked",
				append([]any{logfields.Hook(class), slog.Any("panic", r)}, attrs...)...)
		}
	}()
	if err := action.Run(ctx, rc); err != nil {
		rec.IncHookFailure(class)
		slog.Error("Post hook failed",
			append([]any{logfields.Hook(class), logfields.Error(err)}, attrs...)...)
	}
}

func hookMatchesOutcome(class config.HookClass, o result.Outcome) bool {
	switch class {
	case config.HookSuccess:
		return o == result.Success
	case config.HookUnstable:
		return o == result.Unstable
	case config.HookFailure:
		return o == result.Failure
	case config.HookAborted:
		return o == result.Aborted
	default:
		return false
	}
}

func timeoutOutcome(st *Stage) result.Outcome {
	switch st.Timeout.Action {
	case config.TimeoutMarkUnstable:
		return result.Unstable
	case config.TimeoutAbort:
		return result.Aborted
	default:
		return result.Failure
	}
}
