// Package engine executes a compiled pipeline: the stage executor, the
// post-condition dispatcher and the run driver live here. All run-scoped
// mutable state is confined to the environment context and the result
// aggregator; the compiled pipeline itself is immutable once built.
package engine

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/buildpipe/internal/config"
	"git.home.luguber.info/inful/buildpipe/internal/result"
	"git.home.luguber.info/inful/buildpipe/internal/retry"
	"git.home.luguber.info/inful/buildpipe/internal/step"
)

// Pipeline is the compiled, immutable form of a definition.
type Pipeline struct {
	Name    string
	Env     map[string]string
	Stages  []*Stage
	Post    []Hook
	Options Options
}

// Options are the compiled pipeline-global run options.
type Options struct {
	Timeout               time.Duration
	KeepLast              int
	DisableConcurrentRuns bool
	UnstableExitCode      int
}

// Stage is one compiled stage.
type Stage struct {
	Name            string
	Guard           *config.Guard
	Env             map[string]string
	Steps           []step.Step
	Retry           retry.Policy
	Timeout         *TimeoutPolicy
	ContinueOnError bool
	Post            []Hook
}

// TimeoutPolicy bounds a stage's cumulative wall time and names the outcome
// forced on expiry.
type TimeoutPolicy struct {
	Duration time.Duration
	Action   config.TimeoutAction
}

// Hook is a compiled post-condition registration: a predicate class and its
// actions.
type Hook struct {
	Class   config.HookClass
	Actions []step.Step
}

// hookOrder fixes the dispatch order for hook classes. The definition's YAML
// mapping has no inherent order; result-specific classes run first and always
// runs last, as the dispatcher requires.
var hookOrder = []config.HookClass{
	config.HookSuccess,
	config.HookUnstable,
	config.HookFailure,
	config.HookAborted,
	config.HookChanged,
	config.HookAlways,
}

// Build compiles a validated definition against a step registry. The only
// errors possible here are unregistered step kinds, reported as
// *config.FatalConfigError before any stage executes.
func Build(def *config.Definition, reg *step.Registry) (*Pipeline, error) {
	p := &Pipeline{
		Name: def.Pipeline,
		Env:  def.Env,
		Options: Options{
			KeepLast:              def.Options.KeepLast,
			DisableConcurrentRuns: def.Options.DisableConcurrentRuns,
			UnstableExitCode:      result.ExitUnstableDefault,
		},
	}
	if def.Options.Timeout != "" {
		p.Options.Timeout = mustDuration(def.Options.Timeout)
	}
	if def.Options.UnstableExitCode != nil {
		p.Options.UnstableExitCode = *def.Options.UnstableExitCode
	}

	for i := range def.Stages {
		st, err := buildStage(&def.Stages[i], reg)
		if err != nil {
			return nil, err
		}
		p.Stages = append(p.Stages, st)
	}

	post, err := buildHooks(fmt.Sprintf("pipeline %s post", def.Pipeline), def.Post, reg)
	if err != nil {
		return nil, err
	}
	p.Post = post
	return p, nil
}

func buildStage(sd *config.StageDef, reg *step.Registry) (*Stage, error) {
	st := &Stage{
		Name:            sd.Name,
		Env:             sd.Env,
		ContinueOnError: sd.ContinueOnError,
		Retry:           retry.DefaultPolicy(),
	}

	// Guard syntax was checked during validation.
	st.Guard, _ = config.ParseGuard(sd.When)

	if sd.Retry != nil {
		st.Retry = retry.NewPolicy(
			retry.NormalizeBackoff(sd.Retry.Backoff),
			parseDuration(sd.Retry.InitialDelay),
			parseDuration(sd.Retry.MaxDelay),
			sd.Retry.MaxAttempts,
		)
	}
	if sd.Timeout != nil {
		st.Timeout = &TimeoutPolicy{
			Duration: mustDuration(sd.Timeout.Duration),
			Action:   config.NormalizeTimeoutAction(sd.Timeout.Action),
		}
	}

	for _, stepDef := range sd.Steps {
		s, err := reg.Build(stepDef.Kind, stepDef.With)
		if err != nil {
			return nil, &config.FatalConfigError{Err: fmt.Errorf("stage %s: %w", sd.Name, err)}
		}
		st.Steps = append(st.Steps, s)
	}

	post, err := buildHooks(fmt.Sprintf("stage %s post", sd.Name), config.PostDef(sd.Post), reg)
	if err != nil {
		return nil, err
	}
	st.Post = post
	return st, nil
}

func buildHooks(where string, post config.PostDef, reg *step.Registry) ([]Hook, error) {
	var hooks []Hook
	for _, class := range hookOrder {
		defs, ok := post[string(class)]
		if !ok || len(defs) == 0 {
			continue
		}
		h := Hook{Class: class}
		for _, d := range defs {
			s, err := reg.Build(d.Kind, d.With)
			if err != nil {
				return nil, &config.FatalConfigError{Err: fmt.Errorf("%s %s: %w", where, class, err)}
			}
			h.Actions = append(h.Actions, s)
		}
		hooks = append(hooks, h)
	}
	return hooks, nil
}

// parseDuration is for optional fields: empty or invalid yields zero, which
// the retry policy constructor replaces with its default.
func parseDuration(raw string) time.Duration {
	d, _ := time.ParseDuration(raw)
	return d
}

// mustDuration is for fields validation already proved parseable.
func mustDuration(raw string) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		panic(fmt.Sprintf("engine: unvalidated duration %q: %v", raw, err))
	}
	return d
}
