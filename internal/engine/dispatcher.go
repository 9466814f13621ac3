package engine

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/buildpipe/internal/config"
	"git.home.luguber.info/inful/buildpipe/internal/logfields"
	"git.home.luguber.info/inful/buildpipe/internal/metrics"
	"git.home.luguber.info/inful/buildpipe/internal/result"
	"git.home.luguber.info/inful/buildpipe/internal/step"
)

// Dispatcher runs pipeline-level post-condition hooks against the final
// aggregated result. Hooks are observers: their failures are caught, logged
// and counted, and never change the result or stop later hooks.
type Dispatcher struct {
	rec metrics.Recorder
}

// NewDispatcher creates a dispatcher. A nil recorder gets the noop one.
func NewDispatcher(rec metrics.Recorder) *Dispatcher {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Dispatcher{rec: rec}
}

// Dispatch evaluates each hook's predicate against final (and previous, for
// the changed class) and runs matching actions in registration order.
// Always-hooks run unconditionally after everything else, even when an
// earlier action failed. prevKnown is false when no prior run is recorded;
// a first run counts as changed.
func (d *Dispatcher) Dispatch(ctx context.Context, final result.Outcome, previous result.Outcome, prevKnown bool, hooks []Hook, rc *step.RunContext) {
	for _, h := range hooks {
		if h.Class == config.HookAlways {
			continue
		}
		if d.matches(h.Class, final, previous, prevKnown) {
			d.run(ctx, h, rc)
		}
	}
	for _, h := range hooks {
		if h.Class == config.HookAlways {
			d.run(ctx, h, rc)
		}
	}
}

func (d *Dispatcher) matches(class config.HookClass, final, previous result.Outcome, prevKnown bool) bool {
	if class == config.HookChanged {
		return !prevKnown || final != previous
	}
	return hookMatchesOutcome(class, final)
}

func (d *Dispatcher) run(ctx context.Context, h Hook, rc *step.RunContext) {
	slog.Debug("Dispatching post hooks", logfields.Hook(string(h.Class)))
	for _, action := range h.Actions {
		runHookAction(ctx, d.rec, string(h.Class), action, rc)
	}
}
