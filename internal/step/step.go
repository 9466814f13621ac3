// Package step defines the opaque unit of stage work and the registry of
// builtin step kinds. The engine treats every step as a black box: it runs,
// and it either succeeds or returns an error.
package step

import (
	"context"
	"errors"
	"fmt"
	"time"

	"git.home.luguber.info/inful/buildpipe/internal/artifact"
	"git.home.luguber.info/inful/buildpipe/internal/env"
	"git.home.luguber.info/inful/buildpipe/internal/metrics"
	"git.home.luguber.info/inful/buildpipe/internal/qualitygate"
	"git.home.luguber.info/inful/buildpipe/internal/result"
)

// Step is one opaque step invocation within a stage.
type Step interface {
	// Kind returns the registered kind name, for logs.
	Kind() string
	// Run executes the step. A returned error fails the stage attempt.
	Run(ctx context.Context, rc *RunContext) error
}

// ErrAbortRun signals that the run must be treated as aborted rather than
// failed (quality gate abort-on-timeout, operator cancellation surfaced by a
// step). The executor maps it to an aborted outcome.
var ErrAbortRun = errors.New("run aborted")

// RunPublisher is the slice of the notifier a publish step needs.
type RunPublisher interface {
	PublishRun(ev RunEvent) error
}

// RunEvent mirrors notify.RunEvent without importing it, keeping the step
// package free of transport dependencies.
type RunEvent struct {
	Pipeline    string
	RunID       string
	BuildNumber int64
	Result      string
	Cause       string
	FinishedAt  time.Time
}

// GateClient bundles the quality-gate waiter with the pipeline's gate config.
type GateClient struct {
	Waiter               *qualitygate.Waiter
	ProjectKey           string
	PollInterval         time.Duration
	Timeout              time.Duration
	AbortOnTimeout       bool
	SuppressResultChange bool
	Metrics              metrics.Recorder // nil means unobserved
}

// RunContext carries the run-scoped collaborators a step may use. Fields a
// given pipeline does not configure stay nil; steps that need them error out.
type RunContext struct {
	Pipeline    string
	RunID       string
	BuildNumber int64
	Env         *env.Context
	Results     *result.Aggregator
	Artifacts   *artifact.Collector
	KeepLast    int
	Gate        *GateClient
	Publisher   RunPublisher
}

// Factory constructs a step from its definition parameters. Parameter
// problems are reported here, at pipeline build time, not at run time.
type Factory func(with map[string]string) (Step, error)

// Registry maps step kinds to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry pre-populated with the builtin kinds.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("exec", newExecStep)
	r.Register("checkout", newCheckoutStep)
	r.Register("archive", newArchiveStep)
	r.Register("qualityGate", newQualityGateStep)
	r.Register("publish", newPublishStep)
	return r
}

// Register adds or replaces a factory for kind.
func (r *Registry) Register(kind string, f Factory) {
	r.factories[kind] = f
}

// Build constructs a step of the given kind. Unknown kinds are an error so
// the engine can reject the definition before any stage executes.
func (r *Registry) Build(kind string, with map[string]string) (Step, error) {
	f, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("unknown step kind %q", kind)
	}
	return f(with)
}

// Kinds lists the registered kinds.
func (r *Registry) Kinds() []string {
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	return out
}

func requireParam(with map[string]string, kind, key string) (string, error) {
	v := with[key]
	if v == "" {
		return "", fmt.Errorf("step %s: missing required parameter %q", kind, key)
	}
	return v, nil
}
