// Package config loads and validates the declarative pipeline definition.
// The definition is parsed once before a run starts and is read-only
// thereafter; every semantic problem it can contain is reported here as a
// *FatalConfigError before any stage executes.
package config

// Definition is the root of a pipeline definition file.
type Definition struct {
	Pipeline string            `yaml:"pipeline"`
	Env      map[string]string `yaml:"env,omitempty"`
	Options  Options           `yaml:"options,omitempty"`
	Stages   []StageDef        `yaml:"stages"`
	Post     PostDef           `yaml:"post,omitempty"`

	QualityGate *QualityGateDef `yaml:"qualityGate,omitempty"`
	Logging     LoggingDef      `yaml:"logging,omitempty"`
	Metrics     MetricsDef      `yaml:"metrics,omitempty"`
	Notify      *NotifyDef      `yaml:"notify,omitempty"`
	Daemon      *DaemonDef      `yaml:"daemon,omitempty"`
	Store       StoreDef        `yaml:"store,omitempty"`
}

// Options are pipeline-global run options.
type Options struct {
	// Timeout bounds the total run duration ("2h"). Empty means unbounded.
	Timeout string `yaml:"timeout,omitempty"`
	// KeepLast is the artifact retention count per artifact name (0 keeps all).
	KeepLast int `yaml:"keepLast,omitempty"`
	// DisableConcurrentRuns serializes runs of this pipeline identity.
	DisableConcurrentRuns bool `yaml:"disableConcurrentRuns,omitempty"`
	// UnstableExitCode is the process exit code for an unstable result.
	// nil means the default (2); explicit 0 treats unstable as CI success.
	UnstableExitCode *int `yaml:"unstableExitCode,omitempty"`
}

// StageDef declares one named stage.
type StageDef struct {
	Name            string               `yaml:"name"`
	When            string               `yaml:"when,omitempty"` // guard expression over env
	Env             map[string]string    `yaml:"env,omitempty"`  // scoped overrides
	Steps           []StepDef            `yaml:"steps"`
	Retry           *RetryDef            `yaml:"retry,omitempty"`
	Timeout         *TimeoutDef          `yaml:"timeout,omitempty"`
	ContinueOnError bool                 `yaml:"continueOnError,omitempty"`
	Post            map[string][]StepDef `yaml:"post,omitempty"` // outcome class -> actions
}

// StepDef is an opaque step invocation: a registered kind plus its parameters.
type StepDef struct {
	Kind string            `yaml:"kind"`
	With map[string]string `yaml:"with,omitempty"`
}

// RetryDef configures bounded attempts for a stage body.
type RetryDef struct {
	MaxAttempts  int    `yaml:"maxAttempts"`
	Backoff      string `yaml:"backoff,omitempty"`      // fixed|linear|exponential
	InitialDelay string `yaml:"initialDelay,omitempty"` // e.g. "2s"
	MaxDelay     string `yaml:"maxDelay,omitempty"`
}

// TimeoutDef bounds a stage's cumulative wall time.
type TimeoutDef struct {
	Duration string `yaml:"duration"`
	Action   string `yaml:"action,omitempty"` // markUnstable|abort|fail
}

// PostDef maps hook classes to pipeline-level actions, evaluated against the
// final aggregated result.
type PostDef map[string][]StepDef

// QualityGateDef configures the external analysis service poll.
type QualityGateDef struct {
	ServerURL      string `yaml:"serverURL"`
	ProjectKey     string `yaml:"projectKey"`
	TokenEnv       string `yaml:"tokenEnv,omitempty"` // env var holding the auth token
	PollInterval   string `yaml:"pollInterval,omitempty"`
	Timeout        string `yaml:"timeout,omitempty"`
	AbortOnTimeout bool   `yaml:"abortOnTimeout,omitempty"`
	// SuppressResultChange keeps a degraded/failed gate from touching the
	// build result; the report is still logged and stored.
	SuppressResultChange bool `yaml:"suppressResultChange,omitempty"`
}

// LoggingDef selects log level and output format.
type LoggingDef struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// MetricsDef enables the Prometheus exposition listener when Listen is set.
type MetricsDef struct {
	Listen string `yaml:"listen,omitempty"` // e.g. ":9104"
}

// NotifyDef configures run-completion event publishing.
type NotifyDef struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject,omitempty"`
}

// DaemonDef configures daemon mode: periodic runs and definition watching.
type DaemonDef struct {
	Every string `yaml:"every,omitempty"` // run interval, e.g. "30m"
	Cron  string `yaml:"cron,omitempty"`  // five-field cron expression
	Watch bool   `yaml:"watch,omitempty"` // re-load definition on file change
}

// StoreDef locates the run/artifact database.
type StoreDef struct {
	Path string `yaml:"path,omitempty"` // default "buildpipe.db"
}
