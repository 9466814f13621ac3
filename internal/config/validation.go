package config

import (
	"time"

	"git.home.luguber.info/inful/buildpipe/internal/retry"
)

// Validate performs full semantic validation of a parsed definition. Every
// problem is returned as a *FatalConfigError; a definition that passes here
// cannot fail to construct a runnable pipeline except for unregistered step
// kinds, which the engine checks against its registry at build time.
func Validate(def *Definition) error {
	v := &definitionValidator{def: def}
	return v.validate()
}

type definitionValidator struct {
	def *Definition
}

func (v *definitionValidator) validate() error {
	if v.def.Pipeline == "" {
		return fatalf("", "pipeline name must not be empty")
	}
	if err := v.validateOptions(); err != nil {
		return err
	}
	if err := v.validateStages(); err != nil {
		return err
	}
	if err := v.validatePost("post", v.def.Post); err != nil {
		return err
	}
	if err := v.validateQualityGate(); err != nil {
		return err
	}
	if err := v.validateDaemon(); err != nil {
		return err
	}
	return nil
}

func (v *definitionValidator) validateOptions() error {
	if v.def.Options.Timeout != "" {
		if _, err := time.ParseDuration(v.def.Options.Timeout); err != nil {
			return fatalf("", "options.timeout: %w", err)
		}
	}
	if v.def.Options.KeepLast < 0 {
		return fatalf("", "options.keepLast cannot be negative")
	}
	if c := v.def.Options.UnstableExitCode; c != nil && (*c < 0 || *c > 255) {
		return fatalf("", "options.unstableExitCode must be 0..255")
	}
	return nil
}

func (v *definitionValidator) validateStages() error {
	if len(v.def.Stages) == 0 {
		return fatalf("", "pipeline must declare at least one stage")
	}
	names := make(map[string]bool, len(v.def.Stages))
	for i := range v.def.Stages {
		s := &v.def.Stages[i]
		if s.Name == "" {
			return fatalf("", "stage %d: name must not be empty", i)
		}
		if names[s.Name] {
			return fatalf("", "duplicate stage name: %s", s.Name)
		}
		names[s.Name] = true

		if _, err := ParseGuard(s.When); err != nil {
			return fatalf("", "stage %s: %w", s.Name, err)
		}
		if len(s.Steps) == 0 {
			return fatalf("", "stage %s: must declare at least one step", s.Name)
		}
		for j, st := range s.Steps {
			if st.Kind == "" {
				return fatalf("", "stage %s step %d: kind must not be empty", s.Name, j)
			}
		}
		if err := v.validateRetry(s); err != nil {
			return err
		}
		if err := v.validateTimeout(s); err != nil {
			return err
		}
		if err := v.validateStagePost(s); err != nil {
			return err
		}
	}
	return nil
}

func (v *definitionValidator) validateRetry(s *StageDef) error {
	r := s.Retry
	if r == nil {
		return nil
	}
	if r.MaxAttempts < 1 {
		return fatalf("", "stage %s: retry.maxAttempts must be >=1", s.Name)
	}
	if r.Backoff != "" && retry.NormalizeBackoff(r.Backoff) == "" {
		return fatalf("", "stage %s: unknown retry.backoff %q", s.Name, r.Backoff)
	}
	for field, raw := range map[string]string{"initialDelay": r.InitialDelay, "maxDelay": r.MaxDelay} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fatalf("", "stage %s: retry.%s: %w", s.Name, field, err)
		}
	}
	return nil
}

func (v *definitionValidator) validateTimeout(s *StageDef) error {
	t := s.Timeout
	if t == nil {
		return nil
	}
	d, err := time.ParseDuration(t.Duration)
	if err != nil {
		return fatalf("", "stage %s: timeout.duration: %w", s.Name, err)
	}
	if d <= 0 {
		return fatalf("", "stage %s: timeout.duration must be positive", s.Name)
	}
	if NormalizeTimeoutAction(t.Action) == "" {
		return fatalf("", "stage %s: unknown timeout.action %q", s.Name, t.Action)
	}
	return nil
}

func (v *definitionValidator) validateStagePost(s *StageDef) error {
	for class, actions := range s.Post {
		c := NormalizeHookClass(class)
		if c == "" {
			return fatalf("", "stage %s: unknown post class %q", s.Name, class)
		}
		if c == HookChanged {
			// changed-from-previous only makes sense against the final result.
			return fatalf("", "stage %s: post class %q is pipeline-level only", s.Name, class)
		}
		for j, a := range actions {
			if a.Kind == "" {
				return fatalf("", "stage %s post %s action %d: kind must not be empty", s.Name, class, j)
			}
		}
	}
	return nil
}

func (v *definitionValidator) validatePost(where string, post PostDef) error {
	for class, actions := range post {
		if NormalizeHookClass(class) == "" {
			return fatalf("", "%s: unknown hook class %q", where, class)
		}
		for j, a := range actions {
			if a.Kind == "" {
				return fatalf("", "%s.%s action %d: kind must not be empty", where, class, j)
			}
		}
	}
	return nil
}

func (v *definitionValidator) validateQualityGate() error {
	g := v.def.QualityGate
	if g == nil {
		return nil
	}
	if g.ServerURL == "" {
		return fatalf("", "qualityGate.serverURL must not be empty")
	}
	if g.ProjectKey == "" {
		return fatalf("", "qualityGate.projectKey must not be empty")
	}
	for field, raw := range map[string]string{"pollInterval": g.PollInterval, "timeout": g.Timeout} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fatalf("", "qualityGate.%s: %w", field, err)
		}
	}
	return nil
}

func (v *definitionValidator) validateDaemon() error {
	d := v.def.Daemon
	if d == nil {
		return nil
	}
	if d.Every == "" && d.Cron == "" && !d.Watch {
		return fatalf("", "daemon: at least one of every/cron/watch must be set")
	}
	if d.Every != "" {
		dur, err := time.ParseDuration(d.Every)
		if err != nil {
			return fatalf("", "daemon.every: %w", err)
		}
		if dur <= 0 {
			return fatalf("", "daemon.every must be positive")
		}
	}
	return nil
}
