package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildpipe/internal/config"
	"git.home.luguber.info/inful/buildpipe/internal/step"
)

func buildDefinition() *config.Definition {
	return &config.Definition{
		Pipeline: "svc",
		Env:      map[string]string{"TARGET": "prod"},
		Options:  config.Options{Timeout: "1h", KeepLast: 5},
		Stages: []config.StageDef{
			{
				Name:  "build",
				Steps: []config.StepDef{{Kind: "exec", With: map[string]string{"run": "make"}}},
				Retry: &config.RetryDef{MaxAttempts: 3, Backoff: "exponential", InitialDelay: "2s", MaxDelay: "1m"},
				Timeout: &config.TimeoutDef{Duration: "30m", Action: "markUnstable"},
			},
			{
				Name:  "deploy",
				When:  "TARGET==prod",
				Steps: []config.StepDef{{Kind: "exec", With: map[string]string{"run": "make deploy"}}},
				Post: map[string][]config.StepDef{
					"failure": {{Kind: "exec", With: map[string]string{"run": "make rollback"}}},
				},
			},
		},
		Post: config.PostDef{
			"always":  {{Kind: "exec", With: map[string]string{"run": "make clean"}}},
			"changed": {{Kind: "exec", With: map[string]string{"run": "make notify"}}},
			"failure": {{Kind: "exec", With: map[string]string{"run": "make alert"}}},
		},
	}
}

func TestBuildCompilesDefinition(t *testing.T) {
	p, err := Build(buildDefinition(), step.NewRegistry())
	require.NoError(t, err)

	assert.Equal(t, "svc", p.Name)
	assert.Equal(t, time.Hour, p.Options.Timeout)
	assert.Equal(t, 5, p.Options.KeepLast)
	require.Len(t, p.Stages, 2)

	build := p.Stages[0]
	assert.Equal(t, 3, build.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, build.Retry.Initial)
	require.NotNil(t, build.Timeout)
	assert.Equal(t, 30*time.Minute, build.Timeout.Duration)
	assert.Equal(t, config.TimeoutMarkUnstable, build.Timeout.Action)
	assert.Nil(t, build.Guard)

	deploy := p.Stages[1]
	assert.NotNil(t, deploy.Guard)
	assert.Nil(t, deploy.Timeout)
	assert.Equal(t, 1, deploy.Retry.MaxAttempts, "default policy is single attempt")
	require.Len(t, deploy.Post, 1)
	assert.Equal(t, config.HookFailure, deploy.Post[0].Class)
}

func TestBuildCanonicalHookOrder(t *testing.T) {
	p, err := Build(buildDefinition(), step.NewRegistry())
	require.NoError(t, err)

	classes := make([]config.HookClass, 0, len(p.Post))
	for _, h := range p.Post {
		classes = append(classes, h.Class)
	}
	// Result-specific classes first, always last, regardless of YAML map order.
	assert.Equal(t, []config.HookClass{config.HookFailure, config.HookChanged, config.HookAlways}, classes)
}

func TestBuildRejectsUnknownStepKind(t *testing.T) {
	def := buildDefinition()
	def.Stages[0].Steps[0].Kind = "teleport"
	_, err := Build(def, step.NewRegistry())
	require.Error(t, err)
	var fatal *config.FatalConfigError
	assert.ErrorAs(t, err, &fatal)
	assert.Contains(t, err.Error(), "teleport")
}

func TestBuildRejectsUnknownHookStepKind(t *testing.T) {
	def := buildDefinition()
	def.Post["always"] = []config.StepDef{{Kind: "nope"}}
	_, err := Build(def, step.NewRegistry())
	require.Error(t, err)
	var fatal *config.FatalConfigError
	assert.ErrorAs(t, err, &fatal)
}
