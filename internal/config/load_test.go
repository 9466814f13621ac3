package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalDefinition = `
pipeline: svc
stages:
  - name: build
    steps:
      - kind: exec
        with:
          run: make build
`

func TestParseMinimal(t *testing.T) {
	def, err := Parse([]byte(minimalDefinition))
	require.NoError(t, err)
	assert.Equal(t, "svc", def.Pipeline)
	require.Len(t, def.Stages, 1)
	assert.Equal(t, "build", def.Stages[0].Name)
	assert.Equal(t, "exec", def.Stages[0].Steps[0].Kind)
	assert.Equal(t, "make build", def.Stages[0].Steps[0].With["run"])
}

func TestParseFullDefinition(t *testing.T) {
	def, err := Parse([]byte(`
pipeline: svc
env:
  TARGET: prod
options:
  timeout: 2h
  keepLast: 5
  disableConcurrentRuns: true
  unstableExitCode: 0
stages:
  - name: build
    when: TARGET==prod
    env:
      GOFLAGS: -trimpath
    retry:
      maxAttempts: 3
      backoff: exponential
      initialDelay: 2s
      maxDelay: 30s
    timeout:
      duration: 10m
      action: abort
    continueOnError: true
    steps:
      - kind: exec
        with: {run: make build}
    post:
      failure:
        - kind: exec
          with: {run: ./fail.sh}
post:
  always:
    - kind: exec
      with: {run: ./cleanup.sh}
qualityGate:
  serverURL: https://sonar.internal
  projectKey: svc
  tokenEnv: SONAR_TOKEN
  pollInterval: 5s
  timeout: 5m
  abortOnTimeout: true
  suppressResultChange: true
daemon:
  every: 30m
  watch: true
`))
	require.NoError(t, err)
	require.NotNil(t, def.Options.UnstableExitCode)
	assert.Equal(t, 0, *def.Options.UnstableExitCode)
	assert.True(t, def.Stages[0].ContinueOnError)
	assert.Equal(t, 3, def.Stages[0].Retry.MaxAttempts)
	assert.True(t, def.QualityGate.SuppressResultChange)
	assert.True(t, def.Daemon.Watch)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"empty stages", "pipeline: svc\nstages: []\n"},
		{"missing pipeline name", "stages:\n  - name: build\n    steps: [{kind: exec}]\n"},
		{"duplicate stage names", `
pipeline: svc
stages:
  - name: build
    steps: [{kind: exec}]
  - name: build
    steps: [{kind: exec}]
`},
		{"stage without steps", `
pipeline: svc
stages:
  - name: build
    steps: []
`},
		{"bad retry attempts", `
pipeline: svc
stages:
  - name: build
    retry: {maxAttempts: 0}
    steps: [{kind: exec}]
`},
		{"bad backoff mode", `
pipeline: svc
stages:
  - name: build
    retry: {maxAttempts: 2, backoff: sideways}
    steps: [{kind: exec}]
`},
		{"bad timeout action", `
pipeline: svc
stages:
  - name: build
    timeout: {duration: 1m, action: explode}
    steps: [{kind: exec}]
`},
		{"bad timeout duration", `
pipeline: svc
stages:
  - name: build
    timeout: {duration: soon}
    steps: [{kind: exec}]
`},
		{"bad guard", `
pipeline: svc
stages:
  - name: build
    when: "== x"
    steps: [{kind: exec}]
`},
		{"unknown hook class", `
pipeline: svc
stages:
  - name: build
    steps: [{kind: exec}]
post:
  sometimes: [{kind: exec}]
`},
		{"gate without key", `
pipeline: svc
stages:
  - name: build
    steps: [{kind: exec}]
qualityGate:
  serverURL: https://x
`},
		{"daemon with nothing enabled", `
pipeline: svc
stages:
  - name: build
    steps: [{kind: exec}]
daemon: {}
`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse([]byte(c.yaml))
			require.Error(t, err)
			var fce *FatalConfigError
			assert.True(t, errors.As(err, &fce), "expected FatalConfigError, got %T: %v", err, err)
		})
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("pipeline: svc\nstagez: []\n"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	var fce *FatalConfigError
	require.True(t, errors.As(err, &fce))
}

func TestInitRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))

	// The sample must itself be a valid definition.
	def, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, def.Stages)
}
