package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildpipe/internal/config"
)

func TestValidateAcceptsSampleDefinition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buildpipe.yaml")
	require.NoError(t, config.Init(path, false))

	CLI.Config = path
	assert.NoError(t, runValidate())
}

func TestValidateRejectsBrokenDefinition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buildpipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline: x\nstages: []\n"), 0o644))

	CLI.Config = path
	assert.Error(t, runValidate())
}

func TestValidateRejectsUnknownStepKind(t *testing.T) {
	def := `
pipeline: svc
stages:
  - name: build
    steps:
      - kind: levitate
        with:
          height: "3m"
`
	path := filepath.Join(t.TempDir(), "buildpipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(def), 0o644))

	CLI.Config = path
	assert.Error(t, runValidate())
}

func TestWireDependenciesBuildsRunnerWithStore(t *testing.T) {
	defPath := filepath.Join(t.TempDir(), "buildpipe.yaml")
	require.NoError(t, config.Init(defPath, false))
	def, err := config.Load(defPath)
	require.NoError(t, err)
	def.Store.Path = filepath.Join(t.TempDir(), "runs.db")

	deps, err := wireDependencies(def, true)
	require.NoError(t, err)
	t.Cleanup(deps.close)
	require.NotNil(t, deps.store)
	require.NotNil(t, deps.artifacts)

	runner, err := deps.buildRunner(def)
	require.NoError(t, err)
	assert.Equal(t, 10, runner.Options().KeepLast)
}

func TestWireDependenciesWithoutStore(t *testing.T) {
	defPath := filepath.Join(t.TempDir(), "buildpipe.yaml")
	require.NoError(t, config.Init(defPath, false))
	def, err := config.Load(defPath)
	require.NoError(t, err)

	deps, err := wireDependencies(def, false)
	require.NoError(t, err)
	t.Cleanup(deps.close)
	assert.Nil(t, deps.store)

	_, err = deps.buildRunner(def)
	require.NoError(t, err)
}
