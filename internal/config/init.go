package config

import (
	"fmt"
	"os"
)

const sampleDefinition = `# buildpipe pipeline definition
pipeline: example-service

env:
  TARGET: staging

options:
  timeout: 1h
  keepLast: 10
  disableConcurrentRuns: true

stages:
  - name: build
    steps:
      - kind: exec
        with:
          run: make build
    retry:
      maxAttempts: 2
      backoff: exponential
      initialDelay: 2s

  - name: test
    continueOnError: true
    steps:
      - kind: exec
        with:
          run: make test
    post:
      failure:
        - kind: exec
          with:
            run: ./scripts/collect-test-logs.sh

  - name: archive
    when: TARGET==prod
    timeout:
      duration: 5m
      action: markUnstable
    steps:
      - kind: archive
        with:
          name: app.tar.gz
          path: dist/app.tar.gz

post:
  always:
    - kind: exec
      with:
        run: ./scripts/cleanup.sh

qualityGate:
  serverURL: https://analysis.example.com
  projectKey: example-service
  tokenEnv: ANALYSIS_TOKEN
  pollInterval: 10s
  timeout: 5m

logging:
  level: info
  format: text
`

// Init writes a commented sample definition to path. Refuses to overwrite an
// existing file unless force is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	return os.WriteFile(path, []byte(sampleDefinition), 0o644)
}
