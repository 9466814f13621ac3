package step

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// execStep runs a shell command. The command sees the pipeline environment on
// top of the process environment.
type execStep struct {
	run   string
	shell string
	dir   string
}

func newExecStep(with map[string]string) (Step, error) {
	run, err := requireParam(with, "exec", "run")
	if err != nil {
		return nil, err
	}
	shell := with["shell"]
	if shell == "" {
		shell = "sh"
	}
	return &execStep{run: run, shell: shell, dir: with["dir"]}, nil
}

func (s *execStep) Kind() string { return "exec" }

func (s *execStep) Run(ctx context.Context, rc *RunContext) error {
	cmd := exec.CommandContext(ctx, s.shell, "-c", s.run)
	cmd.Dir = s.dir
	cmd.Env = mergedEnviron(rc)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if output := strings.TrimSpace(out.String()); output != "" {
		slog.Debug("Step output", slog.String("command", s.run), slog.String("output", output))
	}
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("command cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("command %q: %w", s.run, err)
	}
	return nil
}

// mergedEnviron layers the pipeline environment over the process environment.
func mergedEnviron(rc *RunContext) []string {
	base := map[string]string{}
	if rc != nil && rc.Env != nil {
		base = rc.Env.Snapshot()
	}
	if rc != nil {
		base["BUILDPIPE_RUN_ID"] = rc.RunID
		base["BUILDPIPE_BUILD_NUMBER"] = fmt.Sprintf("%d", rc.BuildNumber)
		base["BUILDPIPE_PIPELINE"] = rc.Pipeline
	}
	environ := append([]string(nil), processEnviron()...)
	for k, v := range base {
		environ = append(environ, k+"="+v)
	}
	return environ
}
