package step

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/buildpipe/internal/logfields"
	"git.home.luguber.info/inful/buildpipe/internal/qualitygate"
	"git.home.luguber.info/inful/buildpipe/internal/result"
)

// qualityGateStep waits for the external gate verdict and maps it onto the
// build result: ERROR fails the stage, WARN and a degraded TIMEOUT worsen the
// result to unstable (unless suppressed), OK changes nothing.
type qualityGateStep struct{}

func newQualityGateStep(map[string]string) (Step, error) {
	return &qualityGateStep{}, nil
}

func (s *qualityGateStep) Kind() string { return "qualityGate" }

func (s *qualityGateStep) Run(ctx context.Context, rc *RunContext) error {
	if rc.Gate == nil || rc.Gate.Waiter == nil {
		return fmt.Errorf("qualityGate step requires a qualityGate config section")
	}
	g := rc.Gate

	report, err := g.Waiter.Wait(ctx, g.ProjectKey, g.PollInterval, g.Timeout, g.AbortOnTimeout)
	if err != nil {
		if errors.Is(err, qualitygate.ErrAborted) {
			return fmt.Errorf("%w: %v", ErrAbortRun, err)
		}
		return err
	}
	if g.Metrics != nil {
		g.Metrics.ObserveGateWait(string(report.Status), report.Elapsed)
	}

	switch report.Status {
	case qualitygate.StatusOK:
		return nil
	case qualitygate.StatusError:
		return fmt.Errorf("quality gate failed for project %s", g.ProjectKey)
	case qualitygate.StatusWarn, qualitygate.StatusTimeout:
		if g.SuppressResultChange {
			slog.Warn("Quality gate degraded, result change suppressed",
				logfields.GateStatus(string(report.Status)))
			return nil
		}
		rc.Results.Record(result.Unstable)
		slog.Warn("Quality gate degraded, marking build unstable",
			logfields.GateStatus(string(report.Status)))
		return nil
	default:
		return fmt.Errorf("unexpected gate status %q", report.Status)
	}
}
