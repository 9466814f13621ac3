package step

import (
	"context"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/buildpipe/internal/logfields"
)

// archiveStep records a produced file in the artifact collector and applies
// the pipeline's keep-last retention to its name.
type archiveStep struct {
	name string
	path string
}

func newArchiveStep(with map[string]string) (Step, error) {
	name, err := requireParam(with, "archive", "name")
	if err != nil {
		return nil, err
	}
	path, err := requireParam(with, "archive", "path")
	if err != nil {
		return nil, err
	}
	return &archiveStep{name: name, path: path}, nil
}

func (s *archiveStep) Kind() string { return "archive" }

func (s *archiveStep) Run(ctx context.Context, rc *RunContext) error {
	if rc.Artifacts == nil {
		return fmt.Errorf("archive %s: no artifact store configured", s.name)
	}
	a, err := rc.Artifacts.Collect(ctx, rc.RunID, s.name, s.path)
	if err != nil {
		return err
	}
	slog.Info("Artifact archived",
		slog.String("name", a.Name),
		slog.String("fingerprint", a.Fingerprint),
		logfields.RunID(rc.RunID))

	if rc.KeepLast > 0 {
		pruned, err := rc.Artifacts.PruneKeepLast(ctx, s.name, rc.KeepLast)
		if err != nil {
			// Retention failure does not invalidate the archived artifact.
			slog.Warn("Artifact retention prune failed", slog.String("name", s.name), logfields.Error(err))
		} else if pruned > 0 {
			slog.Debug("Pruned old artifacts", slog.String("name", s.name), slog.Int64("pruned", pruned))
		}
	}
	return nil
}
