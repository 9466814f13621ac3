package step

import (
	"context"
	"fmt"
	"log/slog"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// checkoutStep clones a repository into a working directory. Source checkout
// is otherwise an external concern; this builtin covers the common case of a
// plain clone so pipelines need no wrapper script for it.
type checkoutStep struct {
	url   string
	ref   string
	dir   string
	depth int
}

func newCheckoutStep(with map[string]string) (Step, error) {
	url, err := requireParam(with, "checkout", "url")
	if err != nil {
		return nil, err
	}
	dir, err := requireParam(with, "checkout", "dir")
	if err != nil {
		return nil, err
	}
	return &checkoutStep{url: url, ref: with["ref"], dir: dir, depth: 1}, nil
}

func (s *checkoutStep) Kind() string { return "checkout" }

func (s *checkoutStep) Run(ctx context.Context, rc *RunContext) error {
	opts := &git.CloneOptions{
		URL:   s.url,
		Depth: s.depth,
	}
	if s.ref != "" {
		opts.ReferenceName = plumbing.ReferenceName(s.ref)
		opts.SingleBranch = true
	}

	slog.Info("Checking out repository", slog.String("url", s.url), slog.String("dir", s.dir))
	if _, err := git.PlainCloneContext(ctx, s.dir, false, opts); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("checkout cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("clone %s: %w", s.url, err)
	}
	return nil
}
