// Package daemon keeps a pipeline resident: it triggers runs on a schedule,
// watches the definition file for edits and swaps in the reloaded pipeline
// between runs.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/buildpipe/internal/config"
	"git.home.luguber.info/inful/buildpipe/internal/engine"
	"git.home.luguber.info/inful/buildpipe/internal/logfields"
)

// BuildRunner constructs a runner from a validated definition. The caller owns
// the wiring of store, gate, publisher and metrics so a reload picks up a
// fully equipped runner.
type BuildRunner func(def *config.Definition) (*engine.Runner, error)

// Daemon runs a pipeline on a schedule until its context is cancelled.
type Daemon struct {
	path  string
	build BuildRunner

	mu     sync.RWMutex
	def    *config.Definition
	runner *engine.Runner

	scheduler *Scheduler
	watcher   *DefinitionWatcher
}

// New creates a daemon for the definition at path. def must already be
// validated; the initial runner is built immediately so wiring errors surface
// before the daemon starts.
func New(path string, def *config.Definition, build BuildRunner) (*Daemon, error) {
	if def.Daemon == nil {
		return nil, fmt.Errorf("definition has no daemon section")
	}
	runner, err := build(def)
	if err != nil {
		return nil, fmt.Errorf("build runner: %w", err)
	}
	return &Daemon{path: path, build: build, def: def, runner: runner}, nil
}

// Run starts the schedule and the definition watcher, then blocks until ctx is
// cancelled. In-flight runs finish before Run returns.
func (d *Daemon) Run(ctx context.Context) error {
	var err error
	d.scheduler, err = NewScheduler()
	if err != nil {
		return err
	}

	dd := d.def.Daemon
	if dd.Every != "" {
		interval, perr := time.ParseDuration(dd.Every)
		if perr != nil {
			return fmt.Errorf("daemon.every: %w", perr)
		}
		if _, err := d.scheduler.ScheduleEvery("pipeline-run", interval, func() { d.TriggerRun(ctx) }); err != nil {
			return err
		}
		slog.Info("Scheduled periodic runs", slog.String("every", dd.Every))
	}
	if dd.Cron != "" {
		if _, err := d.scheduler.ScheduleCron("pipeline-run-cron", dd.Cron, func() { d.TriggerRun(ctx) }); err != nil {
			return err
		}
		slog.Info("Scheduled cron runs", slog.String("cron", dd.Cron))
	}

	if dd.Watch {
		d.watcher, err = NewDefinitionWatcher(d.path, d.reloadDefinition)
		if err != nil {
			return err
		}
		if err := d.watcher.Start(ctx); err != nil {
			return err
		}
	}

	d.scheduler.Start(ctx)
	slog.Info("Daemon started", logfields.Pipeline(d.def.Pipeline))

	<-ctx.Done()
	slog.Info("Daemon stopping")

	stopCtx := context.WithoutCancel(ctx)
	if d.watcher != nil {
		_ = d.watcher.Stop(stopCtx)
	}
	return d.scheduler.Stop(stopCtx)
}

// TriggerRun executes the pipeline once with the current runner. Scheduled
// ticks and manual triggers share this path; a run failure is logged, not
// returned, because the daemon outlives individual runs.
func (d *Daemon) TriggerRun(ctx context.Context) {
	d.mu.RLock()
	runner := d.runner
	d.mu.RUnlock()

	rep, err := runner.Run(ctx)
	if err != nil {
		slog.Error("Scheduled run could not start", logfields.Error(err))
		return
	}
	slog.Info("Scheduled run finished",
		logfields.Pipeline(rep.Pipeline),
		logfields.BuildNumber(rep.BuildNumber),
		logfields.Result(rep.Result.String()))
}

// Definition returns the currently active definition.
func (d *Daemon) Definition() *config.Definition {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.def
}

// reloadDefinition loads, validates and swaps in the edited definition. On any
// failure the previous definition stays active.
func (d *Daemon) reloadDefinition(ctx context.Context) error {
	slog.Info("Reloading definition", slog.String("path", d.path))

	def, err := config.Load(d.path)
	if err != nil {
		return fmt.Errorf("load definition: %w", err)
	}
	if def.Daemon == nil {
		return fmt.Errorf("reloaded definition dropped the daemon section; keeping previous")
	}
	if def.Pipeline != d.def.Pipeline {
		slog.Warn("Pipeline name changed on reload; run history continues under the new name",
			slog.String("old", d.def.Pipeline), slog.String("new", def.Pipeline))
	}

	runner, err := d.build(def)
	if err != nil {
		return fmt.Errorf("build runner: %w", err)
	}

	d.mu.Lock()
	d.def = def
	d.runner = runner
	d.mu.Unlock()

	slog.Info("Definition reloaded", logfields.Pipeline(def.Pipeline))
	return nil
}
