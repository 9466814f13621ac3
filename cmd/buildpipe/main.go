package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/buildpipe/internal/artifact"
	"git.home.luguber.info/inful/buildpipe/internal/config"
	"git.home.luguber.info/inful/buildpipe/internal/daemon"
	"git.home.luguber.info/inful/buildpipe/internal/engine"
	"git.home.luguber.info/inful/buildpipe/internal/logfields"
	"git.home.luguber.info/inful/buildpipe/internal/metrics"
	"git.home.luguber.info/inful/buildpipe/internal/notify"
	"git.home.luguber.info/inful/buildpipe/internal/qualitygate"
	"git.home.luguber.info/inful/buildpipe/internal/runstore"
	"git.home.luguber.info/inful/buildpipe/internal/step"
)

const defaultStorePath = "buildpipe.db"

var CLI struct {
	Config  string `short:"c" help:"Pipeline definition file path" default:"buildpipe.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Run struct {
		NoStore bool `help:"Run without the persistent run ledger"`
	} `cmd:"" help:"Execute the pipeline once and exit with the result code"`

	Validate struct{} `cmd:"" help:"Load and validate the pipeline definition"`

	Init struct {
		Force bool `help:"Overwrite existing definition file"`
	} `cmd:"" help:"Initialize a new pipeline definition file"`

	Daemon struct{} `cmd:"" help:"Run resident: scheduled runs and definition watching"`
}

func main() {
	ctx := kong.Parse(&CLI)

	switch ctx.Command() {
	case "run":
		os.Exit(runOnce())
	case "validate":
		if err := runValidate(); err != nil {
			slog.Error("Definition is invalid", logfields.Error(err))
			os.Exit(1)
		}
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", logfields.Error(err))
			os.Exit(1)
		}
		slog.Info("Wrote sample definition", "path", CLI.Config)
	case "daemon":
		if err := runDaemon(); err != nil {
			slog.Error("Daemon failed", logfields.Error(err))
			os.Exit(1)
		}
	}
}

func runOnce() int {
	def, err := loadDefinition()
	if err != nil {
		slog.Error("Failed to load definition", logfields.Error(err))
		return 1
	}

	deps, err := wireDependencies(def, !CLI.Run.NoStore)
	if err != nil {
		slog.Error("Failed to wire pipeline dependencies", logfields.Error(err))
		return 1
	}
	defer deps.close()

	runner, err := deps.buildRunner(def)
	if err != nil {
		slog.Error("Failed to build pipeline", logfields.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := runner.Run(ctx)
	if err != nil {
		slog.Error("Run could not start", logfields.Error(err))
		return 1
	}
	return rep.ExitCode(runner.Options())
}

func runValidate() error {
	def, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	if _, err := engine.Build(def, step.NewRegistry()); err != nil {
		return err
	}
	slog.Info("Definition is valid",
		logfields.Pipeline(def.Pipeline),
		slog.Int("stages", len(def.Stages)))
	return nil
}

func runDaemon() error {
	def, err := loadDefinition()
	if err != nil {
		return err
	}

	deps, err := wireDependencies(def, true)
	if err != nil {
		return err
	}
	defer deps.close()

	d, err := daemon.New(CLI.Config, def, deps.buildRunner)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return d.Run(ctx)
}

func loadDefinition() (*config.Definition, error) {
	// Bootstrap logging so load errors are readable; replaced once the
	// definition's logging section is known.
	config.SetupLogging(config.LoggingDef{}, os.Stderr, CLI.Verbose)
	config.LoadEnvFiles()

	def, err := config.Load(CLI.Config)
	if err != nil {
		return nil, err
	}
	config.SetupLogging(def.Logging, os.Stderr, CLI.Verbose)
	return def, nil
}

// dependencies holds the process-lifetime collaborators shared by every run
// the process performs.
type dependencies struct {
	store     *runstore.Store
	artifacts *artifact.Collector
	publisher *notify.Publisher
	recorder  metrics.Recorder
}

func wireDependencies(def *config.Definition, withStore bool) (*dependencies, error) {
	deps := &dependencies{recorder: metrics.NoopRecorder{}}

	if withStore {
		path := def.Store.Path
		if path == "" {
			path = defaultStorePath
		}
		store, err := runstore.Open(path)
		if err != nil {
			return nil, err
		}
		deps.store = store

		collector, err := artifact.New(store.DB())
		if err != nil {
			deps.close()
			return nil, err
		}
		deps.artifacts = collector
	}

	if def.Notify != nil {
		pub, err := notify.Connect(def.Notify.URL, def.Notify.Subject)
		if err != nil {
			// Notification is an observer concern; a dead broker must not
			// block builds.
			slog.Warn("NATS unavailable, run events will not be published", logfields.Error(err))
		} else {
			deps.publisher = pub
		}
	}

	if def.Metrics.Listen != "" {
		reg := prom.NewRegistry()
		deps.recorder = metrics.NewPrometheusRecorder(reg)
		errCh := metrics.Serve(def.Metrics.Listen, reg)
		go func() {
			if err := <-errCh; err != nil {
				slog.Error("Metrics listener failed", logfields.Error(err))
			}
		}()
		slog.Info("Metrics listener started", "addr", def.Metrics.Listen)
	}

	return deps, nil
}

// publisherAdapter bridges the step package's transport-free event type onto
// the NATS publisher.
type publisherAdapter struct {
	p *notify.Publisher
}

func (a publisherAdapter) PublishRun(ev step.RunEvent) error {
	return a.p.PublishRun(notify.RunEvent{
		Pipeline:    ev.Pipeline,
		RunID:       ev.RunID,
		BuildNumber: ev.BuildNumber,
		Result:      ev.Result,
		Cause:       ev.Cause,
		FinishedAt:  ev.FinishedAt,
	})
}

// buildRunner wires a runner from a validated definition. The daemon calls it
// again after every definition reload.
func (d *dependencies) buildRunner(def *config.Definition) (*engine.Runner, error) {
	pipeline, err := engine.Build(def, step.NewRegistry())
	if err != nil {
		return nil, err
	}

	opts := []engine.RunnerOption{engine.WithMetrics(d.recorder)}
	if d.store != nil {
		opts = append(opts, engine.WithStore(d.store))
	}
	if d.artifacts != nil {
		opts = append(opts, engine.WithArtifacts(d.artifacts))
	}
	if d.publisher != nil {
		opts = append(opts, engine.WithPublisher(publisherAdapter{d.publisher}))
	}
	if g := def.QualityGate; g != nil {
		opts = append(opts, engine.WithGate(&step.GateClient{
			Waiter:               qualitygate.NewWaiter(g.ServerURL, g.ResolveToken(), nil),
			ProjectKey:           g.ProjectKey,
			PollInterval:         parseDuration(g.PollInterval),
			Timeout:              parseDuration(g.Timeout),
			AbortOnTimeout:       g.AbortOnTimeout,
			SuppressResultChange: g.SuppressResultChange,
			Metrics:              d.recorder,
		}))
	}
	return engine.NewRunner(pipeline, opts...), nil
}

func (d *dependencies) close() {
	if d.publisher != nil {
		d.publisher.Close()
	}
	if d.artifacts != nil {
		_ = d.artifacts.Close()
	}
	if d.store != nil {
		_ = d.store.Close()
	}
}

// parseDuration is for fields validation already checked; empty yields zero
// and the consumer applies its default.
func parseDuration(raw string) time.Duration {
	d, _ := time.ParseDuration(raw)
	return d
}
