package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/buildpipe/internal/logfields"
)

// DefinitionWatcher monitors the pipeline definition file and triggers a
// debounced reload when it changes. Editors often replace files with a
// rename/create pair, so the containing directory is watched rather than the
// file itself.
type DefinitionWatcher struct {
	path         string
	reload       func(ctx context.Context) error
	watcher      *fsnotify.Watcher
	mu           sync.Mutex
	stopChan     chan struct{}
	reloadChan   chan struct{}
	debounceTime time.Duration
}

// NewDefinitionWatcher creates a watcher for the definition at path. reload is
// invoked after changes settle.
func NewDefinitionWatcher(path string, reload func(ctx context.Context) error) (*DefinitionWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to resolve definition path: %w", err)
	}

	return &DefinitionWatcher{
		path:         absPath,
		reload:       reload,
		watcher:      watcher,
		stopChan:     make(chan struct{}),
		reloadChan:   make(chan struct{}, 1),
		debounceTime: 2 * time.Second,
	}, nil
}

// Start begins monitoring the definition file.
func (w *DefinitionWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch definition directory %s: %w", dir, err)
	}

	slog.Info("Starting definition watcher", slog.String("path", w.path))

	go w.watchLoop(ctx)
	go w.reloadLoop(ctx)
	return nil
}

// Stop stops the watcher.
func (w *DefinitionWatcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	slog.Info("Stopping definition watcher")
	close(w.stopChan)
	if err := w.watcher.Close(); err != nil {
		slog.Error("Error closing file watcher", logfields.Error(err))
	}
	return nil
}

func (w *DefinitionWatcher) watchLoop(ctx context.Context) {
	file := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != file {
				continue
			}
			switch {
			case event.Op.Has(fsnotify.Write), event.Op.Has(fsnotify.Create), event.Op.Has(fsnotify.Rename):
				slog.Debug("Definition change detected", slog.String("file", event.Name), slog.String("op", event.Op.String()))
				w.triggerReload()
			case event.Op.Has(fsnotify.Remove):
				slog.Warn("Definition file removed", slog.String("file", event.Name))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Definition watcher error", logfields.Error(err))
		}
	}
}

// reloadLoop collapses bursts of change events into one reload.
func (w *DefinitionWatcher) reloadLoop(ctx context.Context) {
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.stopChan:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.reloadChan:
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounceTime, func() {
				if err := w.reload(ctx); err != nil {
					slog.Error("Failed to reload definition", logfields.Error(err))
				}
			})
		}
	}
}

func (w *DefinitionWatcher) triggerReload() {
	select {
	case w.reloadChan <- struct{}{}:
	default:
		// reload already pending
	}
}
