// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package configwatcher provides a worker that turns writes to the
// declared configuration file into config-changed events.
package configwatcher

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/worker/v4/catacomb"

	"github.com/canonical/appstream-charms/internal/hook"
)

var logger = loggo.GetLogger("appstream.worker.configwatcher")

// changeOps are the operations that may leave new content at the path.
// Atomic writers rename a temporary file into place.
const changeOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename

// DefaultQuietPeriod is used when Config.QuietPeriod is not set.
const DefaultQuietPeriod = 250 * time.Millisecond

// Config holds the configuration of a Worker.
type Config struct {
	// Path is the configuration file to watch. It need not exist yet.
	Path string

	// Out receives a config-changed event once the file has not changed
	// for QuietPeriod. Changes made before the event is delivered are
	// folded into it.
	Out chan<- hook.Info

	Clock       clock.Clock
	QuietPeriod time.Duration
}

// Validate returns an error if the config cannot be used.
func (config Config) Validate() error {
	if config.Path == "" {
		return errors.NotValidf("empty Path")
	}
	if config.Out == nil {
		return errors.NotValidf("nil Out")
	}
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if config.QuietPeriod < 0 {
		return errors.NotValidf("negative QuietPeriod")
	}
	return nil
}

// Worker watches a configuration file.
type Worker struct {
	catacomb catacomb.Catacomb
	config   Config
	watcher  *fsnotify.Watcher
}

// NewWorker starts a Worker. The directory holding the file is watched,
// so the file may be created, replaced or removed while it runs.
func NewWorker(config Config) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if config.QuietPeriod == 0 {
		config.QuietPeriod = DefaultQuietPeriod
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Annotate(err, "creating file watcher")
	}
	dir := filepath.Dir(config.Path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, errors.Annotatef(err, "watching %q", dir)
	}
	w := &Worker{config: config, watcher: watcher}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &w.catacomb,
		Work: w.loop,
	}); err != nil {
		_ = watcher.Close()
		return nil, errors.Trace(err)
	}
	return w, nil
}

// Kill is part of the worker.Worker interface.
func (w *Worker) Kill() {
	w.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *Worker) Wait() error {
	return w.catacomb.Wait()
}

func (w *Worker) loop() error {
	defer w.watcher.Close()

	name := filepath.Clean(w.config.Path)
	var (
		quiet <-chan time.Time
		out   chan<- hook.Info
	)
	for {
		select {
		case <-w.catacomb.Dying():
			return w.catacomb.ErrDying()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("file watcher closed")
			}
			if filepath.Clean(event.Name) != name || event.Op&changeOps == 0 {
				continue
			}
			logger.Debugf("%s: %s", event.Op, event.Name)
			// A single write may be seen as several operations.
			out = nil
			quiet = w.config.Clock.After(w.config.QuietPeriod)
		case <-quiet:
			quiet = nil
			out = w.config.Out
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("file watcher closed")
			}
			return errors.Annotatef(err, "watching %q", w.config.Path)
		case out <- hook.Info{Kind: hook.ConfigChanged}:
			logger.Infof("configuration file %s changed", w.config.Path)
			out = nil
		}
	}
}
