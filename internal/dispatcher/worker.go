// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package dispatcher

import (
	"github.com/juju/errors"
	"github.com/juju/worker/v4/catacomb"

	"github.com/canonical/appstream-charms/internal/hook"
)

// ResultFunc is called with the outcome of every dispatched event.
type ResultFunc func(hook.Info, Result, error)

// WorkerConfig holds the dependencies of a Worker.
type WorkerConfig struct {
	Dispatcher *Dispatcher

	// Events delivers the events to dispatch. The worker stops cleanly
	// when it is closed.
	Events <-chan hook.Info

	// OnResult is optional.
	OnResult ResultFunc
}

// Validate returns an error if the config cannot be used.
func (config WorkerConfig) Validate() error {
	if config.Dispatcher == nil {
		return errors.NotValidf("nil Dispatcher")
	}
	if config.Events == nil {
		return errors.NotValidf("nil Events")
	}
	return nil
}

// Worker dispatches events from a channel, one at a time, until the
// channel is closed or the worker is killed. A failed event does not stop
// the worker; it is reported through OnResult.
type Worker struct {
	catacomb catacomb.Catacomb
	config   WorkerConfig
}

// NewWorker starts a Worker.
func NewWorker(config WorkerConfig) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	w := &Worker{config: config}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &w.catacomb,
		Work: w.loop,
	}); err != nil {
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
	for {
		select {
		case <-w.catacomb.Dying():
			return w.catacomb.ErrDying()
		case info, ok := <-w.config.Events:
			if !ok {
				logger.Debugf("event source closed")
				return nil
			}
			result, err := w.config.Dispatcher.Dispatch(info)
			if err != nil {
				logger.Errorf("dispatching %s: %v", info.Name(), err)
			}
			if w.config.OnResult != nil {
				w.config.OnResult(info, result, err)
			}
		}
	}
}
