// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package signalwatcher provides a worker that stops with an error
// chosen by the first signal it receives.
package signalwatcher

import (
	"os"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/worker/v4/catacomb"
)

var logger = loggo.GetLogger("appstream.worker.signalwatcher")

// ErrTerminated is returned by the default handler.
const ErrTerminated = errors.ConstError("terminated by signal")

// HandlerFunc maps a received signal to the error the worker stops with.
type HandlerFunc func(os.Signal) error

// Handler returns a HandlerFunc that looks the signal up in signalMap and
// falls back to defaultErr.
func Handler(defaultErr error, signalMap map[os.Signal]error) HandlerFunc {
	return func(sig os.Signal) error {
		if err, ok := signalMap[sig]; ok {
			return err
		}
		return defaultErr
	}
}

// Worker waits for a single signal.
type Worker struct {
	catacomb catacomb.Catacomb
	handler  HandlerFunc
	signals  <-chan os.Signal
}

// NewWorker starts a Worker reading signals from sig.
func NewWorker(sig <-chan os.Signal, handler HandlerFunc) (*Worker, error) {
	if sig == nil {
		return nil, errors.NotValidf("nil signal channel")
	}
	if handler == nil {
		handler = Handler(ErrTerminated, nil)
	}
	w := &Worker{handler: handler, signals: sig}
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
	select {
	case sig, ok := <-w.signals:
		if !ok {
			return errors.New("signal channel closed unexpectedly")
		}
		logger.Infof("received %v", sig)
		return w.handler(sig)
	case <-w.catacomb.Dying():
		return w.catacomb.ErrDying()
	}
}
