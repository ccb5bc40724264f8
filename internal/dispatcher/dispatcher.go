// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package dispatcher delivers lifecycle events to the handlers of a charm
// one at a time, keeping the queue of deferred events and the unit status.
package dispatcher

import (
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/mutex/v2"

	"github.com/canonical/appstream-charms/internal/hook"
	"github.com/canonical/appstream-charms/internal/metrics"
	"github.com/canonical/appstream-charms/internal/state"
	"github.com/canonical/appstream-charms/internal/status"
)

var logger = loggo.GetLogger("appstream.dispatcher")

// ErrUnknownEvent is returned for actions the charm does not handle.
const ErrUnknownEvent = errors.ConstError("unknown event")

// Handler handles a single event.
type Handler func(hook.Info) Result

// Handlers maps hook names, as returned by hook.Info.Name, to handlers.
type Handlers map[string]Handler

// Charm is a controller driven by the dispatcher.
type Charm interface {
	// Handlers returns the event handlers of the charm.
	Handlers() Handlers

	// Status derives the unit status from the persisted state.
	Status(state.State) (status.Status, error)
}

// Config holds the dependencies of a Dispatcher.
type Config struct {
	Charm  Charm
	Store  *state.Store
	Status status.Setter

	// LockName names a machine wide mutex held while an event is handled.
	// No lock is taken when it is empty.
	LockName    string
	LockDelay   time.Duration
	LockTimeout time.Duration
	Clock       clock.Clock

	Metrics *metrics.Collector
}

// Validate returns an error if the config cannot be used.
func (config Config) Validate() error {
	if config.Charm == nil {
		return errors.NotValidf("nil Charm")
	}
	if config.Store == nil {
		return errors.NotValidf("nil Store")
	}
	if config.Status == nil {
		return errors.NotValidf("nil Status")
	}
	if config.LockName != "" && config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	return nil
}

// Dispatcher handles events one at a time.
type Dispatcher struct {
	config   Config
	handlers Handlers
}

// New returns a Dispatcher for the given config.
func New(config Config) (*Dispatcher, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if config.LockDelay <= 0 {
		config.LockDelay = 250 * time.Millisecond
	}
	return &Dispatcher{
		config:   config,
		handlers: config.Charm.Handlers(),
	}, nil
}

// Dispatch handles info. Lifecycle events first re-deliver the queued
// deferred events, oldest first; operator actions never do. A handler
// failure is returned both in the result and as the error.
func (d *Dispatcher) Dispatch(info hook.Info) (Result, error) {
	if err := info.Validate(); err != nil {
		return Fail(err), errors.Trace(err)
	}
	release, err := d.acquireLock(info)
	if err != nil {
		return Fail(err), errors.Trace(err)
	}
	defer release()

	if info.Kind == hook.Action {
		return d.runAction(info)
	}

	if err := d.replayDeferred(info); err != nil {
		return Fail(err), errors.Trace(err)
	}
	result, err := d.run(info)
	if err != nil {
		return result, errors.Trace(err)
	}
	if err := d.report(result); err != nil {
		return Fail(err), errors.Trace(err)
	}
	return result, nil
}

func (d *Dispatcher) acquireLock(info hook.Info) (func(), error) {
	if d.config.LockName == "" {
		return func() {}, nil
	}
	releaser, err := mutex.Acquire(mutex.Spec{
		Name:    d.config.LockName,
		Clock:   d.config.Clock,
		Delay:   d.config.LockDelay,
		Timeout: d.config.LockTimeout,
	})
	if err != nil {
		return nil, errors.Annotatef(err, "acquiring lock %q for %s", d.config.LockName, info.Name())
	}
	return releaser.Release, nil
}

func (d *Dispatcher) runAction(info hook.Info) (Result, error) {
	handler, ok := d.handlers[info.Name()]
	if !ok {
		d.config.Metrics.EventDispatched(info.Name(), string(Failed))
		return Fail(ErrUnknownEvent), errors.Annotatef(ErrUnknownEvent, "action %q", info.ActionName)
	}
	logger.Infof("running action %s", info.ActionName)
	result := handler(info)
	if result.Outcome == Deferred {
		result = Fail(errors.Errorf("action %q cannot be deferred", info.ActionName))
	}
	d.config.Metrics.EventDispatched(info.Name(), string(result.Outcome))
	if result.Outcome == Failed {
		logger.Errorf("action %s failed: %v", info.ActionName, result.Err)
		return result, errors.Trace(result.Err)
	}
	return result, nil
}

// replayDeferred re-delivers every queued event other than current. An
// event that applies leaves the queue, one that defers again stays, and
// one that fails stops the replay.
func (d *Dispatcher) replayDeferred(current hook.Info) error {
	st, err := d.config.Store.Get()
	if err != nil {
		return errors.Trace(err)
	}
	for _, info := range st.Deferred {
		if info.Equal(current) {
			continue
		}
		logger.Debugf("re-delivering deferred %s", info.Name())
		result, err := d.run(info)
		if err != nil {
			return errors.Annotatef(err, "re-delivering deferred %s", info.Name())
		}
		if result.Outcome == Deferred {
			logger.Debugf("%s deferred again", info.Name())
		}
	}
	return nil
}

// run delivers a single lifecycle event and updates the deferred queue.
func (d *Dispatcher) run(info hook.Info) (Result, error) {
	var result Result
	if handler, ok := d.handlers[info.Name()]; ok {
		logger.Infof("running %s", info.Name())
		result = handler(info)
	} else {
		logger.Debugf("no handler for %s", info.Name())
		result = Apply()
	}

	var err error
	switch result.Outcome {
	case Applied:
		err = d.updateQueue(info, false)
	case Deferred:
		logger.Infof("deferring %s: %s", info.Name(), result.Reason)
		err = d.updateQueue(info, true)
	default:
		logger.Errorf("%s failed: %v", info.Name(), result.Err)
		err = result.Err
	}
	d.config.Metrics.EventDispatched(info.Name(), string(result.Outcome))
	if err != nil {
		return Fail(err), errors.Trace(err)
	}
	return result, nil
}

// updateQueue adds info to, or removes it from, the deferred queue,
// writing the state only when the queue changes.
func (d *Dispatcher) updateQueue(info hook.Info, deferred bool) error {
	st, err := d.config.Store.Get()
	if err != nil {
		return errors.Trace(err)
	}
	if st.IsDeferred(info) == deferred {
		return nil
	}
	return d.config.Store.Update(func(st *state.State) error {
		if deferred {
			st.Defer(info)
		} else {
			st.Undefer(info)
		}
		return nil
	})
}

// report publishes the unit status after a lifecycle event.
func (d *Dispatcher) report(result Result) error {
	st, err := d.config.Store.Get()
	if err != nil {
		return errors.Trace(err)
	}
	d.config.Metrics.SetDeferred(len(st.Deferred))

	var unitStatus status.Status
	switch {
	case result.Outcome == Deferred && result.Reason == "":
		return nil
	case result.Outcome == Deferred:
		unitStatus = status.NewBlocked(result.Reason)
	default:
		if unitStatus, err = d.config.Charm.Status(st); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(d.config.Status.SetStatus(unitStatus))
}
