// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/worker/v4"

	"github.com/canonical/appstream-charms/cmd"
	"github.com/canonical/appstream-charms/internal/dispatcher"
	"github.com/canonical/appstream-charms/internal/hook"
	"github.com/canonical/appstream-charms/internal/worker/configwatcher"
	"github.com/canonical/appstream-charms/internal/worker/signalwatcher"
)

const runDoc = `
Dispatch events read from standard input, one JSON encoded event per line,
until the input ends:

    {"kind": "install"}
    {"kind": "storage-attached", "storage": "appstream", "storage-location": "/srv/appstream"}
    {"kind": "relation-joined", "relation": "rsync", "remote-unit": "appstream-generator/0"}
    {"kind": "action", "action": "forget", "params": {"packages": "[\"gimp\"]"}}

With --watch-config a config-changed event is dispatched whenever the
configuration file is written, and the command keeps running after the
input ends. SIGINT or SIGTERM stop the command once the event being
handled is finished.
`

// notifyStop relays the signals that stop the run command to ch. The
// returned function stops the relay.
var notifyStop = func(ch chan<- os.Signal) func() {
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	return func() { signal.Stop(ch) }
}

type runCommand struct {
	cmd.CommandBase
	agentFlags

	watchConfig bool
}

func (c *runCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:        "run",
		Purpose:     "dispatch a stream of events",
		Doc:         runDoc,
		Intersperse: true,
	}
}

func (c *runCommand) SetFlags(f *gnuflag.FlagSet) {
	c.agentFlags.SetFlags(f)
	f.BoolVar(&c.watchConfig, "watch-config", false, "Dispatch config-changed when the configuration file is written")
}

func (c *runCommand) Init(args []string) error {
	if c.watchConfig && c.hookTools {
		return errors.New("--watch-config cannot be used with --hook-tools")
	}
	return cmd.CheckEmpty(args)
}

func (c *runCommand) Run(ctx *cmd.Context) error {
	a, err := newAgent(ctx, &c.agentFlags)
	if err != nil {
		return errors.Trace(err)
	}
	defer a.Close()

	var changes chan hook.Info
	if c.watchConfig {
		changes = make(chan hook.Info)
		watcher, err := configwatcher.NewWorker(configwatcher.Config{
			Path:  a.configFile,
			Out:   changes,
			Clock: clock.WallClock,
		})
		if err != nil {
			return errors.Trace(err)
		}
		defer func() {
			if err := worker.Stop(watcher); err != nil {
				logger.Errorf("config watcher: %v", err)
			}
		}()
	}

	events := make(chan hook.Info)
	var failed int
	w, err := dispatcher.NewWorker(dispatcher.WorkerConfig{
		Dispatcher: a.dispatcher,
		Events:     events,
		OnResult: func(info hook.Info, result dispatcher.Result, _ error) {
			if result.Outcome == dispatcher.Failed {
				failed++
			}
			fmt.Fprintln(ctx.Stdout, describeResult(info.Name(), result))
			a.writeMetrics()
		},
	})
	if err != nil {
		return errors.Trace(err)
	}

	sigCh := make(chan os.Signal, 1)
	defer notifyStop(sigCh)()
	signals, err := signalwatcher.NewWorker(sigCh, nil)
	if err != nil {
		return errors.Trace(err)
	}
	defer worker.Stop(signals)
	stopped := make(chan error, 1)
	go func() { stopped <- signals.Wait() }()

	// The loop ends once there is nothing left to deliver: the input is
	// exhausted and no config watcher runs, or a signal arrived.
	input := readEvents(ctx.Stdin)
	for input != nil || changes != nil {
		var info hook.Info
		select {
		case err := <-stopped:
			logger.Infof("stopping: %v", err)
			input, changes = nil, nil
			continue
		case line, ok := <-input:
			if !ok {
				if changes != nil {
					logger.Infof("input ended, watching %s", a.configFile)
				}
				input = nil
				continue
			}
			if line.err != nil {
				fmt.Fprintf(ctx.Stderr, "ERROR %v\n", line.err)
				continue
			}
			info = line.info
		case info = <-changes:
		}
		events <- info
	}
	close(events)
	if err := w.Wait(); err != nil {
		return errors.Trace(err)
	}
	if failed > 0 {
		return errors.Errorf("%d event(s) failed", failed)
	}
	return nil
}

type inputEvent struct {
	info hook.Info
	err  error
}

// readEvents decodes newline delimited JSON events from r. The returned
// channel is closed when r is exhausted.
func readEvents(r io.Reader) <-chan inputEvent {
	out := make(chan inputEvent)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			var ev inputEvent
			if err := json.Unmarshal([]byte(line), &ev.info); err != nil {
				ev.err = errors.Annotatef(err, "line %d", lineNo)
			} else if err := ev.info.Validate(); err != nil {
				ev.err = errors.Annotatef(err, "line %d", lineNo)
			}
			out <- ev
		}
		if err := scanner.Err(); err != nil {
			out <- inputEvent{err: errors.Annotate(err, "reading events")}
		}
	}()
	return out
}
