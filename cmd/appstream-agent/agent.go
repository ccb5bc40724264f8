// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"io"
	"path/filepath"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"

	"github.com/canonical/appstream-charms/cmd"
	"github.com/canonical/appstream-charms/internal/actions"
	"github.com/canonical/appstream-charms/internal/charmconfig"
	"github.com/canonical/appstream-charms/internal/charms/frontend"
	"github.com/canonical/appstream-charms/internal/charms/generator"
	"github.com/canonical/appstream-charms/internal/commands"
	"github.com/canonical/appstream-charms/internal/converge"
	"github.com/canonical/appstream-charms/internal/dispatcher"
	"github.com/canonical/appstream-charms/internal/files"
	"github.com/canonical/appstream-charms/internal/logging"
	"github.com/canonical/appstream-charms/internal/metrics"
	"github.com/canonical/appstream-charms/internal/packaging"
	"github.com/canonical/appstream-charms/internal/paths"
	"github.com/canonical/appstream-charms/internal/relation"
	"github.com/canonical/appstream-charms/internal/service/systemd"
	"github.com/canonical/appstream-charms/internal/state"
	"github.com/canonical/appstream-charms/internal/status"
)

var logger = loggo.GetLogger("appstream.cmd.agent")

const (
	generatorCharm = "generator"
	frontendCharm  = "frontend"

	// defaultDataDir is joined to the host root.
	defaultDataDir = "var/lib/appstream-agent"

	// lockName names the machine wide lock held while an event is handled.
	lockName = "appstream-agent"

	charmDirEnvKey = "JUJU_CHARM_DIR"
)

// agentFlags are the flags shared by the commands that handle events.
type agentFlags struct {
	charm         string
	root          string
	charmDir      string
	dataDir       string
	configFile    string
	metricsFile   string
	logFile       string
	loggingConfig string
	owner         string
	hookTools     bool
	dryRun        bool
	lockTimeout   time.Duration
}

func (f *agentFlags) SetFlags(fs *gnuflag.FlagSet) {
	fs.StringVar(&f.charm, "charm", "", "Controller to run (generator|frontend)")
	fs.StringVar(&f.root, "root", "/", "Root directory of the managed host")
	fs.StringVar(&f.charmDir, "charm-dir", "", "Directory holding the packaged units and scripts (default $"+charmDirEnvKey+")")
	fs.StringVar(&f.dataDir, "data-dir", "", "Directory holding the agent state (default <root>/"+defaultDataDir+")")
	fs.StringVar(&f.configFile, "config-file", "", "Declared configuration file (default <data-dir>/config.yaml)")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "Write metrics to this node exporter textfile after every event")
	fs.StringVar(&f.logFile, "log-file", "", "Also write logs to this file, rotated")
	fs.StringVar(&f.loggingConfig, "logging-config", logging.DefaultConfig, "Logging configuration")
	fs.StringVar(&f.owner, "owner", files.ServiceUser, "User owning the generated data (empty for the current user)")
	fs.BoolVar(&f.hookTools, "hook-tools", false, "Read configuration and relation data and publish status through the unit agent hook tools")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Print external commands instead of running them")
	fs.DurationVar(&f.lockTimeout, "lock-timeout", 5*time.Minute, "How long to wait for another event to finish")
}

func (f *agentFlags) validate() error {
	switch f.charm {
	case generatorCharm, frontendCharm:
	case "":
		return errors.New("--charm is required")
	default:
		return errors.NotValidf("charm %q", f.charm)
	}
	if f.hookTools && f.configFile != "" {
		return errors.New("--config-file cannot be used with --hook-tools")
	}
	return nil
}

// agent holds everything needed to handle events for one host.
type agent struct {
	paths       paths.Paths
	configFile  string
	metricsFile string
	store       *state.Store
	metrics     *metrics.Collector
	dispatcher  *dispatcher.Dispatcher
	logCloser   io.Closer
}

// newAgent wires the controller selected by f. The returned agent must be
// closed.
func newAgent(ctx *cmd.Context, f *agentFlags) (_ *agent, err error) {
	if err := f.validate(); err != nil {
		return nil, errors.Trace(err)
	}
	logCloser, err := logging.Configure(logging.Config{
		Spec:    f.loggingConfig,
		LogFile: ctx.AbsPath(f.logFile),
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer func() {
		if err != nil {
			_ = logCloser.Close()
		}
	}()

	root := ctx.AbsPath(f.root)
	charmDir := f.charmDir
	if charmDir == "" {
		charmDir = ctx.Getenv(charmDirEnvKey)
	}
	dataDir := f.dataDir
	if dataDir == "" {
		dataDir = filepath.Join(root, defaultDataDir)
	}
	p := paths.NewPaths(root, ctx.AbsPath(charmDir), ctx.AbsPath(dataDir))
	a := &agent{
		paths:       p,
		metricsFile: ctx.AbsPath(f.metricsFile),
		store:       state.NewStore(p.State.StateFile),
		metrics:     metrics.NewCollector(),
		logCloser:   logCloser,
	}

	owner := files.CurrentOwner()
	if f.owner != "" {
		if owner, err = files.LookupOwner(f.owner); err != nil {
			return nil, errors.Trace(err)
		}
	}

	var runner commands.Runner = commands.DefaultRunner{}
	var services systemd.Manager
	if f.dryRun {
		runner = commands.DryRunner{Out: ctx.Stdout}
		services = systemd.NewCmdline(runner)
	} else {
		services = systemd.NewManager(runner)
	}

	var (
		source    charmconfig.Source
		setter    status.Setter
		relations relation.Gateway
		ports     commands.PortOpener
	)
	if f.hookTools {
		source = charmconfig.HookToolSource{Runner: runner}
		setter = &status.CachingSetter{Setter: status.HookToolSetter{Runner: runner}}
		relations = relation.HookToolGateway{Runner: runner}
		ports = commands.HookToolPorts{Runner: runner}
	} else {
		a.configFile = ctx.AbsPath(f.configFile)
		if a.configFile == "" {
			a.configFile = filepath.Join(ctx.AbsPath(dataDir), "config.yaml")
		}
		source = charmconfig.FileSource{Path: a.configFile}
		setter = &status.CachingSetter{Setter: status.FileSetter{Path: p.State.StatusFile}}
		relations = relation.FileGateway{Dir: p.State.RelationsDir}
		ports = commands.LoggedPorts{}
	}

	executor := &converge.Executor{
		Store:    a.store,
		Packages: packaging.NewApt(runner),
		Snaps:    packaging.NewSnap(runner),
		Services: services,
		Ports:    ports,
		Status:   setter,
		Paths:    p,
		Owner:    owner,
		Metrics:  a.metrics,
	}

	var charm dispatcher.Charm
	switch f.charm {
	case generatorCharm:
		charm, err = generator.New(generator.Config{
			Paths:    p,
			Store:    a.store,
			Source:   source,
			Executor: executor,
			Services: services,
			Queue: actions.Queue{
				BaseDir:  p.AppstreamBase(),
				HintsDir: p.HintsDir(),
				Owner:    owner,
			},
			Owner: owner,
		})
	case frontendCharm:
		charm, err = frontend.New(frontend.Config{
			Paths:     p,
			Store:     a.store,
			Source:    source,
			Executor:  executor,
			Services:  services,
			Relations: relations,
		})
	}
	if err != nil {
		return nil, errors.Trace(err)
	}

	a.dispatcher, err = dispatcher.New(dispatcher.Config{
		Charm:       charm,
		Store:       a.store,
		Status:      setter,
		LockName:    lockName,
		LockTimeout: f.lockTimeout,
		Clock:       clock.WallClock,
		Metrics:     a.metrics,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	logger.Debugf("%s controller ready (root %s, state %s)", f.charm, root, p.State.StateFile)
	return a, nil
}

// writeMetrics exports the collected metrics if a textfile was requested.
func (a *agent) writeMetrics() {
	if a.metricsFile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.metricsFile); err != nil {
		logger.Warningf("cannot write metrics: %v", err)
	}
}

// Close flushes the metrics and releases the log file.
func (a *agent) Close() error {
	a.writeMetrics()
	return errors.Trace(a.logCloser.Close())
}

// describeResult renders the outcome of a dispatched event.
func describeResult(name string, result dispatcher.Result) string {
	switch result.Outcome {
	case dispatcher.Deferred:
		if result.Reason != "" {
			return name + ": deferred: " + result.Reason
		}
		return name + ": deferred"
	case dispatcher.Failed:
		return name + ": failed: " + result.Err.Error()
	}
	return name + ": " + string(result.Outcome)
}
