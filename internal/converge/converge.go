// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package converge applies planned convergence actions to the host,
// recording each one in the state store once it has succeeded.
package converge

import (
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/naturalsort"

	"github.com/canonical/appstream-charms/internal/commands"
	"github.com/canonical/appstream-charms/internal/files"
	"github.com/canonical/appstream-charms/internal/metrics"
	"github.com/canonical/appstream-charms/internal/paths"
	"github.com/canonical/appstream-charms/internal/planner"
	"github.com/canonical/appstream-charms/internal/service/systemd"
	"github.com/canonical/appstream-charms/internal/state"
	"github.com/canonical/appstream-charms/internal/status"
)

var logger = loggo.GetLogger("appstream.converge")

const (
	// RsyncService is the unit restarted when exports change.
	RsyncService = "rsync"

	// RsyncPort is opened once something is exported.
	RsyncPort = 873
)

// PackageInstaller installs apt packages.
type PackageInstaller interface {
	Install(packages ...string) error
}

// SnapInstaller installs and refreshes snaps.
type SnapInstaller interface {
	Install(name, channel string) error
	Refresh(name, channel string) error
}

// Executor runs convergence actions against the host.
type Executor struct {
	Store    *state.Store
	Packages PackageInstaller
	Snaps    SnapInstaller
	Services systemd.Manager
	Ports    commands.PortOpener
	Status   status.Setter
	Paths    paths.Paths
	Owner    files.Owner
	Metrics  *metrics.Collector
}

// Converge plans the actions needed to reach target from the recorded
// state and applies them. charmconfig.ErrIncomplete is returned, with
// nothing applied, when target needs configuration that is not declared.
func (e *Executor) Converge(target planner.Target) error {
	st, err := e.Store.Get()
	if err != nil {
		return errors.Trace(err)
	}
	actions, err := planner.Plan(target, st)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(e.Apply(actions))
}

// Apply runs actions in order. The first failure aborts the remaining
// actions; the state of every action applied before it is already
// persisted.
func (e *Executor) Apply(actions []planner.Action) error {
	for _, action := range actions {
		if err := e.apply(action); err != nil {
			return errors.Annotatef(err, "%s", action.Kind)
		}
		e.Metrics.ActionApplied(string(action.Kind))
	}
	return nil
}

func (e *Executor) apply(action planner.Action) error {
	switch action.Kind {
	case planner.InstallPackages:
		return e.installPackages(action.Packages)
	case planner.InstallSnaps:
		return e.installSnaps(action.Snaps)
	case planner.ConfigureProxy:
		return files.WriteProxyEnvironment(e.Paths.System.EnvironmentFile, action.Proxy)
	case planner.LinkServiceUnits:
		return e.linkServiceUnits(action.Units)
	case planner.LinkScripts:
		return files.LinkScripts(e.Paths.ScriptsDir(), e.Paths.Home)
	case planner.ExportRsync:
		return e.exportRsync(action.Exports)
	case planner.WriteConfig:
		logger.Infof("writing generator config to %s", e.Paths.GeneratorConfigFile())
		return files.WriteGeneratedConfig(e.Paths.GeneratorConfigFile(), action.Config, e.Owner)
	}
	return errors.NotValidf("action kind %q", action.Kind)
}

func (e *Executor) installPackages(packages []string) error {
	if len(packages) == 0 {
		return nil
	}
	sorted := append([]string(nil), packages...)
	naturalsort.Sort(sorted)
	pkgs := strings.Join(sorted, ", ")
	if err := e.Status.SetStatus(status.NewMaintenance("Installing " + pkgs)); err != nil {
		return errors.Trace(err)
	}
	logger.Infof("installing apt package(s) %s", pkgs)
	if err := e.Packages.Install(sorted...); err != nil {
		return errors.Trace(err)
	}
	return e.Store.Update(func(st *state.State) error {
		st.AddPackages(sorted...)
		return nil
	})
}

// SnapStatusMessage summarises snap changes by verb.
func SnapStatusMessage(changes []planner.SnapChange) string {
	var install, refresh []string
	for _, change := range changes {
		if change.Refresh {
			refresh = append(refresh, change.Name+"/"+change.Channel)
		} else {
			install = append(install, change.Name)
		}
	}
	var parts []string
	if len(install) > 0 {
		parts = append(parts, "Installing snap packages: "+strings.Join(install, ", "))
	}
	if len(refresh) > 0 {
		parts = append(parts, "Refreshing snap packages: "+strings.Join(refresh, ", "))
	}
	return strings.Join(parts, "; ")
}

func (e *Executor) installSnaps(changes []planner.SnapChange) error {
	if len(changes) == 0 {
		return nil
	}
	msg := SnapStatusMessage(changes)
	if err := e.Status.SetStatus(status.NewMaintenance(msg)); err != nil {
		return errors.Trace(err)
	}
	logger.Infof("%s", msg)
	for _, change := range changes {
		var err error
		if change.Refresh {
			err = e.Snaps.Refresh(change.Name, change.Channel)
		} else {
			err = e.Snaps.Install(change.Name, change.Channel)
		}
		if err != nil {
			return errors.Trace(err)
		}
		if err := e.Store.Update(func(st *state.State) error {
			st.SetSnap(change.Name, change.Channel)
			return nil
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (e *Executor) linkServiceUnits(units []string) error {
	changed, err := files.LinkUnits(e.Paths.System.SystemdUnitDir, e.Paths.UnitsDir(), units)
	if err != nil {
		return errors.Trace(err)
	}
	if !changed {
		logger.Debugf("service units already in place")
		return nil
	}
	return errors.Trace(e.Services.Reload())
}

func (e *Executor) exportRsync(exports []planner.Export) error {
	cfg := files.RsyncConfig{
		ConfFile:   e.Paths.System.RsyncConf,
		IncludeDir: e.Paths.System.RsyncIncludeDir,
		User:       files.ServiceUser,
		Group:      files.ServiceUser,
	}
	for _, export := range exports {
		cfg.Exports = append(cfg.Exports, files.RsyncExport{Name: export.Name, Path: export.Path})
	}
	written, err := files.EnsureRsyncExports(cfg)
	if err != nil || !written {
		return errors.Trace(err)
	}
	if err := e.Services.Restart(RsyncService); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(e.Ports.OpenPort(RsyncPort, "tcp"))
}
