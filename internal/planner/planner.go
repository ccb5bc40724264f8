// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package planner computes the ordered convergence actions that bring a
// host from its recorded state to the state implied by its declared
// configuration.
package planner

import (
	"slices"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/proxy"

	"github.com/canonical/appstream-charms/internal/charmconfig"
	"github.com/canonical/appstream-charms/internal/state"
)

var logger = loggo.GetLogger("appstream.planner")

// ActionKind identifies a convergence action.
type ActionKind string

const (
	InstallPackages  ActionKind = "install-packages"
	InstallSnaps     ActionKind = "install-snaps"
	ConfigureProxy   ActionKind = "configure-proxy"
	LinkServiceUnits ActionKind = "link-service-units"
	LinkScripts      ActionKind = "link-scripts"
	ExportRsync      ActionKind = "export-rsync"
	WriteConfig      ActionKind = "write-config"
)

// SnapChange is a snap to install or refresh.
type SnapChange struct {
	Name    string
	Channel string

	// Refresh is true when the snap is installed at another channel.
	Refresh bool
}

// Export is a named rsync module serving a directory.
type Export struct {
	Name string
	Path string
}

// Action is a single convergence step. Only the fields relevant to Kind
// are set.
type Action struct {
	Kind ActionKind

	Packages []string
	Snaps    []SnapChange
	Proxy    proxy.Settings
	Units    []string
	Exports  []Export

	// Config is the rendered generator configuration.
	Config []byte
}

// Target is the convergence target of a unit, derived from its declared
// configuration. It is computed afresh for every pass and never stored.
type Target struct {
	// Declared is the declared configuration the target derives from.
	Declared *charmconfig.Config

	// Packages are the apt packages that must be installed.
	Packages set.Strings

	// Snaps maps snaps that must be installed to their channel. An empty
	// channel means the configured default channel.
	Snaps map[string]string

	// ManageProxy writes the proxy environment from Declared.
	ManageProxy bool

	// ServiceUnits are the packaged unit definitions to link into place.
	ServiceUnits []string

	// LinkScripts links the packaged helper scripts into place.
	LinkScripts bool

	// Exports are the rsync modules to export.
	Exports []Export

	// GenerateConfig writes the generator configuration. It requires the
	// mirror, hostname and suite map to be declared.
	GenerateConfig bool
}

// Plan returns the ordered actions needed to converge st to target.
// Packages are installed before snaps, and all file and unit set up comes
// after both. Actions already satisfied according to st are omitted.
//
// If the target needs configuration that is not declared,
// charmconfig.ErrIncomplete is returned and no actions are planned.
func Plan(target Target, st state.State) ([]Action, error) {
	declared := target.Declared
	if declared == nil {
		declared = &charmconfig.Config{DefaultSnapChannel: charmconfig.DefaultSnapChannel}
	}

	var generated []byte
	if target.GenerateConfig {
		settings, err := declared.Generator()
		if err != nil {
			return nil, errors.Trace(err)
		}
		if generated, err = RenderGeneratorConfig(settings); err != nil {
			return nil, errors.Trace(err)
		}
	}

	var actions []Action
	if missing := target.Packages.Difference(st.Packages()); !missing.IsEmpty() {
		actions = append(actions, Action{Kind: InstallPackages, Packages: missing.SortedValues()})
	} else {
		logger.Debugf("no packages to install")
	}

	if changes := snapChanges(target.Snaps, declared.DefaultSnapChannel, st); len(changes) > 0 {
		actions = append(actions, Action{Kind: InstallSnaps, Snaps: changes})
	} else {
		logger.Debugf("no snaps to install")
	}

	if target.ManageProxy {
		actions = append(actions, Action{Kind: ConfigureProxy, Proxy: declared.Proxy})
	}
	if len(target.ServiceUnits) > 0 {
		actions = append(actions, Action{Kind: LinkServiceUnits, Units: slices.Clone(target.ServiceUnits)})
	}
	if target.LinkScripts {
		actions = append(actions, Action{Kind: LinkScripts})
	}
	if len(target.Exports) > 0 {
		actions = append(actions, Action{Kind: ExportRsync, Exports: slices.Clone(target.Exports)})
	}
	if target.GenerateConfig {
		actions = append(actions, Action{Kind: WriteConfig, Config: generated})
	}
	return actions, nil
}

func snapChanges(wanted map[string]string, defaultChannel string, st state.State) []SnapChange {
	if defaultChannel == "" {
		defaultChannel = charmconfig.DefaultSnapChannel
	}
	names := set.NewStrings()
	for name := range wanted {
		names.Add(name)
	}
	var changes []SnapChange
	for _, name := range names.SortedValues() {
		channel := wanted[name]
		if channel == "" {
			channel = defaultChannel
		}
		installed, ok := st.SnapChannel(name)
		if ok && installed == channel {
			continue
		}
		changes = append(changes, SnapChange{Name: name, Channel: channel, Refresh: ok})
	}
	return changes
}
