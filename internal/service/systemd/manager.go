// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package systemd drives the systemd init system, either over dbus or
// through systemctl.
package systemd

import (
	"github.com/coreos/go-systemd/v22/util"
	"github.com/juju/loggo/v2"

	"github.com/canonical/appstream-charms/internal/commands"
)

//go:generate go run go.uber.org/mock/mockgen -package mocks -destination mocks/manager_mock.go github.com/canonical/appstream-charms/internal/service/systemd Manager

var logger = loggo.GetLogger("appstream.service.systemd")

// Manager controls systemd units.
type Manager interface {
	// Enable enables the units and starts them now.
	Enable(units ...string) error

	// Disable disables the units and stops them now.
	Disable(units ...string) error

	// Restart restarts a unit.
	Restart(unit string) error

	// Reload makes systemd re-read unit definitions.
	Reload() error
}

// IsRunning returns whether or not systemd is the local init system.
func IsRunning() bool {
	return util.IsRunningSystemd()
}

// NewManager returns a dbus backed Manager when systemd is the running init
// system, and a systemctl backed one otherwise.
func NewManager(runner commands.Runner) Manager {
	if IsRunning() {
		return NewDBusManager(NewDBusAPI)
	}
	logger.Debugf("systemd is not running, falling back to systemctl")
	return NewCmdline(runner)
}
