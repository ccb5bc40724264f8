// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package systemd

import (
	"github.com/juju/errors"

	"github.com/canonical/appstream-charms/internal/commands"
)

const executable = "systemctl"

// Cmdline manages units by running systemctl.
type Cmdline struct {
	runner commands.Runner
}

// NewCmdline returns a Cmdline using runner to invoke systemctl.
func NewCmdline(runner commands.Runner) *Cmdline {
	return &Cmdline{runner: runner}
}

// Enable implements Manager.
func (c *Cmdline) Enable(units ...string) error {
	for _, unit := range units {
		if err := c.run("enable", "--quiet", "--now", unit); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Disable implements Manager.
func (c *Cmdline) Disable(units ...string) error {
	for _, unit := range units {
		if err := c.run("disable", "--quiet", "--now", unit); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Restart implements Manager.
func (c *Cmdline) Restart(unit string) error {
	return errors.Trace(c.run("restart", unit))
}

// Reload implements Manager.
func (c *Cmdline) Reload() error {
	return errors.Trace(c.run("daemon-reload"))
}

func (c *Cmdline) run(args ...string) error {
	if _, err := c.runner.RunCommand(executable, args...); err != nil {
		return errors.Annotatef(err, "%s %s", executable, args[0])
	}
	return nil
}
