// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package packaging installs apt packages and snaps through their command
// line tools.
package packaging

import (
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/canonical/appstream-charms/internal/commands"
)

var logger = loggo.GetLogger("appstream.packaging")

const aptGet = "apt-get"

// aptInstallArgs keeps existing configuration files when a package ships a
// newer version of one.
var aptInstallArgs = []string{
	"--assume-yes",
	"--option=Dpkg::Options::=--force-confold",
	"install",
}

// Apt installs packages with apt-get.
type Apt struct {
	runner commands.Runner
}

// NewApt returns an Apt using runner to invoke apt-get.
func NewApt(runner commands.Runner) *Apt {
	return &Apt{runner: runner}
}

// Install installs all of packages with a single apt-get invocation.
func (a *Apt) Install(packages ...string) error {
	if len(packages) == 0 {
		return nil
	}
	args := append(append([]string{}, aptInstallArgs...), packages...)
	if _, err := a.runner.RunCommand(aptGet, args...); err != nil {
		return errors.Annotatef(err, "installing apt packages %v", packages)
	}
	return nil
}
