// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package commands invokes the external processes the agent depends on:
// package managers, the init system and hook tools.
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/utils/v4"
)

//go:generate go run go.uber.org/mock/mockgen -package mocks -destination mocks/commands_mock.go github.com/canonical/appstream-charms/internal/commands Runner,PortOpener

var logger = loggo.GetLogger("appstream.commands")

// Runner runs an external command to completion. A non-zero exit status
// is returned as an error.
type Runner interface {
	RunCommand(name string, args ...string) (string, error)
}

// DefaultRunner runs commands on the local host.
type DefaultRunner struct{}

// RunCommand is part of the Runner interface.
func (DefaultRunner) RunCommand(name string, args ...string) (string, error) {
	logger.Debugf("running %s", CommandLine(name, args...))
	out, err := utils.RunCommand(name, args...)
	if err != nil {
		return out, errors.Annotatef(err, "running %s", CommandLine(name, args...))
	}
	return out, nil
}

// CommandLine renders a command for log and error messages.
func CommandLine(name string, args ...string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

// DryRunner prints the commands it is asked to run instead of running
// them. Every command succeeds with no output.
type DryRunner struct {
	Out io.Writer
}

// RunCommand is part of the Runner interface.
func (r DryRunner) RunCommand(name string, args ...string) (string, error) {
	_, err := fmt.Fprintln(r.Out, CommandLine(name, args...))
	return "", errors.Trace(err)
}
