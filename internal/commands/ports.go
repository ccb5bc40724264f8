// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package commands

import (
	"fmt"

	"github.com/juju/errors"
)

// PortOpener exposes a port of the unit to the outside world.
type PortOpener interface {
	OpenPort(port int, protocol string) error
}

// HookToolPorts opens ports with the open-port hook tool.
type HookToolPorts struct {
	Runner Runner
}

// OpenPort is part of the PortOpener interface.
func (p HookToolPorts) OpenPort(port int, protocol string) error {
	if _, err := p.Runner.RunCommand("open-port", fmt.Sprintf("%d/%s", port, protocol)); err != nil {
		return errors.Annotatef(err, "opening port %d/%s", port, protocol)
	}
	return nil
}

// LoggedPorts records port openings in the log only. It serves hosts
// that are not managed by a unit agent.
type LoggedPorts struct{}

// OpenPort is part of the PortOpener interface.
func (LoggedPorts) OpenPort(port int, protocol string) error {
	logger.Infof("port %d/%s should be opened", port, protocol)
	return nil
}
