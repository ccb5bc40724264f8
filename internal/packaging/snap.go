// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package packaging

import (
	"regexp"

	"github.com/juju/errors"

	"github.com/canonical/appstream-charms/internal/commands"
)

const (
	// SnapCommand is the snap binary.
	SnapCommand = "snap"

	// DefaultChannel is the channel used when neither the snap nor the
	// configuration names one.
	DefaultChannel = "stable"
)

// snapNameRe is derived from the snapcraft.yaml schema, but does not test
// for "--".
var snapNameRe = regexp.MustCompile("^[a-z0-9][a-z0-9-]{0,39}[^-]$")

// ValidateSnapName checks that name is a valid snap name.
func ValidateSnapName(name string) error {
	if !snapNameRe.MatchString(name) {
		return errors.NotValidf("snap name %q", name)
	}
	return nil
}

// Snap installs and refreshes snaps with the snap command.
type Snap struct {
	runner commands.Runner
}

// NewSnap returns a Snap using runner to invoke snap.
func NewSnap(runner commands.Runner) *Snap {
	return &Snap{runner: runner}
}

// Install installs the named snap tracking channel.
func (s *Snap) Install(name, channel string) error {
	return s.run("install", name, channel)
}

// Refresh switches an installed snap to channel.
func (s *Snap) Refresh(name, channel string) error {
	return s.run("refresh", name, channel)
}

func (s *Snap) run(verb, name, channel string) error {
	if err := ValidateSnapName(name); err != nil {
		return errors.Trace(err)
	}
	if channel == "" {
		channel = DefaultChannel
	}
	logger.Debugf("snap %s %s (channel %s)", verb, name, channel)
	if _, err := s.runner.RunCommand(SnapCommand, verb, "--channel", channel, name); err != nil {
		return errors.Annotatef(err, "snap %s %q", verb, name)
	}
	return nil
}
