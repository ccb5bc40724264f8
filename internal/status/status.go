// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package status reports the workload status of a unit.
package status

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/utils/v4"
	"gopkg.in/yaml.v3"

	"github.com/canonical/appstream-charms/internal/commands"
)

var logger = loggo.GetLogger("appstream.status")

// Kind is the kind of a workload status.
type Kind string

const (
	// Maintenance is shown while a convergence action runs.
	Maintenance Kind = "maintenance"

	// Blocked is shown while a precondition of the unit is unmet.
	Blocked Kind = "blocked"

	// Active is shown when the unit is serving its purpose.
	Active Kind = "active"
)

// Status is a unit status. It is purely output and is never read back to
// take decisions.
type Status struct {
	Kind    Kind   `yaml:"status"`
	Message string `yaml:"message,omitempty"`
}

// NewActive returns an Active status.
func NewActive() Status {
	return Status{Kind: Active}
}

// NewBlocked returns a Blocked status with the given reason.
func NewBlocked(reason string) Status {
	return Status{Kind: Blocked, Message: reason}
}

// NewMaintenance returns a Maintenance status with the given reason.
func NewMaintenance(reason string) Status {
	return Status{Kind: Maintenance, Message: reason}
}

func (s Status) String() string {
	if s.Message == "" {
		return string(s.Kind)
	}
	return string(s.Kind) + ": " + s.Message
}

// Setter publishes a unit status.
type Setter interface {
	SetStatus(Status) error
}

// HookToolSetter publishes status through the status-set hook tool.
type HookToolSetter struct {
	Runner commands.Runner
}

// SetStatus implements Setter.
func (s HookToolSetter) SetStatus(st Status) error {
	_, err := s.Runner.RunCommand("status-set", string(st.Kind), st.Message)
	return errors.Trace(err)
}

// FileSetter records the status in a YAML file.
type FileSetter struct {
	Path string
}

// SetStatus implements Setter.
func (s FileSetter) SetStatus(st Status) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return errors.Trace(err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return errors.Trace(err)
	}
	return errors.Annotatef(utils.AtomicWriteFile(s.Path, data, 0644), "writing status %q", s.Path)
}

// ReadFile reads a status written by FileSetter.
func ReadFile(path string) (Status, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Status{}, errors.NotFoundf("status file %q", path)
	} else if err != nil {
		return Status{}, errors.Trace(err)
	}
	var st Status
	if err := yaml.Unmarshal(data, &st); err != nil {
		return Status{}, errors.Annotatef(err, "reading status %q", path)
	}
	return st, nil
}

// CachingSetter forwards a status only when it differs from the last one
// forwarded.
type CachingSetter struct {
	Setter Setter

	last *Status
}

// SetStatus implements Setter.
func (s *CachingSetter) SetStatus(st Status) error {
	if s.last != nil && *s.last == st {
		logger.Tracef("status unchanged: %v", st)
		return nil
	}
	if err := s.Setter.SetStatus(st); err != nil {
		return errors.Trace(err)
	}
	logger.Infof("status set to %v", st)
	s.last = &st
	return nil
}
