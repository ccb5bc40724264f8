// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/naturalsort"

	"github.com/canonical/appstream-charms/cmd"
	"github.com/canonical/appstream-charms/internal/paths"
	"github.com/canonical/appstream-charms/internal/state"
	"github.com/canonical/appstream-charms/internal/status"
)

type statusCommand struct {
	cmd.CommandBase

	root    string
	dataDir string
	out     cmd.Output
}

func (c *statusCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:        "status",
		Purpose:     "show the recorded state of the host",
		Intersperse: true,
	}
}

func (c *statusCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.root, "root", "/", "Root directory of the managed host")
	f.StringVar(&c.dataDir, "data-dir", "", "Directory holding the agent state (default <root>/"+defaultDataDir+")")
	c.out.AddFlags(f, "tabular", map[string]cmd.Formatter{
		"yaml":    cmd.FormatYaml,
		"json":    cmd.FormatJson,
		"tabular": formatStatusTabular,
	})
}

// statusReport is the recorded state of a host as shown to the operator.
type statusReport struct {
	Status                      string            `yaml:"status,omitempty" json:"status,omitempty"`
	Message                     string            `yaml:"message,omitempty" json:"message,omitempty"`
	Version                     int64             `yaml:"version" json:"version"`
	Packages                    []string          `yaml:"packages,omitempty" json:"packages,omitempty"`
	Snaps                       map[string]string `yaml:"snaps,omitempty" json:"snaps,omitempty"`
	StorageAttached             bool              `yaml:"storage-attached" json:"storage-attached"`
	PeerAddress                 string            `yaml:"peer-address,omitempty" json:"peer-address,omitempty"`
	PeerCoordinationEstablished bool              `yaml:"peer-coordination-established" json:"peer-coordination-established"`
	ServicesEnabled             bool              `yaml:"services-enabled" json:"services-enabled"`
	Deferred                    []string          `yaml:"deferred,omitempty" json:"deferred,omitempty"`
}

func (c *statusCommand) Run(ctx *cmd.Context) error {
	root := ctx.AbsPath(c.root)
	dataDir := c.dataDir
	if dataDir == "" {
		dataDir = filepath.Join(root, defaultDataDir)
	}
	p := paths.NewPaths(root, "", ctx.AbsPath(dataDir))

	st, err := state.NewStore(p.State.StateFile).Get()
	if err != nil {
		return errors.Trace(err)
	}
	report := newStatusReport(st)

	unitStatus, err := status.ReadFile(p.State.StatusFile)
	if err != nil && !errors.Is(err, errors.NotFound) {
		return errors.Trace(err)
	}
	report.Status = string(unitStatus.Kind)
	report.Message = unitStatus.Message
	return errors.Trace(c.out.Write(ctx, report))
}

func newStatusReport(st state.State) *statusReport {
	report := &statusReport{
		Version:                     st.Version,
		Packages:                    st.InstalledPackages,
		Snaps:                       st.InstalledSnaps,
		StorageAttached:             st.StorageAttached,
		PeerAddress:                 st.PeerAddress,
		PeerCoordinationEstablished: st.PeerCoordinationEstablished,
		ServicesEnabled:             st.ServicesEnabled,
	}
	for _, info := range st.Deferred {
		report.Deferred = append(report.Deferred, info.Name())
	}
	return report
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatStatusTabular writes a statusReport as a two column table.
func formatStatusTabular(w io.Writer, value interface{}) error {
	report, ok := value.(*statusReport)
	if !ok {
		return errors.Errorf("expected value of type %T, got %T", report, value)
	}

	snaps := make([]string, 0, len(report.Snaps))
	for name, channel := range report.Snaps {
		snaps = append(snaps, name+" ("+channel+")")
	}
	naturalsort.Sort(snaps)

	unitStatus := report.Status
	if report.Message != "" {
		unitStatus += ": " + report.Message
	}

	table := uitable.New()
	table.MaxColWidth = 80
	table.Wrap = true
	table.AddRow("Status", orDash(unitStatus))
	table.AddRow("Version", report.Version)
	table.AddRow("Packages", orDash(strings.Join(report.Packages, ", ")))
	table.AddRow("Snaps", orDash(strings.Join(snaps, ", ")))
	table.AddRow("Storage attached", yesNo(report.StorageAttached))
	table.AddRow("Peer address", orDash(report.PeerAddress))
	table.AddRow("Peer coordination", yesNo(report.PeerCoordinationEstablished))
	table.AddRow("Services enabled", yesNo(report.ServicesEnabled))
	table.AddRow("Deferred", orDash(strings.Join(report.Deferred, ", ")))
	_, err := fmt.Fprintln(w, table)
	return errors.Trace(err)
}
