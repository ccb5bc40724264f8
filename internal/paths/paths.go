// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package paths describes the filesystem layout of a managed host.
package paths

import (
	"path/filepath"
)

// Paths represents the set of filesystem paths the agent has reason to
// care about. Every path is rooted at Root, which is "/" on a real host.
type Paths struct {
	// Root is prepended to every system path.
	Root string

	// Home is the home directory of the service user.
	Home string

	// CharmDir holds the deployed charm, including its units/ and
	// scripts/ directories.
	CharmDir string

	// State represents the set of paths that hold persistent local state.
	State StatePaths

	// System represents the set of host configuration paths managed by the
	// agent.
	System SystemPaths
}

// StatePaths holds the locations of the agent's own state.
type StatePaths struct {
	// StateFile holds the persistent record of applied actions.
	StateFile string

	// RelationsDir holds exchanged relation data when relation data is
	// exchanged through files.
	RelationsDir string

	// StatusFile holds the last unit status when status is reported
	// through a file.
	StatusFile string
}

// SystemPaths holds the host configuration locations written by the agent.
type SystemPaths struct {
	SystemdUnitDir  string
	EnvironmentFile string
	RsyncConf       string
	RsyncIncludeDir string
}

// NewPaths returns the set of filesystem paths for an agent whose charm is
// deployed to charmDir and whose private state lives under dataDir. All
// system locations are joined to root.
func NewPaths(root, charmDir, dataDir string) Paths {
	if root == "" {
		root = "/"
	}
	join := filepath.Join
	return Paths{
		Root:     root,
		Home:     join(root, "home", "ubuntu"),
		CharmDir: charmDir,
		State: StatePaths{
			StateFile:    join(dataDir, "state.yaml"),
			RelationsDir: join(dataDir, "relations"),
			StatusFile:   join(dataDir, "status.yaml"),
		},
		System: SystemPaths{
			SystemdUnitDir:  join(root, "etc", "systemd", "system"),
			EnvironmentFile: join(root, "etc", "environment.d", "proxy.conf"),
			RsyncConf:       join(root, "etc", "rsyncd.conf"),
			RsyncIncludeDir: join(root, "etc", "rsync-juju.d"),
		},
	}
}

// UnitsDir is the directory holding the packaged service unit definitions.
func (p Paths) UnitsDir() string {
	return filepath.Join(p.CharmDir, "units")
}

// ScriptsDir is the directory holding the packaged helper scripts.
func (p Paths) ScriptsDir() string {
	return filepath.Join(p.CharmDir, "scripts")
}

// AppstreamBase is the root of the generator's data.
func (p Paths) AppstreamBase() string {
	return filepath.Join(p.Home, "appstream")
}

// AppstreamPublic holds published generator output.
func (p Paths) AppstreamPublic() string {
	return filepath.Join(p.AppstreamBase(), "appstream-public")
}

// AppstreamWorkdir holds the generator's private working files.
func (p Paths) AppstreamWorkdir() string {
	return filepath.Join(p.AppstreamBase(), "appstream-workdir")
}

// AppstreamLogs holds the generator's run logs.
func (p Paths) AppstreamLogs() string {
	return filepath.Join(p.AppstreamBase(), "logs")
}

// GeneratorConfigFile is the generated generator configuration.
func (p Paths) GeneratorConfigFile() string {
	return filepath.Join(p.AppstreamWorkdir(), "asgen-config.json")
}

// HintsDir holds the compressed hint archives produced by the generator.
func (p Paths) HintsDir() string {
	return filepath.Join(p.AppstreamPublic(), "hints")
}

// RsyncAddressFile records the generator address on a frontend.
func (p Paths) RsyncAddressFile() string {
	return filepath.Join(p.Home, "rsync-address")
}
