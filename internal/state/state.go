// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package state implements the persistent local record of what the agent
// has already applied to the host.
package state

import (
	"maps"
	"slices"

	"github.com/juju/collections/set"

	"github.com/canonical/appstream-charms/internal/hook"
)

// State is the persistent state of the agent. It is the only source of
// truth for whether an idempotent action has already run, and is updated
// only after the corresponding action succeeded.
type State struct {
	// Version is incremented on every successful update.
	Version int64 `yaml:"version"`

	// InstalledPackages holds the apt packages installed by the agent.
	InstalledPackages []string `yaml:"installed-packages,omitempty"`

	// InstalledSnaps maps installed snaps to the channel they track.
	InstalledSnaps map[string]string `yaml:"installed-snaps,omitempty"`

	// StorageAttached records whether the data storage is attached.
	StorageAttached bool `yaml:"storage-attached"`

	// PeerAddress is the address published by the related generator.
	PeerAddress string `yaml:"peer-address,omitempty"`

	// PeerCoordinationEstablished records whether outbound peer data has
	// been published.
	PeerCoordinationEstablished bool `yaml:"peer-coordination-established"`

	// ServicesEnabled records whether the long-running units were enabled.
	ServicesEnabled bool `yaml:"services-enabled"`

	// Deferred holds the events waiting to be re-delivered, oldest first.
	Deferred []hook.Info `yaml:"deferred,omitempty"`
}

// Packages returns the installed package set.
func (st State) Packages() set.Strings {
	return set.NewStrings(st.InstalledPackages...)
}

// AddPackages records pkgs as installed.
func (st *State) AddPackages(pkgs ...string) {
	st.InstalledPackages = st.Packages().Union(set.NewStrings(pkgs...)).SortedValues()
}

// SnapChannel returns the channel an installed snap tracks.
func (st State) SnapChannel(name string) (string, bool) {
	channel, ok := st.InstalledSnaps[name]
	return channel, ok
}

// SetSnap records the snap as installed at channel.
func (st *State) SetSnap(name, channel string) {
	if st.InstalledSnaps == nil {
		st.InstalledSnaps = make(map[string]string)
	}
	st.InstalledSnaps[name] = channel
}

// IsDeferred reports whether an identical event is already queued.
func (st State) IsDeferred(info hook.Info) bool {
	return slices.ContainsFunc(st.Deferred, info.Equal)
}

// Defer queues info for re-delivery, unless an identical event is already
// queued.
func (st *State) Defer(info hook.Info) {
	if st.IsDeferred(info) {
		return
	}
	st.Deferred = append(st.Deferred, info)
}

// Undefer removes info from the re-delivery queue.
func (st *State) Undefer(info hook.Info) {
	st.Deferred = slices.DeleteFunc(st.Deferred, info.Equal)
}

// copy returns an independent copy of the state.
func (st State) copy() State {
	stCopy := st
	stCopy.InstalledPackages = slices.Clone(st.InstalledPackages)
	stCopy.InstalledSnaps = maps.Clone(st.InstalledSnaps)
	if st.Deferred != nil {
		stCopy.Deferred = make([]hook.Info, len(st.Deferred))
		for i, info := range st.Deferred {
			info.Params = maps.Clone(info.Params)
			stCopy.Deferred[i] = info
		}
	}
	return stCopy
}
