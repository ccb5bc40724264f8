// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package hook defines the lifecycle events delivered to a managed unit.
package hook

import (
	"fmt"
	"maps"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/names/v5"
)

// Kind enumerates the lifecycle events a unit can receive.
type Kind string

const (
	Install          Kind = "install"
	Start            Kind = "start"
	UpgradeCharm     Kind = "upgrade-charm"
	ConfigChanged    Kind = "config-changed"
	StorageAttached  Kind = "storage-attached"
	StorageDetaching Kind = "storage-detaching"
	RelationJoined   Kind = "relation-joined"
	RelationDeparted Kind = "relation-departed"
	Action           Kind = "action"
)

// IsRelation returns whether the kind is scoped to a relation.
func (k Kind) IsRelation() bool {
	return k == RelationJoined || k == RelationDeparted
}

// IsStorage returns whether the kind is scoped to a storage instance.
func (k Kind) IsStorage() bool {
	return k == StorageAttached || k == StorageDetaching
}

// Info holds details of a single delivered event. Not all fields are
// relevant to all Kind values.
type Info struct {
	Kind Kind `yaml:"kind" json:"kind"`

	// RelationName is the endpoint the event belongs to. It is only set
	// when Kind indicates a relation event.
	RelationName string `yaml:"relation,omitempty" json:"relation,omitempty"`

	// RemoteUnit is the unit that triggered a relation event.
	RemoteUnit string `yaml:"remote-unit,omitempty" json:"remote-unit,omitempty"`

	// StorageName is the storage the event belongs to. It is only set
	// when Kind indicates a storage event.
	StorageName string `yaml:"storage,omitempty" json:"storage,omitempty"`

	// StorageLocation is where the storage instance is mounted.
	StorageLocation string `yaml:"storage-location,omitempty" json:"storage-location,omitempty"`

	// ActionName and Params describe an operator action.
	ActionName string            `yaml:"action,omitempty" json:"action,omitempty"`
	Params     map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
}

// Validate returns an error if the info is not valid.
func (hi Info) Validate() error {
	switch hi.Kind {
	case RelationJoined, RelationDeparted:
		if hi.RelationName == "" {
			return errors.NotValidf("%q event without relation name", hi.Kind)
		}
		if !names.IsValidUnit(hi.RemoteUnit) {
			return errors.NotValidf("%q event remote unit %q", hi.Kind, hi.RemoteUnit)
		}
		return nil
	case StorageAttached, StorageDetaching:
		if hi.StorageName == "" {
			return errors.NotValidf("%q event without storage name", hi.Kind)
		}
		return nil
	case Action:
		if hi.ActionName == "" {
			return errors.NotValidf("action event without action name")
		}
		return nil
	case Install, Start, UpgradeCharm, ConfigChanged:
		return nil
	}
	return errors.NotValidf("event kind %q", hi.Kind)
}

// Name returns the hook name of the event, as it would appear under a
// charm's hooks or actions directory, eg "rsync-relation-joined".
func (hi Info) Name() string {
	switch {
	case hi.Kind.IsRelation():
		return fmt.Sprintf("%s-%s", hi.RelationName, hi.Kind)
	case hi.Kind.IsStorage():
		return fmt.Sprintf("%s-%s", hi.StorageName, hi.Kind)
	case hi.Kind == Action:
		return fmt.Sprintf("%s-%s", hi.ActionName, hi.Kind)
	}
	return string(hi.Kind)
}

// Equal reports whether two events describe the same delivery.
func (hi Info) Equal(other Info) bool {
	return hi.Kind == other.Kind &&
		hi.RelationName == other.RelationName &&
		hi.RemoteUnit == other.RemoteUnit &&
		hi.StorageName == other.StorageName &&
		hi.StorageLocation == other.StorageLocation &&
		hi.ActionName == other.ActionName &&
		maps.Equal(hi.Params, other.Params)
}

var scopedSuffixes = []Kind{
	RelationJoined,
	RelationDeparted,
	StorageAttached,
	StorageDetaching,
	Action,
}

// Parse returns the Info described by a hook name such as "install",
// "apache-website-relation-departed" or "forget-action". Scoped details
// other than the endpoint name (remote unit, storage location, params)
// are left for the caller to fill in.
func Parse(name string) (Info, error) {
	switch Kind(name) {
	case Install, Start, UpgradeCharm, ConfigChanged:
		return Info{Kind: Kind(name)}, nil
	}
	for _, kind := range scopedSuffixes {
		prefix, ok := strings.CutSuffix(name, "-"+string(kind))
		if !ok || prefix == "" {
			continue
		}
		info := Info{Kind: kind}
		switch {
		case kind.IsRelation():
			info.RelationName = prefix
		case kind.IsStorage():
			info.StorageName = prefix
		default:
			info.ActionName = prefix
		}
		return info, nil
	}
	return Info{}, errors.NotValidf("hook name %q", name)
}
