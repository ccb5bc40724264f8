// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package relation exchanges key/value records with related units.
package relation

import (
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/names/v5"
	"github.com/juju/utils/v4"
	"gopkg.in/yaml.v3"
)

var logger = loggo.GetLogger("appstream.relation")

// ErrNoRecord is returned when a related unit has published no record.
const ErrNoRecord = errors.ConstError("no relation record")

// PrivateAddressKey holds the address of the publishing unit.
const PrivateAddressKey = "private-address"

// Record is the key/value data published by one side of a relation.
type Record map[string]string

// Gateway reads records published by related units and publishes the
// local unit's record.
type Gateway interface {
	// RemoteSettings returns the record published by unit over the named
	// relation, or ErrNoRecord.
	RemoteSettings(relation, unit string) (Record, error)

	// SetLocalSettings merges rec into the record the local unit
	// publishes over the named relation.
	SetLocalSettings(relation string, rec Record) error
}

// FileGateway keeps relation records as YAML documents below Dir, one
// directory per relation and one file per unit.
type FileGateway struct {
	Dir string
}

const localRecord = "local"

func (g FileGateway) path(relation, unit string) string {
	return filepath.Join(g.Dir, relation, strings.ReplaceAll(unit, "/", "-")+".yaml")
}

// RemoteSettings implements Gateway.
func (g FileGateway) RemoteSettings(relation, unit string) (Record, error) {
	if !names.IsValidUnit(unit) {
		return nil, errors.NotValidf("unit name %q", unit)
	}
	return g.read(g.path(relation, unit))
}

// LocalSettings returns the record the local unit publishes over the
// named relation.
func (g FileGateway) LocalSettings(relation string) (Record, error) {
	return g.read(g.path(relation, localRecord))
}

// SetRemoteSettings stores the record published by unit. It stands in for
// the remote side when relation data is exchanged through files.
func (g FileGateway) SetRemoteSettings(relation, unit string, rec Record) error {
	if !names.IsValidUnit(unit) {
		return errors.NotValidf("unit name %q", unit)
	}
	return g.write(g.path(relation, unit), rec)
}

// SetLocalSettings implements Gateway.
func (g FileGateway) SetLocalSettings(relation string, rec Record) error {
	path := g.path(relation, localRecord)
	current, err := g.read(path)
	if errors.Is(err, ErrNoRecord) {
		current = Record{}
	} else if err != nil {
		return errors.Trace(err)
	}
	maps.Copy(current, rec)
	return g.write(path, current)
}

func (g FileGateway) read(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Annotatef(ErrNoRecord, "%s", filepath.Base(path))
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	rec := Record{}
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, errors.Annotatef(err, "reading relation record %q", path)
	}
	return rec, nil
}

// marshalRecord encodes rec with every value double quoted, so that
// leading and trailing whitespace of multi-line values is kept.
func marshalRecord(rec Record) ([]byte, error) {
	keys := slices.Sorted(maps.Keys(rec))
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range keys {
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.DoubleQuotedStyle, Value: rec[key]},
		)
	}
	return yaml.Marshal(doc)
}

func (g FileGateway) write(path string, rec Record) error {
	data, err := marshalRecord(rec)
	if err != nil {
		return errors.Trace(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Trace(err)
	}
	logger.Debugf("writing relation record %s", path)
	return errors.Annotatef(utils.AtomicWriteFile(path, data, 0644), "writing relation record %q", path)
}
