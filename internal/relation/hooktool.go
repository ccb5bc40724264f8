// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package relation

import (
	"encoding/json"
	"os"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"

	"github.com/canonical/appstream-charms/internal/commands"
)

// HookToolGateway exchanges records through the relation-* hook tools.
type HookToolGateway struct {
	Runner commands.Runner

	// TempDir holds the settings files handed to relation-set. The system
	// temporary directory is used when empty.
	TempDir string
}

func (g HookToolGateway) relationID(relation string) (string, error) {
	out, err := g.Runner.RunCommand("relation-ids", "--format=json", relation)
	if err != nil {
		return "", errors.Trace(err)
	}
	var ids []string
	if err := json.Unmarshal([]byte(out), &ids); err != nil {
		return "", errors.Annotatef(err, "decoding relation-ids output")
	}
	if len(ids) == 0 {
		return "", errors.NotFoundf("relation %q", relation)
	}
	return ids[0], nil
}

// RemoteSettings implements Gateway.
func (g HookToolGateway) RemoteSettings(relation, unit string) (Record, error) {
	id, err := g.relationID(relation)
	if err != nil {
		return nil, errors.Trace(err)
	}
	out, err := g.Runner.RunCommand("relation-get", "--format=json", "-r", id, "-", unit)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		return nil, errors.Annotatef(err, "decoding relation-get output")
	}
	if len(rec) == 0 {
		return nil, errors.Annotatef(ErrNoRecord, "%s on %s", unit, relation)
	}
	return rec, nil
}

// SetLocalSettings implements Gateway.
func (g HookToolGateway) SetLocalSettings(relation string, rec Record) error {
	id, err := g.relationID(relation)
	if err != nil {
		return errors.Trace(err)
	}
	data, err := yaml.Marshal(rec)
	if err != nil {
		return errors.Trace(err)
	}
	f, err := os.CreateTemp(g.TempDir, "relation-settings-*.yaml")
	if err != nil {
		return errors.Trace(err)
	}
	defer os.Remove(f.Name())
	_, err = f.Write(data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return errors.Trace(err)
	}
	_, err = g.Runner.RunCommand("relation-set", "-r", id, "--file", f.Name())
	return errors.Trace(err)
}
