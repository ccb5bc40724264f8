// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charmconfig

import (
	"encoding/json"
	"os"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"

	"github.com/canonical/appstream-charms/internal/commands"
)

// Source supplies raw configuration attributes.
type Source interface {
	Read() (map[string]interface{}, error)
}

// Load reads and parses the configuration from src.
func Load(src Source) (*Config, error) {
	attrs, err := src.Read()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return Parse(attrs)
}

// FileSource reads configuration from a YAML document of key/value pairs.
// A missing file is an empty configuration.
type FileSource struct {
	Path string
}

// Read implements Source.
func (s FileSource) Read() (map[string]interface{}, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		logger.Debugf("no configuration file at %q", s.Path)
		return map[string]interface{}{}, nil
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	attrs := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &attrs); err != nil {
		return nil, errors.Annotatef(err, "reading configuration %q", s.Path)
	}
	return attrs, nil
}

// HookToolSource reads configuration through the config-get hook tool.
type HookToolSource struct {
	Runner commands.Runner
}

// Read implements Source.
func (s HookToolSource) Read() (map[string]interface{}, error) {
	out, err := s.Runner.RunCommand("config-get", "--format=json", "--all")
	if err != nil {
		return nil, errors.Trace(err)
	}
	attrs := make(map[string]interface{})
	if err := json.Unmarshal([]byte(out), &attrs); err != nil {
		return nil, errors.Annotatef(err, "decoding config-get output")
	}
	return attrs, nil
}
