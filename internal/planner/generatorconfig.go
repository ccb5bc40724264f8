// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package planner

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/juju/errors"

	"github.com/canonical/appstream-charms/internal/charmconfig"
)

// suitePriorities maps the last dash separated component of a suite name
// to its data priority.
var suitePriorities = map[string]int{
	"updates":   10,
	"security":  20,
	"proposed":  30,
	"backports": 40,
}

const defaultSuitePriority = 0

var suiteSections = []string{"main", "universe", "multiverse", "restricted"}

// GeneratorConfig is the generator configuration document. Fields are
// declared in key order so the encoding has sorted keys.
type GeneratorConfig struct {
	ArchiveRoot  string           `json:"ArchiveRoot"`
	Backend      string           `json:"Backend"`
	Features     map[string]bool  `json:"Features"`
	HtmlBaseUrl  string           `json:"HtmlBaseUrl"`
	MediaBaseUrl string           `json:"MediaBaseUrl"`
	Oldsuites    []string         `json:"Oldsuites"`
	ProjectName  string           `json:"ProjectName"`
	Suites       map[string]Suite `json:"Suites"`
}

// Suite is a single suite entry of the generator configuration.
type Suite struct {
	Architectures []string `json:"architectures"`
	BaseSuite     string   `json:"baseSuite,omitempty"`
	DataPriority  int      `json:"dataPriority"`
	Immutable     bool     `json:"immutable,omitempty"`
	Sections      []string `json:"sections"`
	UseIconTheme  string   `json:"useIconTheme"`
}

// SuitePriority returns the data priority of the named suite.
func SuitePriority(suite string) int {
	suffix := suite[strings.LastIndex(suite, "-")+1:]
	if priority, ok := suitePriorities[suffix]; ok {
		return priority
	}
	return defaultSuitePriority
}

// ExpandRelease returns the suite entries of a single release: one entry
// named release+suffix per suite suffix. Every suite other than the base
// suite names the release as its base, and the base suite of a released
// release is immutable.
func ExpandRelease(m *charmconfig.SuiteMap, r charmconfig.Release) map[string]Suite {
	arches := m.ArchitecturesFor(r)
	if arches == nil {
		arches = []string{}
	}
	out := make(map[string]Suite)
	for _, suffix := range m.SuitesFor(r) {
		name := r.Name + suffix
		suite := Suite{
			Architectures: arches,
			DataPriority:  SuitePriority(name),
			Sections:      suiteSections,
			UseIconTheme:  "Humanity",
		}
		if name != r.Name {
			suite.BaseSuite = r.Name
		}
		out[name] = suite
	}
	if base, ok := out[r.Name]; ok && r.Released {
		base.Immutable = true
		out[r.Name] = base
	}
	return out
}

// BuildGeneratorConfig returns the generator configuration for settings.
func BuildGeneratorConfig(settings *charmconfig.GeneratorSettings) *GeneratorConfig {
	cfg := &GeneratorConfig{
		ArchiveRoot:  settings.Mirror,
		Backend:      "ubuntu",
		Features:     map[string]bool{"validateMetainfo": true},
		HtmlBaseUrl:  settings.Hostname,
		MediaBaseUrl: settings.Hostname + "/media",
		Oldsuites:    []string{},
		ProjectName:  "Ubuntu",
		Suites:       make(map[string]Suite),
	}
	for _, r := range settings.Suites.Releases {
		if r.OldSuite {
			cfg.Oldsuites = append(cfg.Oldsuites, r.Name)
		}
		for name, suite := range ExpandRelease(settings.Suites, r) {
			cfg.Suites[name] = suite
		}
	}
	return cfg
}

// Marshal encodes the configuration with sorted keys, four space
// indentation and no trailing newline.
func (cfg *GeneratorConfig) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(cfg); err != nil {
		return nil, errors.Trace(err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// RenderGeneratorConfig builds and encodes the generator configuration.
func RenderGeneratorConfig(settings *charmconfig.GeneratorSettings) ([]byte, error) {
	return BuildGeneratorConfig(settings).Marshal()
}
