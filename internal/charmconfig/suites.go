// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charmconfig

import (
	"encoding/json"
	"strings"

	"github.com/juju/errors"
)

// DefaultsName is the entry of the suite map holding values shared by all
// releases.
const DefaultsName = "default"

// Release describes one release entry of the suite map.
type Release struct {
	Name string `json:"-"`

	// Architectures overrides the default architectures when not nil.
	Architectures []string `json:"architectures"`

	// Suites lists suite suffixes, "" being the base suite. It overrides
	// the default suffixes when not nil.
	Suites []string `json:"suites"`

	// OldSuite marks the release as an old suite.
	OldSuite bool `json:"oldSuite"`

	// Released marks the release as published, making its base suite
	// immutable.
	Released bool `json:"released"`
}

// SuiteMap is the decoded suite map, with releases in document order.
type SuiteMap struct {
	DefaultArchitectures []string
	DefaultSuites        []string
	Releases             []Release
}

// ParseSuiteMap decodes the JSON suite map document. The "default" entry
// must be present with both architectures and suites.
func ParseSuiteMap(doc string) (*SuiteMap, error) {
	dec := json.NewDecoder(strings.NewReader(doc))
	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Annotatef(ErrIncomplete, "cannot parse suite map: %v", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.Annotatef(ErrIncomplete, "suite map is not a JSON object")
	}

	var (
		defaults *Release
		releases []Release
		index    = make(map[string]int)
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Annotatef(ErrIncomplete, "cannot parse suite map: %v", err)
		}
		name := tok.(string)
		var r Release
		if err := dec.Decode(&r); err != nil {
			return nil, errors.Annotatef(ErrIncomplete, "cannot parse release %q: %v", name, err)
		}
		r.Name = name
		if name == DefaultsName {
			defaults = &r
			continue
		}
		if i, ok := index[name]; ok {
			releases[i] = r
			continue
		}
		index[name] = len(releases)
		releases = append(releases, r)
	}
	if _, err := dec.Token(); err != nil {
		return nil, errors.Annotatef(ErrIncomplete, "cannot parse suite map: %v", err)
	}

	switch {
	case defaults == nil:
		return nil, errors.Annotatef(ErrIncomplete, "suite map has no %q entry", DefaultsName)
	case defaults.Architectures == nil:
		return nil, errors.Annotatef(ErrIncomplete, "%q entry has no architectures", DefaultsName)
	case defaults.Suites == nil:
		return nil, errors.Annotatef(ErrIncomplete, "%q entry has no suites", DefaultsName)
	}
	return &SuiteMap{
		DefaultArchitectures: defaults.Architectures,
		DefaultSuites:        defaults.Suites,
		Releases:             releases,
	}, nil
}

// ArchitecturesFor returns the architectures of r, falling back to the
// defaults.
func (m *SuiteMap) ArchitecturesFor(r Release) []string {
	if r.Architectures != nil {
		return r.Architectures
	}
	return m.DefaultArchitectures
}

// SuitesFor returns the suite suffixes of r, falling back to the defaults.
func (m *SuiteMap) SuitesFor(r Release) []string {
	if r.Suites != nil {
		return r.Suites
	}
	return m.DefaultSuites
}
