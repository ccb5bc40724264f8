// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package actions implements the operator actions of the generator. Each
// action appends a directive to a work queue read by the next generator
// run.
package actions

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/naturalsort"
	"github.com/ulikunitz/xz"

	"github.com/canonical/appstream-charms/internal/files"
)

var logger = loggo.GetLogger("appstream.actions")

const (
	cleanFile  = "clean"
	forgetFile = "forget"

	// hintsGlob matches the hint archives below the hints directory,
	// one per suite and section.
	hintsGlob = "*/*/Hints-*.xz"
)

// Queue writes directives for the generator.
type Queue struct {
	// BaseDir holds the directive files.
	BaseDir string

	// HintsDir holds the hint archives produced by the generator.
	HintsDir string

	// Owner owns the directive files.
	Owner files.Owner
}

// Clean requests that all generated data is removed on the next run.
func (q Queue) Clean() error {
	path := filepath.Join(q.BaseDir, cleanFile)
	f, err := os.Create(path)
	if err != nil {
		return errors.Annotatef(err, "creating %q", path)
	}
	if err := f.Close(); err != nil {
		return errors.Trace(err)
	}
	if err := q.Owner.Chown(path); err != nil {
		return errors.Trace(err)
	}
	logger.Infof("data will be cleaned with the next full run")
	return nil
}

// ParsePackageList decodes a JSON array of package names.
func ParsePackageList(raw string) ([]string, error) {
	var packages []string
	if err := json.Unmarshal([]byte(raw), &packages); err != nil {
		return nil, errors.NotValidf("package list %q", raw)
	}
	return packages, nil
}

// Forget requests that the generator forgets the given packages.
func (q Queue) Forget(packages []string) error {
	if len(packages) == 0 {
		return nil
	}
	logger.Infof("forgetting %s", strings.Join(packages, ", "))
	path := filepath.Join(q.BaseDir, forgetFile)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return errors.Annotatef(err, "opening %q", path)
	}
	var b strings.Builder
	for _, pkg := range packages {
		b.WriteString(pkg + "\n")
	}
	_, err = f.WriteString(b.String())
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return errors.Annotatef(err, "writing %q", path)
}

// Hint is a single diagnostic raised for a package.
type Hint struct {
	Tag string `json:"tag"`
}

// HintRecord holds the hints of one package, grouped by component.
type HintRecord struct {
	Package string            `json:"package"`
	Hints   map[string][]Hint `json:"hints"`
}

// PackagesWithTag returns the packages of all hint archives that carry at
// least one hint with tag, each once, in natural order.
func (q Queue) PackagesWithTag(tag string) ([]string, error) {
	archives, err := filepath.Glob(filepath.Join(q.HintsDir, hintsGlob))
	if err != nil {
		return nil, errors.Trace(err)
	}
	found := set.NewStrings()
	for _, archive := range archives {
		records, err := readHints(archive)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, record := range records {
			if record.hasTag(tag) {
				found.Add(record.Package)
			}
		}
	}
	packages := found.Values()
	naturalsort.Sort(packages)
	return packages, nil
}

// ForgetTag requests that the generator forgets every package carrying a
// hint with tag. It returns the packages forgotten.
func (q Queue) ForgetTag(tag string) ([]string, error) {
	logger.Infof("forgetting all packages with tag %s", tag)
	packages, err := q.PackagesWithTag(tag)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := q.Forget(packages); err != nil {
		return nil, errors.Trace(err)
	}
	return packages, nil
}

func (r HintRecord) hasTag(tag string) bool {
	for _, hints := range r.Hints {
		for _, hint := range hints {
			if hint.Tag == tag {
				return true
			}
		}
	}
	return false
}

func readHints(path string) ([]HintRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()

	r, err := xz.NewReader(f)
	if err != nil {
		return nil, errors.Annotatef(err, "reading hint archive %q", path)
	}
	var records []HintRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, errors.Annotatef(err, "decoding hint archive %q", path)
	}
	return records, nil
}
