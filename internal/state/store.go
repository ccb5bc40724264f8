// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
	"gopkg.in/yaml.v3"
)

// ErrNoStateFile is returned by ReadFile when the state file does not exist.
const ErrNoStateFile = errors.ConstError("state file does not exist")

// ReadFile reads a State from path.
func ReadFile(path string) (State, error) {
	var st State
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return st, ErrNoStateFile
	} else if err != nil {
		return st, errors.Trace(err)
	}
	if err := yaml.Unmarshal(data, &st); err != nil {
		return st, errors.Annotatef(err, "cannot read state at %q", path)
	}
	for i, info := range st.Deferred {
		if err := info.Validate(); err != nil {
			return st, errors.Annotatef(err, "invalid deferred event %d in %q", i, path)
		}
	}
	return st, nil
}

// Store holds the disk state for an agent. Updates are written atomically
// and are durable by the time Update returns.
type Store struct {
	path    string
	loaded  bool
	current State
}

// NewStore returns a Store backed by the file at path. A missing file is
// read as the initial empty state.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file of the store.
func (s *Store) Path() string {
	return s.path
}

// Get returns a copy of the latest successfully written state.
func (s *Store) Get() (State, error) {
	if err := s.load(); err != nil {
		return State{}, errors.Trace(err)
	}
	return s.current.copy(), nil
}

// Update applies mutate to a copy of the current state and persists the
// result. If mutate or the write fails, the stored state is unchanged.
func (s *Store) Update(mutate func(*State) error) error {
	if err := s.load(); err != nil {
		return errors.Trace(err)
	}
	next := s.current.copy()
	if err := mutate(&next); err != nil {
		return errors.Trace(err)
	}
	next.Version++
	if err := s.write(next); err != nil {
		return errors.Annotatef(err, "writing state to %q", s.path)
	}
	s.current = next
	return nil
}

func (s *Store) load() error {
	if s.loaded {
		return nil
	}
	st, err := ReadFile(s.path)
	if err != nil && err != ErrNoStateFile {
		return errors.Trace(err)
	}
	s.current = st
	s.loaded = true
	return nil
}

func (s *Store) write(st State) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return errors.Trace(err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Trace(err)
	}
	return utils.AtomicWriteFile(s.path, data, 0o600)
}
