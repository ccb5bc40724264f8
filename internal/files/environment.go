// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package files

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/proxy"
	"github.com/juju/utils/v4"
)

// WriteProxyEnvironment writes the set proxy variables to path, one
// name=value line each. When no variable is set the file is removed.
func WriteProxyEnvironment(path string, settings proxy.Settings) error {
	var b strings.Builder
	for _, v := range []struct{ name, value string }{
		{"http_proxy", settings.Http},
		{"https_proxy", settings.Https},
		{"no_proxy", settings.NoProxy},
	} {
		if v.value != "" {
			b.WriteString(v.name + "=" + v.value + "\n")
		}
	}

	if b.Len() == 0 {
		err := os.Remove(path)
		if err != nil && !os.IsNotExist(err) {
			return errors.Annotatef(err, "removing proxy settings %q", path)
		}
		return nil
	}

	logger.Infof("writing proxy settings to %s", path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Trace(err)
	}
	return errors.Annotatef(utils.AtomicWriteFile(path, []byte(b.String()), 0644), "writing proxy settings %q", path)
}

// WriteGeneratedConfig replaces path with content and hands it to owner.
// The parent directory is created if needed.
func WriteGeneratedConfig(path string, content []byte, owner Owner) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Trace(err)
	}
	if err := utils.AtomicWriteFile(path, content, 0644); err != nil {
		return errors.Annotatef(err, "writing %q", path)
	}
	return errors.Trace(owner.Chown(path))
}

// WriteKeyValueFile writes a single NAME=value line to path.
func WriteKeyValueFile(path, name, value string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Trace(err)
	}
	return errors.Annotatef(
		utils.AtomicWriteFile(path, []byte(name+"="+value+"\n"), 0644),
		"writing %q", path,
	)
}

// RemoveFile removes path, tolerating its absence.
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Trace(err)
	}
	return nil
}

// PrepareStorage hands the storage mount point to owner and creates the
// working directory below it, owned by owner, if it does not exist yet.
func PrepareStorage(mountPoint, workDir string, owner Owner) error {
	if err := owner.Chown(mountPoint); err != nil {
		return errors.Trace(err)
	}
	if _, err := os.Stat(workDir); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Trace(err)
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(owner.Chown(workDir))
}
