// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package files

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/utils/v4/symlink"
)

// EnsureSymlink makes link a symbolic link to target. A link that already
// resolves to target is left alone; one that resolves elsewhere is
// atomically replaced. It reports whether link was created or replaced.
//
// A link created concurrently between the check and the creation is
// re-validated rather than reported as an error.
func EnsureSymlink(link, target string) (bool, error) {
	for attempt := 0; ; attempt++ {
		current, err := symlink.Read(link)
		switch {
		case err == nil:
			if sameTarget(link, current, target) {
				return false, nil
			}
			logger.Infof("target for %s has changed to %s, re-creating", link, target)
			return true, errors.Trace(replaceSymlink(link, target))
		case os.IsNotExist(err):
		default:
			if fi, statErr := os.Lstat(link); statErr == nil && fi.Mode()&os.ModeSymlink == 0 {
				return false, errors.Errorf("cannot link %q: path exists and is not a symlink", link)
			}
			return false, errors.Annotatef(err, "reading symlink %q", link)
		}

		if err := os.MkdirAll(filepath.Dir(link), 0755); err != nil {
			return false, errors.Trace(err)
		}
		err = symlink.New(target, link)
		if err == nil {
			logger.Infof("symlinking %s -> %s", link, target)
			return true, nil
		}
		if !os.IsExist(err) || attempt > 0 {
			return false, errors.Annotatef(err, "creating symlink %q", link)
		}
		logger.Warningf("%s appeared while linking, re-checking", link)
	}
}

// sameTarget reports whether a link currently pointing at current
// resolves to target.
func sameTarget(link, current, target string) bool {
	if current == target {
		return true
	}
	if !filepath.IsAbs(current) {
		current = filepath.Join(filepath.Dir(link), current)
	}
	resolvedCurrent, err := filepath.EvalSymlinks(current)
	if err != nil {
		return false
	}
	resolvedTarget, err := filepath.EvalSymlinks(target)
	if err != nil {
		return false
	}
	return resolvedCurrent == resolvedTarget
}

// replaceSymlink points link at target by renaming a freshly created link
// over it, so link never goes missing.
func replaceSymlink(link, target string) error {
	tmp := filepath.Join(filepath.Dir(link), fmt.Sprintf(".%s.%d.tmp", filepath.Base(link), os.Getpid()))
	_ = os.Remove(tmp)
	if err := symlink.New(target, tmp); err != nil {
		return errors.Annotatef(err, "creating symlink %q", tmp)
	}
	if err := os.Rename(tmp, link); err != nil {
		_ = os.Remove(tmp)
		return errors.Annotatef(err, "replacing symlink %q", link)
	}
	return nil
}

// LinkUnits links each named unit definition in srcDir into unitDir and
// reports whether any link was created or replaced.
func LinkUnits(unitDir, srcDir string, units []string) (bool, error) {
	changed := false
	for _, unit := range units {
		c, err := EnsureSymlink(filepath.Join(unitDir, unit), filepath.Join(srcDir, unit))
		if err != nil {
			return changed, errors.Trace(err)
		}
		changed = changed || c
	}
	return changed, nil
}

// LinkScripts links every regular file in scriptsDir into destDir. A
// missing scriptsDir links nothing.
func LinkScripts(scriptsDir, destDir string) error {
	entries, err := os.ReadDir(scriptsDir)
	if os.IsNotExist(err) {
		logger.Debugf("no scripts in %s", scriptsDir)
		return nil
	} else if err != nil {
		return errors.Trace(err)
	}
	for _, entry := range entries {
		script := filepath.Join(scriptsDir, entry.Name())
		if fi, err := os.Stat(script); err != nil || fi.IsDir() {
			continue
		}
		if _, err := EnsureSymlink(filepath.Join(destDir, entry.Name()), script); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
