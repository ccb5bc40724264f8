// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package files

import (
	"bytes"
	"os"
	"path/filepath"
	"text/template"

	"github.com/juju/errors"
)

const rsyncBaseConfig = `
uid = nobody
gid = nogroup
pid file = /var/run/rsyncd.pid
syslog facility = daemon
socket options = SO_KEEPALIVE
timeout = 7200

&include {{.IncludeDir}}
`

// DefaultStanzaTemplate renders one read-only rsync module.
const DefaultStanzaTemplate = `[{{.Name}}]
path = {{.Path}}
read only = yes
list = yes
uid = {{.User}}
gid = {{.Group}}
chroot = false
`

// RsyncExport is a named rsync module serving a directory.
type RsyncExport struct {
	Name string
	Path string
}

// RsyncConfig describes the rsync daemon configuration to write.
type RsyncConfig struct {
	// ConfFile is the main daemon configuration file.
	ConfFile string

	// IncludeDir holds one file per exported module.
	IncludeDir string

	// User and Group serve the exported files.
	User  string
	Group string

	Exports []RsyncExport

	// StanzaTemplate overrides DefaultStanzaTemplate.
	StanzaTemplate string
}

// EnsureRsyncExports writes the daemon configuration and one stanza per
// export, creating the exported directories. Files that already exist are
// never rewritten, even when their content would now differ: the first
// write wins. It reports whether any stanza was written.
func EnsureRsyncExports(cfg RsyncConfig) (bool, error) {
	text := cfg.StanzaTemplate
	if text == "" {
		text = DefaultStanzaTemplate
	}
	stanza, err := template.New("stanza").Parse(text)
	if err != nil {
		return false, errors.Annotatef(err, "parsing rsync stanza template")
	}
	base := template.Must(template.New("base").Parse(rsyncBaseConfig))

	if _, err := createExclusive(cfg.ConfFile, base, cfg); err != nil {
		return false, errors.Trace(err)
	}
	if err := os.MkdirAll(cfg.IncludeDir, 0755); err != nil {
		return false, errors.Trace(err)
	}

	anyWritten := false
	for _, export := range cfg.Exports {
		if err := os.MkdirAll(export.Path, 0755); err != nil {
			return anyWritten, errors.Trace(err)
		}
		conf := filepath.Join(cfg.IncludeDir, export.Name+".conf")
		written, err := createExclusive(conf, stanza, struct {
			RsyncExport
			User, Group string
		}{export, cfg.User, cfg.Group})
		if err != nil {
			return anyWritten, errors.Trace(err)
		}
		if written {
			logger.Infof("writing rsync config to %s", conf)
		}
		anyWritten = anyWritten || written
	}
	return anyWritten, nil
}

// writeStanza writes data to a temporary file being published.
var writeStanza = func(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// createExclusive renders tmpl into path unless path already exists. The
// content is written to a temporary file first and hard linked into
// place, so path either holds the whole rendering or does not exist.
func createExclusive(path string, tmpl *template.Template, data interface{}) (bool, error) {
	if _, err := os.Lstat(path); err == nil {
		logger.Debugf("%s already exists, leaving it alone", path)
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, errors.Trace(err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return false, errors.Annotatef(err, "rendering %q", path)
	}

	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err != nil {
		return false, errors.Trace(err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)
	err = writeStanza(f, buf.Bytes())
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmp, 0644)
	}
	if err != nil {
		return false, errors.Annotatef(err, "writing %q", path)
	}

	err = os.Link(tmp, path)
	if os.IsExist(err) {
		logger.Debugf("%s was created concurrently, leaving it alone", path)
		return false, nil
	} else if err != nil {
		return false, errors.Annotatef(err, "publishing %q", path)
	}
	return true, nil
}
