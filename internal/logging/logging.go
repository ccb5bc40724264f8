// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package logging configures the agent's loggers and its rotating log
// file.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/lumberjack/v2"
)

var logger = loggo.GetLogger("appstream.logging")

const (
	// DefaultConfig is the logging configuration used when none is given.
	DefaultConfig = "<root>=INFO"

	// FileWriterName is the name the log file writer is registered as.
	FileWriterName = "file"

	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB = 50

	// MaxBackups is the number of rotated log files kept.
	MaxBackups = 2
)

// Config describes the logging set up of the agent.
type Config struct {
	// Spec is a loggo configuration string such as
	// "<root>=INFO;appstream.dispatcher=DEBUG".
	Spec string

	// LogFile, if set, receives all log output in addition to the
	// default writer.
	LogFile string
}

// Configure applies config to the global loggers. The returned closer
// releases the log file and must be called when the agent exits.
func Configure(config Config) (io.Closer, error) {
	spec := config.Spec
	if spec == "" {
		spec = DefaultConfig
	}
	if err := loggo.ConfigureLoggers(spec); err != nil {
		return nil, errors.Annotatef(err, "invalid logging config %q", spec)
	}
	if config.LogFile == "" {
		return nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(config.LogFile), 0755); err != nil {
		return nil, errors.Trace(err)
	}
	writer := &lumberjack.Logger{
		Filename:   config.LogFile,
		MaxSize:    MaxSizeMB,
		MaxBackups: MaxBackups,
		Compress:   true,
	}
	if err := loggo.RegisterWriter(
		FileWriterName, loggo.NewSimpleWriter(writer, loggo.DefaultFormatter)); err != nil {
		_ = writer.Close()
		return nil, errors.Annotate(err, "unable to configure file logging")
	}
	logger.Debugf("created rotating log file %q with max size %d MB and max backups %d",
		writer.Filename, writer.MaxSize, writer.MaxBackups)
	return &fileCloser{writer: writer}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type fileCloser struct {
	writer *lumberjack.Logger
}

// Close unregisters the file writer and closes the log file.
func (c *fileCloser) Close() error {
	_, _ = loggo.RemoveWriter(FileWriterName)
	return errors.Trace(c.writer.Close())
}
