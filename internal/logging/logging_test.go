// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package logging_test

import (
	"os"
	"path/filepath"

	"github.com/juju/loggo/v2"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/appstream-charms/internal/logging"
)

type loggingSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&loggingSuite{})

func (s *loggingSuite) TestDefaultConfig(c *gc.C) {
	closer, err := logging.Configure(logging.Config{})
	c.Assert(err, jc.ErrorIsNil)
	defer closer.Close()

	c.Check(loggo.GetLogger("appstream.converge").EffectiveLogLevel(), gc.Equals, loggo.INFO)
}

func (s *loggingSuite) TestSpec(c *gc.C) {
	closer, err := logging.Configure(logging.Config{Spec: "<root>=WARNING;appstream.dispatcher=TRACE"})
	c.Assert(err, jc.ErrorIsNil)
	defer closer.Close()

	c.Check(loggo.GetLogger("appstream.converge").EffectiveLogLevel(), gc.Equals, loggo.WARNING)
	c.Check(loggo.GetLogger("appstream.dispatcher").LogLevel(), gc.Equals, loggo.TRACE)
}

func (s *loggingSuite) TestInvalidSpec(c *gc.C) {
	_, err := logging.Configure(logging.Config{Spec: "<root>=LOUD"})
	c.Assert(err, gc.ErrorMatches, `invalid logging config "<root>=LOUD": .*`)
}

func (s *loggingSuite) TestLogFile(c *gc.C) {
	path := filepath.Join(c.MkDir(), "log", "agent.log")
	closer, err := logging.Configure(logging.Config{LogFile: path})
	c.Assert(err, jc.ErrorIsNil)

	loggo.GetLogger("appstream.test").Infof("hello from the agent")
	c.Assert(closer.Close(), jc.ErrorIsNil)

	data, err := os.ReadFile(path)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(data), gc.Matches, `(?s).*INFO appstream.test .*hello from the agent\n`)

	_, err = loggo.RemoveWriter(logging.FileWriterName)
	c.Check(err, gc.NotNil)
}
