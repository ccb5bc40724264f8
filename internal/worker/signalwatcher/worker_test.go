// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package signalwatcher_test

import (
	"os"
	"syscall"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/worker/v4/workertest"
	gc "gopkg.in/check.v1"

	"github.com/canonical/appstream-charms/internal/worker/signalwatcher"
)

type workerSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&workerSuite{})

func (s *workerSuite) TestNilChannel(c *gc.C) {
	_, err := signalwatcher.NewWorker(nil, nil)
	c.Assert(err, jc.ErrorIs, errors.NotValid)
}

func (s *workerSuite) TestDefaultHandler(c *gc.C) {
	sig := make(chan os.Signal, 1)
	w, err := signalwatcher.NewWorker(sig, nil)
	c.Assert(err, jc.ErrorIsNil)

	sig <- syscall.SIGTERM
	err = workertest.CheckKilled(c, w)
	c.Assert(err, jc.ErrorIs, signalwatcher.ErrTerminated)
}

func (s *workerSuite) TestSignalMap(c *gc.C) {
	interrupted := errors.ConstError("interrupted")
	sig := make(chan os.Signal, 1)
	w, err := signalwatcher.NewWorker(sig, signalwatcher.Handler(signalwatcher.ErrTerminated, map[os.Signal]error{
		syscall.SIGINT: interrupted,
	}))
	c.Assert(err, jc.ErrorIsNil)

	sig <- syscall.SIGINT
	err = workertest.CheckKilled(c, w)
	c.Assert(err, jc.ErrorIs, interrupted)
}

func (s *workerSuite) TestClosedChannel(c *gc.C) {
	sig := make(chan os.Signal)
	w, err := signalwatcher.NewWorker(sig, nil)
	c.Assert(err, jc.ErrorIsNil)

	close(sig)
	err = workertest.CheckKilled(c, w)
	c.Assert(err, gc.ErrorMatches, "signal channel closed unexpectedly")
}

func (s *workerSuite) TestKill(c *gc.C) {
	w, err := signalwatcher.NewWorker(make(chan os.Signal), nil)
	c.Assert(err, jc.ErrorIsNil)
	workertest.CleanKill(c, w)
}
