// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package dispatcher_test

import (
	"path/filepath"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/mutex/v2"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/appstream-charms/internal/dispatcher"
	"github.com/canonical/appstream-charms/internal/hook"
	"github.com/canonical/appstream-charms/internal/metrics"
	"github.com/canonical/appstream-charms/internal/state"
	"github.com/canonical/appstream-charms/internal/status"
)

var (
	install       = hook.Info{Kind: hook.Install}
	start         = hook.Info{Kind: hook.Start}
	configChanged = hook.Info{Kind: hook.ConfigChanged}
	rsyncJoined   = hook.Info{Kind: hook.RelationJoined, RelationName: "rsync", RemoteUnit: "appstream-generator/0"}
	cleanAction   = hook.Info{Kind: hook.Action, ActionName: "clean"}
)

type dispatcherSuite struct {
	testing.IsolationSuite

	charm    *fakeCharm
	store    *state.Store
	statuses *testing.Stub
}

var _ = gc.Suite(&dispatcherSuite{})

func (s *dispatcherSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.charm = newFakeCharm("install", "start", "config-changed", "rsync-relation-joined", "clean-action")
	s.store = state.NewStore(filepath.Join(c.MkDir(), "state.yaml"))
	s.statuses = &testing.Stub{}
}

func (s *dispatcherSuite) newDispatcher(c *gc.C) *dispatcher.Dispatcher {
	d, err := dispatcher.New(dispatcher.Config{
		Charm:   s.charm,
		Store:   s.store,
		Status:  statusRecorder{s.statuses},
		Metrics: metrics.NewCollector(),
	})
	c.Assert(err, jc.ErrorIsNil)
	return d
}

func (s *dispatcherSuite) deferred(c *gc.C) []hook.Info {
	st, err := s.store.Get()
	c.Assert(err, jc.ErrorIsNil)
	return st.Deferred
}

func (s *dispatcherSuite) TestValidateConfig(c *gc.C) {
	_, err := dispatcher.New(dispatcher.Config{})
	c.Check(err, jc.ErrorIs, errors.NotValid)
	_, err = dispatcher.New(dispatcher.Config{
		Charm:    s.charm,
		Store:    s.store,
		Status:   statusRecorder{s.statuses},
		LockName: "appstream-agent",
	})
	c.Check(err, gc.ErrorMatches, "nil Clock not valid")
}

func (s *dispatcherSuite) TestApplied(c *gc.C) {
	result, err := s.newDispatcher(c).Dispatch(install)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(result.Outcome, gc.Equals, dispatcher.Applied)

	s.charm.CheckCallNames(c, "install", "Status")
	s.statuses.CheckCall(c, 0, "SetStatus", status.NewActive())
}

func (s *dispatcherSuite) TestInvalidEvent(c *gc.C) {
	result, err := s.newDispatcher(c).Dispatch(hook.Info{Kind: hook.RelationJoined})
	c.Assert(err, jc.ErrorIs, errors.NotValid)
	c.Check(result.Outcome, gc.Equals, dispatcher.Failed)
	s.charm.CheckNoCalls(c)
}

func (s *dispatcherSuite) TestDeferred(c *gc.C) {
	s.charm.queue("start", dispatcher.Defer("Waiting for storage to become attached."))

	result, err := s.newDispatcher(c).Dispatch(start)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(result.Outcome, gc.Equals, dispatcher.Deferred)

	c.Check(s.deferred(c), jc.DeepEquals, []hook.Info{start})
	s.charm.CheckCallNames(c, "start")
	s.statuses.CheckCall(c, 0, "SetStatus", status.NewBlocked("Waiting for storage to become attached."))
}

func (s *dispatcherSuite) TestDeferredWithoutReasonKeepsStatus(c *gc.C) {
	s.charm.queue("config-changed", dispatcher.Defer(""))

	result, err := s.newDispatcher(c).Dispatch(configChanged)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(result.Outcome, gc.Equals, dispatcher.Deferred)
	c.Check(s.deferred(c), jc.DeepEquals, []hook.Info{configChanged})
	s.statuses.CheckNoCalls(c)
}

func (s *dispatcherSuite) TestDeferredTwiceQueuedOnce(c *gc.C) {
	s.charm.queue("start", dispatcher.Defer("blocked"), dispatcher.Defer("blocked"))
	d := s.newDispatcher(c)

	_, err := d.Dispatch(start)
	c.Assert(err, jc.ErrorIsNil)
	_, err = d.Dispatch(start)
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.deferred(c), jc.DeepEquals, []hook.Info{start})
	s.charm.CheckCallNames(c, "start", "start")
}

func (s *dispatcherSuite) TestReplayBeforeNextEvent(c *gc.C) {
	s.charm.queue("start", dispatcher.Defer("blocked"), dispatcher.Defer("blocked"))
	s.charm.queue("rsync-relation-joined", dispatcher.Defer("blocked"))
	d := s.newDispatcher(c)

	_, err := d.Dispatch(start)
	c.Assert(err, jc.ErrorIsNil)
	_, err = d.Dispatch(rsyncJoined)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(s.deferred(c), jc.DeepEquals, []hook.Info{start, rsyncJoined})

	s.charm.ResetCalls()
	result, err := d.Dispatch(configChanged)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(result.Outcome, gc.Equals, dispatcher.Applied)

	s.charm.CheckCallNames(c, "start", "rsync-relation-joined", "config-changed", "Status")
	s.charm.CheckCall(c, 1, "rsync-relation-joined", rsyncJoined)
	c.Check(s.deferred(c), gc.HasLen, 0)
}

func (s *dispatcherSuite) TestReplayDeferredAgainStaysQueued(c *gc.C) {
	s.charm.queue("start", dispatcher.Defer("blocked"), dispatcher.Defer("blocked"))
	d := s.newDispatcher(c)

	_, err := d.Dispatch(start)
	c.Assert(err, jc.ErrorIsNil)
	_, err = d.Dispatch(install)
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.deferred(c), jc.DeepEquals, []hook.Info{start})
	s.charm.CheckCallNames(c, "start", "start", "install", "Status")
}

func (s *dispatcherSuite) TestRedeliveredEventRunsOnce(c *gc.C) {
	s.charm.queue("start", dispatcher.Defer("blocked"))
	d := s.newDispatcher(c)

	_, err := d.Dispatch(start)
	c.Assert(err, jc.ErrorIsNil)
	_, err = d.Dispatch(start)
	c.Assert(err, jc.ErrorIsNil)

	s.charm.CheckCallNames(c, "start", "start", "Status")
	c.Check(s.deferred(c), gc.HasLen, 0)
}

func (s *dispatcherSuite) TestReplayFailureStops(c *gc.C) {
	s.charm.queue("start", dispatcher.Defer("blocked"), dispatcher.Fail(errors.New("exit status 1")))
	d := s.newDispatcher(c)

	_, err := d.Dispatch(start)
	c.Assert(err, jc.ErrorIsNil)

	result, err := d.Dispatch(install)
	c.Assert(err, gc.ErrorMatches, "re-delivering deferred start: exit status 1")
	c.Check(result.Outcome, gc.Equals, dispatcher.Failed)
	s.charm.CheckCallNames(c, "start", "start")
	c.Check(s.deferred(c), jc.DeepEquals, []hook.Info{start})
}

func (s *dispatcherSuite) TestFailed(c *gc.C) {
	s.charm.queue("install", dispatcher.Fail(errors.New("exit status 100")))

	result, err := s.newDispatcher(c).Dispatch(install)
	c.Assert(err, gc.ErrorMatches, "exit status 100")
	c.Check(result.Outcome, gc.Equals, dispatcher.Failed)
	s.statuses.CheckNoCalls(c)
	c.Check(s.deferred(c), gc.HasLen, 0)
}

func (s *dispatcherSuite) TestUnhandledLifecycleEvent(c *gc.C) {
	result, err := s.newDispatcher(c).Dispatch(hook.Info{Kind: hook.UpgradeCharm})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(result.Outcome, gc.Equals, dispatcher.Applied)
	s.charm.CheckCallNames(c, "Status")
}

func (s *dispatcherSuite) TestActionsDoNotReplay(c *gc.C) {
	s.charm.queue("start", dispatcher.Defer("blocked"))
	d := s.newDispatcher(c)

	_, err := d.Dispatch(start)
	c.Assert(err, jc.ErrorIsNil)
	s.statuses.ResetCalls()

	result, err := d.Dispatch(cleanAction)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(result.Outcome, gc.Equals, dispatcher.Applied)

	s.charm.CheckCallNames(c, "start", "clean-action")
	c.Check(s.deferred(c), jc.DeepEquals, []hook.Info{start})
	s.statuses.CheckNoCalls(c)
}

func (s *dispatcherSuite) TestUnknownAction(c *gc.C) {
	_, err := s.newDispatcher(c).Dispatch(hook.Info{Kind: hook.Action, ActionName: "nope"})
	c.Assert(err, jc.ErrorIs, dispatcher.ErrUnknownEvent)
}

func (s *dispatcherSuite) TestActionCannotDefer(c *gc.C) {
	s.charm.queue("clean-action", dispatcher.Defer("no"))

	result, err := s.newDispatcher(c).Dispatch(cleanAction)
	c.Assert(err, gc.ErrorMatches, `action "clean" cannot be deferred`)
	c.Check(result.Outcome, gc.Equals, dispatcher.Failed)
	c.Check(s.deferred(c), gc.HasLen, 0)
}

func (s *dispatcherSuite) TestStatusError(c *gc.C) {
	s.charm.SetErrors(errors.New("no config"))

	_, err := s.newDispatcher(c).Dispatch(install)
	c.Assert(err, gc.ErrorMatches, "no config")
}

func (s *dispatcherSuite) TestLock(c *gc.C) {
	d, err := dispatcher.New(dispatcher.Config{
		Charm:       s.charm,
		Store:       s.store,
		Status:      statusRecorder{s.statuses},
		LockName:    "appstream-dispatcher-test",
		LockDelay:   time.Millisecond,
		LockTimeout: 50 * time.Millisecond,
		Clock:       clock.WallClock,
	})
	c.Assert(err, jc.ErrorIsNil)

	_, err = d.Dispatch(install)
	c.Assert(err, jc.ErrorIsNil)

	releaser, err := mutex.Acquire(mutex.Spec{
		Name:  "appstream-dispatcher-test",
		Clock: clock.WallClock,
		Delay: time.Millisecond,
	})
	c.Assert(err, jc.ErrorIsNil)
	defer releaser.Release()

	_, err = d.Dispatch(install)
	c.Assert(err, gc.ErrorMatches, `acquiring lock "appstream-dispatcher-test" for install: .*`)
}
