// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hook_test

import (
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/appstream-charms/internal/hook"
)

type InfoSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&InfoSuite{})

var validateTests = []struct {
	info hook.Info
	err  string
}{{
	info: hook.Info{Kind: hook.Install},
}, {
	info: hook.Info{Kind: hook.RelationJoined, RelationName: "rsync", RemoteUnit: "appstream-generator/0"},
}, {
	info: hook.Info{Kind: hook.RelationJoined, RemoteUnit: "appstream-generator/0"},
	err:  `"relation-joined" event without relation name not valid`,
}, {
	info: hook.Info{Kind: hook.RelationDeparted, RelationName: "rsync", RemoteUnit: "nope"},
	err:  `"relation-departed" event remote unit "nope" not valid`,
}, {
	info: hook.Info{Kind: hook.StorageAttached},
	err:  `"storage-attached" event without storage name not valid`,
}, {
	info: hook.Info{Kind: hook.Action},
	err:  `action event without action name not valid`,
}, {
	info: hook.Info{Kind: "stop"},
	err:  `event kind "stop" not valid`,
}}

func (s *InfoSuite) TestValidate(c *gc.C) {
	for i, t := range validateTests {
		c.Logf("test %d: %#v", i, t.info)
		err := t.info.Validate()
		if t.err == "" {
			c.Check(err, jc.ErrorIsNil)
		} else {
			c.Check(err, gc.ErrorMatches, t.err)
		}
	}
}

func (s *InfoSuite) TestNameRoundTrip(c *gc.C) {
	for _, name := range []string{
		"install",
		"start",
		"upgrade-charm",
		"config-changed",
		"rsync-relation-joined",
		"apache-website-relation-departed",
		"appstream-storage-attached",
		"appstream-storage-detaching",
		"forget-tag-action",
	} {
		info, err := hook.Parse(name)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(info.Name(), gc.Equals, name)
	}
}

func (s *InfoSuite) TestParseScoped(c *gc.C) {
	info, err := hook.Parse("apache-website-relation-joined")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(info, jc.DeepEquals, hook.Info{Kind: hook.RelationJoined, RelationName: "apache-website"})

	info, err = hook.Parse("forget-tag-action")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(info, jc.DeepEquals, hook.Info{Kind: hook.Action, ActionName: "forget-tag"})
}

func (s *InfoSuite) TestParseInvalid(c *gc.C) {
	_, err := hook.Parse("-relation-joined")
	c.Check(err, gc.ErrorMatches, `hook name "-relation-joined" not valid`)
	_, err = hook.Parse("collect-metrics")
	c.Check(err, gc.ErrorMatches, `hook name "collect-metrics" not valid`)
}

func (s *InfoSuite) TestEqual(c *gc.C) {
	a := hook.Info{Kind: hook.Action, ActionName: "forget", Params: map[string]string{"packages": `["a"]`}}
	b := hook.Info{Kind: hook.Action, ActionName: "forget", Params: map[string]string{"packages": `["a"]`}}
	c.Check(a.Equal(b), jc.IsTrue)
	b.Params["packages"] = `["b"]`
	c.Check(a.Equal(b), jc.IsFalse)
}
