// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package planner_test

import (
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/appstream-charms/internal/charmconfig"
	"github.com/canonical/appstream-charms/internal/planner"
)

type generatorConfigSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&generatorConfigSuite{})

func suiteMap(c *gc.C, doc string) *charmconfig.SuiteMap {
	m, err := charmconfig.ParseSuiteMap(doc)
	c.Assert(err, jc.ErrorIsNil)
	return m
}

func (s *generatorConfigSuite) TestSuitePriority(c *gc.C) {
	for suite, priority := range map[string]int{
		"focal":           0,
		"focal-updates":   10,
		"focal-security":  20,
		"focal-proposed":  30,
		"focal-backports": 40,
		"focal-other":     0,
	} {
		c.Check(planner.SuitePriority(suite), gc.Equals, priority, gc.Commentf(suite))
	}
}

func (s *generatorConfigSuite) TestExpandFocal(c *gc.C) {
	m := suiteMap(c, `{
		"default": {"architectures": ["amd64"], "suites": ["", "-updates", "-security"]},
		"focal": {}
	}`)

	suites := planner.ExpandRelease(m, m.Releases[0])
	c.Assert(suites, gc.HasLen, 3)

	c.Check(suites["focal"].DataPriority, gc.Equals, 0)
	c.Check(suites["focal"].BaseSuite, gc.Equals, "")
	c.Check(suites["focal"].Immutable, jc.IsFalse)
	c.Check(suites["focal-updates"].DataPriority, gc.Equals, 10)
	c.Check(suites["focal-updates"].BaseSuite, gc.Equals, "focal")
	c.Check(suites["focal-security"].DataPriority, gc.Equals, 20)
	c.Check(suites["focal-security"].BaseSuite, gc.Equals, "focal")
	for name, suite := range suites {
		c.Check(suite.Architectures, jc.DeepEquals, []string{"amd64"}, gc.Commentf(name))
		c.Check(suite.Sections, jc.DeepEquals, []string{"main", "universe", "multiverse", "restricted"})
		c.Check(suite.UseIconTheme, gc.Equals, "Humanity")
	}
}

func (s *generatorConfigSuite) TestReleasedIsImmutable(c *gc.C) {
	m := suiteMap(c, `{
		"default": {"architectures": ["amd64"], "suites": ["", "-updates"]},
		"focal": {"released": true},
		"jammy": {"released": false}
	}`)

	focal := planner.ExpandRelease(m, m.Releases[0])
	c.Check(focal["focal"].Immutable, jc.IsTrue)
	c.Check(focal["focal-updates"].Immutable, jc.IsFalse)

	jammy := planner.ExpandRelease(m, m.Releases[1])
	c.Check(jammy["jammy"].Immutable, jc.IsFalse)
}

func (s *generatorConfigSuite) TestReleasedWithoutBaseSuite(c *gc.C) {
	m := suiteMap(c, `{
		"default": {"architectures": ["amd64"], "suites": [""]},
		"focal": {"released": true, "suites": ["-updates"]}
	}`)

	suites := planner.ExpandRelease(m, m.Releases[0])
	c.Assert(suites, gc.HasLen, 1)
	c.Check(suites["focal-updates"].Immutable, jc.IsFalse)
}

func (s *generatorConfigSuite) TestOldsuitesInDocumentOrder(c *gc.C) {
	cfg := planner.BuildGeneratorConfig(&charmconfig.GeneratorSettings{
		Mirror:   "http://mirror",
		Hostname: "https://host",
		Suites: suiteMap(c, `{
			"default": {"architectures": ["amd64"], "suites": [""]},
			"xenial": {"oldSuite": true},
			"focal": {},
			"bionic": {"oldSuite": true}
		}`),
	})
	c.Check(cfg.Oldsuites, jc.DeepEquals, []string{"xenial", "bionic"})
	c.Check(cfg.Suites, gc.HasLen, 3)
}

func (s *generatorConfigSuite) TestRender(c *gc.C) {
	out, err := planner.RenderGeneratorConfig(&charmconfig.GeneratorSettings{
		Mirror:   "http://mirror/ubuntu?a=1&b=2",
		Hostname: "https://host",
		Suites: suiteMap(c, `{
			"default": {"architectures": ["amd64"], "suites": [""]},
			"focal": {"released": true, "oldSuite": true}
		}`),
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(out), gc.Equals, `{
    "ArchiveRoot": "http://mirror/ubuntu?a=1&b=2",
    "Backend": "ubuntu",
    "Features": {
        "validateMetainfo": true
    },
    "HtmlBaseUrl": "https://host",
    "MediaBaseUrl": "https://host/media",
    "Oldsuites": [
        "focal"
    ],
    "ProjectName": "Ubuntu",
    "Suites": {
        "focal": {
            "architectures": [
                "amd64"
            ],
            "dataPriority": 0,
            "immutable": true,
            "sections": [
                "main",
                "universe",
                "multiverse",
                "restricted"
            ],
            "useIconTheme": "Humanity"
        }
    }
}`)
}

func (s *generatorConfigSuite) TestRenderEmptyLists(c *gc.C) {
	out, err := planner.RenderGeneratorConfig(&charmconfig.GeneratorSettings{
		Mirror:   "http://mirror",
		Hostname: "https://host",
		Suites:   suiteMap(c, `{"default": {"architectures": [], "suites": [""]}}`),
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(out), jc.Contains, `"Oldsuites": [],`)
	c.Check(string(out), jc.Contains, `"Suites": {}`)
}
