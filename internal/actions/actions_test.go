// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package actions_test

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/ulikunitz/xz"
	gc "gopkg.in/check.v1"

	"github.com/canonical/appstream-charms/internal/actions"
	"github.com/canonical/appstream-charms/internal/files"
)

type actionsSuite struct {
	testing.IsolationSuite

	queue actions.Queue
}

var _ = gc.Suite(&actionsSuite{})

func (s *actionsSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	dir := c.MkDir()
	s.queue = actions.Queue{
		BaseDir:  dir,
		HintsDir: filepath.Join(dir, "appstream-public", "hints"),
		Owner:    files.CurrentOwner(),
	}
}

func (s *actionsSuite) forgotten(c *gc.C) string {
	data, err := os.ReadFile(filepath.Join(s.queue.BaseDir, "forget"))
	if os.IsNotExist(err) {
		return ""
	}
	c.Assert(err, jc.ErrorIsNil)
	return string(data)
}

func (s *actionsSuite) writeArchive(c *gc.C, rel, doc string) {
	path := filepath.Join(s.queue.HintsDir, rel)
	c.Assert(os.MkdirAll(filepath.Dir(path), 0755), jc.ErrorIsNil)
	f, err := os.Create(path)
	c.Assert(err, jc.ErrorIsNil)
	defer f.Close()
	w, err := xz.NewWriter(f)
	c.Assert(err, jc.ErrorIsNil)
	_, err = w.Write([]byte(doc))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(w.Close(), jc.ErrorIsNil)
}

func (s *actionsSuite) TestClean(c *gc.C) {
	c.Assert(s.queue.Clean(), jc.ErrorIsNil)
	fi, err := os.Stat(filepath.Join(s.queue.BaseDir, "clean"))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(fi.Size(), gc.Equals, int64(0))
}

func (s *actionsSuite) TestForgetAppends(c *gc.C) {
	c.Assert(s.queue.Forget([]string{"gimp", "inkscape"}), jc.ErrorIsNil)
	c.Assert(s.queue.Forget([]string{"vlc"}), jc.ErrorIsNil)
	c.Check(s.forgotten(c), gc.Equals, "gimp\ninkscape\nvlc\n")
}

func (s *actionsSuite) TestParsePackageList(c *gc.C) {
	packages, err := actions.ParsePackageList(`["gimp", "vlc"]`)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(packages, jc.DeepEquals, []string{"gimp", "vlc"})

	_, err = actions.ParsePackageList(`gimp`)
	c.Assert(err, jc.ErrorIs, errors.NotValid)
}

func (s *actionsSuite) TestForgetTag(c *gc.C) {
	s.writeArchive(c, "focal/main/Hints-amd64.json.xz", `[
		{"package": "gimp/2.10/amd64", "hints": {"gimp.desktop": [{"tag": "icon-not-found", "vars": {}}]}},
		{"package": "vlc/3.0/amd64", "hints": {"vlc.desktop": [{"tag": "X"}]}}
	]`)
	s.writeArchive(c, "focal/universe/Hints-amd64.json.xz", `[
		{"package": "inkscape/1.0/amd64", "hints": {"org.inkscape.desktop": [{"tag": "metainfo-no-summary"}]}}
	]`)

	packages, err := s.queue.ForgetTag("X")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(packages, jc.DeepEquals, []string{"vlc/3.0/amd64"})
	c.Check(s.forgotten(c), gc.Equals, "vlc/3.0/amd64\n")
}

func (s *actionsSuite) TestForgetTagOncePerPackage(c *gc.C) {
	doc := `[
		{"package": "vlc", "hints": {"a": [{"tag": "X"}, {"tag": "X"}], "b": [{"tag": "X"}]}}
	]`
	s.writeArchive(c, "focal/main/Hints-amd64.json.xz", doc)
	s.writeArchive(c, "focal/main/Hints-arm64.json.xz", doc)

	packages, err := s.queue.ForgetTag("X")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(packages, jc.DeepEquals, []string{"vlc"})
	c.Check(s.forgotten(c), gc.Equals, "vlc\n")
}

func (s *actionsSuite) TestForgetTagNoMatches(c *gc.C) {
	packages, err := s.queue.ForgetTag("X")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(packages, gc.HasLen, 0)
	c.Check(s.forgotten(c), gc.Equals, "")
}

func (s *actionsSuite) TestForgetTagCorruptArchive(c *gc.C) {
	path := filepath.Join(s.queue.HintsDir, "focal", "main", "Hints-amd64.json.xz")
	c.Assert(os.MkdirAll(filepath.Dir(path), 0755), jc.ErrorIsNil)
	c.Assert(os.WriteFile(path, []byte("not xz"), 0644), jc.ErrorIsNil)

	_, err := s.queue.ForgetTag("X")
	c.Assert(err, gc.ErrorMatches, `reading hint archive ".*Hints-amd64.json.xz": .*`)
}
