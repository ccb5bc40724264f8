// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package packaging_test

import (
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"go.uber.org/mock/gomock"
	gc "gopkg.in/check.v1"

	"github.com/canonical/appstream-charms/internal/commands/mocks"
	"github.com/canonical/appstream-charms/internal/packaging"
)

type PackagingSuite struct {
	testing.IsolationSuite

	runner *mocks.MockRunner
}

var _ = gc.Suite(&PackagingSuite{})

func (s *PackagingSuite) setupMocks(c *gc.C) *gomock.Controller {
	ctrl := gomock.NewController(c)
	s.runner = mocks.NewMockRunner(ctrl)
	return ctrl
}

func (s *PackagingSuite) TestAptInstall(c *gc.C) {
	defer s.setupMocks(c).Finish()

	s.runner.EXPECT().RunCommand("apt-get",
		"--assume-yes", "--option=Dpkg::Options::=--force-confold", "install", "jq", "rsync",
	).Return("", nil)

	err := packaging.NewApt(s.runner).Install("jq", "rsync")
	c.Assert(err, jc.ErrorIsNil)
}

func (s *PackagingSuite) TestAptInstallNothing(c *gc.C) {
	defer s.setupMocks(c).Finish()

	err := packaging.NewApt(s.runner).Install()
	c.Assert(err, jc.ErrorIsNil)
}

func (s *PackagingSuite) TestAptInstallFailure(c *gc.C) {
	defer s.setupMocks(c).Finish()

	s.runner.EXPECT().RunCommand("apt-get", gomock.Any()).Return("E: unable to locate package", errors.New("exit status 100"))

	err := packaging.NewApt(s.runner).Install("nope")
	c.Assert(err, gc.ErrorMatches, `installing apt packages \[nope\]: exit status 100`)
}

func (s *PackagingSuite) TestSnapInstallAndRefresh(c *gc.C) {
	defer s.setupMocks(c).Finish()

	gomock.InOrder(
		s.runner.EXPECT().RunCommand("snap", "install", "--channel", "stable", "appstream-generator").Return("", nil),
		s.runner.EXPECT().RunCommand("snap", "refresh", "--channel", "edge", "appstream-generator").Return("", nil),
	)

	snap := packaging.NewSnap(s.runner)
	c.Assert(snap.Install("appstream-generator", ""), jc.ErrorIsNil)
	c.Assert(snap.Refresh("appstream-generator", "edge"), jc.ErrorIsNil)
}

func (s *PackagingSuite) TestSnapInvalidName(c *gc.C) {
	defer s.setupMocks(c).Finish()

	err := packaging.NewSnap(s.runner).Install("Not_A_Snap", "stable")
	c.Assert(err, gc.ErrorMatches, `snap name "Not_A_Snap" not valid`)
}
